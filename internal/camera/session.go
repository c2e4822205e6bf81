package camera

import (
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// DefaultReadAttempts は ReadFrame 1回あたりの最大読み取り回数
const DefaultReadAttempts = 5

// Opener はデバイスを開くもの（Selector が実装する）
type Opener interface {
	Open(id Identifier, settings *Settings) (Handle, Attempt, error)
}

// SessionStatus はセッションの現在の状態
type SessionStatus struct {
	Open       bool       `json:"open"`
	Identifier Identifier `json:"identifier"`
	Backend    string     `json:"backend,omitempty"`
}

// Session は同時に最大1つのキャプチャハンドルを所有する
// 全ての操作はミューテックスで直列化される
type Session struct {
	opener       Opener
	settings     Settings
	readAttempts int
	logger       *zap.Logger
	mu           sync.Mutex

	openID  Identifier
	attempt Attempt
	handle  Handle
}

// NewSession は空のセッションを作成する
func NewSession(opener Opener, settings Settings, readAttempts int, logger *zap.Logger) *Session {
	if readAttempts <= 0 {
		readAttempts = DefaultReadAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		opener:       opener,
		settings:     settings,
		readAttempts: readAttempts,
		logger:       logger,
	}
}

// Open は指定の識別子でデバイスを開く
// 既に別のハンドルを開いている場合は先に解放する
func (s *Session) Open(id Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.openLocked(id)
}

// Ensure は同じ識別子のハンドルが健全に開いていれば何もしない
// それ以外は Open と同じ処理を行う
func (s *Session) Ensure(id Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ensureLocked(id)
}

// Acquire は Ensure と ReadFrame を1回のロックの中で行う
// 読み取ったフレームは必ず id のデバイスのもの
func (s *Session) Acquire(id Identifier) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(id); err != nil {
		return Frame{}, err
	}

	frame, ok := s.readLocked()
	if !ok {
		return Frame{}, fmt.Errorf("%w: %s", ErrReadExhausted, id)
	}
	return frame, nil
}

func (s *Session) ensureLocked(id Identifier) error {
	if s.handle != nil && s.handle.IsOpened() && s.openID.Equivalent(id) {
		return nil
	}

	return s.openLocked(id)
}

// openLocked は実際のオープン処理を実行する（ロック済み前提）
func (s *Session) openLocked(id Identifier) error {
	s.closeLocked()

	settings := s.settings
	handle, attempt, err := s.opener.Open(id, &settings)
	if err != nil {
		s.logger.Warn("カメラを開けませんでした", zap.Stringer("camera", id), zap.Error(err))
		return err
	}

	s.handle = handle
	s.openID = id
	s.attempt = attempt

	s.logger.Info("カメラを開きました",
		zap.Stringer("camera", id),
		zap.String("backend", attempt.Backend),
		zap.Stringer("candidate", attempt.Candidate))
	return nil
}

// ReadFrame は最大 readAttempts 回読み取り、最初に成功したフレームを返す
// 全て失敗した場合は false を返す。ハンドルは開いたまま残す
func (s *Session) ReadFrame() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readLocked()
}

func (s *Session) readLocked() (Frame, bool) {
	if s.handle == nil {
		return Frame{}, false
	}

	for i := 0; i < s.readAttempts; i++ {
		frame, ok := s.handle.Read()
		if ok && !frame.Empty() {
			return frame, true
		}
		s.logger.Debug("フレームの読み取りに失敗", zap.Int("attempt", i+1))
	}

	s.logger.Warn("フレームを取得できませんでした",
		zap.Stringer("camera", s.openID),
		zap.Int("attempts", s.readAttempts))
	return Frame{}, false
}

// Close は開いているハンドルを解放する。何も開いていなくても安全
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.handle == nil {
		return
	}

	if err := s.handle.Close(); err != nil {
		s.logger.Warn("カメラの解放に失敗", zap.Stringer("camera", s.openID), zap.Error(err))
	}

	s.handle = nil
	s.openID = Identifier{}
	s.attempt = Attempt{}
}

// Status は現在開いているデバイスの情報を返す
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return SessionStatus{}
	}
	return SessionStatus{
		Open:       s.handle.IsOpened(),
		Identifier: s.openID,
		Backend:    s.attempt.Backend,
	}
}

// HeldProps は id と同じデバイスを開いていれば、そのハンドルの属性を返す
func (s *Session) HeldProps(id Identifier) (HandleProps, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil || !s.handle.IsOpened() {
		return HandleProps{}, false
	}
	if !sameDevice(s.openID, id) && !sameDevice(s.attempt.Candidate, id) {
		return HandleProps{}, false
	}
	return s.handle.Props(), true
}

// SessionProber はセッションが開いているデバイスを開き直さない Prober
// 使用中のデバイスはセッションのハンドルの属性で利用可能と報告する
type SessionProber struct {
	Session *Session
	Prober  Prober
}

// Probe はセッションが開いていればその属性を、なければ Prober の結果を返す
func (p SessionProber) Probe(id Identifier) (HandleProps, bool) {
	if props, ok := p.Session.HeldProps(id); ok {
		return props, true
	}
	return p.Prober.Probe(id)
}

// sameDevice は番号・数字文字列・/dev/videoN を同じデバイスとして比較する
func sameDevice(a, b Identifier) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	if a.Equivalent(b) {
		return true
	}
	na, okA := videoNumber(a)
	nb, okB := videoNumber(b)
	return okA && okB && na == nb
}

func videoNumber(id Identifier) (int, bool) {
	if n, ok := id.Normalize().Index(); ok {
		return n, true
	}
	return extractDeviceNumber(filepath.Base(id.String()))
}
