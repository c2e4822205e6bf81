package camera

import (
	"fmt"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"
)

// 読み取り確認の回数
const (
	DefaultOpenReadAttempts  = 3 // オープン直後に読めるか確認する回数
	DefaultProbeReadAttempts = 1 // 列挙時のプローブで試す回数
)

var controllerNamePattern = regexp.MustCompile(`^media\d+$`)

// LinkResolver はコントローラノードが駆動する video ノードを解決する
type LinkResolver interface {
	LinkedVideoNodes(controllerPath string) []string
}

// Attempt はオープン試行1回分（バックエンドと候補識別子の組）
type Attempt struct {
	Backend   string
	Candidate Identifier
}

func (a Attempt) String() string {
	return fmt.Sprintf("%s:%s", a.Backend, a.Candidate)
}

// SelectorOptions は Selector の設定
type SelectorOptions struct {
	Preferred        string // 優先バックエンド（空ならプラットフォームから決定）
	Fallback         string // フォールバックバックエンド（空なら any）
	OpenReadAttempts int
	Logger           *zap.Logger
}

// Selector はバックエンドと候補識別子の組を順に試してデバイスを開く
type Selector struct {
	registry         *BackendRegistry
	preferred        string
	fallback         string
	openReadAttempts int
	resolver         LinkResolver
	logger           *zap.Logger
}

// NewSelector は新しい Selector を作成する
func NewSelector(registry *BackendRegistry, opts SelectorOptions) *Selector {
	s := &Selector{
		registry:         registry,
		preferred:        opts.Preferred,
		fallback:         opts.Fallback,
		openReadAttempts: opts.OpenReadAttempts,
		logger:           opts.Logger,
	}
	if s.preferred == "" {
		s.preferred = PreferredBackend(registry)
	}
	if s.fallback == "" {
		s.fallback = BackendAny
	}
	if s.openReadAttempts <= 0 {
		s.openReadAttempts = DefaultOpenReadAttempts
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// UseLinkResolver はコントローラノード解決に使う LinkResolver を設定する
func (s *Selector) UseLinkResolver(resolver LinkResolver) {
	s.resolver = resolver
}

// Candidates は識別子からオープン候補を優先順に組み立てる
func (s *Selector) Candidates(id Identifier) []Identifier {
	if s.resolver != nil && IsControllerPath(id) {
		links := s.resolver.LinkedVideoNodes(id.String())
		if len(links) > 0 {
			candidates := make([]Identifier, 0, len(links))
			for _, link := range links {
				candidates = append(candidates, PathID(link))
			}
			return candidates
		}
	}
	return id.Candidates()
}

// Plan は試行順の (バックエンド, 候補) リストを返す
// 優先バックエンドで全候補を試した後、フォールバックで同じ候補を試す
func (s *Selector) Plan(id Identifier) []Attempt {
	candidates := s.Candidates(id)

	backends := []string{s.preferred}
	if s.fallback != s.preferred {
		backends = append(backends, s.fallback)
	}

	plan := make([]Attempt, 0, len(backends)*len(candidates))
	for _, backend := range backends {
		if !s.registry.Has(backend) {
			continue
		}
		for _, candidate := range candidates {
			plan = append(plan, Attempt{Backend: backend, Candidate: candidate})
		}
	}
	return plan
}

// Open は計画に従って最初に「開けて読める」ハンドルを返す
// 開けても読めないハンドルは解放して次の試行に進む
func (s *Selector) Open(id Identifier, settings *Settings) (Handle, Attempt, error) {
	return s.open(id, settings, s.openReadAttempts)
}

// Probe はデバイスを開いて1フレーム読めるか確認し、属性を返して即座に解放する
func (s *Selector) Probe(id Identifier) (HandleProps, bool) {
	handle, _, err := s.open(id, nil, DefaultProbeReadAttempts)
	if err != nil {
		return HandleProps{}, false
	}
	defer func() {
		_ = handle.Close()
	}()

	return handle.Props(), true
}

func (s *Selector) open(id Identifier, settings *Settings, readAttempts int) (Handle, Attempt, error) {
	plan := s.Plan(id)
	backends := make(map[string]Backend)

	for _, attempt := range plan {
		backend, ok := backends[attempt.Backend]
		if !ok {
			created, err := s.registry.Create(attempt.Backend)
			if err != nil {
				continue
			}
			backend = created
			backends[attempt.Backend] = backend
		}

		handle, err := backend.Open(attempt.Candidate)
		if err != nil {
			s.logger.Debug("オープンに失敗", zap.Stringer("attempt", attempt), zap.Error(err))
			continue
		}

		if !handle.IsOpened() {
			_ = handle.Close()
			s.logger.Debug("デバイスが開かれていません", zap.Stringer("attempt", attempt))
			continue
		}

		if settings != nil {
			handle.Configure(*settings)
		}

		if !readable(handle, readAttempts) {
			_ = handle.Close()
			s.logger.Debug("オープン後の読み取りに失敗", zap.Stringer("attempt", attempt))
			continue
		}

		return handle, attempt, nil
	}

	return nil, Attempt{}, fmt.Errorf("%w: %s (%d 回試行)", ErrDeviceUnopenable, id, len(plan))
}

func readable(handle Handle, attempts int) bool {
	for i := 0; i < attempts; i++ {
		if frame, ok := handle.Read(); ok && !frame.Empty() {
			return true
		}
	}
	return false
}

// IsControllerPath は識別子が media コントローラノードのパスかを返す
func IsControllerPath(id Identifier) bool {
	if _, ok := id.Index(); ok {
		return false
	}
	return controllerNamePattern.MatchString(filepath.Base(id.String()))
}
