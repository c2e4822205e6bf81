package camera

import (
	"fmt"
	"sync"
)

// MockDevice はテスト用の仮想デバイスの振る舞い
type MockDevice struct {
	// Opened=false ならオープンは成功するが IsOpened が false を返す
	Opened bool
	// ReadFailures は成功するまでに失敗する読み取り回数。負の値なら常に失敗
	ReadFailures int
	Width        int
	Height       int
	FPS          int
	// Gray はフレームの輝度
	Gray byte
}

// MockBackend はテスト用の Backend 実装
type MockBackend struct {
	name    string
	devices map[Identifier]*MockDevice
	mu      sync.Mutex

	// 観測用
	opens   []Identifier
	live    int
	maxLive int
	reads   int
	applied []Settings
}

// NewMockBackend は新しい MockBackend を作成する
func NewMockBackend(name string) *MockBackend {
	return &MockBackend{
		name:    name,
		devices: make(map[Identifier]*MockDevice),
	}
}

// AddDevice は候補識別子に対応する仮想デバイスを追加する
// 識別子は正規化せずにそのまま照合する（"2" と 2 は別の候補）
func (m *MockBackend) AddDevice(id Identifier, device MockDevice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := device
	m.devices[id] = &d
}

// RemoveDevice は仮想デバイスを削除する
func (m *MockBackend) RemoveDevice(id Identifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.devices, id)
}

// SetReadFailures は既存の仮想デバイスの読み取り失敗回数を変更する
// オープン済みのハンドルにも反映される
func (m *MockBackend) SetReadFailures(id Identifier, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if device, exists := m.devices[id]; exists {
		device.ReadFailures = failures
	}
}

// Name はバックエンド名を返す
func (m *MockBackend) Name() string {
	return m.name
}

// Open は登録済みの仮想デバイスを開く
func (m *MockBackend) Open(id Identifier) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.opens = append(m.opens, id)

	device, exists := m.devices[id]
	if !exists {
		return nil, fmt.Errorf("モック: デバイスが見つかりません: %s", id)
	}

	m.live++
	if m.live > m.maxLive {
		m.maxLive = m.live
	}

	return &mockHandle{backend: m, device: device, opened: device.Opened}, nil
}

// Opens はこれまでにオープンを試みた識別子を返す
func (m *MockBackend) Opens() []Identifier {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Identifier, len(m.opens))
	copy(result, m.opens)
	return result
}

// LiveHandles は解放されていないハンドル数を返す
func (m *MockBackend) LiveHandles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// MaxLiveHandles は同時に生存したハンドル数の最大値を返す
func (m *MockBackend) MaxLiveHandles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxLive
}

// Reads は全ハンドルでの Read 呼び出し回数を返す
func (m *MockBackend) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// AppliedSettings は Configure で適用された設定を返す
func (m *MockBackend) AppliedSettings() []Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Settings, len(m.applied))
	copy(result, m.applied)
	return result
}

// mockHandle は MockBackend が返すハンドル
type mockHandle struct {
	backend *MockBackend
	device  *MockDevice
	opened  bool
	closed  bool
	reads   int
}

func (h *mockHandle) IsOpened() bool {
	return h.opened && !h.closed
}

func (h *mockHandle) Read() (Frame, bool) {
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()

	h.backend.reads++
	if h.closed || !h.opened {
		return Frame{}, false
	}

	h.reads++
	if h.device.ReadFailures < 0 || h.reads <= h.device.ReadFailures {
		return Frame{}, false
	}

	width, height := h.device.Width, h.device.Height
	if width == 0 || height == 0 {
		width, height = 8, 8
	}
	return NewUniformFrame(width, height, h.device.Gray, h.device.Gray, h.device.Gray), true
}

func (h *mockHandle) Configure(settings Settings) {
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	h.backend.applied = append(h.backend.applied, settings)
}

func (h *mockHandle) Props() HandleProps {
	return HandleProps{Width: h.device.Width, Height: h.device.Height, FPS: h.device.FPS}
}

func (h *mockHandle) Close() error {
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.backend.live--
	return nil
}
