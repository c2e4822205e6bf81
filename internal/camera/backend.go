package camera

import (
	"fmt"
	"runtime"
)

// バックエンド名
const (
	BackendV4L2 = "v4l2" // video4linux ネイティブドライバ
	BackendAny  = "any"  // 自動判別の汎用バックエンド
)

// Backend は識別子からキャプチャハンドルを開く
type Backend interface {
	Name() string
	Open(id Identifier) (Handle, error)
}

// Handle はオープン済みのキャプチャデバイス
type Handle interface {
	IsOpened() bool
	Read() (Frame, bool)
	Configure(settings Settings)
	Props() HandleProps
	Close() error
}

// BackendCreator はバックエンド作成関数の型
type BackendCreator func() Backend

// BackendRegistry はバックエンド名と作成関数の対応を保持する
type BackendRegistry struct {
	creators map[string]BackendCreator
	order    []string
}

// NewBackendRegistry は空のレジストリを作成する
func NewBackendRegistry() *BackendRegistry {
	return &BackendRegistry{
		creators: make(map[string]BackendCreator),
	}
}

// DefaultBackendRegistry は gocv バックエンドを登録したレジストリを作成する
func DefaultBackendRegistry() *BackendRegistry {
	registry := NewBackendRegistry()

	// ネイティブ V4L2（Linux ビルドのみ）
	if nativeCaptureBuilt {
		registry.Register(BackendV4L2, NewV4L2Backend)
	}

	// 汎用バックエンド
	registry.Register(BackendAny, NewAnyBackend)

	return registry
}

// Register はバックエンド作成関数を登録する
func (r *BackendRegistry) Register(name string, creator BackendCreator) {
	if _, exists := r.creators[name]; !exists {
		r.order = append(r.order, name)
	}
	r.creators[name] = creator
}

// Create は登録済みのバックエンドを作成する
func (r *BackendRegistry) Create(name string) (Backend, error) {
	creator, exists := r.creators[name]
	if !exists {
		return nil, fmt.Errorf("サポートされていないバックエンド: %s", name)
	}
	return creator(), nil
}

// Has はバックエンドが登録されているかを返す
func (r *BackendRegistry) Has(name string) bool {
	_, exists := r.creators[name]
	return exists
}

// Names は登録順のバックエンド名を返す
func (r *BackendRegistry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// PreferredBackend はプラットフォームに応じた優先バックエンド名を返す
// POSIX 環境かつネイティブドライバが組み込まれ、登録されている場合のみ v4l2
func PreferredBackend(registry *BackendRegistry) string {
	if isPOSIX(runtime.GOOS) && nativeCaptureBuilt && registry.Has(BackendV4L2) {
		return BackendV4L2
	}
	return BackendAny
}

func isPOSIX(goos string) bool {
	switch goos {
	case "windows", "plan9", "js", "wasip1":
		return false
	default:
		return true
	}
}
