//go:build !linux

package camera

const nativeCaptureBuilt = false

// NewV4L2Backend は Linux 以外では汎用バックエンドを返す
func NewV4L2Backend() Backend {
	return NewAnyBackend()
}
