//go:build linux

package camera

import "gocv.io/x/gocv"

// nativeCaptureBuilt は V4L2 ネイティブバックエンドが組み込まれているかを表す
const nativeCaptureBuilt = true

// NewV4L2Backend は OpenCV の V4L2 API を指定するバックエンドを作成する
func NewV4L2Backend() Backend {
	return &gocvBackend{
		name:       BackendV4L2,
		api:        gocv.VideoCaptureV4L2,
		compressed: true,
	}
}
