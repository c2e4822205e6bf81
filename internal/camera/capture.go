package camera

import (
	"fmt"

	"gocv.io/x/gocv"
)

// gocvBackend は gocv(OpenCV) の VideoCapture を使うバックエンド
type gocvBackend struct {
	name string
	api  gocv.VideoCaptureAPI

	// 圧縮フォーマットとバッファ数の指定に対応しているか
	compressed bool
}

// NewAnyBackend は API を自動判別する汎用バックエンドを作成する
func NewAnyBackend() Backend {
	return &gocvBackend{
		name: BackendAny,
		api:  gocv.VideoCaptureAny,
	}
}

// Name はバックエンド名を返す
func (b *gocvBackend) Name() string {
	return b.name
}

// Open は番号ならデバイス番号、それ以外はパスとして開く
func (b *gocvBackend) Open(id Identifier) (Handle, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if n, ok := id.Index(); ok {
		vc, err = gocv.VideoCaptureDeviceWithAPI(n, b.api)
	} else {
		vc, err = gocv.VideoCaptureFileWithAPI(id.String(), b.api)
	}
	if err != nil {
		if vc != nil {
			_ = vc.Close()
		}
		return nil, fmt.Errorf("%s: %s のオープンに失敗: %w", b.name, id, err)
	}

	return &gocvHandle{capture: vc, compressed: b.compressed}, nil
}

// gocvHandle は gocv.VideoCapture を Handle として扱う
type gocvHandle struct {
	capture    *gocv.VideoCapture
	compressed bool
}

// IsOpened はデバイスが開いているかを返す
func (h *gocvHandle) IsOpened() bool {
	return h.capture != nil && h.capture.IsOpened()
}

// Read は1フレームを読み取り、BGR バイト列にコピーして返す
func (h *gocvHandle) Read() (Frame, bool) {
	if h.capture == nil {
		return Frame{}, false
	}

	img := gocv.NewMat()
	defer img.Close()

	if ok := h.capture.Read(&img); !ok || img.Empty() {
		return Frame{}, false
	}

	// グレースケール出力のドライバは BGR に揃える
	if img.Channels() == 1 {
		bgr := gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(img, &bgr, gocv.ColorGrayToBGR)
		return matToFrame(bgr)
	}

	return matToFrame(img)
}

// Configure は解像度・ピクセルフォーマット・バッファ数を要求する
func (h *gocvHandle) Configure(settings Settings) {
	if h.capture == nil {
		return
	}

	h.capture.Set(gocv.VideoCaptureFrameWidth, float64(settings.Width))
	h.capture.Set(gocv.VideoCaptureFrameHeight, float64(settings.Height))

	if !h.compressed {
		return
	}
	if settings.FourCC != "" {
		h.capture.Set(gocv.VideoCaptureFOURCC, float64(h.capture.ToCodec(settings.FourCC)))
	}
	if settings.BufferSize > 0 {
		h.capture.Set(gocv.VideoCaptureBufferSize, float64(settings.BufferSize))
	}
}

// Props は現在の解像度とフレームレートを返す
func (h *gocvHandle) Props() HandleProps {
	if h.capture == nil {
		return HandleProps{}
	}
	return HandleProps{
		Width:  int(h.capture.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(h.capture.Get(gocv.VideoCaptureFrameHeight)),
		FPS:    int(h.capture.Get(gocv.VideoCaptureFPS)),
	}
}

// Close はデバイスを解放する
func (h *gocvHandle) Close() error {
	if h.capture == nil {
		return nil
	}
	err := h.capture.Close()
	h.capture = nil
	return err
}

func matToFrame(m gocv.Mat) (Frame, bool) {
	if m.Type() != gocv.MatTypeCV8UC3 {
		return Frame{}, false
	}
	frame := Frame{
		Width:  m.Cols(),
		Height: m.Rows(),
		Data:   m.ToBytes(),
	}
	if frame.Empty() {
		return Frame{}, false
	}
	return frame, true
}

// FrameToMat はフレームを gocv.Mat に変換する。呼び出し側で Close すること
func FrameToMat(frame Frame) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), fmt.Errorf("空のフレームです")
	}
	return gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data[:frame.Width*frame.Height*3])
}

// EncodeJPEG はフレームを JPEG にエンコードする
func EncodeJPEG(frame Frame) ([]byte, error) {
	img, err := FrameToMat(frame)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("JPEGエンコードに失敗: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()
	if len(data) == 0 {
		return nil, fmt.Errorf("JPEGエンコード結果が空です")
	}

	// NativeByteBuffer は Close で解放されるためコピーして返す
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
