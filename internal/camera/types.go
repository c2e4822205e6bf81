package camera

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrDeviceUnopenable はどのバックエンド・候補でもデバイスを開けなかったことを表す
	ErrDeviceUnopenable = errors.New("camera: device unopenable")
	// ErrReadExhausted はリトライ上限までフレームを読めなかったことを表す
	ErrReadExhausted = errors.New("camera: read attempts exhausted")
)

// Kind はデバイスノードの種類を表す
type Kind string

const (
	KindVideo      Kind = "video"      // video キャプチャノード
	KindController Kind = "controller" // media コントローラノード
)

// Resolution はカメラの解像度を表す
type Resolution struct {
	Width  int `json:"width"`  // 幅
	Height int `json:"height"` // 高さ
}

// DeviceDescriptor は列挙されたデバイス1件分の情報
// 列挙のたびに新しく作られ、返却後は変更しない
type DeviceDescriptor struct {
	ID               Identifier  `json:"identifier"`
	Name             string      `json:"display_name"`
	Kind             Kind        `json:"kind"`
	Device           string      `json:"device,omitempty"` // デバイスパス（例: /dev/video0）
	Resolution       *Resolution `json:"resolution"`       // 不明な場合は nil
	FPS              *int        `json:"frame_rate"`       // 不明な場合は nil
	Available        bool        `json:"available"`
	LinkedVideoNodes []string    `json:"linked_video_nodes"`
}

// Settings はオープン時に適用するキャプチャ設定
type Settings struct {
	Width      int    // 要求する幅
	Height     int    // 要求する高さ
	FourCC     string // 圧縮ピクセルフォーマット（例: MJPG）
	BufferSize int    // ドライバ内部バッファ数
}

// DefaultSettings は顕微鏡向けのデフォルト設定を返す
func DefaultSettings() Settings {
	return Settings{
		Width:      1920,
		Height:     1080,
		FourCC:     "MJPG",
		BufferSize: 1,
	}
}

// Frame はキャプチャした1フレーム（BGR、行優先、1画素3バイト）
type Frame struct {
	Width  int
	Height int
	Data   []byte
}

// Empty はフレームが画素を持たないかを返す
func (f Frame) Empty() bool {
	return f.Width <= 0 || f.Height <= 0 || len(f.Data) < f.Width*f.Height*3
}

// NewUniformFrame は全画素が同じBGR値のフレームを作成する
func NewUniformFrame(width, height int, b, g, r byte) Frame {
	data := make([]byte, width*height*3)
	for i := 0; i < len(data); i += 3 {
		data[i] = b
		data[i+1] = g
		data[i+2] = r
	}
	return Frame{Width: width, Height: height, Data: data}
}

// SetGray は (x, y) の画素を指定の輝度に設定する
func (f Frame) SetGray(x, y int, v byte) {
	i := (y*f.Width + x) * 3
	f.Data[i], f.Data[i+1], f.Data[i+2] = v, v, v
}

// HandleProps はオープン済みハンドルから読み取れる属性
type HandleProps struct {
	Width  int
	Height int
	FPS    int
}

// Identifier はカメラの論理識別子（デバイスパスまたは番号）
type Identifier struct {
	raw     string
	index   int
	isIndex bool
}

// IndexID は番号による識別子を作成する
func IndexID(n int) Identifier {
	return Identifier{raw: strconv.Itoa(n), index: n, isIndex: true}
}

// PathID は文字列（デバイスパスや数字文字列）による識別子を作成する
func PathID(s string) Identifier {
	return Identifier{raw: s}
}

// ParseIdentifier はリクエストで受け取った文字列を識別子にする
func ParseIdentifier(s string) Identifier {
	return PathID(strings.TrimSpace(s))
}

// String は識別子の文字列表現を返す
func (id Identifier) String() string {
	return id.raw
}

// IsZero は識別子が未設定かを返す
func (id Identifier) IsZero() bool {
	return !id.isIndex && id.raw == ""
}

// Index は番号識別子の場合にその番号を返す
func (id Identifier) Index() (int, bool) {
	return id.index, id.isIndex
}

// Normalize は数字のみの文字列を番号識別子に変換する
func (id Identifier) Normalize() Identifier {
	if id.isIndex {
		return id
	}
	if isDigits(id.raw) {
		if n, err := strconv.Atoi(id.raw); err == nil {
			return IndexID(n)
		}
	}
	return id
}

// Equivalent は正規化後に同じデバイスを指すかを返す
func (id Identifier) Equivalent(other Identifier) bool {
	return id.Normalize() == other.Normalize()
}

// Candidates はオープンを試す候補を優先順に返す
// 元の値が先頭、数字文字列なら整数形を2番目に加える
func (id Identifier) Candidates() []Identifier {
	candidates := []Identifier{id}
	if !id.isIndex && isDigits(id.raw) {
		if n := id.Normalize(); n.isIndex {
			candidates = append(candidates, n)
		}
	}
	return candidates
}

// MarshalJSON は番号なら数値、それ以外は文字列として出力する
func (id Identifier) MarshalJSON() ([]byte, error) {
	if id.isIndex {
		return json.Marshal(id.index)
	}
	return json.Marshal(id.raw)
}

// UnmarshalJSON は数値・文字列のどちらも受け付ける
func (id *Identifier) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*id = IndexID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*id = ParseIdentifier(s)
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
