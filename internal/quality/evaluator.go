// Package quality は撮影フレームのピント・明るさを評価する
package quality

import (
	"gocv.io/x/gocv"

	"nomisma/internal/camera"
)

// 判定しきい値（リングライト照明下での硬貨接写向けに調整済み）
const (
	BlurThreshold   = 120.0 // ラプラシアン分散がこれ未満ならピンぼけ
	DarkThreshold   = 50.0  // 平均輝度がこれ未満なら暗すぎ
	BrightThreshold = 205.0 // 平均輝度がこれを超えたら明るすぎ
)

// Metrics はフレームの品質評価結果
type Metrics struct {
	BlurScore  float64 `json:"blur_score"`
	Brightness float64 `json:"brightness"`
	IsBlurry   bool    `json:"is_blurry"`
	IsDark     bool    `json:"is_dark"`
	IsBright   bool    `json:"is_bright"`
	OK         bool    `json:"ok"`
}

// Evaluate はフレームのピントと明るさを評価する
// 副作用はなく、同じフレームには常に同じ結果を返す
func Evaluate(frame camera.Frame) Metrics {
	if frame.Empty() {
		return newMetrics(0, 0)
	}

	img, err := camera.FrameToMat(frame)
	if err != nil {
		return newMetrics(0, 0)
	}
	defer img.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	return newMetrics(laplacianVariance(gray), gray.Mean().Val1)
}

// newMetrics はスコアから判定フラグを導出する
// OK はここでのみ設定する
func newMetrics(blurScore, brightness float64) Metrics {
	m := Metrics{
		BlurScore:  blurScore,
		Brightness: brightness,
		IsBlurry:   IsBlurry(blurScore),
		IsDark:     IsDark(brightness),
		IsBright:   IsBright(brightness),
	}
	m.OK = !(m.IsBlurry || m.IsDark || m.IsBright)
	return m
}

// IsBlurry はピンぼけ判定
func IsBlurry(blurScore float64) bool {
	return blurScore < BlurThreshold
}

// IsDark は暗すぎ判定
func IsDark(brightness float64) bool {
	return brightness < DarkThreshold
}

// IsBright は明るすぎ判定
func IsBright(brightness float64) bool {
	return brightness > BrightThreshold
}

// laplacianVariance はラプラシアン応答の分散を返す
func laplacianVariance(gray gocv.Mat) float64 {
	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(lap, &mean, &stddev)

	sd := stddev.GetDoubleAt(0, 0)
	return sd * sd
}
