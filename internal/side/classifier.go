// Package side は硬貨の表裏を推定する
//
// 推定はヒューリスティックであり、画像認識は行わない。
// 裏面（紋章・額面）は左右対称に近く、表面（肖像）は非対称になりやすい
// という傾向のみを利用する。
package side

import (
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"nomisma/internal/camera"
)

// Label は硬貨の面
type Label string

const (
	Obverse Label = "obverse" // 表
	Reverse Label = "reverse" // 裏
	Unknown Label = "unknown" // 不明
)

// 推定パラメータ
const (
	// MinEdgeDensity 未満のエッジ画素率では図柄がないとみなす
	MinEdgeDensity = 0.005

	cannyLow  = 50
	cannyHigh = 150

	// 輝度プロファイルの標準偏差がこれ以下なら平坦とみなす
	flatProfileStdDev = 1e-6
)

// Estimate は分類器の推定結果
type Estimate struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Detector はフレームから面を推定する
type Detector interface {
	Detect(frame camera.Frame) Estimate
}

// Classifier はミラー対称性による面の推定器
type Classifier struct{}

// NewClassifier は新しい Classifier を作成する
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Detect はフレームの面を推定する
// 判断材料が足りない場合は Unknown と信頼度 0 を返す
func (c *Classifier) Detect(frame camera.Frame) Estimate {
	unknown := Estimate{Label: Unknown}
	if frame.Empty() {
		return unknown
	}

	img, err := camera.FrameToMat(frame)
	if err != nil {
		return unknown
	}
	defer img.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	if edgeDensity(gray) < MinEdgeDensity {
		return unknown
	}

	profile := columnProfile(gray)
	if len(profile) < 2 || stat.StdDev(profile, nil) <= flatProfileStdDev {
		return unknown
	}

	return estimateFromSymmetry(mirrorSymmetry(profile))
}

// edgeDensity は Canny エッジ画素の割合を返す
func edgeDensity(gray gocv.Mat) float64 {
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, cannyLow, cannyHigh)

	total := gray.Rows() * gray.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(edges)) / float64(total)
}

// columnProfile は列ごとの平均輝度を返す
func columnProfile(gray gocv.Mat) []float64 {
	reduced := gocv.NewMat()
	defer reduced.Close()
	gocv.Reduce(gray, &reduced, 0, gocv.ReduceAvg, gocv.MatTypeCV64F)

	profile := make([]float64, reduced.Cols())
	for x := range profile {
		profile[x] = reduced.GetDoubleAt(0, x)
	}
	return profile
}

// mirrorSymmetry はプロファイルと左右反転との相関を [0,1] に写した値を返す
func mirrorSymmetry(profile []float64) float64 {
	mirrored := make([]float64, len(profile))
	for i, v := range profile {
		mirrored[len(profile)-1-i] = v
	}

	r := stat.Correlation(profile, mirrored, nil)
	if math.IsNaN(r) {
		return 0.5
	}
	return clamp((r+1)/2, 0, 1)
}

// estimateFromSymmetry は対称性スコアから面と信頼度を決める
func estimateFromSymmetry(symmetry float64) Estimate {
	if symmetry >= 0.5 {
		return Estimate{Label: Reverse, Confidence: clamp((symmetry-0.5)*2, 0, 1)}
	}
	return Estimate{Label: Obverse, Confidence: clamp((0.5-symmetry)*2, 0, 1)}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
