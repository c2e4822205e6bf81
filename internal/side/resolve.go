package side

import "strings"

// ConfidenceThreshold 未満の推定は採用せず Unknown とする
const ConfidenceThreshold = 0.6

// Resolution は呼び出し側に返す最終的な面の情報
type Resolution struct {
	Label         Label   `json:"label"`          // 採用した面
	DetectedLabel Label   `json:"detected_label"` // 分類器の推定
	Confidence    float64 `json:"confidence"`     // 分類器の信頼度
}

// ParseHint は利用者指定の面を解釈する。表・裏以外は false
func ParseHint(hint string) (Label, bool) {
	switch Label(strings.ToLower(strings.TrimSpace(hint))) {
	case Obverse:
		return Obverse, true
	case Reverse:
		return Reverse, true
	default:
		return Unknown, false
	}
}

// Resolve は利用者指定と推定結果から採用する面を決める
// 指定があれば常に優先し、なければ信頼度がしきい値以上の推定のみ採用する
func Resolve(hint string, estimate Estimate) Resolution {
	resolution := Resolution{
		Label:         Unknown,
		DetectedLabel: estimate.Label,
		Confidence:    estimate.Confidence,
	}
	if resolution.DetectedLabel == "" {
		resolution.DetectedLabel = Unknown
	}

	if label, ok := ParseHint(hint); ok {
		resolution.Label = label
		return resolution
	}

	if resolution.DetectedLabel != Unknown && estimate.Confidence >= ConfidenceThreshold {
		resolution.Label = resolution.DetectedLabel
	}
	return resolution
}
