package side

import (
	"math/rand"
	"testing"

	"nomisma/internal/camera"
)

// columnFrame は列ごとに輝度を指定したフレームを作る
func columnFrame(width, height int, level func(x int) byte) camera.Frame {
	frame := camera.NewUniformFrame(width, height, 0, 0, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			frame.SetGray(x, y, level(x))
		}
	}
	return frame
}

func TestClassifier_Detect(t *testing.T) {
	classifier := NewClassifier()

	tests := []struct {
		name      string
		frame     camera.Frame
		wantLabel Label
		minConf   float64
	}{
		{
			name: "symmetric band",
			frame: columnFrame(64, 32, func(x int) byte {
				if x >= 24 && x < 40 {
					return 200
				}
				return 30
			}),
			wantLabel: Reverse,
			minConf:   0.9,
		},
		{
			name: "left dark right bright",
			frame: columnFrame(64, 32, func(x int) byte {
				if x >= 32 {
					return 200
				}
				return 30
			}),
			wantLabel: Obverse,
			minConf:   0.9,
		},
		{
			name:      "uniform frame has no pattern",
			frame:     camera.NewUniformFrame(64, 32, 128, 128, 128),
			wantLabel: Unknown,
		},
		{
			name:      "empty frame",
			frame:     camera.Frame{},
			wantLabel: Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.Detect(tt.frame)
			if got.Label != tt.wantLabel {
				t.Errorf("Expected %s, got %s (%.3f)", tt.wantLabel, got.Label, got.Confidence)
			}
			if got.Confidence < tt.minConf {
				t.Errorf("Expected confidence >= %.2f, got %.3f", tt.minConf, got.Confidence)
			}
			if tt.wantLabel == Unknown && got.Confidence != 0 {
				t.Errorf("Unknown の信頼度は 0 であるべき: %.3f", got.Confidence)
			}
		})
	}
}

func TestClassifier_ConfidenceRange(t *testing.T) {
	classifier := NewClassifier()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 30; i++ {
		frame := camera.NewUniformFrame(8+rng.Intn(40), 8+rng.Intn(40), 0, 0, 0)
		rng.Read(frame.Data)

		got := classifier.Detect(frame)
		if got.Confidence < 0 || got.Confidence > 1 {
			t.Fatalf("confidence out of range: %+v", got)
		}
		switch got.Label {
		case Obverse, Reverse, Unknown:
		default:
			t.Fatalf("unexpected label: %q", got.Label)
		}
	}
}

func TestEstimateFromSymmetry(t *testing.T) {
	tests := []struct {
		symmetry  float64
		wantLabel Label
		wantConf  float64
	}{
		{1.0, Reverse, 1.0},
		{0.5, Reverse, 0.0},
		{0.75, Reverse, 0.5},
		{0.25, Obverse, 0.5},
		{0.0, Obverse, 1.0},
	}

	for _, tt := range tests {
		got := estimateFromSymmetry(tt.symmetry)
		if got.Label != tt.wantLabel || got.Confidence != tt.wantConf {
			t.Errorf("estimateFromSymmetry(%.2f) = %+v, want %s/%.2f", tt.symmetry, got, tt.wantLabel, tt.wantConf)
		}
	}
}
