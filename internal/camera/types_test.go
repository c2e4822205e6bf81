package camera

import (
	"encoding/json"
	"testing"
)

func TestIdentifier_Equivalent(t *testing.T) {
	tests := []struct {
		a, b Identifier
		want bool
	}{
		{PathID("2"), IndexID(2), true},
		{IndexID(2), PathID("2"), true},
		{PathID("02"), IndexID(2), true},
		{PathID("/dev/video2"), IndexID(2), false},
		{PathID("/dev/video0"), PathID("/dev/video0"), true},
		{IndexID(0), IndexID(1), false},
	}

	for _, tt := range tests {
		if got := tt.a.Equivalent(tt.b); got != tt.want {
			t.Errorf("%q.Equivalent(%q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestParseIdentifier(t *testing.T) {
	id := ParseIdentifier("  /dev/video0 ")
	if id.String() != "/dev/video0" {
		t.Errorf("Expected trimmed path, got %q", id.String())
	}
	if _, ok := id.Index(); ok {
		t.Error("パス識別子は番号ではない")
	}
	if !ParseIdentifier("").IsZero() {
		t.Error("Expected zero identifier")
	}
	if IndexID(0).IsZero() {
		t.Error("番号 0 はゼロ値ではない")
	}
}

func TestIdentifier_JSON(t *testing.T) {
	descriptor := DeviceDescriptor{
		ID:               IndexID(0),
		Name:             "USB Microscope",
		Kind:             KindVideo,
		Device:           "/dev/video0",
		LinkedVideoNodes: []string{},
	}

	data, err := json.Marshal(descriptor)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if raw["identifier"] != float64(0) {
		t.Errorf("番号識別子は数値として出力されるべき: %v", raw["identifier"])
	}
	if raw["resolution"] != nil {
		t.Errorf("Expected null resolution, got %v", raw["resolution"])
	}
	if v, ok := raw["frame_rate"]; !ok || v != nil {
		t.Errorf("プローブ前のフレームレートは null であるべき: %v", v)
	}

	var ids []Identifier
	if err := json.Unmarshal([]byte(`[3, "/dev/media0"]`), &ids); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if ids[0] != IndexID(3) || ids[1] != PathID("/dev/media0") {
		t.Errorf("Unexpected identifiers: %v", ids)
	}
}

func TestFrame_Empty(t *testing.T) {
	if !(Frame{}).Empty() {
		t.Error("zero frame should be empty")
	}
	if !(Frame{Width: 2, Height: 2, Data: make([]byte, 5)}).Empty() {
		t.Error("short buffer should be empty")
	}

	frame := NewUniformFrame(2, 2, 1, 2, 3)
	if frame.Empty() {
		t.Error("uniform frame should not be empty")
	}
	frame.SetGray(1, 1, 9)
	if frame.Data[9] != 9 || frame.Data[10] != 9 || frame.Data[11] != 9 {
		t.Errorf("SetGray did not update pixel: %v", frame.Data[9:])
	}
}
