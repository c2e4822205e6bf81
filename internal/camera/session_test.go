package camera

import (
	"errors"
	"sync"
	"testing"
)

func newTestSession() (*Session, *MockBackend, *MockBackend) {
	selector, native, generic := newTestSelector()
	return NewSession(selector, DefaultSettings(), DefaultReadAttempts, nil), native, generic
}

func TestSession_OpenAndRead(t *testing.T) {
	session, native, _ := newTestSession()
	native.AddDevice(IndexID(0), MockDevice{Opened: true, Width: 4, Height: 2, Gray: 128})

	if err := session.Open(IndexID(0)); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer session.Close()

	frame, ok := session.ReadFrame()
	if !ok {
		t.Fatal("Expected frame")
	}
	if frame.Width != 4 || frame.Height != 2 || len(frame.Data) != 4*2*3 {
		t.Errorf("Unexpected frame: %dx%d (%d bytes)", frame.Width, frame.Height, len(frame.Data))
	}

	status := session.Status()
	if !status.Open || status.Identifier != IndexID(0) || status.Backend != BackendV4L2 {
		t.Errorf("Unexpected status: %+v", status)
	}
}

func TestSession_EnsureIsIdempotent(t *testing.T) {
	session, native, _ := newTestSession()
	native.AddDevice(PathID("2"), MockDevice{Opened: true})
	native.AddDevice(IndexID(2), MockDevice{Opened: true})

	if err := session.Ensure(PathID("2")); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	defer session.Close()

	// "2" と 2 は同じデバイスとして扱う
	if err := session.Ensure(IndexID(2)); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if err := session.Ensure(ParseIdentifier(" 2 ")); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	if opens := native.Opens(); len(opens) != 1 {
		t.Errorf("Expected a single open, got %v", opens)
	}
}

func TestSession_SwitchDeviceReleasesPrevious(t *testing.T) {
	session, native, _ := newTestSession()
	native.AddDevice(IndexID(0), MockDevice{Opened: true})
	native.AddDevice(IndexID(1), MockDevice{Opened: true})

	if err := session.Ensure(IndexID(0)); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if err := session.Ensure(IndexID(1)); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	if native.MaxLiveHandles() != 1 {
		t.Errorf("同時に開くハンドルは最大1つ: max=%d", native.MaxLiveHandles())
	}
	if session.Status().Identifier != IndexID(1) {
		t.Errorf("Expected device 1 to be open, got %+v", session.Status())
	}

	session.Close()
	if native.LiveHandles() != 0 {
		t.Errorf("Close 後はハンドルが残らないべき: live=%d", native.LiveHandles())
	}
}

func TestSession_OpenFailureLeavesSessionClosed(t *testing.T) {
	session, native, _ := newTestSession()
	native.AddDevice(IndexID(0), MockDevice{Opened: true})

	if err := session.Open(IndexID(0)); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	err := session.Open(IndexID(9))
	if !errors.Is(err, ErrDeviceUnopenable) {
		t.Fatalf("Expected ErrDeviceUnopenable, got %v", err)
	}

	if session.Status().Open {
		t.Error("オープン失敗後は閉じた状態であるべき")
	}
	if native.LiveHandles() != 0 {
		t.Errorf("以前のハンドルは解放されるべき: live=%d", native.LiveHandles())
	}
	if _, ok := session.ReadFrame(); ok {
		t.Error("閉じたセッションからは読めないべき")
	}
}

func TestSession_ReadFrameRetries(t *testing.T) {
	session, native, _ := newTestSession()
	native.AddDevice(IndexID(0), MockDevice{Opened: true})

	if err := session.Open(IndexID(0)); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer session.Close()

	// 一時的な失敗は吸収される
	native.SetReadFailures(IndexID(0), 1+DefaultReadAttempts-1)
	if _, ok := session.ReadFrame(); !ok {
		t.Error("Expected frame after transient failures")
	}

	// 常に失敗する場合は上限回数だけ試して false を返し、ハンドルは開いたまま
	native.SetReadFailures(IndexID(0), -1)
	before := native.Reads()
	if _, ok := session.ReadFrame(); ok {
		t.Error("Expected read to fail")
	}
	if reads := native.Reads() - before; reads != DefaultReadAttempts {
		t.Errorf("Expected exactly %d reads, got %d", DefaultReadAttempts, reads)
	}
	if !session.Status().Open {
		t.Error("読み取り失敗でハンドルを閉じないべき")
	}
}

func TestSession_AcquireExhausted(t *testing.T) {
	session, native, _ := newTestSession()
	native.AddDevice(IndexID(0), MockDevice{Opened: true})

	if err := session.Open(IndexID(0)); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer session.Close()
	native.SetReadFailures(IndexID(0), -1)

	before := native.Reads()
	_, err := session.Acquire(IndexID(0))
	if !errors.Is(err, ErrReadExhausted) {
		t.Fatalf("Expected ErrReadExhausted, got %v", err)
	}
	if reads := native.Reads() - before; reads != DefaultReadAttempts {
		t.Errorf("Expected exactly %d reads, got %d", DefaultReadAttempts, reads)
	}
	if len(native.Opens()) != 1 {
		t.Errorf("開いているデバイスは再オープンしないべき: %v", native.Opens())
	}
}

func TestSession_AcquireReturnsRequestedDevice(t *testing.T) {
	session, native, _ := newTestSession()
	grays := []byte{40, 200}
	for i, gray := range grays {
		native.AddDevice(IndexID(i), MockDevice{Opened: true, Gray: gray})
	}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			want := grays[n%2]
			frame, err := session.Acquire(IndexID(n % 2))
			if err != nil {
				t.Errorf("Acquire(%d) failed: %v", n%2, err)
				return
			}
			// 他の呼び出しがデバイスを切り替えても、要求したデバイスのフレームが返る
			if frame.Data[0] != want {
				t.Errorf("camera %d: expected gray %d, got %d", n%2, want, frame.Data[0])
			}
		}(i)
	}
	wg.Wait()
	session.Close()

	if native.MaxLiveHandles() != 1 {
		t.Errorf("同時に開くハンドルは最大1つ: max=%d", native.MaxLiveHandles())
	}
}

func TestSessionProber(t *testing.T) {
	session, native, _ := newTestSession()
	native.AddDevice(IndexID(0), MockDevice{Opened: true, Width: 1920, Height: 1080, FPS: 30})

	selector, _, _ := newTestSelector()
	prober := SessionProber{Session: session, Prober: selector}

	// 開いていなければ通常のプローブ（別のバックエンドには存在しない）
	if _, ok := prober.Probe(IndexID(0)); ok {
		t.Error("Expected probe through selector to fail")
	}

	if err := session.Open(IndexID(0)); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer session.Close()
	opens := len(native.Opens())

	for _, id := range []Identifier{IndexID(0), PathID("0"), PathID("/dev/video0")} {
		props, ok := prober.Probe(id)
		if !ok {
			t.Errorf("使用中のデバイスは利用可能と報告されるべき: %v", id)
			continue
		}
		if props.Width != 1920 || props.Height != 1080 || props.FPS != 30 {
			t.Errorf("Unexpected props for %v: %+v", id, props)
		}
	}
	if len(native.Opens()) != opens {
		t.Errorf("使用中のデバイスを開き直さないべき: %v", native.Opens())
	}

	if _, ok := prober.Probe(IndexID(1)); ok {
		t.Error("Expected other device to be probed normally")
	}
}

func TestSameDevice(t *testing.T) {
	tests := []struct {
		a, b Identifier
		want bool
	}{
		{IndexID(2), PathID("2"), true},
		{IndexID(2), PathID("/dev/video2"), true},
		{PathID("/dev/video2"), PathID("/dev/video2"), true},
		{IndexID(2), PathID("/dev/video12"), false},
		{PathID("/dev/media0"), IndexID(0), false},
		{Identifier{}, IndexID(0), false},
	}

	for _, tt := range tests {
		if got := sameDevice(tt.a, tt.b); got != tt.want {
			t.Errorf("sameDevice(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSession_CloseIsSafe(t *testing.T) {
	session, _, _ := newTestSession()

	session.Close()
	session.Close()

	if session.Status().Open {
		t.Error("Expected closed session")
	}
}

func TestSession_ConcurrentEnsure(t *testing.T) {
	session, native, _ := newTestSession()
	native.AddDevice(IndexID(0), MockDevice{Opened: true})
	native.AddDevice(IndexID(1), MockDevice{Opened: true})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = session.Ensure(IndexID(n % 2))
			session.ReadFrame()
		}(i)
	}
	wg.Wait()
	session.Close()

	if native.MaxLiveHandles() != 1 {
		t.Errorf("同時に開くハンドルは最大1つ: max=%d", native.MaxLiveHandles())
	}
}
