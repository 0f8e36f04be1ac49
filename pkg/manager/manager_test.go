package manager

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hunyuanocr/hunyuanocr-go/pkg/ocr"
)

// fakeRunner records executed commands and plays back canned responses
// keyed by the command's first distinctive argument.
type fakeRunner struct {
	calls     []string
	running   bool
	gpuOutput string
	failUp    bool
}

func (f *fakeRunner) run(ctx context.Context, dir, name string, args ...string) (string, error) {
	call := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, call)

	switch {
	case name == "docker" && len(args) > 0 && args[0] == "container":
		if f.running {
			return "true\n", nil
		}
		return "", errors.New("no such container")
	case name == "docker" && len(args) > 1 && args[1] == "up":
		if f.failUp {
			return "compose exploded", errors.New("exit status 1")
		}
		f.running = true
		return "", nil
	case name == "docker" && len(args) > 1 && args[1] == "stop":
		f.running = false
		return "", nil
	case name == "nvidia-smi":
		if f.gpuOutput == "" {
			return "", errors.New("nvidia-smi: not found")
		}
		return f.gpuOutput, nil
	}
	return "", nil
}

func (f *fakeRunner) sawCall(fragment string) bool {
	for _, c := range f.calls {
		if strings.Contains(c, fragment) {
			return true
		}
	}
	return false
}

func newTestManager(f *fakeRunner) *Manager {
	m := New(ocr.DefaultConfig(), Options{SkipWaitForReady: true})
	m.runCommand = f.run
	return m
}

func TestIsRunning(t *testing.T) {
	f := &fakeRunner{}
	m := newTestManager(f)

	if m.IsRunning(context.Background()) {
		t.Error("IsRunning = true for a stopped container")
	}
	f.running = true
	if !m.IsRunning(context.Background()) {
		t.Error("IsRunning = false for a running container")
	}
	if !f.sawCall("container inspect -f {{.State.Running}} hunyuan-ocr") {
		t.Errorf("unexpected inspect invocation, calls: %v", f.calls)
	}
}

func TestGPUMemory(t *testing.T) {
	f := &fakeRunner{gpuOutput: "18432, 24576\n"}
	m := newTestManager(f)

	mem, ok := m.GPUMemory(context.Background())
	if !ok {
		t.Fatal("GPUMemory not ok with valid output")
	}
	if mem.Used != 18432 || mem.Total != 24576 {
		t.Errorf("mem = %+v, want 18432/24576", mem)
	}

	f.gpuOutput = ""
	if _, ok := m.GPUMemory(context.Background()); ok {
		t.Error("GPUMemory ok without nvidia-smi")
	}

	f.gpuOutput = "garbage"
	if _, ok := m.GPUMemory(context.Background()); ok {
		t.Error("GPUMemory ok with unparseable output")
	}
}

func TestStartAndStop(t *testing.T) {
	f := &fakeRunner{}
	m := newTestManager(f)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !f.sawCall("compose up -d hunyuan-ocr") {
		t.Errorf("compose up not invoked, calls: %v", f.calls)
	}
	if !f.running {
		t.Error("container not running after Start")
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !f.sawCall("compose stop hunyuan-ocr") {
		t.Errorf("compose stop not invoked, calls: %v", f.calls)
	}
	if f.running {
		t.Error("container still running after Stop")
	}
}

func TestStartAlreadyRunning(t *testing.T) {
	f := &fakeRunner{running: true}
	m := newTestManager(f)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if f.sawCall("compose up") {
		t.Errorf("compose up invoked for an already-running container, calls: %v", f.calls)
	}
}

func TestStartFailure(t *testing.T) {
	f := &fakeRunner{failUp: true}
	m := newTestManager(f)

	err := m.Start(context.Background())
	if err == nil {
		t.Fatal("expected Start to fail")
	}
	if !strings.Contains(err.Error(), "failed to start server") {
		t.Errorf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "compose exploded") {
		t.Errorf("err = %v, expected command output in message", err)
	}
}

func TestCloseStopsOnlyWhenStartedByUs(t *testing.T) {
	// Manager never started the container: Close must leave it alone.
	f := &fakeRunner{running: true}
	m := newTestManager(f)
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if f.sawCall("compose stop") {
		t.Errorf("Close stopped a container it did not start, calls: %v", f.calls)
	}

	// Manager started it: Close stops it again.
	f2 := &fakeRunner{}
	m2 := newTestManager(f2)
	if err := m2.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m2.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !f2.sawCall("compose stop") {
		t.Errorf("Close did not stop the container it started, calls: %v", f2.calls)
	}
}

func TestClientIsStable(t *testing.T) {
	m := newTestManager(&fakeRunner{})
	defer m.Close()

	a := m.Client()
	b := m.Client()
	if a != b {
		t.Error("Client() returned different services across calls")
	}
}

func TestClientTracksActivityWhenWatchdogEnabled(t *testing.T) {
	m := New(ocr.DefaultConfig(), Options{
		SkipWaitForReady:  true,
		IdleTimeout:       time.Hour,
		IdleCheckInterval: time.Minute,
	})
	m.runCommand = (&fakeRunner{}).run
	defer m.Close()

	svc := m.Client()
	if _, ok := svc.(*trackingService); !ok {
		t.Fatalf("Client() = %T, want activity-tracking wrapper when idle shutdown is on", svc)
	}
}

// stubService counts OCR calls for tracking tests.
type stubService struct {
	ocr.Service
	calls int
}

func (s *stubService) OCRImage(ctx context.Context, img ocr.Image, opts *ocr.Options) (*ocr.Result, error) {
	s.calls++
	return &ocr.Result{Text: "ok"}, nil
}

func (s *stubService) HealthCheck(ctx context.Context) ocr.ServerStatus {
	return ocr.ServerStatus{Healthy: true, ModelLoaded: true}
}

func TestTrackingServiceRecordsActivity(t *testing.T) {
	w := NewIdleWatchdog(time.Hour, time.Minute, func() {})
	w.Start()
	defer w.Stop()

	svc := &trackingService{inner: &stubService{}, watchdog: w}

	before := w.idleFor()
	time.Sleep(20 * time.Millisecond)

	if _, err := svc.OCRImage(context.Background(), ocr.FromBytes(nil, ""), nil); err != nil {
		t.Fatal(err)
	}
	if after := w.idleFor(); after > before+10*time.Millisecond {
		t.Errorf("idle clock not reset by OCRImage: before=%v after=%v", before, after)
	}

	// Health probes must not reset the clock.
	time.Sleep(20 * time.Millisecond)
	idle := w.idleFor()
	svc.HealthCheck(context.Background())
	if w.idleFor() < idle {
		t.Error("HealthCheck reset the idle clock")
	}
}
