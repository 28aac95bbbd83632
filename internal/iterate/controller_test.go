package iterate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"epd-tuner/internal/fix"
	"epd-tuner/internal/layout"
)

// fakeSession serves a scripted sequence of analysis records; the last one
// repeats once the script runs out.
type fakeSession struct {
	analyses   []*layout.Analysis
	captures   []string
	reads      int
	captureErr error
}

func (f *fakeSession) CaptureToFile(prefix string) (string, error) {
	if f.captureErr != nil {
		return "", f.captureErr
	}
	f.captures = append(f.captures, prefix)
	return fmt.Sprintf("%s_20250101_120000.jpg", prefix), nil
}

func (f *fakeSession) AnalyzeFile(path string) (*layout.Analysis, error) {
	i := f.reads
	if i >= len(f.analyses) {
		i = len(f.analyses) - 1
	}
	f.reads++
	return f.analyses[i], nil
}

// fakeFixer applies directives of the configured kinds and refuses the rest.
type fakeFixer struct {
	automated map[fix.Kind]bool
	seen      []fix.Directive
}

func (f *fakeFixer) Apply(d fix.Directive) fix.Outcome {
	f.seen = append(f.seen, d)
	if f.automated[d.Kind] {
		return fix.Outcome{Kind: d.Kind, Applied: true, Param: "qrScale", Before: 7, After: 8}
	}
	return fix.Outcome{Kind: d.Kind, Applied: false, Reason: "no automated rewrite rule"}
}

type fakeToolchain struct {
	builds   int
	flashes  int
	settles  int
	buildErr error
	flashErr error
}

func (f *fakeToolchain) Build(ctx context.Context) error { f.builds++; return f.buildErr }
func (f *fakeToolchain) Flash(ctx context.Context) error { f.flashes++; return f.flashErr }
func (f *fakeToolchain) Settle(ctx context.Context) error { f.settles++; return nil }

func cleanAnalysis() *layout.Analysis {
	a := &layout.Analysis{
		Brightness:      150,
		Contrast:        45,
		Issues:          []string{},
		Recommendations: []string{},
	}
	a.Regions.QRCode = &layout.Region{X: 570, Y: 65, W: 110, H: 110, Area: 12100}
	a.Regions.Text = make([]layout.Region, 6)
	return a
}

func smallQRAnalysis() *layout.Analysis {
	a := cleanAnalysis()
	a.Regions.QRCode = &layout.Region{X: 570, Y: 65, W: 90, H: 90, Area: 8100}
	return a
}

func lowContrastAnalysis() *layout.Analysis {
	a := cleanAnalysis()
	a.Contrast = 12
	a.Issues = []string{"Low contrast - display may not have refreshed"}
	return a
}

func newTestController(t *testing.T, session *fakeSession, fixer *fakeFixer, tc *fakeToolchain) (*Controller, *Log) {
	t.Helper()
	log, err := LoadLog(filepath.Join(t.TempDir(), "iteration_log.json"))
	if err != nil {
		t.Fatalf("LoadLog failed: %v", err)
	}
	params := Params{MaxIterations: 5, StabilizeSeconds: 0, LogPath: log.Path()}
	deps := Deps{
		Session:   session,
		Engine:    fixer,
		Toolchain: tc,
		Log:       log,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return NewController(deps, params, fix.DefaultClassifyParams()), log
}

func TestRunPerfectOnFirstIteration(t *testing.T) {
	session := &fakeSession{analyses: []*layout.Analysis{cleanAnalysis()}}
	tc := &fakeToolchain{}
	ctrl, log := newTestController(t, session, &fakeFixer{}, tc)

	state, err := ctrl.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state != StatePerfect {
		t.Fatalf("expected %s, got %s", StatePerfect, state)
	}
	if tc.builds != 0 || tc.flashes != 0 {
		t.Errorf("a clean layout must not rebuild or reflash (builds=%d flashes=%d)", tc.builds, tc.flashes)
	}
	if log.Len() != 1 {
		t.Fatalf("expected 1 logged iteration, got %d", log.Len())
	}
	rec := log.Entries()[0]
	if rec.Status != StatusPerfect || rec.Iteration != 1 {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Fixes == nil || len(rec.Fixes) != 0 {
		t.Errorf("expected an empty fixes list, got %v", rec.Fixes)
	}
	if len(session.captures) != 1 || session.captures[0] != "iter001" {
		t.Errorf("expected a single iter001 capture, got %v", session.captures)
	}
}

func TestRunManualStopWithoutBuilding(t *testing.T) {
	session := &fakeSession{analyses: []*layout.Analysis{lowContrastAnalysis()}}
	tc := &fakeToolchain{}
	ctrl, log := newTestController(t, session, &fakeFixer{}, tc)

	state, err := ctrl.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state != StateManual {
		t.Fatalf("expected %s, got %s", StateManual, state)
	}
	if tc.builds != 0 || tc.flashes != 0 {
		t.Errorf("manual-only directives must not rebuild (builds=%d flashes=%d)", tc.builds, tc.flashes)
	}

	rec := log.Entries()[0]
	if rec.Status != StatusManualNeeded {
		t.Errorf("expected status %s, got %s", StatusManualNeeded, rec.Status)
	}
	if len(rec.Outcomes) != 1 || rec.Outcomes[0].Applied {
		t.Errorf("the refused outcome must be recorded, got %+v", rec.Outcomes)
	}
}

func TestRunImprovedThenPerfect(t *testing.T) {
	session := &fakeSession{analyses: []*layout.Analysis{smallQRAnalysis(), cleanAnalysis()}}
	fixer := &fakeFixer{automated: map[fix.Kind]bool{fix.KindQRTooSmall: true}}
	tc := &fakeToolchain{}
	ctrl, log := newTestController(t, session, fixer, tc)

	state, err := ctrl.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state != StatePerfect {
		t.Fatalf("expected %s, got %s", StatePerfect, state)
	}
	if tc.builds != 1 || tc.flashes != 1 || tc.settles != 1 {
		t.Errorf("expected one build/flash/settle cycle, got builds=%d flashes=%d settles=%d",
			tc.builds, tc.flashes, tc.settles)
	}
	if log.Len() != 2 {
		t.Fatalf("expected 2 logged iterations, got %d", log.Len())
	}
	if s := log.Entries()[0].Status; s != StatusImproved {
		t.Errorf("iteration 1: expected %s, got %s", StatusImproved, s)
	}
	if s := log.Entries()[1].Status; s != StatusPerfect {
		t.Errorf("iteration 2: expected %s, got %s", StatusPerfect, s)
	}
	if session.captures[0] != "iter001" || session.captures[1] != "iter002" {
		t.Errorf("unexpected capture prefixes %v", session.captures)
	}
}

func TestRunBuildFailureStopsWithoutFlashing(t *testing.T) {
	session := &fakeSession{analyses: []*layout.Analysis{smallQRAnalysis()}}
	fixer := &fakeFixer{automated: map[fix.Kind]bool{fix.KindQRTooSmall: true}}
	tc := &fakeToolchain{buildErr: errors.New("firmware build failed: undefined reference to qrScale")}
	ctrl, log := newTestController(t, session, fixer, tc)

	state, err := ctrl.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("a recorded toolchain failure is not a run error: %v", err)
	}
	if state != StateFailed {
		t.Fatalf("expected %s, got %s", StateFailed, state)
	}
	if tc.flashes != 0 {
		t.Errorf("a failed build must never flash, got %d flashes", tc.flashes)
	}

	rec := log.Entries()[0]
	if rec.Status != StatusFailedFlash {
		t.Errorf("expected status %s, got %s", StatusFailedFlash, rec.Status)
	}
	if rec.Error != tc.buildErr.Error() {
		t.Errorf("expected the build error recorded verbatim, got %q", rec.Error)
	}
}

func TestRunBudgetExhaustedKeepsIterating(t *testing.T) {
	session := &fakeSession{analyses: []*layout.Analysis{smallQRAnalysis()}}
	fixer := &fakeFixer{automated: map[fix.Kind]bool{fix.KindQRTooSmall: true}}
	tc := &fakeToolchain{}
	ctrl, log := newTestController(t, session, fixer, tc)

	state, err := ctrl.Run(context.Background(), 3)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state != StateImproved {
		t.Fatalf("expected the run to end %s at budget, got %s", StateImproved, state)
	}
	if log.Len() != 3 {
		t.Errorf("expected 3 logged iterations, got %d", log.Len())
	}
	if tc.builds != 3 {
		t.Errorf("expected 3 builds, got %d", tc.builds)
	}
}

func TestRunResumesIterationNumbering(t *testing.T) {
	session := &fakeSession{analyses: []*layout.Analysis{cleanAnalysis()}}
	ctrl, log := newTestController(t, session, &fakeFixer{}, &fakeToolchain{})

	for i := 1; i <= 3; i++ {
		if err := log.Append(Record{Iteration: i, Status: StatusImproved, Fixes: []fix.Directive{}}); err != nil {
			t.Fatalf("seed append failed: %v", err)
		}
	}

	if _, err := ctrl.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	rec := log.Entries()[log.Len()-1]
	if rec.Iteration != 4 {
		t.Errorf("expected numbering to resume at 4, got %d", rec.Iteration)
	}
	if session.captures[0] != "iter004" {
		t.Errorf("expected capture prefix iter004, got %s", session.captures[0])
	}
}

func TestRunCaptureFailureIsAHardStop(t *testing.T) {
	session := &fakeSession{captureErr: errors.New("camera capture failed: device 0")}
	ctrl, log := newTestController(t, session, &fakeFixer{}, &fakeToolchain{})

	if _, err := ctrl.Run(context.Background(), 0); err == nil {
		t.Fatal("expected a capture failure to abort the run")
	}
	if log.Len() != 0 {
		t.Errorf("an aborted iteration must not be recorded, got %d entries", log.Len())
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := &fakeSession{analyses: []*layout.Analysis{cleanAnalysis()}}
	ctrl, _ := newTestController(t, session, &fakeFixer{}, &fakeToolchain{})
	ctrl.params.StabilizeSeconds = 1

	if _, err := ctrl.Run(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
