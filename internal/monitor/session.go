// Package monitor owns a capture session: the open camera, the detection
// and analysis parameters, and the per-capture artifact fan-out shared by
// the single-capture, continuous-monitor, and iteration modes.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"epd-tuner/internal/display"
	"epd-tuner/internal/layout"
)

// Params configures capture artifact placement and the monitor cadence.
type Params struct {
	// Dir receives captured images and their sibling artifacts.
	Dir string `json:"dir"`

	// IntervalSeconds is the default wait between monitor-mode captures.
	IntervalSeconds float64 `json:"interval_seconds"`
}

// DefaultParams returns the capture settings.
func DefaultParams() Params {
	return Params{Dir: "captures", IntervalSeconds: 5}
}

// FrameGrabber is the camera surface the session needs.
type FrameGrabber interface {
	Capture() (gocv.Mat, error)
}

// Session runs capture and analysis against one opened camera. The camera's
// lifecycle belongs to the caller; the session never closes it. Sessions
// without a camera can still analyze existing images.
type Session struct {
	cam     FrameGrabber
	display display.Params
	layout  layout.Params
	params  Params
	logger  *slog.Logger

	last *layout.Analysis // inspection only, never drives decisions
	now  func() time.Time
}

// NewSession wires a session from explicit parameters. cam may be nil for
// analyze-only use.
func NewSession(cam FrameGrabber, dp display.Params, lp layout.Params, p Params, logger *slog.Logger) *Session {
	return &Session{
		cam:     cam,
		display: dp,
		layout:  lp,
		params:  p,
		logger:  logger,
		now:     time.Now,
	}
}

// LastAnalysis returns the most recent analysis, for inspection.
func (s *Session) LastAnalysis() *layout.Analysis { return s.last }

// CaptureToFile grabs one frame and writes it under the captures directory
// as <prefix>_<timestamp>.jpg, returning the image path.
func (s *Session) CaptureToFile(prefix string) (string, error) {
	if s.cam == nil {
		return "", fmt.Errorf("no camera attached to session")
	}
	if prefix == "" {
		prefix = "capture"
	}

	frame, err := s.cam.Capture()
	if err != nil {
		return "", err
	}
	defer frame.Close()

	if err := os.MkdirAll(s.params.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create captures dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s.jpg", prefix, s.now().Format("20060102_150405"))
	path := filepath.Join(s.params.Dir, name)
	if ok := gocv.IMWrite(path, frame); !ok {
		return "", fmt.Errorf("failed to write capture %s", path)
	}
	s.logger.Info("frame captured", "path", path)
	return path, nil
}

// AnalyzeFile analyzes an image on disk and writes the sibling artifacts
// next to it: <stem>_display.jpg, <stem>_analysis.json, <stem>_report.txt.
func (s *Session) AnalyzeFile(path string) (*layout.Analysis, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return nil, fmt.Errorf("failed to load image %s", path)
	}
	defer img.Close()

	crop, bbox, found := display.Detect(img, s.display)
	defer crop.Close()
	if found {
		s.logger.Info("display detected",
			"x", bbox.X, "y", bbox.Y, "width", bbox.Width, "height", bbox.Height)
	} else {
		s.logger.Warn("no display detected, using full frame")
	}

	stem := strings.TrimSuffix(path, filepath.Ext(path))
	cropPath := stem + "_display.jpg"
	if ok := gocv.IMWrite(cropPath, crop); !ok {
		return nil, fmt.Errorf("failed to write cropped display %s", cropPath)
	}

	analysis := layout.Analyze(crop, s.layout)
	analysis.Timestamp = s.now()
	analysis.Image = path
	analysis.DisplayCropped = cropPath
	analysis.DisplayBBox = bbox
	analysis.DisplaySize = bbox.Size()

	if err := analysis.Save(stem + "_analysis.json"); err != nil {
		return nil, err
	}
	if err := os.WriteFile(stem+"_report.txt", []byte(layout.Report(&analysis)), 0644); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	s.last = &analysis
	s.logger.Info("analysis complete",
		"image", path,
		"brightness", analysis.Brightness,
		"contrast", analysis.Contrast,
		"text_regions", len(analysis.Regions.Text),
		"issues", len(analysis.Issues))
	return &analysis, nil
}

// CaptureAndAnalyze is the single-capture entry point: capture one frame,
// analyze it, persist all artifacts.
func (s *Session) CaptureAndAnalyze(prefix string) (*layout.Analysis, error) {
	path, err := s.CaptureToFile(prefix)
	if err != nil {
		return nil, err
	}
	return s.AnalyzeFile(path)
}

// Monitor captures and analyzes on a fixed cadence until ctx is done. A
// zero or negative interval falls back to the configured default. The
// optional onAnalysis hook runs after each capture.
func (s *Session) Monitor(ctx context.Context, interval time.Duration, onAnalysis func(*layout.Analysis)) error {
	if interval <= 0 {
		interval = time.Duration(s.params.IntervalSeconds * float64(time.Second))
	}
	s.logger.Info("starting monitor loop", "interval", interval.String())

	for count := 1; ; count++ {
		a, err := s.CaptureAndAnalyze(fmt.Sprintf("monitor_%03d", count))
		if err != nil {
			return err
		}
		if onAnalysis != nil {
			onAnalysis(a)
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			s.logger.Info("monitor loop stopped", "captures", count)
			return nil
		}
	}
}
