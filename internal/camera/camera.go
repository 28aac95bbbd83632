// Package camera acquires still frames of the physical display from a video device.
package camera

import (
	"errors"
	"fmt"
	"log/slog"

	"gocv.io/x/gocv"
)

var (
	// ErrDeviceUnavailable means no camera responded on the configured
	// index or its fallback.
	ErrDeviceUnavailable = errors.New("no camera device available")

	// ErrCaptureFailed means an opened camera returned no frame.
	ErrCaptureFailed = errors.New("camera returned no frame")
)

// Params configures device selection and capture resolution.
type Params struct {
	// Index is the video device opened first.
	Index int `json:"index"`

	// Fallback is tried exactly once when Index fails to open.
	Fallback int `json:"fallback"`

	// Requested capture resolution.
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultParams returns capture settings suited to a laptop camera pointed
// at an 800x480 e-paper panel.
func DefaultParams() Params {
	return Params{
		Index:    0,
		Fallback: 1,
		Width:    1280,
		Height:   720,
	}
}

// Camera owns one opened video device for the lifetime of a run. It is not
// safe for concurrent use; the capture pipeline is strictly sequential.
type Camera struct {
	cap    *gocv.VideoCapture
	index  int
	logger *slog.Logger
}

// Open acquires the device at p.Index, trying p.Fallback exactly once if
// that fails. Both failing returns ErrDeviceUnavailable.
func Open(p Params, logger *slog.Logger) (*Camera, error) {
	for _, idx := range []int{p.Index, p.Fallback} {
		cap, err := gocv.VideoCaptureDevice(idx)
		if err != nil || !cap.IsOpened() {
			if cap != nil {
				cap.Close()
			}
			logger.Warn("camera open failed", "index", idx)
			continue
		}
		cap.Set(gocv.VideoCaptureFrameWidth, float64(p.Width))
		cap.Set(gocv.VideoCaptureFrameHeight, float64(p.Height))
		logger.Info("camera opened", "index", idx, "width", p.Width, "height", p.Height)
		return &Camera{cap: cap, index: idx, logger: logger}, nil
	}
	return nil, fmt.Errorf("%w: tried indexes %d and %d", ErrDeviceUnavailable, p.Index, p.Fallback)
}

// Index reports which device index was actually opened.
func (c *Camera) Index() int { return c.index }

// Capture reads one BGR frame. The caller owns the returned Mat and must
// close it. On error the returned Mat is invalid and must not be used.
func (c *Camera) Capture() (gocv.Mat, error) {
	if c.cap == nil {
		return gocv.Mat{}, fmt.Errorf("%w: camera is closed", ErrCaptureFailed)
	}
	frame := gocv.NewMat()
	if ok := c.cap.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return gocv.Mat{}, fmt.Errorf("%w: device index %d", ErrCaptureFailed, c.index)
	}
	return frame, nil
}

// Close releases the device. Safe to call multiple times and after a
// failed open.
func (c *Camera) Close() error {
	if c == nil || c.cap == nil {
		return nil
	}
	err := c.cap.Close()
	c.cap = nil
	c.logger.Info("camera released", "index", c.index)
	return err
}
