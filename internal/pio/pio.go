// Package pio drives the external PlatformIO build and upload toolchain.
package pio

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Params configures the toolchain invocation.
type Params struct {
	// Bin is the PlatformIO executable.
	Bin string `json:"bin"`

	// Env is the build environment passed as -e.
	Env string `json:"env"`

	// Dir is the firmware project directory the commands run in.
	Dir string `json:"dir"`

	// SettleSeconds is the post-flash wait for device boot and e-ink
	// refresh before the display is considered stable.
	SettleSeconds float64 `json:"settle_seconds"`
}

// DefaultParams returns the invocation settings for the reference device.
func DefaultParams() Params {
	return Params{
		Bin:           "pio",
		Env:           "trmnl",
		Dir:           "firmware",
		SettleSeconds: 10,
	}
}

// BuildError reports a failed build with the captured stderr, verbatim.
type BuildError struct {
	Stderr string
	Err    error
}

func (e *BuildError) Error() string {
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return "firmware build failed: " + s
	}
	return "firmware build failed: " + e.Err.Error()
}

func (e *BuildError) Unwrap() error { return e.Err }

// FlashError reports a failed upload with the captured stderr, verbatim.
type FlashError struct {
	Stderr string
	Err    error
}

func (e *FlashError) Error() string {
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return "firmware flash failed: " + s
	}
	return "firmware flash failed: " + e.Err.Error()
}

func (e *FlashError) Unwrap() error { return e.Err }

// Runner invokes the external build and flash commands. No retries live at
// this layer; failures are reported upward for the controller to decide.
type Runner struct {
	params Params
	logger *slog.Logger
}

// NewRunner builds a runner for the configured firmware project.
func NewRunner(p Params, logger *slog.Logger) *Runner {
	return &Runner{params: p, logger: logger}
}

// Build compiles the firmware. A non-zero exit returns *BuildError.
func (r *Runner) Build(ctx context.Context) error {
	r.logger.Info("building firmware", "env", r.params.Env)
	stderr, err := r.run(ctx, "run", "-e", r.params.Env)
	if err != nil {
		return &BuildError{Stderr: stderr, Err: err}
	}
	r.logger.Info("build succeeded")
	return nil
}

// Flash uploads the firmware to the device. A non-zero exit returns
// *FlashError.
func (r *Runner) Flash(ctx context.Context) error {
	r.logger.Info("flashing firmware", "env", r.params.Env)
	stderr, err := r.run(ctx, "run", "-t", "upload", "-e", r.params.Env)
	if err != nil {
		return &FlashError{Stderr: stderr, Err: err}
	}
	r.logger.Info("flash succeeded")
	return nil
}

// Settle waits the configured post-flash delay. Only context cancellation
// interrupts the wait.
func (r *Runner) Settle(ctx context.Context) error {
	d := time.Duration(r.params.SettleSeconds * float64(time.Second))
	r.logger.Info("waiting for device to settle", "seconds", r.params.SettleSeconds)
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BuildAndFlash runs build, then flash, then the settle wait. A build
// failure returns before the flash command is ever started.
func (r *Runner) BuildAndFlash(ctx context.Context) error {
	if err := r.Build(ctx); err != nil {
		return err
	}
	if err := r.Flash(ctx); err != nil {
		return err
	}
	return r.Settle(ctx)
}

func (r *Runner) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.params.Bin, args...)
	cmd.Dir = r.params.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		r.logger.Error("toolchain command failed",
			"args", strings.Join(args, " "), "error", err)
		return stderr.String(), err
	}
	return stderr.String(), nil
}
