// Package iterate runs the capture-analyze-correct-reflash feedback loop
// and persists one record per iteration.
package iterate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"epd-tuner/internal/fix"
	"epd-tuner/internal/layout"
)

// Session captures display photos and produces analysis records with their
// sibling artifacts.
type Session interface {
	CaptureToFile(prefix string) (string, error)
	AnalyzeFile(path string) (*layout.Analysis, error)
}

// Fixer applies one fix directive to the firmware source.
type Fixer interface {
	Apply(d fix.Directive) fix.Outcome
}

// Toolchain rebuilds and reflashes the firmware.
type Toolchain interface {
	Build(ctx context.Context) error
	Flash(ctx context.Context) error
	Settle(ctx context.Context) error
}

// Params bounds the loop.
type Params struct {
	// MaxIterations bounds one run.
	MaxIterations int `json:"max_iterations"`

	// StabilizeSeconds is the pre-capture wait for the display to finish
	// refreshing.
	StabilizeSeconds float64 `json:"stabilize_seconds"`

	// LogPath is the iteration history file.
	LogPath string `json:"log_path"`
}

// DefaultParams returns the loop settings used against the reference device.
func DefaultParams() Params {
	return Params{
		MaxIterations:    5,
		StabilizeSeconds: 3,
		LogPath:          "iteration_log.json",
	}
}

// Deps are the collaborators the controller drives.
type Deps struct {
	Session   Session
	Engine    Fixer
	Toolchain Toolchain
	Log       *Log
	Logger    *slog.Logger
}

// Controller is the iteration state machine: capture → analyze → classify →
// fix → build/flash → settle, until the layout is accepted, a failure
// stops the run, or the budget runs out.
type Controller struct {
	deps     Deps
	params   Params
	classify fix.ClassifyParams
	state    State
}

// NewController wires a controller from explicit collaborators and params.
func NewController(deps Deps, p Params, classify fix.ClassifyParams) *Controller {
	return &Controller{deps: deps, params: p, classify: classify, state: StateIdle}
}

// State returns the controller's current phase.
func (c *Controller) State() State { return c.state }

// Run executes up to maxIterations iterations; zero or negative falls back
// to the configured default. The returned state is the last terminal state
// reached. Hard stops (device failure, cancellation, unpersistable log)
// return an error; toolchain and manual stops are normal terminations with
// their outcome recorded.
func (c *Controller) Run(ctx context.Context, maxIterations int) (State, error) {
	if maxIterations <= 0 {
		maxIterations = c.params.MaxIterations
	}
	log := c.deps.Logger
	log.Info("starting iteration run",
		"max_iterations", maxIterations,
		"previous_iterations", c.deps.Log.Len(),
		"log", c.deps.Log.Path())

	last := StateIdle
	for i := 0; i < maxIterations; i++ {
		state, err := c.runIteration(ctx)
		if err != nil {
			return state, err
		}
		last = state

		switch state {
		case StatePerfect:
			log.Info("layout accepted, run complete")
			return state, nil
		case StateManual:
			log.Warn("manual intervention needed, run stopped")
			return state, nil
		case StateFailed:
			log.Error("toolchain failure, run stopped")
			return state, nil
		case StateImproved:
			log.Info("layout improved, continuing")
		}
	}

	log.Info("iteration budget exhausted", "iterations", c.deps.Log.Len())
	return last, nil
}

func (c *Controller) runIteration(ctx context.Context) (State, error) {
	number := c.deps.Log.NextIteration()
	rec := Record{
		Iteration: number,
		Timestamp: time.Now(),
		Status:    StatusStarted,
	}
	c.deps.Logger.Info("iteration started", "iteration", number)

	c.transition(StateCapturing)
	if err := c.stabilize(ctx); err != nil {
		return c.state, err
	}
	path, err := c.deps.Session.CaptureToFile(fmt.Sprintf("iter%03d", number))
	if err != nil {
		return c.state, fmt.Errorf("iteration %d capture: %w", number, err)
	}

	c.transition(StateAnalyzing)
	analysis, err := c.deps.Session.AnalyzeFile(path)
	if err != nil {
		return c.state, fmt.Errorf("iteration %d analysis: %w", number, err)
	}
	rec.Analysis = analysis

	c.transition(StateClassifying)
	directives := fix.Classify(analysis, c.classify)
	rec.Fixes = directives
	c.deps.Logger.Info("iteration classified",
		"iteration", number,
		"issues", len(analysis.Issues),
		"fixes", len(directives))

	if len(directives) == 0 {
		rec.Status = StatusPerfect
		return c.finish(StatePerfect, rec)
	}

	c.transition(StateFixing)
	applied := 0
	rec.Outcomes = make([]fix.Outcome, 0, len(directives))
	for _, d := range directives {
		out := c.deps.Engine.Apply(d)
		if out.Applied {
			applied++
		}
		rec.Outcomes = append(rec.Outcomes, out)
	}

	if applied == 0 {
		rec.Status = StatusManualNeeded
		return c.finish(StateManual, rec)
	}

	c.transition(StateBuilding)
	if err := c.deps.Toolchain.Build(ctx); err != nil {
		return c.toolchainFailure(ctx, rec, err)
	}
	if err := c.deps.Toolchain.Flash(ctx); err != nil {
		return c.toolchainFailure(ctx, rec, err)
	}

	c.transition(StateSettling)
	if err := c.deps.Toolchain.Settle(ctx); err != nil {
		return c.state, err
	}

	rec.Status = StatusImproved
	return c.finish(StateImproved, rec)
}

// toolchainFailure records a build or flash failure unless the run was
// cancelled, in which case cancellation wins.
func (c *Controller) toolchainFailure(ctx context.Context, rec Record, err error) (State, error) {
	if ctx.Err() != nil {
		return c.state, ctx.Err()
	}
	rec.Status = StatusFailedFlash
	rec.Error = err.Error()
	return c.finish(StateFailed, rec)
}

// finish appends the record before the loop may move on; the log write must
// land before control returns.
func (c *Controller) finish(terminal State, rec Record) (State, error) {
	c.transition(terminal)
	if err := c.deps.Log.Append(rec); err != nil {
		return terminal, fmt.Errorf("failed to persist iteration %d: %w", rec.Iteration, err)
	}
	c.deps.Logger.Info("iteration recorded",
		"iteration", rec.Iteration, "status", rec.Status)
	return terminal, nil
}

func (c *Controller) stabilize(ctx context.Context) error {
	d := time.Duration(c.params.StabilizeSeconds * float64(time.Second))
	if d <= 0 {
		return nil
	}
	c.deps.Logger.Info("waiting for display to stabilize",
		"seconds", c.params.StabilizeSeconds)
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) transition(next State) {
	c.deps.Logger.Debug("state transition",
		"from", c.state.String(), "to", next.String())
	c.state = next
}
