package fix

import (
	"log/slog"

	"epd-tuner/internal/firmware"
)

// Params configures the firmware rewrites the engine may apply.
type Params struct {
	// Source is the firmware file holding the tunable declarations.
	Source string `json:"source"`

	// ScaleParam grows by one per qr-too-small directive, up to ScaleMax.
	ScaleParam string `json:"scale_param"`
	ScaleMax   int    `json:"scale_max"`

	// YParam drops by YStep per qr-missing directive, down to YMin. The
	// floor keeps the QR code clear of the header band.
	YParam string `json:"y_param"`
	YStep  int    `json:"y_step"`
	YMin   int    `json:"y_min"`
}

// DefaultParams returns the rewrite rules for the reference firmware.
func DefaultParams() Params {
	return Params{
		Source:     "firmware/src/main.cpp",
		ScaleParam: "qrScale",
		ScaleMax:   10,
		YParam:     "qrY",
		YStep:      20,
		YMin:       60,
	}
}

// Outcome reports what the engine did with one directive. An unapplied
// directive is surfaced for manual review, never dropped.
type Outcome struct {
	Kind    Kind   `json:"kind"`
	Applied bool   `json:"applied"`
	Param   string `json:"param,omitempty"`
	Before  int    `json:"before,omitempty"`
	After   int    `json:"after,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Engine applies fix directives by rewriting named firmware parameters
// within bounds. It never guesses at rules it was not given.
type Engine struct {
	params Params
	logger *slog.Logger
}

// NewEngine builds an engine over the configured firmware source.
func NewEngine(p Params, logger *slog.Logger) *Engine {
	return &Engine{params: p, logger: logger}
}

// Apply executes the rewrite rule for one directive. Store failures
// (missing file, missing declaration) come back as unapplied outcomes, not
// process errors.
func (e *Engine) Apply(d Directive) Outcome {
	switch d.Kind {
	case KindQRTooSmall:
		return e.rewrite(d.Kind, e.params.ScaleParam, func(cur int) int {
			return min(cur+1, e.params.ScaleMax)
		})
	case KindQRMissing:
		return e.rewrite(d.Kind, e.params.YParam, func(cur int) int {
			return max(cur-e.params.YStep, e.params.YMin)
		})
	default:
		e.logger.Info("no automated fix, manual intervention needed",
			"kind", string(d.Kind), "action", d.Action)
		return Outcome{Kind: d.Kind, Applied: false, Reason: "no automated rewrite rule"}
	}
}

func (e *Engine) rewrite(kind Kind, name string, next func(int) int) Outcome {
	store, err := firmware.Load(e.params.Source)
	if err != nil {
		e.logger.Error("firmware source unavailable", "param", name, "error", err)
		return Outcome{Kind: kind, Applied: false, Param: name, Reason: err.Error()}
	}
	cur, err := store.Get(name)
	if err != nil {
		e.logger.Error("parameter lookup failed", "param", name, "error", err)
		return Outcome{Kind: kind, Applied: false, Param: name, Reason: err.Error()}
	}
	val := next(cur)
	if err := store.Set(name, val); err != nil {
		return Outcome{Kind: kind, Applied: false, Param: name, Reason: err.Error()}
	}
	if err := store.Save(); err != nil {
		e.logger.Error("firmware save failed", "param", name, "error", err)
		return Outcome{Kind: kind, Applied: false, Param: name, Reason: err.Error()}
	}
	e.logger.Info("parameter updated", "param", name, "before", cur, "after", val)
	return Outcome{Kind: kind, Applied: true, Param: name, Before: cur, After: val}
}
