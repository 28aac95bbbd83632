// Package config assembles the explicit configuration tree handed to each
// component at construction. Nothing in the pipeline reads ambient global
// state.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"epd-tuner/internal/camera"
	"epd-tuner/internal/display"
	"epd-tuner/internal/fix"
	"epd-tuner/internal/iterate"
	"epd-tuner/internal/layout"
	"epd-tuner/internal/monitor"
	"epd-tuner/internal/pio"
)

// EnvConfigPath names the environment variable consulted when no --config
// flag is given.
const EnvConfigPath = "EPD_TUNER_CONFIG"

// Logging configures the structured logger.
type Logging struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Config is the full configuration tree. Every detection threshold, clamp
// bound and delay is a named field in one of the sections.
type Config struct {
	Camera   camera.Params      `json:"camera"`
	Capture  monitor.Params     `json:"capture"`
	Display  display.Params     `json:"display"`
	Layout   layout.Params      `json:"layout"`
	Classify fix.ClassifyParams `json:"classify"`
	Fix      fix.Params         `json:"fix"`
	Build    pio.Params         `json:"build"`
	Iterate  iterate.Params     `json:"iterate"`
	Logging  Logging            `json:"logging"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Camera:   camera.DefaultParams(),
		Capture:  monitor.DefaultParams(),
		Display:  display.DefaultParams(),
		Layout:   layout.DefaultParams(),
		Classify: fix.DefaultClassifyParams(),
		Fix:      fix.DefaultParams(),
		Build:    pio.DefaultParams(),
		Iterate:  iterate.DefaultParams(),
		Logging:  Logging{Level: "info", Format: "text"},
	}
}

// Load overlays the JSON config at path onto the defaults, so partial
// configs only override what they name. An empty path falls back to
// $EPD_TUNER_CONFIG; a missing fallback file keeps the defaults, while an
// explicitly named file must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigPath)
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
