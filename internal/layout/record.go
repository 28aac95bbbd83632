package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"epd-tuner/pkg/geometry"
)

// Region is a detected rectangular feature within the display crop. Area is
// the bounding-box area in px^2.
type Region struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	W    int `json:"w"`
	H    int `json:"h"`
	Area int `json:"area"`
}

// Regions groups per-kind detections. Text is never nil; QRCode is nil when
// no qualifying dark square was found.
type Regions struct {
	QRCode *Region  `json:"qr_code,omitempty"`
	Text   []Region `json:"text"`
}

// Analysis is the persisted record of one capture's layout review.
// Brightness and contrast are always present; Regions.Text, Issues and
// Recommendations may be empty but never absent.
type Analysis struct {
	Timestamp       time.Time        `json:"timestamp"`
	Image           string           `json:"image"`
	DisplayCropped  string           `json:"display_cropped"`
	DisplayBBox     geometry.RectInt `json:"display_bbox"`
	DisplaySize     geometry.SizeInt `json:"display_size"`
	Brightness      float64          `json:"brightness"`
	Contrast        float64          `json:"contrast"`
	Regions         Regions          `json:"regions"`
	Issues          []string         `json:"issues"`
	Recommendations []string         `json:"recommendations"`
}

// Save writes the record as indented JSON.
func (a *Analysis) Save(path string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadAnalysis reads a previously saved record.
func LoadAnalysis(path string) (*Analysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse analysis: %w", err)
	}
	return &a, nil
}
