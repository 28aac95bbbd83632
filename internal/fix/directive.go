// Package fix maps analysis records to named fix directives and applies the
// directives that have automated firmware rewrites.
package fix

import (
	"strings"

	"epd-tuner/internal/layout"
)

// Kind names a classified layout defect.
type Kind string

const (
	KindQRMissing     Kind = "qr-missing"
	KindQRTooSmall    Kind = "qr-too-small"
	KindBrightnessLow Kind = "brightness-low"
	KindContrastLow   Kind = "contrast-low"
	KindTextRotated   Kind = "text-rotated"
	KindTextSparse    Kind = "text-sparse"
)

// Directive pairs a classified defect with a suggested remedial action.
type Directive struct {
	Kind        Kind   `json:"kind"`
	Description string `json:"description"`
	Action      string `json:"action"`
}

// ClassifyParams holds the classification thresholds.
type ClassifyParams struct {
	// QR regions below this bounding-box area are too small, in px^2.
	QRTargetArea int `json:"qr_target_area"`

	// Brightness and contrast floors, matching the analyzer's bands.
	BrightnessMin float64 `json:"brightness_min"`
	ContrastMin   float64 `json:"contrast_min"`

	// Fewer text regions than this means the layout is under-rendered.
	MinTextRegions int `json:"min_text_regions"`
}

// DefaultClassifyParams returns the thresholds for the reference layout.
func DefaultClassifyParams() ClassifyParams {
	return ClassifyParams{
		QRTargetArea:   10000,
		BrightnessMin:  100,
		ContrastMin:    30,
		MinTextRegions: 5,
	}
}

// Classify maps an analysis record to an ordered directive list. It is a
// pure function: identical records yield identical, identically ordered
// directives. An empty result means the layout is accepted.
func Classify(a *layout.Analysis, p ClassifyParams) []Directive {
	directives := []Directive{}

	if a.Regions.QRCode == nil {
		directives = append(directives, Directive{
			Kind:        KindQRMissing,
			Description: "QR code not detected",
			Action:      "Increase QR code scale or move position",
		})
	} else if a.Regions.QRCode.Area < p.QRTargetArea {
		directives = append(directives, Directive{
			Kind:        KindQRTooSmall,
			Description: "QR code too small",
			Action:      "Increase qrScale parameter",
		})
	}

	if a.Brightness < p.BrightnessMin {
		directives = append(directives, Directive{
			Kind:        KindBrightnessLow,
			Description: "Image too dark",
			Action:      "Improve lighting or wait for full refresh",
		})
	}

	if a.Contrast < p.ContrastMin {
		directives = append(directives, Directive{
			Kind:        KindContrastLow,
			Description: "Low contrast - display may not have refreshed",
			Action:      "Force full refresh or increase refresh rate",
		})
	}

	for _, issue := range a.Issues {
		if strings.Contains(strings.ToLower(issue), "rotation") {
			directives = append(directives, Directive{
				Kind:        KindTextRotated,
				Description: issue,
				Action:      "Check font settings and setRotation()",
			})
		}
	}

	if len(a.Regions.Text) < p.MinTextRegions {
		directives = append(directives, Directive{
			Kind:        KindTextSparse,
			Description: "Less text detected than expected",
			Action:      "Check if text is rendering or if display needs refresh",
		})
	}

	return directives
}
