package layout

import (
	"fmt"
	"strings"
	"time"
)

const ruleWidth = 60

// Report renders a human-readable summary of an analysis record.
func Report(a *Analysis) string {
	rule := strings.Repeat("=", ruleWidth)
	thin := strings.Repeat("-", ruleWidth)

	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "DISPLAY ANALYSIS REPORT")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Timestamp: %s\n", a.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "Image: %s\n", a.Image)
	fmt.Fprintf(&b, "Display Size: %dx%d\n", a.DisplaySize.Width, a.DisplaySize.Height)
	fmt.Fprintf(&b, "Brightness: %.1f (0-255)\n", a.Brightness)
	fmt.Fprintf(&b, "Contrast: %.1f\n", a.Contrast)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "DETECTED REGIONS:")
	fmt.Fprintln(&b, thin)
	if qr := a.Regions.QRCode; qr != nil {
		fmt.Fprintf(&b, "QR Code: %dx%d at (%d, %d)\n", qr.W, qr.H, qr.X, qr.Y)
	} else {
		fmt.Fprintln(&b, "QR Code: NOT DETECTED")
	}
	fmt.Fprintf(&b, "Text Regions: %d detected\n", len(a.Regions.Text))
	fmt.Fprintln(&b)

	if len(a.Issues) > 0 {
		fmt.Fprintln(&b, "ISSUES FOUND:")
		fmt.Fprintln(&b, thin)
		for _, issue := range a.Issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
		fmt.Fprintln(&b)
	}

	if len(a.Recommendations) > 0 {
		fmt.Fprintln(&b, "RECOMMENDATIONS:")
		fmt.Fprintln(&b, thin)
		for _, rec := range a.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
		fmt.Fprintln(&b)
	}

	fmt.Fprintln(&b, rule)
	return b.String()
}
