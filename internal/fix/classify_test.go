package fix

import (
	"reflect"
	"testing"

	"epd-tuner/internal/layout"
)

// analysisRecord builds a metrics-only record the way the analyzer shapes
// them: slices initialized, QR pointer nil when undetected.
func analysisRecord(brightness, contrast float64, qr *layout.Region, textRegions int, issues ...string) *layout.Analysis {
	a := &layout.Analysis{
		Brightness:      brightness,
		Contrast:        contrast,
		Issues:          append([]string{}, issues...),
		Recommendations: []string{},
	}
	a.Regions.Text = make([]layout.Region, textRegions)
	a.Regions.QRCode = qr
	return a
}

func goodQR() *layout.Region {
	return &layout.Region{X: 570, Y: 65, W: 110, H: 110, Area: 12100}
}

func TestClassifyAcceptsCleanRecord(t *testing.T) {
	a := analysisRecord(150, 45, goodQR(), 6)
	got := Classify(a, DefaultClassifyParams())
	if got == nil {
		t.Fatal("expected an empty directive list, got nil")
	}
	if len(got) != 0 {
		t.Fatalf("expected no directives for a clean record, got %v", got)
	}
}

func TestClassifyMissingQRAndDarkImage(t *testing.T) {
	a := analysisRecord(80, 45, nil, 6)
	got := Classify(a, DefaultClassifyParams())

	want := []Kind{KindQRMissing, KindBrightnessLow}
	if len(got) != len(want) {
		t.Fatalf("expected kinds %v, got %v", want, got)
	}
	for i, k := range want {
		if got[i].Kind != k {
			t.Errorf("directive %d: expected %s, got %s", i, k, got[i].Kind)
		}
	}
}

func TestClassifySmallQR(t *testing.T) {
	small := &layout.Region{X: 570, Y: 65, W: 90, H: 90, Area: 8100}
	got := Classify(analysisRecord(150, 45, small, 6), DefaultClassifyParams())

	if len(got) != 1 || got[0].Kind != KindQRTooSmall {
		t.Fatalf("expected a single qr-too-small directive, got %v", got)
	}
	if got[0].Description != "QR code too small" {
		t.Errorf("unexpected description %q", got[0].Description)
	}
	if got[0].Action != "Increase qrScale parameter" {
		t.Errorf("unexpected action %q", got[0].Action)
	}
}

func TestClassifyQRAtTargetAreaIsAccepted(t *testing.T) {
	atTarget := &layout.Region{W: 100, H: 100, Area: 10000}
	got := Classify(analysisRecord(150, 45, atTarget, 6), DefaultClassifyParams())
	if len(got) != 0 {
		t.Fatalf("area equal to the target must not be too small, got %v", got)
	}
}

func TestClassifyLowContrast(t *testing.T) {
	got := Classify(analysisRecord(150, 12, goodQR(), 6), DefaultClassifyParams())
	if len(got) != 1 || got[0].Kind != KindContrastLow {
		t.Fatalf("expected a single contrast-low directive, got %v", got)
	}
	if got[0].Description != "Low contrast - display may not have refreshed" {
		t.Errorf("unexpected description %q", got[0].Description)
	}
}

func TestClassifyRotationIssues(t *testing.T) {
	issue := "Text rotation issue detected: 90° clockwise rotation detected"
	a := analysisRecord(150, 45, goodQR(), 6, issue)
	got := Classify(a, DefaultClassifyParams())

	if len(got) != 1 || got[0].Kind != KindTextRotated {
		t.Fatalf("expected a single text-rotated directive, got %v", got)
	}
	if got[0].Description != issue {
		t.Errorf("directive must carry the issue verbatim, got %q", got[0].Description)
	}
	if got[0].Action != "Check font settings and setRotation()" {
		t.Errorf("unexpected action %q", got[0].Action)
	}

	// Matching is case-insensitive on the word, and unrelated issues do
	// not classify as rotation.
	upper := analysisRecord(150, 45, goodQR(), 6, "ROTATION mismatch on header")
	if got := Classify(upper, DefaultClassifyParams()); len(got) != 1 || got[0].Kind != KindTextRotated {
		t.Errorf("expected case-insensitive rotation match, got %v", got)
	}
	unrelated := analysisRecord(150, 45, goodQR(), 6, "Image appears dark - check lighting")
	if got := Classify(unrelated, DefaultClassifyParams()); len(got) != 0 {
		t.Errorf("non-rotation issue must not classify, got %v", got)
	}
}

func TestClassifySparseText(t *testing.T) {
	got := Classify(analysisRecord(150, 45, goodQR(), 4), DefaultClassifyParams())
	if len(got) != 1 || got[0].Kind != KindTextSparse {
		t.Fatalf("expected a single text-sparse directive, got %v", got)
	}
	if got[0].Description != "Less text detected than expected" {
		t.Errorf("unexpected description %q", got[0].Description)
	}

	if got := Classify(analysisRecord(150, 45, goodQR(), 5), DefaultClassifyParams()); len(got) != 0 {
		t.Errorf("exactly MinTextRegions regions is acceptable, got %v", got)
	}
}

func TestClassifyOrderIsFixed(t *testing.T) {
	a := analysisRecord(80, 12, nil, 2, "Text rotation issue detected: 90° clockwise rotation detected")
	got := Classify(a, DefaultClassifyParams())

	want := []Kind{KindQRMissing, KindBrightnessLow, KindContrastLow, KindTextRotated, KindTextSparse}
	if len(got) != len(want) {
		t.Fatalf("expected kinds %v, got %v", want, got)
	}
	for i, k := range want {
		if got[i].Kind != k {
			t.Errorf("directive %d: expected %s, got %s", i, k, got[i].Kind)
		}
	}
}

func TestClassifyIsPure(t *testing.T) {
	a := analysisRecord(80, 12, nil, 2, "Text rotation issue detected: 90° clockwise rotation detected")

	first := Classify(a, DefaultClassifyParams())
	second := Classify(a, DefaultClassifyParams())
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical records must classify identically:\n%v\n%v", first, second)
	}

	// The record itself is left untouched.
	if a.Brightness != 80 || a.Contrast != 12 || len(a.Issues) != 1 || len(a.Regions.Text) != 2 {
		t.Errorf("Classify mutated its input: %+v", a)
	}
}
