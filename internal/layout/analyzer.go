// Package layout extracts layout metrics from a cropped display image:
// global brightness and contrast, the QR code region, text-bearing regions,
// and a rotation verdict. Detection misses are recorded as issues and
// recommendations, never errors.
package layout

import (
	"image"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// Params holds every analysis threshold.
type Params struct {
	// Mean gray level below this raises a lighting issue (0-255).
	BrightnessMin float64 `json:"brightness_min"`

	// Population std-dev of gray below this suggests a stale refresh.
	ContrastMin float64 `json:"contrast_min"`

	// QR candidates come from an inverse binary threshold at this cutoff.
	QRThreshold float32 `json:"qr_threshold"`

	// Contour area band for a QR candidate, in px^2.
	QRMinArea float64 `json:"qr_min_area"`
	QRMaxArea float64 `json:"qr_max_area"`

	// Bounding-box aspect band for a QR candidate. QR codes are square.
	QRAspectMin float64 `json:"qr_aspect_min"`
	QRAspectMax float64 `json:"qr_aspect_max"`

	// Canny thresholds shared by text and rotation detection.
	CannyLow  float32 `json:"canny_low"`
	CannyHigh float32 `json:"canny_high"`

	// Edges are dilated with a square kernel of TextKernelSize,
	// TextDilateIterations times, to merge character strokes into blobs.
	TextKernelSize       int `json:"text_kernel_size"`
	TextDilateIterations int `json:"text_dilate_iterations"`

	// Dilated contours above this area count as text regions, in px^2.
	TextMinArea float64 `json:"text_min_area"`

	// Hough accumulator threshold for rotation lines.
	HoughThreshold int `json:"hough_threshold"`

	// Mean line angle bands, in degrees, open intervals.
	RotateCWLow   float64 `json:"rotate_cw_low"`
	RotateCWHigh  float64 `json:"rotate_cw_high"`
	RotateCCWLow  float64 `json:"rotate_ccw_low"`
	RotateCCWHigh float64 `json:"rotate_ccw_high"`
}

// DefaultParams returns the analysis thresholds tuned against the reference
// 800x480 panel.
func DefaultParams() Params {
	return Params{
		BrightnessMin:        100,
		ContrastMin:          30,
		QRThreshold:          127,
		QRMinArea:            5000,
		QRMaxArea:            50000,
		QRAspectMin:          0.8,
		QRAspectMax:          1.2,
		CannyLow:             50,
		CannyHigh:            150,
		TextKernelSize:       5,
		TextDilateIterations: 2,
		TextMinArea:          100,
		HoughThreshold:       200,
		RotateCWLow:          80,
		RotateCWHigh:         100,
		RotateCCWLow:         260,
		RotateCCWHigh:        280,
	}
}

// Analyze runs every detection step against a cropped BGR display image and
// returns the metrics portion of the record. Provenance fields (paths,
// bounding box, size, timestamp) are filled by the caller that knows them.
// The result is a pure function of the image and params.
func Analyze(crop gocv.Mat, p Params) Analysis {
	a := Analysis{
		Regions:         Regions{Text: []Region{}},
		Issues:          []string{},
		Recommendations: []string{},
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(crop, &gray, gocv.ColorBGRToGray)

	a.Brightness, a.Contrast = grayStats(gray)
	if a.Brightness < p.BrightnessMin {
		a.Issues = append(a.Issues, "Image appears dark - check lighting")
	}
	if a.Contrast < p.ContrastMin {
		a.Issues = append(a.Issues, "Low contrast - display may not have refreshed")
	}

	if qr, ok := detectQR(gray, p); ok {
		a.Regions.QRCode = &qr
	} else {
		a.Issues = append(a.Issues, "QR code not detected")
		a.Recommendations = append(a.Recommendations, "Check QR code positioning and size")
	}

	a.Regions.Text = detectTextRegions(gray, p)

	if verdict, ok := detectRotation(gray, p); ok {
		a.Issues = append(a.Issues, "Text rotation issue detected: "+verdict)
		a.Recommendations = append(a.Recommendations, "Check setRotation() and font settings")
	}

	return a
}

func grayStats(gray gocv.Mat) (mean, stddev float64) {
	rows, cols := gray.Rows(), gray.Cols()
	if rows == 0 || cols == 0 {
		return 0, 0
	}
	values := make([]float64, 0, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			values = append(values, float64(gray.GetUCharAt(y, x)))
		}
	}
	return stat.Mean(values, nil), stat.PopStdDev(values, nil)
}

// detectQR looks for a dark square of plausible QR size. The first
// qualifying contour wins, by enumeration order; multiple dark squares
// resolve to whichever the scan yields first.
func detectQR(gray gocv.Mat, p Params) (Region, bool) {
	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(gray, &bin, p.QRThreshold, 255, gocv.ThresholdBinaryInv)

	contours := gocv.FindContours(bin, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < p.QRMinArea || area > p.QRMaxArea {
			continue
		}
		rect := gocv.BoundingRect(contour)
		if rect.Dy() == 0 {
			continue
		}
		aspect := float64(rect.Dx()) / float64(rect.Dy())
		if aspect < p.QRAspectMin || aspect > p.QRAspectMax {
			continue
		}
		return regionFromRect(rect), true
	}
	return Region{}, false
}

// detectTextRegions is a density proxy for rendered text. It never attempts
// character recognition.
func detectTextRegions(gray gocv.Mat, p Params) []Region {
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, p.CannyLow, p.CannyHigh)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: p.TextKernelSize, Y: p.TextKernelSize})
	defer kernel.Close()

	dilated := edges.Clone()
	defer dilated.Close()
	for i := 0; i < p.TextDilateIterations; i++ {
		gocv.Dilate(dilated, &dilated, kernel)
	}

	contours := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	regions := []Region{}
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		if gocv.ContourArea(contour) > p.TextMinArea {
			regions = append(regions, regionFromRect(gocv.BoundingRect(contour)))
		}
	}
	return regions
}

// detectRotation reports a verdict when the mean Hough line angle falls in
// one of the configured bands. No lines means no verdict, not an error.
func detectRotation(gray gocv.Mat, p Params) (string, bool) {
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, p.CannyLow, p.CannyHigh)

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLines(edges, &lines, 1, math.Pi/180, p.HoughThreshold)

	if lines.Empty() || lines.Rows() == 0 {
		return "", false
	}

	angles := make([]float64, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		theta := float64(lines.GetFloatAt(i, 1))
		angles = append(angles, theta*180/math.Pi)
	}

	mean := stat.Mean(angles, nil)
	switch {
	case mean > p.RotateCWLow && mean < p.RotateCWHigh:
		return "90° clockwise rotation detected", true
	case mean > p.RotateCCWLow && mean < p.RotateCCWHigh:
		return "90° counter-clockwise rotation detected", true
	}
	return "", false
}

func regionFromRect(rect image.Rectangle) Region {
	return Region{
		X:    rect.Min.X,
		Y:    rect.Min.Y,
		W:    rect.Dx(),
		H:    rect.Dy(),
		Area: rect.Dx() * rect.Dy(),
	}
}
