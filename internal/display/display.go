// Package display locates the physical e-paper panel inside a camera frame.
package display

import (
	"image"

	"gocv.io/x/gocv"

	"epd-tuner/pkg/geometry"
)

// Params tunes the display boundary search.
type Params struct {
	// Canny edge thresholds.
	CannyLow  float32 `json:"canny_low"`
	CannyHigh float32 `json:"canny_high"`

	// MinArea rejects contours at or below this size, in px^2.
	MinArea float64 `json:"min_area"`

	// Epsilon is the polygon approximation tolerance as a fraction of
	// the contour perimeter.
	Epsilon float64 `json:"epsilon"`

	// Padding is added around the detected rectangle, clamped to the frame.
	Padding int `json:"padding"`
}

// DefaultParams returns detection settings for a panel photographed from
// roughly half a meter.
func DefaultParams() Params {
	return Params{
		CannyLow:  50,
		CannyHigh: 150,
		MinArea:   10000,
		Epsilon:   0.02,
		Padding:   10,
	}
}

// Detect finds the display's bounding rectangle in a BGR frame and returns
// an independent crop of it plus whether a display contour was actually
// found. With no qualifying quadrilateral it returns a clone of the whole
// frame and a bbox covering it; failed detection degrades precision but
// never aborts the pipeline. The caller owns the returned Mat.
func Detect(frame gocv.Mat, p Params) (gocv.Mat, geometry.RectInt, bool) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: 5, Y: 5}, 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, p.CannyLow, p.CannyHigh)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	// Keep the largest quadrilateral above the area floor. The panel frame
	// is normally the dominant rectangle in the scene.
	var best image.Rectangle
	bestArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area <= p.MinArea || area <= bestArea {
			continue
		}
		epsilon := p.Epsilon * gocv.ArcLength(contour, true)
		approx := gocv.ApproxPolyDP(contour, epsilon, true)
		if approx.Size() == 4 {
			best = gocv.BoundingRect(approx)
			bestArea = area
		}
		approx.Close()
	}

	if bestArea == 0 {
		return frame.Clone(), geometry.NewRectInt(0, 0, frame.Cols(), frame.Rows()), false
	}

	x := max(0, best.Min.X-p.Padding)
	y := max(0, best.Min.Y-p.Padding)
	w := min(frame.Cols()-x, best.Dx()+2*p.Padding)
	h := min(frame.Rows()-y, best.Dy()+2*p.Padding)

	region := frame.Region(image.Rect(x, y, x+w, y+h))
	crop := region.Clone()
	region.Close()

	return crop, geometry.NewRectInt(x, y, w, h), true
}
