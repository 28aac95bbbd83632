// Command displaytest runs display detection and layout analysis on a saved
// image, for tuning thresholds without a camera or device attached.
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"epd-tuner/internal/display"
	"epd-tuner/internal/layout"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

func main() {
	imagePath := flag.String("image", "", "Path to capture image (TIFF, BMP, PNG, or JPEG)")
	minArea := flag.Float64("min-area", 10000, "Minimum display contour area in pixels")
	padding := flag.Int("padding", 10, "Padding around the detected display in pixels")
	verbose := flag.Bool("v", false, "Print every detected text region")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: displaytest -image <path> [-min-area 10000] [-padding 10] [-v]")
		os.Exit(1)
	}

	// Load image
	f, err := os.Open(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open image: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to decode image: %v\n", err)
		os.Exit(1)
	}

	bounds := img.Bounds()
	fmt.Printf("Loaded %s image: %dx%d pixels\n", format, bounds.Dx(), bounds.Dy())

	mat := display.ImageToMat(img)
	defer mat.Close()

	// Set up detection parameters
	dp := display.DefaultParams()
	dp.MinArea = *minArea
	dp.Padding = *padding
	lp := layout.DefaultParams()

	fmt.Printf("\nDetection parameters:\n")
	fmt.Printf("  Canny: %.0f-%.0f\n", dp.CannyLow, dp.CannyHigh)
	fmt.Printf("  Min contour area: %.0f px\n", dp.MinArea)
	fmt.Printf("  Padding: %d px\n", dp.Padding)
	fmt.Printf("  QR area band: %.0f-%.0f px, aspect %.2f-%.2f\n",
		lp.QRMinArea, lp.QRMaxArea, lp.QRAspectMin, lp.QRAspectMax)
	fmt.Printf("  Brightness min: %.0f  Contrast min: %.0f\n", lp.BrightnessMin, lp.ContrastMin)

	fmt.Printf("\nDetecting display...\n")
	crop, bbox, found := display.Detect(mat, dp)
	defer crop.Close()

	if found {
		fmt.Printf("Display: %dx%d at (%d, %d)\n", bbox.Width, bbox.Height, bbox.X, bbox.Y)
	} else {
		fmt.Println("Display not found, analyzing full frame")
	}

	a := layout.Analyze(crop, lp)
	a.Timestamp = time.Now()
	a.Image = *imagePath
	a.DisplayBBox = bbox
	a.DisplaySize = bbox.Size()

	fmt.Print(layout.Report(&a))

	if *verbose {
		fmt.Printf("\nText regions:\n")
		for i, r := range a.Regions.Text {
			fmt.Printf("  [%02d] %dx%d at (%d, %d) area=%d\n", i, r.W, r.H, r.X, r.Y, r.Area)
		}
	}
}
