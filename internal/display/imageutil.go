package display

import (
	"image"

	"gocv.io/x/gocv"
)

// ImageToMat converts a decoded Go image to a BGR Mat for the detection
// pipeline. The caller owns the returned Mat.
func ImageToMat(img image.Image) gocv.Mat {
	bounds := img.Bounds()
	mat := gocv.NewMatWithSize(bounds.Dy(), bounds.Dx(), gocv.MatTypeCV8UC3)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			row := y - bounds.Min.Y
			col := x - bounds.Min.X
			mat.SetUCharAt(row, col*3+0, uint8(b>>8))
			mat.SetUCharAt(row, col*3+1, uint8(g>>8))
			mat.SetUCharAt(row, col*3+2, uint8(r>>8))
		}
	}

	return mat
}
