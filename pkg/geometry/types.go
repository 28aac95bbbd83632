// Package geometry provides basic geometric value types used throughout the application.
package geometry

// RectInt represents an axis-aligned rectangle with integer coordinates.
type RectInt struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewRectInt creates a new RectInt.
func NewRectInt(x, y, width, height int) RectInt {
	return RectInt{X: x, Y: y, Width: width, Height: height}
}

// Size returns the rectangle's dimensions.
func (r RectInt) Size() SizeInt {
	return SizeInt{Width: r.Width, Height: r.Height}
}

// Area returns width times height.
func (r RectInt) Area() int {
	return r.Width * r.Height
}

// SizeInt represents pixel dimensions.
type SizeInt struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}
