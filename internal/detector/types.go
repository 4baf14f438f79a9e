package detector

import "image"

// FaceBox is a face bounding box in frame coordinates
type FaceBox struct {
	X, Y          int // top-left
	Width, Height int
}

// FromRect converts an image rectangle to a FaceBox
func FromRect(r image.Rectangle) FaceBox {
	r = r.Canon()
	return FaceBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect returns the box as an image rectangle
func (b FaceBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Area returns box area
func (b FaceBox) Area() int {
	return b.Width * b.Height
}

// Empty reports whether the box has no area
func (b FaceBox) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// ClampTo restricts the box to bounds. The result may be empty.
func (b FaceBox) ClampTo(bounds image.Rectangle) FaceBox {
	return FromRect(b.Rect().Intersect(bounds))
}

// Padded grows the box by the given margins, clamped to bounds
func (b FaceBox) Padded(top, bottom, left, right int, bounds image.Rectangle) FaceBox {
	r := image.Rect(b.X-left, b.Y-top, b.X+b.Width+right, b.Y+b.Height+bottom)
	return FromRect(r.Intersect(bounds))
}
