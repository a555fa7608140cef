package transform

// Viewport describes how an index domain is drawn on screen: domain
// coordinates are flipped on the y axis when FlipY is set, then scaled, then
// offset.
type Viewport struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
	FlipY   bool
}

// Matrix returns the transform from domain coordinates to screen coordinates.
func (v Viewport) Matrix() Matrix3x3 {
	m := Translation(Vector2{v.OffsetX, v.OffsetY}).
		Multiply(Scaling(Vector2{v.Scale, v.Scale}))

	if v.FlipY {
		m = m.Multiply(YFlipping())
	}
	return m
}

// ToScreen maps a domain coordinate to the screen.
func (v Viewport) ToScreen(x, y float64) Vector2 {
	return v.Matrix().Apply(Vector2{x, y})
}

// ToDomain maps a screen coordinate back to the domain. It returns an error
// when the viewport scale is zero.
func (v Viewport) ToDomain(x, y float64) (Vector2, error) {
	inverse, err := v.Matrix().Inverse()
	if err != nil {
		return Vector2{}, err
	}
	return inverse.Apply(Vector2{x, y}), nil
}
