package transform

// Vector2 is a point or a direction in the 2D plane.
type Vector2 struct {
	X float64
	Y float64
}

func NewVector2(x, y float64) Vector2 {
	return Vector2{X: x, Y: y}
}

func (v Vector2) Translate(o Vector2) Vector2 {
	return Vector2{v.X + o.X, v.Y + o.Y}
}

func (v Vector2) Scale(factor float64) Vector2 {
	return Vector2{v.X * factor, v.Y * factor}
}

// To3D returns the homogeneous coordinates of v.
func (v Vector2) To3D() Vector3 {
	return Vector3{v.X, v.Y, 1}
}

// Vector3 holds homogeneous 2D coordinates.
type Vector3 struct {
	X float64
	Y float64
	Z float64
}

func NewVector3(x, y, z float64) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

func (v Vector3) Translate(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vector3) Scale(factor float64) Vector3 {
	return Vector3{v.X * factor, v.Y * factor, v.Z * factor}
}

// To2D projects v back onto the z = 1 plane.
func (v Vector3) To2D() Vector2 {
	return Vector2{v.X / v.Z, v.Y / v.Z}
}

// Transform returns m applied to v.
func (v Vector3) Transform(m Matrix3x3) Vector3 {
	return Vector3{
		X: m.M00*v.X + m.M01*v.Y + m.M02*v.Z,
		Y: m.M10*v.X + m.M11*v.Y + m.M12*v.Z,
		Z: m.M20*v.X + m.M21*v.Y + m.M22*v.Z,
	}
}
