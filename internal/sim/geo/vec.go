package geo

import "math"

// Vec2 is a point or direction in arena space.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

func (v Vec2) Scale(k float64) Vec2 { return Vec2{v.X * k, v.Y * k} }

func Dist(a, b Vec2) float64 {
	return math.Sqrt(Dist2(a, b))
}

// Dist2 is the squared Euclidean distance. Collision filters compare
// against squared radii to avoid the sqrt.
func Dist2(a, b Vec2) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

// CirclesCollide reports whether two circles overlap. The comparison is
// strict: circles that exactly touch do not collide.
func CirclesCollide(a Vec2, ra float64, b Vec2, rb float64) bool {
	r := ra + rb
	return Dist2(a, b) < r*r
}

// Wrap maps a point onto the torus [0,w) x [0,h) with modulo arithmetic.
// Coordinates already in range come back unchanged; out-of-range
// coordinates wrap around, never clamp.
func Wrap(v Vec2, w, h float64) Vec2 {
	return Vec2{WrapCoord(v.X, w), WrapCoord(v.Y, h)}
}

func WrapCoord(x, span float64) float64 {
	if span <= 0 {
		return x
	}
	x = math.Mod(x, span)
	if x < 0 {
		x += span
	}
	return x
}

// NormalizeAngle maps any angle in degrees into [0,360).
func NormalizeAngle(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// Heading is the unit direction for an angle in degrees.
func Heading(deg float64) Vec2 {
	rad := deg * math.Pi / 180
	return Vec2{math.Cos(rad), math.Sin(rad)}
}

// AngleTo is the heading angle in degrees from a toward b, normalized
// into [0,360).
func AngleTo(a, b Vec2) float64 {
	return NormalizeAngle(math.Atan2(b.Y-a.Y, b.X-a.X) * 180 / math.Pi)
}
