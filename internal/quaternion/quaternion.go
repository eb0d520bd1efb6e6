// Package quaternion provides the rotation quaternion value type used by the
// orientation estimators. Arithmetic is delegated to gonum's num/quat package;
// this package adds the rotation-specific operations (angle-axis construction,
// conjugation-based rotation, normalization) on top of it.
package quaternion

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// Quaternion represents w + x*i + y*j + z*k.
//
// Quaternions are values: every operation returns a new Quaternion and never
// mutates its receiver.
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Identity returns the identity rotation (1, 0, 0, 0).
func Identity() Quaternion {
	return Quaternion{W: 1}
}

// New constructs a quaternion from its four components.
func New(w, x, y, z float64) Quaternion {
	return Quaternion{W: w, X: x, Y: y, Z: z}
}

// Pure embeds a vector as a quaternion with zero real part.
func Pure(v r3.Vec) Quaternion {
	return Quaternion{X: v.X, Y: v.Y, Z: v.Z}
}

// FromAngleAxis builds the rotation of angleDeg degrees about axis.
// The axis must already be unit length; it is not re-normalized here.
func FromAngleAxis(angleDeg float64, axis r3.Vec) Quaternion {
	half := angleDeg * degToRad / 2
	s := math.Sin(half)
	return Quaternion{
		W: math.Cos(half),
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
	}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{W: n.Real, X: n.Imag, Y: n.Jmag, Z: n.Kmag}
}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

// Length returns the Euclidean norm of the four components.
func (q Quaternion) Length() float64 {
	return quat.Abs(q.number())
}

// Normalize returns q scaled to unit length. The result is NaN when q has
// zero length; callers must not normalize a zero rotation.
func (q Quaternion) Normalize() Quaternion {
	l := q.Length()
	return Quaternion{W: q.W / l, X: q.X / l, Y: q.Y / l, Z: q.Z / l}
}

// Conjugate returns (w, -x, -y, -z).
func (q Quaternion) Conjugate() Quaternion {
	return fromNumber(quat.Conj(q.number()))
}

// Inverse returns the conjugate divided by the squared length. For unit
// quaternions this equals the conjugate.
func (q Quaternion) Inverse() Quaternion {
	return fromNumber(quat.Inv(q.number()))
}

// Multiply returns the Hamilton product a*b. The product is associative but
// not commutative: Multiply(prev, delta) applies delta in the body frame of
// prev, Multiply(delta, prev) applies it in the world frame.
func Multiply(a, b Quaternion) Quaternion {
	return fromNumber(quat.Mul(a.number(), b.number()))
}

// Rotate returns r * q * r^-1, rotating q (usually a pure vector quaternion)
// into the frame defined by r.
func (q Quaternion) Rotate(r Quaternion) Quaternion {
	return Multiply(Multiply(r, q), r.Inverse())
}

// Vector returns the imaginary part of q.
func (q Quaternion) Vector() r3.Vec {
	return r3.Vec{X: q.X, Y: q.Y, Z: q.Z}
}

// Angle returns the rotation angle of a unit quaternion in degrees, in [0, 180].
// q and -q describe the same rotation, so the sign of W is ignored.
func (q Quaternion) Angle() float64 {
	w := math.Min(math.Abs(q.W), 1)
	return 2 * math.Acos(w) * radToDeg
}

// EulerAngles returns the pitch (about x), yaw (about y) and roll (about z)
// of a unit quaternion in degrees, using the y-up convention of the tracker
// where gravity reads as +y when the device is level.
func (q Quaternion) EulerAngles() (pitch, yaw, roll float64) {
	// Rotation matrix entries used by the YXZ decomposition.
	r12 := 2 * (q.Y*q.Z - q.W*q.X)
	r02 := 2 * (q.X*q.Z + q.W*q.Y)
	r22 := q.W*q.W - q.X*q.X - q.Y*q.Y + q.Z*q.Z
	r10 := 2 * (q.X*q.Y + q.W*q.Z)
	r11 := q.W*q.W - q.X*q.X + q.Y*q.Y - q.Z*q.Z

	s := -r12
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	pitch = math.Asin(s) * radToDeg
	yaw = math.Atan2(r02, r22) * radToDeg
	roll = math.Atan2(r10, r11) * radToDeg
	return pitch, yaw, roll
}

// ApproxEqual reports whether every component of a and b differs by at most tol.
func ApproxEqual(a, b Quaternion, tol float64) bool {
	return math.Abs(a.W-b.W) <= tol &&
		math.Abs(a.X-b.X) <= tol &&
		math.Abs(a.Y-b.Y) <= tol &&
		math.Abs(a.Z-b.Z) <= tol
}

func (q Quaternion) String() string {
	return fmt.Sprintf("%.5f %.5f %.5f %.5f", q.W, q.X, q.Y, q.Z)
}
