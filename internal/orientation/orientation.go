// Package orientation implements the stateless orientation estimators: gyro
// integration, accelerometer tilt, and the flatland and quaternion
// complementary filters that blend the two.
//
// Conventions: gyroscope rates are degrees per second, accelerometer readings
// are specific force in any consistent unit (only direction matters), dt is in
// seconds and every returned angle is in degrees. The device frame is y-up: a
// level, stationary device reads gravity as +y.
package orientation

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/imu.tracker/internal/quaternion"
)

const (
	// GyroEpsilon is compared against |gyr| as given, in the tracker's deg/s,
	// with no unit conversion. At or below it the complementary filter skips
	// the gyro integration step.
	GyroEpsilon = 1e-8

	// HorizontalEpsilon is the minimum horizontal magnitude of the
	// world-frame gravity direction for which a correction axis is defined.
	HorizontalEpsilon = 1e-9

	radToDeg = 180.0 / math.Pi
)

// AccPitch returns the pitch implied by the gravity direction in acc.
// The sign of acc_y selects the atan2 half-plane so pitch does not flip when
// the device rolls past +/-90 degrees.
func AccPitch(acc r3.Vec) float64 {
	a := r3.Unit(acc)
	sgn := 1.0
	if a.Y < 0 {
		sgn = -1
	}
	return -math.Atan2(a.Z, sgn*math.Sqrt(a.X*a.X+a.Y*a.Y)) * radToDeg
}

// AccRoll returns the roll implied by the gravity direction in acc. It assumes
// the device is not accelerating beyond gravity.
func AccRoll(acc r3.Vec) float64 {
	return -math.Atan2(-acc.X, acc.Y) * radToDeg
}

// FlatlandRollGyr integrates the z angular rate over dt on top of prev.
func FlatlandRollGyr(prev float64, gyr r3.Vec, dt float64) float64 {
	return prev + gyr.Z*dt
}

// FlatlandRollAcc returns the instantaneous flatland roll from the accelerometer.
func FlatlandRollAcc(acc r3.Vec) float64 {
	return math.Atan2(acc.X, acc.Y) * radToDeg
}

// FlatlandRollComp advances the flatland complementary filter by one step.
// alpha = 1 reduces to pure gyro integration, alpha = 0 to the accelerometer roll.
func FlatlandRollComp(prev float64, gyr r3.Vec, accRoll, dt, alpha float64) float64 {
	return alpha*FlatlandRollGyr(prev, gyr, dt) + (1-alpha)*accRoll
}

// integrate composes q with the body-frame rotation of rate gyr over dt.
func integrate(q quaternion.Quaternion, gyr r3.Vec, rate, dt float64) quaternion.Quaternion {
	axis := r3.Scale(1/rate, gyr)
	delta := quaternion.FromAngleAxis(rate*dt, axis)
	return quaternion.Multiply(q, delta).Normalize()
}

// UpdateQuaternionGyr returns q advanced by the angular rate gyr over dt.
// A zero rate leaves q unchanged.
func UpdateQuaternionGyr(q quaternion.Quaternion, gyr r3.Vec, dt float64) quaternion.Quaternion {
	if gyr.X == 0 && gyr.Y == 0 && gyr.Z == 0 {
		return q
	}
	return integrate(q, gyr, r3.Norm(gyr), dt)
}

// UpdateQuaternionComp returns q advanced by one step of the quaternion
// complementary filter: gyro integration followed by a tilt correction that
// rotates the measured gravity direction (1-alpha) of the way back to world up.
//
// The gyro step is skipped for rates at or below GyroEpsilon. The tilt
// correction is skipped when acc is zero or when the world-frame gravity
// direction has no horizontal component, since the correction axis is then
// undefined.
func UpdateQuaternionComp(q quaternion.Quaternion, gyr, acc r3.Vec, dt, alpha float64) quaternion.Quaternion {
	if rate := r3.Norm(gyr); rate > GyroEpsilon {
		q = integrate(q, gyr, rate, dt)
	}

	if r3.Norm(acc) == 0 {
		return q
	}
	up := quaternion.Pure(acc).Rotate(q).Vector()
	up = r3.Unit(up)

	horizontal := math.Hypot(up.X, up.Z)
	if horizontal <= HorizontalEpsilon {
		return q
	}

	phi := math.Acos(math.Max(-1, math.Min(1, up.Y))) * radToDeg
	axis := r3.Vec{X: -up.Z / horizontal, Z: up.X / horizontal}
	correction := quaternion.FromAngleAxis((1-alpha)*phi, axis)
	return quaternion.Multiply(correction, q).Normalize()
}
