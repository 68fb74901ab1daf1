package rsmsrc

import (
	"github.com/Faultbox/prcexport/pkg/formats"
	"github.com/Faultbox/prcexport/pkg/math"
)

// bracket finds the keys surrounding t. prev == next when t is before the
// first key or at or past the last one. frames must be sorted.
func bracket(n int, frame func(int) int32, t float32) (prev, next int, f float32) {
	for i := 0; i < n; i++ {
		if float32(frame(i)) > t {
			next = i
			break
		}
		prev, next = i, i
	}
	if prev == next {
		return prev, next, 0
	}
	f0, f1 := frame(prev), frame(next)
	if f1 != f0 {
		f = (t - float32(f0)) / float32(f1-f0)
	}
	return prev, next, f
}

// rotationAt samples rotation keys at t milliseconds.
func rotationAt(keys []formats.RSMRotKeyframe, t float32) math.Quat {
	if len(keys) == 0 {
		return math.QuatIdentity()
	}
	prev, next, f := bracket(len(keys), func(i int) int32 { return keys[i].Frame }, t)
	q0 := math.QuatFromArray(keys[prev].Quaternion)
	if prev == next {
		return q0
	}
	return q0.Slerp(math.QuatFromArray(keys[next].Quaternion), f)
}

// scaleAt samples scale keys at t milliseconds.
func scaleAt(keys []formats.RSMScaleKeyframe, t float32) [3]float32 {
	if len(keys) == 0 {
		return [3]float32{1, 1, 1}
	}
	prev, next, f := bracket(len(keys), func(i int) int32 { return keys[i].Frame }, t)
	return lerp3(keys[prev].Scale, keys[next].Scale, f)
}

// positionAt samples position keys at t milliseconds; ok is false without
// keys.
func positionAt(keys []formats.RSMPosKeyframe, t float32) (p [3]float32, ok bool) {
	if len(keys) == 0 {
		return p, false
	}
	prev, next, f := bracket(len(keys), func(i int) int32 { return keys[i].Frame }, t)
	return lerp3(keys[prev].Position, keys[next].Position, f), true
}

func lerp3(a, b [3]float32, f float32) [3]float32 {
	return [3]float32{
		a[0] + f*(b[0]-a[0]),
		a[1] + f*(b[1]-a[1]),
		a[2] + f*(b[2]-a[2]),
	}
}
