package renderer

import (
	"image"

	"github.com/ivlev/scenereel/internal/timeline"
)

// Opacity returns how visible the outgoing and incoming items are at
// progress p in [0, 1] of a transition.
func Opacity(kind timeline.TransitionKind, p float64) (out, in float64) {
	p = clamp01(p)
	if kind == timeline.TransitionFadeBlack {
		if p < 0.5 {
			return 1 - easeInOutCubic(p*2), 0
		}
		return 0, easeInOutCubic(p*2 - 1)
	}
	return 1, easeInOutCubic(p)
}

// Reveal returns the part of bounds the incoming item covers at progress
// p of a wipe or slide. Other kinds cover everything.
func Reveal(kind timeline.TransitionKind, bounds image.Rectangle, p float64) image.Rectangle {
	p = clamp01(p)
	edge := int(lerp(0, float64(bounds.Dx()), easeInOutCubic(p)))
	switch kind {
	case timeline.TransitionWipeLeft, timeline.TransitionSlideLeft:
		return image.Rect(bounds.Max.X-edge, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	case timeline.TransitionWipeRight, timeline.TransitionSlideRight:
		return image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Min.X+edge, bounds.Max.Y)
	}
	return bounds
}

// wipes draw the incoming item fully opaque inside the revealed area.
func isWipe(kind timeline.TransitionKind) bool {
	switch kind {
	case timeline.TransitionWipeLeft, timeline.TransitionWipeRight,
		timeline.TransitionSlideLeft, timeline.TransitionSlideRight:
		return true
	}
	return false
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - pow(-2*t+2, 3)/2
}

func pow(x float64, n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= x
	}
	return result
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
