// Package effects builds the ffmpeg filter fragments a segment passes
// through before it joins the output chain.
package effects

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ivlev/scenereel/internal/media"
	"github.com/ivlev/scenereel/internal/timeline"
)

// Geometry fits frames of any size into size.
func Geometry(mode timeline.ContentMode, size media.Size) string {
	w, h := size.Width, size.Height
	if mode == timeline.ContentFit {
		return fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1",
			w, h, w, h,
		)
	}
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1",
		w, h, w, h,
	)
}

// Retime remaps presentation timestamps so a segment with the given rate
// (source seconds per output second) plays in its timeline duration.
func Retime(rate float64) string {
	if rate <= 0 || rate == 1 {
		return "setpts=PTS-STARTPTS"
	}
	return "setpts=(PTS-STARTPTS)/" + formatFloat(rate)
}

// AudioRetime is the audio counterpart of Retime. atempo accepts factors
// in [0.5, 100], so slower rates are chained.
func AudioRetime(rate float64) string {
	if rate <= 0 || rate == 1 {
		return "asetpts=PTS-STARTPTS"
	}
	var parts []string
	for rate < 0.5 {
		parts = append(parts, "atempo=0.5")
		rate /= 0.5
	}
	parts = append(parts, "atempo="+formatFloat(rate))
	return strings.Join(parts, ",") + ",asetpts=PTS-STARTPTS"
}

// Segment is the full per-segment video chain: retime, geometry, frame
// rate and pixel format, so every segment can be joined by xfade/concat.
func Segment(mode timeline.ContentMode, size media.Size, fps int, rate float64) string {
	return fmt.Sprintf("%s,%s,fps=%d,format=yuv420p", Retime(rate), Geometry(mode, size), fps)
}

// AudioSegment normalizes an audio segment for acrossfade/concat.
func AudioSegment(rate float64) string {
	return AudioRetime(rate) + ",aresample=48000,aformat=sample_fmts=fltp:channel_layouts=stereo"
}

var xfadeNames = map[timeline.TransitionKind]string{
	timeline.TransitionCrossfade:  "fade",
	timeline.TransitionFadeBlack:  "fadeblack",
	timeline.TransitionWipeLeft:   "wipeleft",
	timeline.TransitionWipeRight:  "wiperight",
	timeline.TransitionSlideLeft:  "slideleft",
	timeline.TransitionSlideRight: "slideright",
	timeline.TransitionDissolve:   "dissolve",
}

// XFade returns the ffmpeg xfade transition name for kind. Unknown kinds
// fall back to a plain fade.
func XFade(kind timeline.TransitionKind) string {
	if name, ok := xfadeNames[kind]; ok {
		return name
	}
	return "fade"
}

// ACrossfadeCurve picks the acrossfade curve matching a video transition.
func ACrossfadeCurve(kind timeline.TransitionKind) string {
	if kind == timeline.TransitionFadeBlack {
		return "exp"
	}
	return "tri"
}

// Seconds formats a duration in seconds the way ffmpeg options expect.
func Seconds(d time.Duration) string {
	return formatFloat(d.Seconds())
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
