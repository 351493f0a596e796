package effects

import (
	"strings"
	"testing"
	"time"

	"github.com/ivlev/scenereel/internal/media"
	"github.com/ivlev/scenereel/internal/timeline"
)

func TestGeometry(t *testing.T) {
	size := media.Size{Width: 1280, Height: 720}

	fill := Geometry(timeline.ContentFill, size)
	if !strings.Contains(fill, "force_original_aspect_ratio=increase") || !strings.Contains(fill, "crop=1280:720") {
		t.Errorf("fill geometry should scale up and crop: %s", fill)
	}

	fit := Geometry(timeline.ContentFit, size)
	if !strings.Contains(fit, "force_original_aspect_ratio=decrease") || !strings.Contains(fit, "pad=1280:720") {
		t.Errorf("fit geometry should scale down and pad: %s", fit)
	}
}

func TestRetime(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "setpts=PTS-STARTPTS"},
		{0, "setpts=PTS-STARTPTS"},
		{2, "setpts=(PTS-STARTPTS)/2"},
		{0.5, "setpts=(PTS-STARTPTS)/0.5"},
	}
	for _, tt := range tests {
		if got := Retime(tt.rate); got != tt.want {
			t.Errorf("Retime(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestAudioRetimeChainsSlowRates(t *testing.T) {
	got := AudioRetime(0.2)
	if strings.Count(got, "atempo=") != 3 {
		t.Errorf("expected three atempo stages for 0.2x, got %q", got)
	}
	if got := AudioRetime(1.5); got != "atempo=1.5,asetpts=PTS-STARTPTS" {
		t.Errorf("AudioRetime(1.5) = %q", got)
	}
}

func TestSegmentChain(t *testing.T) {
	got := Segment(timeline.ContentFit, media.Size{Width: 640, Height: 360}, 25, 1)
	if !strings.HasPrefix(got, "setpts=PTS-STARTPTS,scale=640:360") || !strings.HasSuffix(got, "fps=25,format=yuv420p") {
		t.Errorf("unexpected segment chain %q", got)
	}
}

func TestXFade(t *testing.T) {
	tests := map[timeline.TransitionKind]string{
		timeline.TransitionCrossfade: "fade",
		timeline.TransitionWipeLeft:  "wipeleft",
		"sparkle":                    "fade",
	}
	for kind, want := range tests {
		if got := XFade(kind); got != want {
			t.Errorf("XFade(%s) = %s, want %s", kind, got, want)
		}
	}
	if ACrossfadeCurve(timeline.TransitionFadeBlack) != "exp" || ACrossfadeCurve(timeline.TransitionCrossfade) != "tri" {
		t.Error("unexpected acrossfade curves")
	}
}

func TestSeconds(t *testing.T) {
	if got := Seconds(1500 * time.Millisecond); got != "1.5" {
		t.Errorf("Seconds = %s", got)
	}
}
