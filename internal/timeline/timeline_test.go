package timeline

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/ivlev/scenereel/internal/media"
	"github.com/ivlev/scenereel/internal/resource"
)

const ms = time.Millisecond

func newEnv(t *testing.T) *resource.Env {
	t.Helper()
	env := resource.NewEnv(nil, 1)
	t.Cleanup(env.Close)
	return env
}

func still(env *resource.Env, d time.Duration) *TrackItem {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	return NewTrackItem(resource.NewImageResource(env, img, d))
}

func starts(items []*TrackItem) []time.Duration {
	out := make([]time.Duration, len(items))
	for i, it := range items {
		out[i] = it.StartTime
	}
	return out
}

func equal(a, b []time.Duration) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestReloadStartTimes(t *testing.T) {
	env := newEnv(t)

	tests := []struct {
		name      string
		durations []time.Duration
		fades     []time.Duration
		want      []time.Duration
	}{
		{"two stills", []time.Duration{5000 * ms, 5000 * ms}, []time.Duration{0, 0}, []time.Duration{0, 5000 * ms}},
		{"crossfade", []time.Duration{5000 * ms, 5000 * ms}, []time.Duration{0, 300 * ms}, []time.Duration{0, 4700 * ms}},
		{"mixed", []time.Duration{2 * time.Second, 3 * time.Second, time.Second}, []time.Duration{0, 500 * ms, 0},
			[]time.Duration{0, 1500 * ms, 4500 * ms}},
		{"first item transition ignored", []time.Duration{time.Second, time.Second}, []time.Duration{400 * ms, 0},
			[]time.Duration{0, time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := New(media.Size{Width: 1280, Height: 720})
			for i, d := range tt.durations {
				it := still(env, d)
				if tt.fades[i] > 0 {
					it.VideoTransition = &Transition{Kind: TransitionCrossfade, Duration: tt.fades[i]}
				}
				tl.Append(media.KindVideo, it)
			}
			if err := tl.ReloadStartTimes(); err != nil {
				t.Fatal(err)
			}
			got := starts(tl.Channel(media.KindVideo))
			if !equal(got, tt.want) {
				t.Errorf("starts = %v, want %v", got, tt.want)
			}

			if err := tl.ReloadStartTimes(); err != nil {
				t.Fatal(err)
			}
			if again := starts(tl.Channel(media.KindVideo)); !equal(again, got) {
				t.Errorf("reload not idempotent: %v then %v", got, again)
			}
		})
	}
}

func TestReloadStartTimesUsesChannelKind(t *testing.T) {
	env := newEnv(t)
	tl := New(media.Size{})

	a, b := still(env, time.Second), still(env, time.Second)
	b.VideoTransition = &Transition{Kind: TransitionCrossfade, Duration: 200 * ms}
	tl.Append(media.KindVideo, a)
	tl.Append(media.KindVideo, b)

	c, d := still(env, time.Second), still(env, time.Second)
	d.VideoTransition = &Transition{Kind: TransitionCrossfade, Duration: 200 * ms}
	d.AudioTransition = &Transition{Kind: TransitionCrossfade, Duration: 100 * ms}
	tl.Append(media.KindAudio, c)
	tl.Append(media.KindAudio, d)

	if err := tl.ReloadStartTimes(); err != nil {
		t.Fatal(err)
	}
	if b.StartTime != 800*ms {
		t.Errorf("video start = %v, want 800ms", b.StartTime)
	}
	if d.StartTime != 900*ms {
		t.Errorf("audio start = %v, want 900ms", d.StartTime)
	}
	if got := tl.Duration(); got != 1900*ms {
		t.Errorf("Duration = %v, want 1.9s", got)
	}
}

func TestNegativeStartClampedOrRejected(t *testing.T) {
	env := newEnv(t)

	build := func() *Timeline {
		tl := New(media.Size{})
		a, b := still(env, 200*ms), still(env, time.Second)
		b.VideoTransition = &Transition{Kind: TransitionFadeBlack, Duration: 500 * ms}
		tl.Append(media.KindVideo, a)
		tl.Append(media.KindVideo, b)
		return tl
	}

	tl := build()
	if err := tl.ReloadStartTimes(); err != nil {
		t.Fatalf("clamping mode returned %v", err)
	}
	for _, s := range starts(tl.Channel(media.KindVideo)) {
		if s < 0 {
			t.Errorf("negative start %v after clamping", s)
		}
	}

	tl = build()
	tl.Strict = true
	if err := tl.ReloadStartTimes(); !errors.Is(err, ErrNegativeStart) {
		t.Errorf("strict mode: expected ErrNegativeStart, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	env := newEnv(t)

	tl := New(media.Size{})
	a, b := still(env, time.Second), still(env, 2*time.Second)
	b.VideoTransition = &Transition{Kind: TransitionCrossfade, Duration: time.Second}
	tl.Append(media.KindVideo, a)
	tl.Append(media.KindVideo, b)
	if err := tl.Validate(); err != nil {
		t.Errorf("transition equal to shorter item should be valid: %v", err)
	}

	b.VideoTransition.Duration = 1500 * ms
	if err := tl.Validate(); !errors.Is(err, ErrTransitionTooLong) {
		t.Errorf("expected ErrTransitionTooLong, got %v", err)
	}

	tl.Append(media.KindVideo, still(env, 0))
	err := tl.Validate()
	if !errors.Is(err, ErrInvalidDuration) || !errors.Is(err, ErrTransitionTooLong) {
		t.Errorf("expected both errors joined, got %v", err)
	}
}

func TestItemsAtTransitionWindow(t *testing.T) {
	env := newEnv(t)
	tl := New(media.Size{})
	a, b := still(env, 5000*ms), still(env, 5000*ms)
	b.VideoTransition = &Transition{Kind: TransitionCrossfade, Duration: 300 * ms}
	tl.Append(media.KindVideo, a)
	tl.Append(media.KindVideo, b)
	tl.ReloadStartTimes()

	tests := []struct {
		at   time.Duration
		want []*TrackItem
	}{
		{0, []*TrackItem{a}},
		{4800 * ms, []*TrackItem{a, b}},
		{5000 * ms, []*TrackItem{b}},
		{9700 * ms, nil},
	}
	for _, tt := range tests {
		got := tl.ItemsAt(media.KindVideo, tt.at)
		if len(got) != len(tt.want) {
			t.Errorf("ItemsAt(%v) = %v, want %v", tt.at, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ItemsAt(%v)[%d] = %v, want %v", tt.at, i, got[i], tt.want[i])
			}
		}
	}

	if tl.TransitionAt(media.KindVideo, 1) == nil || tl.TransitionAt(media.KindVideo, 0) != nil {
		t.Error("TransitionAt reports the wrong boundaries")
	}
}

func TestLocalTime(t *testing.T) {
	env := newEnv(t)
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	r := resource.NewImageResource(env, img, 10*time.Second)
	if err := r.SetSelectedTimeRange(media.NewTimeRange(2*time.Second, 4*time.Second)); err != nil {
		t.Fatal(err)
	}
	it := NewTrackItem(r)
	it.StartTime = time.Second

	if it.EndTime() != 5*time.Second {
		t.Errorf("EndTime = %v, want 5s", it.EndTime())
	}

	tests := []struct {
		global time.Duration
		scaled time.Duration
		want   time.Duration
	}{
		{time.Second, 0, 2 * time.Second},
		{2 * time.Second, 0, 3 * time.Second},
		{0, 0, 2 * time.Second},
		{10 * time.Second, 0, 6 * time.Second},
		{2 * time.Second, 8 * time.Second, 2500 * ms},
		{9 * time.Second, 8 * time.Second, 6 * time.Second},
	}
	for _, tt := range tests {
		r.SetScaledDuration(tt.scaled)
		if got := it.LocalTime(tt.global); got != tt.want {
			t.Errorf("LocalTime(%v) with scale %v = %v, want %v", tt.global, tt.scaled, got, tt.want)
		}
	}
}

func TestParseContentMode(t *testing.T) {
	for in, want := range map[string]ContentMode{"": ContentFill, "fill": ContentFill, "FIT": ContentFit} {
		got, err := ParseContentMode(in)
		if err != nil || got != want {
			t.Errorf("ParseContentMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseContentMode("stretch"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
