package composition

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/ivlev/scenereel/internal/media"
	"github.com/ivlev/scenereel/internal/resource"
	"github.com/ivlev/scenereel/internal/timeline"
)

const ms = time.Millisecond

type stubProber struct {
	info media.Info
	err  error
}

func (p stubProber) Probe(ctx context.Context, path string) (media.Info, error) {
	return p.info, p.err
}

func newEnv(t *testing.T) *resource.Env {
	t.Helper()
	env := resource.NewEnv(nil, 1)
	t.Cleanup(env.Close)
	return env
}

func stillItem(env *resource.Env, d time.Duration) *timeline.TrackItem {
	img := image.NewRGBA(image.Rect(0, 0, 640, 360))
	return timeline.NewTrackItem(resource.NewImageResource(env, img, d))
}

func twoStills(env *resource.Env, fade time.Duration) *timeline.Timeline {
	tl := timeline.New(media.Size{Width: 640, Height: 360})
	a, b := stillItem(env, 5000*ms), stillItem(env, 5000*ms)
	if fade > 0 {
		b.VideoTransition = &timeline.Transition{Kind: timeline.TransitionCrossfade, Duration: fade}
	}
	tl.Append(media.KindVideo, a)
	tl.Append(media.KindVideo, b)
	tl.ReloadStartTimes()
	return tl
}

func TestBuildAllAvailable(t *testing.T) {
	env := newEnv(t)
	tl := twoStills(env, 300*ms)

	comp, err := NewGenerator(2, 25).Build(tl)
	if err != nil {
		t.Fatal(err)
	}
	if !comp.Complete() {
		t.Errorf("Expected no skipped items, got %v", comp.Skipped)
	}
	segs := comp.Track(media.KindVideo)
	if len(segs) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(segs))
	}
	if segs[1].Timeline.Start != 4700*ms {
		t.Errorf("second segment starts at %v, want 4.7s", segs[1].Timeline.Start)
	}
	if len(comp.Transitions) != 1 {
		t.Fatalf("Expected 1 transition, got %d", len(comp.Transitions))
	}
	tr := comp.Transitions[0]
	if tr.From != segs[0].ItemID || tr.To != segs[1].ItemID {
		t.Error("transition joins the wrong items")
	}
	if tr.Window != media.NewTimeRange(4700*ms, 300*ms) {
		t.Errorf("transition window = %v", tr.Window)
	}
	if comp.TransitionInto(media.KindVideo, segs[1].ItemID) == nil {
		t.Error("TransitionInto did not find the transition")
	}
	if comp.RenderSize != (media.Size{Width: 1280, Height: 720}) {
		t.Errorf("RenderSize = %v, want 1280x720", comp.RenderSize)
	}
	if comp.Duration != 9700*ms {
		t.Errorf("Duration = %v, want 9.7s", comp.Duration)
	}
	if comp.FPS != 25 {
		t.Errorf("FPS = %d", comp.FPS)
	}
}

func TestBuildSkipsUnavailableItem(t *testing.T) {
	env := newEnv(t)
	tl := twoStills(env, 300*ms)

	pending := timeline.NewTrackItem(resource.NewTrackResource(env, stubProber{}, "clip.mp4", media.KindVideo))
	tl.Append(media.KindVideo, pending)

	comp, err := NewGenerator(1, 30).Build(tl)
	if err != nil {
		t.Fatal(err)
	}
	if len(comp.Skipped) != 1 {
		t.Fatalf("Expected exactly one skip, got %v", comp.Skipped)
	}
	skip := comp.Skipped[0]
	if skip.ItemID != pending.ID || skip.Status != resource.StatusUnavailable || skip.Index != 2 {
		t.Errorf("Unexpected skip %v", skip)
	}
	if n := len(comp.Track(media.KindVideo)); n != 2 {
		t.Errorf("Expected the other 2 items to compile, got %d", n)
	}
}

func TestBuildDropsTransitionTouchingSkippedItem(t *testing.T) {
	env := newEnv(t)
	tl := timeline.New(media.Size{Width: 320, Height: 240})

	failed := resource.NewTrackResource(env, stubProber{err: errors.New("corrupt")}, "bad.mp4", media.KindVideo)
	if _, err := resource.Wait(context.Background(), failed); err == nil {
		t.Fatal("expected prepare to fail")
	}

	a := timeline.NewTrackItem(failed)
	b := stillItem(env, time.Second)
	b.VideoTransition = &timeline.Transition{Kind: timeline.TransitionCrossfade, Duration: 200 * ms}
	tl.Append(media.KindVideo, a)
	tl.Append(media.KindVideo, b)
	tl.ReloadStartTimes()

	comp, err := NewGenerator(1, 30).Build(tl)
	if err != nil {
		t.Fatal(err)
	}
	if len(comp.Transitions) != 0 {
		t.Errorf("Expected no transitions, got %v", comp.Transitions)
	}
	if len(comp.Skipped) != 1 || comp.Skipped[0].Err == nil {
		t.Errorf("Expected one skip carrying the load error, got %v", comp.Skipped)
	}
}

func TestBuildSourceRangesAndRate(t *testing.T) {
	env := newEnv(t)
	info := media.Info{Size: media.Size{Width: 1920, Height: 1080}, Duration: 10 * time.Second, HasVideo: true}
	clip := resource.NewTrackResource(env, stubProber{info: info}, "clip.mp4", media.KindVideo)
	if status, err := resource.Wait(context.Background(), clip); status != resource.StatusAvailable {
		t.Fatalf("prepare failed: %v", err)
	}
	clip.SetSelectedTimeRange(media.NewTimeRange(2*time.Second, 4*time.Second))
	clip.SetScaledDuration(2 * time.Second)

	tl := timeline.New(media.Size{})
	item := timeline.NewTrackItem(clip)
	item.ContentMode = timeline.ContentFit
	tl.Append(media.KindVideo, item)
	tl.ReloadStartTimes()

	comp, err := NewGenerator(1, 30).Build(tl)
	if err != nil {
		t.Fatal(err)
	}
	seg := comp.Track(media.KindVideo)[0]
	if seg.Source != media.NewTimeRange(2*time.Second, 4*time.Second) {
		t.Errorf("Source = %v", seg.Source)
	}
	if seg.Timeline.Duration != 2*time.Second || seg.Rate != 2 {
		t.Errorf("Timeline = %v, rate = %v", seg.Timeline, seg.Rate)
	}
	if seg.ContentMode != timeline.ContentFit || seg.Unit.Path != "clip.mp4" {
		t.Errorf("Unexpected segment %+v", seg)
	}
	if comp.RenderSize != (media.Size{Width: 1920, Height: 1080}) {
		t.Errorf("RenderSize should fall back to the source size, got %v", comp.RenderSize)
	}
}

func TestBuildNilTimeline(t *testing.T) {
	if _, err := NewGenerator(1, 30).Build(nil); !errors.Is(err, ErrNoTimeline) {
		t.Errorf("expected ErrNoTimeline, got %v", err)
	}
}
