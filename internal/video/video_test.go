package video

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/scenereel/internal/composition"
	"github.com/ivlev/scenereel/internal/media"
	"github.com/ivlev/scenereel/internal/resource"
	"github.com/ivlev/scenereel/internal/timeline"
)

const ms = time.Millisecond

func stillSeg(path string, start, d time.Duration) composition.Segment {
	return composition.Segment{
		ItemID:   uuid.New(),
		Timeline: media.NewTimeRange(start, d),
		Source:   media.NewTimeRange(0, d),
		Rate:     1,
		Unit:     resource.Unit{Kind: media.KindImage, Path: path},
	}
}

func newComp(segs ...composition.Segment) *composition.Composition {
	comp := &composition.Composition{
		ID:         uuid.New(),
		RenderSize: media.Size{Width: 1280, Height: 720},
		FPS:        30,
		Tracks:     map[media.Kind][]composition.Segment{media.KindVideo: segs},
	}
	for _, s := range segs {
		comp.Duration = max(comp.Duration, s.Timeline.End())
	}
	return comp
}

func filterGraph(t *testing.T, args []string) string {
	t.Helper()
	for i, a := range args {
		if a == "-filter_complex" && i+1 < len(args) {
			return args[i+1]
		}
	}
	t.Fatal("no -filter_complex in args")
	return ""
}

func TestBuildArgsCrossfade(t *testing.T) {
	a := stillSeg("a.png", 0, 5000*ms)
	b := stillSeg("b.png", 4700*ms, 5000*ms)
	comp := newComp(a, b)
	comp.Transitions = []composition.TransitionInstruction{{
		Channel: media.KindVideo,
		Kind:    timeline.TransitionCrossfade,
		From:    a.ItemID,
		To:      b.ItemID,
		Window:  media.NewTimeRange(4700*ms, 300*ms),
	}}

	args, err := BuildArgs(comp, nil, "out.mp4", Options{VideoEncoder: "libx264", Quality: 23})
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-loop 1 -framerate 30 -t 5 -i a.png") {
		t.Errorf("still input not looped: %s", joined)
	}
	fg := filterGraph(t, args)
	if !strings.Contains(fg, "xfade=transition=fade:duration=0.3:offset=4.7") {
		t.Errorf("expected xfade at 4.7s: %s", fg)
	}
	if strings.Contains(fg, "concat") {
		t.Errorf("transition boundary should not concat: %s", fg)
	}
	if !strings.Contains(joined, "-crf 23 -preset medium") || args[len(args)-1] != "out.mp4" {
		t.Errorf("unexpected encoder args: %s", joined)
	}
	if !strings.Contains(joined, "-t 9.7 out.mp4") {
		t.Errorf("expected total duration 9.7s: %s", joined)
	}
}

func TestBuildArgsGapAfterSkippedItem(t *testing.T) {
	a := stillSeg("a.png", 0, 2*time.Second)
	c := stillSeg("c.png", 4*time.Second, 2*time.Second)
	comp := newComp(a, c)

	args, err := BuildArgs(comp, nil, "out.mp4", Options{})
	if err != nil {
		t.Fatal(err)
	}
	fg := filterGraph(t, args)
	if !strings.Contains(fg, "tpad=stop_mode=add:stop_duration=2:color=black") {
		t.Errorf("expected a 2s black pad for the gap: %s", fg)
	}
	if !strings.Contains(fg, "concat=n=2:v=1:a=0") {
		t.Errorf("expected concat at the plain boundary: %s", fg)
	}
}

func TestBuildArgsLeadingGapAndClip(t *testing.T) {
	clip := composition.Segment{
		ItemID:      uuid.New(),
		Timeline:    media.NewTimeRange(time.Second, 2*time.Second),
		Source:      media.NewTimeRange(3*time.Second, 4*time.Second),
		Rate:        2,
		ContentMode: timeline.ContentFit,
		Unit:        resource.Unit{Kind: media.KindVideo, Path: "clip.mp4"},
	}
	comp := newComp(clip)

	args, err := BuildArgs(comp, nil, "out.mp4", Options{VideoEncoder: "h264_nvenc", Quality: 28})
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-ss 3 -t 4 -i clip.mp4") {
		t.Errorf("clip input should seek into the selected range: %s", joined)
	}
	fg := filterGraph(t, args)
	for _, want := range []string{"setpts=(PTS-STARTPTS)/2", "pad=1280:720", "tpad=start_duration=1:color=black"} {
		if !strings.Contains(fg, want) {
			t.Errorf("filter graph missing %q: %s", want, fg)
		}
	}
	if !strings.Contains(joined, "-cq 28") {
		t.Errorf("expected nvenc quality: %s", joined)
	}
}

func TestBuildArgsAudioTrack(t *testing.T) {
	v := stillSeg("a.png", 0, 4*time.Second)
	comp := newComp(v)
	m1 := composition.Segment{
		ItemID:   uuid.New(),
		Timeline: media.NewTimeRange(0, 2*time.Second),
		Source:   media.NewTimeRange(0, 2*time.Second),
		Rate:     1,
		Unit:     resource.Unit{Kind: media.KindAudio, Path: "one.m4a"},
	}
	m2 := m1
	m2.ItemID = uuid.New()
	m2.Timeline = media.NewTimeRange(1500*ms, 2500*ms)
	m2.Unit.Path = "two.m4a"
	comp.Tracks[media.KindAudio] = []composition.Segment{m1, m2}
	comp.Transitions = []composition.TransitionInstruction{{
		Channel: media.KindAudio,
		Kind:    timeline.TransitionCrossfade,
		From:    m1.ItemID,
		To:      m2.ItemID,
		Window:  media.NewTimeRange(1500*ms, 500*ms),
	}}

	args, err := BuildArgs(comp, nil, "out.mp4", Options{})
	if err != nil {
		t.Fatal(err)
	}
	fg := filterGraph(t, args)
	if !strings.Contains(fg, "acrossfade=d=0.5:c1=tri:c2=tri") {
		t.Errorf("expected acrossfade: %s", fg)
	}
	if strings.Count(strings.Join(args, " "), "-map") != 2 {
		t.Errorf("expected video and audio maps: %v", args)
	}
}

func TestBuildArgsAudioOnly(t *testing.T) {
	comp := &composition.Composition{
		RenderSize: media.Size{Width: 640, Height: 360},
		FPS:        25,
		Duration:   3 * time.Second,
		Tracks: map[media.Kind][]composition.Segment{media.KindAudio: {{
			ItemID:   uuid.New(),
			Timeline: media.NewTimeRange(0, 3*time.Second),
			Source:   media.NewTimeRange(0, 3*time.Second),
			Rate:     1,
			Unit:     resource.Unit{Kind: media.KindAudio, Path: "voice.wav"},
		}}},
	}
	args, err := BuildArgs(comp, nil, "out.mp4", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(strings.Join(args, " "), "color=c=black:s=640x360:r=25:d=3") {
		t.Errorf("expected a black background source: %v", args)
	}
}

func TestBuildArgsEmpty(t *testing.T) {
	if _, err := BuildArgs(&composition.Composition{}, nil, "out.mp4", Options{}); !errors.Is(err, ErrEmptyComposition) {
		t.Errorf("expected ErrEmptyComposition, got %v", err)
	}
}

func TestWriteStills(t *testing.T) {
	mem := stillSeg("", 0, time.Second)
	mem.Unit.Image = image.NewRGBA(image.Rect(0, 0, 8, 8))
	page := stillSeg("deck.pdf", time.Second, time.Second)
	page.Unit.Image = image.NewRGBA(image.Rect(0, 0, 8, 8))
	file := stillSeg("photo.jpg", 2*time.Second, time.Second)
	file.Unit.Image = image.NewRGBA(image.Rect(0, 0, 8, 8))

	dir := t.TempDir()
	stills, err := writeStills(newComp(mem, page, file), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(stills) != 2 {
		t.Fatalf("expected stills for the in-memory image and the pdf page, got %v", stills)
	}
	for id, path := range stills {
		if filepath.Dir(path) != dir {
			t.Errorf("%s written outside the temp dir: %s", id, path)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("still missing: %v", err)
		}
	}

	args, err := BuildArgs(newComp(mem, page, file), stills, "out.mp4", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(strings.Join(args, " "), stills[mem.ItemID]) {
		t.Error("in-memory still should be read from its temp file")
	}
}

func TestQualityArgs(t *testing.T) {
	tests := []struct {
		encoder string
		quality int
		want    string
	}{
		{"h264_videotoolbox", 75, "-b:v 7500k"},
		{"h264_nvenc", 28, "-cq 28"},
		{"libx264", 23, "-crf 23 -preset medium"},
	}
	for _, tt := range tests {
		if got := strings.Join(QualityArgs(tt.encoder, tt.quality), " "); got != tt.want {
			t.Errorf("QualityArgs(%s) = %q, want %q", tt.encoder, got, tt.want)
		}
	}
}
