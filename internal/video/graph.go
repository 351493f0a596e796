package video

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/scenereel/internal/composition"
	"github.com/ivlev/scenereel/internal/effects"
	"github.com/ivlev/scenereel/internal/media"
)

// graph accumulates inputs and filter_complex statements.
type graph struct {
	inputs  []string
	filters []string
	count   int
	labels  int
}

func (g *graph) input(args ...string) int {
	g.inputs = append(g.inputs, args...)
	g.count++
	return g.count - 1
}

func (g *graph) label(prefix string) string {
	g.labels++
	return fmt.Sprintf("[%s%d]", prefix, g.labels)
}

func (g *graph) add(in, filter, out string) {
	g.filters = append(g.filters, in+filter+out)
}

// BuildArgs compiles comp into an ffmpeg argument list. stills maps item
// ids to image files that replace the segment's unit path.
func BuildArgs(comp *composition.Composition, stills map[uuid.UUID]string, outPath string, opts Options) ([]string, error) {
	if comp == nil || comp.Duration <= 0 {
		return nil, ErrEmptyComposition
	}
	size := comp.RenderSize
	if size.IsZero() {
		return nil, fmt.Errorf("%w: no render size", ErrEmptyComposition)
	}
	fps := comp.FPS
	if fps <= 0 {
		fps = 30
	}

	g := &graph{}
	vout := buildVideo(g, comp, stills, size, fps)
	aout := buildAudio(g, comp)

	args := []string{"-y"}
	args = append(args, g.inputs...)
	args = append(args, "-filter_complex", strings.Join(g.filters, ";"))
	args = append(args, "-map", vout)
	if aout != "" {
		args = append(args, "-map", aout, "-c:a", "aac", "-b:a", "192k")
	}

	encoder := opts.VideoEncoder
	if encoder == "" {
		encoder = "libx264"
	}
	args = append(args, "-c:v", encoder, "-pix_fmt", "yuv420p", "-r", strconv.Itoa(fps))
	args = append(args, QualityArgs(encoder, opts.Quality)...)
	args = append(args, "-t", effects.Seconds(comp.Duration), outPath)
	return args, nil
}

func buildVideo(g *graph, comp *composition.Composition, stills map[uuid.UUID]string, size media.Size, fps int) string {
	segs := comp.Track(media.KindVideo)
	if len(segs) == 0 {
		idx := g.input("-f", "lavfi", "-i", fmt.Sprintf("color=c=black:s=%s:r=%d:d=%s",
			size, fps, effects.Seconds(comp.Duration)))
		out := g.label("v")
		g.add(fmt.Sprintf("[%d:v]", idx), "format=yuv420p,setsar=1", out)
		return out
	}

	var acc string
	var accEnd time.Duration
	for i, seg := range segs {
		in := videoInput(g, seg, stills, fps)
		s := g.label("s")
		chain := effects.Segment(seg.ContentMode, size, fps, seg.Rate)
		g.add(fmt.Sprintf("[%d:v]", in), chain+",trim=duration="+effects.Seconds(seg.Timeline.Duration), s)

		if i == 0 {
			acc = s
			if seg.Timeline.Start > 0 {
				acc = g.label("p")
				g.add(s, "tpad=start_duration="+effects.Seconds(seg.Timeline.Start)+":color=black", acc)
			}
			accEnd = seg.Timeline.End()
			continue
		}

		if tr := comp.TransitionInto(media.KindVideo, seg.ItemID); tr != nil && tr.From == segs[i-1].ItemID {
			out := g.label("x")
			g.add(acc+s, fmt.Sprintf("xfade=transition=%s:duration=%s:offset=%s",
				effects.XFade(tr.Kind), effects.Seconds(tr.Window.Duration), effects.Seconds(tr.Window.Start)), out)
			acc, accEnd = out, seg.Timeline.End()
			continue
		}

		next := s
		switch gap := seg.Timeline.Start - accEnd; {
		case gap > 0:
			padded := g.label("g")
			g.add(acc, "tpad=stop_mode=add:stop_duration="+effects.Seconds(gap)+":color=black", padded)
			acc = padded
		case gap < 0:
			next = g.label("t")
			g.add(s, "trim=start="+effects.Seconds(-gap)+",setpts=PTS-STARTPTS", next)
		}
		out := g.label("c")
		g.add(acc+next, "concat=n=2:v=1:a=0", out)
		acc, accEnd = out, max(accEnd, seg.Timeline.End())
	}

	if rest := comp.Duration - accEnd; rest > 0 {
		padded := g.label("g")
		g.add(acc, "tpad=stop_mode=add:stop_duration="+effects.Seconds(rest)+":color=black", padded)
		acc = padded
	}
	return acc
}

func videoInput(g *graph, seg composition.Segment, stills map[uuid.UUID]string, fps int) int {
	if seg.Unit.Kind == media.KindImage {
		path := seg.Unit.Path
		if p, ok := stills[seg.ItemID]; ok {
			path = p
		}
		return g.input("-loop", "1", "-framerate", strconv.Itoa(fps),
			"-t", effects.Seconds(seg.Timeline.Duration), "-i", path)
	}
	return g.input("-ss", effects.Seconds(seg.Source.Start), "-t", effects.Seconds(seg.Source.Duration),
		"-i", seg.Unit.Path)
}

func buildAudio(g *graph, comp *composition.Composition) string {
	segs := comp.Track(media.KindAudio)
	if len(segs) == 0 {
		return ""
	}

	var acc string
	var accEnd time.Duration
	for i, seg := range segs {
		in := g.input("-ss", effects.Seconds(seg.Source.Start), "-t", effects.Seconds(seg.Source.Duration),
			"-i", seg.Unit.Path)
		s := g.label("a")
		g.add(fmt.Sprintf("[%d:a]", in),
			effects.AudioSegment(seg.Rate)+",atrim=duration="+effects.Seconds(seg.Timeline.Duration), s)

		if i == 0 {
			acc = s
			if seg.Timeline.Start > 0 {
				acc = g.label("ad")
				g.add(s, fmt.Sprintf("adelay=delays=%d:all=1", seg.Timeline.Start.Milliseconds()), acc)
			}
			accEnd = seg.Timeline.End()
			continue
		}

		if tr := comp.TransitionInto(media.KindAudio, seg.ItemID); tr != nil && tr.From == segs[i-1].ItemID {
			out := g.label("ax")
			curve := effects.ACrossfadeCurve(tr.Kind)
			g.add(acc+s, fmt.Sprintf("acrossfade=d=%s:c1=%s:c2=%s",
				effects.Seconds(tr.Window.Duration), curve, curve), out)
			acc, accEnd = out, seg.Timeline.End()
			continue
		}

		next := s
		switch gap := seg.Timeline.Start - accEnd; {
		case gap > 0:
			padded := g.label("ag")
			g.add(acc, "apad=pad_dur="+effects.Seconds(gap), padded)
			acc = padded
		case gap < 0:
			next = g.label("at")
			g.add(s, "atrim=start="+effects.Seconds(-gap)+",asetpts=PTS-STARTPTS", next)
		}
		out := g.label("ac")
		g.add(acc+next, "concat=n=2:v=0:a=1", out)
		acc, accEnd = out, max(accEnd, seg.Timeline.End())
	}
	return acc
}
