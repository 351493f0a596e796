package resource

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/ivlev/scenereel/internal/media"
	"github.com/ivlev/scenereel/internal/system"
)

// Frame is one decoded picture and its presentation time in source-local
// time. Readers may yield frames with a nil Image while skipping toward
// their start; those count as pulls but never match a request.
type Frame struct {
	Image *image.RGBA
	Time  time.Duration
}

// FrameReader yields frames sequentially; there is no random seek.
type FrameReader interface {
	ReadFrame() (Frame, bool)
	Close() error
}

// FrameSource opens sequential readers over a media file.
type FrameSource interface {
	Prober
	// Open returns a reader whose first image is at or before r.Start and
	// that stops at r.End().
	Open(path string, r media.TimeRange) (FrameReader, error)
}

// FrameResource decodes single video frames on demand for custom
// renderers. Image calls must be serialized by the caller.
type FrameResource struct {
	*state
	path string
	src  FrameSource

	reader FrameReader
	// cursor is the latest time the active reader has been asked for.
	// When last is set it is the answer for cursor.
	cursor time.Duration
	last   *Frame
}

func NewFrameResource(env *Env, src FrameSource, path string) *FrameResource {
	return &FrameResource{state: newState(env, media.KindVideo), path: path, src: src}
}

func (r *FrameResource) Path() string {
	return r.path
}

func (r *FrameResource) Prepare(progress ProgressFunc, done CompletionFunc) *Task {
	return r.prepare(progress, done, r.load)
}

func (r *FrameResource) load(ctx context.Context, progress ProgressFunc) (loadResult, error) {
	progress(0)
	var info media.Info
	err := r.env.withLoadSlot(ctx, func() error {
		var err error
		info, err = r.src.Probe(ctx, r.path)
		return err
	})
	if err != nil {
		return loadResult{}, fmt.Errorf("load %s: %w", r.path, err)
	}
	if !info.HasVideo || info.Size.IsZero() {
		return loadResult{}, fmt.Errorf("%w: %s has no video track", ErrNoTrack, r.path)
	}
	progress(1)
	return loadResult{size: info.Size, duration: info.Duration}, nil
}

// Image returns the first frame whose time is not earlier than at minus the
// frame tolerance. The active reader is reused while requests move forward
// within the seek window and recreated on backward or large jumps. The
// returned image is valid until the next call.
func (r *FrameResource) Image(at time.Duration, renderSize media.Size) image.Image {
	if r.Status() != StatusAvailable {
		return nil
	}
	opts := r.env.Decode
	end := r.SelectedTimeRange().End()
	if at < 0 || at >= end {
		return nil
	}

	if r.reader != nil && r.last != nil && at >= r.cursor && at <= r.last.Time+opts.FrameTolerance {
		r.cursor = at
		return r.last.Image
	}

	if r.needsReader(at, opts.SeekWindow) {
		r.closeReader()
		reader, err := r.src.Open(r.path, media.NewTimeRange(at, end-at))
		if err != nil {
			r.env.Log.Warn().Err(err).Str("path", r.path).Msg("cannot open frame reader")
			return nil
		}
		r.reader = reader
	}
	r.cursor = at

	for pulls := 0; pulls < opts.MaxFramePulls; pulls++ {
		frame, ok := r.reader.ReadFrame()
		if !ok {
			r.closeReader()
			return nil
		}
		if frame.Image != nil && frame.Time >= at-opts.FrameTolerance {
			r.replaceLast(frame)
			return frame.Image
		}
		system.PutImage(frame.Image)
	}
	r.dropLast()
	return nil
}

func (r *FrameResource) needsReader(at, window time.Duration) bool {
	if r.reader == nil {
		return true
	}
	return at < r.cursor || at-r.cursor > window
}

func (r *FrameResource) replaceLast(f Frame) {
	if r.last != nil {
		system.PutImage(r.last.Image)
	}
	r.last = &f
}

func (r *FrameResource) dropLast() {
	if r.last != nil {
		system.PutImage(r.last.Image)
		r.last = nil
	}
}

func (r *FrameResource) closeReader() {
	if r.reader != nil {
		r.reader.Close()
		r.reader = nil
	}
	r.dropLast()
}

// Close releases the active reader.
func (r *FrameResource) Close() error {
	r.closeReader()
	return nil
}

func (r *FrameResource) Unit() Unit {
	return Unit{Kind: media.KindVideo, Path: r.path}
}

func (r *FrameResource) Copy() Resource {
	return &FrameResource{state: r.cloneTiming(), path: r.path, src: r.src}
}
