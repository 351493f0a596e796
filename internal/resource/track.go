package resource

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/ivlev/scenereel/internal/media"
)

// Prober reads media metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (media.Info, error)
}

// TrackResource is one video or audio track of a media file, played
// continuously through a composition.
type TrackResource struct {
	*state
	path     string
	prober   Prober
	hasAudio bool
}

func NewTrackResource(env *Env, prober Prober, path string, kind media.Kind) *TrackResource {
	return &TrackResource{state: newState(env, kind), path: path, prober: prober}
}

func (r *TrackResource) Path() string {
	return r.path
}

func (r *TrackResource) Prepare(progress ProgressFunc, done CompletionFunc) *Task {
	return r.prepare(progress, done, r.load)
}

func (r *TrackResource) load(ctx context.Context, progress ProgressFunc) (loadResult, error) {
	progress(0)
	var info media.Info
	err := r.env.withLoadSlot(ctx, func() error {
		var err error
		info, err = r.prober.Probe(ctx, r.path)
		return err
	})
	if err != nil {
		return loadResult{}, fmt.Errorf("load %s: %w", r.path, err)
	}

	switch r.kind {
	case media.KindVideo:
		if !info.HasVideo || info.Size.IsZero() {
			return loadResult{}, fmt.Errorf("%w: %s has no video track", ErrNoTrack, r.path)
		}
	case media.KindAudio:
		if !info.HasAudio {
			return loadResult{}, fmt.Errorf("%w: %s has no audio track", ErrNoTrack, r.path)
		}
	}
	progress(1)

	return loadResult{
		size:     info.Size,
		duration: info.Duration,
		apply:    func() { r.hasAudio = info.HasAudio },
	}, nil
}

// Image always returns nil: track frames are only reachable through
// composition playback. Use a FrameResource for single frames.
func (r *TrackResource) Image(at time.Duration, renderSize media.Size) image.Image {
	return nil
}

func (r *TrackResource) Unit() Unit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Unit{Kind: r.kind, Path: r.path, HasAudio: r.hasAudio}
}

func (r *TrackResource) Copy() Resource {
	return &TrackResource{state: r.cloneTiming(), path: r.path, prober: r.prober}
}
