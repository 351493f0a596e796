package scene

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/scenereel/internal/media"
	"github.com/ivlev/scenereel/internal/resource"
	"github.com/ivlev/scenereel/internal/timeline"
)

var (
	ErrUnknownKind = errors.New("scene: unknown footage kind")
	ErrNoLibrary   = errors.New("scene: gallery footage without an asset library")
)

// DefaultStillDuration is used for stills that do not declare one.
const DefaultStillDuration = 5 * time.Second

// Builder maps footage onto resources and track items.
type Builder struct {
	Env     *resource.Env
	Prober  resource.Prober
	Frames  resource.FrameSource
	Library resource.Library
	BaseDir string
	// Decode builds frame-decoding resources for video footage, for
	// renderers that need single frames.
	Decode bool
	Strict bool
}

// Build creates the scene's timeline with start times computed. Track
// durations are only known after their resources are prepared, so callers
// reload start times again once that happens.
func (b *Builder) Build(sc *Scene, size media.Size) (*timeline.Timeline, error) {
	tl := timeline.New(size)
	tl.Strict = b.Strict

	for i, f := range sc.Footage {
		item, channel, err := b.Item(f)
		if err != nil {
			return nil, fmt.Errorf("scene %s footage %d: %w", sc.ID, i, err)
		}
		tl.Append(channel, item)
	}

	if err := tl.ReloadStartTimes(); err != nil {
		return nil, fmt.Errorf("scene %s: %w", sc.ID, err)
	}
	return tl, nil
}

// Item builds the track item for one footage entry and the channel it
// belongs to.
func (b *Builder) Item(f Footage) (*timeline.TrackItem, media.Kind, error) {
	channel, err := channelOf(f)
	if err != nil {
		return nil, "", err
	}
	r, err := b.Resource(f, channel)
	if err != nil {
		return nil, "", err
	}

	mode, err := timeline.ParseContentMode(f.ContentMode)
	if err != nil {
		return nil, "", err
	}
	item := timeline.NewTrackItem(r)
	item.ContentMode = mode
	item.VideoTransition = transition(f.Transition)
	item.AudioTransition = transition(f.AudioTransition)
	return item, channel, nil
}

// Resource builds the resource for one footage entry.
func (b *Builder) Resource(f Footage, channel media.Kind) (resource.Resource, error) {
	path := b.resolve(f.Path)
	start := time.Duration(f.StartMs) * time.Millisecond
	duration := time.Duration(f.DurationMs) * time.Millisecond

	kind := strings.ToLower(f.Kind)
	still := kind == "image" || kind == "pdf"

	var r resource.Resource
	switch kind {
	case "image", "pdf":
		if duration <= 0 {
			duration = DefaultStillDuration
		}
		r = resource.NewImageFileResource(b.Env, path, f.Page, duration)
	case "video":
		if b.Decode && channel == media.KindVideo && b.Frames != nil {
			r = resource.NewFrameResource(b.Env, b.Frames, path)
		} else {
			r = resource.NewTrackResource(b.Env, b.Prober, path, channel)
		}
	case "audio":
		r = resource.NewTrackResource(b.Env, b.Prober, path, media.KindAudio)
	case "gallery":
		if b.Library == nil {
			return nil, ErrNoLibrary
		}
		r = resource.NewGalleryResource(b.Env, b.Library, f.AssetID, channel, b.assetFactory())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, f.Kind)
	}

	if duration > 0 && !still {
		if err := r.SetSelectedTimeRange(media.NewTimeRange(start, duration)); err != nil {
			return nil, err
		}
	} else if start > 0 {
		return nil, fmt.Errorf("%w: start_ms needs duration_ms", resource.ErrRangeOutOfBounds)
	}
	if f.ScaledDurationMs > 0 {
		r.SetScaledDuration(time.Duration(f.ScaledDurationMs) * time.Millisecond)
	}
	return r, nil
}

// assetFactory gives gallery stills without a declared duration the
// default one.
func (b *Builder) assetFactory() resource.Factory {
	build := resource.NewAssetFactory(b.Env, b.Prober)
	return func(a resource.Asset, d time.Duration) (resource.Resource, error) {
		if a.Kind == media.KindImage && d <= 0 {
			d = DefaultStillDuration
		}
		return build(a, d)
	}
}

func (b *Builder) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || b.BaseDir == "" {
		return path
	}
	return filepath.Join(b.BaseDir, path)
}

func channelOf(f Footage) (media.Kind, error) {
	switch strings.ToLower(f.Channel) {
	case "":
		if strings.EqualFold(f.Kind, "audio") {
			return media.KindAudio, nil
		}
		return media.KindVideo, nil
	case "video":
		return media.KindVideo, nil
	case "audio":
		return media.KindAudio, nil
	}
	return "", fmt.Errorf("unknown channel %q", f.Channel)
}

func transition(spec *TransitionSpec) *timeline.Transition {
	if spec == nil || spec.DurationMs <= 0 {
		return nil
	}
	kind := timeline.TransitionKind(strings.ToLower(spec.Kind))
	if kind == "" {
		kind = timeline.TransitionCrossfade
	}
	return &timeline.Transition{Kind: kind, Duration: time.Duration(spec.DurationMs) * time.Millisecond}
}
