// Package timeline arranges resources into ordered multi-channel timelines.
package timeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/scenereel/internal/logging"
	"github.com/ivlev/scenereel/internal/media"
)

var (
	ErrInvalidDuration   = errors.New("timeline: item duration must be positive")
	ErrTransitionTooLong = errors.New("timeline: transition longer than adjacent item")
	ErrNegativeStart     = errors.New("timeline: computed start time is negative")
)

// Timeline holds one ordered channel of items per media kind. It is meant
// to be edited from a single goroutine.
type Timeline struct {
	RenderSize media.Size
	// Strict turns a negative computed start into ErrNegativeStart instead
	// of clamping it to zero.
	Strict bool
	Log    zerolog.Logger

	channels map[media.Kind][]*TrackItem
	order    []media.Kind
}

func New(renderSize media.Size) *Timeline {
	return &Timeline{
		RenderSize: renderSize,
		Log:        logging.WithComponent("timeline"),
		channels:   make(map[media.Kind][]*TrackItem),
	}
}

// Kinds returns the channel kinds in the order they were first added.
func (tl *Timeline) Kinds() []media.Kind {
	return append([]media.Kind(nil), tl.order...)
}

func (tl *Timeline) Channel(kind media.Kind) []*TrackItem {
	return tl.channels[kind]
}

// SetChannel replaces a channel wholesale.
func (tl *Timeline) SetChannel(kind media.Kind, items []*TrackItem) {
	if _, ok := tl.channels[kind]; !ok {
		tl.order = append(tl.order, kind)
	}
	tl.channels[kind] = items
}

func (tl *Timeline) Append(kind media.Kind, item *TrackItem) {
	tl.SetChannel(kind, append(tl.channels[kind], item))
}

// Items returns every item across channels in channel order.
func (tl *Timeline) Items() []*TrackItem {
	var all []*TrackItem
	for _, k := range tl.order {
		all = append(all, tl.channels[k]...)
	}
	return all
}

// ReloadStartTimes recomputes start times from durations. Each item starts
// where the previous one ends, pulled earlier by the transition it declares
// for the channel kind. It is idempotent.
func (tl *Timeline) ReloadStartTimes() error {
	for _, kind := range tl.order {
		items := tl.channels[kind]
		for i, it := range items {
			if i == 0 {
				it.StartTime = 0
				continue
			}
			prev := items[i-1]
			start := prev.StartTime + prev.Duration()
			if tr := it.TransitionFor(kind); tr != nil {
				start -= tr.Duration
			}
			if start < 0 {
				if tl.Strict {
					return fmt.Errorf("%w: %s item %d at %v", ErrNegativeStart, kind, i, start)
				}
				tl.Log.Warn().
					Str("kind", kind.String()).
					Int("index", i).
					Dur("start", start).
					Msg("negative start time clamped to zero")
				start = 0
			}
			it.StartTime = start
		}
	}
	return nil
}

// Validate checks every item has a positive duration and every transition
// fits within both items it joins.
func (tl *Timeline) Validate() error {
	var errs []error
	for _, kind := range tl.order {
		items := tl.channels[kind]
		for i, it := range items {
			d := it.Duration()
			if d <= 0 {
				errs = append(errs, fmt.Errorf("%w: %s item %d (%s)", ErrInvalidDuration, kind, i, it.ID))
				continue
			}
			tr := it.TransitionFor(kind)
			if tr == nil || i == 0 {
				continue
			}
			limit := min(d, items[i-1].Duration())
			if tr.Duration > limit {
				errs = append(errs, fmt.Errorf("%w: %s item %d transition %v > %v",
					ErrTransitionTooLong, kind, i, tr.Duration, limit))
			}
		}
	}
	return errors.Join(errs...)
}

// Duration is the latest end time over all channels.
func (tl *Timeline) Duration() time.Duration {
	var end time.Duration
	for _, items := range tl.channels {
		for _, it := range items {
			end = max(end, it.EndTime())
		}
	}
	return end
}

// ItemsAt returns the items of a channel that cover t, in channel order.
// Inside a transition window that is the outgoing item then the incoming one.
func (tl *Timeline) ItemsAt(kind media.Kind, t time.Duration) []*TrackItem {
	var out []*TrackItem
	for _, it := range tl.channels[kind] {
		if it.TimeRange().Contains(t) {
			out = append(out, it)
		}
	}
	return out
}

// TransitionAt returns the transition the item at index i of a channel
// shares with its predecessor, or nil.
func (tl *Timeline) TransitionAt(kind media.Kind, i int) *Transition {
	items := tl.channels[kind]
	if i <= 0 || i >= len(items) {
		return nil
	}
	tr := items[i].TransitionFor(kind)
	if tr == nil || tr.Duration <= 0 {
		return nil
	}
	return tr
}
