package timeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/scenereel/internal/media"
	"github.com/ivlev/scenereel/internal/resource"
)

// ContentMode is how a frame is fitted into the render size.
type ContentMode int

const (
	// ContentFill scales to cover the render size and crops the excess.
	ContentFill ContentMode = iota
	// ContentFit scales to fit inside the render size and letterboxes.
	ContentFit
)

func (m ContentMode) String() string {
	if m == ContentFit {
		return "fit"
	}
	return "fill"
}

// ParseContentMode accepts "fill", "fit" or an empty string (fill).
func ParseContentMode(s string) (ContentMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fill":
		return ContentFill, nil
	case "fit":
		return ContentFit, nil
	}
	return ContentFill, fmt.Errorf("unknown content mode %q", s)
}

type TransitionKind string

const (
	TransitionCrossfade  TransitionKind = "crossfade"
	TransitionFadeBlack  TransitionKind = "fadeblack"
	TransitionWipeLeft   TransitionKind = "wipeleft"
	TransitionWipeRight  TransitionKind = "wiperight"
	TransitionSlideLeft  TransitionKind = "slideleft"
	TransitionSlideRight TransitionKind = "slideright"
	TransitionDissolve   TransitionKind = "dissolve"
)

// Transition is a blend between an item and the one before it. The item
// starts Duration earlier so both overlap for the length of the blend.
type Transition struct {
	Kind     TransitionKind
	Duration time.Duration
}

// TrackItem places a resource on a timeline channel.
type TrackItem struct {
	ID              uuid.UUID
	Resource        resource.Resource
	StartTime       time.Duration
	VideoTransition *Transition
	AudioTransition *Transition
	ContentMode     ContentMode
}

func NewTrackItem(r resource.Resource) *TrackItem {
	return &TrackItem{ID: uuid.New(), Resource: r}
}

// Duration is the time the item occupies on the timeline.
func (it *TrackItem) Duration() time.Duration {
	if it.Resource == nil {
		return 0
	}
	return it.Resource.TimelineDuration()
}

func (it *TrackItem) EndTime() time.Duration {
	return it.StartTime + it.Duration()
}

func (it *TrackItem) TimeRange() media.TimeRange {
	return media.NewTimeRange(it.StartTime, it.Duration())
}

// TransitionFor returns the transition the item declares for a channel of
// the given kind, or nil.
func (it *TrackItem) TransitionFor(kind media.Kind) *Transition {
	if kind == media.KindAudio {
		return it.AudioTransition
	}
	return it.VideoTransition
}

// Rate is source time per unit of timeline time.
func (it *TrackItem) Rate() float64 {
	d := it.Duration()
	if d <= 0 || it.Resource == nil {
		return 1
	}
	sel := it.Resource.SelectedTimeRange()
	if sel.Duration <= 0 {
		return 1
	}
	return float64(sel.Duration) / float64(d)
}

// LocalTime maps a global timeline time to the resource's source time,
// accounting for the selected range and any rate remap. Times outside the
// item are clamped to its ends.
func (it *TrackItem) LocalTime(global time.Duration) time.Duration {
	d := it.Duration()
	offset := global - it.StartTime
	if offset < 0 {
		offset = 0
	}
	if offset > d {
		offset = d
	}
	var start time.Duration
	if it.Resource != nil {
		start = it.Resource.SelectedTimeRange().Start
	}
	rate := it.Rate()
	if rate == 1 {
		return start + offset
	}
	return start + time.Duration(float64(offset)*rate)
}

func (it *TrackItem) String() string {
	return fmt.Sprintf("%s@%v", it.ID.String()[:8], it.TimeRange())
}
