// Package composition compiles a timeline into a flat description a media
// pipeline can play or re-render.
package composition

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ivlev/scenereel/internal/logging"
	"github.com/ivlev/scenereel/internal/media"
	"github.com/ivlev/scenereel/internal/resource"
	"github.com/ivlev/scenereel/internal/timeline"
)

var ErrNoTimeline = errors.New("composition: nil timeline")

// Segment is one item's decodable unit placed on the output timeline.
type Segment struct {
	ItemID uuid.UUID
	// Index is the item's position in its timeline channel.
	Index int
	// Timeline is where the segment plays, in global time.
	Timeline media.TimeRange
	// Source is the part of the unit that is played.
	Source media.TimeRange
	// Rate is source time per unit of timeline time.
	Rate        float64
	ContentMode timeline.ContentMode
	Unit        resource.Unit
	SourceSize  media.Size
}

// TransitionInstruction blends From into To over Window.
type TransitionInstruction struct {
	Channel media.Kind
	Kind    timeline.TransitionKind
	From    uuid.UUID
	To      uuid.UUID
	Window  media.TimeRange
}

// Skip records an item left out because its resource was not available.
type Skip struct {
	ItemID uuid.UUID
	Kind   media.Kind
	Index  int
	Status resource.Status
	Err    error
}

func (s Skip) String() string {
	if s.Err != nil {
		return fmt.Sprintf("%s item %d (%s): %s: %v", s.Kind, s.Index, s.ItemID, s.Status, s.Err)
	}
	return fmt.Sprintf("%s item %d (%s): %s", s.Kind, s.Index, s.ItemID, s.Status)
}

type Composition struct {
	ID          uuid.UUID
	RenderSize  media.Size
	FPS         int
	Tracks      map[media.Kind][]Segment
	Transitions []TransitionInstruction
	Skipped     []Skip
	Duration    time.Duration
}

func (c *Composition) Track(kind media.Kind) []Segment {
	return c.Tracks[kind]
}

// TransitionInto returns the transition that ends on the given segment.
func (c *Composition) TransitionInto(channel media.Kind, to uuid.UUID) *TransitionInstruction {
	for i := range c.Transitions {
		if c.Transitions[i].Channel == channel && c.Transitions[i].To == to {
			return &c.Transitions[i]
		}
	}
	return nil
}

// Complete reports whether nothing was skipped.
func (c *Composition) Complete() bool {
	return len(c.Skipped) == 0
}

type Generator struct {
	Log zerolog.Logger
	// PixelScale is the output device pixel density applied to the
	// timeline's render size.
	PixelScale float64
	FPS        int
}

func NewGenerator(pixelScale float64, fps int) *Generator {
	if pixelScale <= 0 {
		pixelScale = 1
	}
	if fps <= 0 {
		fps = 30
	}
	return &Generator{
		Log:        logging.WithComponent("composition"),
		PixelScale: pixelScale,
		FPS:        fps,
	}
}

// Build compiles tl. Items whose resources are not available are left out
// and recorded in Skipped; the rest still compile.
func (g *Generator) Build(tl *timeline.Timeline) (*Composition, error) {
	if tl == nil {
		return nil, ErrNoTimeline
	}

	comp := &Composition{
		ID:     uuid.New(),
		FPS:    g.FPS,
		Tracks: make(map[media.Kind][]Segment),
	}

	for _, kind := range tl.Kinds() {
		items := tl.Channel(kind)
		survived := make([]bool, len(items))

		for i, it := range items {
			r := it.Resource
			if r == nil || r.Status() != resource.StatusAvailable {
				skip := Skip{ItemID: it.ID, Kind: kind, Index: i}
				if r != nil {
					skip.Status, skip.Err = r.Status(), r.Err()
				}
				g.Log.Warn().
					Str("item", it.ID.String()).
					Str("kind", kind.String()).
					Str("status", skip.Status.String()).
					Err(skip.Err).
					Msg("item not available, skipped")
				comp.Skipped = append(comp.Skipped, skip)
				continue
			}
			survived[i] = true

			seg := Segment{
				ItemID:      it.ID,
				Index:       i,
				Timeline:    it.TimeRange(),
				Source:      r.SelectedTimeRange(),
				Rate:        it.Rate(),
				ContentMode: it.ContentMode,
				Unit:        r.Unit(),
				SourceSize:  r.Size(),
			}
			if seg.Unit.Kind == media.KindImage {
				seg.Source = media.NewTimeRange(0, seg.Timeline.Duration)
				seg.Rate = 1
			}
			comp.Tracks[kind] = append(comp.Tracks[kind], seg)
			comp.Duration = max(comp.Duration, seg.Timeline.End())

			if i > 0 && survived[i-1] {
				if tr := tl.TransitionAt(kind, i); tr != nil {
					comp.Transitions = append(comp.Transitions, TransitionInstruction{
						Channel: kind,
						Kind:    tr.Kind,
						From:    items[i-1].ID,
						To:      it.ID,
						Window:  media.NewTimeRange(it.StartTime, tr.Duration),
					})
				}
			}
		}
	}

	comp.RenderSize = g.renderSize(tl, comp)

	g.Log.Debug().
		Str("id", comp.ID.String()).
		Str("size", comp.RenderSize.String()).
		Dur("duration", comp.Duration).
		Int("transitions", len(comp.Transitions)).
		Int("skipped", len(comp.Skipped)).
		Msg("composition built")
	return comp, nil
}

// renderSize scales the timeline's size for the output density. A timeline
// without a size takes it from its first visual segment.
func (g *Generator) renderSize(tl *timeline.Timeline, comp *Composition) media.Size {
	size := tl.RenderSize
	if size.IsZero() {
		for _, seg := range comp.Tracks[media.KindVideo] {
			if !seg.SourceSize.IsZero() {
				size = seg.SourceSize
				break
			}
		}
	}
	return size.Scale(g.PixelScale)
}
