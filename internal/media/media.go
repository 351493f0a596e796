package media

import (
	"fmt"
	"time"
)

// Kind identifies the media type of a channel or a decodable unit.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindImage Kind = "image"
)

func (k Kind) String() string {
	return string(k)
}

// Size is a pixel size. A zero Size means "not known yet".
type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Scale multiplies both dimensions and rounds up to even values,
// which most H.264 encoders require.
func (s Size) Scale(factor float64) Size {
	if factor <= 0 {
		factor = 1
	}
	w := int(float64(s.Width)*factor + 0.5)
	h := int(float64(s.Height)*factor + 0.5)
	if w%2 != 0 {
		w++
	}
	if h%2 != 0 {
		h++
	}
	return Size{Width: w, Height: h}
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// TimeRange is a half-open interval [Start, Start+Duration).
type TimeRange struct {
	Start    time.Duration
	Duration time.Duration
}

func NewTimeRange(start, duration time.Duration) TimeRange {
	return TimeRange{Start: start, Duration: duration}
}

func (r TimeRange) End() time.Duration {
	return r.Start + r.Duration
}

func (r TimeRange) IsEmpty() bool {
	return r.Duration <= 0
}

// Contains reports whether t lies in [Start, End).
func (r TimeRange) Contains(t time.Duration) bool {
	return t >= r.Start && t < r.End()
}

// Within reports whether r lies inside [0, total].
func (r TimeRange) Within(total time.Duration) bool {
	return r.Start >= 0 && r.Duration >= 0 && r.End() <= total
}

// Clamp returns r trimmed to [0, total].
func (r TimeRange) Clamp(total time.Duration) TimeRange {
	start := r.Start
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := r.End()
	if end > total || r.Duration <= 0 {
		end = total
	}
	if end < start {
		end = start
	}
	return TimeRange{Start: start, Duration: end - start}
}

// Intersection returns the overlap of r and o, empty if they do not overlap.
func (r TimeRange) Intersection(o TimeRange) TimeRange {
	start := max(r.Start, o.Start)
	end := min(r.End(), o.End())
	if end <= start {
		return TimeRange{Start: start}
	}
	return TimeRange{Start: start, Duration: end - start}
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start, r.End())
}

// Info is the metadata a prober reports for a media file.
type Info struct {
	Size     Size
	Duration time.Duration
	FPS      float64
	HasVideo bool
	HasAudio bool
	Codec    string
}
