// Package resource wraps heterogeneous media sources (stills, video and
// audio tracks, gallery assets, on-demand frame decoders) behind one
// asynchronous handle.
//
// A Resource starts unavailable and moves to available or error exactly
// once, through Prepare. Completions and progress are delivered on the
// Env's main queue. A Resource in the error state is never retried; build a
// new one with Copy.
package resource

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/ivlev/scenereel/internal/dispatch"
	"github.com/ivlev/scenereel/internal/logging"
	"github.com/ivlev/scenereel/internal/media"
)

var (
	ErrCancelled        = errors.New("resource: prepare cancelled")
	ErrNotAvailable     = errors.New("resource: not available")
	ErrRangeOutOfBounds = errors.New("resource: selected time range out of bounds")
	ErrNoTrack          = errors.New("resource: no matching track")
)

type Status int

const (
	StatusUnavailable Status = iota
	StatusAvailable
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusUnavailable:
		return "unavailable"
	case StatusAvailable:
		return "available"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// IsTerminal reports whether no further transition can happen.
func (s Status) IsTerminal() bool {
	return s == StatusAvailable || s == StatusError
}

// ProgressFunc receives load progress in [0, 1].
type ProgressFunc func(progress float64)

// CompletionFunc receives the outcome of Prepare. err is non-nil iff
// status is StatusError.
type CompletionFunc func(status Status, err error)

// Unit is the decodable thing a resource stands for, as seen by the
// composition generator.
type Unit struct {
	Kind     media.Kind
	Path     string
	Page     int
	Image    image.Image
	HasAudio bool
}

type Resource interface {
	// Kind is the media kind the resource contributes: image, video or audio.
	Kind() media.Kind
	Status() Status
	Err() error
	Size() media.Size
	Duration() time.Duration

	SelectedTimeRange() media.TimeRange
	SetSelectedTimeRange(r media.TimeRange) error
	ScaledDuration() time.Duration
	SetScaledDuration(d time.Duration)
	// TimelineDuration is the time the resource occupies on a timeline:
	// the scaled duration when set, otherwise the selected range duration.
	TimelineDuration() time.Duration

	Prepare(progress ProgressFunc, done CompletionFunc) *Task
	// Image returns a frame for a source-local time, or nil when none can be
	// decoded. The image may be reused by the resource on the next call.
	Image(at time.Duration, renderSize media.Size) image.Image
	Unit() Unit
	// Copy returns an independently preparable clone that shares no decode
	// state with the receiver.
	Copy() Resource
}

// DecodeOptions tune the frame-decoding path.
type DecodeOptions struct {
	// SeekWindow is the largest forward jump served by the active reader.
	SeekWindow time.Duration
	// FrameTolerance is how far before the requested time a frame may start
	// and still be returned.
	FrameTolerance time.Duration
	// MaxFramePulls bounds a single decode attempt.
	MaxFramePulls int
}

func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{
		SeekWindow:     time.Second,
		FrameTolerance: time.Second / 60,
		MaxFramePulls:  600,
	}
}

// Env is what resources share: the main queue completions are delivered on
// and the bounded queue that serializes metadata loads.
type Env struct {
	Main   *dispatch.Queue
	Log    zerolog.Logger
	Decode DecodeOptions
	DPI    int

	loads     *semaphore.Weighted
	ownsQueue bool
}

// NewEnv creates an Env. A nil main queue gets a private one that Close
// shuts down.
func NewEnv(main *dispatch.Queue, loadConcurrency int) *Env {
	if loadConcurrency <= 0 {
		loadConcurrency = 1
	}
	env := &Env{
		Main:   main,
		Log:    logging.WithComponent("resource"),
		Decode: DefaultDecodeOptions(),
		DPI:    150,
		loads:  semaphore.NewWeighted(int64(loadConcurrency)),
	}
	if env.Main == nil {
		env.Main = dispatch.NewQueue()
		env.ownsQueue = true
	}
	return env
}

func (e *Env) Close() {
	if e.ownsQueue {
		e.Main.Close()
	}
}

// withLoadSlot runs fn while holding one slot of the metadata-load queue.
func (e *Env) withLoadSlot(ctx context.Context, fn func() error) error {
	if err := e.loads.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.loads.Release(1)
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}
