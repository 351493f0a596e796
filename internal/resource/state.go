package resource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ivlev/scenereel/internal/media"
)

// loadResult is what a variant's load produces. apply, when set, runs under
// the state lock at the moment the resource becomes available.
type loadResult struct {
	size     media.Size
	duration time.Duration
	apply    func()
}

type loadFunc func(ctx context.Context, progress ProgressFunc) (loadResult, error)

type waiter struct {
	task *Task
	done CompletionFunc
}

// flight is one in-progress load and the tasks waiting on it.
type flight struct {
	owner   *Task
	waiters []waiter
}

// state is the lifecycle and timing bookkeeping every variant embeds.
type state struct {
	env  *Env
	kind media.Kind

	mu          sync.Mutex
	status      Status
	err         error
	size        media.Size
	duration    time.Duration
	selected    media.TimeRange
	selectedSet bool
	scaled      time.Duration
	inflight    *flight
}

func newState(env *Env, kind media.Kind) *state {
	return &state{env: env, kind: kind}
}

// cloneTiming copies the identity-bearing timing fields into a fresh,
// unavailable state.
func (s *state) cloneTiming() *state {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &state{
		env:         s.env,
		kind:        s.kind,
		duration:    s.duration,
		selected:    s.selected,
		selectedSet: s.selectedSet,
		scaled:      s.scaled,
	}
}

func (s *state) Kind() media.Kind {
	return s.kind
}

func (s *state) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *state) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *state) Size() media.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *state) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *state) SelectedTimeRange() media.TimeRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.selectedSet {
		return media.NewTimeRange(0, s.duration)
	}
	return s.selected
}

// SetSelectedTimeRange validates r against the known duration. Before the
// duration is known the range is stored and clamped when loading finishes.
func (s *state) SetSelectedTimeRange(r media.TimeRange) error {
	if r.Start < 0 || r.Duration < 0 {
		return fmt.Errorf("%w: %v", ErrRangeOutOfBounds, r)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duration > 0 && !r.Within(s.duration) {
		return fmt.Errorf("%w: %v exceeds %v", ErrRangeOutOfBounds, r, s.duration)
	}
	s.selected = r
	s.selectedSet = true
	return nil
}

func (s *state) ScaledDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scaled
}

// SetScaledDuration remaps playback rate; zero or negative clears it.
func (s *state) SetScaledDuration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	s.scaled = d
	s.mu.Unlock()
}

func (s *state) TimelineDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scaled > 0 {
		return s.scaled
	}
	if s.selectedSet {
		return s.selected.Duration
	}
	return s.duration
}

// markAvailable is for variants that are usable from construction.
func (s *state) markAvailable(size media.Size, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusAvailable
	s.size = size
	s.duration = duration
	s.clampSelectedLocked()
}

func (s *state) clampSelectedLocked() {
	if s.selectedSet {
		s.selected = s.selected.Clamp(s.duration)
	}
}

// prepare drives the shared lifecycle around a variant's load function.
func (s *state) prepare(progress ProgressFunc, done CompletionFunc, load loadFunc) *Task {
	task := newTask()

	s.mu.Lock()
	if s.status.IsTerminal() {
		status, err := s.status, s.err
		s.mu.Unlock()
		s.env.Main.Async(func() {
			task.complete(func() { notify(done, status, err) })
		})
		return task
	}

	if f := s.inflight; f != nil {
		f.waiters = append(f.waiters, waiter{task: task, done: done})
		s.mu.Unlock()
		return task
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &flight{owner: task, waiters: []waiter{{task: task, done: done}}}
	s.inflight = f
	s.mu.Unlock()

	task.setOnCancel(func() {
		cancel()
		s.abandon(f)
	})

	go s.run(ctx, cancel, f, progress, load)
	return task
}

func (s *state) run(ctx context.Context, cancel context.CancelFunc, f *flight, progress ProgressFunc, load loadFunc) {
	defer cancel()

	report := func(p float64) {
		if progress == nil {
			return
		}
		s.env.Main.Async(func() {
			if !f.owner.Cancelled() {
				progress(p)
			}
		})
	}

	res, err := load(ctx, report)
	if ctx.Err() != nil {
		return
	}

	s.env.Main.Async(func() { s.commit(f, res, err) })
}

// commit publishes the load outcome on the main queue. It does nothing if
// the owning task was cancelled in the meantime.
func (s *state) commit(f *flight, res loadResult, loadErr error) {
	var status Status
	committed := f.owner.complete(func() {
		s.mu.Lock()
		if loadErr != nil {
			s.status = StatusError
			s.err = loadErr
		} else {
			s.status = StatusAvailable
			s.size = res.size
			s.duration = res.duration
			s.clampSelectedLocked()
			if res.apply != nil {
				res.apply()
			}
		}
		status = s.status
		if s.inflight == f {
			s.inflight = nil
		}
		waiters := f.waiters
		s.mu.Unlock()

		if loadErr != nil {
			s.env.Log.Warn().Err(loadErr).Str("kind", s.kind.String()).Msg("resource failed to load")
		}
		notify(waiters[0].done, status, loadErr)
	})
	if !committed {
		return
	}

	s.mu.Lock()
	rest := f.waiters[1:]
	s.mu.Unlock()
	for _, w := range rest {
		w := w
		w.task.complete(func() { notify(w.done, status, loadErr) })
	}
}

// abandon detaches a cancelled flight so a later Prepare starts afresh, and
// cancels every task that joined it.
func (s *state) abandon(f *flight) {
	s.mu.Lock()
	if s.inflight == f {
		s.inflight = nil
	}
	waiters := f.waiters
	s.mu.Unlock()

	for _, w := range waiters {
		if w.task != f.owner {
			w.task.Cancel()
		}
	}
}

func notify(done CompletionFunc, status Status, err error) {
	if done != nil {
		done(status, err)
	}
}
