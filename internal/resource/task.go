package resource

import "sync"

type taskState int

const (
	taskPending taskState = iota
	taskCompleted
	taskCancelled
)

// Task is the handle Prepare returns. Either its completion runs exactly
// once or, after Cancel, never.
type Task struct {
	mu       sync.Mutex
	state    taskState
	onCancel func()
	done     chan struct{}
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

// Cancel suppresses the completion and stops the underlying load if this
// task owns it. Cancelling a finished task does nothing.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.state != taskPending {
		t.mu.Unlock()
		return
	}
	t.state = taskCancelled
	onCancel := t.onCancel
	t.mu.Unlock()

	close(t.done)
	if onCancel != nil {
		onCancel()
	}
}

// Done is closed after the completion ran or the task was cancelled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

func (t *Task) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == taskCancelled
}

func (t *Task) setOnCancel(fn func()) {
	t.mu.Lock()
	t.onCancel = fn
	t.mu.Unlock()
}

// complete runs fn unless the task was cancelled first.
func (t *Task) complete(fn func()) bool {
	t.mu.Lock()
	if t.state != taskPending {
		t.mu.Unlock()
		return false
	}
	t.state = taskCompleted
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
	close(t.done)
	return true
}
