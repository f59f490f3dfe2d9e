// Package queue implements the bounded task-queue worker that drains
// persisted background tasks (mail recall, calendar requests) against the
// remote server.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/scolarite/mailsync/internal/models"
)

// ErrQueueFull is returned when an enqueue would exceed the configured
// maximum queue size. The caller decides whether to drop or retry later.
var ErrQueueFull = errors.New("queue capacity reached")

// TaskStore is the task persistence collaborator.
type TaskStore interface {
	RetrieveTasks(ctx context.Context, kind models.TaskKind, status models.TaskStatus, limit int) ([]models.Task, error)
	CreateTask(ctx context.Context, action *models.Action, task models.Task) (models.Task, error)
	EditTaskStatus(ctx context.Context, task models.Task, status models.TaskStatus) error
}

// Handler processes tasks of one kind.
type Handler interface {
	Kind() models.TaskKind
	Handle(ctx context.Context, task models.Task) error
}

// Worker owns an in-memory FIFO of pending tasks for one task kind and a
// status machine NOT_STARTED -> RUNNING <-> PAUSED. Enqueueing past the
// configured maximum is rejected, not blocked. Pausing prevents new
// dequeues but does not cancel the in-flight task.
type Worker struct {
	store   TaskStore
	handler Handler

	mu      sync.Mutex
	status  models.WorkerStatus
	tasks   []models.Task
	maxSize int

	wake chan struct{}
}

// NewWorker creates a worker for the handler's task kind with the given
// queue capacity.
func NewWorker(store TaskStore, handler Handler, maxSize int) *Worker {
	return &Worker{
		store:   store,
		handler: handler,
		status:  models.WorkerNotStarted,
		maxSize: maxSize,
		wake:    make(chan struct{}, 1),
	}
}

// Start moves the worker to RUNNING. It is a no-op if already running.
func (w *Worker) Start() {
	w.mu.Lock()
	if w.status != models.WorkerRunning {
		w.status = models.WorkerRunning
	}
	w.mu.Unlock()
	w.signal()
}

// Pause moves the worker to PAUSED. The in-flight task, if any, completes.
func (w *Worker) Pause() {
	w.mu.Lock()
	if w.status == models.WorkerRunning {
		w.status = models.WorkerPaused
	}
	w.mu.Unlock()
}

// Status returns the worker's lifecycle state.
func (w *Worker) Status() models.WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// RemainingSize returns the number of queued tasks.
func (w *Worker) RemainingSize() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.tasks)
}

// SetMaxQueueSize adjusts the capacity. Tasks already queued beyond a
// lowered maximum are not evicted.
func (w *Worker) SetMaxQueueSize(n int) {
	w.mu.Lock()
	w.maxSize = n
	w.mu.Unlock()
}

// AddTask enqueues one task. Tasks of a kind the handler does not serve
// are rejected up front.
func (w *Worker) AddTask(task models.Task) error {
	return w.AddTasks([]models.Task{task})
}

// AddTasks enqueues a batch atomically: either every task fits under the
// capacity limit or none is added.
func (w *Worker) AddTasks(tasks []models.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	for _, t := range tasks {
		if t.Kind != w.handler.Kind() {
			return fmt.Errorf("task %s has kind %s, worker handles %s", t.ID, t.Kind, w.handler.Kind())
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.tasks)+len(tasks) > w.maxSize {
		return fmt.Errorf("%w: %d queued, %d incoming, maximum %d", ErrQueueFull, len(w.tasks), len(tasks), w.maxSize)
	}
	w.tasks = append(w.tasks, tasks...)

	w.signal()
	return nil
}

// RemoveTask removes a queued task by id. Removing an absent task is a
// no-op, not an error.
func (w *Worker) RemoveTask(id string) {
	w.RemoveTasks([]string{id})
}

// RemoveTasks removes queued tasks by id.
func (w *Worker) RemoveTasks(ids []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, id := range ids {
		for i, t := range w.tasks {
			if t.ID == id {
				w.tasks = append(w.tasks[:i], w.tasks[i+1:]...)
				break
			}
		}
	}
}

// ClearQueue empties the queue unconditionally.
func (w *Worker) ClearQueue() {
	w.mu.Lock()
	w.tasks = nil
	w.mu.Unlock()
}

// SyncQueue reconciles the in-memory queue against the persisted store:
// it loads pending tasks of the worker's kind up to the configured maximum
// and replaces the current in-memory set with them. Allowed in any state;
// in PAUSED the refreshed tasks simply wait for Start.
func (w *Worker) SyncQueue(ctx context.Context) error {
	w.mu.Lock()
	limit := w.maxSize
	w.mu.Unlock()

	tasks, err := w.store.RetrieveTasks(ctx, w.handler.Kind(), models.TaskTodo, limit)
	if err != nil {
		return fmt.Errorf("failed to sync queue from store: %w", err)
	}

	w.mu.Lock()
	w.tasks = tasks
	w.mu.Unlock()

	w.signal()
	log.Printf("queue: synced %d pending %s tasks", len(tasks), w.handler.Kind())
	return nil
}

// Run is the processing loop. It dequeues only while RUNNING, applies the
// handler, and persists the terminal status. Failed tasks are not retried
// here; a task retries only by reappearing through a later SyncQueue.
// Run returns when ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, ok := w.next()
		if ok {
			w.process(ctx, task)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		}
	}
}

// next pops the front task if the worker is RUNNING and work is queued.
func (w *Worker) next() (models.Task, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status != models.WorkerRunning || len(w.tasks) == 0 {
		return models.Task{}, false
	}
	task := w.tasks[0]
	w.tasks = w.tasks[1:]
	return task, true
}

func (w *Worker) process(ctx context.Context, task models.Task) {
	task.Status = models.TaskInProgress
	if err := w.store.EditTaskStatus(ctx, task, models.TaskInProgress); err != nil {
		log.Printf("queue: failed to mark task %s in progress: %v", task.ID, err)
	}

	final := models.TaskDone
	if err := w.handler.Handle(ctx, task); err != nil {
		log.Printf("queue: task %s (%s) failed: %v", task.ID, task.Kind, err)
		final = models.TaskError
	}

	task.Status = final
	if err := w.store.EditTaskStatus(ctx, task, final); err != nil {
		log.Printf("queue: failed to persist status %s for task %s: %v", final, task.ID, err)
	}
}

func (w *Worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}
