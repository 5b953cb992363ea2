package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
)

// Task is one retailer crawl assignment.
type Task struct {
	ID          string
	RetailerURL string
	Retries     int
	CreatedAt   time.Time
}

// NewTask builds a task for the given retailer URL.
func NewTask(retailerURL string) *Task {
	return &Task{
		ID:          uuid.New().String(),
		RetailerURL: retailerURL,
		CreatedAt:   time.Now(),
	}
}

type Queue interface {
	Push(task *Task) error
	Pop(ctx context.Context) (*Task, error)
	Size() int
	Close() error
}

// InMemoryQueue is a FIFO queue feeding the crawl workers. Blocked Pop
// callers wait on a broadcast channel that Push and Close replace on every
// wakeup, so a cancelled context never strands a waiter or the lock.
type InMemoryQueue struct {
	tasks  []*Task
	mu     sync.Mutex
	wake   chan struct{}
	closed bool
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		tasks: make([]*Task, 0),
		wake:  make(chan struct{}),
	}
}

func (q *InMemoryQueue) Push(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.tasks = append(q.tasks, task)
	q.wakeWaiters()

	return nil
}

func (q *InMemoryQueue) Pop(ctx context.Context) (*Task, error) {
	q.mu.Lock()

	for len(q.tasks) == 0 && !q.closed {
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}

		q.mu.Lock()
	}
	defer q.mu.Unlock()

	if q.closed && len(q.tasks) == 0 {
		return nil, ErrQueueClosed
	}

	if len(q.tasks) == 0 {
		return nil, ErrQueueEmpty
	}

	task := q.tasks[0]
	q.tasks = q.tasks[1:]

	return task, nil
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.wakeWaiters()

	return nil
}

// wakeWaiters releases every blocked Pop. Callers must hold q.mu.
func (q *InMemoryQueue) wakeWaiters() {
	close(q.wake)
	q.wake = make(chan struct{})
}
