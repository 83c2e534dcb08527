package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"

	"github.com/elevated-systems/greenflow/pkg/greenflow/metrics"
)

// RestartPolicy decides what happens when a task fails
type RestartPolicy string

const (
	// RestartNever leaves a failed task stopped
	RestartNever RestartPolicy = "Never"
	// RestartOnFailure reruns a failed task after an exponential backoff
	RestartOnFailure RestartPolicy = "OnFailure"
)

// Task is a long-lived or one-shot unit of background work. Run must return
// promptly once ctx is cancelled. A nil return means the task finished.
type Task struct {
	Name    string
	Run     func(ctx context.Context) error
	Restart RestartPolicy
	// A critical task stops the whole supervisor once its restart policy
	// gives up on it. Under RestartOnFailure it is restarted like any other.
	Critical bool
}

// DefaultBackoff is used between restarts of a failing task
var DefaultBackoff = wait.Backoff{
	Duration: time.Second,
	Factor:   2.0,
	Jitter:   0.1,
	Steps:    6,
	Cap:      time.Minute,
}

// Supervisor owns the background tasks of the process
type Supervisor struct {
	tasks   []Task
	backoff wait.Backoff
}

// NewSupervisor creates a supervisor using backoff between restarts
func NewSupervisor(backoff wait.Backoff) *Supervisor {
	return &Supervisor{backoff: backoff}
}

// Add registers a task. Tasks must be added before Run.
func (s *Supervisor) Add(task Task) {
	if task.Restart == "" {
		task.Restart = RestartNever
	}
	s.tasks = append(s.tasks, task)
}

// Run starts every task and blocks until ctx is cancelled or a critical
// task fails. Remaining tasks are cancelled and awaited before returning.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for _, task := range s.tasks {
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			err := s.supervise(ctx, task)
			if err != nil && task.Critical {
				once.Do(func() {
					firstErr = fmt.Errorf("task %s failed: %w", task.Name, err)
					cancel()
				})
			}
		}(task)
	}

	<-ctx.Done()
	wg.Wait()
	return firstErr
}

// supervise runs task until it succeeds, ctx ends, or it fails under
// RestartNever. It returns the final failure, if any.
func (s *Supervisor) supervise(ctx context.Context, task Task) error {
	backoff := s.backoff
	for {
		klog.V(2).InfoS("Starting task", "task", task.Name)
		started := time.Now()
		err := runSafely(ctx, task)

		switch {
		case ctx.Err() != nil:
			klog.V(2).InfoS("Task stopped", "task", task.Name)
			return nil
		case err == nil:
			klog.InfoS("Task finished", "task", task.Name, "duration", time.Since(started))
			return nil
		case task.Restart != RestartOnFailure:
			klog.ErrorS(err, "Task failed", "task", task.Name, "critical", task.Critical)
			return err
		}

		// A long healthy run earns a fresh backoff.
		if time.Since(started) > s.backoff.Cap {
			backoff = s.backoff
		}
		delay := backoff.Step()
		klog.ErrorS(err, "Task failed, restarting", "task", task.Name, "delay", delay)
		metrics.TaskRestarts.WithLabelValues(task.Name).Inc()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func runSafely(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task.Run(ctx)
}
