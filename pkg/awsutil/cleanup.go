package awsutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloudigrade/integrade/pkg/log"
)

type cleanupTask struct {
	desc string
	fn   func(ctx context.Context) error
}

// Cleanup is a queue of undo steps, run newest first. It is safe for
// concurrent use.
type Cleanup struct {
	mu    sync.Mutex
	tasks []cleanupTask
}

// Add queues fn, described by desc in logs and errors.
func (c *Cleanup) Add(desc string, fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, cleanupTask{desc: desc, fn: fn})
}

// DeleteTrail queues deleting trail name through s.
func (c *Cleanup) DeleteTrail(s *Session, name string) {
	c.Add(fmt.Sprintf("delete trail %s (%s)", name, s.Profile.Name), func(ctx context.Context) error {
		return s.DeleteTrail(ctx, name)
	})
}

// DeleteBucket queues deleting bucket name through s.
func (c *Cleanup) DeleteBucket(s *Session, name string) {
	c.Add(fmt.Sprintf("delete bucket %s (%s)", name, s.Profile.Name), func(ctx context.Context) error {
		return s.DeleteBucket(ctx, name)
	})
}

// Len is the number of queued steps.
func (c *Cleanup) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

// Run drains the queue, newest first. Every step runs even when earlier ones
// fail; the failures are joined.
func (c *Cleanup) Run(ctx context.Context) error {
	c.mu.Lock()
	tasks := c.tasks
	c.tasks = nil
	c.mu.Unlock()

	var errs []error
	for i := len(tasks) - 1; i >= 0; i-- {
		t := tasks[i]
		if err := t.fn(ctx); err != nil {
			log.Warnf("cleanup: %s: %s", t.desc, err)
			errs = append(errs, fmt.Errorf("%s: %w", t.desc, err))
			continue
		}
		log.Debugf("cleanup: %s", t.desc)
	}
	return errors.Join(errs...)
}
