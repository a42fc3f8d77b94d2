package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type resource struct {
	name    string
	release func() error
}

// Resources releases what a controller acquired, newest first
type Resources struct {
	mu    sync.Mutex
	stack []resource
}

// Add records a resource; release runs at most once
func (r *Resources) Add(name string, release func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stack = append(r.stack, resource{name: name, release: release})
}

// Names returns the held resources in acquisition order
func (r *Resources) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.stack))
	for i, res := range r.stack {
		names[i] = res.name
	}
	return names
}

// Release runs every release function in reverse acquisition order. Every
// function runs even if an earlier one fails; the failures are joined.
func (r *Resources) Release(logger *zap.Logger) error {
	r.mu.Lock()
	stack := r.stack
	r.stack = nil
	r.mu.Unlock()

	if logger == nil {
		logger = zap.NewNop()
	}

	var errs []error
	for i := len(stack) - 1; i >= 0; i-- {
		res := stack[i]
		if err := res.release(); err != nil {
			logger.Warn("release failed", zap.String("resource", res.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("release %s: %w", res.name, err))
			continue
		}
		logger.Debug("released", zap.String("resource", res.name))
	}
	return errors.Join(errs...)
}
