package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// State is the initialization state of the process-wide model.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateFailed
)

// String returns a lowercase name suitable for logs and status output.
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// ErrNotReady is returned while the model is still loading.
var ErrNotReady = errors.New("embedding model is still initializing")

// InitError records a permanent model initialization failure.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("embedding model initialization failed: %v", e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Loader loads a model. It is called at most once per Lifecycle.
type Loader func(ctx context.Context) (Model, error)

// StaticLoader returns a Loader that yields m.
func StaticLoader(m Model) Loader {
	return func(context.Context) (Model, error) { return m, nil }
}

type snapshot struct {
	state State
	model Model
	err   error
}

// Lifecycle owns the model and its one-time initialization. The loader runs at most once;
// after that the state is read-only.
type Lifecycle struct {
	loader  Loader
	once    sync.Once
	current atomic.Pointer[snapshot]
	done    chan struct{}
	logger  *zap.Logger
}

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithLifecycleLogger sets a logger for load start, success, and failure.
func WithLifecycleLogger(l *zap.Logger) LifecycleOption {
	return func(lc *Lifecycle) { lc.logger = l }
}

// NewLifecycle returns an uninitialized lifecycle for loader.
func NewLifecycle(loader Loader, opts ...LifecycleOption) *Lifecycle {
	lc := &Lifecycle{
		loader: loader,
		done:   make(chan struct{}),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(lc)
	}
	lc.current.Store(&snapshot{state: StateUninitialized})
	return lc
}

// Start begins loading in the background and returns immediately.
func (l *Lifecycle) Start(ctx context.Context) {
	go func() { _ = l.Initialize(ctx) }()
}

// Initialize loads the model synchronously. Only the first call runs the loader; later and
// concurrent calls wait for it and return its outcome.
func (l *Lifecycle) Initialize(ctx context.Context) error {
	l.once.Do(func() {
		defer close(l.done)
		l.logger.Info("loading embedding model")
		model, err := l.loader(ctx)
		if err == nil && model == nil {
			err = errors.New("loader returned no model")
		}
		if err != nil {
			l.logger.Error("embedding model failed to load", zap.Error(err))
			l.current.Store(&snapshot{state: StateFailed, err: &InitError{Err: err}})
			return
		}
		l.logger.Info("embedding model ready", zap.Int("dimensions", model.Dimensions()))
		l.current.Store(&snapshot{state: StateReady, model: model})
	})
	return l.current.Load().err
}

// Wait blocks until initialization finishes or ctx is done.
func (l *Lifecycle) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return l.current.Load().err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return l.current.Load().state
}

// Err returns the initialization error, or nil.
func (l *Lifecycle) Err() error {
	return l.current.Load().err
}

// Model returns the loaded model, ErrNotReady while loading, or the *InitError after a failure.
func (l *Lifecycle) Model() (Model, error) {
	s := l.current.Load()
	switch s.state {
	case StateReady:
		return s.model, nil
	case StateFailed:
		return nil, s.err
	default:
		return nil, ErrNotReady
	}
}

// Close releases the model if it was loaded.
func (l *Lifecycle) Close() error {
	if s := l.current.Load(); s.model != nil {
		return s.model.Close()
	}
	return nil
}
