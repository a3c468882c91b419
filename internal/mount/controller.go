// Package mount owns the lifecycle of mount sessions.
package mount

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/wforney/net-ipfs-mount/internal/logging"
	"github.com/wforney/net-ipfs-mount/internal/metrics"
	"github.com/wforney/net-ipfs-mount/internal/store"
	"github.com/wforney/net-ipfs-mount/internal/vfs"
)

// ErrAlreadyMounted is returned when a target already has a session.
var ErrAlreadyMounted = errors.New("target is already mounted")

// State is the lifecycle stage of a session.
type State int

const (
	StateUnmounted State = iota
	StateMounting
	StateMounted
	StateUnmounting
)

func (s State) String() string {
	switch s {
	case StateMounting:
		return "mounting"
	case StateMounted:
		return "mounted"
	case StateUnmounting:
		return "unmounting"
	default:
		return "unmounted"
	}
}

// Identifier proves the store endpoint is reachable.
type Identifier interface {
	Identity(ctx context.Context) (*store.Identity, error)
}

// UnmountFunc detaches a target that no session in this process owns.
type UnmountFunc func(ctx context.Context, target string) error

// Options configures a Controller.
type Options struct {
	Store      Identifier
	Endpoint   string
	NewBackend BackendFactory
	// External detaches mounts owned by other processes. Nil disables it.
	External UnmountFunc
	// Out receives the shutdown notice, os.Stdout by default.
	Out io.Writer
}

// Session is one mounted target.
type Session struct {
	Target   string
	Endpoint string
	Debug    bool

	mu      sync.Mutex
	state   State
	backend Backend
	live    bool
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Controller starts and stops mount sessions. Sessions for different
// targets are independent.
type Controller struct {
	store      Identifier
	endpoint   string
	newBackend BackendFactory
	external   UnmountFunc
	out        io.Writer
	l          *zap.Logger

	notify     func(c chan<- os.Signal, sig ...os.Signal)
	stopNotify func(c chan<- os.Signal)

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewController creates a controller.
func NewController(opts Options) *Controller {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Controller{
		store:      opts.Store,
		endpoint:   opts.Endpoint,
		newBackend: opts.NewBackend,
		external:   opts.External,
		out:        opts.Out,
		l:          logging.Named("mount"),
		notify:     signal.Notify,
		stopNotify: signal.Stop,
		sessions:   make(map[string]*Session),
	}
}

// Mount checks the store, mounts ops at target and blocks until the target
// is unmounted. An interrupt or SIGTERM unmounts instead of killing the
// process.
func (c *Controller) Mount(ctx context.Context, target string, debug bool, ops vfs.Operations) error {
	s := &Session{Target: target, Endpoint: c.endpoint, Debug: debug, state: StateMounting}

	c.mu.Lock()
	if _, ok := c.sessions[target]; ok {
		c.mu.Unlock()
		return fmt.Errorf("mount %s: %w", target, ErrAlreadyMounted)
	}
	c.sessions[target] = s
	c.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = StateUnmounted
		s.mu.Unlock()
		c.mu.Lock()
		delete(c.sessions, target)
		c.mu.Unlock()
	}()

	id, err := c.store.Identity(ctx)
	if err != nil {
		return fmt.Errorf("connect to IPFS at %s: %w", c.endpoint, err)
	}
	c.l.Info("connected to IPFS node",
		zap.String("api", c.endpoint),
		zap.String("peer_id", id.ID),
		zap.String("agent", id.AgentVersion))

	backend, err := c.newBackend(target, debug)
	if err != nil {
		return fmt.Errorf("create host for %s: %w", target, err)
	}

	s.mu.Lock()
	if s.state == StateUnmounting {
		s.mu.Unlock()
		return nil
	}
	s.backend = backend
	s.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	c.notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer c.stopNotify(sigCh)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintln(c.out, "shutting down...")
			c.l.Info("signal received", zap.String("signal", sig.String()))
			if err := c.Unmount(context.Background(), target); err != nil {
				c.l.Error("unmount after signal failed", zap.Error(err))
			}
		case <-done:
		}
	}()

	c.l.Info("mounting",
		zap.String("target", target),
		zap.String("backend", backend.Name()),
		zap.Bool("debug", debug))

	if err := backend.Start(ctx, &sessionOps{Operations: ops, s: s}); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("mount %s: %w", target, err)
	}
	return nil
}

// Unmount detaches target. Unmounting a target that is already detached
// or being detached is not an error.
func (c *Controller) Unmount(ctx context.Context, target string) error {
	c.mu.Lock()
	s, ok := c.sessions[target]
	c.mu.Unlock()

	if !ok {
		if c.external == nil {
			return nil
		}
		c.l.Info("unmounting target owned by another process", zap.String("target", target))
		return c.external(ctx, target)
	}

	s.mu.Lock()
	switch s.state {
	case StateUnmounting, StateUnmounted:
		s.mu.Unlock()
		return nil
	}
	s.state = StateUnmounting
	b := s.backend
	s.mu.Unlock()

	if b == nil {
		return nil
	}
	c.l.Info("unmounting", zap.String("target", target))
	return b.Stop()
}

// Session returns the session for target, if any.
func (c *Controller) Session(target string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[target]
	return s, ok
}

// Targets returns the targets with a session, sorted.
func (c *Controller) Targets() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sessions))
	for t := range c.sessions {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// sessionOps tracks the host's mounted and unmounted callbacks.
type sessionOps struct {
	vfs.Operations
	s *Session
}

func (o *sessionOps) Mounted(ctx context.Context) error {
	o.s.mu.Lock()
	if o.s.state == StateMounting {
		o.s.state = StateMounted
	}
	o.s.live = true
	o.s.mu.Unlock()
	metrics.IncMounts()
	return o.Operations.Mounted(ctx)
}

func (o *sessionOps) Unmounted(ctx context.Context) error {
	o.s.mu.Lock()
	wasLive := o.s.live
	o.s.live = false
	o.s.mu.Unlock()
	if wasLive {
		metrics.DecMounts()
	}
	return o.Operations.Unmounted(ctx)
}
