// Package session owns browser session lifecycle: each worker gets its
// own session, created through the driver and guaranteed to be torn
// down on every exit path.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/AngHelll/AutomationFrameworkP/config"
	"github.com/AngHelll/AutomationFrameworkP/driver"
	"github.com/AngHelll/AutomationFrameworkP/log"
)

// CreationError means the driver could not start a browser (binary
// missing, port conflict, unsupported kind). It is fatal for the
// worker and never retried at this level.
type CreationError struct {
	Kind string
	Err  error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("creating %s session: %v", e.Kind, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// Session represents one live browser instance owned by a single
// worker for its whole lifetime.
type Session struct {
	id   string
	opts driver.Options

	mu       sync.Mutex
	released bool
}

func (s *Session) ID() string { return s.id }

func (s *Session) Options() driver.Options { return s.opts }

// Manager creates and releases sessions. Sessions are never pooled or
// shared across workers.
type Manager struct {
	drv driver.Driver
}

func NewManager(drv driver.Driver) *Manager {
	return &Manager{drv: drv}
}

// OptionsFromConfig maps resolved browser configuration onto driver
// options.
func OptionsFromConfig(c config.BrowserConfig) driver.Options {
	return driver.Options{
		Kind:           c.Kind,
		Headless:       c.Headless,
		ExecPath:       c.ExecPath,
		UserAgent:      c.UserAgent,
		WindowWidth:    c.WindowWidth,
		WindowHeight:   c.WindowHeight,
		DisableScripts: c.DisableScripts,
		DisableImages:  c.DisableImages,
	}
}

// Acquire starts a new browser session from the resolved
// configuration.
func (m *Manager) Acquire(ctx context.Context, opts driver.Options) (*Session, error) {
	id := uuid.New().String()
	logger := log.LoggerFromContext(ctx).With(slog.String("session", id))
	logger.Debug("acquiring session", slog.String("kind", opts.Kind), slog.Bool("headless", opts.Headless))

	if err := m.drv.NewSession(ctx, id, opts); err != nil {
		kind := opts.Kind
		if kind == "" {
			kind = config.BrowserChromium
		}
		return nil, &CreationError{Kind: kind, Err: err}
	}
	logger.Debug("session started")
	return &Session{id: id, opts: opts}, nil
}

// Release tears the session down. It never fails: teardown problems
// are only logged so a cleanup hiccup cannot overwrite the worker's
// outcome. Safe to call more than once and while an operation is in
// flight; in-flight operations then fail as session dead.
func (m *Manager) Release(ctx context.Context, s *Session) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.mu.Unlock()

	if err := m.drv.Quit(ctx, s.id); err != nil {
		log.LoggerFromContext(ctx).Warn("session teardown failed",
			slog.String("session", s.id),
			slog.String("err", err.Error()))
		return
	}
	log.LoggerFromContext(ctx).Debug("session released", slog.String("session", s.id))
}
