// Package interact is the public surface of the engine: click, type,
// read text and visibility probes against logical locators, with
// waiting, retries and failure diagnostics built in.
package interact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AngHelll/AutomationFrameworkP/diagnostic"
	"github.com/AngHelll/AutomationFrameworkP/driver"
	"github.com/AngHelll/AutomationFrameworkP/log"
	"github.com/AngHelll/AutomationFrameworkP/retry"
	"github.com/AngHelll/AutomationFrameworkP/session"
	"github.com/AngHelll/AutomationFrameworkP/wait"
)

// NotFoundError means the locator matched nothing for the whole retry
// budget. Suggestions hold selectors found on the page that look close
// to the one that failed.
type NotFoundError struct {
	Locator     driver.Locator
	Attempts    int
	Suggestions []string
	Err         error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("element %s not found after %d attempts", e.Locator, e.Attempts)
	if len(e.Suggestions) > 0 {
		msg = fmt.Sprintf("%s (similar selectors on the page: %v)", msg, e.Suggestions)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *NotFoundError) Unwrap() error { return e.Err }

func (e *NotFoundError) Classification() driver.Class { return driver.ClassNotFound }

// NotInteractableError means the element kept being stale, covered or
// otherwise unusable past the final attempt.
type NotInteractableError struct {
	Locator  driver.Locator
	Attempts int
	Err      error
}

func (e *NotInteractableError) Error() string {
	msg := fmt.Sprintf("element %s not interactable after %d attempts", e.Locator, e.Attempts)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *NotInteractableError) Unwrap() error { return e.Err }

func (e *NotInteractableError) Classification() driver.Class {
	if c := driver.ClassOf(e.Err); c == driver.ClassStale || c == driver.ClassIntercepted {
		return c
	}
	return driver.ClassIntercepted
}

// Options tunes an Interactor. Zero values fall back to the engine
// defaults.
type Options struct {
	Timeout      time.Duration
	Poll         time.Duration
	PageLoad     time.Duration
	Policy       retry.Policy
	Recorder     *diagnostic.Recorder
	TraceActions bool
}

// Interactor executes interactions against exactly one session. All
// side effects stay scoped to that session.
type Interactor struct {
	drv  driver.Driver
	sess *session.Session
	opts Options
}

func New(drv driver.Driver, sess *session.Session, opts Options) *Interactor {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Poll == 0 {
		opts.Poll = wait.DefaultPoll
	}
	if opts.PageLoad == 0 {
		opts.PageLoad = 30 * time.Second
	}
	if opts.Policy.MaxAttempts == 0 {
		opts.Policy = retry.DefaultPolicy()
	}
	return &Interactor{drv: drv, sess: sess, opts: opts}
}

func (ix *Interactor) Session() *session.Session { return ix.sess }

// Resolve returns a live handle for the locator, waiting for presence
// and re-querying from scratch when the DOM churns underneath. Handles
// must not be cached across waits; resolve again instead.
func (ix *Interactor) Resolve(ctx context.Context, loc driver.Locator, timeout time.Duration) (driver.Element, error) {
	if timeout <= 0 {
		timeout = ix.opts.Timeout
	}
	el, err := retry.DoValue(ctx, "resolve", ix.opts.Policy, func(ctx context.Context) (driver.Element, error) {
		return wait.Until(ctx, ix.drv, ix.sess.ID(), wait.Present(loc), timeout, ix.opts.Poll)
	})
	if err != nil {
		return driver.Element{}, ix.terminal(ctx, loc, err)
	}
	return el, nil
}

// Click resolves the locator to a clickable element and clicks it.
// Every attempt resolves anew, so a handle invalidated by a re-render
// is never reused. On terminal failure one diagnostic is captured
// before the classified error returns.
func (ix *Interactor) Click(ctx context.Context, loc driver.Locator) error {
	ix.snapshot(ctx, "before_click")
	err := retry.Do(ctx, "click", ix.opts.Policy, func(ctx context.Context) error {
		el, err := wait.Until(ctx, ix.drv, ix.sess.ID(), wait.Clickable(loc), ix.opts.Timeout, ix.opts.Poll)
		if err != nil {
			return err
		}
		return ix.drv.Click(ctx, el)
	})
	if err != nil {
		return ix.fail(ctx, "click", loc, err)
	}
	ix.snapshot(ctx, "after_click")
	return nil
}

// Type waits for the field, clears it and sends text.
func (ix *Interactor) Type(ctx context.Context, loc driver.Locator, text string) error {
	ix.snapshot(ctx, "before_type")
	err := retry.Do(ctx, "type", ix.opts.Policy, func(ctx context.Context) error {
		el, err := wait.Until(ctx, ix.drv, ix.sess.ID(), wait.Visible(loc), ix.opts.Timeout, ix.opts.Poll)
		if err != nil {
			return err
		}
		if err := ix.drv.Clear(ctx, el); err != nil {
			return err
		}
		return ix.drv.SendKeys(ctx, el, text)
	})
	if err != nil {
		return ix.fail(ctx, "type", loc, err)
	}
	ix.snapshot(ctx, "after_type")
	return nil
}

// ReadText returns the text of the first element the locator resolves
// to.
func (ix *Interactor) ReadText(ctx context.Context, loc driver.Locator) (string, error) {
	text, err := retry.DoValue(ctx, "readText", ix.opts.Policy, func(ctx context.Context) (string, error) {
		el, err := wait.Until(ctx, ix.drv, ix.sess.ID(), wait.Present(loc), ix.opts.Timeout, ix.opts.Poll)
		if err != nil {
			return "", err
		}
		return ix.drv.Text(ctx, el)
	})
	if err != nil {
		return "", ix.fail(ctx, "readText", loc, err)
	}
	return text, nil
}

// IsVisible reports whether the locator resolves to a displayed
// element within the timeout. It never raises: probing is for
// conditional logic, not assertions, so a timeout simply means false.
func (ix *Interactor) IsVisible(ctx context.Context, loc driver.Locator, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = ix.opts.Timeout
	}
	_, err := wait.Until(ctx, ix.drv, ix.sess.ID(), wait.Visible(loc), timeout, ix.opts.Poll)
	if err != nil {
		log.LoggerFromContext(ctx).Debug("visibility probe negative",
			slog.String("locator", loc.String()),
			slog.String("err", err.Error()))
		return false
	}
	return true
}

// WaitFor blocks until the condition holds, using the engine's poll
// interval. No retry and no diagnostics; callers that need those use
// the assertion helpers instead.
func (ix *Interactor) WaitFor(ctx context.Context, cond wait.Condition, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = ix.opts.Timeout
	}
	_, err := wait.Until(ctx, ix.drv, ix.sess.ID(), cond, timeout, ix.opts.Poll)
	return err
}

// AssertVisible waits for the element to be displayed and fails the
// check when it never is. Unlike IsVisible this raises and captures a
// diagnostic, so it is the right call for a step that must hold.
func (ix *Interactor) AssertVisible(ctx context.Context, loc driver.Locator, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = ix.opts.Timeout
	}
	_, err := wait.Until(ctx, ix.drv, ix.sess.ID(), wait.Visible(loc), timeout, ix.opts.Poll)
	if err != nil {
		return ix.fail(ctx, "assertVisible", loc, err)
	}
	return nil
}

// AssertText waits until the element's text contains want, capturing a
// diagnostic when it never does.
func (ix *Interactor) AssertText(ctx context.Context, loc driver.Locator, want string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = ix.opts.Timeout
	}
	_, err := wait.Until(ctx, ix.drv, ix.sess.ID(), wait.TextContains(loc, want), timeout, ix.opts.Poll)
	if err != nil {
		return ix.fail(ctx, "assertText", loc, err)
	}
	return nil
}

// Navigate loads url and waits for the document to finish loading.
func (ix *Interactor) Navigate(ctx context.Context, url string) error {
	err := ix.drv.Navigate(ctx, ix.sess.ID(), url)
	if err == nil {
		_, err = wait.Until(ctx, ix.drv, ix.sess.ID(), wait.DocumentReady(), ix.opts.PageLoad, ix.opts.Poll)
	}
	if err != nil {
		if ix.opts.Recorder != nil {
			ix.opts.Recorder.Capture(ctx, "navigate", url, err)
		}
		return err
	}
	return nil
}

// Title returns the current page title.
func (ix *Interactor) Title(ctx context.Context) (string, error) {
	return ix.drv.Title(ctx, ix.sess.ID())
}

// CurrentURL returns the browser's current location.
func (ix *Interactor) CurrentURL(ctx context.Context) (string, error) {
	return ix.drv.CurrentURL(ctx, ix.sess.ID())
}

// fail maps a terminal failure onto the engine taxonomy and captures
// exactly one diagnostic for it.
func (ix *Interactor) fail(ctx context.Context, op string, loc driver.Locator, err error) error {
	classified := ix.terminal(ctx, loc, err)
	if ix.opts.Recorder != nil {
		ix.opts.Recorder.Capture(ctx, op, loc.String(), classified)
	}
	return classified
}

// terminal turns the last retry failure into the caller-facing error.
// A wait that expired without the element ever appearing counts as not
// found; one that expired on a present element counts as not
// interactable.
func (ix *Interactor) terminal(ctx context.Context, loc driver.Locator, err error) error {
	attempts := 1
	var ex *retry.ExhaustedError
	if errors.As(err, &ex) {
		attempts = ex.Attempts
	}
	switch driver.ClassOf(err) {
	case driver.ClassNotFound:
		return &NotFoundError{Locator: loc, Attempts: attempts, Suggestions: ix.suggest(ctx, loc), Err: err}
	case driver.ClassStale, driver.ClassIntercepted:
		return &NotInteractableError{Locator: loc, Attempts: attempts, Err: err}
	case driver.ClassTimedOut:
		els, ferr := ix.drv.FindElements(ctx, ix.sess.ID(), loc)
		if ferr == nil && len(els) == 0 {
			return &NotFoundError{Locator: loc, Attempts: attempts, Suggestions: ix.suggest(ctx, loc), Err: err}
		}
		return &NotInteractableError{Locator: loc, Attempts: attempts, Err: err}
	}
	return err
}

// suggest mines the current page for selectors close to the one that
// failed. Best effort only.
func (ix *Interactor) suggest(ctx context.Context, loc driver.Locator) []string {
	src, err := ix.drv.PageSource(ctx, ix.sess.ID())
	if err != nil {
		return nil
	}
	return SuggestSelectors(src, loc, 3)
}

// snapshot writes an optional action-trace screenshot.
func (ix *Interactor) snapshot(ctx context.Context, label string) {
	if !ix.opts.TraceActions || ix.opts.Recorder == nil {
		return
	}
	ix.opts.Recorder.Snapshot(ctx, label)
}
