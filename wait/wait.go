// Package wait implements explicit waits: a condition is polled at a
// fixed cadence until it holds or the time budget runs out.
package wait

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/AngHelll/AutomationFrameworkP/driver"
	"github.com/AngHelll/AutomationFrameworkP/log"
)

const DefaultPoll = 250 * time.Millisecond

// A Condition is a predicate over driver state. Check returns the
// element satisfying the condition, or ok=false while it does not hold
// yet. Conditions must tolerate the element disappearing between
// polls.
type Condition interface {
	Check(ctx context.Context, d driver.Driver, sessionID string) (driver.Element, bool, error)
	Description() string
}

// TimeoutError reports a condition that was actively polled for its
// whole budget without ever holding.
type TimeoutError struct {
	Description string
	Elapsed     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("wait timed out after %v: %s", e.Elapsed.Round(time.Millisecond), e.Description)
}

func (e *TimeoutError) Classification() driver.Class { return driver.ClassTimedOut }

// Until polls cond every poll interval until it holds, the timeout
// elapses, or an unrecoverable error occurs. Driver failures classified
// NotFound or Stale count as "not yet satisfied" because intermediate
// DOM churn is expected; everything else propagates immediately.
func Until(ctx context.Context, d driver.Driver, sessionID string, cond Condition, timeout, poll time.Duration) (driver.Element, error) {
	logger := log.LoggerFromContext(ctx)
	if poll <= 0 {
		poll = DefaultPoll
	}
	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		el, ok, err := cond.Check(waitCtx, d, sessionID)
		// a check that came back satisfied counts even when the
		// deadline passed while it ran
		if err == nil && ok {
			return el, nil
		}
		if waitCtx.Err() != nil {
			if errors.Is(waitCtx.Err(), context.Canceled) {
				return driver.Element{}, waitCtx.Err()
			}
			return driver.Element{}, &TimeoutError{Description: cond.Description(), Elapsed: time.Since(start)}
		}
		if err != nil {
			switch driver.ClassOf(err) {
			case driver.ClassNotFound, driver.ClassStale:
				// keep polling
			default:
				return driver.Element{}, err
			}
		}
		logger.Debug("condition not yet satisfied",
			slog.String("condition", cond.Description()),
			slog.String("session", sessionID),
			slog.Int("poll", attempt))

		select {
		case <-waitCtx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return driver.Element{}, ctx.Err()
			}
			return driver.Element{}, &TimeoutError{Description: cond.Description(), Elapsed: time.Since(start)}
		case <-time.After(poll):
		}
	}
}

type condition struct {
	desc  string
	check func(ctx context.Context, d driver.Driver, sessionID string) (driver.Element, bool, error)
}

func (c *condition) Check(ctx context.Context, d driver.Driver, sessionID string) (driver.Element, bool, error) {
	return c.check(ctx, d, sessionID)
}

func (c *condition) Description() string { return c.desc }

// elementCondition locates loc and applies pred to the first match in
// document order.
func elementCondition(desc string, loc driver.Locator, pred func(ctx context.Context, d driver.Driver, el driver.Element) (bool, error)) Condition {
	return &condition{
		desc: fmt.Sprintf("%s (%s)", desc, loc),
		check: func(ctx context.Context, d driver.Driver, sessionID string) (driver.Element, bool, error) {
			els, err := d.FindElements(ctx, sessionID, loc)
			if err != nil {
				return driver.Element{}, false, err
			}
			if len(els) == 0 {
				return driver.Element{}, false, nil
			}
			el := els[0]
			if pred == nil {
				return el, true, nil
			}
			ok, err := pred(ctx, d, el)
			if err != nil || !ok {
				return driver.Element{}, false, err
			}
			return el, true, nil
		},
	}
}

// Present holds as soon as at least one element matches loc.
func Present(loc driver.Locator) Condition {
	return elementCondition("element present", loc, nil)
}

// Visible holds when a matching element is displayed.
func Visible(loc driver.Locator) Condition {
	return elementCondition("element visible", loc, func(ctx context.Context, d driver.Driver, el driver.Element) (bool, error) {
		return d.IsDisplayed(ctx, el)
	})
}

// Clickable holds when a matching element is displayed and enabled.
func Clickable(loc driver.Locator) Condition {
	return elementCondition("element clickable", loc, func(ctx context.Context, d driver.Driver, el driver.Element) (bool, error) {
		displayed, err := d.IsDisplayed(ctx, el)
		if err != nil || !displayed {
			return false, err
		}
		return d.IsEnabled(ctx, el)
	})
}

// TextIs holds when the element's text equals want exactly.
func TextIs(loc driver.Locator, want string) Condition {
	return textCondition(fmt.Sprintf("text == %q", want), loc, func(s string) bool { return s == want })
}

// TextContains holds when the element's text contains want.
func TextContains(loc driver.Locator, want string) Condition {
	return textCondition(fmt.Sprintf("text contains %q", want), loc, func(s string) bool { return strings.Contains(s, want) })
}

// TextMatches holds when the element's text matches re.
func TextMatches(loc driver.Locator, re *regexp.Regexp) Condition {
	return textCondition(fmt.Sprintf("text matches %s", re), loc, re.MatchString)
}

func textCondition(desc string, loc driver.Locator, pred func(string) bool) Condition {
	return elementCondition(desc, loc, func(ctx context.Context, d driver.Driver, el driver.Element) (bool, error) {
		text, err := d.Text(ctx, el)
		if err != nil {
			return false, err
		}
		return pred(text), nil
	})
}

// DocumentReady holds when the page finished loading.
func DocumentReady() Condition {
	return &condition{
		desc: "document ready",
		check: func(ctx context.Context, d driver.Driver, sessionID string) (driver.Element, bool, error) {
			ready, err := d.DocumentReady(ctx, sessionID)
			return driver.Element{}, ready, err
		},
	}
}
