// Package runner drives a whole run: checks fan out over a pool of
// workers, each owning one browser session, and results fan in to the
// report writer.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AngHelll/AutomationFrameworkP/config"
	"github.com/AngHelll/AutomationFrameworkP/diagnostic"
	"github.com/AngHelll/AutomationFrameworkP/driver"
	"github.com/AngHelll/AutomationFrameworkP/fixture"
	"github.com/AngHelll/AutomationFrameworkP/interact"
	"github.com/AngHelll/AutomationFrameworkP/log"
	"github.com/AngHelll/AutomationFrameworkP/report"
	"github.com/AngHelll/AutomationFrameworkP/retry"
	"github.com/AngHelll/AutomationFrameworkP/session"
	"github.com/AngHelll/AutomationFrameworkP/types"
)

// Runner owns one run of the configured checks.
type Runner struct {
	drv driver.Driver
	cfg *config.Config
}

func New(drv driver.Driver, cfg *config.Config) *Runner {
	return &Runner{drv: drv, cfg: cfg}
}

// Run fans the checks out over the worker pool and streams every
// result to rc, closing it when the last worker is done. It returns
// the run summary.
func (r *Runner) Run(ctx context.Context, rc chan<- report.Result) report.Summary {
	nrWorkers := r.cfg.Workers
	if len(r.cfg.Checks) < nrWorkers {
		nrWorkers = len(r.cfg.Checks)
	}
	if nrWorkers < 1 {
		nrWorkers = 1
	}
	slog.Info(fmt.Sprintf("running %d checks with %d workers", len(r.cfg.Checks), nrWorkers))

	cc := make(chan types.Check)
	results := make(chan report.Result)

	// fill worker queue
	go func() {
		for _, c := range r.cfg.Checks {
			cc <- c
		}
		close(cc)
	}()

	var workerWg sync.WaitGroup
	workerWg.Add(nrWorkers)
	slog.Debug("starting workers")
	for i := 0; i < nrWorkers; i++ {
		go func(j int) {
			defer workerWg.Done()
			r.worker(ctx, cc, results, j)
		}(i)
	}

	all := []report.Result{}
	var collectWg sync.WaitGroup
	collectWg.Add(1)
	go func() {
		defer collectWg.Done()
		for res := range results {
			all = append(all, res)
			if rc != nil {
				rc <- res
			}
		}
	}()

	workerWg.Wait()
	close(results)
	collectWg.Wait()
	if rc != nil {
		close(rc)
	}
	return report.Summarize(all)
}

// worker consumes checks until the queue closes. The session is
// acquired lazily on the first check and held for the worker's whole
// lifetime; only a session that died gets replaced for the next check.
func (r *Runner) worker(ctx context.Context, cc <-chan types.Check, results chan<- report.Result, threadNr int) {
	workerLogger := slog.With(slog.Int("worker", threadNr))
	ctx = log.ContextWithLogger(ctx, workerLogger)
	manager := session.NewManager(r.drv)

	var sess *session.Session
	defer func() {
		manager.Release(ctx, sess)
	}()

	for c := range cc {
		checkLogger := workerLogger.With(slog.String("check", c.Name))
		checkLogger.Info("starting check")
		cctx := log.ContextWithLogger(ctx, checkLogger)

		if sess == nil {
			s, err := manager.Acquire(cctx, session.OptionsFromConfig(r.cfg.Browser))
			if err != nil {
				checkLogger.Error(fmt.Sprintf("%s: %s", c.Name, err))
				results <- report.Result{Check: c.Name, URL: c.URL, Status: report.StatusError, Error: err.Error()}
				continue
			}
			sess = s
		}

		res, sessionLost := r.runCheck(cctx, sess, c)
		res.Session = sess.ID()
		checkLogger.Info(fmt.Sprintf("check %s after %d steps", res.Status, res.Steps))
		results <- res

		if sessionLost {
			manager.Release(cctx, sess)
			sess = nil
		}
	}
	workerLogger.Info("done working")
}

// runCheck executes the steps of one check against the worker's
// session. The second return value reports whether the session died
// underneath the check.
func (r *Runner) runCheck(ctx context.Context, sess *session.Session, c types.Check) (report.Result, bool) {
	start := time.Now()
	res := report.Result{Check: c.Name, URL: c.URL, Status: report.StatusPassed}

	var fx *fixture.Fixture
	if c.DataFile != "" {
		loaded, err := fixture.Load(c.DataFile)
		if err != nil {
			res.Status = report.StatusError
			res.Error = err.Error()
			res.DurationMS = time.Since(start).Milliseconds()
			return res, false
		}
		fx = loaded
	}

	rec, err := diagnostic.NewRecorder(r.drv, sess.ID(), r.cfg.Diagnostics.Dir, r.cfg.Diagnostics.CaptureHTML)
	if err != nil {
		res.Status = report.StatusError
		res.Error = err.Error()
		res.DurationMS = time.Since(start).Milliseconds()
		return res, false
	}

	ix := interact.New(r.drv, sess, interact.Options{
		Timeout:      r.cfg.Wait.Timeout(),
		Poll:         r.cfg.Wait.Poll(),
		PageLoad:     r.cfg.Wait.PageLoad(),
		Policy:       retry.FromConfig(r.cfg.Retry),
		Recorder:     rec,
		TraceActions: r.cfg.Diagnostics.TraceActions,
	})

	if c.URL != "" {
		if err := ix.Navigate(ctx, c.URL); err != nil {
			return failed(res, start, 0, fmt.Errorf("navigate to %s: %w", c.URL, err))
		}
	}

	for i, step := range c.Steps {
		if err := r.runStep(ctx, ix, fx, step); err != nil {
			return failed(res, start, i, fmt.Errorf("step %d (%s %s=%s): %w", i+1, step.Action, stepBy(step), step.Selector, err))
		}
	}
	res.Steps = len(c.Steps)
	res.DurationMS = time.Since(start).Milliseconds()
	return res, false
}

// failed finalizes the result for a check that did not pass.
// Classified failures come from the engine and count as failed;
// everything else (bad data file, unknown action) is a setup error.
func failed(res report.Result, start time.Time, steps int, err error) (report.Result, bool) {
	res.Steps = steps
	res.Status = report.StatusFailed
	if driver.ClassOf(err) == driver.ClassUnknown {
		res.Status = report.StatusError
	}
	res.Error = err.Error()
	res.DurationMS = time.Since(start).Milliseconds()
	return res, driver.ClassOf(err) == driver.ClassSessionDead
}

func stepBy(s types.Step) string {
	if s.By == "" {
		return driver.ByCSS
	}
	return s.By
}

// runStep dispatches one step to the facade.
func (r *Runner) runStep(ctx context.Context, ix *interact.Interactor, fx *fixture.Fixture, step types.Step) error {
	loc := driver.Locator{By: stepBy(step), Value: step.Selector}
	timeout := r.cfg.Wait.Timeout()
	if step.Timeout > 0 {
		timeout = time.Duration(step.Timeout) * time.Millisecond
	}

	switch step.Action {
	case types.StepActionClick:
		return ix.Click(ctx, loc)
	case types.StepActionType:
		text, err := fx.Resolve(step.Text)
		if err != nil {
			return err
		}
		return ix.Type(ctx, loc, text)
	case types.StepActionRead:
		text, err := ix.ReadText(ctx, loc)
		if err != nil {
			return err
		}
		log.LoggerFromContext(ctx).Info("read text",
			slog.String("locator", loc.String()),
			slog.String("text", text))
		return nil
	case types.StepActionVisible:
		return ix.AssertVisible(ctx, loc, timeout)
	case types.StepActionText:
		want, err := fx.Resolve(step.Text)
		if err != nil {
			return err
		}
		return ix.AssertText(ctx, loc, want, timeout)
	default:
		return fmt.Errorf("unknown step action %q", step.Action)
	}
}
