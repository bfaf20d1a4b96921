package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/AngHelll/AutomationFrameworkP/config"
	"github.com/AngHelll/AutomationFrameworkP/log"
)

const startupTimeout = 30 * time.Second

// The CDP driver speaks the Chrome DevTools Protocol via chromedp.
// Every session launches its own browser process so that workers stay
// fully isolated and teardown can never orphan a shared process.
type CDP struct {
	mu       sync.RWMutex
	sessions map[string]*cdpSession
}

type cdpSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	cancelAlloc context.CancelFunc

	mu    sync.Mutex
	seq   int
	nodes map[string]*cdp.Node
}

func NewCDP() *CDP {
	return &CDP{sessions: map[string]*cdpSession{}}
}

func (d *CDP) NewSession(ctx context.Context, id string, o Options) error {
	logger := log.LoggerFromContext(ctx).With(slog.String("session", id))

	switch o.Kind {
	case "", config.BrowserChromium, config.BrowserEdge:
	default:
		return fmt.Errorf("browser kind %q is not supported by the cdp driver", o.Kind)
	}

	width, height := o.WindowWidth, o.WindowHeight
	if width == 0 {
		width = 1920
	}
	if height == 0 {
		height = 1080
	}
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(width, height), // init with a desktop view (sometimes pages look different on mobile, eg buttons are missing)
		chromedp.Flag("headless", o.Headless),
	)
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	if o.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(o.UserAgent))
	}
	if o.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	sctx, cancel := chromedp.NewContext(allocCtx)

	actions := []chromedp.Action{}
	if o.DisableScripts {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetScriptExecutionDisabled(true).Do(ctx)
		}))
	}
	// force the browser to start so that launch problems surface here
	// and not on the first interaction
	actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
		protocolVersion, product, revision, userAgent, jsVersion, err := browser.GetVersion().Do(ctx)
		if err != nil {
			return err
		}
		if config.Debug {
			logger.Debug(fmt.Sprintf("browser version: protocolVersion=%s, product=%s, revision=%s, userAgent=%s, jsVersion=%s",
				protocolVersion, product, revision, userAgent, jsVersion))
		}
		return nil
	}))

	startCtx, cancelStart := context.WithTimeout(sctx, startupTimeout)
	defer cancelStart()
	if err := chromedp.Run(startCtx, actions...); err != nil {
		cancel()
		cancelAlloc()
		return fmt.Errorf("starting browser: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sessions[id]; ok {
		cancel()
		cancelAlloc()
		return fmt.Errorf("session %q already exists", id)
	}
	d.sessions[id] = &cdpSession{
		ctx:         sctx,
		cancel:      cancel,
		cancelAlloc: cancelAlloc,
		nodes:       map[string]*cdp.Node{},
	}
	return nil
}

func (d *CDP) Quit(ctx context.Context, id string) error {
	d.mu.Lock()
	s, ok := d.sessions[id]
	delete(d.sessions, id)
	d.mu.Unlock()
	if !ok {
		return &Error{Class: ClassSessionDead, Op: "quit", Session: id, Err: ErrSessionDead}
	}
	// graceful browser shutdown first, so no process is left behind
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	s.cancelAlloc()
	if err != nil {
		return &Error{Class: ClassSessionDead, Op: "quit", Session: id, Err: err}
	}
	return nil
}

// Close tears down every remaining session.
func (d *CDP) Close() {
	d.mu.Lock()
	sessions := d.sessions
	d.sessions = map[string]*cdpSession{}
	d.mu.Unlock()
	for _, s := range sessions {
		_ = chromedp.Cancel(s.ctx)
		s.cancel()
		s.cancelAlloc()
	}
}

func (d *CDP) session(op, id string) (*cdpSession, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.sessions[id]
	if !ok {
		return nil, &Error{Class: ClassSessionDead, Op: op, Session: id, Err: ErrSessionDead}
	}
	return s, nil
}

// run executes actions on the session's browser context while honoring
// the caller's deadline.
func (s *cdpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx := s.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(s.ctx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (d *CDP) wrap(op, id, detail string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: classifyCDPError(err), Op: op, Session: id, Context: detail, Err: err}
}

// classifyCDPError maps chromedp and devtools protocol failures onto
// the engine's failure classes.
func classifyCDPError(err error) Class {
	if c := ClassOf(err); c != ClassUnknown {
		return c
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "could not find node"),
		strings.Contains(msg, "node with given id"),
		strings.Contains(msg, "no node found"),
		strings.Contains(msg, "node is detached"):
		return ClassStale
	case strings.Contains(msg, "could not compute box model"),
		strings.Contains(msg, "could not compute content quads"),
		strings.Contains(msg, "element is not visible"):
		return ClassIntercepted
	case strings.Contains(msg, "target closed"),
		strings.Contains(msg, "target crashed"),
		strings.Contains(msg, "websocket"),
		strings.Contains(msg, "chrome failed to start"),
		strings.Contains(msg, "cannot find context"):
		return ClassSessionDead
	}
	return ClassUnknown
}

func (d *CDP) Navigate(ctx context.Context, id, url string) error {
	s, err := d.session("navigate", id)
	if err != nil {
		return err
	}
	log.LoggerFromContext(ctx).Debug("navigating", slog.String("session", id), slog.String("url", url))
	return d.wrap("navigate", id, url, s.run(ctx, chromedp.Navigate(url)))
}

func (d *CDP) DocumentReady(ctx context.Context, id string) (bool, error) {
	s, err := d.session("documentReady", id)
	if err != nil {
		return false, err
	}
	var ready bool
	err = s.run(ctx, chromedp.Evaluate(`document.readyState === "complete"`, &ready))
	if err != nil {
		return false, d.wrap("documentReady", id, "", err)
	}
	return ready, nil
}

func (d *CDP) Title(ctx context.Context, id string) (string, error) {
	s, err := d.session("title", id)
	if err != nil {
		return "", err
	}
	var title string
	if err := s.run(ctx, chromedp.Title(&title)); err != nil {
		return "", d.wrap("title", id, "", err)
	}
	return title, nil
}

func (d *CDP) CurrentURL(ctx context.Context, id string) (string, error) {
	s, err := d.session("currentUrl", id)
	if err != nil {
		return "", err
	}
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", d.wrap("currentUrl", id, "", err)
	}
	return loc, nil
}

func (d *CDP) PageSource(ctx context.Context, id string) (string, error) {
	s, err := d.session("pageSource", id)
	if err != nil {
		return "", err
	}
	var body string
	err = s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		body, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))
	if err != nil {
		return "", d.wrap("pageSource", id, "", err)
	}
	return body, nil
}

func (d *CDP) Screenshot(ctx context.Context, id string) ([]byte, error) {
	s, err := d.session("screenshot", id)
	if err != nil {
		return nil, err
	}
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, d.wrap("screenshot", id, "", err)
	}
	return buf, nil
}

func (d *CDP) FindElements(ctx context.Context, id string, loc Locator) ([]Element, error) {
	s, err := d.session("findElements", id)
	if err != nil {
		return nil, err
	}
	query, isXPath, err := loc.Query()
	if err != nil {
		return nil, &Error{Class: ClassUnknown, Op: "findElements", Session: id, Context: loc.String(), Err: err}
	}
	by := chromedp.ByQueryAll
	if isXPath {
		by = chromedp.BySearch
	}
	var nodes []*cdp.Node
	err = s.run(ctx, chromedp.Nodes(query, &nodes, by, chromedp.AtLeast(0)))
	if err != nil {
		return nil, d.wrap("findElements", id, loc.String(), err)
	}

	// a new lookup replaces the session's handle table, older handles
	// are stale from here on
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[string]*cdp.Node, len(nodes))
	els := make([]Element, len(nodes))
	for i, n := range nodes {
		s.seq++
		hid := strconv.Itoa(s.seq)
		s.nodes[hid] = n
		els[i] = Element{ID: hid, SessionID: id}
	}
	return els, nil
}

func (d *CDP) node(op string, el Element) (*cdpSession, *cdp.Node, error) {
	s, err := d.session(op, el.SessionID)
	if err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	n, ok := s.nodes[el.ID]
	s.mu.Unlock()
	if !ok {
		return nil, nil, &Error{Class: ClassStale, Op: op, Session: el.SessionID, Err: ErrStaleElement}
	}
	return s, n, nil
}

const displayedJS = `function() {
	if (!this.isConnected) return false;
	const style = window.getComputedStyle(this);
	if (style.display === "none" || style.visibility === "hidden" || style.opacity === "0") return false;
	const rect = this.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
}`

const enabledJS = `function() { return !this.disabled; }`

const textJS = `function() {
	return this.innerText !== undefined ? this.innerText : this.textContent;
}`

const clearJS = `function() {
	if ("value" in this) {
		this.value = "";
		this.dispatchEvent(new Event("input", {bubbles: true}));
		this.dispatchEvent(new Event("change", {bubbles: true}));
	} else if (this.isContentEditable) {
		this.textContent = "";
	}
}`

// unobstructedJS checks that the click point of the element is not
// covered by an unrelated element.
const unobstructedJS = `function() {
	const rect = this.getBoundingClientRect();
	const hit = document.elementFromPoint(rect.left + rect.width / 2, rect.top + rect.height / 2);
	return hit === this || this.contains(hit) || (hit !== null && hit.contains(this));
}`

// callOnNode resolves the node to a runtime object and calls fn on it,
// decoding the return value into out.
func callOnNode(n *cdp.Node, fn string, out any) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(n.BackendNodeID).Do(ctx)
		if err != nil {
			return err
		}
		res, exp, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exp != nil {
			return exp
		}
		if out == nil || res == nil || res.Value == nil {
			return nil
		}
		return json.Unmarshal([]byte(res.Value), out)
	})
}

func (d *CDP) IsDisplayed(ctx context.Context, el Element) (bool, error) {
	s, n, err := d.node("isDisplayed", el)
	if err != nil {
		return false, err
	}
	var displayed bool
	if err := s.run(ctx, callOnNode(n, displayedJS, &displayed)); err != nil {
		return false, d.wrap("isDisplayed", el.SessionID, "", err)
	}
	return displayed, nil
}

func (d *CDP) IsEnabled(ctx context.Context, el Element) (bool, error) {
	s, n, err := d.node("isEnabled", el)
	if err != nil {
		return false, err
	}
	var enabled bool
	if err := s.run(ctx, callOnNode(n, enabledJS, &enabled)); err != nil {
		return false, d.wrap("isEnabled", el.SessionID, "", err)
	}
	return enabled, nil
}

func (d *CDP) Click(ctx context.Context, el Element) error {
	s, n, err := d.node("click", el)
	if err != nil {
		return err
	}
	err = s.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return dom.ScrollIntoViewIfNeeded().WithBackendNodeID(n.BackendNodeID).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var unobstructed bool
			if err := callOnNode(n, unobstructedJS, &unobstructed).Do(ctx); err != nil {
				return err
			}
			if !unobstructed {
				return ErrIntercepted
			}
			return nil
		}),
		chromedp.MouseClickNode(n),
	)
	return d.wrap("click", el.SessionID, "", err)
}

func (d *CDP) Clear(ctx context.Context, el Element) error {
	s, n, err := d.node("clear", el)
	if err != nil {
		return err
	}
	return d.wrap("clear", el.SessionID, "", s.run(ctx, callOnNode(n, clearJS, nil)))
}

func (d *CDP) SendKeys(ctx context.Context, el Element, text string) error {
	s, n, err := d.node("sendKeys", el)
	if err != nil {
		return err
	}
	err = s.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return dom.Focus().WithBackendNodeID(n.BackendNodeID).Do(ctx)
		}),
		chromedp.KeyEvent(text),
	)
	return d.wrap("sendKeys", el.SessionID, "", err)
}

func (d *CDP) Text(ctx context.Context, el Element) (string, error) {
	s, n, err := d.node("text", el)
	if err != nil {
		return "", err
	}
	var text string
	if err := s.run(ctx, callOnNode(n, textJS, &text)); err != nil {
		return "", d.wrap("text", el.SessionID, "", err)
	}
	return text, nil
}
