package driver

import (
	"context"
	"strconv"
	"sync"
)

// MockCall records one driver invocation, tagged with the owning
// session.
type MockCall struct {
	Op      string
	Session string
}

// MockElement describes one node of the mock DOM. Query is the
// translated locator query it matches.
type MockElement struct {
	Query       string
	Visible     bool
	Enabled     bool
	Text        string
	AppearAfter int // matched by FindElements only from call AppearAfter+1 on
}

// NewMockElement returns a visible, enabled element matched by query.
func NewMockElement(query, text string) *MockElement {
	return &MockElement{Query: query, Visible: true, Enabled: true, Text: text}
}

type mockSession struct {
	url     string
	finds   map[string]int
	handles map[string]*MockElement
	values  map[string]string
	clicks  map[string]int
}

// Mock is an in memory Driver for tests: a canned element table plus
// scripted failures per operation. Every call is recorded with its
// session id so tests can assert isolation.
type Mock struct {
	mu       sync.Mutex
	seq      int
	sessions map[string]*mockSession
	elements []*MockElement
	failNext map[string][]error
	calls    []MockCall

	title          string
	source         string
	ScreenshotData []byte
}

func NewMock() *Mock {
	return &Mock{
		sessions:       map[string]*mockSession{},
		failNext:       map[string][]error{},
		source:         "<html><body></body></html>",
		ScreenshotData: []byte("png"),
	}
}

// AddElement registers a node in the mock DOM.
func (m *Mock) AddElement(e *MockElement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elements = append(m.elements, e)
}

func (m *Mock) SetSource(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.source = s
}

func (m *Mock) SetTitle(t string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.title = t
}

// SetVisible toggles visibility of every element matching query.
func (m *Mock) SetVisible(query string, visible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.elements {
		if e.Query == query {
			e.Visible = visible
		}
	}
}

// FailNext queues errs for the coming calls of op. Op names follow the
// Driver method names in lower camel case.
func (m *Mock) FailNext(op string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[op] = append(m.failNext[op], errs...)
}

// InvalidateHandles drops every live handle of the session, so held
// elements go stale.
func (m *Mock) InvalidateHandles(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.handles = map[string]*MockElement{}
	}
}

// Calls returns a copy of all recorded invocations.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times op was invoked, any session.
func (m *Mock) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Clicks returns how many clicks the session issued on query.
func (m *Mock) Clicks(sessionID, query string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		return s.clicks[query]
	}
	return 0
}

// Value returns the text typed into query by the session.
func (m *Mock) Value(sessionID, query string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		return s.values[query]
	}
	return ""
}

// LiveSessions returns the number of sessions not yet quit.
func (m *Mock) LiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// record appends the call and pops a scripted failure, if any. Callers
// must hold m.mu.
func (m *Mock) record(op, session string) error {
	m.calls = append(m.calls, MockCall{Op: op, Session: session})
	if q := m.failNext[op]; len(q) > 0 {
		err := q[0]
		m.failNext[op] = q[1:]
		return err
	}
	return nil
}

func (m *Mock) liveSession(op, id string) (*mockSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, &Error{Class: ClassSessionDead, Op: op, Session: id, Err: ErrSessionDead}
	}
	return s, nil
}

func (m *Mock) liveElement(op string, el Element) (*mockSession, *MockElement, error) {
	s, err := m.liveSession(op, el.SessionID)
	if err != nil {
		return nil, nil, err
	}
	e, ok := s.handles[el.ID]
	if !ok {
		return nil, nil, &Error{Class: ClassStale, Op: op, Session: el.SessionID, Err: ErrStaleElement}
	}
	return s, e, nil
}

func (m *Mock) NewSession(ctx context.Context, id string, opts Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("newSession", id); err != nil {
		return err
	}
	m.sessions[id] = &mockSession{
		finds:   map[string]int{},
		handles: map[string]*MockElement{},
		values:  map[string]string{},
		clicks:  map[string]int{},
	}
	return nil
}

func (m *Mock) Quit(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("quit", id); err != nil {
		return err
	}
	if _, ok := m.sessions[id]; !ok {
		return &Error{Class: ClassSessionDead, Op: "quit", Session: id, Err: ErrSessionDead}
	}
	delete(m.sessions, id)
	return nil
}

func (m *Mock) Navigate(ctx context.Context, id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("navigate", id); err != nil {
		return err
	}
	s, err := m.liveSession("navigate", id)
	if err != nil {
		return err
	}
	s.url = url
	return nil
}

func (m *Mock) DocumentReady(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("documentReady", id); err != nil {
		return false, err
	}
	if _, err := m.liveSession("documentReady", id); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Mock) Title(ctx context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("title", id); err != nil {
		return "", err
	}
	if _, err := m.liveSession("title", id); err != nil {
		return "", err
	}
	return m.title, nil
}

func (m *Mock) CurrentURL(ctx context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("currentUrl", id); err != nil {
		return "", err
	}
	s, err := m.liveSession("currentUrl", id)
	if err != nil {
		return "", err
	}
	return s.url, nil
}

func (m *Mock) PageSource(ctx context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("pageSource", id); err != nil {
		return "", err
	}
	if _, err := m.liveSession("pageSource", id); err != nil {
		return "", err
	}
	return m.source, nil
}

func (m *Mock) Screenshot(ctx context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("screenshot", id); err != nil {
		return nil, err
	}
	if _, err := m.liveSession("screenshot", id); err != nil {
		return nil, err
	}
	return m.ScreenshotData, nil
}

func (m *Mock) FindElements(ctx context.Context, id string, loc Locator) ([]Element, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("findElements", id); err != nil {
		return nil, err
	}
	s, err := m.liveSession("findElements", id)
	if err != nil {
		return nil, err
	}
	query, _, err := loc.Query()
	if err != nil {
		return nil, &Error{Class: ClassUnknown, Op: "findElements", Session: id, Context: loc.String(), Err: err}
	}
	s.finds[query]++
	els := []Element{}
	for _, e := range m.elements {
		if e.Query != query {
			continue
		}
		if s.finds[query] <= e.AppearAfter {
			continue
		}
		m.seq++
		hid := strconv.Itoa(m.seq)
		s.handles[hid] = e
		els = append(els, Element{ID: hid, SessionID: id})
	}
	return els, nil
}

func (m *Mock) IsDisplayed(ctx context.Context, el Element) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("isDisplayed", el.SessionID); err != nil {
		return false, err
	}
	_, e, err := m.liveElement("isDisplayed", el)
	if err != nil {
		return false, err
	}
	return e.Visible, nil
}

func (m *Mock) IsEnabled(ctx context.Context, el Element) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("isEnabled", el.SessionID); err != nil {
		return false, err
	}
	_, e, err := m.liveElement("isEnabled", el)
	if err != nil {
		return false, err
	}
	return e.Enabled, nil
}

func (m *Mock) Click(ctx context.Context, el Element) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("click", el.SessionID); err != nil {
		return err
	}
	s, e, err := m.liveElement("click", el)
	if err != nil {
		return err
	}
	if !e.Visible {
		return &Error{Class: ClassIntercepted, Op: "click", Session: el.SessionID, Err: ErrIntercepted}
	}
	s.clicks[e.Query]++
	return nil
}

func (m *Mock) Clear(ctx context.Context, el Element) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("clear", el.SessionID); err != nil {
		return err
	}
	s, e, err := m.liveElement("clear", el)
	if err != nil {
		return err
	}
	s.values[e.Query] = ""
	return nil
}

func (m *Mock) SendKeys(ctx context.Context, el Element, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("sendKeys", el.SessionID); err != nil {
		return err
	}
	s, e, err := m.liveElement("sendKeys", el)
	if err != nil {
		return err
	}
	s.values[e.Query] += text
	return nil
}

func (m *Mock) Text(ctx context.Context, el Element) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("text", el.SessionID); err != nil {
		return "", err
	}
	s, e, err := m.liveElement("text", el)
	if err != nil {
		return "", err
	}
	if v, ok := s.values[e.Query]; ok && v != "" {
		return v, nil
	}
	return e.Text, nil
}
