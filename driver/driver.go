// Package driver defines the protocol the engine speaks to a browser
// automation backend, plus the failure classification shared by all
// engine components.
package driver

import (
	"context"
	"fmt"
	"strings"
)

// Locator strategies.
const (
	ByID    = "id"
	ByCSS   = "css"
	ByName  = "name"
	ByClass = "class"
	ByTag   = "tag"
	ByXPath = "xpath"
	ByLink  = "link"
)

// A Locator identifies zero or more DOM nodes via a strategy and a
// selector string. It is a value, constructed per call site.
type Locator struct {
	By    string `yaml:"by,omitempty"`
	Value string `yaml:"value,omitempty"`
}

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.By, l.Value)
}

// Query translates the locator into a css or xpath query. The second
// return value reports whether the query is xpath.
func (l Locator) Query() (string, bool, error) {
	esc := strings.ReplaceAll(l.Value, `"`, `\"`)
	switch l.By {
	case ByID:
		return fmt.Sprintf(`[id="%s"]`, esc), false, nil
	case ByCSS, "":
		return l.Value, false, nil
	case ByName:
		return fmt.Sprintf(`[name="%s"]`, esc), false, nil
	case ByClass:
		return fmt.Sprintf(`[class~="%s"]`, esc), false, nil
	case ByTag:
		return l.Value, false, nil
	case ByXPath:
		return l.Value, true, nil
	case ByLink:
		return fmt.Sprintf(`//a[normalize-space(.)="%s"]`, esc), true, nil
	}
	return "", false, fmt.Errorf("unknown locator strategy %q", l.By)
}

// An Element is an opaque, session scoped reference to a resolved DOM
// node. It goes stale when the underlying node is replaced or when the
// same session runs another FindElements, so it must never be cached
// across waits.
type Element struct {
	ID        string
	SessionID string
}

// Options configures a new browser session.
type Options struct {
	Kind           string
	Headless       bool
	ExecPath       string
	UserAgent      string
	WindowWidth    int
	WindowHeight   int
	DisableScripts bool
	DisableImages  bool
}

// A Driver executes commands against live browser sessions. Methods are
// safe for concurrent use as long as no two goroutines share a session
// id, which the engine guarantees by giving each worker its own
// session.
type Driver interface {
	NewSession(ctx context.Context, id string, opts Options) error
	Quit(ctx context.Context, id string) error

	Navigate(ctx context.Context, id, url string) error
	DocumentReady(ctx context.Context, id string) (bool, error)
	Title(ctx context.Context, id string) (string, error)
	CurrentURL(ctx context.Context, id string) (string, error)
	PageSource(ctx context.Context, id string) (string, error)
	Screenshot(ctx context.Context, id string) ([]byte, error)

	FindElements(ctx context.Context, id string, loc Locator) ([]Element, error)
	IsDisplayed(ctx context.Context, el Element) (bool, error)
	IsEnabled(ctx context.Context, el Element) (bool, error)
	Click(ctx context.Context, el Element) error
	Clear(ctx context.Context, el Element) error
	SendKeys(ctx context.Context, el Element, text string) error
	Text(ctx context.Context, el Element) (string, error)
}
