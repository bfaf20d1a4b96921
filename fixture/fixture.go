// Package fixture loads external check data and resolves references
// to it inside step arguments, so credentials and expected values live
// next to the checks instead of inside them.
package fixture

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/antchfx/jsonquery"
)

// A Fixture is one parsed JSON data file. Lookups use XPath
// expressions, e.g. "/credentials/username" or "//token".
type Fixture struct {
	path string
	doc  *jsonquery.Node
}

// Load parses the data file at path.
func Load(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file %s: %v", path, err)
	}
	defer f.Close()
	doc, err := jsonquery.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse data file %s: %v", path, err)
	}
	return &Fixture{path: path, doc: doc}, nil
}

// Lookup returns the first value the expression points at.
func (fx *Fixture) Lookup(expr string) (string, error) {
	node, err := jsonquery.Query(fx.doc, expr)
	if err != nil {
		return "", fmt.Errorf("bad data expression %q: %v", expr, err)
	}
	if node == nil {
		return "", fmt.Errorf("no value at %q in %s", expr, fx.path)
	}
	return node.InnerText(), nil
}

// Strings returns every value matching the expression, in document
// order.
func (fx *Fixture) Strings(expr string) ([]string, error) {
	nodes, err := jsonquery.QueryAll(fx.doc, expr)
	if err != nil {
		return nil, fmt.Errorf("bad data expression %q: %v", expr, err)
	}
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.InnerText()
	}
	return out, nil
}

// Resolve turns a step argument into its final text. Arguments
// starting with "$." are treated as a path into the data file, e.g.
// "$.credentials.username"; anything else goes through Expand.
func (fx *Fixture) Resolve(s string) (string, error) {
	if !strings.HasPrefix(s, "$.") {
		return fx.Expand(s)
	}
	if fx == nil {
		return "", fmt.Errorf("step references data but the check has no data file: %s", s)
	}
	expr := "/" + strings.ReplaceAll(strings.TrimPrefix(s, "$."), ".", "/")
	return fx.Lookup(expr)
}

var placeholder = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Expand replaces {{ expr }} references in s with the values they
// point at. A reference that resolves to nothing is an error: a check
// must never silently type a literal placeholder into a form. Calling
// Expand on a nil Fixture passes plain strings through and fails on
// any reference.
func (fx *Fixture) Expand(s string) (string, error) {
	if fx == nil {
		if placeholder.MatchString(s) {
			return "", fmt.Errorf("step references data but the check has no data file: %s", s)
		}
		return s, nil
	}
	var firstErr error
	out := placeholder.ReplaceAllStringFunc(s, func(m string) string {
		expr := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(m, "{{"), "}}"))
		v, err := fx.Lookup(expr)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return m
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
