// Package types defines shared types used across the application.
package types

// Step represents a single user interaction within a check
type Step struct {
	Action   string `yaml:"action,omitempty"`
	By       string `yaml:"by,omitempty"`
	Selector string `yaml:"selector,omitempty"`
	Text     string `yaml:"text,omitempty"`
	Timeout  int    `yaml:"timeout,omitempty"`
}

const (
	StepActionClick   = "click"
	StepActionType    = "type"
	StepActionRead    = "read"
	StepActionVisible = "visible"
	StepActionText    = "text"
)

// Check is a named sequence of steps executed against one page.
// Steps whose text starts with "$." are looked up in the check's
// data file before execution.
type Check struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	DataFile string `yaml:"data,omitempty"`
	Steps    []Step `yaml:"steps"`
}
