// Package report provides the interface and configuration for writers
// that render run results.
package report

import "time"

const (
	// StatusPassed means every step of the check succeeded.
	StatusPassed = "passed"
	// StatusFailed means a step failed after the engine ran out of
	// patience with it.
	StatusFailed = "failed"
	// StatusError means the check never properly ran, e.g. the browser
	// session could not be created.
	StatusError = "error"
)

// Result is the outcome of one check run by one worker.
type Result struct {
	Check      string `json:"check"`
	URL        string `json:"url,omitempty"`
	Session    string `json:"session,omitempty"`
	Status     string `json:"status"`
	Steps      int    `json:"steps"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Elapsed returns the duration the result records.
func (r Result) Elapsed() time.Duration {
	return time.Duration(r.DurationMS) * time.Millisecond
}

// Summary aggregates a whole run.
type Summary struct {
	Total      int   `json:"total"`
	Passed     int   `json:"passed"`
	Failed     int   `json:"failed"`
	Errors     int   `json:"errors"`
	DurationMS int64 `json:"duration_ms"`
}

// Summarize folds results into run totals.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		default:
			s.Errors++
		}
		s.DurationMS += r.DurationMS
	}
	return s
}

// Writer defines the interface for all writers that are responsible
// for writing run results to a specific output.
type Writer interface {
	// If a writer encounters a fatal error it should call log.Fatalf
	// to prevent the run from uselessly continuing.
	Write(results chan Result)
	WriteSummary(summary Summary)
}

// WriterConfig defines the necessary parameters to make a new writer
// which is responsible for writing run results to a specific output,
// eg. stdout.
type WriterConfig struct {
	Type     string `yaml:"type" env:"WRITER_TYPE"`
	FilePath string `yaml:"filepath" env:"WRITER_FILEPATH"`
}

const (
	STDOUT_WRITER_TYPE = "stdout"
	FILE_WRITER_TYPE   = "file"
)
