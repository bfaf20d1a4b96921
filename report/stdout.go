package report

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/AngHelll/AutomationFrameworkP/utils"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
)

// StdoutWriter renders the run as a colored table on stdout.
type StdoutWriter struct {
	out    io.Writer
	logger *slog.Logger
}

// NewStdoutWriter returns a new StdoutWriter
func NewStdoutWriter(wc *WriterConfig) *StdoutWriter {
	return &StdoutWriter{
		out:    os.Stdout,
		logger: slog.With(slog.String("writer", STDOUT_WRITER_TYPE)),
	}
}

func (w *StdoutWriter) Write(results chan Result) {
	all := []Result{}
	for r := range results {
		all = append(all, r)
	}

	table := tablewriter.NewTable(w.out)
	table.Header([]string{"CHECK", "STATUS", "STEPS", "DURATION", "DETAIL"})
	for _, r := range all {
		status := r.Status
		switch r.Status {
		case StatusPassed:
			status = colorGreen + r.Status + colorReset
		case StatusFailed:
			status = colorRed + r.Status + colorReset
		case StatusError:
			status = colorYellow + r.Status + colorReset
		}
		table.Append([]string{
			r.Check,
			status,
			strconv.Itoa(r.Steps),
			r.Elapsed().String(),
			utils.ShortenString(r.Error, 60),
		})
	}
	if err := table.Render(); err != nil {
		w.logger.Error(fmt.Sprintf("error while rendering result table: %v", err))
	}
}

func (w *StdoutWriter) WriteSummary(summary Summary) {
	passed := colorGreen
	if summary.Passed < summary.Total {
		passed = colorRed
	}
	fmt.Fprintf(w.out, "\n%s%d/%d checks passed%s (%d failed, %d errors) in %s\n",
		passed, summary.Passed, summary.Total, colorReset,
		summary.Failed, summary.Errors,
		(Result{DurationMS: summary.DurationMS}).Elapsed())
}
