package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSummarize(t *testing.T) {
	results := []Result{
		{Check: "login", Status: StatusPassed, DurationMS: 1200},
		{Check: "search", Status: StatusFailed, DurationMS: 800},
		{Check: "checkout", Status: StatusPassed, DurationMS: 500},
		{Check: "broken", Status: StatusError, DurationMS: 10},
	}
	s := Summarize(results)
	if s.Total != 4 || s.Passed != 2 || s.Failed != 1 || s.Errors != 1 {
		t.Errorf("Summarize() = %+v; want 4 total, 2 passed, 1 failed, 1 error", s)
	}
	if s.DurationMS != 2510 {
		t.Errorf("DurationMS = %d; want 2510", s.DurationMS)
	}
}

func feed(results ...Result) chan Result {
	ch := make(chan Result, len(results))
	for _, r := range results {
		ch <- r
	}
	close(ch)
	return ch
}

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	fw := NewFileWriter(&WriterConfig{Type: FILE_WRITER_TYPE, FilePath: path})

	fw.Write(feed(
		Result{Check: "login", Status: StatusPassed, Steps: 4, DurationMS: 900},
		Result{Check: "search", Status: StatusFailed, Steps: 2, DurationMS: 400, Error: `element css=#q not found, page has <input name="q">`},
	))

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report file not written: %v", err)
	}
	var got []Result
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("report file is not valid json: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("report holds %d results; want 2", len(got))
	}
	if got[0].Check != "login" || got[0].Status != StatusPassed {
		t.Errorf("first result = %+v; want the login pass", got[0])
	}
	if !strings.Contains(string(raw), `<input name="q">`) {
		t.Error("angle brackets in error messages were escaped")
	}
}

func TestStdoutWriterRendersTable(t *testing.T) {
	var buf bytes.Buffer
	w := NewStdoutWriter(&WriterConfig{Type: STDOUT_WRITER_TYPE})
	w.out = &buf

	w.Write(feed(
		Result{Check: "login", Status: StatusPassed, Steps: 4, DurationMS: 900},
		Result{Check: "search", Status: StatusFailed, Steps: 2, DurationMS: 400, Error: "element css=#q not found"},
	))
	w.WriteSummary(Summarize([]Result{
		{Status: StatusPassed, DurationMS: 900},
		{Status: StatusFailed, DurationMS: 400},
	}))

	out := buf.String()
	for _, want := range []string{"login", "search", StatusPassed, StatusFailed, "1/2 checks passed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
}
