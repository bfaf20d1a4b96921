// Package diagnostic captures failure artifacts: a screenshot plus a
// structured record, correlated to the failing operation so a run can
// be inspected after the fact.
package diagnostic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/AngHelll/AutomationFrameworkP/driver"
	"github.com/AngHelll/AutomationFrameworkP/log"
	"github.com/AngHelll/AutomationFrameworkP/utils"
)

// Record is one diagnostic entry. Records are append-only: once
// written they are never mutated.
type Record struct {
	Timestamp      time.Time `json:"timestamp"`
	Session        string    `json:"session"`
	Operation      string    `json:"operation"`
	Context        string    `json:"context,omitempty"`
	Message        string    `json:"message,omitempty"`
	ScreenshotPath string    `json:"screenshot,omitempty"`
	HTMLPath       string    `json:"html,omitempty"`
}

// A Recorder writes diagnostics for exactly one session, so concurrent
// workers never share file names: every artifact and the per-session
// record log carry the session id.
type Recorder struct {
	drv         driver.Driver
	sessionID   string
	dir         string
	captureHTML bool
	seq         int
}

func NewRecorder(drv driver.Driver, sessionID, dir string, captureHTML bool) (*Recorder, error) {
	if dir == "" {
		dir = "diagnostics"
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create diagnostics directory: %v", err)
	}
	return &Recorder{drv: drv, sessionID: sessionID, dir: dir, captureHTML: captureHTML}, nil
}

// Dir returns the sink directory.
func (r *Recorder) Dir() string { return r.dir }

// Capture writes a screenshot and appends a record for a failed
// operation. It is strictly best effort: when the screenshot itself
// cannot be taken (session already dead), the failure is logged and
// the returned record still carries the text context, so a missing
// artifact never masks the original failure.
func (r *Recorder) Capture(ctx context.Context, operation, contextText string, cause error) Record {
	logger := log.LoggerFromContext(ctx)
	r.seq++
	ts := time.Now()
	rec := Record{
		Timestamp: ts,
		Session:   r.sessionID,
		Operation: operation,
		Context:   contextText,
	}
	if cause != nil {
		rec.Message = cause.Error()
	}

	// nanosecond resolution: the counter alone is only unique per
	// recorder, and one session may see more than one of those
	stamp := fmt.Sprintf("%s_%04d", ts.Format("20060102_150405.000000000"), r.seq)
	base := fmt.Sprintf("%s_%s_%s", r.sessionID, utils.SanitizeName(operation), stamp)

	if shot, err := r.drv.Screenshot(ctx, r.sessionID); err != nil {
		logger.Warn("screenshot capture failed",
			slog.String("session", r.sessionID),
			slog.String("operation", operation),
			slog.String("err", err.Error()))
	} else {
		p := filepath.Join(r.dir, base+".png")
		if err := os.WriteFile(p, shot, 0644); err != nil {
			logger.Warn("failed to write screenshot", slog.String("file", p), slog.String("err", err.Error()))
		} else {
			rec.ScreenshotPath = p
		}
	}

	if r.captureHTML {
		if src, err := r.drv.PageSource(ctx, r.sessionID); err != nil {
			logger.Warn("page source capture failed",
				slog.String("session", r.sessionID),
				slog.String("err", err.Error()))
		} else {
			p := filepath.Join(r.dir, base+".html")
			if err := os.WriteFile(p, []byte(SanitizeHTML(src)), 0644); err != nil {
				logger.Warn("failed to write page snapshot", slog.String("file", p), slog.String("err", err.Error()))
			} else {
				rec.HTMLPath = p
			}
		}
	}

	if err := r.append(rec); err != nil {
		logger.Warn("failed to append diagnostic record", slog.String("err", err.Error()))
	}

	logger.Error("diagnostic captured",
		slog.String("session", rec.Session),
		slog.String("operation", rec.Operation),
		slog.String("context", rec.Context),
		slog.String("message", rec.Message),
		slog.String("screenshot", rec.ScreenshotPath))
	return rec
}

// Snapshot writes a screenshot outside the failure flow, used for
// optional action tracing. No record is appended, so trace images
// never inflate the failure count. Returns the file path, or "" when
// the capture failed.
func (r *Recorder) Snapshot(ctx context.Context, label string) string {
	shot, err := r.drv.Screenshot(ctx, r.sessionID)
	if err != nil {
		log.LoggerFromContext(ctx).Debug("trace screenshot failed",
			slog.String("session", r.sessionID),
			slog.String("err", err.Error()))
		return ""
	}
	r.seq++
	stamp := fmt.Sprintf("%s_%04d", time.Now().Format("20060102_150405.000000000"), r.seq)
	p := filepath.Join(r.dir, fmt.Sprintf("trace_%s_%s_%s.png", r.sessionID, utils.SanitizeName(label), stamp))
	if err := os.WriteFile(p, shot, 0644); err != nil {
		log.LoggerFromContext(ctx).Debug("failed to write trace screenshot", slog.String("file", p), slog.String("err", err.Error()))
		return ""
	}
	return p
}

// append adds the record to the session's log, one JSON object per
// line.
func (r *Recorder) append(rec Record) error {
	p := filepath.Join(r.dir, r.sessionID+".jsonl")
	f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return enc.Encode(rec)
}

// ReadRecords loads every record found in dir, across all sessions.
func ReadRecords(dir string) ([]Record, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	var records []Record
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		dec := json.NewDecoder(f)
		for {
			var rec Record
			if err := dec.Decode(&rec); err != nil {
				break
			}
			records = append(records, rec)
		}
		f.Close()
	}
	return records, nil
}

// SanitizeHTML strips script and style payloads from a page snapshot,
// keeping the document structure inspectable.
func SanitizeHTML(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	skip := ""
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			if n := string(name); n == "script" || n == "style" {
				skip = n
			}
			b.Write(z.Raw())
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == skip {
				skip = ""
			}
			b.Write(z.Raw())
		case html.TextToken:
			if skip == "" {
				b.Write(z.Raw())
			}
		default:
			b.Write(z.Raw())
		}
	}
}
