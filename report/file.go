package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// FileWriter writes the run results as a JSON report file.
type FileWriter struct {
	writerConfig *WriterConfig
}

// NewFileWriter returns a new FileWriter
func NewFileWriter(wc *WriterConfig) *FileWriter {
	return &FileWriter{
		writerConfig: wc,
	}
}

func (fw *FileWriter) Write(results chan Result) {
	logger := slog.With(slog.String("writer", FILE_WRITER_TYPE))
	f, err := os.Create(fw.writerConfig.FilePath)
	if err != nil {
		logger.Error(fmt.Sprintf("error while trying to open file: %v", err))
		os.Exit(1)
	}
	defer f.Close()
	allResults := []Result{}
	for r := range results {
		allResults = append(allResults, r)
	}

	// json.MarshalIndent would replace angle brackets inside error
	// messages with unicode replacement runes, so encode without
	// escaping and indent afterwards.
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(allResults); err != nil {
		logger.Error(fmt.Sprintf("error while encoding results: %v", err))
		return
	}

	var indentBuffer bytes.Buffer
	if err := json.Indent(&indentBuffer, buffer.Bytes(), "", "  "); err != nil {
		logger.Error(fmt.Sprintf("error while indenting json: %v", err))
		return
	}
	if _, err = f.Write(indentBuffer.Bytes()); err != nil {
		logger.Error(fmt.Sprintf("error while writing json to file: %v", err))
	} else {
		logger.Info(fmt.Sprintf("wrote %d results to file %s", len(allResults), fw.writerConfig.FilePath))
	}
}

func (fw *FileWriter) WriteSummary(summary Summary) {
	slog.With(slog.String("writer", FILE_WRITER_TYPE)).Info(
		fmt.Sprintf("run finished: %d/%d checks passed", summary.Passed, summary.Total))
}
