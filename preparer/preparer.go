// Package preparer converts uploaded files into the canonical
// newline-delimited instruction/input/output dataset consumed by the remote
// training backend.
package preparer

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/llmtuner/llm-tuner-platform/backend/models"
)

// Every record carries the same continuation instruction; the source text is
// split at inputRunes characters into prompt and completion.
const (
	recordInstruction = "Continue the following text:"
	inputRunes        = 100
)

// Text-bearing fields checked on structured records, in priority order.
var textFields = []string{"text", "content", "description"}

// FileContent is one uploaded file: its original name (used for format
// detection by extension) and raw bytes.
type FileContent struct {
	Name string
	Data []byte
}

// Prepare converts the files, in order, into training records. Blank and
// whitespace-only sources are dropped. The result is deterministic for
// byte-identical input.
func Prepare(files []FileContent) []models.TrainingRecord {
	var records []models.TrainingRecord
	for _, f := range files {
		for _, src := range sources(f) {
			if strings.TrimSpace(src) == "" {
				continue
			}
			records = append(records, toRecord(src))
		}
	}
	return records
}

// Encode serializes records as one JSON object per line.
func Encode(records []models.TrainingRecord) []byte {
	var buf bytes.Buffer
	for i, r := range records {
		if i > 0 {
			buf.WriteByte('\n')
		}
		line, _ := json.Marshal(r)
		buf.Write(line)
	}
	return buf.Bytes()
}

// sources extracts the record source strings from one file based on its
// extension. Unrecognized extensions fall back to line-oriented text.
func sources(f FileContent) []string {
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".json":
		if srcs, ok := jsonSources(f.Data); ok {
			return srcs
		}
		// Unparseable JSON is reprocessed as plain text.
		return lineSources(f.Data)
	case ".jsonl":
		return jsonlSources(f.Data)
	case ".csv":
		return csvSources(f.Data)
	default:
		return lineSources(f.Data)
	}
}

func jsonSources(data []byte) ([]string, bool) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	list, ok := v.([]interface{})
	if !ok {
		return []string{stringify(v)}, true
	}
	srcs := make([]string, 0, len(list))
	for _, elem := range list {
		srcs = append(srcs, elementSource(elem))
	}
	return srcs, true
}

func jsonlSources(data []byte) []string {
	var srcs []string
	for _, line := range splitLines(data) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var v interface{}
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			// Keep malformed lines verbatim rather than dropping them.
			srcs = append(srcs, line)
			continue
		}
		srcs = append(srcs, elementSource(v))
	}
	return srcs
}

func csvSources(data []byte) []string {
	lines := splitLines(data)
	if len(lines) == 0 {
		return nil
	}
	// First line is the header.
	var srcs []string
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		srcs = append(srcs, line)
	}
	return srcs
}

func lineSources(data []byte) []string {
	var srcs []string
	for _, line := range splitLines(data) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		srcs = append(srcs, line)
	}
	return srcs
}

// elementSource picks the text-bearing field from a structured record, or
// falls back to the record's JSON representation.
func elementSource(v interface{}) string {
	if m, ok := v.(map[string]interface{}); ok {
		for _, field := range textFields {
			if s, ok := m[field].(string); ok {
				return s
			}
		}
	}
	return stringify(v)
}

// stringify renders a parsed JSON value as record source text. Strings and
// numbers keep their plain representation; composite values keep their JSON
// form.
func stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func splitLines(data []byte) []string {
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}

// toRecord splits a source string at inputRunes characters: the head becomes
// the prompt, the remainder (possibly empty) the completion.
func toRecord(src string) models.TrainingRecord {
	src = strings.TrimSpace(src)
	runes := []rune(src)
	input, output := src, ""
	if len(runes) > inputRunes {
		input = string(runes[:inputRunes])
		output = string(runes[inputRunes:])
	}
	return models.TrainingRecord{
		Instruction: recordInstruction,
		Input:       input,
		Output:      output,
	}
}
