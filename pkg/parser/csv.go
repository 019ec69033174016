package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ParseWarning represents a non-fatal issue encountered during CSV parsing.
type ParseWarning struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Row is one data row with its values aligned to ParseResult.Headers.
type Row struct {
	Number int      `json:"number"`
	Values []string `json:"values"`
}

// ParseResult contains the parsed rows alongside any warnings.
type ParseResult struct {
	Encoding string         `json:"encoding"`
	Headers  []string       `json:"headers"`
	Rows     []Row          `json:"rows"`
	Warnings []ParseWarning `json:"warnings"`
}

// StreamParse parses CSV bytes. It handles mismatched column counts
// (pad/truncate), empty files, and rows the CSV reader rejects.
func StreamParse(data []byte) (*ParseResult, error) {
	decoded, enc, err := DetectAndDecode(data)
	if err != nil {
		return nil, fmt.Errorf("encoding detection failed: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	// Ragged rows are padded or truncated below.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file: no header row found")
		}
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	headerCount := len(headers)
	result := &ParseResult{Encoding: enc, Headers: headers}
	rowNum := 1 // header is row 1

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNum++

		if err != nil {
			result.Warnings = append(result.Warnings, ParseWarning{
				Row:     rowNum,
				Message: fmt.Sprintf("parse error: %v", err),
			})
			continue
		}

		if isBlank(row) {
			continue
		}

		if len(row) != headerCount {
			if len(row) < headerCount {
				result.Warnings = append(result.Warnings, ParseWarning{
					Row:     rowNum,
					Message: fmt.Sprintf("row has %d columns, expected %d; padding with empty values", len(row), headerCount),
				})
				padded := make([]string, headerCount)
				copy(padded, row)
				row = padded
			} else {
				result.Warnings = append(result.Warnings, ParseWarning{
					Row:     rowNum,
					Message: fmt.Sprintf("row has %d columns, expected %d; truncating extra columns", len(row), headerCount),
				})
				row = row[:headerCount]
			}
		}

		result.Rows = append(result.Rows, Row{Number: rowNum, Values: row})
	}

	if len(result.Rows) == 0 {
		return nil, fmt.Errorf("file contains no data rows")
	}

	return result, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
