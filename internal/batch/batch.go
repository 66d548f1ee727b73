// Package batch reads customer rows from CSV and writes scored results back.
package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"churn-predictor/internal/models"
	"churn-predictor/internal/service"
	"churn-predictor/internal/validation"
)

// ReadRows parses a CSV whose header names schema fields. Unknown columns
// are ignored, missing ones arrive blank and are reported by validation.
func ReadRows(r io.Reader) ([]models.Fields, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("input is empty")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int)
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, ok := validation.Lookup(name); ok {
			index[name] = i
		}
	}
	if len(index) == 0 {
		return nil, errors.New("header names no known fields")
	}

	var rows []models.Fields
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(rows)+1, err)
		}

		row := make(models.Fields, len(index))
		for name, i := range index {
			row[name] = record[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteOutcomes writes one result line per outcome, in input order.
func WriteOutcomes(w io.Writer, outcomes []*service.Outcome) error {
	writer := csv.NewWriter(w)

	writer.Write([]string{"row", "id", "label", "churn", "confidence", "errors", "warnings"})
	for i, o := range outcomes {
		confidence := ""
		if !o.Rejected() {
			confidence = strconv.FormatFloat(o.Confidence, 'f', 2, 64)
		}
		writer.Write([]string{
			strconv.Itoa(i + 1),
			o.ID,
			o.Label,
			strconv.FormatBool(o.Churn),
			confidence,
			strings.Join(o.Errors, "; "),
			strings.Join(o.Warnings, "; "),
		})
	}

	writer.Flush()
	return writer.Error()
}
