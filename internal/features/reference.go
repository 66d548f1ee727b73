package features

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"churn-predictor/internal/validation"
)

// CategoricalColumns are expanded into indicator columns, in expansion order.
var CategoricalColumns = []string{
	"gender", "SeniorCitizen", "Partner", "Dependents", "PhoneService",
	"MultipleLines", "InternetService", "OnlineSecurity", "OnlineBackup",
	"DeviceProtection", "TechSupport", "StreamingTV", "StreamingMovies",
	"Contract", "PaperlessBilling", "PaymentMethod", TenureGroupColumn,
}

var categorical = func() map[string]bool {
	m := make(map[string]bool, len(CategoricalColumns))
	for _, c := range CategoricalColumns {
		m[c] = true
	}
	return m
}()

// IsCategorical reports whether column is expanded into indicators.
func IsCategorical(column string) bool {
	return categorical[column]
}

// Reference is the baseline customer table. It is read once and never
// modified afterwards, so it can be shared between requests.
type Reference struct {
	columns []string
	rows    int
	vocab   map[string]map[string]struct{}
}

// LoadReference reads a reference table from a CSV file with a header row.
func LoadReference(path string) (*Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference data: %w", err)
	}
	defer f.Close()

	ref, err := ReadReference(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ref, nil
}

// ReadReference parses a reference table. Every categorical column must be
// present, and tenure must be present to derive tenure groups.
func ReadReference(r io.Reader) (*Reference, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("reference data is empty")
		}
		return nil, fmt.Errorf("failed to read reference header: %w", err)
	}

	ref := &Reference{
		columns: make([]string, len(header)),
		vocab:   make(map[string]map[string]struct{}, len(CategoricalColumns)),
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		ref.columns[i] = name
		index[name] = i
	}

	for _, c := range CategoricalColumns {
		if c == TenureGroupColumn {
			continue
		}
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("reference data is missing column %q", c)
		}
		ref.vocab[c] = make(map[string]struct{})
	}
	tenureIdx, ok := index["tenure"]
	if !ok {
		return nil, errors.New(`reference data is missing column "tenure"`)
	}
	ref.vocab[TenureGroupColumn] = make(map[string]struct{})

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read reference row %d: %w", ref.rows+1, err)
		}

		for c, seen := range ref.vocab {
			if c == TenureGroupColumn {
				continue
			}
			seen[normalize(c, row[index[c]])] = struct{}{}
		}

		if v, err := validation.Parse(validation.KindInt, strings.TrimSpace(row[tenureIdx])); err == nil {
			if g, ok := TenureGroup(v.Int); ok {
				ref.vocab[TenureGroupColumn][g] = struct{}{}
			}
		}
		ref.rows++
	}

	return ref, nil
}

// normalize spells a reference cell the way a validated value of the same
// field is spelled, so vocabularies compare equal.
func normalize(column, cell string) string {
	f, ok := validation.Lookup(column)
	if !ok {
		return cell
	}
	v, err := validation.Parse(f.Kind, strings.TrimSpace(cell))
	if err != nil {
		return cell
	}
	return v.String()
}

// Len returns the number of data rows.
func (r *Reference) Len() int {
	return r.rows
}

// Columns returns the header in file order.
func (r *Reference) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// HasColumn reports whether the reference table has the named column.
func (r *Reference) HasColumn(name string) bool {
	for _, c := range r.columns {
		if c == name {
			return true
		}
	}
	return false
}

// Known reports whether value was observed in a categorical column.
func (r *Reference) Known(column, value string) bool {
	_, ok := r.vocab[column][value]
	return ok
}

// Vocabulary returns the sorted distinct values of a categorical column.
func (r *Reference) Vocabulary(column string) []string {
	seen := r.vocab[column]
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
