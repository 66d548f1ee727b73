package features

import (
	"errors"
	"fmt"
	"strings"

	"churn-predictor/internal/validation"
)

// ErrSchemaMismatch is returned when an expected feature cannot be filled
// from the submitted record.
var ErrSchemaMismatch = errors.New("feature schema mismatch")

type sourceKind int

const (
	sourceZero sourceKind = iota
	sourceRecord
	sourceIndicator
	sourceMissing
)

// source says where one output column takes its value from.
type source struct {
	kind   sourceKind
	column string
	value  string
}

// Assembly is one model-ready row.
type Assembly struct {
	Columns []string
	Values  []float64
	// Unknown lists categorical inputs never seen in the reference data,
	// as "field=value".
	Unknown []string
}

// Assembler aligns validated records with the column layout a model was
// trained on. The layout is the one produced by appending the record to the
// reference table, deriving tenure groups, expanding the categorical columns
// into <column>_<value> indicators, zero-filling absent features and keeping
// only the appended row.
type Assembler struct {
	ref      *Reference
	features []string
	sources  []source
}

// NewAssembler resolves every expected feature against the reference table.
func NewAssembler(ref *Reference, features []string) (*Assembler, error) {
	if ref == nil {
		return nil, errors.New("reference data is required")
	}
	if len(features) == 0 {
		return nil, errors.New("model declares no features")
	}

	a := &Assembler{
		ref:      ref,
		features: make([]string, len(features)),
		sources:  make([]source, len(features)),
	}
	copy(a.features, features)

	for i, name := range a.features {
		a.sources[i] = a.resolve(name)
	}
	return a, nil
}

// resolve follows the column set of the expanded table: pass-through columns
// first, then indicators, and zeros for anything else.
func (a *Assembler) resolve(name string) source {
	if !IsCategorical(name) {
		if _, ok := validation.Lookup(name); ok {
			return source{kind: sourceRecord, column: name}
		}
		if a.ref.HasColumn(name) {
			// present in the reference rows only, so empty in the appended row
			return source{kind: sourceMissing, column: name}
		}
	}

	best := ""
	for _, c := range CategoricalColumns {
		if strings.HasPrefix(name, c+"_") && len(c) > len(best) {
			best = c
		}
	}
	if best != "" {
		return source{kind: sourceIndicator, column: best, value: name[len(best)+1:]}
	}

	return source{kind: sourceZero}
}

// Features returns the expected columns in model order.
func (a *Assembler) Features() []string {
	out := make([]string, len(a.features))
	copy(out, a.features)
	return out
}

// Assemble builds the feature row for one record. The reference data is only
// read, so concurrent calls are safe and repeated calls agree.
func (a *Assembler) Assemble(rec validation.Record) (*Assembly, error) {
	cats := a.categories(rec)

	out := &Assembly{
		Columns: a.Features(),
		Values:  make([]float64, len(a.features)),
		Unknown: a.unknown(cats),
	}

	for i, src := range a.sources {
		switch src.kind {
		case sourceRecord:
			v, ok := rec[src.column]
			if !ok {
				return nil, fmt.Errorf("%w: record has no field %q", ErrSchemaMismatch, src.column)
			}
			n, ok := v.Number()
			if !ok {
				return nil, fmt.Errorf("%w: feature %q is not numeric", ErrSchemaMismatch, src.column)
			}
			out.Values[i] = n
		case sourceIndicator:
			if v, ok := cats[src.column]; ok && v == src.value {
				out.Values[i] = 1
			}
		case sourceMissing:
			return nil, fmt.Errorf("%w: feature %q has no value for a submitted record", ErrSchemaMismatch, src.column)
		}
	}

	return out, nil
}

// categories returns the categorical values of the record keyed by column.
// A tenure outside every bin has no tenure group entry.
func (a *Assembler) categories(rec validation.Record) map[string]string {
	cats := make(map[string]string, len(CategoricalColumns))
	for _, c := range CategoricalColumns {
		if c == TenureGroupColumn {
			continue
		}
		if v, ok := rec[c]; ok {
			cats[c] = v.String()
		}
	}
	if v, ok := rec["tenure"]; ok && v.Kind == validation.KindInt {
		if g, ok := TenureGroup(v.Int); ok {
			cats[TenureGroupColumn] = g
		}
	}
	return cats
}

func (a *Assembler) unknown(cats map[string]string) []string {
	var out []string
	for _, c := range CategoricalColumns {
		if c == TenureGroupColumn {
			continue
		}
		v, ok := cats[c]
		if ok && !a.ref.Known(c, v) {
			out = append(out, c+"="+v)
		}
	}
	return out
}
