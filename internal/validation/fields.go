package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the declared type of a form field.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "string"
	}
}

// Value is a typed scalar produced by validation.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Str   string
}

// IntValue wraps an integer.
func IntValue(v int64) Value { return Value{Kind: KindInt, Int: v} }

// FloatValue wraps a float.
func FloatValue(v float64) Value { return Value{Kind: KindFloat, Float: v} }

// StringValue wraps a string.
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }

// String formats the value the way indicator column names spell it.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	default:
		return v.Str
	}
}

// Number returns the numeric value; ok is false for strings.
func (v Value) Number() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// Parse converts s to a value of the given kind. Numbers follow the form
// of Python's int() and float(): '_' may separate digits, float accepts
// inf and nan, and a float too large for float64 becomes ±Inf.
func Parse(kind Kind, s string) (Value, error) {
	switch kind {
	case KindInt:
		digits, err := stripDigitSeparators(s)
		if err != nil {
			return Value{}, err
		}
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return Value{}, err
		}
		return IntValue(n), nil
	case KindFloat:
		digits, err := stripDigitSeparators(s)
		if err != nil {
			return Value{}, err
		}
		// strconv also reads Go hex floats such as 0x1p3
		if strings.ContainsAny(digits, "xXpP") {
			return Value{}, fmt.Errorf("invalid float %q", s)
		}
		f, err := strconv.ParseFloat(digits, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return Value{}, err
		}
		return FloatValue(f), nil
	default:
		return StringValue(s), nil
	}
}

// stripDigitSeparators drops underscores that sit between two digits and
// rejects any other underscore.
func stripDigitSeparators(s string) (string, error) {
	if !strings.Contains(s, "_") {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '_' {
			b.WriteByte(s[i])
			continue
		}
		if i == 0 || i == len(s)-1 || !isDigit(s[i-1]) || !isDigit(s[i+1]) {
			return "", fmt.Errorf("misplaced digit separator in %q", s)
		}
	}
	return b.String(), nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Field describes one form input.
type Field struct {
	Name     string
	Kind     Kind
	Default  Value
	Required bool
}

func intField(name string, required bool) Field {
	return Field{Name: name, Kind: KindInt, Default: IntValue(0), Required: required}
}

func floatField(name string, required bool) Field {
	return Field{Name: name, Kind: KindFloat, Default: FloatValue(0), Required: required}
}

func stringField(name string) Field {
	return Field{Name: name, Kind: KindString, Default: StringValue(""), Required: true}
}

// fields is the fixed customer schema. Order determines error order.
var fields = []Field{
	intField("SeniorCitizen", false),
	floatField("MonthlyCharges", true),
	floatField("TotalCharges", true),
	intField("tenure", true),
	stringField("gender"),
	stringField("Partner"),
	stringField("Dependents"),
	stringField("PhoneService"),
	stringField("MultipleLines"),
	stringField("InternetService"),
	stringField("OnlineSecurity"),
	stringField("OnlineBackup"),
	stringField("DeviceProtection"),
	stringField("TechSupport"),
	stringField("StreamingTV"),
	stringField("StreamingMovies"),
	stringField("Contract"),
	stringField("PaperlessBilling"),
	stringField("PaymentMethod"),
}

var fieldIndex = func() map[string]Field {
	m := make(map[string]Field, len(fields))
	for _, f := range fields {
		m[f.Name] = f
	}
	return m
}()

// Fields returns a copy of the field definitions in declaration order.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// Lookup returns the definition of a named field.
func Lookup(name string) (Field, bool) {
	f, ok := fieldIndex[name]
	return f, ok
}

// Record maps every field name to its validated value.
type Record map[string]Value

// FieldError describes one rejected field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Message
}

// Check trims, checks and coerces raw form input. The returned record
// always holds every field; bad or missing values are replaced by defaults
// and described in the returned errors, in schema order.
func Check(raw map[string]string) (Record, []FieldError) {
	record := make(Record, len(fields))
	var errs []FieldError

	for _, f := range fields {
		value := strings.TrimSpace(raw[f.Name])

		if value == "" {
			if f.Required {
				errs = append(errs, FieldError{Field: f.Name, Message: f.Name + " is required"})
			}
			record[f.Name] = f.Default
			continue
		}

		v, err := Parse(f.Kind, value)
		if err != nil {
			errs = append(errs, FieldError{Field: f.Name, Message: "Invalid value for " + f.Name})
			record[f.Name] = f.Default
			continue
		}
		record[f.Name] = v
	}

	return record, errs
}

// Validate is Check with the errors flattened to their messages.
func Validate(raw map[string]string) (Record, []string) {
	record, errs := Check(raw)
	return record, Messages(errs)
}

// Messages returns the message of every error, in order.
func Messages(errs []FieldError) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Message
	}
	return out
}
