package types

import (
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/rxtech-lab/argo-smartorder/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ValuePrecision is the number of decimal places a resolved relative Value is rounded to.
const ValuePrecision = 8

var hundred = decimal.NewFromInt(100)

// ValueKind tells whether a Value is an absolute quantity or a percentage.
type ValueKind int

const (
	ValueAbsolute ValueKind = iota
	ValueRelative
)

// Value is either an absolute quantity or a percentage of a reference quantity.
// A trailing '%' in the textual form marks it relative. Values are immutable.
type Value struct {
	magnitude decimal.Decimal
	kind      ValueKind
}

// ParseValue parses "1.5" (absolute) or "-1%" (relative).
func ParseValue(text string) (Value, error) {
	trimmed := strings.TrimSpace(text)
	kind := ValueAbsolute

	if strings.HasSuffix(trimmed, "%") {
		kind = ValueRelative
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "%"))
	}

	if trimmed == "" {
		return Value{}, errors.Newf(errors.ErrCodeInvalidValueFormat, "invalid value %q", text)
	}

	magnitude, err := decimal.NewFromString(trimmed)
	if err != nil {
		return Value{}, errors.Wrapf(errors.ErrCodeInvalidValueFormat, err, "invalid value %q", text)
	}

	return Value{magnitude: magnitude, kind: kind}, nil
}

// MustParseValue is like ParseValue but panics on malformed input.
func MustParseValue(text string) Value {
	v, err := ParseValue(text)
	if err != nil {
		panic(err)
	}

	return v
}

// NewAbsoluteValue returns an absolute Value.
func NewAbsoluteValue(magnitude decimal.Decimal) Value {
	return Value{magnitude: magnitude, kind: ValueAbsolute}
}

// NewRelativeValue returns a percentage Value.
func NewRelativeValue(percent decimal.Decimal) Value {
	return Value{magnitude: percent, kind: ValueRelative}
}

func (v Value) Kind() ValueKind {
	return v.kind
}

func (v Value) IsAbsolute() bool {
	return v.kind == ValueAbsolute
}

func (v Value) IsRelative() bool {
	return v.kind == ValueRelative
}

// Magnitude returns the number as written, without the percent sign.
func (v Value) Magnitude() decimal.Decimal {
	return v.magnitude
}

// IsZero reports whether the magnitude is zero, whatever the kind.
func (v Value) IsZero() bool {
	return v.magnitude.IsZero()
}

// Resolve returns the absolute number this Value denotes for the given reference.
func (v Value) Resolve(reference decimal.Decimal) decimal.Decimal {
	if v.IsAbsolute() {
		return v.magnitude
	}

	return reference.Mul(v.magnitude).Div(hundred).Round(ValuePrecision)
}

// ApplyTo resolves a price expressed either absolutely or as an offset from the
// reference: "-1%" applied to 100 is 99.
func (v Value) ApplyTo(reference decimal.Decimal) decimal.Decimal {
	if v.IsAbsolute() {
		return v.magnitude
	}

	return reference.Add(v.Resolve(reference)).Round(ValuePrecision)
}

// Equal compares kind and numeric magnitude.
func (v Value) Equal(other Value) bool {
	return v.kind == other.kind && v.magnitude.Equal(other.magnitude)
}

// String renders relative values with two decimals and a percent sign,
// absolute values with eight decimals.
func (v Value) String() string {
	if v.IsRelative() {
		return v.magnitude.StringFixed(2) + "%"
	}

	return v.magnitude.StringFixed(ValuePrecision)
}

// MarshalText implements encoding.TextMarshaler.
func (v Value) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Value) UnmarshalText(text []byte) error {
	parsed, err := ParseValue(string(text))
	if err != nil {
		return err
	}

	*v = parsed

	return nil
}

// UnmarshalJSON accepts both JSON strings ("5%") and bare numbers (5).
func (v *Value) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		var number json.Number
		if numErr := json.Unmarshal(data, &number); numErr != nil {
			return errors.Wrapf(errors.ErrCodeInvalidValueFormat, err, "invalid value %s", string(data))
		}

		text = number.String()
	}

	return v.UnmarshalText([]byte(text))
}

// UnmarshalYAML accepts any scalar node.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.Newf(errors.ErrCodeInvalidValueFormat, "value must be a scalar, line %d", node.Line)
	}

	return v.UnmarshalText([]byte(node.Value))
}

// JSONSchema describes the textual form of a Value for config schemas.
func (Value) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     `^\s*[-+]?[0-9]*\.?[0-9]+\s*%?\s*$`,
		Description: "Absolute number, or a percentage when suffixed with %",
	}
}
