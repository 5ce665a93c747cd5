package mocks

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"
)

type decimalMatcher struct {
	expected decimal.Decimal
}

// DecimalEq matches a decimal.Decimal by numeric value, ignoring its exponent.
func DecimalEq(expected string) gomock.Matcher {
	return decimalMatcher{expected: decimal.RequireFromString(expected)}
}

func (m decimalMatcher) Matches(x any) bool {
	d, ok := x.(decimal.Decimal)

	return ok && d.Equal(m.expected)
}

func (m decimalMatcher) String() string {
	return fmt.Sprintf("is decimal %s", m.expected)
}
