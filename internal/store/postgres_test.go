package store

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDecimal(t *testing.T) {
	d, err := parseDecimal("110.50", "average_cost")
	if err != nil {
		t.Fatalf("parseDecimal: %v", err)
	}
	if !d.Equal(decimal.NewFromFloat(110.5)) {
		t.Errorf("parsed %s, want 110.5", d)
	}
}

func TestParseDecimal_CorruptValue(t *testing.T) {
	for _, s := range []string{"", "abc", "1.2.3"} {
		_, err := parseDecimal(s, "last_trade_price")
		if err == nil {
			t.Errorf("parseDecimal(%q) = nil error, want parse failure", s)
			continue
		}
		// The column name must survive into the error for diagnosability.
		if !strings.Contains(err.Error(), "last_trade_price") {
			t.Errorf("error %q does not name the column", err)
		}
	}
}
