// Package instrument validates instrument symbols before they enter the
// execution engine. Symbols follow the exchange convention: 1-12 uppercase
// letters or digits, optionally with an exchange suffix like "TCS.NS".
package instrument

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidSymbol is returned for a symbol that does not match the
// accepted format.
var ErrInvalidSymbol = errors.New("instrument: invalid symbol")

var symbolRegex = regexp.MustCompile(`^[A-Z0-9]{1,12}(\.[A-Z]{1,4})?$`)

// Validate checks an instrument symbol. Lowercase, whitespace, and empty
// strings are rejected; callers normalize before submitting.
func Validate(symbol string) error {
	if !symbolRegex.MatchString(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return nil
}
