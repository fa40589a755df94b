package phone

import (
	"fmt"

	"github.com/nyaruka/phonenumbers"
)

// Normalize parses a raw cell number against the default region and returns
// its E.164 form. Text queue entries only ever carry E.164 numbers.
func Normalize(raw, region string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("empty number")
	}

	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", fmt.Errorf("failed to parse number: %w", err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("invalid number for region %s", region)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// IsTextable reports whether the number can plausibly receive SMS (mobile or
// fixed-line-or-mobile; US numbers are indistinguishable).
func IsTextable(raw, region string) bool {
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return false
	}
	switch phonenumbers.GetNumberType(num) {
	case phonenumbers.MOBILE, phonenumbers.FIXED_LINE_OR_MOBILE:
		return true
	}
	return false
}
