package domain

import (
	"regexp"
	"strings"
)

// identifierPattern matches the canonical 16-character registry identifier
// formatted as four hyphen-separated groups, e.g. 0000-0002-1825-0097.
// The final character may be X, representing a checksum value of ten.
var identifierPattern = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)

// ValidateIdentifier checks that id is a well-formed registry identifier
// with a valid ISO 7064 mod 11-2 check digit. Returns a ValidationError
// describing the failure, or nil when the identifier is valid.
func ValidateIdentifier(id string) error {
	if id == "" {
		return NewValidationError("identifier", "identifier is required")
	}
	if !identifierPattern.MatchString(id) {
		return NewValidationError("identifier", "identifier must match NNNN-NNNN-NNNN-NNNC format")
	}
	if checksumChar(id) != id[len(id)-1] {
		return NewValidationError("identifier", "identifier checksum mismatch")
	}
	return nil
}

// NormalizeIdentifier strips a registry URL prefix and surrounding
// whitespace, upper-casing a trailing x so callers can accept identifiers
// pasted in any common form. It does not validate the result.
func NormalizeIdentifier(id string) string {
	id = strings.TrimSpace(id)
	for _, prefix := range []string{"https://", "http://"} {
		if rest, ok := strings.CutPrefix(id, prefix); ok {
			if i := strings.LastIndexByte(rest, '/'); i >= 0 {
				rest = rest[i+1:]
			}
			id = rest
			break
		}
	}
	return strings.ToUpper(id)
}

// checksumChar computes the ISO 7064 mod 11-2 check character over the
// first 15 digits of the identifier, skipping hyphens.
func checksumChar(id string) byte {
	total := 0
	for i := 0; i < len(id)-1; i++ {
		c := id[i]
		if c == '-' {
			continue
		}
		total = (total + int(c-'0')) * 2
	}
	result := (12 - total%11) % 11
	if result == 10 {
		return 'X'
	}
	return byte('0' + result)
}
