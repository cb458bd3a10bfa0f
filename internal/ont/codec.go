// Package ont implements provenance and access-control propagation for
// Oxford Nanopore sequencing results: it maps warehouse run records for
// one (experiment, instrument position) onto storage targets and applies
// the derived metadata and grants idempotently.
package ont

import (
	"fmt"
	"regexp"
	"strconv"
)

// tagIdentifierRegex matches the barcode ordinal encoded as a trailing
// numeric suffix of a warehouse tag identifier, e.g. "ONT_EXP-012-07".
var tagIdentifierRegex = regexp.MustCompile(`-(\d+)$`)

// InvalidIdentifierError reports a tag identifier without the expected
// trailing numeric suffix. It is fatal for the record carrying the
// identifier, not for sibling records.
type InvalidIdentifierError struct {
	Identifier string
}

func (e InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid tag identifier %q: expected a value matching %s", e.Identifier, tagIdentifierRegex)
}

// TagIndex returns the barcode tag index given a barcode tag identifier.
func TagIndex(identifier string) (int, error) {
	m := tagIdentifierRegex.FindStringSubmatch(identifier)
	if m == nil {
		return 0, InvalidIdentifierError{Identifier: identifier}
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, InvalidIdentifierError{Identifier: identifier}
	}
	return idx, nil
}

// BarcodeName returns the barcode directory name given a barcode tag
// identifier. The name follows the de-plexer convention of zero-padding
// the index to two digits ("barcode01"); indices of three or more
// digits keep their natural width.
func BarcodeName(identifier string) (string, error) {
	m := tagIdentifierRegex.FindStringSubmatch(identifier)
	if m == nil {
		return "", InvalidIdentifierError{Identifier: identifier}
	}
	digits := m[1]
	for len(digits) < 2 {
		digits = "0" + digits
	}
	return "barcode" + digits, nil
}
