// Package numbering computes legal-deposit identifiers (ISBN, ISMN, ISSN)
// from a reserved or shared range. It is pure: callers persist the result.
//
// A range is anchored at its start bound; issuable values run from
// start+1 through end inclusive, so a range holds end-start identifiers.
package numbering

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bnrm/libadmin/internal/model"
)

// ErrLayout is returned when a range bound does not match its number type.
var ErrLayout = errors.New("malformed range bound")

// ErrCustomFormat is returned when a manual identifier fails the format check.
var ErrCustomFormat = errors.New("identifier does not match the expected format")

var (
	issnPattern = regexp.MustCompile(`^\d{4}-\d{3}[\dXx]$`)
	isbnPattern = regexp.MustCompile(`^\d{3}-\d{1,5}-\d{1,7}-\d{1,6}-\d$`)
)

// Bounds is a parsed range: the numeric interval plus what is needed to
// format a sequence number back into an identifier.
type Bounds struct {
	Type  model.NumberType
	Start int
	End   int

	prefix string // ISBN/ISMN: first three groups
	width  int    // ISSN: digit count
}

// ParseBounds parses the start and end labels of a range.
func ParseBounds(t model.NumberType, start, end string) (Bounds, error) {
	b := Bounds{Type: t}

	switch t {
	case model.NumberISBN, model.NumberISMN:
		sp, ss, err := splitISBN(start)
		if err != nil {
			return Bounds{}, err
		}
		ep, es, err := splitISBN(end)
		if err != nil {
			return Bounds{}, err
		}
		if sp != ep {
			return Bounds{}, fmt.Errorf("%w: %q and %q have different prefixes", ErrLayout, start, end)
		}
		b.prefix, b.Start, b.End = sp, ss, es

	case model.NumberISSN:
		sw, sn, err := splitISSN(start)
		if err != nil {
			return Bounds{}, err
		}
		ew, en, err := splitISSN(end)
		if err != nil {
			return Bounds{}, err
		}
		if sw != ew {
			return Bounds{}, fmt.Errorf("%w: %q and %q have different widths", ErrLayout, start, end)
		}
		b.width, b.Start, b.End = sw, sn, en

	default:
		return Bounds{}, fmt.Errorf("%w: unknown number type %q", ErrLayout, t)
	}

	if b.End <= b.Start {
		return Bounds{}, fmt.Errorf("%w: end %q must be after start %q", ErrLayout, end, start)
	}
	return b, nil
}

// splitISBN parses "PPP-GGGG-RRR-SS" with an optional trailing check group.
func splitISBN(s string) (prefix string, seq int, err error) {
	groups := strings.Split(s, "-")
	if len(groups) != 4 && len(groups) != 5 {
		return "", 0, fmt.Errorf("%w: %q", ErrLayout, s)
	}
	digits := 0
	for _, g := range groups[:4] {
		if g == "" || !allDigits(g) {
			return "", 0, fmt.Errorf("%w: %q", ErrLayout, s)
		}
		digits += len(g)
	}
	if len(groups[3]) != 2 || digits != 12 {
		return "", 0, fmt.Errorf("%w: %q needs 12 digits ending in a 2-digit sequence", ErrLayout, s)
	}
	seq, _ = strconv.Atoi(groups[3])
	return strings.Join(groups[:3], "-"), seq, nil
}

func splitISSN(s string) (width, n int, err error) {
	digits := strings.ReplaceAll(s, "-", "")
	if len(digits) <= 4 || len(digits) > 8 || !allDigits(digits) {
		return 0, 0, fmt.Errorf("%w: %q", ErrLayout, s)
	}
	n, _ = strconv.Atoi(digits)
	return len(digits), n, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Total is the number of identifiers the range can issue.
func (b Bounds) Total() int {
	return b.End - b.Start
}

// Format renders sequence n as an identifier of the range's type.
func (b Bounds) Format(n int) string {
	if b.Type == model.NumberISSN {
		digits := fmt.Sprintf("%0*d", b.width, n)
		return digits[:4] + "-" + digits[4:]
	}
	seq := fmt.Sprintf("%02d", n)
	check, _ := CheckDigit(strings.ReplaceAll(b.prefix, "-", "") + seq)
	return fmt.Sprintf("%s-%s-%d", b.prefix, seq, check)
}

// Parse returns the sequence number of an identifier issued by this range.
func (b Bounds) Parse(value string) (int, bool) {
	if b.Type == model.NumberISSN {
		w, n, err := splitISSN(value)
		if err != nil || w != b.width {
			return 0, false
		}
		return n, true
	}
	p, seq, err := splitISBN(value)
	if err != nil || p != b.prefix {
		return 0, false
	}
	return seq, true
}

// CheckDigit computes the simplified ISBN-13 check digit of 12 digits:
// weights alternate 1 and 3, check = (10 - sum mod 10) mod 10.
func CheckDigit(digits string) (int, error) {
	if len(digits) != 12 || !allDigits(digits) {
		return 0, fmt.Errorf("check digit needs 12 digits, got %q", digits)
	}
	sum := 0
	for i, r := range digits {
		d := int(r - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return (10 - sum%10) % 10, nil
}

// Candidates returns up to limit unused identifiers of r in ascending
// order. An exhausted range yields an empty, non-nil slice.
func Candidates(r *model.NumberRange, limit int) ([]string, error) {
	b, err := ParseBounds(r.NumberType, r.RangeStart, r.RangeEnd)
	if err != nil {
		return nil, err
	}
	return b.free(r, b.Start, limit), nil
}

// Next returns the first unused identifier of a reserved range.
func Next(r *model.NumberRange) (string, bool, error) {
	c, err := Candidates(r, 1)
	if err != nil || len(c) == 0 {
		return "", false, err
	}
	return c[0], true, nil
}

// NextSequential returns the first unused identifier strictly after the
// range's current position. It never wraps around.
func NextSequential(r *model.NumberRange) (string, bool, error) {
	b, err := ParseBounds(r.NumberType, r.RangeStart, r.RangeEnd)
	if err != nil {
		return "", false, err
	}
	after := b.Start
	if r.CurrentPosition != "" {
		n, ok := b.Parse(r.CurrentPosition)
		if !ok {
			return "", false, fmt.Errorf("%w: current position %q", ErrLayout, r.CurrentPosition)
		}
		after = n
	}
	c := b.free(r, after, 1)
	if len(c) == 0 {
		return "", false, nil
	}
	return c[0], true, nil
}

func (b Bounds) free(r *model.NumberRange, after, limit int) []string {
	out := []string{}
	if r.IsExhausted() || limit <= 0 {
		return out
	}
	used := make(map[string]struct{}, len(r.UsedNumbersList))
	for _, u := range r.UsedNumbersList {
		used[u] = struct{}{}
	}
	for n := after + 1; n <= b.End && len(out) < limit; n++ {
		v := b.Format(n)
		if _, taken := used[v]; !taken {
			out = append(out, v)
		}
	}
	return out
}

// ValidateCustom checks the format of a manually entered identifier.
func ValidateCustom(t model.NumberType, value string) error {
	switch t {
	case model.NumberISSN:
		if issnPattern.MatchString(value) {
			return nil
		}
	case model.NumberISBN, model.NumberISMN:
		if isbnPattern.MatchString(value) && len(strings.ReplaceAll(value, "-", "")) == 13 {
			return nil
		}
	}
	return fmt.Errorf("%w: %q is not a valid %s", ErrCustomFormat, value, t)
}

// InRange reports whether value lies lexically between the first and the
// last identifier the range can format.
func InRange(r *model.NumberRange, value string) (bool, error) {
	b, err := ParseBounds(r.NumberType, r.RangeStart, r.RangeEnd)
	if err != nil {
		return false, err
	}
	return value >= b.Format(b.Start) && value <= b.Format(b.End), nil
}
