package roll

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Width is the number of digits in a roll number, e.g. 2024179001.
const Width = 10

var (
	ErrFormat = errors.New("invalid roll number format")
	ErrRange  = errors.New("invalid roll number range")
)

// Range is an inclusive numeric roll-number range.
type Range struct {
	Start uint64
	End   uint64
}

// ValidFormat reports whether s is exactly Width ASCII digits.
func ValidFormat(s string) bool {
	if len(s) != Width {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Parse converts a well-formed roll number to its numeric value.
func Parse(s string) (uint64, error) {
	if !ValidFormat(s) {
		return 0, ErrFormat
	}
	return strconv.ParseUint(s, 10, 64)
}

// ParseRange parses "start-end" where both ends are valid roll numbers and start <= end.
func ParseRange(s string) (Range, error) {
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return Range{}, fmt.Errorf("%w: expected start-end, got %q", ErrRange, s)
	}
	start, err := Parse(strings.TrimSpace(lo))
	if err != nil {
		return Range{}, fmt.Errorf("%w: bad start %q", ErrRange, strings.TrimSpace(lo))
	}
	end, err := Parse(strings.TrimSpace(hi))
	if err != nil {
		return Range{}, fmt.Errorf("%w: bad end %q", ErrRange, strings.TrimSpace(hi))
	}
	if start > end {
		return Range{}, fmt.Errorf("%w: start after end", ErrRange)
	}
	return Range{Start: start, End: end}, nil
}

// Contains reports whether the roll number r lies within the range.
func (r Range) Contains(roll string) bool {
	n, err := Parse(roll)
	if err != nil {
		return false
	}
	return n >= r.Start && n <= r.End
}

// Size is the number of roll numbers in the range.
func (r Range) Size() int {
	return int(r.End-r.Start) + 1
}

// String renders the range in its canonical zero-padded form.
func (r Range) String() string {
	return fmt.Sprintf("%0*d-%0*d", Width, r.Start, Width, r.End)
}

// Percent returns part/whole*100 rounded to two decimals, 0 when whole is not positive.
func Percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	p := float64(part) / float64(whole) * 100
	return float64(int64(p*100+0.5)) / 100
}
