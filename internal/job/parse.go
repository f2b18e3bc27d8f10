package job

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	errNotPositive = errors.New("must be positive")
	errNegative    = errors.New("must not be negative")
	errDuplicate   = errors.New("listed more than once")
)

// ParseError reports a malformed mode, cutoff or resolution value.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Resolution is a viewport size override in pixels.
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ParseModes parses movement mode identifiers. An empty list yields DefaultModes.
func ParseModes(values []string) ([]int, error) {
	if len(values) == 0 {
		return append([]int(nil), DefaultModes...), nil
	}
	modes := make([]int, 0, len(values))
	seen := make(map[int]bool, len(values))
	for _, v := range values {
		m, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, &ParseError{Field: "mode", Value: v, Err: errors.Unwrap(err)}
		}
		if m < 0 {
			return nil, &ParseError{Field: "mode", Value: v, Err: errNegative}
		}
		if seen[m] {
			return nil, &ParseError{Field: "mode", Value: v, Err: errDuplicate}
		}
		seen[m] = true
		modes = append(modes, m)
	}
	return modes, nil
}

// ParseCutoffs parses energy cutoff values. An empty list yields DefaultCutoffs.
func ParseCutoffs(values []string) ([]float64, error) {
	if len(values) == 0 {
		return append([]float64(nil), DefaultCutoffs...), nil
	}
	cutoffs := make([]float64, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		c, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, &ParseError{Field: "cutoff", Value: v, Err: errors.Unwrap(err)}
		}
		if c <= 0 || math.IsInf(c, 0) || math.IsNaN(c) {
			return nil, &ParseError{Field: "cutoff", Value: v, Err: errNotPositive}
		}
		// Two spellings of the same value would share a run folder.
		label := FormatCutoff(c)
		if seen[label] {
			return nil, &ParseError{Field: "cutoff", Value: v, Err: errDuplicate}
		}
		seen[label] = true
		cutoffs = append(cutoffs, c)
	}
	return cutoffs, nil
}

// ParseResolution parses a WIDTH HEIGHT pair. It accepts the two values as
// separate elements or as a single "WIDTHxHEIGHT" element.
func ParseResolution(values []string) (Resolution, error) {
	raw := strings.Join(values, ",")
	if len(values) == 1 {
		values = strings.FieldsFunc(values[0], func(r rune) bool {
			return r == 'x' || r == 'X' || r == ','
		})
	}
	if len(values) != 2 {
		return Resolution{}, &ParseError{Field: "resolution", Value: raw, Err: errors.New("want WIDTH HEIGHT")}
	}
	var dims [2]int
	for i, v := range values {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Resolution{}, &ParseError{Field: "resolution", Value: raw, Err: errors.Unwrap(err)}
		}
		if n <= 0 {
			return Resolution{}, &ParseError{Field: "resolution", Value: raw, Err: errNotPositive}
		}
		dims[i] = n
	}
	return Resolution{Width: dims[0], Height: dims[1]}, nil
}
