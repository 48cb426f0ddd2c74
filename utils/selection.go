package utils

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"linkfetch/internal"
)

// MaxSelectionIndex is the largest index a selection expression may name
const MaxSelectionIndex = 1<<16 - 1

// Selection is a set of listing indices
type Selection map[int]struct{}

// Contains reports whether index i is selected
func (s Selection) Contains(i int) bool {
	_, ok := s[i]
	return ok
}

// Sorted returns the selected indices in ascending order
func (s Selection) Sorted() []int {
	out := make([]int, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// ParseSelection parses expressions like "1,3,5-7" into {1,3,5,6,7}.
// Reversed ranges such as "7-5" and indices above MaxSelectionIndex are rejected.
func ParseSelection(expr string) (Selection, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, internal.NewInvalidSelectionError(expr, "selection is empty")
	}

	sel := make(Selection)
	for _, token := range strings.Split(expr, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, internal.NewInvalidSelectionError(expr, "empty entry in selection")
		}

		lo, hi, err := parseSelectionToken(token)
		if err != nil {
			return nil, internal.NewInvalidSelectionError(expr, err.Error())
		}
		for i := lo; i <= hi; i++ {
			sel[i] = struct{}{}
		}
	}
	return sel, nil
}

func parseSelectionToken(token string) (int, int, error) {
	parts := strings.Split(token, "-")
	switch len(parts) {
	case 1:
		n, err := parseIndex(parts[0])
		if err != nil {
			return 0, 0, err
		}
		return n, n, nil
	case 2:
		lo, err := parseIndex(parts[0])
		if err != nil {
			return 0, 0, err
		}
		hi, err := parseIndex(parts[1])
		if err != nil {
			return 0, 0, err
		}
		if lo > hi {
			return 0, 0, fmt.Errorf("range %q is reversed", token)
		}
		return lo, hi, nil
	default:
		return 0, 0, fmt.Errorf("malformed range %q", token)
	}
}

func parseIndex(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("missing number")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%q is not a number", s)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n > MaxSelectionIndex {
		return 0, fmt.Errorf("%q is out of range (max %d)", s, MaxSelectionIndex)
	}
	return n, nil
}
