package utils

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"linkfetch/internal"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []int
	}{
		{"mixed", "1,3,5-7", []int{1, 3, 5, 6, 7}},
		{"single_range", "2-2", []int{2}},
		{"zero", "0", []int{0}},
		{"duplicates_collapse", "1,1,0-2", []int{0, 1, 2}},
		{"spaces", " 4 , 2 - 3 ", []int{2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := ParseSelection(tt.input)
			if err != nil {
				t.Fatalf("ParseSelection(%q) returned error: %v", tt.input, err)
			}
			if got := sel.Sorted(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseSelection(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseSelection_Invalid(t *testing.T) {
	inputs := []string{
		"a,1",
		"",
		"1,,2",
		"1-",
		"-3",
		"1-2-3",
		"7-5",
		"+1",
		"1.5",
		"65536",
		"0-100000000",
		"0-9223372036854775807",
		"99999999999999999999999",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := ParseSelection(input)
			if err == nil {
				t.Fatalf("ParseSelection(%q) should fail", input)
			}
			if !internal.IsType(err, internal.ErrInvalidSelection) {
				t.Errorf("expected InvalidSelection, got %v", err)
			}
		})
	}
}

func TestParseSelection_LargestIndex(t *testing.T) {
	sel, err := ParseSelection(fmt.Sprintf("%d", MaxSelectionIndex))
	if err != nil {
		t.Fatalf("largest index should parse: %v", err)
	}
	if !sel.Contains(MaxSelectionIndex) {
		t.Errorf("expected %d in %v", MaxSelectionIndex, sel.Sorted())
	}

	done := make(chan error, 1)
	go func() {
		_, err := ParseSelection("0-9223372036854775807")
		done <- err
	}()
	select {
	case err := <-done:
		if err == nil {
			t.Error("huge range should be rejected")
		}
	case <-time.After(time.Second):
		t.Fatal("huge range did not return")
	}
}

func TestSelection_Contains(t *testing.T) {
	sel, err := ParseSelection("3-4")
	if err != nil {
		t.Fatal(err)
	}
	if !sel.Contains(3) || !sel.Contains(4) || sel.Contains(5) {
		t.Errorf("unexpected membership for %v", sel.Sorted())
	}
}
