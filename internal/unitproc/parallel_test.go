package unitproc

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"cruft/pkg/parser"
	"cruft/pkg/source"
)

func makeUnits(n int) []source.Unit {
	units := make([]source.Unit, n)
	for i := range units {
		units[i] = source.Unit{
			Path:    fmt.Sprintf("f%03d.py", i),
			Content: []byte("def f():\n    pass\n"),
		}
	}
	return units
}

func TestMapUnitsOrder(t *testing.T) {
	units := makeUnits(50)

	results, errs := MapUnits(units, func(_ *parser.Parser, u source.Unit) (string, error) {
		return u.Path, nil
	})

	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(results) != len(units) {
		t.Fatalf("len = %d, want %d", len(results), len(units))
	}
	for i, got := range results {
		if got != units[i].Path {
			t.Errorf("results[%d] = %s, want %s (corpus order must hold)", i, got, units[i].Path)
		}
	}
}

func TestMapUnitsCollectsErrors(t *testing.T) {
	units := makeUnits(10)
	boom := errors.New("boom")

	results, errs := MapUnits(units, func(_ *parser.Parser, u source.Unit) (string, error) {
		if strings.HasSuffix(u.Path, "3.py") {
			return "", boom
		}
		return u.Path, nil
	})

	if errs == nil || !errs.HasErrors() {
		t.Fatal("expected collected errors")
	}
	if len(errs.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(errs.Errors))
	}
	if errs.Errors[0].Path != "f003.py" {
		t.Errorf("error path = %s", errs.Errors[0].Path)
	}
	// Failed slots hold the zero value.
	if results[3] != "" {
		t.Errorf("results[3] = %q, want zero value", results[3])
	}
	if results[4] != "f004.py" {
		t.Errorf("results[4] = %q", results[4])
	}
}

func TestMapUnitsEmpty(t *testing.T) {
	results, errs := MapUnits(nil, func(_ *parser.Parser, u source.Unit) (int, error) {
		return 0, nil
	})
	if results != nil || errs != nil {
		t.Error("empty input should yield nil results and nil errors")
	}
}

func TestMapUnitsProgress(t *testing.T) {
	units := makeUnits(20)
	var ticks atomic.Int64

	_, _ = MapUnitsWithProgress(units, func(_ *parser.Parser, u source.Unit) (int, error) {
		return 0, nil
	}, func() { ticks.Add(1) })

	if got := ticks.Load(); got != 20 {
		t.Errorf("progress ticks = %d, want 20", got)
	}
}

func TestForEachUnit(t *testing.T) {
	units := makeUnits(5)

	results, errs := ForEachUnit(units, func(u source.Unit) (int, error) {
		return len(u.Content), nil
	})

	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	for i, n := range results {
		if n != len(units[i].Content) {
			t.Errorf("results[%d] = %d", i, n)
		}
	}
}

func TestProcessingErrorsMessages(t *testing.T) {
	errs := &ProcessingErrors{}
	if errs.HasErrors() {
		t.Error("fresh collector should have no errors")
	}
	if errs.Error() != "no errors" {
		t.Errorf("empty message = %q", errs.Error())
	}

	errs.Add("a.py", errors.New("first"))
	if errs.Error() != "a.py: first" {
		t.Errorf("single message = %q", errs.Error())
	}

	errs.Add("b.py", errors.New("second"))
	if !strings.Contains(errs.Error(), "2 units failed") {
		t.Errorf("multi message = %q", errs.Error())
	}
}
