// Package unitproc provides concurrent per-unit processing utilities.
package unitproc

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"cruft/pkg/parser"
	"cruft/pkg/source"
)

// ProcessingError represents an error that occurred while processing a unit.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// ProcessingErrors collects multiple unit processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d units failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// 2x covers the mixed I/O and CGO workload of parsing.
const DefaultWorkerMultiplier = 2

// ProgressFunc is called after each unit is processed.
type ProgressFunc func()

// MapUnits processes units in parallel, calling fn for each unit with a
// dedicated parser. Results are returned corpus-ordered: result[i]
// corresponds to units[i], holding the zero value for failed units.
// Failures are collected; the returned ProcessingErrors is nil when
// every unit succeeded.
func MapUnits[T any](units []source.Unit, fn func(*parser.Parser, source.Unit) (T, error)) ([]T, *ProcessingErrors) {
	return MapUnitsWithProgress(units, fn, nil)
}

// MapUnitsWithProgress processes units in parallel with optional progress callback.
func MapUnitsWithProgress[T any](units []source.Unit, fn func(*parser.Parser, source.Unit) (T, error), onProgress ProgressFunc) ([]T, *ProcessingErrors) {
	return MapUnitsN(units, 0, fn, onProgress)
}

// MapUnitsN processes units with a configurable worker count.
// If maxWorkers is <= 0, defaults to 2x NumCPU.
func MapUnitsN[T any](units []source.Unit, maxWorkers int, fn func(*parser.Parser, source.Unit) (T, error), onProgress ProgressFunc) ([]T, *ProcessingErrors) {
	if len(units) == 0 {
		return nil, nil
	}

	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU() * DefaultWorkerMultiplier
	}

	// Index-addressed slots keep output order independent of worker
	// scheduling.
	results := make([]T, len(units))
	errs := &ProcessingErrors{}

	p := pool.New().WithMaxGoroutines(maxWorkers)
	for i, unit := range units {
		p.Go(func() {
			psr := parser.New()
			defer psr.Close()

			result, err := fn(psr, unit)

			if onProgress != nil {
				onProgress()
			}

			if err != nil {
				errs.Add(unit.Path, err)
				return
			}
			results[i] = result
		})
	}
	p.Wait()

	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}

// ForEachUnit processes units in parallel without a parser; use this for
// line-oriented scanning. Result order matches unit order.
func ForEachUnit[T any](units []source.Unit, fn func(source.Unit) (T, error)) ([]T, *ProcessingErrors) {
	if len(units) == 0 {
		return nil, nil
	}

	maxWorkers := runtime.NumCPU() * DefaultWorkerMultiplier
	results := make([]T, len(units))
	errs := &ProcessingErrors{}

	p := pool.New().WithMaxGoroutines(maxWorkers)
	for i, unit := range units {
		p.Go(func() {
			result, err := fn(unit)
			if err != nil {
				errs.Add(unit.Path, err)
				return
			}
			results[i] = result
		})
	}
	p.Wait()

	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}
