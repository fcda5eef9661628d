// Package profiling starts and stops the runtime profilers of a replica process.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/felixge/fgprof"
	"go.uber.org/multierr"
)

// Profiles holds the output paths of the profilers. An empty path disables the profiler.
type Profiles struct {
	CPU    string
	Mem    string
	Trace  string
	Fgprof string
}

// Start starts the enabled profilers. The returned function stops them and
// writes the memory profile.
func Start(p Profiles) (stop func() error, err error) {
	var stops []func() error
	stopAll := func() error {
		var err error
		for i := len(stops) - 1; i >= 0; i-- {
			err = multierr.Append(err, stops[i]())
		}
		return err
	}
	// stop whatever was started if a later profiler fails
	fail := func(err error) (func() error, error) {
		return nil, multierr.Append(err, stopAll())
	}

	if p.CPU != "" {
		f, err := os.Create(p.CPU)
		if err != nil {
			return fail(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return fail(multierr.Append(fmt.Errorf("cpu profile: %w", err), f.Close()))
		}
		stops = append(stops, func() error {
			pprof.StopCPUProfile()
			return f.Close()
		})
	}

	if p.Fgprof != "" {
		f, err := os.Create(p.Fgprof)
		if err != nil {
			return fail(err)
		}
		fgprofStop := fgprof.Start(f, fgprof.FormatPprof)
		stops = append(stops, func() error {
			return multierr.Append(fgprofStop(), f.Close())
		})
	}

	if p.Trace != "" {
		f, err := os.Create(p.Trace)
		if err != nil {
			return fail(err)
		}
		if err := trace.Start(f); err != nil {
			return fail(multierr.Append(fmt.Errorf("trace: %w", err), f.Close()))
		}
		stops = append(stops, func() error {
			trace.Stop()
			return f.Close()
		})
	}

	if p.Mem != "" {
		stops = append(stops, func() error {
			f, err := os.Create(p.Mem)
			if err != nil {
				return err
			}
			runtime.GC() // get up-to-date statistics
			return multierr.Append(pprof.WriteHeapProfile(f), f.Close())
		})
	}

	return stopAll, nil
}
