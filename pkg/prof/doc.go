// Package prof collects runtime profiles for softdrv executables.
//
// It is conditionally compiled using the "profile" build tag:
//
//	go build -tags profile ./examples/echoapp
//
// Without the tag every function is a no-op and [Enabled] is false, so
// executables can keep their profiling flags at no cost.
//
// A [Session] covers one run:
//
//	s, err := prof.Start(prof.Config{CPUPath: "cpu.prof", HeapPath: "heap.prof"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Stop()
//
// [Goroutines] dumps every goroutine stack in text form, which shows
// dispatch workers or lifecycle calls stuck waiting for a queue to drain.
package prof
