// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package runstats

import (
	"sort"
)

// RunStats is the coordinator's view of a run: every rank's record, sorted by duration.
type RunStats struct {
	runs          []ProcessRun
	globalStartMs int64
	globalEndMs   int64
}

func NewRunStats(runs []ProcessRun, globalStartMs, globalEndMs int64) *RunStats {
	sorted := append([]ProcessRun(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].DurationMs < sorted[j].DurationMs })
	return &RunStats{runs: sorted, globalStartMs: globalStartMs, globalEndMs: globalEndMs}
}

// Runs returns a copy of the records, fastest first.
func (s *RunStats) Runs() []ProcessRun {
	return append([]ProcessRun(nil), s.runs...)
}

func (s *RunStats) GlobalStartMs() int64 { return s.globalStartMs }

func (s *RunStats) GlobalEndMs() int64 { return s.globalEndMs }

func (s *RunStats) TotalRuntimeMs() int64 {
	return max(0, s.globalEndMs-s.globalStartMs)
}

func (s *RunStats) Fastest() (ProcessRun, bool) {
	if len(s.runs) == 0 {
		return ProcessRun{}, false
	}
	return s.runs[0], true
}

func (s *RunStats) Slowest() (ProcessRun, bool) {
	if len(s.runs) == 0 {
		return ProcessRun{}, false
	}
	return s.runs[len(s.runs)-1], true
}

// Winner is the quickest rank that found a prime.
func (s *RunStats) Winner() (ProcessRun, bool) {
	for _, r := range s.runs {
		if r.FoundPrime {
			return r, true
		}
	}
	return ProcessRun{}, false
}

// AvgPerHost maps every host to the mean duration of its ranks.
func (s *RunStats) AvgPerHost() map[string]float64 {
	sums := make(map[string]int64)
	counts := make(map[string]int)
	for _, r := range s.runs {
		sums[r.Host] += r.DurationMs
		counts[r.Host]++
	}
	out := make(map[string]float64, len(sums))
	for h, sum := range sums {
		out[h] = float64(sum) / float64(counts[h])
	}
	return out
}

// Hosts returns the distinct hosts in ascending order.
func (s *RunStats) Hosts() []string {
	avg := s.AvgPerHost()
	hosts := make([]string, 0, len(avg))
	for h := range avg {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

// LogicalOrder returns the records ordered by their final logical timestamp.
func (s *RunStats) LogicalOrder() []ProcessRun {
	out := s.Runs()
	sort.SliceStable(out, func(i, j int) bool { return out[i].LtsEnd < out[j].LtsEnd })
	return out
}
