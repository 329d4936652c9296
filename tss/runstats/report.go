// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package runstats

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/iofinnet/mpi-rsa/common"
	"github.com/iofinnet/mpi-rsa/tss"
)

const (
	DefaultReportDir    = "logs"
	DefaultReportPrefix = "mpj-run"

	stampLayout    = "2006-01-02 15:04:05.000"
	fileTimeLayout = "2006-01-02_15-04-05"
	taskReport     = "write-report"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// FormatDuration renders milliseconds as h:mm:ss.mmm, m:ss.mmm or s.mmm s.
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	m := (ms / 60_000) % 60
	s := (ms / 1000) % 60
	milli := ms % 1000
	switch {
	case h > 0:
		return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, milli)
	case m > 0:
		return fmt.Sprintf("%d:%02d.%03d", m, s, milli)
	default:
		return fmt.Sprintf("%d.%03d s", s, milli)
	}
}

func stamp(ms int64) string {
	return time.UnixMilli(ms).Format(stampLayout)
}

// ReportFileName builds <prefix>__<yyyy-MM-dd_HH-mm-ss>__np-N[__bits-B].log.
// The bits segment is omitted when bits <= 0.
func ReportFileName(prefix string, at time.Time, np, bits int) string {
	prefix = unsafeFileChars.ReplaceAllString(strings.TrimSpace(prefix), "_")
	if prefix == "" {
		prefix = DefaultReportPrefix
	}
	name := fmt.Sprintf("%s__%s__np-%d", prefix, at.Format(fileTimeLayout), np)
	if bits > 0 {
		name += fmt.Sprintf("__bits-%d", bits)
	}
	return name + ".log"
}

// RenderReport produces the human-readable run report.
func RenderReport(stats *RunStats, generated time.Time) string {
	var sb strings.Builder
	runs := stats.Runs()
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&sb, format, args...)
		sb.WriteByte('\n')
	}

	line("=== Run report ===")
	line("Generated: %s", generated.Format(stampLayout))
	line("Processes: %d", len(runs))
	if len(runs) > 0 {
		line("Requested bits: %d", runs[0].BitsRequested)
	}
	line("")

	line("--- Time window ---")
	line("Start: %s", stamp(stats.GlobalStartMs()))
	line("End:   %s", stamp(stats.GlobalEndMs()))
	line("Total: %s", FormatDuration(stats.TotalRuntimeMs()))
	line("")

	line("--- Processes (fastest first) ---")
	for _, r := range runs {
		found := "-"
		if r.LtsFound.IsSet() {
			found = r.LtsFound.String()
		}
		line("Rank %d @ %s | %s -> %s | duration=%d ms | found=%t | bits=%s | LTS(start=%s, found=%s, end=%s)",
			r.Rank, r.Host, stamp(r.StartMs), stamp(r.EndMs), r.DurationMs, r.FoundPrime, r.bits(),
			r.LtsStart, found, r.LtsEnd)
	}
	line("")

	line("--- Summary ---")
	line("Total time: %s", FormatDuration(stats.TotalRuntimeMs()))
	if r, ok := stats.Slowest(); ok {
		line("Slowest: Rank %d @ %s (%d ms)", r.Rank, r.Host, r.DurationMs)
	}
	if r, ok := stats.Fastest(); ok {
		line("Fastest: Rank %d @ %s (%d ms)", r.Rank, r.Host, r.DurationMs)
	}
	if r, ok := stats.Winner(); ok {
		line("Winner:  Rank %d @ %s (%d ms, %d bits)", r.Rank, r.Host, r.DurationMs, r.BitsActual)
	}
	line("")

	line("--- Average per host ---")
	avg := stats.AvgPerHost()
	for _, h := range stats.Hosts() {
		line("- %s: %.2f ms", h, avg[h])
	}
	line("")

	line("--- Logical order (by final timestamp) ---")
	for _, r := range stats.LogicalOrder() {
		line("- %-10s  Rank %d @ %s  (duration=%d ms)", r.LtsEnd, r.Rank, r.Host, r.DurationMs)
	}
	return sb.String()
}

// WriteReport renders stats and writes them atomically under dir (DefaultReportDir when empty).
// It returns the path of the written file.
func WriteReport(dir, prefix string, stats *RunStats, now time.Time, bits int) (string, error) {
	if stats == nil {
		return "", tss.Errorf(tss.InputError, taskReport, -1, "no run statistics to report")
	}
	if dir == "" {
		dir = DefaultReportDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", tss.NewError(tss.IOError, errors.Wrapf(err, "create report dir %s", dir), taskReport, -1)
	}
	path := filepath.Join(dir, ReportFileName(prefix, now, len(stats.runs), bits))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(RenderReport(stats, now)), 0o644); err != nil {
		return "", tss.NewError(tss.IOError, errors.Wrapf(err, "write %s", tmp), taskReport, -1)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", tss.NewError(tss.IOError, errors.Wrapf(err, "rename %s", tmp), taskReport, -1)
	}
	common.Logger.Infof("run report written to %s", path)
	return path, nil
}
