// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package runstats

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/iofinnet/mpi-rsa/bus"
	"github.com/iofinnet/mpi-rsa/common"
	"github.com/iofinnet/mpi-rsa/tss"
)

const taskCollect = "collect-run"

var errNotBegun = errors.New("recorder used before Begin")

// Recorder stamps one rank's wall-clock and logical times for a run.
type Recorder struct {
	clock         *tss.LogicalClock
	host          string
	bitsRequested int
	now           func() time.Time

	begun, ended bool
	startMs      int64
	endMs        int64
	ltsStart     tss.Timestamp
	ltsFound     tss.Timestamp
	ltsEnd       tss.Timestamp
	found        bool
	bitsActual   int
}

type RecorderOption func(*Recorder)

// WithWallClock replaces time.Now.
func WithWallClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// WithHost overrides the host name reported for this rank.
func WithHost(host string) RecorderOption {
	return func(r *Recorder) { r.host = host }
}

func NewRecorder(clock *tss.LogicalClock, bitsRequested int, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		clock:         clock,
		bitsRequested: bitsRequested,
		now:           time.Now,
		ltsFound:      tss.NoTimestamp,
		bitsActual:    -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.host == "" {
		if h, err := os.Hostname(); err == nil {
			r.host = h
		} else {
			r.host = "unknown"
		}
	}
	return r
}

func (r *Recorder) rank() int {
	if r.clock == nil {
		return -1
	}
	return r.clock.Rank()
}

func (r *Recorder) stateErr(task string) error {
	return tss.NewError(tss.StateError, errNotBegun, task, r.rank())
}

// Begin stamps the start of the run.
func (r *Recorder) Begin() error {
	ts, err := r.clock.Tick()
	if err != nil {
		return err
	}
	r.begun, r.ended = true, false
	r.startMs = r.now().UnixMilli()
	r.ltsStart, r.ltsFound, r.ltsEnd = ts, tss.NoTimestamp, ts
	r.found, r.bitsActual = false, -1
	return nil
}

// Found marks that this rank produced the result, with its bit length.
func (r *Recorder) Found(bitsActual int) error {
	if !r.begun {
		return r.stateErr("record-found")
	}
	ts, err := r.clock.Tick()
	if err != nil {
		return err
	}
	r.found, r.bitsActual, r.ltsFound = true, bitsActual, ts
	return nil
}

// End stamps the end of the run.
func (r *Recorder) End() error {
	if !r.begun {
		return r.stateErr("record-end")
	}
	ts, err := r.clock.Tick()
	if err != nil {
		return err
	}
	r.ended = true
	r.endMs = r.now().UnixMilli()
	r.ltsEnd = ts
	return nil
}

// Record returns this rank's ProcessRun. End is implied if it was not called.
func (r *Recorder) Record() (ProcessRun, error) {
	if !r.begun {
		return ProcessRun{}, r.stateErr("record")
	}
	if !r.ended {
		if err := r.End(); err != nil {
			return ProcessRun{}, err
		}
	}
	return NewProcessRun(r.rank(), r.host, r.startMs, r.endMs, r.found,
		r.ltsStart, r.ltsFound, r.ltsEnd, r.bitsRequested, r.bitsActual), nil
}

// Collect is collective: after a barrier every rank's record is gathered on rank 0, which
// returns the assembled RunStats. Other ranks return nil.
func (r *Recorder) Collect(ctx context.Context, comm *bus.Comm) (*RunStats, error) {
	rec, err := r.Record()
	if err != nil {
		return nil, err
	}
	if now, err := r.clock.Current(); err == nil {
		common.Logger.Debugf("rank %d: collecting at logical time %s", comm.Rank(), now)
	}
	if err := comm.Barrier(ctx); err != nil {
		return nil, tss.NewError(tss.BusError, err, taskCollect, comm.Rank())
	}
	runs, err := bus.Gather[ProcessRun](ctx, comm, rec, 0, RecordCodec{})
	if err != nil {
		return nil, tss.NewError(tss.BusError, err, taskCollect, comm.Rank())
	}
	if runs == nil {
		return nil, nil
	}
	start, end := runs[0].StartMs, runs[0].EndMs
	for _, run := range runs[1:] {
		start = min(start, run.StartMs)
		end = max(end, run.EndMs)
	}
	common.Logger.Debugf("rank %d: collected %d run records", comm.Rank(), len(runs))
	return NewRunStats(runs, start, end), nil
}
