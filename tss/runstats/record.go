// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package runstats

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/iofinnet/mpi-rsa/bus"
	"github.com/iofinnet/mpi-rsa/tss"
)

// ProcessRun is what one rank reports about one run.
type ProcessRun struct {
	Rank       int
	Host       string
	StartMs    int64
	EndMs      int64
	DurationMs int64
	FoundPrime bool

	LtsStart tss.Timestamp
	LtsFound tss.Timestamp // tss.NoTimestamp when the rank found nothing
	LtsEnd   tss.Timestamp

	BitsRequested int
	BitsActual    int // -1 when the rank found nothing
}

func NewProcessRun(rank int, host string, startMs, endMs int64, foundPrime bool,
	ltsStart, ltsFound, ltsEnd tss.Timestamp, bitsRequested, bitsActual int) ProcessRun {
	return ProcessRun{
		Rank:          rank,
		Host:          host,
		StartMs:       startMs,
		EndMs:         endMs,
		DurationMs:    max(0, endMs-startMs),
		FoundPrime:    foundPrime,
		LtsStart:      ltsStart,
		LtsFound:      ltsFound,
		LtsEnd:        ltsEnd,
		BitsRequested: bitsRequested,
		BitsActual:    bitsActual,
	}
}

func (r ProcessRun) bits() string {
	if r.BitsActual >= 0 {
		return fmt.Sprintf("%d/%d", r.BitsActual, r.BitsRequested)
	}
	return fmt.Sprintf("-/%d", r.BitsRequested)
}

func (r ProcessRun) String() string {
	found := ""
	if r.LtsFound.IsSet() {
		found = " found=" + r.LtsFound.String()
	}
	return fmt.Sprintf("Rank %d @ %s | duration=%dms | foundPrime=%t | bits=%s | LTS start=%s%s end=%s",
		r.Rank, r.Host, r.DurationMs, r.FoundPrime, r.bits(), r.LtsStart, found, r.LtsEnd)
}

// ----- //

// RecordCodec is the wire form of a ProcessRun.
type RecordCodec struct{}

var _ bus.Codec[ProcessRun] = RecordCodec{}

const (
	fieldRank protowire.Number = iota + 1
	fieldHost
	fieldStartMs
	fieldEndMs
	fieldFoundPrime
	fieldLtsStart
	fieldLtsFound
	fieldLtsEnd
	fieldBitsRequested
	fieldBitsActual
)

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func (RecordCodec) Marshal(r ProcessRun) ([]byte, error) {
	var b []byte
	b = appendVarint(b, fieldRank, uint64(r.Rank))
	b = protowire.AppendTag(b, fieldHost, protowire.BytesType)
	b = protowire.AppendString(b, r.Host)
	b = appendVarint(b, fieldStartMs, protowire.EncodeZigZag(r.StartMs))
	b = appendVarint(b, fieldEndMs, protowire.EncodeZigZag(r.EndMs))
	b = appendVarint(b, fieldFoundPrime, protowire.EncodeBool(r.FoundPrime))
	b = appendVarint(b, fieldLtsStart, uint64(r.LtsStart))
	b = appendVarint(b, fieldLtsFound, uint64(r.LtsFound))
	b = appendVarint(b, fieldLtsEnd, uint64(r.LtsEnd))
	b = appendVarint(b, fieldBitsRequested, protowire.EncodeZigZag(int64(r.BitsRequested)))
	b = appendVarint(b, fieldBitsActual, protowire.EncodeZigZag(int64(r.BitsActual)))
	return b, nil
}

func (RecordCodec) Unmarshal(b []byte) (ProcessRun, error) {
	var r ProcessRun
	err := bus.WalkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == fieldHost && typ == protowire.BytesType {
			s, n := protowire.ConsumeString(b)
			r.Host = s
			return n, nil
		}
		if typ != protowire.VarintType {
			return 0, nil
		}
		v, n := protowire.ConsumeVarint(b)
		switch num {
		case fieldRank:
			r.Rank = int(v)
		case fieldStartMs:
			r.StartMs = protowire.DecodeZigZag(v)
		case fieldEndMs:
			r.EndMs = protowire.DecodeZigZag(v)
		case fieldFoundPrime:
			r.FoundPrime = protowire.DecodeBool(v)
		case fieldLtsStart:
			r.LtsStart = tss.Timestamp(v)
		case fieldLtsFound:
			r.LtsFound = tss.Timestamp(v)
		case fieldLtsEnd:
			r.LtsEnd = tss.Timestamp(v)
		case fieldBitsRequested:
			r.BitsRequested = int(protowire.DecodeZigZag(v))
		case fieldBitsActual:
			r.BitsActual = int(protowire.DecodeZigZag(v))
		}
		return n, nil
	})
	r.DurationMs = max(0, r.EndMs-r.StartMs)
	return r, err
}
