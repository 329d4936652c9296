// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package bus

import (
	"math"
	"math/big"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

type (
	// Codec serializes the element type of a typed collective.
	Codec[T any] interface {
		Marshal(v T) ([]byte, error)
		Unmarshal(b []byte) (T, error)
	}

	// Numeric is a Codec whose values can be combined by Reduce and AllReduce.
	Numeric[T any] interface {
		Codec[T]
		Combine(op Op, a, b T) (T, error)
	}

	// BigIntCodec encodes a big integer as its decimal digits. A nil *big.Int stands for NONE
	// and encodes as an empty message.
	BigIntCodec struct{}

	// BigIntsCodec encodes a vector of non-nil big integers.
	BigIntsCodec struct{}

	Int64Codec struct{}

	Int64sCodec struct{}

	Float64sCodec struct{}

	// BytesCodec passes payloads through untouched.
	BytesCodec struct{}
)

var (
	_ Numeric[*big.Int]  = BigIntCodec{}
	_ Codec[[]*big.Int]  = BigIntsCodec{}
	_ Numeric[int64]     = Int64Codec{}
	_ Numeric[[]int64]   = Int64sCodec{}
	_ Numeric[[]float64] = Float64sCodec{}
	_ Codec[[]byte]      = BytesCodec{}
)

const fieldValue protowire.Number = 1

// WalkFields calls visit for every field of a protobuf-encoded message. visit returns the number
// of bytes of the field value it consumed (negative protowire codes are reported as parse
// errors), or 0 to have the field skipped.
func WalkFields(b []byte, visit func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n, err := visit(num, typ, b)
		if err != nil {
			return err
		}
		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

// AppendBigInt appends v as a decimal string field.
func AppendBigInt(b []byte, num protowire.Number, v *big.Int) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v.Text(10))
}

// ConsumeBigInt parses a decimal string field value.
func ConsumeBigInt(b []byte) (*big.Int, int, error) {
	s, n := protowire.ConsumeString(b)
	if n < 0 {
		return nil, n, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, n, errors.Errorf("bus: malformed decimal big integer %q", s)
	}
	return v, n, nil
}

func (BigIntCodec) Marshal(v *big.Int) ([]byte, error) {
	if v == nil {
		return []byte{}, nil
	}
	return AppendBigInt(nil, fieldValue, v), nil
}

func (BigIntCodec) Unmarshal(b []byte) (*big.Int, error) {
	var out *big.Int
	err := WalkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldValue || typ != protowire.BytesType {
			return 0, nil
		}
		v, n, err := ConsumeBigInt(b)
		out = v
		return n, err
	})
	return out, err
}

// Combine treats NONE as absent for MAX and as zero for SUM.
func (BigIntCodec) Combine(op Op, a, b *big.Int) (*big.Int, error) {
	switch op {
	case OpMax:
		if a == nil {
			return b, nil
		}
		if b == nil || a.Cmp(b) >= 0 {
			return a, nil
		}
		return b, nil
	case OpSum:
		if a == nil {
			return b, nil
		}
		if b == nil {
			return a, nil
		}
		return new(big.Int).Add(a, b), nil
	default:
		return nil, errors.Wrapf(ErrUnknownOp, "%d", op)
	}
}

func (BigIntsCodec) Marshal(v []*big.Int) ([]byte, error) {
	var b []byte
	for i, x := range v {
		if x == nil {
			return nil, errors.Errorf("bus: nil big integer at index %d", i)
		}
		b = AppendBigInt(b, fieldValue, x)
	}
	return b, nil
}

func (BigIntsCodec) Unmarshal(b []byte) ([]*big.Int, error) {
	out := make([]*big.Int, 0)
	err := WalkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldValue || typ != protowire.BytesType {
			return 0, nil
		}
		v, n, err := ConsumeBigInt(b)
		if v != nil {
			out = append(out, v)
		}
		return n, err
	})
	return out, err
}

func (Int64Codec) Marshal(v int64) ([]byte, error) {
	b := protowire.AppendTag(nil, fieldValue, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v)), nil
}

func (Int64Codec) Unmarshal(b []byte) (int64, error) {
	var out int64
	err := WalkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldValue || typ != protowire.VarintType {
			return 0, nil
		}
		v, n := protowire.ConsumeVarint(b)
		out = protowire.DecodeZigZag(v)
		return n, nil
	})
	return out, err
}

func (Int64Codec) Combine(op Op, a, b int64) (int64, error) {
	switch op {
	case OpMax:
		return max(a, b), nil
	case OpSum:
		return a + b, nil
	default:
		return 0, errors.Wrapf(ErrUnknownOp, "%d", op)
	}
}

func (Int64sCodec) Marshal(v []int64) ([]byte, error) {
	var b []byte
	for _, x := range v {
		b = protowire.AppendTag(b, fieldValue, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(x))
	}
	return b, nil
}

func (Int64sCodec) Unmarshal(b []byte) ([]int64, error) {
	out := make([]int64, 0)
	err := WalkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldValue || typ != protowire.VarintType {
			return 0, nil
		}
		v, n := protowire.ConsumeVarint(b)
		out = append(out, protowire.DecodeZigZag(v))
		return n, nil
	})
	return out, err
}

func (Int64sCodec) Combine(op Op, a, b []int64) ([]int64, error) {
	if len(a) != len(b) {
		return nil, errors.Wrapf(ErrSizeMisfit, "%d != %d", len(a), len(b))
	}
	out := make([]int64, len(a))
	for i := range a {
		v, err := Int64Codec{}.Combine(op, a[i], b[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (Float64sCodec) Marshal(v []float64) ([]byte, error) {
	var b []byte
	for _, x := range v {
		b = protowire.AppendTag(b, fieldValue, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(x))
	}
	return b, nil
}

func (Float64sCodec) Unmarshal(b []byte) ([]float64, error) {
	out := make([]float64, 0)
	err := WalkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldValue || typ != protowire.Fixed64Type {
			return 0, nil
		}
		v, n := protowire.ConsumeFixed64(b)
		out = append(out, math.Float64frombits(v))
		return n, nil
	})
	return out, err
}

func (Float64sCodec) Combine(op Op, a, b []float64) ([]float64, error) {
	if len(a) != len(b) {
		return nil, errors.Wrapf(ErrSizeMisfit, "%d != %d", len(a), len(b))
	}
	out := make([]float64, len(a))
	for i := range a {
		switch op {
		case OpMax:
			out[i] = math.Max(a[i], b[i])
		case OpSum:
			out[i] = a[i] + b[i]
		default:
			return nil, errors.Wrapf(ErrUnknownOp, "%d", op)
		}
	}
	return out, nil
}

func (BytesCodec) Marshal(v []byte) ([]byte, error) { return v, nil }

func (BytesCodec) Unmarshal(b []byte) ([]byte, error) { return b, nil }

// packFrames encodes a list of already-encoded elements.
func packFrames(frames [][]byte) []byte {
	var b []byte
	for _, f := range frames {
		b = protowire.AppendTag(b, fieldValue, protowire.BytesType)
		b = protowire.AppendBytes(b, f)
	}
	return b
}

func unpackFrames(b []byte) ([][]byte, error) {
	out := make([][]byte, 0)
	err := WalkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldValue || typ != protowire.BytesType {
			return 0, nil
		}
		v, n := protowire.ConsumeBytes(b)
		out = append(out, v)
		return n, nil
	})
	return out, err
}
