// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package keygen

import (
	"math/big"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/iofinnet/mpi-rsa/bus"
	"github.com/iofinnet/mpi-rsa/crypto/rsa"
)

// KeyCodec is the broadcast form of a key tuple. Absent components are omitted and a nil key
// encodes as an empty message.
type KeyCodec struct{}

var _ bus.Codec[*rsa.PrivateKey] = KeyCodec{}

const (
	fieldN protowire.Number = iota + 1
	fieldE
	fieldD
	fieldP
	fieldQ
	fieldDP
	fieldDQ
	fieldQInv
	fieldPhi
)

func keyFields(k *rsa.PrivateKey) []**big.Int {
	return []**big.Int{&k.N, &k.E, &k.D, &k.P, &k.Q, &k.DP, &k.DQ, &k.QInv, &k.Phi}
}

func (KeyCodec) Marshal(k *rsa.PrivateKey) ([]byte, error) {
	if k == nil {
		return []byte{}, nil
	}
	var b []byte
	for i, f := range keyFields(k) {
		if *f != nil {
			b = bus.AppendBigInt(b, protowire.Number(i+1), *f)
		}
	}
	return b, nil
}

func (KeyCodec) Unmarshal(b []byte) (*rsa.PrivateKey, error) {
	if len(b) == 0 {
		return nil, nil
	}
	k := new(rsa.PrivateKey)
	fields := keyFields(k)
	err := bus.WalkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num < fieldN || num > fieldPhi || typ != protowire.BytesType {
			return 0, nil
		}
		v, n, err := bus.ConsumeBigInt(b)
		*fields[num-1] = v
		return n, err
	})
	if err != nil {
		return nil, err
	}
	return k, nil
}
