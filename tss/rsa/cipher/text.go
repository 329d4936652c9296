// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package cipher

import (
	"context"
	"math/big"
	"strings"

	"github.com/iofinnet/mpi-rsa/crypto/blocks"
	"github.com/iofinnet/mpi-rsa/crypto/rsa"
	"github.com/iofinnet/mpi-rsa/tss"
	"github.com/iofinnet/mpi-rsa/tss/rsa/keygen"
)

// Direction says who writes to whom; the recipient's key encrypts and decrypts.
type Direction int

const (
	AliceToBob Direction = iota
	BobToAlice
)

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "alice2bob":
		return AliceToBob, nil
	case "bob2alice":
		return BobToAlice, nil
	}
	return 0, tss.Errorf(tss.InputError, "parse-direction", -1, "unknown direction %q", s)
}

func (d Direction) String() string {
	if d == BobToAlice {
		return "bob2alice"
	}
	return "alice2bob"
}

// Recipient is the owner whose key pair is used.
func (d Direction) Recipient() keygen.Owner {
	if d == BobToAlice {
		return keygen.Alice
	}
	return keygen.Bob
}

// EncryptText is collective. The coordinator packs text into blocks under pub, the group
// encrypts them and the coordinator returns the base64 ciphertext; other ranks return ""
// and may pass a nil key.
func (e *Engine) EncryptText(ctx context.Context, text string, pub *rsa.PublicKey) (string, error) {
	var (
		in      []*big.Int
		x, n    *big.Int
		rootErr error
	)
	if e.comm.Rank() == 0 {
		if pub == nil || pub.N == nil || pub.E == nil {
			rootErr = tss.Errorf(tss.InputError, "encrypt-text", 0, "missing public key")
		} else if in, rootErr = blocks.TextToBlocks(text, pub.N); rootErr != nil {
			rootErr = tss.NewError(tss.InputError, rootErr, "encrypt-text", 0)
		} else {
			x, n = pub.E, pub.N
			rootErr = checkInputs(in, x, n)
		}
	}
	out, err := e.exp(ctx, EncryptTags, in, x, n, rootErr)
	if err != nil || e.comm.Rank() != 0 {
		return "", err
	}
	return blocks.BlocksToBase64(out, n), nil
}

// DecryptText is the inverse of EncryptText. A key without a private exponent is a StateError.
func (e *Engine) DecryptText(ctx context.Context, ciphertext string, priv *rsa.PrivateKey) (string, error) {
	var (
		in      []*big.Int
		x, n    *big.Int
		rootErr error
	)
	if e.comm.Rank() == 0 {
		switch {
		case priv == nil || priv.N == nil:
			rootErr = tss.Errorf(tss.InputError, "decrypt-text", 0, "missing key")
		case !priv.HasPrivate():
			rootErr = tss.NewError(tss.StateError, rsa.ErrNoPrivateExponent, "decrypt-text", 0)
		default:
			if in, rootErr = blocks.Base64ToBlocks(ciphertext, priv.N); rootErr != nil {
				rootErr = tss.NewError(tss.InputError, rootErr, "decrypt-text", 0)
			} else {
				x, n = priv.D, priv.N
				rootErr = checkInputs(in, x, n)
			}
		}
	}
	out, err := e.exp(ctx, DecryptTags, in, x, n, rootErr)
	if err != nil || e.comm.Rank() != 0 {
		return "", err
	}
	return blocks.BlocksToText(out, n), nil
}
