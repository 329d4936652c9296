// Copyright © 2019 Binance
//
// This file is part of Binance. The full Binance copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

// Package rsa holds textbook RSA key material and single-block exponentiation.
// There is no padding and nothing here is constant time: the keys are for teaching runs only.
package rsa

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/iofinnet/mpi-rsa/common"
	"github.com/iofinnet/mpi-rsa/crypto/bigmath"
	"github.com/iofinnet/mpi-rsa/tss"
)

type (
	PublicKey struct {
		N, E *big.Int
	}

	// PrivateKey is the full key tuple. A key loaded from a partial store may lack the CRT
	// fields (P, Q, DP, DQ, QInv, Phi) or even D.
	PrivateKey struct {
		PublicKey
		D,
		P, Q,
		Phi, // (p-1) * (q-1)
		DP, // d mod (p-1)
		DQ, // d mod (q-1)
		QInv *big.Int // q^-1 mod p
	}
)

var (
	ErrEqualPrimes        = errors.New("p and q must differ")
	ErrExponentNotCoprime = errors.New("gcd(e, phi) != 1")
	ErrMessageTooLong     = errors.New("the message is too large or < 0")
	ErrNoPrivateExponent  = errors.New("key has no private exponent")

	one = big.NewInt(1)
)

const taskAssemble = "assemble-keys"

// AssembleKeys derives the full key tuple from two primes and a public exponent.
func AssembleKeys(p, q, e *big.Int) (*PrivateKey, error) {
	if p == nil || q == nil || e == nil {
		return nil, tss.NewError(tss.InputError, errors.New("nil key component"), taskAssemble, -1)
	}
	if p.Cmp(q) == 0 {
		return nil, tss.NewError(tss.KeyGenError, ErrEqualPrimes, taskAssemble, -1)
	}
	pMinus1, qMinus1 := new(big.Int).Sub(p, one), new(big.Int).Sub(q, one)
	phi := new(big.Int).Mul(pMinus1, qMinus1)
	// e is usable iff e mod phi is a unit of Z/phiZ
	if !common.IsNumberInMultiplicativeGroup(phi, new(big.Int).Mod(e, phi)) {
		return nil, tss.NewError(tss.KeyGenError, errors.Wrapf(ErrExponentNotCoprime, "e = %s", e), taskAssemble, -1)
	}
	d, err := bigmath.ModInverse(e, phi)
	if err != nil {
		return nil, tss.NewError(tss.KeyGenError, err, taskAssemble, -1)
	}
	qInv, err := bigmath.ModInverse(q, p)
	if err != nil {
		return nil, tss.NewError(tss.KeyGenError, err, taskAssemble, -1)
	}
	return &PrivateKey{
		PublicKey: PublicKey{
			N: new(big.Int).Mul(p, q),
			E: new(big.Int).Set(e),
		},
		D:    d,
		P:    new(big.Int).Set(p),
		Q:    new(big.Int).Set(q),
		Phi:  phi,
		DP:   new(big.Int).Mod(d, pMinus1),
		DQ:   new(big.Int).Mod(d, qMinus1),
		QInv: qInv,
	}, nil
}

// ----- //

func (pk *PublicKey) Encrypt(m *big.Int) (*big.Int, error) {
	if m.Sign() < 0 || m.Cmp(pk.N) >= 0 {
		return nil, ErrMessageTooLong
	}
	return bigmath.ModPow(m, pk.E, pk.N), nil
}

// HasPrivate reports whether the key can decrypt.
func (priv *PrivateKey) HasPrivate() bool {
	return priv != nil && priv.D != nil
}

// HasCRT reports whether the CRT fields are present.
func (priv *PrivateKey) HasCRT() bool {
	return priv.HasPrivate() && priv.P != nil && priv.Q != nil && priv.DP != nil && priv.DQ != nil && priv.QInv != nil
}

// Decrypt uses the CRT fields when present and c^d mod n otherwise.
func (priv *PrivateKey) Decrypt(c *big.Int) (*big.Int, error) {
	if !priv.HasPrivate() {
		return nil, tss.NewError(tss.StateError, ErrNoPrivateExponent, "decrypt", -1)
	}
	if c.Sign() < 0 || c.Cmp(priv.N) >= 0 {
		return nil, ErrMessageTooLong
	}
	if !priv.HasCRT() {
		return bigmath.ModPow(c, priv.D, priv.N), nil
	}
	// m1 = c^dp mod p, m2 = c^dq mod q, h = qInv (m1 - m2) mod p, m = m2 + h q
	m1 := bigmath.ModPow(c, priv.DP, priv.P)
	m2 := bigmath.ModPow(c, priv.DQ, priv.Q)
	h := new(big.Int).Sub(m1, m2)
	h.Mul(h, priv.QInv).Mod(h, priv.P)
	return h.Mul(h, priv.Q).Add(h, m2), nil
}

// Public returns a copy of the public half.
func (priv *PrivateKey) Public() *PublicKey {
	return &PublicKey{N: new(big.Int).Set(priv.N), E: new(big.Int).Set(priv.E)}
}

// Validate checks that every present field is consistent with the others.
func (priv *PrivateKey) Validate() error {
	if priv == nil || priv.N == nil || priv.E == nil {
		return errors.New("key is missing n or e")
	}
	if priv.P != nil && priv.Q != nil {
		if new(big.Int).Mul(priv.P, priv.Q).Cmp(priv.N) != 0 {
			return errors.New("n != p * q")
		}
		pMinus1, qMinus1 := new(big.Int).Sub(priv.P, one), new(big.Int).Sub(priv.Q, one)
		phi := new(big.Int).Mul(pMinus1, qMinus1)
		if priv.Phi != nil && priv.Phi.Cmp(phi) != 0 {
			return errors.New("phi != (p-1)(q-1)")
		}
		if priv.D != nil {
			if new(big.Int).Mod(new(big.Int).Mul(priv.E, priv.D), phi).Cmp(one) != 0 {
				return errors.New("e * d != 1 mod phi")
			}
			if priv.DP != nil && new(big.Int).Mod(priv.D, pMinus1).Cmp(priv.DP) != 0 {
				return errors.New("dp != d mod (p-1)")
			}
			if priv.DQ != nil && new(big.Int).Mod(priv.D, qMinus1).Cmp(priv.DQ) != 0 {
				return errors.New("dq != d mod (q-1)")
			}
		}
		if priv.QInv != nil && new(big.Int).Mod(new(big.Int).Mul(priv.Q, priv.QInv), priv.P).Cmp(one) != 0 {
			return errors.New("q * qInv != 1 mod p")
		}
	}
	return nil
}
