// Copyright © 2019 Binance
//
// This file is part of Binance. The full Binance copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package common

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ipfs/go-log"
)

// LoggerName is the go-log subsystem used by every package of this module.
const LoggerName = "mpi-rsa"

var Logger = log.Logger(LoggerName)

// FormatBigInt renders the low 32 bits of a in hex. Key material is never logged in full.
func FormatBigInt(a *big.Int) string {
	if a == nil {
		return "<nil>"
	}
	var aux = new(big.Int).SetInt64(0xFFFFFFFF)
	return new(big.Int).And(a, aux).Text(16)
}

func BigIntsToString(array []*big.Int) string {
	var sb strings.Builder
	for a, b := range array {
		if a > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d:%s", a, FormatBigInt(b))
	}
	return sb.String()
}
