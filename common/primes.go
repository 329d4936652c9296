// Copyright © 2021 Io FinNet Group, Inc.

package common

import (
	"math/big"

	"github.com/otiai10/primes"
)

// trialDivisionLimit bounds the small odd primes used to reject candidates before Miller-Rabin.
const trialDivisionLimit = 37

var smallOddPrimes = func() []*big.Int {
	list := primes.Until(trialDivisionLimit).List()
	out := make([]*big.Int, 0, len(list))
	for _, p := range list {
		if p == 2 {
			continue
		}
		out = append(out, big.NewInt(p))
	}
	return out
}()

// SmallOddPrimes returns the odd primes 3..37 in ascending order.
// The slice is shared and must not be modified.
func SmallOddPrimes() []*big.Int {
	return smallOddPrimes
}
