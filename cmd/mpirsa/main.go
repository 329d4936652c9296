// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

// Command mpirsa runs distributed RSA key generation, block encryption and benchmarks, either
// as in-process ranks or as one rank of a TCP host file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/iofinnet/mpi-rsa/tss"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorLine(err))
		os.Exit(1)
	}
}

// errorLine renders err as the single line "error: <Kind>: <message>". Of the per-rank errors
// of an in-process run only the first tagged one is shown.
func errorLine(err error) string {
	var merr *multierror.Error
	if errors.As(err, &merr) && len(merr.Errors) > 0 {
		err = merr.Errors[0]
		for _, e := range merr.Errors {
			if tss.KindOf(e) != tss.UnknownError {
				err = e
				break
			}
		}
	}
	var tErr *tss.Error
	if errors.As(err, &tErr) {
		return oneLine("error: " + tErr.Error())
	}
	return oneLine(fmt.Sprintf("error: %s: %v", tss.UnknownError, err))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
