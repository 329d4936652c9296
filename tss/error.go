// Copyright © 2019 Binance
//
// This file is part of Binance. The full Binance copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package tss

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies every failure surfaced by the engine.
type ErrorKind int

const (
	UnknownError ErrorKind = iota
	// InputError: out-of-range parameters.
	InputError
	// KeyGenError: p = q, gcd(e, phi) != 1, or no modular inverse.
	KeyGenError
	// BusError: any failure reported by the messaging bus.
	BusError
	// IOError: key-file or report-file read/write failure.
	IOError
	// StateError: use of an uninitialized clock, recorder or key.
	StateError
)

func (k ErrorKind) String() string {
	switch k {
	case InputError:
		return "InputError"
	case KeyGenError:
		return "KeyGenError"
	case BusError:
		return "BusError"
	case IOError:
		return "IOError"
	case StateError:
		return "StateError"
	default:
		return "UnknownError"
	}
}

// Error is the tagged result of a failed operation. Rank is -1 when the failure is not tied to a rank.
type Error struct {
	cause error
	kind  ErrorKind
	task  string
	rank  int
}

func NewError(kind ErrorKind, err error, task string, rank int) *Error {
	return &Error{cause: err, kind: kind, task: task, rank: rank}
}

// Errorf builds an Error from a message, with a stack attached to the cause.
func Errorf(kind ErrorKind, task string, rank int, format string, args ...interface{}) *Error {
	return NewError(kind, errors.Errorf(format, args...), task, rank)
}

// Wrap returns nil for a nil err. An err that already carries a kind is passed through unchanged.
func Wrap(kind ErrorKind, err error, task string, rank int) error {
	if err == nil {
		return nil
	}
	var tErr *Error
	if errors.As(err, &tErr) {
		return err
	}
	return NewError(kind, err, task, rank)
}

func (err *Error) Unwrap() error { return err.cause }

func (err *Error) Cause() error { return err.cause }

func (err *Error) Kind() ErrorKind { return err.kind }

func (err *Error) Task() string { return err.task }

func (err *Error) Rank() int { return err.rank }

func (err *Error) Error() string {
	if err == nil || err.cause == nil {
		return "Error is nil"
	}
	if err.rank >= 0 {
		return fmt.Sprintf("%s: task %s, rank %d: %s", err.kind, err.task, err.rank, err.cause.Error())
	}
	return fmt.Sprintf("%s: task %s: %s", err.kind, err.task, err.cause.Error())
}

// KindOf returns the kind of the first *Error in err's chain, or UnknownError.
func KindOf(err error) ErrorKind {
	var tErr *Error
	if errors.As(err, &tErr) {
		return tErr.kind
	}
	return UnknownError
}
