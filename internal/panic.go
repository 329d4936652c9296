// SPDX-License-Identifier: MIT
//
// Copyright (C) 2021 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package internal holds helpers shared by the rank launchers.
package internal

import (
	"errors"
	"fmt"
)

var errNoPanicMessage = errors.New("panic but no message")

// PanicError is returned by Recover when f panicked.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	if e.Value == nil {
		return errNoPanicMessage.Error()
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes a panicked error value.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Recover runs f and turns a panic into a *PanicError, so one failing rank goroutine
// does not take the whole process down.
func Recover(f func() error) (err error) {
	defer func() {
		if report := recover(); report != nil {
			err = &PanicError{Value: report}
		}
	}()
	return f()
}
