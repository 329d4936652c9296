// Copyright © 2019 Binance
//
// This file is part of Binance. The full Binance copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package tss

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	t.Parallel()
	err := NewError(BusError, io.EOF, "bcast", 2)
	assert.Equal(t, "BusError: task bcast, rank 2: EOF", err.Error())
	assert.Equal(t, io.EOF, err.Cause())
	assert.ErrorIs(t, err, io.EOF)

	noRank := Errorf(InputError, "params", -1, "size %d < 1", 0)
	assert.Equal(t, "InputError: task params: size 0 < 1", noRank.Error())
}

func TestKindOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"plain", io.EOF, UnknownError},
		{"nil", nil, UnknownError},
		{"direct", NewError(KeyGenError, io.EOF, "keygen", 0), KeyGenError},
		{"wrapped", errors.Wrap(NewError(IOError, io.EOF, "load", 0), "outer"), IOError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestWrapKeepsFirstKind(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Wrap(BusError, nil, "x", 0))
	inner := NewError(StateError, io.EOF, "tick", 1)
	assert.Equal(t, StateError, KindOf(Wrap(BusError, inner, "outer", 1)))
	assert.Equal(t, BusError, KindOf(Wrap(BusError, io.EOF, "outer", 1)))
}
