package internal

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecover(t *testing.T) {
	assert.NoError(t, Recover(func() error { return nil }))
	assert.Equal(t, io.EOF, Recover(func() error { return io.EOF }))

	err := Recover(func() error { panic("boom") })
	var pErr *PanicError
	assert.True(t, errors.As(err, &pErr))
	assert.Equal(t, "panic: boom", err.Error())

	err = Recover(func() error { panic(io.ErrUnexpectedEOF) })
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
