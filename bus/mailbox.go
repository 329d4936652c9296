// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package bus

import (
	"context"
	"sync"
)

type mailboxKey struct {
	src, tag int
}

// mailbox is the inbound side of one rank: an unbounded FIFO per (src, tag).
type mailbox struct {
	mu     sync.Mutex
	queues map[mailboxKey][][]byte
	wake   chan struct{}
	gone   map[int]error
	closed bool
	err    error
}

func newMailbox() *mailbox {
	return &mailbox{
		queues: make(map[mailboxKey][][]byte),
		wake:   make(chan struct{}),
		gone:   make(map[int]error),
	}
}

func (m *mailbox) push(src, tag int, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return m.err
	}
	k := mailboxKey{src, tag}
	m.queues[k] = append(m.queues[k], payload)
	m.notifyLocked()
	return nil
}

func (m *mailbox) pop(ctx context.Context, src, tag int) ([]byte, error) {
	k := mailboxKey{src, tag}
	for {
		m.mu.Lock()
		if q := m.queues[k]; len(q) > 0 {
			payload := q[0]
			q[0] = nil
			if len(q) == 1 {
				delete(m.queues, k)
			} else {
				m.queues[k] = q[1:]
			}
			m.mu.Unlock()
			return payload, nil
		}
		if err, ok := m.gone[src]; ok {
			m.mu.Unlock()
			return nil, err
		}
		if m.closed {
			err := m.err
			m.mu.Unlock()
			return nil, err
		}
		wake := m.wake
		m.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// close fails every pending and future pop once queued messages are drained.
func (m *mailbox) close(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if err == nil {
		err = ErrClosed
	}
	m.closed, m.err = true, err
	m.notifyLocked()
}

// closeSource fails receives from src once its queued messages are drained.
func (m *mailbox) closeSource(src int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.gone[src]; ok {
		return
	}
	m.gone[src] = err
	m.notifyLocked()
}

func (m *mailbox) notifyLocked() {
	close(m.wake)
	m.wake = make(chan struct{})
}
