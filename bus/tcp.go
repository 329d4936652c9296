// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package bus

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/iofinnet/mpi-rsa/common"
)

const (
	frameFieldTag     protowire.Number = 1
	frameFieldPayload protowire.Number = 2

	maxFrameSize   = 1 << 30
	dialRetryDelay = 50 * time.Millisecond
)

// TCPTransport connects the ranks of a group in a full mesh: every rank listens on its own
// address, dials all lower ranks and accepts all higher ones.
type TCPTransport struct {
	rank      int
	size      int
	inbox     *mailbox
	peers     []*peerConn
	wg        sync.WaitGroup
	closeOnce sync.Once
	closing   chan struct{}
}

type peerConn struct {
	mu   sync.Mutex
	conn net.Conn
	w    *bufio.Writer
}

var _ Transport = (*TCPTransport)(nil)

// DialMesh blocks until this rank is connected to every other rank in addrs, or ctx is done.
func DialMesh(ctx context.Context, rank int, addrs []string) (*TCPTransport, error) {
	size := len(addrs)
	if err := checkRank(rank, size); err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", addrs[rank])
	if err != nil {
		return nil, errors.Wrapf(err, "rank %d: listen on %s", rank, addrs[rank])
	}
	defer ln.Close()
	return DialMeshWithListener(ctx, rank, addrs, ln)
}

// DialMeshWithListener is DialMesh over an already bound listener for addrs[rank].
// The listener is no longer needed once the call returns.
func DialMeshWithListener(ctx context.Context, rank int, addrs []string, ln net.Listener) (*TCPTransport, error) {
	size := len(addrs)
	if err := checkRank(rank, size); err != nil {
		return nil, err
	}
	t := &TCPTransport{
		rank:    rank,
		size:    size,
		inbox:   newMailbox(),
		peers:   make([]*peerConn, size),
		closing: make(chan struct{}),
	}
	g, gctx := errgroup.WithContext(ctx)

	stopAccept := make(chan struct{})
	go func() {
		select {
		case <-gctx.Done():
			_ = ln.Close()
		case <-stopAccept:
		}
	}()
	defer close(stopAccept)

	g.Go(func() error {
		for accepted := 0; accepted < size-1-rank; accepted++ {
			conn, err := ln.Accept()
			if err != nil {
				return errors.Wrapf(err, "rank %d: accept", rank)
			}
			peer, err := readHandshake(conn)
			if err != nil {
				conn.Close()
				return err
			}
			if peer <= rank || peer >= size || t.peers[peer] != nil {
				conn.Close()
				return errors.Errorf("rank %d: unexpected handshake from rank %d", rank, peer)
			}
			t.peers[peer] = newPeerConn(conn)
		}
		return nil
	})
	for peer := 0; peer < rank; peer++ {
		peer := peer
		g.Go(func() error {
			conn, err := dialWithRetry(gctx, addrs[peer])
			if err != nil {
				return errors.Wrapf(err, "rank %d: dial rank %d at %s", rank, peer, addrs[peer])
			}
			if err := writeHandshake(conn, rank); err != nil {
				conn.Close()
				return err
			}
			t.peers[peer] = newPeerConn(conn)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, p := range t.peers {
			if p != nil {
				p.conn.Close()
			}
		}
		return nil, err
	}
	for peer, p := range t.peers {
		if p == nil {
			continue
		}
		t.wg.Add(1)
		go t.readLoop(peer, p.conn)
	}
	common.Logger.Debugf("rank %d: tcp mesh of %d ranks established", rank, size)
	return t, nil
}

func newPeerConn(conn net.Conn) *peerConn {
	return &peerConn{conn: conn, w: bufio.NewWriter(conn)}
}

func dialWithRetry(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(err, "giving up: %v", ctx.Err())
		case <-time.After(dialRetryDelay):
		}
	}
}

// The handshake is the dialer's rank as a fixed 4-byte big-endian value, read unbuffered so no
// frame bytes are consumed with it.
func writeHandshake(conn net.Conn, rank int) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(rank))
	_, err := conn.Write(b[:])
	return errors.Wrap(err, "writing handshake")
}

func readHandshake(conn net.Conn) (int, error) {
	var b [4]byte
	if _, err := io.ReadFull(conn, b[:]); err != nil {
		return -1, errors.Wrap(err, "reading handshake")
	}
	return int(binary.BigEndian.Uint32(b[:])), nil
}

func (t *TCPTransport) Rank() int { return t.rank }

func (t *TCPTransport) Size() int { return t.size }

func (t *TCPTransport) Send(ctx context.Context, dest, tag int, payload []byte) error {
	if err := checkRank(dest, t.size); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if dest == t.rank {
		cp := make([]byte, len(payload))
		copy(cp, payload)
		return t.inbox.push(t.rank, tag, cp)
	}
	body := protowire.AppendTag(nil, frameFieldTag, protowire.VarintType)
	body = protowire.AppendVarint(body, protowire.EncodeZigZag(int64(tag)))
	body = protowire.AppendTag(body, frameFieldPayload, protowire.BytesType)
	body = protowire.AppendBytes(body, payload)

	p := t.peers[dest]
	p.mu.Lock()
	defer p.mu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = p.conn.SetWriteDeadline(deadline)
	}
	if _, err := p.w.Write(binary.AppendUvarint(nil, uint64(len(body)))); err != nil {
		return errors.Wrapf(err, "writing frame to rank %d", dest)
	}
	if _, err := p.w.Write(body); err != nil {
		return errors.Wrapf(err, "writing frame to rank %d", dest)
	}
	return errors.Wrapf(p.w.Flush(), "flushing frame to rank %d", dest)
}

func (t *TCPTransport) Recv(ctx context.Context, src, tag int) ([]byte, error) {
	if err := checkRank(src, t.size); err != nil {
		return nil, err
	}
	return t.inbox.pop(ctx, src, tag)
}

func (t *TCPTransport) readLoop(peer int, conn net.Conn) {
	defer t.wg.Done()
	r := bufio.NewReader(conn)
	for {
		tag, payload, err := readFrame(r)
		if err != nil {
			select {
			case <-t.closing:
			default:
				if err == io.EOF {
					common.Logger.Debugf("rank %d: rank %d closed its connection", t.rank, peer)
				} else {
					common.Logger.Warnf("rank %d: connection to rank %d failed: %v", t.rank, peer, err)
				}
			}
			t.inbox.closeSource(peer, errors.Wrapf(err, "connection to rank %d", peer))
			return
		}
		if err := t.inbox.push(peer, tag, payload); err != nil {
			return
		}
	}
}

func readFrame(r *bufio.Reader) (int, []byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, nil, err
	}
	if n > maxFrameSize {
		return 0, nil, errors.Errorf("frame of %d bytes exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	var (
		tag     int
		payload = []byte{}
	)
	err = WalkFields(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == frameFieldTag && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			tag = int(protowire.DecodeZigZag(v))
			return n, nil
		case num == frameFieldPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			payload = v
			return n, nil
		}
		return 0, nil
	})
	return tag, payload, err
}

// Close tears down every connection and fails pending receives.
func (t *TCPTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closing)
		t.inbox.close(ErrClosed)
		for _, p := range t.peers {
			if p != nil {
				p.conn.Close()
			}
		}
		t.wg.Wait()
	})
	return nil
}
