/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

const readChunkSize = 4096

// Transport provides an abstraction for DAP message I/O over different connection types.
// Implementations must be safe for concurrent use by multiple goroutines for reading
// and writing, but individual reads and writes may not be concurrent with each other.
type Transport interface {
	// ReadMessage returns the body of the next framed message.
	// This method blocks until a complete message is available.
	ReadMessage() ([]byte, error)

	// WriteMessage frames and writes a DAP protocol message.
	WriteMessage(msg any) error

	// Close closes the transport, releasing any associated resources.
	// After Close is called, any blocked ReadMessage or WriteMessage calls
	// should return with an error.
	Close() error
}

// streamTransport implements Transport over a byte stream, using a Decoder to find message boundaries.
type streamTransport struct {
	reader  io.Reader
	writer  *bufio.Writer
	closers []io.Closer

	decoder *Decoder
	chunk   []byte

	// readMu serializes readers sharing the decoder
	readMu sync.Mutex

	// writeMu protects concurrent writes to the stream
	writeMu sync.Mutex

	// closed indicates whether the transport has been closed
	closed bool
	mu     sync.Mutex
}

func newStreamTransport(r io.Reader, w io.Writer, closers ...io.Closer) *streamTransport {
	return &streamTransport{
		reader:  r,
		writer:  bufio.NewWriter(w),
		closers: closers,
		decoder: NewDecoder(),
		chunk:   make([]byte, readChunkSize),
	}
}

// NewStreamTransport creates a new Transport backed by a duplex byte stream.
func NewStreamTransport(rwc io.ReadWriteCloser) Transport {
	return newStreamTransport(rwc, rwc, rwc)
}

// NewTCPTransport creates a new Transport backed by a TCP connection.
func NewTCPTransport(conn net.Conn) Transport {
	return NewStreamTransport(conn)
}

// DialTCP establishes a TCP connection to the specified address and returns a Transport.
func DialTCP(ctx context.Context, address string) (Transport, error) {
	var d net.Dialer
	conn, dialErr := d.DialContext(ctx, "tcp", address)
	if dialErr != nil {
		return nil, fmt.Errorf("failed to dial TCP %s: %w", address, dialErr)
	}

	return NewTCPTransport(conn), nil
}

// NewStdioTransport creates a new Transport backed by stdin and stdout streams.
// The caller is responsible for ensuring that stdin supports reading and stdout supports writing.
func NewStdioTransport(stdin io.ReadCloser, stdout io.WriteCloser) Transport {
	return newStreamTransport(stdin, stdout, stdin, stdout)
}

func (t *streamTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *streamTransport) ReadMessage() ([]byte, error) {
	t.readMu.Lock()
	defer t.readMu.Unlock()

	for {
		if body, ok := t.decoder.Next(); ok {
			return body, nil
		}

		if t.isClosed() {
			return nil, ErrTransportClosed
		}

		n, readErr := t.reader.Read(t.chunk)
		if n > 0 {
			t.decoder.Feed(t.chunk[:n])
			continue
		}
		if readErr != nil {
			if t.isClosed() {
				return nil, ErrTransportClosed
			}
			return nil, fmt.Errorf("failed to read DAP message: %w", readErr)
		}
	}
}

func (t *streamTransport) WriteMessage(msg any) error {
	if t.isClosed() {
		return ErrTransportClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if encodeErr := Encode(t.writer, msg); encodeErr != nil {
		return encodeErr
	}

	if flushErr := t.writer.Flush(); flushErr != nil {
		return fmt.Errorf("failed to flush DAP message: %w", flushErr)
	}

	return nil
}

func (t *streamTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true

	var errs []error
	for _, c := range t.closers {
		if closeErr := c.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("failed to close stream: %w", closeErr))
		}
	}

	return errors.Join(errs...)
}
