/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/go-dap"
)

const contentLengthHeader = "Content-Length"

var (
	headerTerminator     = []byte("\r\n\r\n")
	headerFieldSeparator = regexp.MustCompile(": +")
)

// Decoder splits a DAP byte stream into message bodies.
// Bytes are fed incrementally; a message becomes available once its header and
// its complete body have been received. The Decoder is not safe for concurrent use.
type Decoder struct {
	buf []byte

	// contentLength is the length of the body being waited for, or -1 while a header is expected.
	contentLength int
}

// NewDecoder creates a Decoder with an empty buffer.
func NewDecoder() *Decoder {
	return &Decoder{contentLength: -1}
}

// Feed appends a chunk of bytes read from the stream.
func (d *Decoder) Feed(chunk []byte) {
	d.buf = append(d.buf, chunk...)
}

// Buffered returns the number of bytes received but not yet consumed.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next returns the next complete message body.
// It returns false when more bytes are needed. Empty bodies are skipped.
func (d *Decoder) Next() ([]byte, bool) {
	for {
		if d.contentLength >= 0 {
			if len(d.buf) < d.contentLength {
				return nil, false
			}

			body := make([]byte, d.contentLength)
			copy(body, d.buf[:d.contentLength])
			d.consume(d.contentLength)
			d.contentLength = -1

			if len(body) == 0 {
				continue
			}
			return body, true
		}

		idx := bytes.Index(d.buf, headerTerminator)
		if idx < 0 {
			return nil, false
		}

		d.contentLength = parseContentLength(string(d.buf[:idx]))
		d.consume(idx + len(headerTerminator))
	}
}

func (d *Decoder) consume(n int) {
	d.buf = d.buf[n:]
	if len(d.buf) == 0 {
		d.buf = nil
	}
}

// parseContentLength returns the value of the last Content-Length header line, or -1 if there is none.
func parseContentLength(header string) int {
	length := -1
	for _, line := range strings.Split(header, "\r\n") {
		pair := headerFieldSeparator.Split(line, -1)
		if len(pair) < 2 || pair[0] != contentLengthHeader {
			continue
		}

		value, convErr := strconv.Atoi(strings.TrimSpace(pair[1]))
		if convErr != nil || value < 0 {
			length = -1
			continue
		}
		length = value
	}
	return length
}

// Encode serializes msg as JSON and writes it to w with a Content-Length header.
func Encode(w io.Writer, msg any) error {
	payload, marshalErr := json.Marshal(msg)
	if marshalErr != nil {
		return fmt.Errorf("failed to serialize DAP message: %w", marshalErr)
	}

	if writeErr := dap.WriteBaseMessage(w, payload); writeErr != nil {
		return fmt.Errorf("failed to write DAP message: %w", writeErr)
	}

	return nil
}

// Frame returns the wire representation of msg.
func Frame(msg any) ([]byte, error) {
	var buf bytes.Buffer
	if encodeErr := Encode(&buf, msg); encodeErr != nil {
		return nil, encodeErr
	}
	return buf.Bytes(), nil
}
