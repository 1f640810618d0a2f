/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func drain(d *Decoder) []string {
	var bodies []string
	for {
		body, ok := d.Next()
		if !ok {
			return bodies
		}
		bodies = append(bodies, string(body))
	}
}

func TestDecoderSingleMessage(t *testing.T) {
	t.Parallel()

	d := NewDecoder()
	d.Feed([]byte("Content-Length: 13\r\n\r\n{\"seq\":1,\"a\"}"))

	require.Equal(t, []string{`{"seq":1,"a"}`}, drain(d))
	require.Equal(t, 0, d.Buffered())
}

func TestDecoderHandlesArbitraryChunking(t *testing.T) {
	t.Parallel()

	var stream bytes.Buffer
	messages := []map[string]any{
		{"seq": float64(1), "type": "request", "command": "initialize"},
		{"seq": float64(2), "type": "request", "command": "launch", "arguments": map[string]any{"program": "/tmp/ü.md"}},
		{"seq": float64(3), "type": "request", "command": "threads"},
	}
	for _, m := range messages {
		require.NoError(t, Encode(&stream, m))
	}
	wire := stream.Bytes()

	for chunkSize := 1; chunkSize <= len(wire); chunkSize++ {
		d := NewDecoder()
		var bodies []string
		for start := 0; start < len(wire); start += chunkSize {
			end := min(start+chunkSize, len(wire))
			d.Feed(wire[start:end])
			bodies = append(bodies, drain(d)...)
		}

		require.Len(t, bodies, len(messages), "chunk size %d", chunkSize)
		for i, body := range bodies {
			var decoded map[string]any
			require.NoError(t, json.Unmarshal([]byte(body), &decoded))
			if diff := cmp.Diff(messages[i], decoded); diff != "" {
				t.Fatalf("chunk size %d, message %d mismatch (-want +got):\n%s", chunkSize, i, diff)
			}
		}
	}
}

func TestDecoderWaitsForCompleteBody(t *testing.T) {
	t.Parallel()

	d := NewDecoder()
	d.Feed([]byte("Content-Length: 10\r\n\r\n12345"))
	_, ok := d.Next()
	require.False(t, ok)

	d.Feed([]byte("67890"))
	require.Equal(t, []string{"1234567890"}, drain(d))
}

func TestDecoderLengthCountsBytes(t *testing.T) {
	t.Parallel()

	// "ü" is two bytes in UTF-8
	d := NewDecoder()
	d.Feed([]byte("Content-Length: 4\r\n\r\n\"ü\"{"))
	require.Equal(t, []string{`"ü"`}, drain(d))
	require.Equal(t, 1, d.Buffered())
}

func TestDecoderHeaderVariants(t *testing.T) {
	t.Parallel()

	t.Run("extra header fields are ignored", func(t *testing.T) {
		t.Parallel()
		d := NewDecoder()
		d.Feed([]byte("Content-Type: application/json\r\nContent-Length: 2\r\n\r\n{}"))
		require.Equal(t, []string{"{}"}, drain(d))
	})

	t.Run("several spaces after the colon", func(t *testing.T) {
		t.Parallel()
		d := NewDecoder()
		d.Feed([]byte("Content-Length:    2\r\n\r\n{}"))
		require.Equal(t, []string{"{}"}, drain(d))
	})

	t.Run("header without length is skipped", func(t *testing.T) {
		t.Parallel()
		d := NewDecoder()
		d.Feed([]byte("X-Other: 1\r\n\r\nContent-Length: 2\r\n\r\n{}"))
		require.Equal(t, []string{"{}"}, drain(d))
	})

	t.Run("empty body is skipped", func(t *testing.T) {
		t.Parallel()
		d := NewDecoder()
		d.Feed([]byte("Content-Length: 0\r\n\r\nContent-Length: 2\r\n\r\n{}"))
		require.Equal(t, []string{"{}"}, drain(d))
	})
}

func TestFrameProducesContentLengthHeader(t *testing.T) {
	t.Parallel()

	frame, frameErr := Frame(map[string]string{"x": "ü"})
	require.NoError(t, frameErr)
	require.Equal(t, "Content-Length: 10\r\n\r\n{\"x\":\"ü\"}", string(frame))
}
