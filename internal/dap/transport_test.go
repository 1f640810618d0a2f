/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-dap"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	"github.com/cvet/fonline-sub001/pkg/testutil"
)

func threadsRequest(seq int) *Request {
	return &Request{Request: dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Seq: seq, Type: MessageTypeRequest},
		Command:         "threads",
	}}
}

func readCommand(t *testing.T, tr Transport) (int, string) {
	t.Helper()
	body, readErr := tr.ReadMessage()
	require.NoError(t, readErr)

	var msg ClientMessage
	require.NoError(t, json.Unmarshal(body, &msg))
	return msg.Seq, msg.Command
}

func TestTCPTransport(t *testing.T) {
	t.Parallel()

	listener, listenErr := nettest.NewLocalListener("tcp")
	require.NoError(t, listenErr)
	defer listener.Close()

	var serverConn net.Conn
	var acceptErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		serverConn, acceptErr = listener.Accept()
	}()

	ctx := testutil.TestContext(t, 5*time.Second)
	clientTransport, dialErr := DialTCP(ctx, listener.Addr().String())
	require.NoError(t, dialErr)

	wg.Wait()
	require.NoError(t, acceptErr)
	serverTransport := NewTCPTransport(serverConn)
	defer serverTransport.Close()

	t.Run("write and read message", func(t *testing.T) {
		require.NoError(t, clientTransport.WriteMessage(threadsRequest(1)))
		require.NoError(t, clientTransport.WriteMessage(threadsRequest(2)))

		seq, command := readCommand(t, serverTransport)
		assert.Equal(t, 1, seq)
		assert.Equal(t, "threads", command)
		seq, _ = readCommand(t, serverTransport)
		assert.Equal(t, 2, seq)
	})

	t.Run("close prevents further operations", func(t *testing.T) {
		assert.NoError(t, clientTransport.Close())

		writeErr := clientTransport.WriteMessage(threadsRequest(3))
		assert.ErrorIs(t, writeErr, ErrTransportClosed)

		_, readErr := serverTransport.ReadMessage()
		assert.True(t, IsClosedError(readErr), "unexpected error: %v", readErr)

		// Double close should not fail
		assert.NoError(t, clientTransport.Close())
	})
}

func TestStreamTransportReassemblesSplitWrites(t *testing.T) {
	t.Parallel()

	serverConn, clientConn := net.Pipe()
	serverTransport := NewStreamTransport(serverConn)
	defer serverTransport.Close()
	defer clientConn.Close()

	frame, frameErr := Frame(threadsRequest(7))
	require.NoError(t, frameErr)

	go func() {
		for _, b := range frame {
			if _, writeErr := clientConn.Write([]byte{b}); writeErr != nil {
				return
			}
		}
	}()

	seq, command := readCommand(t, serverTransport)
	assert.Equal(t, 7, seq)
	assert.Equal(t, "threads", command)
}

func TestStreamTransportCloseUnblocksRead(t *testing.T) {
	t.Parallel()

	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	serverTransport := NewStreamTransport(serverConn)

	readDone := make(chan error, 1)
	go func() {
		_, readErr := serverTransport.ReadMessage()
		readDone <- readErr
	}()

	require.NoError(t, serverTransport.Close())

	select {
	case readErr := <-readDone:
		assert.ErrorIs(t, readErr, ErrTransportClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("ReadMessage did not return after Close")
	}
}

func TestWebSocketTransport(t *testing.T) {
	t.Parallel()

	serverSide := make(chan Transport, 1)
	done := make(chan struct{})
	server := httptest.NewServer(WebSocketHandler(logr.Discard(), nil, func(tr Transport) {
		serverSide <- tr
		<-done
	}))
	defer server.Close()
	defer close(done)

	ctx := testutil.TestContext(t, 5*time.Second)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + WebSocketPath
	clientTransport, dialErr := DialWebSocket(ctx, url)
	require.NoError(t, dialErr)
	defer clientTransport.Close()

	var serverTransport Transport
	select {
	case serverTransport = <-serverSide:
	case <-ctx.Done():
		t.Fatal("WebSocket connection was not accepted")
	}

	require.NoError(t, clientTransport.WriteMessage(threadsRequest(1)))
	seq, command := readCommand(t, serverTransport)
	assert.Equal(t, 1, seq)
	assert.Equal(t, "threads", command)

	require.NoError(t, serverTransport.WriteMessage(NewEvent("initialized", nil)))
	body, readErr := clientTransport.ReadMessage()
	require.NoError(t, readErr)
	assert.Contains(t, string(body), `"event":"initialized"`)

	require.NoError(t, serverTransport.Close())
	_, readErr = clientTransport.ReadMessage()
	assert.True(t, IsClosedError(readErr), "unexpected error: %v", readErr)
}

func TestWebSocketHandlerChecksOrigin(t *testing.T) {
	t.Parallel()

	accepted := make(chan Transport, 4)
	server := httptest.NewServer(WebSocketHandler(logr.Discard(), []string{"http://editor.local:3000/"}, func(tr Transport) {
		accepted <- tr
		_ = tr.Close()
	}))
	defer server.Close()

	ctx := testutil.TestContext(t, 5*time.Second)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + WebSocketPath

	dial := func(origin string) (int, error) {
		header := http.Header{}
		if origin != "" {
			header.Set("Origin", origin)
		}
		conn, resp, dialErr := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
		if conn != nil {
			_ = conn.Close()
		}
		if resp != nil {
			return resp.StatusCode, dialErr
		}
		return 0, dialErr
	}

	type testcase struct {
		description string
		origin      string
		allowed     bool
	}

	testcases := []testcase{
		{"no origin", "", true},
		{"same origin", server.URL, true},
		{"allowed origin", "http://editor.local:3000", true},
		{"foreign web page", "http://evil.example", false},
		{"allowed host on another port", "http://editor.local:4000", false},
	}

	for _, tc := range testcases {
		status, dialErr := dial(tc.origin)
		if tc.allowed {
			require.NoError(t, dialErr, tc.description)
		} else {
			require.Error(t, dialErr, tc.description)
			assert.Equal(t, http.StatusForbidden, status, tc.description)
		}
	}
	require.Eventually(t, func() bool { return len(accepted) == 3 }, 5*time.Second, 10*time.Millisecond)
}
