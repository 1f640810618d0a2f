/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	// WebSocketPath is the HTTP route serving DAP connections in WebSocket mode.
	WebSocketPath = "/dap"

	wsCloseTimeout = time.Second
)

// wsTransport implements Transport over a WebSocket connection.
// Every data frame is treated as a chunk of the DAP byte stream, so messages may span
// frames and a frame may carry more than one message.
type wsTransport struct {
	conn    *websocket.Conn
	decoder *Decoder

	readMu  sync.Mutex
	writeMu sync.Mutex

	closed bool
	mu     sync.Mutex
}

// NewWebSocketTransport creates a new Transport backed by an established WebSocket connection.
func NewWebSocketTransport(conn *websocket.Conn) Transport {
	return &wsTransport{
		conn:    conn,
		decoder: NewDecoder(),
	}
}

// DialWebSocket connects to a DAP WebSocket endpoint, e.g. ws://localhost:4711/dap.
func DialWebSocket(ctx context.Context, url string) (Transport, error) {
	conn, _, dialErr := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if dialErr != nil {
		return nil, fmt.Errorf("failed to dial WebSocket %s: %w", url, dialErr)
	}
	return NewWebSocketTransport(conn), nil
}

func (t *wsTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	t.readMu.Lock()
	defer t.readMu.Unlock()

	for {
		if body, ok := t.decoder.Next(); ok {
			return body, nil
		}

		if t.isClosed() {
			return nil, ErrTransportClosed
		}

		msgType, chunk, readErr := t.conn.ReadMessage()
		if readErr != nil {
			var closeErr *websocket.CloseError
			if t.isClosed() || errors.As(readErr, &closeErr) {
				return nil, ErrTransportClosed
			}
			return nil, fmt.Errorf("failed to read DAP message: %w", readErr)
		}

		switch msgType {
		// Ping and Pong are handled by the WebSocket library
		case websocket.TextMessage, websocket.BinaryMessage:
			t.decoder.Feed(chunk)
		}
	}
}

func (t *wsTransport) WriteMessage(msg any) error {
	if t.isClosed() {
		return ErrTransportClosed
	}

	frame, frameErr := Frame(msg)
	if frameErr != nil {
		return frameErr
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if writeErr := t.conn.WriteMessage(websocket.BinaryMessage, frame); writeErr != nil {
		return fmt.Errorf("failed to write DAP message: %w", writeErr)
	}
	return nil
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	t.writeMu.Lock()
	_ = t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsCloseTimeout),
	)
	t.writeMu.Unlock()

	if closeErr := t.conn.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
		return fmt.Errorf("failed to close WebSocket connection: %w", closeErr)
	}
	return nil
}

// WebSocketHandler returns an HTTP handler that upgrades requests on WebSocketPath
// and passes every new connection, wrapped as a Transport, to serve.
// serve is called on the HTTP server goroutine for the connection and may block.
// Browser connections are accepted from the server's own origin and from allowedOrigins ("*" allows any origin).
func WebSocketHandler(log logr.Logger, allowedOrigins []string, serve func(Transport)) http.Handler {
	upgrader := websocket.Upgrader{
		CheckOrigin: originChecker(allowedOrigins),
	}

	router := mux.NewRouter()
	router.HandleFunc(WebSocketPath, func(w http.ResponseWriter, r *http.Request) {
		conn, upgradeErr := upgrader.Upgrade(w, r, nil)
		if upgradeErr != nil {
			log.Error(upgradeErr, "Failed to upgrade DAP WebSocket connection", "RemoteAddr", r.RemoteAddr, "Origin", r.Header.Get("Origin"))
			return
		}

		log.V(1).Info("Accepted DAP WebSocket connection", "RemoteAddr", r.RemoteAddr)
		serve(NewWebSocketTransport(conn))
	})

	return router
}

// originChecker accepts requests without an Origin header (non-browser clients),
// same-origin requests and requests from one of the allowed origins.
func originChecker(allowedOrigins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		u, parseErr := url.Parse(origin)
		if parseErr != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}

		return slices.ContainsFunc(allowedOrigins, func(allowed string) bool {
			return allowed == "*" || strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin)
		})
	}
}
