/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/trace"

	"github.com/cvet/fonline-sub001/internal/dap"
	"github.com/cvet/fonline-sub001/internal/daplog"
	"github.com/cvet/fonline-sub001/internal/mockdebug"
	"github.com/cvet/fonline-sub001/pkg/resiliency"
)

const (
	listenRetryTimeout      = 10 * time.Second
	gracefulShutdownTimeout = 5 * time.Second
)

// server creates a debug session with a mock debug adapter for every client connection.
type server struct {
	log    logr.Logger
	tracer trace.Tracer
	cfg    Config

	// sessions tracks the running sessions of a server mode process
	sessions sync.WaitGroup
}

func newServer(log logr.Logger, tracer trace.Tracer, cfg Config) *server {
	return &server{
		log:    log,
		tracer: tracer,
		cfg:    cfg,
	}
}

func (srv *server) newSession(transport dap.Transport, serverMode bool, onExit func()) *dap.Session {
	diag := daplog.New(srv.log)
	session := dap.NewSession(dap.SessionConfig{
		Transport:  transport,
		Logger:     srv.log,
		Tracer:     srv.tracer,
		ServerMode: serverMode,
		OnExit:     onExit,
		OnError: func(err error) {
			srv.log.V(1).Info("Debug session reported an error", "Error", err.Error())
		},
	}, dap.WithLogging(diag, srv.cfg.LogFile))

	mockdebug.NewAdapter(mockdebug.Config{
		DiagnosticLogger: diag,
		Logger:           session.Log(),
		Trace:            srv.cfg.Trace,
	}).Attach(session)

	return session
}

// runSession runs a server mode session on its own goroutine.
func (srv *server) runSession(ctx context.Context, transport dap.Transport) {
	session := srv.newSession(transport, true, nil)
	srv.sessions.Add(1)
	go func() {
		defer srv.sessions.Done()
		defer func() {
			if panicErr := resiliency.MakePanicError(recover(), session.Log()); panicErr != nil {
				_ = transport.Close()
			}
		}()

		if runErr := session.Run(ctx); runErr != nil {
			session.Log().Error(runErr, "Debug session ended with an error")
		}
	}()
}

// serveStdio runs a single session over the standard input and output. It ends with the session.
func (srv *server) serveStdio(ctx context.Context) error {
	exited := make(chan struct{})
	session := srv.newSession(dap.NewStdioTransport(os.Stdin, os.Stdout), false, func() {
		close(exited)
	})

	runErr := session.Run(ctx)
	select {
	case <-exited:
	case <-ctx.Done():
	}
	return runErr
}

// listen creates a TCP listener, retrying while the address is in use.
func (srv *server) listen(ctx context.Context, address string) (net.Listener, error) {
	lc := net.ListenConfig{}
	return resiliency.RetryGetNotify(ctx, resiliency.NewBoundedBackOff(0, listenRetryTimeout), func() (net.Listener, error) {
		return lc.Listen(ctx, "tcp", address)
	}, func(listenErr error, next time.Duration) {
		srv.log.V(1).Info("Could not listen, retrying...", "Address", address, "Error", listenErr.Error(), "Delay", next.String())
	})
}

// serveTCP accepts debug sessions on a TCP port until the context is cancelled.
func (srv *server) serveTCP(ctx context.Context, port int) error {
	listener, listenErr := srv.listen(ctx, net.JoinHostPort("", strconv.Itoa(port)))
	if listenErr != nil {
		return fmt.Errorf("could not listen on port %d: %w", port, listenErr)
	}

	srv.log.Info("Waiting for debug protocol", "Port", port)
	return srv.serveListener(ctx, listener)
}

// serveListener accepts debug sessions from the listener until the context is cancelled.
// The listener is closed when serveListener returns.
func (srv *server) serveListener(ctx context.Context, listener net.Listener) error {
	stopCloseOnCancel := context.AfterFunc(ctx, func() {
		_ = listener.Close()
	})
	defer stopCloseOnCancel()
	defer func() { _ = listener.Close() }()

	for {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			if ctx.Err() != nil || errors.Is(acceptErr, net.ErrClosed) {
				srv.log.V(1).Info("Stopped accepting debug sessions", "Address", listener.Addr().String())
				srv.sessions.Wait()
				return nil
			}
			return fmt.Errorf("could not accept debug session: %w", acceptErr)
		}

		srv.log.V(1).Info("Accepted debug session", "RemoteAddr", conn.RemoteAddr().String())
		srv.runSession(ctx, dap.NewTCPTransport(conn))
	}
}

// serveWebSocket accepts debug sessions as WebSocket connections until the context is cancelled.
func (srv *server) serveWebSocket(ctx context.Context, address string) error {
	listener, listenErr := srv.listen(ctx, address)
	if listenErr != nil {
		return fmt.Errorf("could not listen on '%s': %w", address, listenErr)
	}

	srv.log.Info("Waiting for debug protocol", "URL", "ws://"+listener.Addr().String()+dap.WebSocketPath)
	return srv.serveWebSocketListener(ctx, listener)
}

func (srv *server) serveWebSocketListener(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler: dap.WebSocketHandler(srv.log, srv.cfg.WebSocketOrigins, func(transport dap.Transport) {
			srv.runSession(ctx, transport)
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErrChan := make(chan error, 1)
	go func() {
		serveErr := httpServer.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			serveErrChan <- serveErr
		}
		close(serveErrChan)
	}()

	select {
	case <-ctx.Done():
		// WebSocket connections are hijacked, the HTTP server does not track them.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()
		shutdownErr := httpServer.Shutdown(shutdownCtx)
		srv.sessions.Wait()
		return shutdownErr

	case serveErr, isOpen := <-serveErrChan:
		if !isOpen {
			return nil
		}
		srv.log.Error(serveErr, "WebSocket server encountered an error")
		return serveErr
	}
}
