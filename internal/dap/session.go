/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-dap"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"

	"github.com/cvet/fonline-sub001/internal/daplog"
	"github.com/cvet/fonline-sub001/pkg/pointers"
)

// DefaultShutdownDelay is the time given to in-flight writes before the session closes its transport.
const DefaultShutdownDelay = 100 * time.Millisecond

const tracerName = "github.com/cvet/fonline-sub001/internal/dap"

// SessionConfig contains the parts a Session is composed from.
type SessionConfig struct {
	// Transport carries the framed byte stream to and from the client. Required.
	Transport Transport

	// Router dispatches incoming requests to command handlers.
	// If nil, a router with only the default handlers is used.
	Router *Router

	// Logger is the process logger. If not set, logging is disabled.
	Logger logr.Logger

	// Clock drives request timeouts and the shutdown delay. Defaults to the real clock.
	Clock clock.WithDelayedExecution

	// Tracer records a span for every dispatched request. Defaults to the global tracer provider.
	Tracer trace.Tracer

	// ServerMode is set when the session serves one of many connections of a long-running process.
	// Shutting down a server mode session only closes its transport.
	ServerMode bool

	// ShutdownDelay overrides DefaultShutdownDelay.
	ShutdownDelay time.Duration

	// OnExit is invoked on shutdown when not in server mode, after the shutdown delay.
	OnExit func()

	// OnClose is invoked when the transport closes.
	OnClose func()

	// OnError is invoked for every session error: transport failures and malformed messages.
	OnError func(err error)
}

// SessionOption customizes a Session.
type SessionOption func(s *Session)

// WithLogging installs the logging decorator that traces the protocol traffic to the diagnostic logger.
// The logger is initialized with this session as the destination of its log output events.
func WithLogging(logger *daplog.Logger, logFilePath string) SessionOption {
	return func(s *Session) {
		s.diag = newLoggingDecorator(logger)
		logger.Init(func(msg string, level daplog.Level) {
			s.SendEvent(NewLogOutputEvent(msg, level))
		}, logFilePath, s.serverMode)
	}
}

// Session is a DAP protocol session with one client.
// It owns the sequence counter, the table of requests sent to the client, and dispatches
// client requests to the router in the order they arrive.
type Session struct {
	id         string
	transport  Transport
	router     *Router
	log        logr.Logger
	clock      clock.WithDelayedExecution
	tracer     trace.Tracer
	serverMode bool

	shutdownDelay time.Duration
	onExit        func()
	onClose       func()
	onError       func(err error)

	// diag is the optional logging decorator
	diag *loggingDecorator

	// seq generates sequence numbers for all outgoing messages
	seq *sequenceCounter

	// sendMu keeps sequence numbers and the order of messages on the wire in sync
	sendMu sync.Mutex

	// answered holds the sequence numbers of requests that got a response; protected by sendMu
	answered map[int]struct{}

	// pendingRequests tracks requests sent to the client that await a response
	pendingRequests *pendingRequestMap

	lifetimeCtx  context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	runOnce      sync.Once
}

// NewSession creates a session. Call Run to start processing messages.
func NewSession(cfg SessionConfig, opts ...SessionOption) *Session {
	log := cfg.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	router := cfg.Router
	if router == nil {
		router = NewRouter()
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	shutdownDelay := cfg.ShutdownDelay
	if shutdownDelay == 0 {
		shutdownDelay = DefaultShutdownDelay
	}

	id := uuid.NewString()
	lifetimeCtx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:              id,
		transport:       cfg.Transport,
		router:          router,
		log:             log.WithValues("SessionID", id),
		clock:           clk,
		tracer:          tracer,
		serverMode:      cfg.ServerMode,
		shutdownDelay:   shutdownDelay,
		onExit:          cfg.OnExit,
		onClose:         cfg.OnClose,
		onError:         cfg.OnError,
		seq:             newSequenceCounter(),
		answered:        make(map[int]struct{}),
		pendingRequests: newPendingRequestMap(),
		lifetimeCtx:     lifetimeCtx,
		cancel:          cancel,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ID returns the unique identifier of the session, used in logs and traces.
func (s *Session) ID() string {
	return s.id
}

// Router returns the request router of the session.
func (s *Session) Router() *Router {
	return s.router
}

// Log returns the process logger of the session.
func (s *Session) Log() logr.Logger {
	return s.log
}

// Context returns a context that is cancelled when the session ends.
func (s *Session) Context() context.Context {
	return s.lifetimeCtx
}

// Run consumes messages until the transport closes, a transport error occurs, or ctx is cancelled.
// Returns nil on a clean close.
func (s *Session) Run(ctx context.Context) error {
	var runErr error
	started := false
	s.runOnce.Do(func() {
		started = true
		runErr = s.run(ctx)
	})
	if !started {
		return errors.New("session is already running or has run")
	}
	return runErr
}

func (s *Session) run(ctx context.Context) error {
	stopCloseOnCancel := context.AfterFunc(ctx, func() {
		_ = s.transport.Close()
	})
	defer stopCloseOnCancel()

	s.log.V(1).Info("DAP session started", "ServerMode", s.serverMode)

	var result error
	for {
		body, readErr := s.transport.ReadMessage()
		if readErr != nil {
			if IsClosedError(readErr) || ctx.Err() != nil {
				s.log.V(1).Info("DAP session transport closed")
				if s.onClose != nil {
					s.onClose()
				}
			} else {
				result = readErr
				s.reportError(readErr)
			}
			break
		}

		s.handleMessage(ctx, body)
	}

	s.cancel()
	s.drainPendingRequests()
	s.Shutdown()

	return filterContextError(result, ctx, s.log)
}

// handleMessage routes one decoded message body.
func (s *Session) handleMessage(ctx context.Context, body []byte) {
	msg, decodeErr := decodeMessage(body)
	if decodeErr != nil {
		s.reportError(fmt.Errorf("error handling data: %w", decodeErr))
		return
	}

	switch msg.Type {
	case MessageTypeRequest:
		req := msg.request()
		if s.diag != nil {
			s.diag.incomingRequest(req)
		}
		s.router.dispatch(ctx, s, req)

	case MessageTypeResponse:
		resp := msg.response()
		pending := s.pendingRequests.Get(resp.RequestSeq)
		if pending == nil {
			s.log.Info("Received response for unknown request", "RequestSeq", resp.RequestSeq, "Command", resp.Command)
			return
		}
		if pending.timer != nil {
			pending.timer.Stop()
		}
		if pending.callback != nil {
			pending.callback(resp)
		}

	default:
		s.log.Info("Ignoring message of unexpected type", "Type", msg.Type, "Seq", msg.Seq)
	}
}

// reportError raises the session error lifecycle event.
func (s *Session) reportError(err error) {
	s.log.Error(err, "DAP session error")
	if s.diag != nil {
		s.diag.sessionError(err)
	}
	if s.onError != nil {
		s.onError(err)
	}
}

// SendEvent sends an event to the client.
func (s *Session) SendEvent(evt *Event) {
	evt.Type = MessageTypeEvent
	if s.diag != nil {
		s.diag.outgoingEvent(evt)
	}

	s.sendMu.Lock()
	evt.Seq = s.seq.Next()
	writeErr := s.transport.WriteMessage(evt)
	s.sendMu.Unlock()

	s.router.observeEvent(evt.Event)
	s.handleWriteError(writeErr, "event", evt.Event)
}

// SendResponse sends a response to the client. Every request gets at most one response;
// further attempts are logged and dropped.
func (s *Session) SendResponse(resp *Response) {
	resp.Type = MessageTypeResponse

	s.sendMu.Lock()
	_, alreadyAnswered := s.answered[resp.RequestSeq]
	if resp.Seq != 0 || alreadyAnswered {
		s.sendMu.Unlock()
		s.reportDuplicateResponse(resp)
		return
	}
	s.answered[resp.RequestSeq] = struct{}{}
	s.sendMu.Unlock()

	if s.diag != nil {
		s.diag.outgoingResponse(resp)
	}

	s.sendMu.Lock()
	resp.Seq = s.seq.Next()
	writeErr := s.transport.WriteMessage(resp)
	s.sendMu.Unlock()

	s.handleWriteError(writeErr, "response", resp.Command)
}

func (s *Session) reportDuplicateResponse(resp *Response) {
	msg := fmt.Sprintf("attempt to send more than one response for command %s", resp.Command)
	s.log.Error(errors.New(msg), "Response not sent", "RequestSeq", resp.RequestSeq)
	if s.diag != nil {
		s.diag.logger.Error(msg)
	}
}

// SendRequest sends a request to the client. The callback receives the response, or a failed
// response with message "timeout" if none arrives within timeout. A zero timeout waits
// until the session ends. The callback is invoked exactly once.
// Returns the sequence number assigned to the request.
func (s *Session) SendRequest(command string, args any, timeout time.Duration, callback ResponseCallback) int {
	req := &Request{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: MessageTypeRequest},
			Command:         command,
		},
	}
	if args != nil {
		rawArgs, marshalErr := json.Marshal(args)
		if marshalErr != nil {
			s.log.Error(marshalErr, "Could not serialize request arguments", "Command", command)
			if callback != nil {
				callback(syntheticFailure(0, command, marshalErr.Error()))
			}
			return 0
		}
		req.Arguments = rawArgs
	}

	if s.diag != nil {
		s.diag.outgoingRequest(req, timeout)
	}

	s.sendMu.Lock()
	seq := s.seq.Next()
	req.Seq = seq
	s.pendingRequests.Add(seq, &pendingRequest{command: command, callback: callback})
	if timeout > 0 {
		timer := s.clock.AfterFunc(timeout, func() {
			s.completePending(seq, ErrRequestTimeout.Error(), false)
		})
		if !s.pendingRequests.SetTimer(seq, timer) {
			timer.Stop()
		}
	}
	writeErr := s.transport.WriteMessage(req)
	s.sendMu.Unlock()

	if writeErr != nil {
		s.completePending(seq, writeErr.Error(), true)
	}
	s.handleWriteError(writeErr, "request", command)

	return seq
}

// completePending delivers a synthetic failed response to a request that is still pending.
// stopTimer must be false when called from the timer itself.
func (s *Session) completePending(seq int, message string, stopTimer bool) {
	pending := s.pendingRequests.Get(seq)
	if pending == nil {
		return
	}
	if stopTimer && pending.timer != nil {
		pending.timer.Stop()
	}
	if pending.callback != nil {
		pending.callback(syntheticFailure(seq, pending.command, message))
	}
}

func (s *Session) drainPendingRequests() {
	for seq, pending := range s.pendingRequests.Drain() {
		if pending.timer != nil {
			pending.timer.Stop()
		}
		if pending.callback != nil {
			pending.callback(syntheticFailure(seq, pending.command, ErrSessionClosed.Error()))
		}
	}
}

func syntheticFailure(requestSeq int, command string, message string) *Response {
	return &Response{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Type: MessageTypeResponse},
			RequestSeq:      requestSeq,
			Command:         command,
			Success:         false,
			Message:         message,
		},
	}
}

func (s *Session) handleWriteError(writeErr error, kind string, name string) {
	if writeErr == nil {
		return
	}

	if IsClosedError(writeErr) || s.lifetimeCtx.Err() != nil {
		s.log.V(1).Info("Message not sent, transport is closed", "Kind", kind, "Name", name)
		return
	}

	s.reportError(fmt.Errorf("failed to send %s '%s': %w", kind, name, writeErr))
	s.Shutdown()
}

// SendErrorResponse fails resp with a structured error message and sends it.
// The format is expanded with FormatPII, excluding personal information.
func (s *Session) SendErrorResponse(resp *Response, code int, format string, variables map[string]string, dest ErrorDestination) {
	msg := &ErrorMessage{
		Id:        code,
		Format:    format,
		Variables: variables,
	}
	if dest&ErrorUser != 0 {
		pointers.Make(&msg.ShowUser, true)
	}
	if dest&ErrorTelemetry != 0 {
		pointers.Make(&msg.SendTelemetry, true)
	}
	s.SendErrorMessage(resp, msg)
}

// SendErrorMessage fails resp with a prebuilt error message and sends it.
func (s *Session) SendErrorMessage(resp *Response, msg *ErrorMessage) {
	resp.Success = false
	resp.Message = FormatPII(msg.Format, true, msg.Variables)
	resp.Body = &ErrorResponseBody{Error: msg}

	if pointers.TrueValue(msg.SendTelemetry) {
		s.recordTelemetryError(resp, msg)
	}

	s.SendResponse(resp)
}

func (s *Session) recordTelemetryError(resp *Response, msg *ErrorMessage) {
	_, span := s.tracer.Start(s.lifetimeCtx, "dap.error_response", trace.WithAttributes(
		attribute.String("dap.session_id", s.id),
		attribute.String("dap.command", resp.Command),
		attribute.Int("dap.error.id", msg.Id),
	))
	// Only names starting with '_' are safe to report
	span.SetStatus(codes.Error, FormatPII(msg.Format, true, msg.Variables))
	span.End()
}

// Shutdown ends the session once. After the shutdown delay the transport is closed and,
// unless the session runs in server mode, the exit hook is invoked.
func (s *Session) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.log.V(1).Info("DAP session shutting down", "ServerMode", s.serverMode)
		s.clock.AfterFunc(s.shutdownDelay, func() {
			s.cancel()
			if closeErr := s.transport.Close(); closeErr != nil {
				s.log.Error(closeErr, "Error closing DAP transport")
			}
			if s.diag != nil {
				if disposeErr := s.diag.logger.Dispose(); disposeErr != nil {
					s.log.Error(disposeErr, "Error closing diagnostic log")
				}
			}
			if !s.serverMode && s.onExit != nil {
				s.onExit()
			}
		})
	})
}
