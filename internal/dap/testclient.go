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

	"github.com/google/go-dap"
)

// ClientMessage is a message received by the TestClient, with its body left undecoded.
type ClientMessage struct {
	Seq        int             `json:"seq"`
	Type       string          `json:"type"`
	Command    string          `json:"command,omitempty"`
	Event      string          `json:"event,omitempty"`
	RequestSeq int             `json:"request_seq,omitempty"`
	Success    bool            `json:"success,omitempty"`
	Message    string          `json:"message,omitempty"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// DecodeBody unmarshals the message body into target.
func (m *ClientMessage) DecodeBody(target any) error {
	if len(m.Body) == 0 {
		return fmt.Errorf("%s '%s%s' has no body", m.Type, m.Command, m.Event)
	}
	return json.Unmarshal(m.Body, target)
}

// ReverseRequestHandler answers a request sent by the adapter to the client.
// Returns the response body and whether the request succeeded.
type ReverseRequestHandler func(req *ClientMessage) (body any, success bool)

// TestClient is a DAP client for testing purposes.
// It provides helper methods for common DAP operations.
type TestClient struct {
	transport Transport
	seq       int
	seqMu     sync.Mutex

	// events receives events from the adapter
	events chan *ClientMessage

	// responseChans tracks pending requests waiting for responses
	responseChans map[int]chan *ClientMessage
	responseMu    sync.Mutex

	reverseHandler ReverseRequestHandler

	// received records every message in the order it arrived
	received   []*ClientMessage
	receivedMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTestClient creates a new DAP test client with the given transport.
func NewTestClient(transport Transport) *TestClient {
	ctx, cancel := context.WithCancel(context.Background())
	c := &TestClient{
		transport:     transport,
		events:        make(chan *ClientMessage, 1000),
		responseChans: make(map[int]chan *ClientMessage),
		ctx:           ctx,
		cancel:        cancel,
	}

	c.wg.Add(1)
	go c.readLoop()

	return c
}

// OnReverseRequest installs the handler for requests sent by the adapter.
// Without a handler such requests are answered with a bare success.
func (c *TestClient) OnReverseRequest(handler ReverseRequestHandler) {
	c.responseMu.Lock()
	defer c.responseMu.Unlock()
	c.reverseHandler = handler
}

func (c *TestClient) readLoop() {
	defer c.wg.Done()
	defer close(c.events)

	for {
		body, readErr := c.transport.ReadMessage()
		if readErr != nil {
			return
		}

		var msg ClientMessage
		if unmarshalErr := json.Unmarshal(body, &msg); unmarshalErr != nil {
			continue
		}

		c.receivedMu.Lock()
		c.received = append(c.received, &msg)
		c.receivedMu.Unlock()

		switch msg.Type {
		case MessageTypeResponse:
			c.responseMu.Lock()
			if ch, found := c.responseChans[msg.RequestSeq]; found {
				ch <- &msg
				delete(c.responseChans, msg.RequestSeq)
			}
			c.responseMu.Unlock()

		case MessageTypeEvent:
			select {
			case c.events <- &msg:
			default:
				// Event channel full, drop oldest
				select {
				case <-c.events:
				default:
				}
				c.events <- &msg
			}

		case MessageTypeRequest:
			// Handlers may block
			go c.answerReverseRequest(&msg)
		}
	}
}

func (c *TestClient) answerReverseRequest(req *ClientMessage) {
	c.responseMu.Lock()
	handler := c.reverseHandler
	c.responseMu.Unlock()

	var body any
	success := true
	if handler != nil {
		body, success = handler(req)
	}

	resp := &Response{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: c.nextSeq(), Type: MessageTypeResponse},
			RequestSeq:      req.Seq,
			Command:         req.Command,
			Success:         success,
		},
		Body: body,
	}
	_ = c.transport.WriteMessage(resp)
}

func (c *TestClient) nextSeq() int {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	c.seq++
	return c.seq
}

// Received returns all messages received so far, in arrival order.
func (c *TestClient) Received() []*ClientMessage {
	c.receivedMu.Lock()
	defer c.receivedMu.Unlock()
	return append([]*ClientMessage(nil), c.received...)
}

// Send sends a request without waiting for the response. Returns the sequence number of the request.
func (c *TestClient) Send(command string, args any) (int, error) {
	seq, _, sendErr := c.send(command, args, false)
	return seq, sendErr
}

func (c *TestClient) send(command string, args any, wantResponse bool) (int, chan *ClientMessage, error) {
	req := &Request{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Seq: c.nextSeq(), Type: MessageTypeRequest},
			Command:         command,
		},
	}
	if args != nil {
		rawArgs, marshalErr := json.Marshal(args)
		if marshalErr != nil {
			return 0, nil, fmt.Errorf("failed to marshal '%s' arguments: %w", command, marshalErr)
		}
		req.Arguments = rawArgs
	}

	var respChan chan *ClientMessage
	if wantResponse {
		respChan = make(chan *ClientMessage, 1)
		c.responseMu.Lock()
		c.responseChans[req.Seq] = respChan
		c.responseMu.Unlock()
	}

	if writeErr := c.transport.WriteMessage(req); writeErr != nil {
		c.forget(req.Seq)
		return 0, nil, fmt.Errorf("failed to send request: %w", writeErr)
	}
	return req.Seq, respChan, nil
}

func (c *TestClient) forget(seq int) {
	c.responseMu.Lock()
	defer c.responseMu.Unlock()
	delete(c.responseChans, seq)
}

// Request sends a request and waits for its response. A failed response is not an error.
func (c *TestClient) Request(ctx context.Context, command string, args any) (*ClientMessage, error) {
	seq, respChan, sendErr := c.send(command, args, true)
	if sendErr != nil {
		return nil, sendErr
	}

	select {
	case resp := <-respChan:
		return resp, nil
	case <-ctx.Done():
		c.forget(seq)
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	}
}

// RequestOK sends a request, waits for its response and decodes the response body into body, if not nil.
// A failed response is returned as an error.
func (c *TestClient) RequestOK(ctx context.Context, command string, args any, body any) error {
	resp, reqErr := c.Request(ctx, command, args)
	if reqErr != nil {
		return reqErr
	}
	if !resp.Success {
		return fmt.Errorf("%s failed: %s", command, resp.Message)
	}
	if body != nil {
		return resp.DecodeBody(body)
	}
	return nil
}

// Initialize sends an initialize request and returns the capabilities.
func (c *TestClient) Initialize(ctx context.Context) (*dap.Capabilities, error) {
	var capabilities dap.Capabilities
	initErr := c.RequestOK(ctx, "initialize", dap.InitializeRequestArguments{
		ClientID:        "test-client",
		ClientName:      "DAP Test Client",
		AdapterID:       "mock",
		Locale:          "en-US",
		LinesStartAt1:   true,
		ColumnsStartAt1: true,
		PathFormat:      "path",
	}, &capabilities)
	if initErr != nil {
		return nil, initErr
	}
	return &capabilities, nil
}

// Launch sends a launch request for the given program.
func (c *TestClient) Launch(ctx context.Context, program string, stopOnEntry bool) error {
	return c.RequestOK(ctx, "launch", map[string]any{
		"program":     program,
		"stopOnEntry": stopOnEntry,
	}, nil)
}

// SetBreakpoints sets breakpoints in the given file at the specified lines.
func (c *TestClient) SetBreakpoints(ctx context.Context, file string, lines []int) (*SetBreakpointsResponseBody, error) {
	breakpoints := make([]dap.SourceBreakpoint, len(lines))
	for i, line := range lines {
		breakpoints[i] = dap.SourceBreakpoint{Line: line}
	}

	var body SetBreakpointsResponseBody
	bpErr := c.RequestOK(ctx, "setBreakpoints", dap.SetBreakpointsArguments{
		Source:      dap.Source{Path: file},
		Breakpoints: breakpoints,
	}, &body)
	if bpErr != nil {
		return nil, bpErr
	}
	return &body, nil
}

// ConfigurationDone signals that configuration is complete.
func (c *TestClient) ConfigurationDone(ctx context.Context) error {
	return c.RequestOK(ctx, "configurationDone", nil, nil)
}

// Continue resumes execution.
func (c *TestClient) Continue(ctx context.Context, threadID int) error {
	return c.RequestOK(ctx, "continue", dap.ContinueArguments{ThreadId: threadID}, nil)
}

// Disconnect sends a disconnect request to end the debug session.
func (c *TestClient) Disconnect(ctx context.Context, terminateDebuggee bool) error {
	return c.RequestOK(ctx, "disconnect", dap.DisconnectArguments{TerminateDebuggee: terminateDebuggee}, nil)
}

// WaitForEvent waits for an event with the given name. Other events received meanwhile are discarded.
func (c *TestClient) WaitForEvent(event string, timeout time.Duration) (*ClientMessage, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case msg, isOpen := <-c.events:
			if !isOpen {
				return nil, fmt.Errorf("connection closed while waiting for event %q", event)
			}
			if msg.Event == event {
				return msg, nil
			}

		case <-deadline.C:
			return nil, fmt.Errorf("timeout waiting for event %q", event)

		case <-c.ctx.Done():
			return nil, c.ctx.Err()
		}
	}
}

// WaitForStoppedEvent waits for a stopped event and returns its body.
func (c *TestClient) WaitForStoppedEvent(timeout time.Duration) (*dap.StoppedEventBody, error) {
	msg, waitErr := c.WaitForEvent("stopped", timeout)
	if waitErr != nil {
		return nil, waitErr
	}

	var body dap.StoppedEventBody
	if decodeErr := msg.DecodeBody(&body); decodeErr != nil {
		return nil, decodeErr
	}
	return &body, nil
}

// WaitForTerminatedEvent waits for a terminated event.
func (c *TestClient) WaitForTerminatedEvent(timeout time.Duration) error {
	_, waitErr := c.WaitForEvent("terminated", timeout)
	return waitErr
}

// WaitForClose waits until the adapter closes the connection.
func (c *TestClient) WaitForClose(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("timeout waiting for the connection to close")
	}
}

// Close closes the client and its transport.
func (c *TestClient) Close() error {
	c.cancel()
	closeErr := c.transport.Close()
	c.wg.Wait()
	return closeErr
}
