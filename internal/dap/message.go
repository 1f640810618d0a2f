/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/go-dap"
	"k8s.io/utils/clock"
)

const (
	MessageTypeRequest  = "request"
	MessageTypeResponse = "response"
	MessageTypeEvent    = "event"
)

// Request is a DAP request whose arguments are decoded by the handler that serves it.
type Request struct {
	dap.Request
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// DecodeArguments unmarshals the request arguments into target.
// Missing arguments leave target unchanged.
func (r *Request) DecodeArguments(target any) error {
	if len(r.Arguments) == 0 || string(r.Arguments) == "null" {
		return nil
	}
	if unmarshalErr := json.Unmarshal(r.Arguments, target); unmarshalErr != nil {
		return fmt.Errorf("invalid arguments for command '%s': %w", r.Command, unmarshalErr)
	}
	return nil
}

// Response is a DAP response with an arbitrary body.
type Response struct {
	dap.Response
	Body any `json:"body,omitempty"`
}

// Event is a DAP event with an arbitrary body.
type Event struct {
	dap.Event
	Body any `json:"body,omitempty"`

	// logOutput marks output events produced by the diagnostic logger.
	logOutput bool
}

// NewResponse creates a successful response for req. The sequence number is assigned when it is sent.
func NewResponse(req *Request) *Response {
	return &Response{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Type: MessageTypeResponse},
			RequestSeq:      req.Seq,
			Command:         req.Command,
			Success:         true,
		},
	}
}

// NewEvent creates an event with the given name and body.
func NewEvent(name string, body any) *Event {
	return &Event{
		Event: dap.Event{
			ProtocolMessage: dap.ProtocolMessage{Type: MessageTypeEvent},
			Event:           name,
		},
		Body: body,
	}
}

// NewOutputEvent creates an output event with the given text and category.
func NewOutputEvent(output string, category string) *Event {
	return NewEvent("output", &OutputEventBody{Category: category, Output: output})
}

// IsLogOutput reports whether the event was produced by the diagnostic logger.
func (e *Event) IsLogOutput() bool {
	return e.logOutput
}

// incomingMessage holds the fields of any DAP message that the session needs to route it.
type incomingMessage struct {
	dap.ProtocolMessage
	Command    string          `json:"command"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	RequestSeq int             `json:"request_seq"`
	Success    bool            `json:"success"`
	Message    string          `json:"message,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	Event      string          `json:"event"`
}

func decodeMessage(payload []byte) (*incomingMessage, error) {
	var msg incomingMessage
	if unmarshalErr := json.Unmarshal(payload, &msg); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to parse DAP message: %w", unmarshalErr)
	}
	return &msg, nil
}

func (m *incomingMessage) request() *Request {
	return &Request{
		Request: dap.Request{
			ProtocolMessage: m.ProtocolMessage,
			Command:         m.Command,
		},
		Arguments: m.Arguments,
	}
}

func (m *incomingMessage) response() *Response {
	resp := &Response{
		Response: dap.Response{
			ProtocolMessage: m.ProtocolMessage,
			RequestSeq:      m.RequestSeq,
			Command:         m.Command,
			Success:         m.Success,
			Message:         m.Message,
		},
	}
	if len(m.Body) > 0 {
		resp.Body = m.Body
	}
	return resp
}

// ResponseCallback receives the response to a request sent by the adapter.
type ResponseCallback func(resp *Response)

// pendingRequest tracks a request sent to the client that is awaiting a response.
type pendingRequest struct {
	command  string
	callback ResponseCallback

	// timer fires the synthetic timeout response; nil when the request has no timeout.
	timer clock.Timer
}

// pendingRequestMap is a thread-safe map of pending requests keyed by sequence number.
// Removal is the synchronization point: whoever removes an entry owns its callback.
type pendingRequestMap struct {
	mu       sync.Mutex
	requests map[int]*pendingRequest
}

func newPendingRequestMap() *pendingRequestMap {
	return &pendingRequestMap{
		requests: make(map[int]*pendingRequest),
	}
}

// Add adds a pending request to the map.
func (m *pendingRequestMap) Add(seq int, req *pendingRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[seq] = req
}

// Get retrieves and removes a pending request from the map.
// Returns nil if no request exists for the given sequence number.
func (m *pendingRequestMap) Get(seq int) *pendingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[seq]
	if !ok {
		return nil
	}

	delete(m.requests, seq)
	return req
}

// SetTimer attaches a timeout timer to a pending request.
// Returns false if the request is no longer pending.
func (m *pendingRequestMap) SetTimer(seq int, timer clock.Timer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[seq]
	if !ok {
		return false
	}
	req.timer = timer
	return true
}

// Len returns the number of pending requests.
func (m *pendingRequestMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Drain removes and returns all pending requests, keyed by sequence number.
func (m *pendingRequestMap) Drain() map[int]*pendingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	drained := m.requests
	m.requests = make(map[int]*pendingRequest)
	return drained
}

// sequenceCounter provides thread-safe sequence number generation.
type sequenceCounter struct {
	mu  sync.Mutex
	seq int
}

// newSequenceCounter creates a new sequence counter starting at 0.
func newSequenceCounter() *sequenceCounter {
	return &sequenceCounter{seq: 0}
}

// Next returns the next sequence number.
func (c *sequenceCounter) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *sequenceCounter) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}
