/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

/*
Package dap implements the protocol side of a Debug Adapter Protocol (DAP) server.

# Key Components

  - Decoder, Encode: Content-Length framing of the DAP byte stream
  - Transport: framed message I/O over stdio, TCP or WebSocket connections
  - Session: sequence numbering, request dispatch, requests to the client with
    timeouts, at-most-one response per request and delayed shutdown
  - Router: the command handler table, with default handlers and lifecycle tracking
  - Coordinates: line, column and path conventions negotiated with the client
  - Handles: integer handles for variable references

# Message Flow

Requests are read from the transport and dispatched in arrival order.
Every outgoing message gets the next sequence number of the session at the moment
it is written, so sequence numbers on the wire are strictly increasing.
Responses to requests sent by the adapter complete the matching pending request;
requests still pending when the session ends complete with a "session closed" failure.

# Usage

	router := dap.NewRouter()
	router.Handle("threads", func(ctx context.Context, s *dap.Session, req *dap.Request, resp *dap.Response) {
		resp.Body = ...
		s.SendResponse(resp)
	})

	session := dap.NewSession(dap.SessionConfig{
		Transport: dap.NewStdioTransport(os.Stdin, os.Stdout),
		Router:    router,
		Logger:    log,
	})
	err := session.Run(ctx)

# Diagnostic Logging

WithLogging connects a daplog.Logger to the session. Protocol traffic is traced at
Verbose level and log messages that pass the configured minimum level are sent to
the client as output events.
*/
package dap
