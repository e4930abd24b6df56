// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/babble-foundation/babble/lib/codec"
	"github.com/babble-foundation/babble/schema"
)

// dialTimeout covers only the connect phase; the server's own
// timeouts govern the rest of the exchange.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long the client waits for a response
// after writing its request. Matched to the server's readTimeout +
// writeTimeout plus handler headroom.
const responseReadTimeout = 45 * time.Second

// maxResponseSize mirrors the server's maxRequestSize.
const maxResponseSize = 1024 * 1024

// CallError is returned when the server responds ok=false without a
// structured code. Coded failures come back as *schema.Error instead.
type CallError struct {
	Action  string
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("rpc error on %q: %s", e.Action, e.Message)
}

// Client sends CBOR requests to the babble service socket. Each Call
// opens a new connection, matching the server's one-request-per-
// connection model.
type Client struct {
	socketPath string
}

// NewClient creates a client for the socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Call sends one request and decodes the response. The fields map
// holds the handler-specific request fields; the client injects
// "action". On ok=true with data, the data decodes into result when
// result is non-nil. On ok=false with a code, the error is the same
// *schema.Error the handler returned, so schema.IsCode works across
// the socket.
func (c *Client) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}

	if !response.OK {
		if response.Code != "" {
			return &schema.Error{Code: response.Code, Message: response.Error}
		}
		return &CallError{Action: action, Message: response.Error}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

// send connects, writes the request, half-closes the write side, and
// reads the response.
func (c *Client) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	// CBOR is self-delimiting, but the half-close lets the server's
	// read side see a clean EOF.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}
