package main

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"entropyd/internal/jsonvalue"
)

// Client is a thin wrapper over one control-protocol connection, framing
// every request/response as NUL-terminated UTF-8 JSON.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
}

var tokenCounter atomic.Int64

func init() {
	tokenCounter.Store(time.Now().UnixNano())
}

func nextToken() int64 {
	return tokenCounter.Add(1)
}

// Dial connects to addr ("tcp:host:port" or an absolute UNIX socket
// path) and, for TCP connections carrying a bearer token, sends the
// authentication frame the server requires before the request loop.
func Dial(addr, token string) (*Client, error) {
	network, target := "unix", addr
	if strings.HasPrefix(addr, "tcp:") {
		network, target = "tcp", strings.TrimPrefix(addr, "tcp:")
	}

	conn, err := net.DialTimeout(network, target, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	cl := &Client{conn: conn, reader: bufio.NewReader(conn)}

	if network == "tcp" && token != "" {
		if _, err := conn.Write(append([]byte(token), 0)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("send auth token: %w", err)
		}
	}
	return cl, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends a [command, token, ...args] request and waits for its reply.
func (c *Client) Call(command string, args ...jsonvalue.Value) (jsonvalue.Value, error) {
	req := append([]jsonvalue.Value{jsonvalue.String(command), jsonvalue.Int(nextToken())}, args...)
	encoded := jsonvalue.Encode(jsonvalue.ArrayFrom(req))

	if _, err := c.conn.Write(append([]byte(encoded), 0)); err != nil {
		return jsonvalue.Value{}, fmt.Errorf("write request: %w", err)
	}

	raw, err := c.reader.ReadBytes(0)
	if err != nil {
		return jsonvalue.Value{}, fmt.Errorf("read response: %w", err)
	}
	raw = raw[:len(raw)-1]

	v, err := jsonvalue.Parse(raw)
	if err != nil {
		return jsonvalue.Value{}, fmt.Errorf("parse response: %w", err)
	}
	return v, nil
}
