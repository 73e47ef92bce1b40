package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 5 * time.Second
	soh          = "\x01"
)

// Conn is a line of framed messages over TCP. Send is safe for concurrent
// use; reading happens on a single goroutine started by Run.
type Conn struct {
	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// Dial opens the venue connection.
func Dial(ctx context.Context, host string, port int) (*Conn, error) {
	d := net.Dialer{Timeout: dialTimeout}
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	log.WithField("addr", addr).Info("connected")
	return &Conn{conn: conn}, nil
}

// Send writes one framed message. The message already carries its own
// framing and checksum; nothing is added here.
func (c *Conn) Send(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection is closed")
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if _, err := c.conn.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// Run reads framed messages until the connection drops or the context is
// cancelled, handing each complete message to the handler. Messages end at
// the checksum field's delimiter, so the stream is split on the trailer
// "10=nnn" plus delimiter.
func (c *Conn) Run(ctx context.Context, handler func(raw string)) error {
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(splitMessages)
	for scanner.Scan() {
		handler(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read: %w", err)
	}
	return ctx.Err()
}

// splitMessages tokenizes the byte stream into whole framed messages,
// ending each one after the checksum field.
func splitMessages(data []byte, atEOF bool) (advance int, token []byte, err error) {
	idx := strings.Index(string(data), soh+"10=")
	if idx >= 0 {
		// Checksum field is "10=" plus three digits plus the delimiter.
		end := idx + 1 + 3 + 3 + 1
		if len(data) >= end {
			return end, data[:end], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
