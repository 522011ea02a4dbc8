package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/Leegeev/topicbroker/pkg/protocol"
)

// session is one client connection to the broker.
type session struct {
	conn net.Conn
	r    *bufio.Reader
}

// dial connects to addr and consumes the greeting. The connection is closed
// when ctx is done.
func dial(ctx context.Context, addr string) (*session, func(), error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot connect to broker at %s: %w", addr, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	closeFn := func() {
		stop()
		_ = conn.Close()
	}

	s := &session{conn: conn, r: bufio.NewReader(conn)}
	line, err := s.readLine()
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("read greeting: %w", err)
	}
	if p, ok := protocol.ParsePush(line); !ok || p != (protocol.Hi{}) {
		closeFn()
		return nil, nil, fmt.Errorf("unexpected greeting %q", line)
	}
	return s, closeFn, nil
}

func (s *session) readLine() (string, error) {
	line, err := s.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r"), nil
		}
		return "", err
	}
	return strings.TrimRight(strings.TrimSuffix(line, "\n"), "\r"), nil
}

// request sends req and waits for its response.
func (s *session) request(req protocol.Request) error {
	if _, err := io.WriteString(s.conn, protocol.FormatRequest(req)+"\n"); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	line, err := s.readLine()
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	resp, ok := protocol.ParseResponse(line)
	if !ok {
		return fmt.Errorf("unexpected response %q", line)
	}
	if resp.Err != "" {
		return fmt.Errorf("request rejected: %w", resp.Err)
	}
	return nil
}

// runPublish publishes one message and returns.
func runPublish(ctx context.Context, addr, topic, msg string, out io.Writer) error {
	s, closeFn, err := dial(ctx, addr)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := s.request(protocol.Publish{Topic: topic, Content: msg}); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	fmt.Fprintf(out, "-> published %q to %q\n", msg, topic)
	return nil
}

// runSubscribe subscribes to topics and prints every delivered message until
// the broker says bye, the connection ends or ctx is done.
func runSubscribe(ctx context.Context, addr string, topics []string, out io.Writer) error {
	s, closeFn, err := dial(ctx, addr)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := s.request(protocol.Subscribe{Topics: topics}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	fmt.Fprintf(out, "subscribed to %s\n", strings.Join(topics, ", "))

	for {
		line, err := s.readLine()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		switch p, _ := protocol.ParsePush(line); p := p.(type) {
		case protocol.Message:
			fmt.Fprintf(out, "<- event on %q: %q\n", p.Topic, p.Content)
		case protocol.Bye:
			fmt.Fprintln(out, "broker is shutting down")
			return nil
		default:
			return fmt.Errorf("unexpected line %q", line)
		}
	}
}

// splitTopics turns a comma separated list into topics, dropping blanks.
func splitTopics(list string) []string {
	var topics []string
	for _, t := range strings.Split(list, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}
