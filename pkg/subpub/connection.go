package subpub

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/Leegeev/topicbroker/pkg/metrics"
	"github.com/Leegeev/topicbroker/pkg/protocol"
)

// brokerLink is the part of the broker a connection talks to. Every method
// only enqueues a control message.
type brokerLink interface {
	publish(msg *Message)
	subscribe(topic string, s Subscriber)
	unsubscribe(topic string, s Subscriber)
	connectionEnded(c *Connection)
}

// connMsg is the closed set of control messages handled by a connection loop.
type connMsg interface{ isConnMsg() }

type baseConnMsg struct{}

func (baseConnMsg) isConnMsg() {}

type deliveryMsg struct {
	baseConnMsg
	msg *Message
}

type drainMsg struct {
	baseConnMsg
}

type incomingLineMsg struct {
	baseConnMsg
	line string
}

type readEndedMsg struct {
	baseConnMsg
}

type readErrorMsg struct {
	baseConnMsg
	err error
}

type readLoopTerminatedMsg struct {
	baseConnMsg
}

// Connection serves one client socket with two goroutines: a reader that
// turns incoming lines into control messages, and a control loop that owns
// the connection state and is the only writer to the socket.
type Connection struct {
	id      string
	conn    net.Conn
	broker  brokerLink
	control *mailbox[connMsg]
	logger  *slog.Logger

	// Owned by the control loop.
	state State
}

func newConnection(id string, conn net.Conn, broker brokerLink, logger *slog.Logger) *Connection {
	return &Connection{
		id:      id,
		conn:    conn,
		broker:  broker,
		control: newMailbox[connMsg](),
		logger:  logger,
	}
}

// ID returns the identifier assigned at accept time.
func (c *Connection) ID() string {
	return c.id
}

// Deliver queues msg for writing to the client.
func (c *Connection) Deliver(msg *Message) {
	c.control.put(deliveryMsg{msg: msg})
}

// drain queues a request to say goodbye and close the socket.
func (c *Connection) drain() {
	c.control.put(drainMsg{})
}

func (c *Connection) start() {
	go c.controlLoop()
	go c.readLoop()
}

func (c *Connection) controlLoop() {
	defer func() {
		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.logger.Warn("closing socket failed", "error", err)
		}
		c.logger.Debug("connection control loop ended")
		c.broker.connectionEnded(c)
	}()

	c.send(protocol.FormatPush(protocol.Hi{}))
	for c.state != StateClosed {
		c.dispatch(c.control.take())
	}
}

func (c *Connection) dispatch(msg connMsg) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("connection control message failed",
				"message_type", fmt.Sprintf("%T", msg),
				"panic", r,
			)
			metrics.ControlFaultsTotal.WithLabelValues(metrics.ActorConnection).Inc()
		}
	}()

	switch m := msg.(type) {
	case deliveryMsg:
		c.handleDelivery(m.msg)
	case drainMsg:
		c.handleDrain()
	case incomingLineMsg:
		c.handleLine(m.line)
	case readEndedMsg:
		c.handleReadEnded()
	case readErrorMsg:
		c.handleReadError(m.err)
	case readLoopTerminatedMsg:
		// The reader has returned, nothing more can arrive from the socket.
		c.state.advance(StateClosed)
	default:
		c.logger.Warn("connection received unknown control message", "message_type", fmt.Sprintf("%T", msg))
	}
}

func (c *Connection) handleDelivery(msg *Message) {
	if c.state != StateRunning {
		return
	}
	c.send(protocol.FormatPush(protocol.Message{Topic: msg.Topic, Content: msg.Content}))
}

func (c *Connection) handleDrain() {
	if c.state != StateRunning {
		return
	}
	c.send(protocol.FormatPush(protocol.Bye{}))
	if err := c.conn.Close(); err != nil {
		c.logger.Warn("closing socket failed", "error", err)
	}
	c.state.advance(StateDraining)
}

func (c *Connection) handleLine(line string) {
	if c.state != StateRunning {
		return
	}

	req, err := protocol.Parse(line)
	if err != nil {
		var reqErr protocol.RequestError
		if !errors.As(err, &reqErr) {
			panic(fmt.Sprintf("unexpected parse error: %v", err))
		}
		metrics.ProtocolErrorsTotal.WithLabelValues(reqErr.Code()).Inc()
		c.logger.Debug("rejected request", "line", line, "code", reqErr.Code())
		c.send(protocol.Failure(reqErr).String())
		return
	}

	switch r := req.(type) {
	case protocol.Publish:
		c.broker.publish(&Message{Topic: r.Topic, Content: r.Content})
	case protocol.Subscribe:
		for _, topic := range r.Topics {
			c.broker.subscribe(topic, c)
		}
	case protocol.Unsubscribe:
		for _, topic := range r.Topics {
			c.broker.unsubscribe(topic, c)
		}
	}
	c.send(protocol.OK.String())
}

// handleReadEnded reacts to the peer closing its side. No farewell is sent.
func (c *Connection) handleReadEnded() {
	if c.state != StateRunning {
		return
	}
	c.logger.Debug("peer closed the connection")
	c.state.advance(StateDraining)
}

// handleReadError only logs. Unlike end of stream it leaves the state alone;
// the reader terminating right after is what closes the connection.
func (c *Connection) handleReadError(err error) {
	if errors.Is(err, net.ErrClosed) {
		c.logger.Debug("read stopped on closed socket")
		return
	}
	c.logger.Warn("read failed", "error", err)
}

func (c *Connection) send(line string) {
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		c.logger.Warn("write failed", "error", err)
	}
}

func (c *Connection) readLoop() {
	defer c.control.put(readLoopTerminatedMsg{})

	reader := bufio.NewReader(c.conn)
	for {
		line, err := reader.ReadString('\n')
		if line != "" && (err == nil || errors.Is(err, io.EOF)) {
			c.control.put(incomingLineMsg{line: trimLineEnd(line)})
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			c.control.put(readEndedMsg{})
			return
		default:
			c.control.put(readErrorMsg{err: err})
			return
		}
	}
}

func trimLineEnd(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
