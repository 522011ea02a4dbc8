package subpub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Leegeev/topicbroker/pkg/metrics"
)

// brokerMsg is the closed set of control messages handled by the broker loop.
type brokerMsg interface{ isBrokerMsg() }

type baseBrokerMsg struct{}

func (baseBrokerMsg) isBrokerMsg() {}

type newConnectionMsg struct {
	baseBrokerMsg
	conn net.Conn
}

type connectionEndedMsg struct {
	baseBrokerMsg
	conn *Connection
}

type publishMsg struct {
	baseBrokerMsg
	msg *Message
}

type subscribeMsg struct {
	baseBrokerMsg
	topic      string
	subscriber Subscriber
}

type unsubscribeMsg struct {
	baseBrokerMsg
	topic      string
	subscriber Subscriber
}

type shutdownMsg struct {
	baseBrokerMsg
}

type acceptLoopEndedMsg struct {
	baseBrokerMsg
}

type statsMsg struct {
	baseBrokerMsg
	reply chan Stats
}

// Stats is a snapshot of broker state taken inside the control loop.
type Stats struct {
	State       State
	Connections int
	Topics      int
	Subscribers int
}

// Broker accepts client connections and routes published messages to the
// connections subscribed to their topic.
//
// All broker state is owned by a single control loop goroutine; every other
// goroutine talks to it by queueing control messages. The loop exits, and
// Done is closed, once a drain has finished: the listener is closed, the
// accept loop has returned and every connection has ended.
type Broker struct {
	listener   net.Listener
	control    *mailbox[brokerMsg]
	logger     *slog.Logger
	limiter    *rate.Limiter
	acceptCtx  context.Context
	stopAccept context.CancelFunc
	done       chan struct{}

	// Owned by the control loop.
	state       State
	connections map[string]*Connection
	topics      *TopicIndex
	acceptEnded bool
}

// Listen binds addr and starts a broker on it.
func Listen(addr string, opts ...Option) (*Broker, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("subpub: listen on %s: %w", addr, err)
	}
	return New(ln, opts...), nil
}

// New starts a broker serving ln: first its control loop, then its accept
// loop. The broker takes ownership of ln.
func New(ln net.Listener, opts ...Option) *Broker {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Broker{
		listener:    ln,
		control:     newMailbox[brokerMsg](),
		logger:      o.logger,
		limiter:     rate.NewLimiter(o.acceptLimit, o.acceptBurst),
		acceptCtx:   ctx,
		stopAccept:  cancel,
		done:        make(chan struct{}),
		connections: make(map[string]*Connection),
		topics:      NewTopicIndex(),
	}

	go b.controlLoop()
	go b.acceptLoop()
	return b
}

// Addr returns the address the broker listens on.
func (b *Broker) Addr() net.Addr {
	return b.listener.Addr()
}

// Publish delivers content to the current subscribers of topic.
func (b *Broker) Publish(topic, content string) {
	b.publish(&Message{Topic: topic, Content: content})
}

// Subscribe attaches s to topic.
func (b *Broker) Subscribe(topic string, s Subscriber) {
	b.control.put(subscribeMsg{topic: topic, subscriber: s})
}

// Unsubscribe detaches s from topic.
func (b *Broker) Unsubscribe(topic string, s Subscriber) {
	b.control.put(unsubscribeMsg{topic: topic, subscriber: s})
}

// Shutdown asks the broker to stop accepting and drain every connection.
// It does not wait; use Join for that.
func (b *Broker) Shutdown() {
	b.control.put(shutdownMsg{})
}

// Done is closed when the control loop has exited.
func (b *Broker) Done() <-chan struct{} {
	return b.done
}

// Join blocks until the control loop has exited or ctx is done.
func (b *Broker) Join(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats asks the control loop for a snapshot of its state.
func (b *Broker) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	b.control.put(statsMsg{reply: reply})

	select {
	case s := <-reply:
		return s, nil
	case <-b.done:
		select {
		case s := <-reply:
			return s, nil
		default:
			return Stats{}, ErrClosed
		}
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (b *Broker) publish(msg *Message) {
	b.control.put(publishMsg{msg: msg})
}

func (b *Broker) subscribe(topic string, s Subscriber) {
	b.Subscribe(topic, s)
}

func (b *Broker) unsubscribe(topic string, s Subscriber) {
	b.Unsubscribe(topic, s)
}

func (b *Broker) connectionEnded(c *Connection) {
	b.control.put(connectionEndedMsg{conn: c})
}

func (b *Broker) controlLoop() {
	defer close(b.done)
	b.logger.Info("broker started", "addr", b.listener.Addr().String())

	for b.state != StateClosed {
		b.dispatch(b.control.take())
	}

	b.stopAccept()
	b.logger.Info("broker ended")
}

// dispatch handles one control message. A panic is contained to the message
// that caused it.
func (b *Broker) dispatch(msg brokerMsg) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("broker control message failed",
				"message_type", fmt.Sprintf("%T", msg),
				"panic", r,
			)
			metrics.ControlFaultsTotal.WithLabelValues(metrics.ActorBroker).Inc()
		}
	}()

	switch m := msg.(type) {
	case newConnectionMsg:
		b.handleNewConnection(m.conn)
	case connectionEndedMsg:
		b.handleConnectionEnded(m.conn)
	case publishMsg:
		b.handlePublish(m.msg)
	case subscribeMsg:
		b.topics.Subscribe(m.topic, m.subscriber)
	case unsubscribeMsg:
		b.topics.Unsubscribe(m.topic, m.subscriber)
	case shutdownMsg:
		b.handleShutdown()
	case acceptLoopEndedMsg:
		b.handleAcceptLoopEnded()
	case statsMsg:
		m.reply <- Stats{
			State:       b.state,
			Connections: len(b.connections),
			Topics:      b.topics.Topics(),
			Subscribers: b.topics.Subscribers(),
		}
	default:
		b.logger.Warn("broker received unknown control message", "message_type", fmt.Sprintf("%T", msg))
	}
}

func (b *Broker) handleNewConnection(conn net.Conn) {
	if b.state != StateRunning {
		b.logger.Debug("closing socket accepted while not running",
			"state", b.state.String(),
			"remote_addr", conn.RemoteAddr().String(),
		)
		_ = conn.Close()
		metrics.ConnectionsRejected.Inc()
		return
	}

	id := uuid.NewString()
	c := newConnection(id, conn, b, b.logger.With("connection_id", id))
	b.connections[id] = c
	c.start()

	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Inc()
	b.logger.Info("connection started",
		"connection_id", id,
		"remote_addr", conn.RemoteAddr().String(),
		"connections", len(b.connections),
	)
}

func (b *Broker) handleConnectionEnded(c *Connection) {
	id := c.ID()
	if _, ok := b.connections[id]; !ok {
		return
	}
	delete(b.connections, id)
	topics := len(b.topics.TopicsOf(c))
	b.topics.UnsubscribeAll(c)
	metrics.ConnectionsActive.Dec()

	b.logger.Info("connection ended",
		"connection_id", id,
		"dropped_topics", topics,
		"connections", len(b.connections),
	)
	b.closeIfDrained()
}

func (b *Broker) handlePublish(msg *Message) {
	subs := b.topics.SubscribersOf(msg.Topic)
	for _, s := range subs {
		s.Deliver(msg)
	}
	metrics.MessagesPublished.Inc()
	metrics.DeliveriesTotal.Add(float64(len(subs)))
}

func (b *Broker) handleShutdown() {
	if b.state != StateRunning {
		return
	}
	b.logger.Info("broker shutting down", "connections", len(b.connections))
	b.startDrain()
}

func (b *Broker) handleAcceptLoopEnded() {
	b.acceptEnded = true
	if b.state != StateDraining {
		b.logger.Warn("accept loop ended unexpectedly, draining", "connections", len(b.connections))
		b.startDrain()
	}
	b.closeIfDrained()
}

// startDrain stops accepting and asks every live connection to drain.
func (b *Broker) startDrain() {
	b.stopAccept()
	if err := b.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		b.logger.Warn("closing listener failed", "error", err)
	}
	for _, c := range b.connections {
		c.drain()
	}
	b.state.advance(StateDraining)
}

func (b *Broker) closeIfDrained() {
	if b.state == StateDraining && b.acceptEnded && len(b.connections) == 0 {
		b.state.advance(StateClosed)
	}
}

func (b *Broker) acceptLoop() {
	defer b.control.put(acceptLoopEndedMsg{})

	for {
		if err := b.limiter.Wait(b.acceptCtx); err != nil {
			b.logger.Debug("accept throttle interrupted", "error", err)
			return
		}

		conn, err := b.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				b.logger.Debug("listener closed")
			} else {
				b.logger.Warn("accept failed", "error", err)
			}
			return
		}
		b.control.put(newConnectionMsg{conn: conn})
	}
}
