package subpub

// Message is a value published to a topic. It is created once per publish and
// the same pointer is handed to every subscriber, which must not modify it.
type Message struct {
	Topic   string
	Content string
}

// Subscriber is anything able to receive published messages. The broker calls
// Deliver from its control loop, so implementations must not block.
//
// Subscribers are used as map keys and must therefore be comparable; pointer
// receivers are the usual choice.
type Subscriber interface {
	Deliver(msg *Message)
}
