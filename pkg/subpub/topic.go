package subpub

// subscriberSet is a set of subscribers.
type subscriberSet map[Subscriber]struct{}

// topicSet is a set of topic names.
type topicSet map[string]struct{}

// TopicIndex maps topics to their subscribers and back. Both directions are
// kept consistent and no entry with an empty set is ever retained.
//
// TopicIndex is not safe for concurrent use; the broker confines it to its
// control loop.
type TopicIndex struct {
	topics      map[string]subscriberSet // topic -> subscribers
	memberships map[Subscriber]topicSet  // subscriber -> topics
}

// NewTopicIndex creates an empty index.
func NewTopicIndex() *TopicIndex {
	return &TopicIndex{
		topics:      make(map[string]subscriberSet),
		memberships: make(map[Subscriber]topicSet),
	}
}

// Subscribe adds s to topic. Subscribing twice keeps a single membership.
func (ti *TopicIndex) Subscribe(topic string, s Subscriber) {
	subs, ok := ti.topics[topic]
	if !ok {
		subs = make(subscriberSet)
		ti.topics[topic] = subs
	}
	subs[s] = struct{}{}

	names, ok := ti.memberships[s]
	if !ok {
		names = make(topicSet)
		ti.memberships[s] = names
	}
	names[topic] = struct{}{}
}

// Unsubscribe removes s from topic. It is a no-op when s is not a member.
func (ti *TopicIndex) Unsubscribe(topic string, s Subscriber) {
	if subs, ok := ti.topics[topic]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(ti.topics, topic)
		}
	}

	if names, ok := ti.memberships[s]; ok {
		delete(names, topic)
		if len(names) == 0 {
			delete(ti.memberships, s)
		}
	}
}

// UnsubscribeAll removes s from every topic it belongs to.
func (ti *TopicIndex) UnsubscribeAll(s Subscriber) {
	for topic := range ti.memberships[s] {
		// Unsubscribe may delete the set being ranged over, which Go permits.
		ti.Unsubscribe(topic, s)
	}
}

// SubscribersOf returns a copy of the current subscribers of topic, so the
// caller may keep using it while the index changes.
func (ti *TopicIndex) SubscribersOf(topic string) []Subscriber {
	subs := ti.topics[topic]
	if len(subs) == 0 {
		return nil
	}
	out := make([]Subscriber, 0, len(subs))
	for s := range subs {
		out = append(out, s)
	}
	return out
}

// TopicsOf returns a copy of the topics s is subscribed to.
func (ti *TopicIndex) TopicsOf(s Subscriber) []string {
	names := ti.memberships[s]
	if len(names) == 0 {
		return nil
	}
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	return out
}

// Topics returns the number of topics with at least one subscriber.
func (ti *TopicIndex) Topics() int {
	return len(ti.topics)
}

// Subscribers returns the number of subscribers with at least one topic.
func (ti *TopicIndex) Subscribers() int {
	return len(ti.memberships)
}
