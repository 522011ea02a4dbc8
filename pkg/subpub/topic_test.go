package subpub

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicIndex_Basic(t *testing.T) {
	ti := NewTopicIndex()
	subs := []*recordingSubscriber{{}, {}, {}}

	for i := 0; i < 3; i++ {
		ti.Subscribe("0", subs[i])
	}
	for i := 0; i < 2; i++ {
		ti.Subscribe("1", subs[i])
	}
	ti.Subscribe("2", subs[0])

	assert.Len(t, ti.SubscribersOf("0"), 3)
	assert.Len(t, ti.SubscribersOf("1"), 2)
	assert.Len(t, ti.SubscribersOf("2"), 1)
	assert.Equal(t, 3, ti.Topics())

	ti.Unsubscribe("0", subs[2])
	assert.Len(t, ti.SubscribersOf("0"), 2)
	assert.Nil(t, ti.TopicsOf(subs[2]))

	ti.UnsubscribeAll(subs[0])
	assert.Empty(t, ti.SubscribersOf("2"))
	assert.Equal(t, 2, ti.Topics())
	assert.ElementsMatch(t, []Subscriber{subs[1]}, ti.SubscribersOf("0"))
}

func TestTopicIndex_SubscribeIsIdempotent(t *testing.T) {
	ti := NewTopicIndex()
	s := &recordingSubscriber{}

	ti.Subscribe("weather", s)
	ti.Subscribe("weather", s)

	assert.Len(t, ti.SubscribersOf("weather"), 1)
	assert.Equal(t, []string{"weather"}, ti.TopicsOf(s))
}

func TestTopicIndex_UnsubscribeNonMemberIsNoop(t *testing.T) {
	ti := NewTopicIndex()
	member := &recordingSubscriber{}
	stranger := &recordingSubscriber{}
	ti.Subscribe("weather", member)

	ti.Unsubscribe("weather", stranger)
	ti.Unsubscribe("unknown", member)
	ti.UnsubscribeAll(stranger)

	assert.ElementsMatch(t, []Subscriber{member}, ti.SubscribersOf("weather"))
	assert.Equal(t, 1, ti.Subscribers())
}

func TestTopicIndex_NoEmptyEntries(t *testing.T) {
	ti := NewTopicIndex()
	s := &recordingSubscriber{}

	ti.Subscribe("a", s)
	ti.Unsubscribe("a", s)

	assert.Equal(t, 0, ti.Topics())
	assert.Equal(t, 0, ti.Subscribers())
	assert.Empty(t, ti.topics)
	assert.Empty(t, ti.memberships)
}

func TestTopicIndex_SubscribersOfReturnsCopy(t *testing.T) {
	ti := NewTopicIndex()
	a, b := &recordingSubscriber{}, &recordingSubscriber{}
	ti.Subscribe("t", a)
	ti.Subscribe("t", b)

	snapshot := ti.SubscribersOf("t")
	ti.UnsubscribeAll(a)
	ti.UnsubscribeAll(b)

	assert.Len(t, snapshot, 2)
	assert.Empty(t, ti.SubscribersOf("t"))
}

func TestTopicIndex_UnsubscribeAllMatchesIndividualUnsubscribes(t *testing.T) {
	orders := [][]string{
		{"A", "B", "C"}, {"A", "C", "B"},
		{"B", "A", "C"}, {"B", "C", "A"},
		{"C", "A", "B"}, {"C", "B", "A"},
	}
	s := &recordingSubscriber{}
	other := &recordingSubscriber{}

	build := func() *TopicIndex {
		ti := NewTopicIndex()
		for _, topic := range []string{"A", "B", "C"} {
			ti.Subscribe(topic, s)
		}
		ti.Subscribe("A", other)
		return ti
	}

	all := build()
	all.UnsubscribeAll(s)

	for _, order := range orders {
		one := build()
		for _, topic := range order {
			one.Unsubscribe(topic, s)
		}
		assert.Equal(t, one.topics, all.topics, "order %v", order)
		assert.Equal(t, one.memberships, all.memberships, "order %v", order)
	}
	assert.ElementsMatch(t, []Subscriber{other}, all.SubscribersOf("A"))
	assert.Nil(t, all.TopicsOf(s))
}

func TestTopicIndex_RandomOperationsMatchSetModel(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	topics := []string{"red", "green", "blue"}
	subs := []*recordingSubscriber{{}, {}, {}}

	ti := NewTopicIndex()
	model := make(map[string]map[int]bool)

	for step := 0; step < 2000; step++ {
		topic := topics[rng.Intn(len(topics))]
		si := rng.Intn(len(subs))

		switch rng.Intn(5) {
		case 0, 1:
			ti.Subscribe(topic, subs[si])
			if model[topic] == nil {
				model[topic] = make(map[int]bool)
			}
			model[topic][si] = true
		case 2, 3:
			ti.Unsubscribe(topic, subs[si])
			delete(model[topic], si)
		case 4:
			ti.UnsubscribeAll(subs[si])
			for _, members := range model {
				delete(members, si)
			}
		}

		for _, name := range topics {
			var want []Subscriber
			for i := range subs {
				if model[name][i] {
					want = append(want, subs[i])
				}
			}
			require.ElementsMatch(t, want, ti.SubscribersOf(name), "step %d topic %s", step, name)
		}
		for i, s := range subs {
			var want []string
			for _, name := range topics {
				if model[name][i] {
					want = append(want, name)
				}
			}
			got := ti.TopicsOf(s)
			sort.Strings(got)
			sort.Strings(want)
			require.Equal(t, want, got, "step %d subscriber %d", step, i)
		}
	}
}
