package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/mqttscope/internal/message"
)

func inbound(topic, payload string) message.Message {
	return message.NewInbound("conn-1", topic, []byte(payload), message.AtMostOnce, false, false)
}

func topics(msgs []message.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Topic
	}
	return out
}

func payloads(msgs []message.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Payload
	}
	return out
}

func TestMessageStore_BoundedFIFO(t *testing.T) {
	const capacity = 10
	s := NewMessageStore(WithCapacity(capacity), WithPerTopicLimit(0))

	var want []string
	for i := 0; i < 25; i++ {
		p := fmt.Sprintf("m%d", i)
		s.AddMessage(inbound(fmt.Sprintf("t/%d", i), p))
		want = append(want, p)
		if len(want) > capacity {
			want = want[1:]
		}

		assert.LessOrEqual(t, s.Len(), capacity)
		assert.Equal(t, want, payloads(s.Messages()))
	}
	assert.Equal(t, capacity, s.Len())
}

func TestMessageStore_EvictedMessageNotFound(t *testing.T) {
	s := NewMessageStore(WithCapacity(2))
	first := inbound("a", "1")
	s.AddMessage(first)
	s.AddMessage(inbound("b", "2"))
	s.AddMessage(inbound("c", "3"))

	_, err := s.Message(first.ID)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessageStore_PerTopicLimit(t *testing.T) {
	s := NewMessageStore(WithCapacity(100), WithPerTopicLimit(3))

	s.AddMessage(inbound("other", "keep"))
	var hot []message.Message
	for i := 0; i < 10; i++ {
		m := inbound("hot", fmt.Sprintf("h%d", i))
		hot = append(hot, m)
		s.AddMessage(m)
	}

	msgs := s.Messages()
	assert.Equal(t, []string{"keep", "h7", "h8", "h9"}, payloads(msgs))
	assert.Equal(t, 4, s.Len())

	_, err := s.Message(hot[0].ID)
	assert.ErrorIs(t, err, ErrMessageNotFound)
	got, err := s.Message(hot[9].ID)
	require.NoError(t, err)
	assert.Equal(t, "h9", got.Payload)

	// Dropping history does not rewrite what the topic index counted.
	node, err := s.Node("hot")
	require.NoError(t, err)
	assert.Equal(t, 10, node.MessageCount)
	assert.Equal(t, uint64(11), s.Counters().Received)
}

func TestMessageStore_PerTopicLimitAcrossWrap(t *testing.T) {
	s := NewMessageStore(WithCapacity(8), WithPerTopicLimit(2))

	for i := 0; i < 50; i++ {
		s.AddMessage(inbound(fmt.Sprintf("t%d", i%3), fmt.Sprintf("%d", i)))

		perTopic := map[string]int{}
		for _, m := range s.Messages() {
			perTopic[m.Topic]++
		}
		for topic, n := range perTopic {
			assert.LessOrEqual(t, n, 2, "topic %s", topic)
		}
		assert.LessOrEqual(t, s.Len(), 8)
	}

	assert.Equal(t, []string{"44", "45", "46", "47", "48", "49"}, payloads(s.Messages()))
	for _, m := range s.Messages() {
		got, err := s.Message(m.ID)
		require.NoError(t, err)
		assert.Equal(t, m.Payload, got.Payload)
	}
}

func TestMessageStore_Counters(t *testing.T) {
	s := NewMessageStore()

	s.AddMessage(inbound("a", "1"))
	s.AddMessage(inbound("a", "2"))
	s.AddMessage(message.NewOutbound("conn-2", "a", "3", message.FormatRaw, 0, false))

	assert.Equal(t, Counters{Received: 2, Sent: 1}, s.Counters())
	assert.Equal(t, uint64(3), s.Counters().Total())
	assert.Equal(t, Counters{Received: 2}, s.ConnectionCounters("conn-1"))
	assert.Equal(t, Counters{Sent: 1}, s.ConnectionCounters("conn-2"))
	assert.Equal(t, Counters{}, s.ConnectionCounters("unknown"))
}

func TestMessageStore_ClearAll(t *testing.T) {
	s := NewMessageStore(WithCapacity(5))
	for i := 0; i < 20; i++ {
		s.AddMessage(inbound(fmt.Sprintf("x/%d", i%4), "v"))
	}
	s.SetSearchText("v")

	s.ClearAll()

	assert.Zero(t, s.Len())
	assert.Empty(t, s.Messages())
	assert.Empty(t, s.Filtered(0))
	assert.Empty(t, s.Tree())
	assert.Zero(t, s.TopicCount())
	assert.Equal(t, Counters{}, s.Counters())
	assert.Equal(t, Counters{}, s.ConnectionCounters("conn-1"))
	_, err := s.Node("x")
	assert.ErrorIs(t, err, ErrTopicNotFound)

	// View state survives a clear.
	assert.Equal(t, "v", s.View().SearchText)

	s.AddMessage(inbound("y", "1"))
	assert.Equal(t, 1, s.Len())
}

func TestMessageStore_FilteredMostRecentFirst(t *testing.T) {
	s := NewMessageStore()
	s.AddMessage(inbound("a", "1"))
	s.AddMessage(inbound("b", "2"))
	s.AddMessage(inbound("c", "3"))

	assert.Equal(t, []string{"3", "2", "1"}, payloads(s.Filtered(0)))
	assert.Equal(t, []string{"3", "2"}, payloads(s.Filtered(2)))
}

func TestMessageStore_FilterSelectedTopic(t *testing.T) {
	s := NewMessageStore()
	s.AddMessage(inbound("home/temp", "20"))
	s.AddMessage(inbound("home/temp/raw", "x"))
	s.AddMessage(inbound("home/temp", "21"))

	s.SelectTopic("home/temp")
	assert.Equal(t, []string{"21", "20"}, payloads(s.Filtered(0)))

	s.SelectTopic("")
	assert.Len(t, s.Filtered(0), 3)
}

func TestMessageStore_TopicFilterPattern(t *testing.T) {
	s := NewMessageStore()
	s.AddMessage(inbound("Home/Temp", "1"))
	s.AddMessage(inbound("home/humidity", "2"))
	s.AddMessage(inbound("garden/temp", "3"))
	s.AddMessage(inbound("a(b", "4"))

	s.SetTopicFilter("^home/")
	assert.Equal(t, []string{"home/humidity", "Home/Temp"}, topics(s.Filtered(0)))

	s.SetTopicFilter("TEMP$")
	assert.Equal(t, []string{"garden/temp", "Home/Temp"}, topics(s.Filtered(0)))

	// Not a valid pattern: plain case-insensitive substring.
	s.SetTopicFilter("A(")
	assert.Equal(t, []string{"a(b"}, topics(s.Filtered(0)))
}

func TestMessageStore_SearchText(t *testing.T) {
	s := NewMessageStore()
	s.AddMessage(inbound("sensors/a", `{"status":"OK"}`))
	s.AddMessage(inbound("sensors/b", "fault"))
	s.AddMessage(inbound("status/c", "1"))

	s.SetSearchText("STATUS")
	assert.Equal(t, []string{"status/c", "sensors/a"}, topics(s.Filtered(0)))
}

func TestMessageStore_FiltersCommute(t *testing.T) {
	load := func() *MessageStore {
		s := NewMessageStore()
		for i := 0; i < 30; i++ {
			topic := []string{"home/temp", "home/hum", "garden/temp"}[i%3]
			payload := []string{"alpha", "beta", "gamma", "alphabet"}[i%4]
			s.AddMessage(inbound(topic, payload))
		}
		return s
	}

	a := load()
	a.SelectTopic("home/temp")
	a.SetSearchText("alpha")

	b := load()
	b.SetSearchText("alpha")
	b.SelectTopic("home/temp")

	assert.Equal(t, payloads(a.Filtered(0)), payloads(b.Filtered(0)))
	for _, m := range a.Filtered(0) {
		assert.Equal(t, "home/temp", m.Topic)
		assert.Contains(t, m.Payload, "alpha")
	}
}

func TestMessageStore_SelectedMessage(t *testing.T) {
	s := NewMessageStore(WithCapacity(2))
	m := inbound("a", "1")
	s.AddMessage(m)

	_, ok := s.SelectedMessage()
	assert.False(t, ok)

	s.SelectMessage(m.ID)
	got, ok := s.SelectedMessage()
	require.True(t, ok)
	assert.Equal(t, m.ID, got.ID)

	s.AddMessage(inbound("b", "2"))
	s.AddMessage(inbound("c", "3"))
	_, ok = s.SelectedMessage()
	assert.False(t, ok, "evicted message no longer resolves")
	assert.Equal(t, m.ID, s.View().SelectedMessageID)
}

func TestMessageStore_SetView(t *testing.T) {
	s := NewMessageStore()
	s.AddMessage(inbound("x/1", "a"))
	s.AddMessage(inbound("y/1", "b"))

	v := View{TopicFilter: "^x", SearchText: "A"}
	s.SetView(v)
	assert.Equal(t, v, s.View())
	assert.Equal(t, []string{"x/1"}, topics(s.Filtered(0)))
}

func TestMessageStore_OutboundScenario(t *testing.T) {
	s := NewMessageStore()
	s.AddMessage(message.NewOutbound("p", "home/temp", "21.5", "", message.AtMostOnce, false))

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, message.Outbound, msgs[0].Direction)
	assert.Equal(t, message.FormatRaw, msgs[0].Format)

	node, err := s.Node("home/temp")
	require.NoError(t, err)
	assert.Equal(t, 1, node.MessageCount)
}

func TestMessageStore_ConcurrentWritersAndReaders(t *testing.T) {
	s := NewMessageStore(WithCapacity(500), WithPerTopicLimit(50))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				s.AddMessage(message.NewInbound(fmt.Sprintf("c%d", w), fmt.Sprintf("w%d/t%d", w, i%7), []byte("x"), 0, false, false))
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			tree := s.Tree()
			total := 0
			for _, n := range tree {
				total += n.TotalCount
			}
			assert.GreaterOrEqual(t, int(s.Counters().Total()), total)
			_ = s.Filtered(10)
		}
	}()
	wg.Wait()

	assert.Equal(t, uint64(2000), s.Counters().Received)
	assert.LessOrEqual(t, s.Len(), 500)
	for w := 0; w < 4; w++ {
		assert.Equal(t, uint64(500), s.ConnectionCounters(fmt.Sprintf("c%d", w)).Received)
	}
}
