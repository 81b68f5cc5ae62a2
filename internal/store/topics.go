package store

import (
	"sort"
	"time"

	"github.com/nerrad567/mqttscope/internal/message"
)

// TopicNode is a read-only snapshot of one node of the topic index.
//
// MessageCount only counts messages published to exactly Path. TotalCount
// and LastActivity are rolled up over the whole subtree when the snapshot
// is taken.
type TopicNode struct {
	Segment      string           `json:"segment"`
	Path         string           `json:"path"`
	MessageCount int              `json:"message_count"`
	TotalCount   int              `json:"total_count"`
	LastMessage  *message.Message `json:"last_message,omitempty"`
	LastActivity time.Time        `json:"last_activity"`
	Expanded     bool             `json:"expanded"`
	Children     []TopicNode      `json:"children"`
}

// topicNode is one arena slot. Children are addressed by segment.
type topicNode struct {
	segment  string
	path     string
	children map[string]int
	last     *message.Message
	count    int
	expanded bool
}

// topicIndex is an arena of nodes with the root at index 0. Nodes are
// created lazily and never removed individually. Not safe for concurrent
// use.
type topicIndex struct {
	nodes  []topicNode
	topics int
}

func newTopicIndex() *topicIndex {
	return &topicIndex{
		nodes: []topicNode{{children: make(map[string]int), expanded: true}},
	}
}

// add walks msg.Topic from the root, creating missing nodes expanded, and
// records msg on the terminal node only.
func (ix *topicIndex) add(msg message.Message) {
	segments := message.SplitTopic(msg.Topic)

	cur := 0
	for i, seg := range segments {
		next, ok := ix.nodes[cur].children[seg]
		if !ok {
			next = len(ix.nodes)
			ix.nodes = append(ix.nodes, topicNode{
				segment:  seg,
				path:     message.JoinTopic(segments[:i+1]),
				children: make(map[string]int),
				expanded: true,
			})
			ix.nodes[cur].children[seg] = next
		}
		cur = next
	}

	node := &ix.nodes[cur]
	if node.count == 0 {
		ix.topics++
	}
	last := msg
	node.last = &last
	node.count++
}

// find resolves a full path to its arena index.
func (ix *topicIndex) find(path string) (int, bool) {
	cur := 0
	for _, seg := range message.SplitTopic(path) {
		next, ok := ix.nodes[cur].children[seg]
		if !ok {
			return 0, false
		}
		cur = next
	}
	return cur, cur != 0
}

// toggle flips the expansion flag of the node at path.
func (ix *topicIndex) toggle(path string) bool {
	i, ok := ix.find(path)
	if !ok {
		return false
	}
	ix.nodes[i].expanded = !ix.nodes[i].expanded
	return true
}

// snapshot copies the subtree rooted at i.
func (ix *topicIndex) snapshot(i int) TopicNode {
	n := ix.nodes[i]
	out := TopicNode{
		Segment:      n.segment,
		Path:         n.path,
		MessageCount: n.count,
		TotalCount:   n.count,
		LastMessage:  n.last,
		Expanded:     n.expanded,
		Children:     make([]TopicNode, 0, len(n.children)),
	}
	if n.last != nil {
		out.LastActivity = n.last.Timestamp
	}

	for _, c := range n.children {
		child := ix.snapshot(c)
		out.TotalCount += child.TotalCount
		if child.LastActivity.After(out.LastActivity) {
			out.LastActivity = child.LastActivity
		}
		out.Children = append(out.Children, child)
	}
	sort.Slice(out.Children, func(a, b int) bool {
		return out.Children[a].Segment < out.Children[b].Segment
	})
	return out
}
