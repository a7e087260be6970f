package crdt

import (
	"sync"
	"time"
)

// clock is a hybrid logical clock: wall-clock nanoseconds plus a
// per-node monotonic counter used to break ties between concurrent
// writers with identical wall time, and the node's own ID to break
// ties between counters (deterministic total order, the minimum a
// last-writer-wins merge needs).
type clock struct {
	Wall    int64  `json:"wall"`
	Counter uint32 `json:"counter"`
	NodeID  string `json:"node"`
}

// after reports whether c happened strictly after other under the
// (wall, counter, nodeID) total order.
func (c clock) after(other clock) bool {
	if c.Wall != other.Wall {
		return c.Wall > other.Wall
	}
	if c.Counter != other.Counter {
		return c.Counter > other.Counter
	}
	return c.NodeID > other.NodeID
}

// source issues monotonically increasing clocks for one node.
type source struct {
	mu      sync.Mutex
	nodeID  string
	counter uint32
	lastWall int64
}

func newSource(nodeID string) *source {
	return &source{nodeID: nodeID}
}

func (s *source) next() clock {
	s.mu.Lock()
	defer s.mu.Unlock()

	wall := time.Now().UnixNano()
	if wall <= s.lastWall {
		wall = s.lastWall + 1
	}
	s.lastWall = wall
	s.counter++
	return clock{Wall: wall, Counter: s.counter, NodeID: s.nodeID}
}
