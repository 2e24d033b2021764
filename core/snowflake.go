package core

import (
	"sync"
	"time"
)

// defaultEpochMillis anchors generated ids at 2015-01-01T00:00:00Z.
const defaultEpochMillis = 1420070400000

const (
	machineBits  = 5
	nodeBits     = 5
	sequenceBits = 12

	maxSequence = (1 << sequenceBits) - 1

	nodeShift    = sequenceBits
	machineShift = sequenceBits + nodeBits
	timeShift    = sequenceBits + nodeBits + machineBits
)

// Snowflake generates 63-bit ids: 41 bits of milliseconds since the
// epoch, 5 machine bits, 5 node bits and a 12-bit per-millisecond
// sequence. Ids from one instance are strictly increasing.
type Snowflake struct {
	mu       sync.Mutex
	epoch    int64
	machine  int64
	node     int64
	lastMs   int64
	sequence int64
}

// NewSnowflake builds a generator. Machine and node are masked to
// their 5-bit fields.
func NewSnowflake(epochMillis, machine, node int64) *Snowflake {
	return &Snowflake{
		epoch:   epochMillis,
		machine: machine & ((1 << machineBits) - 1),
		node:    node & ((1 << nodeBits) - 1),
	}
}

// NextID returns the next id. When the sequence overflows within one
// millisecond the call spins until the clock advances.
func (s *Snowflake) NextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < s.lastMs {
		// Clock went backwards; hold the line until it catches up.
		now = s.lastMs
	}

	if now == s.lastMs {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			for now <= s.lastMs {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}
	s.lastMs = now

	return (now-s.epoch)<<timeShift |
		s.machine<<machineShift |
		s.node<<nodeShift |
		s.sequence
}
