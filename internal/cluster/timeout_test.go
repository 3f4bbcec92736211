package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"raftcore/internal/raft"
)

func TestDeriveElectionTimeoutMsIsWithinRange(t *testing.T) {
	for id := raft.NodeId(1); id <= 20; id++ {
		got := DeriveElectionTimeoutMs(id, 150, 300)
		assert.GreaterOrEqual(t, got, 150)
		assert.Less(t, got, 300)
	}
}

func TestDeriveElectionTimeoutMsIsDeterministic(t *testing.T) {
	a := DeriveElectionTimeoutMs(7, 150, 300)
	b := DeriveElectionTimeoutMs(7, 150, 300)
	assert.Equal(t, a, b)
}

func TestDeriveElectionTimeoutMsVariesByNode(t *testing.T) {
	seen := make(map[int]bool)
	for id := raft.NodeId(1); id <= 10; id++ {
		seen[DeriveElectionTimeoutMs(id, 150, 300)] = true
	}
	assert.Greater(t, len(seen), 1, "distinct node IDs should usually derive distinct timeouts")
}

func TestDeriveElectionTimeoutMsDegenerateRange(t *testing.T) {
	assert.Equal(t, 150, DeriveElectionTimeoutMs(1, 150, 150))
}
