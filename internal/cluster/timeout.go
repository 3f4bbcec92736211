// Package cluster derives each node's randomized-but-reproducible election
// timeout from its NodeId, in place of reseeding math/rand per node (which
// would make multi-node tests nondeterministic). Grounded in
// pkg/consistenthash's HashString helper from the retrieval pack: same
// murmur3 32-bit hash, repurposed here to jitter a timeout range instead of
// placing a key on a hash ring.
package cluster

import (
	"github.com/spaolacci/murmur3"

	"raftcore/internal/raft"
)

// DeriveElectionTimeoutMs returns a value in [minMs, maxMs) that is stable
// for a given nodeID, so the same cluster configuration reproduces the same
// per-node timeouts across runs while still differing node to node (spec
// §5: "Election timeout: per-node randomised in the range the cluster
// prescribes").
func DeriveElectionTimeoutMs(nodeID raft.NodeId, minMs, maxMs int) int {
	if maxMs <= minMs {
		return minMs
	}
	h := murmur3.New32()
	var buf [8]byte
	id := uint64(nodeID)
	for i := 0; i < 8; i++ {
		buf[i] = byte(id >> (8 * i))
	}
	h.Write(buf[:])
	span := uint32(maxMs - minMs)
	return minMs + int(h.Sum32()%span)
}
