package localcluster

import (
	"fmt"

	"raftcore/internal/raft"
)

// errTransport models spec §7's TransportError: a peer unreachable because
// of a simulated partition. Callers treat it as a missing reply.
func errTransport(peer raft.NodeId) error {
	return fmt.Errorf("localcluster: node %d unreachable (partitioned)", peer)
}

func errUnknownPeer(peer raft.NodeId) error {
	return fmt.Errorf("localcluster: no such node %d registered", peer)
}
