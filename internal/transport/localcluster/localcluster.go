// Package localcluster is an in-process raft.Cluster double used by tests:
// it calls directly into peer *raft.Node instances instead of dialing real
// sockets, the same "simulated network" pattern visible across the
// retrieval pack's other Raft labs (in-process RPC fakes in place of a real
// transport, for deterministic, fast, fault-injectable tests), since the
// teacher's own setupTestCluster dials real gRPC over loopback instead.
package localcluster

import (
	"context"
	"sync"

	"raftcore/internal/raft"
)

// Network wires a fixed set of nodes together and hands each one a Cluster
// view of its peers. Call Register for every node before calling Configure
// on any of them.
type Network struct {
	mu                sync.RWMutex
	nodes             map[raft.NodeId]*raft.Node
	electionTimeoutMs map[raft.NodeId]int
	partitioned       map[raft.NodeId]bool
}

// NewNetwork creates an empty network.
func NewNetwork() *Network {
	return &Network{
		nodes:             make(map[raft.NodeId]*raft.Node),
		electionTimeoutMs: make(map[raft.NodeId]int),
		partitioned:       make(map[raft.NodeId]bool),
	}
}

// Register attaches node to the network with the given (deterministic, test
// chosen) election timeout and returns the Cluster view that node itself
// should be Configure'd with.
func (n *Network) Register(node *raft.Node, electionTimeoutMs int) raft.Cluster {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nodes[node.Id()] = node
	n.electionTimeoutMs[node.Id()] = electionTimeoutMs
	return &view{net: n, self: node.Id()}
}

// Partition marks id as unreachable: every RPC to or from it now returns a
// TransportError (spec §7), simulating a network split without tearing
// down the node.
func (n *Network) Partition(id raft.NodeId) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.partitioned[id] = true
}

// Heal reverses Partition.
func (n *Network) Heal(id raft.NodeId) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.partitioned, id)
}

func (n *Network) reachable(a, b raft.NodeId) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return !n.partitioned[a] && !n.partitioned[b]
}

func (n *Network) peerNode(id raft.NodeId) (*raft.Node, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	node, ok := n.nodes[id]
	return node, ok
}

func (n *Network) peerIDs(except raft.NodeId) []raft.NodeId {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ids := make([]raft.NodeId, 0, len(n.nodes)-1)
	for id := range n.nodes {
		if id != except {
			ids = append(ids, id)
		}
	}
	return ids
}

// view is the raft.Cluster a single registered node sees.
type view struct {
	net  *Network
	self raft.NodeId
}

func (v *view) Size() int { return len(v.net.nodes) }

func (v *view) PeersExceptSelf() []raft.NodeId { return v.net.peerIDs(v.self) }

func (v *view) ElectionTimeoutMs() int {
	v.net.mu.RLock()
	defer v.net.mu.RUnlock()
	return v.net.electionTimeoutMs[v.self]
}

func (v *view) RequestVoteFrom(ctx context.Context, peer raft.NodeId, term uint64, candidateId raft.NodeId, lastLogIndex int, lastLogTerm uint64) (bool, uint64, error) {
	if !v.net.reachable(v.self, peer) {
		return false, 0, errTransport(peer)
	}
	node, ok := v.net.peerNode(peer)
	if !ok {
		return false, 0, errUnknownPeer(peer)
	}
	granted, term2 := node.RequestVote(term, candidateId, lastLogIndex, lastLogTerm)
	return granted, term2, nil
}

func (v *view) SendAppendEntriesTo(ctx context.Context, peer raft.NodeId, term uint64, leaderId raft.NodeId, prevLogIndex int, prevLogTerm uint64, entries []raft.LogEntry, leaderCommit int) (bool, uint64, error) {
	if !v.net.reachable(v.self, peer) {
		return false, 0, errTransport(peer)
	}
	node, ok := v.net.peerNode(peer)
	if !ok {
		return false, 0, errUnknownPeer(peer)
	}
	success, term2 := node.AppendEntries(term, leaderId, prevLogIndex, prevLogTerm, entries, leaderCommit)
	return success, term2, nil
}

func (v *view) RedirectRequestTo(ctx context.Context, peer raft.NodeId, command []byte) error {
	if !v.net.reachable(v.self, peer) {
		return errTransport(peer)
	}
	node, ok := v.net.peerNode(peer)
	if !ok {
		return errUnknownPeer(peer)
	}
	_, err := node.MakeRequest(ctx, command)
	return err
}
