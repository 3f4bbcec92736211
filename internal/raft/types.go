// Package raft implements single-node Raft consensus: leader election, log
// replication, and commit/apply of a replicated state machine across a fixed
// cluster of peers.
package raft

import (
	"context"
	"errors"
)

// NodeId identifies a node, unique within the cluster and stable for the
// node's lifetime.
type NodeId uint64

// Role is the node's current position in the Raft role state machine.
type Role int

const (
	Stopped Role = iota
	Follower
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Stopped:
		return "Stopped"
	case Follower:
		return "Follower"
	case Candidate:
		return "Candidate"
	case Leader:
		return "Leader"
	default:
		return "Unknown"
	}
}

// LogEntry is one slot in the replicated log.
type LogEntry struct {
	Index   int
	Term    uint64
	Command []byte
}

// Cluster is the membership/transport collaborator (spec §6). The core
// never dials sockets itself; it only calls these methods.
type Cluster interface {
	// Size is the total number of nodes including self.
	Size() int
	// PeersExceptSelf enumerates every other node in the cluster.
	PeersExceptSelf() []NodeId
	// ElectionTimeoutMs returns this node's randomized election timeout.
	ElectionTimeoutMs() int
	// RequestVoteFrom sends RequestVote to peer and returns its reply.
	RequestVoteFrom(ctx context.Context, peer NodeId, term uint64, candidateId NodeId, lastLogIndex int, lastLogTerm uint64) (voteGranted bool, responderTerm uint64, err error)
	// SendAppendEntriesTo sends AppendEntries to peer and returns its reply.
	SendAppendEntriesTo(ctx context.Context, peer NodeId, term uint64, leaderId NodeId, prevLogIndex int, prevLogTerm uint64, entries []LogEntry, leaderCommit int) (success bool, responderTerm uint64, err error)
	// RedirectRequestTo forwards a client command to peer.
	RedirectRequestTo(ctx context.Context, peer NodeId, command []byte) error
}

// StateMachine is the pluggable deterministic command executor (spec §6).
type StateMachine interface {
	// Apply executes command. The core guarantees each committed index is
	// applied exactly once; Apply itself is assumed infallible.
	Apply(command []byte)
	// TestConnection is a diagnostic hook, never called on the hot path.
	TestConnection() error
}

// Durable is the log-durability hook spec §6 requires: persist the three
// mutable fields that Raft safety depends on before an RPC reply that
// changed them is sent. Implementations must make Persist atomic with
// respect to all three fields.
type Durable interface {
	Persist(currentTerm uint64, votedFor *NodeId, log []LogEntry) error
	Load() (currentTerm uint64, votedFor *NodeId, log []LogEntry, err error)
}

// Error taxonomy (spec §7). RPC receivers never return these; they are
// surfaced only by client-facing and collaborator-facing calls.
var (
	ErrNotLeader     = errors.New("raft: not leader")
	ErrStopped       = errors.New("raft: node is stopped")
	ErrNoLeaderKnown = errors.New("raft: no leader known yet")
)
