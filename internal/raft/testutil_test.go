package raft

import (
	"context"
	"sync"
)

// stubCluster is a minimal raft.Cluster for RPC-receiver unit tests that
// never actually dial peers; its timeout is set long enough that a test's
// own election/heartbeat timers never fire mid-assertion.
type stubCluster struct {
	size    int
	peers   []NodeId
	timeout int
}

func (s *stubCluster) Size() int                  { return s.size }
func (s *stubCluster) PeersExceptSelf() []NodeId   { return s.peers }
func (s *stubCluster) ElectionTimeoutMs() int      { return s.timeout }
func (s *stubCluster) RequestVoteFrom(ctx context.Context, peer NodeId, term uint64, candidateId NodeId, lastLogIndex int, lastLogTerm uint64) (bool, uint64, error) {
	return false, 0, nil
}
func (s *stubCluster) SendAppendEntriesTo(ctx context.Context, peer NodeId, term uint64, leaderId NodeId, prevLogIndex int, prevLogTerm uint64, entries []LogEntry, leaderCommit int) (bool, uint64, error) {
	return false, 0, nil
}
func (s *stubCluster) RedirectRequestTo(ctx context.Context, peer NodeId, command []byte) error {
	return nil
}

func newStubCluster(size int, peers ...NodeId) *stubCluster {
	return &stubCluster{size: size, peers: peers, timeout: 10_000}
}

// memDurable is an in-memory raft.Durable double that lets tests preload a
// node's persistent-intent state before Configure, and records every write.
type memDurable struct {
	mu          sync.Mutex
	term        uint64
	votedFor    *NodeId
	log         []LogEntry
	persistCalls int
}

func (d *memDurable) Persist(term uint64, votedFor *NodeId, log []LogEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.term = term
	d.votedFor = votedFor
	d.log = append([]LogEntry(nil), log...)
	d.persistCalls++
	return nil
}

func (d *memDurable) Load() (uint64, *NodeId, []LogEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.term, d.votedFor, append([]LogEntry(nil), d.log...), nil
}

// fakeSM records every applied command for assertions.
type fakeSM struct {
	mu      sync.Mutex
	applied [][]byte
}

func (f *fakeSM) Apply(command []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, command)
}

func (f *fakeSM) TestConnection() error { return nil }

func (f *fakeSM) Applied() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.applied))
	copy(out, f.applied)
	return out
}

func nodeID(id uint64) *NodeId {
	n := NodeId(id)
	return &n
}
