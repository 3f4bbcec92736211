package raft

import (
	"log"
	"sync"
	"time"
)

// Node is a single Raft participant. All exported methods are safe for
// concurrent use; mu guards every field listed in spec §5 as shared
// mutable state (currentTerm, votedFor, leaderId, role, voteCount,
// commitIndex, lastApplied, log, nextIndex, matchIndex).
type Node struct {
	id      NodeId
	cluster Cluster
	sm      StateMachine
	durable Durable
	logger  *log.Logger

	mu          sync.Mutex
	role        Role
	currentTerm uint64
	votedFor    *NodeId
	leaderId    *NodeId
	voteCount   int
	raftlog     *raftLog

	nextIndex  map[NodeId]int
	matchIndex map[NodeId]int

	electionTimer  *time.Timer
	heartbeatTimer *time.Timer

	// rpcTimeout bounds how long a single peer RPC may block a fan-out
	// (spec §5: "an implementation must bound per-RPC wait so a dead peer
	// cannot stall a fan-out indefinitely").
	rpcTimeout time.Duration
}

const defaultRPCTimeout = 750 * time.Millisecond

// NewNode creates a node in the Stopped role. Call Configure before Run.
func NewNode(id NodeId, sm StateMachine, durable Durable, logger *log.Logger) *Node {
	if logger == nil {
		logger = log.Default()
	}
	return &Node{
		id:         id,
		sm:         sm,
		durable:    durable,
		logger:     logger,
		role:       Stopped,
		raftlog:    newRaftLog(),
		nextIndex:  make(map[NodeId]int),
		matchIndex: make(map[NodeId]int),
		rpcTimeout: defaultRPCTimeout,
	}
}

// Id returns this node's identity.
func (n *Node) Id() NodeId { return n.id }

// Configure attaches the cluster collaborator, restores any durably
// persisted state, and transitions the node to Follower (spec §3
// Lifecycle). It does not arm timers; call Run for that.
func (n *Node) Configure(cluster Cluster) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.cluster = cluster

	if n.durable != nil {
		term, votedFor, entries, err := n.durable.Load()
		if err != nil {
			return err
		}
		n.currentTerm = term
		n.votedFor = votedFor
		if entries != nil {
			n.raftlog.entries = entries
		}
	}

	n.role = Follower
	n.logger.Printf("raft: node %d configured, term=%d role=%s", n.id, n.currentTerm, n.role)
	return nil
}

// Run arms the timers appropriate to the node's current role (spec §4.1).
func (n *Node) Run() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.runLocked()
}

// Stop disarms all timers and transitions to Stopped (spec §3 Lifecycle).
func (n *Node) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.role = Stopped
	n.runLocked()
}

// Restart returns the node to Follower and re-arms timers.
func (n *Node) Restart() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.role = Follower
	n.runLocked()
}

// runLocked arms exactly the timers appropriate to the current role. Run,
// Stop, Restart, the election timeout, promotion and a leader's step-down
// go through it; the RPC receivers re-arm the election timer and disarm the
// heartbeat timer directly. Caller must hold mu.
func (n *Node) runLocked() {
	switch n.role {
	case Follower:
		n.disarmHeartbeatLocked()
		n.armElectionLocked()
	case Candidate:
		n.disarmHeartbeatLocked()
		n.armElectionLocked()
		go n.runElection()
	case Leader:
		n.disarmElectionLocked()
		n.resetLeaderVolatileLocked()
		n.armHeartbeatLocked(true)
	case Stopped:
		n.disarmElectionLocked()
		n.disarmHeartbeatLocked()
	}
}

func (n *Node) resetLeaderVolatileLocked() {
	lastIndex := n.raftlog.len()
	n.nextIndex = make(map[NodeId]int, len(n.cluster.PeersExceptSelf()))
	n.matchIndex = make(map[NodeId]int, len(n.cluster.PeersExceptSelf()))
	for _, p := range n.cluster.PeersExceptSelf() {
		n.nextIndex[p] = lastIndex
		n.matchIndex[p] = -1 // see SPEC_FULL/DESIGN: reference initialises to 0, which is wrong for an empty replicated prefix
	}
}

func (n *Node) armElectionLocked() {
	if n.electionTimer != nil {
		n.electionTimer.Stop()
	}
	timeout := time.Duration(n.cluster.ElectionTimeoutMs()) * time.Millisecond
	n.electionTimer = time.AfterFunc(timeout, n.onElectionTimeout)
}

func (n *Node) disarmElectionLocked() {
	if n.electionTimer != nil {
		n.electionTimer.Stop()
	}
}

// armHeartbeatLocked schedules the next heartbeat pass. immediate selects
// between firing at t=0 (on promotion) and waiting a full interval (after
// a pass has already run once).
func (n *Node) armHeartbeatLocked(immediate bool) {
	if n.heartbeatTimer != nil {
		n.heartbeatTimer.Stop()
	}
	interval := time.Duration(n.cluster.ElectionTimeoutMs()) * time.Millisecond / 2
	delay := interval
	if immediate {
		delay = 0
	}
	n.heartbeatTimer = time.AfterFunc(delay, n.onHeartbeatTimeout)
}

func (n *Node) disarmHeartbeatLocked() {
	if n.heartbeatTimer != nil {
		n.heartbeatTimer.Stop()
	}
}

func (n *Node) onElectionTimeout() {
	n.mu.Lock()
	if n.role != Follower && n.role != Candidate {
		n.mu.Unlock()
		return
	}
	n.role = Candidate
	n.runLocked()
	n.mu.Unlock()
}

func (n *Node) onHeartbeatTimeout() {
	n.mu.Lock()
	if n.role != Leader {
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()

	n.runHeartbeatPass()

	n.mu.Lock()
	if n.role == Leader {
		n.armHeartbeatLocked(false)
	}
	n.mu.Unlock()
}

// advanceTermLocked is the single privileged term-update primitive (spec
// §4.1). Caller must hold mu. Returns true if it mutated state.
func (n *Node) advanceTermLocked(term uint64) bool {
	if term <= n.currentTerm {
		return false
	}
	n.currentTerm = term
	n.leaderId = nil
	n.votedFor = nil
	n.voteCount = 0
	wasLeader := n.role == Leader
	n.role = Follower
	if wasLeader {
		// A Leader stepping down must stop arming leader timers and start
		// arming follower ones; a Candidate/Follower observing a higher
		// term just keeps its already-armed election timer.
		n.runLocked()
	}
	n.persistLocked()
	return true
}

// persistLocked calls the durable-write hook with the fields Raft safety
// depends on. Caller must hold mu. Failures are logged; spec leaves
// storage failure recovery to the durability collaborator, so the core
// degrades to in-memory-only operation rather than wedging.
func (n *Node) persistLocked() {
	if n.durable == nil {
		return
	}
	if err := n.durable.Persist(n.currentTerm, n.votedFor, n.raftlog.entries); err != nil {
		n.logger.Printf("raft: node %d durable persist failed: %v", n.id, err)
	}
}

// State returns the node's current term and role, for diagnostics/tests.
func (n *Node) State() (term uint64, role Role) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentTerm, n.role
}

// LeaderId returns the last known leader, if any.
func (n *Node) LeaderId() (NodeId, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.leaderId == nil {
		return 0, false
	}
	return *n.leaderId, true
}

// CommitIndex and LastApplied expose the apply cursors for tests/metrics.
func (n *Node) CommitIndex() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.raftlog.commitIndex
}

func (n *Node) LastApplied() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.raftlog.lastApplied
}

// LogEntries returns a copy of the current log, for tests.
func (n *Node) LogEntries() []LogEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]LogEntry, len(n.raftlog.entries))
	copy(out, n.raftlog.entries)
	return out
}
