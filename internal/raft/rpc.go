package raft

// AppendEntries is the follower-side RPC receiver (spec §4.4). It never
// blocks and never returns a Go error for a Raft-legal outcome; the bool
// result and responder term carry the full reply.
func (n *Node) AppendEntries(term uint64, leaderId NodeId, prevLogIndex int, prevLogTerm uint64, entries []LogEntry, leaderCommit int) (success bool, responderTerm uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.role == Stopped {
		// A stopped node reports failure for every AppendEntries, empty
		// heartbeats included (see DESIGN.md open-question decision 2).
		return false, n.currentTerm
	}

	if term < n.currentTerm {
		return false, n.currentTerm
	}

	if len(entries) > 0 && prevLogIndex >= 0 {
		// prevLogIndex < 0 means the leader has no previous entry to check
		// against (nextIndex[peer] == 0): nothing to conflict with.
		if prevLogIndex >= n.raftlog.len() {
			// §9 item 4: bounds-check before trusting prevLogIndex.
			return false, n.currentTerm
		}
		if n.raftlog.hasConflictAt(prevLogIndex, prevLogTerm) {
			return false, n.currentTerm
		}
	}

	// The sender is a valid leader for this term.
	n.disarmHeartbeatLocked()
	n.armElectionLocked()
	n.advanceTermLocked(term)
	n.role = Follower
	n.leaderId = &leaderId

	if len(entries) > 0 {
		n.raftlog.truncateAndAppend(entries)
	}

	if leaderCommit > n.raftlog.commitIndex {
		upTo := leaderCommit
		if lastIdx := n.raftlog.lastIndex(); upTo > lastIdx {
			upTo = lastIdx
		}
		if upTo <= n.raftlog.commitIndex {
			// Nothing new to apply: spec §9 item 3 treats this as success,
			// not rejection, unlike the reference.
			n.persistLocked()
			return true, n.currentTerm
		}
		n.raftlog.commitIndex = upTo
		n.applyCommittedLocked()
	}

	n.persistLocked()
	return true, n.currentTerm
}

// RequestVote is the follower-side RPC receiver (spec §4.4).
func (n *Node) RequestVote(term uint64, candidateId NodeId, lastLogIndex int, lastLogTerm uint64) (voteGranted bool, responderTerm uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.role == Stopped {
		return false, n.currentTerm
	}

	if term < n.currentTerm {
		return false, n.currentTerm
	}

	n.disarmHeartbeatLocked()
	n.armElectionLocked()
	n.advanceTermLocked(term)

	canVote := n.votedFor == nil || *n.votedFor == candidateId
	logOK := lastLogTerm > n.raftlog.lastTerm() ||
		(lastLogTerm == n.raftlog.lastTerm() && lastLogIndex >= n.raftlog.lastIndex())

	if canVote && logOK {
		n.votedFor = &candidateId
		n.persistLocked()
		return true, n.currentTerm
	}
	return false, n.currentTerm
}
