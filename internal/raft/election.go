package raft

import "context"

// runElection drives one candidacy (spec §4.2). It is always started from
// runLocked's Candidate case, in its own goroutine, so it must never be
// called with mu held.
func (n *Node) runElection() {
	n.mu.Lock()
	if n.role != Candidate {
		n.mu.Unlock()
		return
	}
	// Step 1: bump currentTerm. This deliberately bypasses advanceTermLocked
	// — the node itself is the source of the new term, so the monotonic
	// clear the primitive performs is unnecessary (spec §4.2 step 1).
	n.currentTerm++
	self := n.id
	n.votedFor = &self
	n.voteCount = 1
	n.persistLocked()

	term := n.currentTerm
	lastLogIndex := n.raftlog.lastIndex()
	lastLogTerm := n.raftlog.lastTerm()
	cluster := n.cluster
	peers := cluster.PeersExceptSelf()
	n.mu.Unlock()

	n.logger.Printf("raft: node %d starting election for term %d", n.id, term)

	type voteResult struct {
		granted bool
		term    uint64
		ok      bool
	}
	results := make(chan voteResult, len(peers))
	for _, peer := range peers {
		go func(peer NodeId) {
			ctx, cancel := context.WithTimeout(context.Background(), n.rpcTimeout)
			defer cancel()
			granted, responderTerm, err := cluster.RequestVoteFrom(ctx, peer, term, self, lastLogIndex, lastLogTerm)
			if err != nil {
				// TransportError: treated as a missing reply (spec §7).
				results <- voteResult{ok: false}
				return
			}
			results <- voteResult{granted: granted, term: responderTerm, ok: true}
		}(peer)
	}

	for i := 0; i < len(peers); i++ {
		r := <-results
		if !r.ok {
			continue
		}

		n.mu.Lock()
		n.advanceTermLocked(r.term)
		// A candidate that stepped down (observed a higher term, or
		// accepted a concurrent AppendEntries) discards further grants but
		// has already inspected the term above.
		if r.granted && n.role == Candidate && n.currentTerm == term {
			n.voteCount++
		}
		n.mu.Unlock()
	}

	n.tryPromote(term)
}

// tryPromote promotes to Leader if role is still Candidate in term, the
// term hasn't moved on, and voteCount has reached majority.
func (n *Node) tryPromote(term uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.role != Candidate || n.currentTerm != term {
		return
	}
	if n.voteCount < n.majorityLocked() {
		return
	}
	n.role = Leader
	self := n.id
	n.leaderId = &self
	n.logger.Printf("raft: node %d becomes leader for term %d", n.id, n.currentTerm)
	n.runLocked()
}

// majorityLocked returns ceil((clusterSize+1)/2). Caller must hold mu.
func (n *Node) majorityLocked() int {
	size := n.cluster.Size()
	return (size + 2) / 2
}
