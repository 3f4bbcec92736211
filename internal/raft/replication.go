package raft

import "context"

// runHeartbeatPass does one leader fan-out pass: heartbeats/replication to
// every peer in parallel (spec §4.3), then commit advancement. Must never
// be called with mu held.
func (n *Node) runHeartbeatPass() {
	n.mu.Lock()
	if n.role != Leader {
		n.mu.Unlock()
		return
	}
	term := n.currentTerm
	self := n.id
	cluster := n.cluster
	peers := cluster.PeersExceptSelf()
	commitIndex := n.raftlog.commitIndex
	type peerPlan struct {
		peer         NodeId
		prevLogIndex int
		prevLogTerm  uint64
		entries      []LogEntry
	}
	plans := make([]peerPlan, 0, len(peers))
	for _, p := range peers {
		next := n.nextIndex[p]
		// prevLogIndex is -1 when next is 0: there is no previous entry to
		// check against (a max(0, next-1) clamp would make the first entry at index 0 indistinguishable
		// from "an entry exists at 0", breaking the very first replication
		// in an empty-log cluster).
		prevLogIndex := next - 1
		prevLogTerm, _ := n.raftlog.termAt(prevLogIndex)
		var entries []LogEntry
		if n.raftlog.len() > next {
			entries = n.raftlog.entriesFrom(next)
		}
		plans = append(plans, peerPlan{peer: p, prevLogIndex: prevLogIndex, prevLogTerm: prevLogTerm, entries: entries})
	}
	n.mu.Unlock()

	type peerReply struct {
		peer         NodeId
		success      bool
		responderOK  bool
		responderTerm uint64
		sentUpTo     int // len(log) at send time, to recompute nextIndex/matchIndex absolutely
		hadEntries   bool
	}
	replies := make(chan peerReply, len(plans))
	for _, plan := range plans {
		go func(plan peerPlan) {
			ctx, cancel := context.WithTimeout(context.Background(), n.rpcTimeout)
			defer cancel()
			success, responderTerm, err := cluster.SendAppendEntriesTo(ctx, plan.peer, term, self, plan.prevLogIndex, plan.prevLogTerm, plan.entries, commitIndex)
			if err != nil {
				replies <- peerReply{peer: plan.peer, responderOK: false}
				return
			}
			replies <- peerReply{
				peer:          plan.peer,
				success:       success,
				responderOK:   true,
				responderTerm: responderTerm,
				sentUpTo:      plan.prevLogIndex + 1 + len(plan.entries),
				hadEntries:    len(plan.entries) > 0,
			}
		}(plan)
	}

	for i := 0; i < len(plans); i++ {
		r := <-replies
		if !r.responderOK {
			// TransportError: the pass proceeds with the responses it did
			// receive (spec §7).
			continue
		}

		n.mu.Lock()
		if n.advanceTermLocked(r.responderTerm) {
			// Stepped down mid fan-out: abort further processing for this
			// peer (spec §4.3 step 4).
			n.mu.Unlock()
			continue
		}
		if n.role != Leader {
			n.mu.Unlock()
			continue
		}
		if r.success {
			if r.hadEntries {
				n.nextIndex[r.peer] = r.sentUpTo
				n.matchIndex[r.peer] = r.sentUpTo - 1
			}
		} else if n.nextIndex[r.peer] > 0 {
			n.nextIndex[r.peer]--
		}
		n.mu.Unlock()
	}

	n.advanceCommitIndex()
}

// advanceCommitIndex runs commit advancement after a full fan-out pass
// (spec §4.3). Must never be called with mu held.
func (n *Node) advanceCommitIndex() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.role != Leader {
		return
	}

	majority := n.majorityLocked()
	for i := n.raftlog.commitIndex + 1; i < n.raftlog.len(); i++ {
		term, _ := n.raftlog.termAt(i)
		if term != n.currentTerm {
			// A leader must not commit a prior-term entry by replica count
			// alone (spec §4.3); it commits transitively once a
			// current-term entry above it commits.
			continue
		}
		replicas := 1 // count self
		for _, p := range n.cluster.PeersExceptSelf() {
			if n.matchIndex[p] >= i {
				replicas++
			}
		}
		if replicas < majority {
			continue
		}
		n.raftlog.commitIndex = i
		n.applyCommittedLocked()
	}
}

// applyCommittedLocked applies every entry between lastApplied and
// commitIndex, in order. Caller must hold mu.
func (n *Node) applyCommittedLocked() {
	for n.raftlog.lastApplied < n.raftlog.commitIndex {
		n.raftlog.lastApplied++
		entry := n.raftlog.entries[n.raftlog.lastApplied]
		n.sm.Apply(entry.Command)
	}
}
