package raft

import (
	"context"
	"time"
)

// leaderPollInterval bounds how often MakeRequest re-checks for a known
// leader while blocked (spec §5: "the reference uses 500ms").
const leaderPollInterval = 500 * time.Millisecond

// MakeRequest is the client request intake (spec §4.5). If this node is
// Leader, the command is appended locally and replicated on the next
// heartbeat pass. Otherwise the caller blocks until a leader is known,
// then the command is forwarded via the cluster collaborator.
//
// Returning the state-machine result of the command to the caller is an
// open question the reference leaves unimplemented (spec §9 item 6); this
// implementation returns only the log index the command was assigned when
// this node is Leader, 0 when the command was forwarded, or an error, and
// does not thread a completion channel back from commit
// advancement. See DESIGN.md.
func (n *Node) MakeRequest(ctx context.Context, command []byte) (int, error) {
	n.mu.Lock()
	if n.role == Leader {
		entry := n.raftlog.append(n.currentTerm, command)
		n.persistLocked()
		n.mu.Unlock()
		return entry.Index, nil
	}
	n.mu.Unlock()

	leader, err := n.waitForLeader(ctx)
	if err != nil {
		return 0, err
	}

	if leader == n.id {
		// Stale leaderId pointing at self: pick an arbitrary other peer.
		peers := n.cluster.PeersExceptSelf()
		if len(peers) == 0 {
			return 0, ErrNoLeaderKnown
		}
		leader = peers[0]
	}

	if err := n.cluster.RedirectRequestTo(ctx, leader, command); err != nil {
		return 0, err
	}
	return 0, nil
}

// waitForLeader blocks until leaderId is set or ctx is done.
func (n *Node) waitForLeader(ctx context.Context) (NodeId, error) {
	ticker := time.NewTicker(leaderPollInterval)
	defer ticker.Stop()

	if leader, ok := n.LeaderId(); ok {
		return leader, nil
	}

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
			if leader, ok := n.LeaderId(); ok {
				return leader, nil
			}
		}
	}
}
