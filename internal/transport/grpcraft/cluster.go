// Package grpcraft is the wire transport collaborator (spec §6): it
// implements raft.Cluster over gRPC, using a hand-written ServiceDesc and a
// JSON content-subtype codec in place of protoc-generated stubs (no protoc
// toolchain is available in this environment), and google/uuid correlation
// IDs on every RPC for log tracing, the way the retrieval pack's own
// gRPC server does.
package grpcraft

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"raftcore/internal/raft"
)

// ClusterTransport implements raft.Cluster by dialing peer addresses lazily
// and caching the resulting connections.
type ClusterTransport struct {
	selfID            raft.NodeId
	peerAddrs         map[raft.NodeId]string
	size              int
	electionTimeoutMs int
	logger            *log.Logger

	mu    sync.Mutex
	conns map[raft.NodeId]*grpc.ClientConn
	clients map[raft.NodeId]RaftClient
}

// NewClusterTransport builds a transport for a fixed cluster (spec §2: no
// membership changes). electionTimeoutMs is this node's own randomized
// timeout, already jittered by the caller.
func NewClusterTransport(selfID raft.NodeId, peerAddrs map[raft.NodeId]string, clusterSize, electionTimeoutMs int, logger *log.Logger) *ClusterTransport {
	if logger == nil {
		logger = log.Default()
	}
	return &ClusterTransport{
		selfID:            selfID,
		peerAddrs:         peerAddrs,
		size:              clusterSize,
		electionTimeoutMs: electionTimeoutMs,
		logger:            logger,
		conns:             make(map[raft.NodeId]*grpc.ClientConn),
		clients:           make(map[raft.NodeId]RaftClient),
	}
}

func (t *ClusterTransport) Size() int { return t.size }

func (t *ClusterTransport) PeersExceptSelf() []raft.NodeId {
	peers := make([]raft.NodeId, 0, len(t.peerAddrs))
	for id := range t.peerAddrs {
		peers = append(peers, id)
	}
	return peers
}

func (t *ClusterTransport) ElectionTimeoutMs() int { return t.electionTimeoutMs }

func (t *ClusterTransport) clientFor(peer raft.NodeId) (RaftClient, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.clients[peer]; ok {
		return c, nil
	}
	addr, ok := t.peerAddrs[peer]
	if !ok {
		return nil, fmt.Errorf("grpcraft: unknown peer %d", peer)
	}
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("grpcraft: dial peer %d at %s: %w", peer, addr, err)
	}
	client := NewRaftClient(conn)
	t.conns[peer] = conn
	t.clients[peer] = client
	return client, nil
}

func (t *ClusterTransport) RequestVoteFrom(ctx context.Context, peer raft.NodeId, term uint64, candidateId raft.NodeId, lastLogIndex int, lastLogTerm uint64) (bool, uint64, error) {
	client, err := t.clientFor(peer)
	if err != nil {
		return false, 0, err
	}
	corrID := uuid.NewString()
	t.logger.Printf("raft-rpc[%s]: RequestVote -> node %d term %d", corrID, peer, term)
	reply, err := client.RequestVote(ctx, &RequestVoteArgs{
		Term:         term,
		CandidateId:  uint64(candidateId),
		LastLogIndex: lastLogIndex,
		LastLogTerm:  lastLogTerm,
	})
	if err != nil {
		return false, 0, err
	}
	return reply.VoteGranted, reply.Term, nil
}

func (t *ClusterTransport) SendAppendEntriesTo(ctx context.Context, peer raft.NodeId, term uint64, leaderId raft.NodeId, prevLogIndex int, prevLogTerm uint64, entries []raft.LogEntry, leaderCommit int) (bool, uint64, error) {
	client, err := t.clientFor(peer)
	if err != nil {
		return false, 0, err
	}
	corrID := uuid.NewString()
	t.logger.Printf("raft-rpc[%s]: AppendEntries -> node %d term %d (%d entries)", corrID, peer, term, len(entries))
	reply, err := client.AppendEntries(ctx, &AppendEntriesArgs{
		Term:         term,
		LeaderId:     uint64(leaderId),
		PrevLogIndex: prevLogIndex,
		PrevLogTerm:  prevLogTerm,
		Entries:      entries,
		LeaderCommit: leaderCommit,
	})
	if err != nil {
		return false, 0, err
	}
	return reply.Success, reply.Term, nil
}

func (t *ClusterTransport) RedirectRequestTo(ctx context.Context, peer raft.NodeId, command []byte) error {
	client, err := t.clientFor(peer)
	if err != nil {
		return err
	}
	corrID := uuid.NewString()
	t.logger.Printf("raft-rpc[%s]: Redirect -> node %d (%d-byte command)", corrID, peer, len(command))
	_, err = client.Redirect(ctx, &RedirectArgs{Command: command})
	return err
}

// Close tears down every cached outbound connection.
func (t *ClusterTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for peer, c := range t.conns {
		_ = c.Close()
		delete(t.conns, peer)
	}
	return nil
}
