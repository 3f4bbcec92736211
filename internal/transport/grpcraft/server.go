package grpcraft

import (
	"context"
	"log"

	"github.com/google/uuid"

	"raftcore/internal/raft"
)

// Server adapts a *raft.Node to the RaftServer interface, the inbound side
// of the transport collaborator (spec §6).
type Server struct {
	node   *raft.Node
	logger *log.Logger
}

// NewServer wraps node for gRPC registration. If logger is nil, log.Default
// is used, matching the core's own convention.
func NewServer(node *raft.Node, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{node: node, logger: logger}
}

func (s *Server) RequestVote(ctx context.Context, in *RequestVoteArgs) (*RequestVoteReply, error) {
	corrID := uuid.NewString()
	s.logger.Printf("raft-rpc[%s]: RequestVote from node %d for term %d", corrID, in.CandidateId, in.Term)
	granted, term := s.node.RequestVote(in.Term, raft.NodeId(in.CandidateId), in.LastLogIndex, in.LastLogTerm)
	return &RequestVoteReply{VoteGranted: granted, Term: term}, nil
}

func (s *Server) AppendEntries(ctx context.Context, in *AppendEntriesArgs) (*AppendEntriesReply, error) {
	corrID := uuid.NewString()
	s.logger.Printf("raft-rpc[%s]: AppendEntries from node %d for term %d (%d entries)", corrID, in.LeaderId, in.Term, len(in.Entries))
	success, term := s.node.AppendEntries(in.Term, raft.NodeId(in.LeaderId), in.PrevLogIndex, in.PrevLogTerm, in.Entries, in.LeaderCommit)
	return &AppendEntriesReply{Success: success, Term: term}, nil
}

func (s *Server) Redirect(ctx context.Context, in *RedirectArgs) (*RedirectReply, error) {
	corrID := uuid.NewString()
	s.logger.Printf("raft-rpc[%s]: Redirect carrying %d-byte command", corrID, len(in.Command))
	if _, err := s.node.MakeRequest(ctx, in.Command); err != nil {
		return nil, err
	}
	return &RedirectReply{}, nil
}
