package grpcraft

import "raftcore/internal/raft"

// Wire message shapes for the hand-rolled Raft gRPC service. Field names
// mirror the core's RPC parameter lists (spec §4.4) so the JSON codec can
// round-trip them without a .proto-generated type.

type RequestVoteArgs struct {
	Term         uint64 `json:"term"`
	CandidateId  uint64 `json:"candidate_id"`
	LastLogIndex int    `json:"last_log_index"`
	LastLogTerm  uint64 `json:"last_log_term"`
}

type RequestVoteReply struct {
	VoteGranted bool   `json:"vote_granted"`
	Term        uint64 `json:"term"`
}

type AppendEntriesArgs struct {
	Term         uint64          `json:"term"`
	LeaderId     uint64          `json:"leader_id"`
	PrevLogIndex int             `json:"prev_log_index"`
	PrevLogTerm  uint64          `json:"prev_log_term"`
	Entries      []raft.LogEntry `json:"entries"`
	LeaderCommit int             `json:"leader_commit"`
}

type AppendEntriesReply struct {
	Success bool   `json:"success"`
	Term    uint64 `json:"term"`
}

type RedirectArgs struct {
	Command []byte `json:"command"`
}

type RedirectReply struct{}
