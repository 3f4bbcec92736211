package grpcraft

import (
	"context"

	"google.golang.org/grpc"
)

// RaftServiceName is the fully-qualified service name a protoc-generated
// stub would have used had one existed.
const RaftServiceName = "raftcore.Raft"

// RaftServer is the service interface a generated _grpc.pb.go would have
// declared for the three Raft RPCs (spec §4.4, §4.5).
type RaftServer interface {
	RequestVote(context.Context, *RequestVoteArgs) (*RequestVoteReply, error)
	AppendEntries(context.Context, *AppendEntriesArgs) (*AppendEntriesReply, error)
	Redirect(context.Context, *RedirectArgs) (*RedirectReply, error)
}

// RaftClient is the client-side counterpart.
type RaftClient interface {
	RequestVote(ctx context.Context, in *RequestVoteArgs, opts ...grpc.CallOption) (*RequestVoteReply, error)
	AppendEntries(ctx context.Context, in *AppendEntriesArgs, opts ...grpc.CallOption) (*AppendEntriesReply, error)
	Redirect(ctx context.Context, in *RedirectArgs, opts ...grpc.CallOption) (*RedirectReply, error)
}

type raftClient struct {
	cc grpc.ClientConnInterface
}

// NewRaftClient wraps a ClientConn (or any ClientConnInterface) as a
// RaftClient, the way protoc-gen-go-grpc's NewXClient constructor would.
func NewRaftClient(cc grpc.ClientConnInterface) RaftClient {
	return &raftClient{cc: cc}
}

func (c *raftClient) RequestVote(ctx context.Context, in *RequestVoteArgs, opts ...grpc.CallOption) (*RequestVoteReply, error) {
	out := new(RequestVoteReply)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	if err := c.cc.Invoke(ctx, RaftServiceName+"/RequestVote", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *raftClient) AppendEntries(ctx context.Context, in *AppendEntriesArgs, opts ...grpc.CallOption) (*AppendEntriesReply, error) {
	out := new(AppendEntriesReply)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	if err := c.cc.Invoke(ctx, RaftServiceName+"/AppendEntries", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *raftClient) Redirect(ctx context.Context, in *RedirectArgs, opts ...grpc.CallOption) (*RedirectReply, error) {
	out := new(RedirectReply)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	if err := c.cc.Invoke(ctx, RaftServiceName+"/Redirect", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Raft_RequestVote_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RequestVoteArgs)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftServer).RequestVote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RaftServiceName + "/RequestVote"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RaftServer).RequestVote(ctx, req.(*RequestVoteArgs))
	}
	return interceptor(ctx, in, info, handler)
}

func _Raft_AppendEntries_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AppendEntriesArgs)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftServer).AppendEntries(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RaftServiceName + "/AppendEntries"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RaftServer).AppendEntries(ctx, req.(*AppendEntriesArgs))
	}
	return interceptor(ctx, in, info, handler)
}

func _Raft_Redirect_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RedirectArgs)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftServer).Redirect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RaftServiceName + "/Redirect"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RaftServer).Redirect(ctx, req.(*RedirectArgs))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the grpc.ServiceDesc a protoc-gen-go-grpc run would have
// emitted for raft.proto, written by hand in its place.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: RaftServiceName,
	HandlerType: (*RaftServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RequestVote", Handler: _Raft_RequestVote_Handler},
		{MethodName: "AppendEntries", Handler: _Raft_AppendEntries_Handler},
		{MethodName: "Redirect", Handler: _Raft_Redirect_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "raftcore/raft.proto",
}

// RegisterRaftServer registers srv with s the way a generated
// RegisterXServer function would.
func RegisterRaftServer(s grpc.ServiceRegistrar, srv RaftServer) {
	s.RegisterService(&ServiceDesc, srv)
}
