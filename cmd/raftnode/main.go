// Command raftnode starts a single Raft core node: it loads the cluster
// config, wires up durable storage, the in-memory KV state machine, and a
// gRPC transport, then serves inbound RPCs until terminated. Adapted from
// the teacher's pkg/server/main.go: flag-parsed entry point, net.Listen,
// grpc.NewServer, signal.Notify-driven graceful shutdown.
package main

import (
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"raftcore/internal/cluster"
	"raftcore/internal/config"
	"raftcore/internal/durable"
	"raftcore/internal/raft"
	"raftcore/internal/statemachine"
	"raftcore/internal/transport/grpcraft"
)

func main() {
	configPath := flag.String("config", "", "path to node YAML config")
	flag.Parse()

	if *configPath == "" {
		log.Fatal("raftnode: -config is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("raftnode: %v", err)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
	nodeID := raft.NodeId(cfg.Node.ID)

	store, err := durable.NewWALStore(cfg.Node.DataDir)
	if err != nil {
		log.Fatalf("raftnode: durable store: %v", err)
	}

	sm := statemachine.NewKVStore()

	timeoutMs := cluster.DeriveElectionTimeoutMs(nodeID, cfg.Cluster.ElectionTimeoutMinMs, cfg.Cluster.ElectionTimeoutMaxMs)
	transport := grpcraft.NewClusterTransport(nodeID, cfg.PeerAddrs(), cfg.Size(), timeoutMs, logger)
	defer transport.Close()

	node := raft.NewNode(nodeID, sm, store, logger)
	if err := node.Configure(transport); err != nil {
		log.Fatalf("raftnode: configure: %v", err)
	}

	lis, err := net.Listen("tcp", cfg.Node.Address)
	if err != nil {
		log.Fatalf("raftnode: listen on %s: %v", cfg.Node.Address, err)
	}

	grpcServer := grpc.NewServer()
	grpcraft.RegisterRaftServer(grpcServer, grpcraft.NewServer(node, logger))

	go func() {
		logger.Printf("raftnode: node %d listening on %s (election timeout %dms)", nodeID, cfg.Node.Address, timeoutMs)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatalf("raftnode: serve: %v", err)
		}
	}()

	node.Run()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Println("raftnode: shutting down")
	node.Stop()
	grpcServer.GracefulStop()
}
