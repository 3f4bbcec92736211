// Package config loads and validates the YAML cluster configuration that
// wires a node's identity, peer addresses, data directory, and election
// timeout bounds (spec §6's Cluster collaborator, concretized). Grounded in
// Konstantsiy-casual-raft/raft-server/config.go: same read-unmarshal-validate
// shape, same duplicate-peer-ID and self-in-peer-list checks.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"raftcore/internal/raft"
)

// Config is the on-disk shape of one node's cluster configuration.
type Config struct {
	Node    NodeConfig    `yaml:"node"`
	Cluster ClusterConfig `yaml:"cluster"`
}

// NodeConfig describes this node.
type NodeConfig struct {
	ID      uint64 `yaml:"id"`
	Address string `yaml:"address"`
	DataDir string `yaml:"data_dir"`
}

// ClusterConfig describes every member of the fixed cluster, including self.
type ClusterConfig struct {
	Peers                []PeerConfig `yaml:"peers"`
	ElectionTimeoutMinMs int          `yaml:"election_timeout_min_ms"`
	ElectionTimeoutMaxMs int          `yaml:"election_timeout_max_ms"`
}

// PeerConfig is one cluster member.
type PeerConfig struct {
	ID      uint64 `yaml:"id"`
	Address string `yaml:"address"`
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Cluster.ElectionTimeoutMinMs == 0 {
		c.Cluster.ElectionTimeoutMinMs = 150
	}
	if c.Cluster.ElectionTimeoutMaxMs == 0 {
		c.Cluster.ElectionTimeoutMaxMs = 300
	}
}

// Validate enforces the invariants a fixed-membership cluster config needs:
// required fields present, self listed among peers at a matching address,
// no duplicate peer IDs, and a sane election timeout range.
func (c *Config) Validate() error {
	if c.Node.ID == 0 {
		return fmt.Errorf("node.id must be greater than 0")
	}
	if c.Node.Address == "" {
		return fmt.Errorf("node.address is required")
	}
	if c.Node.DataDir == "" {
		return fmt.Errorf("node.data_dir is required")
	}
	if len(c.Cluster.Peers) == 0 {
		return fmt.Errorf("cluster.peers must contain at least one peer")
	}
	if c.Cluster.ElectionTimeoutMinMs <= 0 || c.Cluster.ElectionTimeoutMaxMs <= c.Cluster.ElectionTimeoutMinMs {
		return fmt.Errorf("cluster.election_timeout_min_ms/max_ms must form a positive, increasing range")
	}

	found := false
	uniqueIDs := make(map[uint64]bool, len(c.Cluster.Peers))
	for _, peer := range c.Cluster.Peers {
		if uniqueIDs[peer.ID] {
			return fmt.Errorf("duplicate peer ID: %d", peer.ID)
		}
		uniqueIDs[peer.ID] = true
		if peer.ID == c.Node.ID {
			found = true
			if peer.Address != c.Node.Address {
				return fmt.Errorf("node address mismatch: node.address=%s but peer address=%s", c.Node.Address, peer.Address)
			}
		}
	}
	if !found {
		return fmt.Errorf("node.id=%d not found in cluster.peers", c.Node.ID)
	}
	return nil
}

// PeerAddrs returns every peer's address keyed by ID, excluding self, typed
// for direct use as raft.Cluster's peer map.
func (c *Config) PeerAddrs() map[raft.NodeId]string {
	addrs := make(map[raft.NodeId]string, len(c.Cluster.Peers)-1)
	for _, peer := range c.Cluster.Peers {
		if peer.ID == c.Node.ID {
			continue
		}
		addrs[raft.NodeId(peer.ID)] = peer.Address
	}
	return addrs
}

// Size is the total node count including self.
func (c *Config) Size() int {
	return len(c.Cluster.Peers)
}
