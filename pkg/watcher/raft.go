// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/LeeDigitalWorks/imagepipe/pkg/logger"
)

// RaftConfig configures a RaftWatcher. When DataDir is empty, the
// watcher runs entirely in memory, which is enough to exercise leader
// election in tests without touching disk.
type RaftConfig struct {
	NodeID           string
	BindAddr         string
	DataDir          string
	Bootstrap        bool
	HeartbeatTimeout time.Duration
	ElectionTimeout  time.Duration
}

// lockFSM is a no-op raft.FSM: the watcher only cares about leadership,
// never about replicating state through the log, so Apply/Snapshot/
// Restore all do nothing.
type lockFSM struct{}

func (lockFSM) Apply(l *raft.Log) interface{} { return nil }
func (lockFSM) Snapshot() (raft.FSMSnapshot, error) {
	return lockFSM{}, nil
}
func (lockFSM) Restore(rc io.ReadCloser) error { return rc.Close() }
func (lockFSM) Persist(sink raft.SnapshotSink) error {
	return sink.Close()
}
func (lockFSM) Release() {}

// RaftWatcher implements Watcher by treating Raft leadership as lock
// ownership: LockOwner reports raft.State() == Leader. RequestLock is
// advisory only, since hashicorp/raft elections are timer-driven and a
// single node cannot will itself into leadership on demand.
type RaftWatcher struct {
	raft       *raft.Raft
	transport  *raft.NetworkTransport
	logStore   *raftboltdb.BoltStore
	opsPending atomic.Int64
}

// NewRaftWatcher bootstraps a Raft node following the same setup
// sequence as this codebase's cluster manager: default config with the
// zerolog adapter installed, a file snapshot store, a BoltDB log/stable
// store (or in-memory stores when DataDir is empty), a TCP transport,
// and an optional single-node bootstrap.
func NewRaftWatcher(cfg RaftConfig) (*RaftWatcher, error) {
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("watcher: NodeID is required")
	}
	if cfg.BindAddr == "" {
		return nil, fmt.Errorf("watcher: BindAddr is required")
	}

	raftConfig := raft.DefaultConfig()
	raftConfig.Logger = logger.ZerologRaftAdapter{}
	raftConfig.LocalID = raft.ServerID(cfg.NodeID)
	if cfg.HeartbeatTimeout > 0 {
		raftConfig.HeartbeatTimeout = cfg.HeartbeatTimeout
		if raftConfig.LeaderLeaseTimeout > cfg.HeartbeatTimeout {
			raftConfig.LeaderLeaseTimeout = cfg.HeartbeatTimeout
		}
	}
	if cfg.ElectionTimeout > 0 {
		raftConfig.ElectionTimeout = cfg.ElectionTimeout
	}

	var snapshotStore raft.SnapshotStore
	var boltStore *raftboltdb.BoltStore
	var logSink raft.LogStore
	var stableStore raft.StableStore

	if cfg.DataDir != "" {
		fss, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, nil)
		if err != nil {
			return nil, fmt.Errorf("watcher: snapshot store: %w", err)
		}
		snapshotStore = fss

		bs, err := raftboltdb.NewBoltStore(cfg.DataDir + "/raft.db")
		if err != nil {
			return nil, fmt.Errorf("watcher: bolt store: %w", err)
		}
		boltStore = bs
		logSink = bs
		stableStore = bs
	} else {
		snapshotStore = raft.NewInmemSnapshotStore()
		inmem := raft.NewInmemStore()
		logSink = inmem
		stableStore = inmem
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("watcher: resolve tcp addr: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, nil)
	if err != nil {
		return nil, fmt.Errorf("watcher: tcp transport: %w", err)
	}

	ra, err := raft.NewRaft(raftConfig, lockFSM{}, logSink, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("watcher: new raft: %w", err)
	}

	w := &RaftWatcher{raft: ra, transport: transport, logStore: boltStore}

	if cfg.Bootstrap {
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{ID: raftConfig.LocalID, Address: transport.LocalAddr()},
			},
		}
		future := ra.BootstrapCluster(configuration)
		if err := future.Error(); err != nil {
			logger.Warn().Err(err).Msg("watcher: bootstrap failed (may already be bootstrapped)")
		} else {
			logger.Info().Msg("watcher: bootstrapped raft cluster")
		}
	}

	return w, nil
}

// LockSupported is always true for a Raft-backed watcher: the whole
// point of wiring one in is to negotiate exclusive ownership.
func (w *RaftWatcher) LockSupported() bool {
	return true
}

func (w *RaftWatcher) LockOwner() bool {
	return w.raft.State() == raft.Leader
}

// RequestLock is advisory: hashicorp/raft elects leaders on its own
// timers, so this just confirms the node is part of a cluster that can
// elect one. A lone unbootstrapped node will never become leader.
func (w *RaftWatcher) RequestLock(ctx context.Context) error {
	if w.raft.Leader() == "" {
		return fmt.Errorf("watcher: no leader elected yet")
	}
	return nil
}

func (w *RaftWatcher) ReleaseLock(ctx context.Context) error {
	if !w.LockOwner() {
		return nil
	}
	if w.opsPending.Load() > 0 {
		logger.Warn().Msg("watcher: release requested with aio ops still pending")
	}
	future := w.raft.LeadershipTransfer()
	return future.Error()
}

func (w *RaftWatcher) FlagAIOOpsPending() {
	w.opsPending.Add(1)
}

func (w *RaftWatcher) ClearAIOOpsPending() {
	w.opsPending.Add(-1)
}

func (w *RaftWatcher) Close() error {
	future := w.raft.Shutdown()
	if err := future.Error(); err != nil {
		return err
	}
	if w.logStore != nil {
		return w.logStore.Close()
	}
	return nil
}
