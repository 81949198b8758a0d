package test_helpers

import (
	"time"

	"github.com/eagraf/holochain-runner/internal/node/hdb/consensus"
)

// FastRaft shortens raft's timers so a single-voter cluster elects itself within
// a few milliseconds.
func FastRaft() consensus.Options {
	return consensus.Options{
		HeartbeatTimeout: 50 * time.Millisecond,
		ElectionTimeout:  50 * time.Millisecond,
		CommitTimeout:    5 * time.Millisecond,
	}
}
