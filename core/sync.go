package core

import (
	"context"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// reconcilePeriod is the reconciliation loop's polling cadence.
const reconcilePeriod = 500 * time.Millisecond

// SyncManager tracks local vs. peer-observed chain height and buffers
// blocks staged from the network until they can be applied. The whole
// record is guarded by one mutex, per the core's concurrency contract.
type SyncManager struct {
	logger *log.Logger

	mu             sync.Mutex
	localHeight    uint64
	peerMaxHeight  uint64
	pendingBlocks  map[uint64]NodeID
	stagedBlocks   []*Block

	cancel context.CancelFunc
}

// NewSyncManager starts at localHeight with no observed peer height.
func NewSyncManager(localHeight uint64, logger *log.Logger) *SyncManager {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &SyncManager{
		logger:        logger,
		localHeight:   localHeight,
		pendingBlocks: make(map[uint64]NodeID),
	}
}

// IsSynced reports local_height ≥ peer_max_height.
func (s *SyncManager) IsSynced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localHeight >= s.peerMaxHeight
}

// SyncRange returns the inclusive block range [local+1, peer_max] the node
// needs to catch up, or ok=false if already synced.
func (s *SyncManager) SyncRange() (from, to uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.localHeight >= s.peerMaxHeight {
		return 0, 0, false
	}
	return s.localHeight + 1, s.peerMaxHeight, true
}

// UpdatePeerHeight raises peer_max_height; it is monotone non-decreasing.
func (s *SyncManager) UpdatePeerHeight(h uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h > s.peerMaxHeight {
		s.peerMaxHeight = h
	}
}

// StageBlock appends a block to the staged buffer, to be drained by
// GetApplicable.
func (s *SyncManager) StageBlock(b *Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stagedBlocks = append(s.stagedBlocks, b)
}

// GetApplicable drains the staged buffer ordered by block hash (the
// reference ordering spec.md names; a production implementation should
// order by block number instead) and returns the drained blocks.
func (s *SyncManager) GetApplicable() []*Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stagedBlocks
	s.stagedBlocks = nil
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out
}

// AdvanceLocalHeight records that local_height has reached h; a lower h is
// ignored. The reconciliation loop started by Start does not call it.
func (s *SyncManager) AdvanceLocalHeight(h uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h > s.localHeight {
		s.localHeight = h
	}
}

// LocalHeight returns the current local height.
func (s *SyncManager) LocalHeight() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localHeight
}

// Reconciler applies staged blocks to state + indexer, the policy-external
// sibling task spec.md §4.9 describes.
type Reconciler func(staged []*Block)

// Start launches a background loop that, whenever the node is behind,
// drains GetApplicable through reconcile. Stop cancels it.
func (s *SyncManager) Start(reconcile Reconciler) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.loop(ctx, reconcile)
}

func (s *SyncManager) loop(ctx context.Context, reconcile Reconciler) {
	ticker := time.NewTicker(reconcilePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.IsSynced() {
				staged := s.GetApplicable()
				if len(staged) > 0 {
					reconcile(staged)
				}
			}
		}
	}
}

// Stop cancels the background reconciliation loop.
func (s *SyncManager) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}
