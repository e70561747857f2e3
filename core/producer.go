package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultProducerPeriod = 5 * time.Second
	maxTxsPerBlock        = 100

	// genesisPreviousHash is the literal previous-hash for the first
	// produced block.
	genesisPreviousHash = "GENESIS"
)

// Producer is the single long-running scheduled loop: drain mempool →
// simulate → consensus.produce → commit → index → broadcast → finalize
// nonces. It owns the monotonically increasing block number and threads
// the real parent block hash forward (the producer-loop fix spec.md §9
// calls for: the reference never rigorously propagates parent hashes).
type Producer struct {
	mempool *Mempool
	state   *StateProcessor
	engine  Engine
	indexer *Indexer
	network *Network
	kv      *KVStore
	metrics *Metrics
	logger  *log.Logger

	period        time.Duration
	number        uint64
	previousHash  string
	cancel        context.CancelFunc
}

// chainHead is the persisted (hash, number) record, stored at ChainHeadKey
// so a restart resumes at the correct height and previous_hash.
type chainHead struct {
	Hash   string `json:"hash"`
	Number uint64 `json:"number"`
}

// NewProducer constructs a producer that resumes from the KV-persisted
// chain head, if any, otherwise starts at block 1 with previous_hash
// "GENESIS".
func NewProducer(mempool *Mempool, state *StateProcessor, engine Engine, indexer *Indexer, network *Network, kv *KVStore, metrics *Metrics, period time.Duration, logger *log.Logger) (*Producer, error) {
	if period <= 0 {
		period = defaultProducerPeriod
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	p := &Producer{
		mempool: mempool, state: state, engine: engine, indexer: indexer,
		network: network, kv: kv, metrics: metrics, period: period, logger: logger,
		number: 1, previousHash: genesisPreviousHash,
	}
	if raw, ok, err := kv.Get(ChainHeadKey); err != nil {
		return nil, err
	} else if ok {
		head, err := decodeChainHead(raw)
		if err != nil {
			return nil, err
		}
		p.number = head.Number + 1
		p.previousHash = head.Hash
	}
	return p, nil
}

// Start launches the periodic loop. Stop cancels it.
func (p *Producer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.loop(ctx)
}

func (p *Producer) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Producer) loop(ctx context.Context) {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick runs exactly one iteration of the producer loop. Errors from any
// stage are logged and the iteration is abandoned; no partial rollback of
// an already-applied state commit is supported.
func (p *Producer) tick() {
	pending := p.mempool.Peek()
	if len(pending) == 0 {
		return
	}
	txs := p.mempool.Take(min(len(pending), maxTxsPerBlock))
	if len(txs) == 0 {
		return
	}

	pre := p.state.RootHash()
	post, err := p.state.Simulate(txs)
	if err != nil {
		p.logger.Errorf("producer: simulate failed: %v", err)
		return
	}

	produceStart := time.Now()
	block := p.engine.Produce(txs, p.previousHash, post)
	block.PreStateRoot = pre
	if p.metrics != nil {
		p.metrics.ConsensusSeconds.Observe(time.Since(produceStart).Seconds())
	}

	if _, err := p.state.Commit(block); err != nil {
		p.logger.Errorf("producer: commit failed: %v", err)
		return
	}

	now := time.Now().Unix()
	p.indexer.IndexBlock(block, p.number, now)

	if p.network != nil {
		if err := p.network.BroadcastBlock(block); err != nil {
			p.logger.Warnf("producer: broadcast failed: %v", err)
		}
	}

	p.mempool.FinalizeBlock(txs)

	if err := p.persistHead(block.Hash, p.number); err != nil {
		p.logger.Errorf("producer: persist chain head failed: %v", err)
	}

	if p.metrics != nil {
		p.metrics.BlocksProduced.Inc()
		p.metrics.TxsIncluded.Add(float64(len(txs)))
	}

	p.logger.Infof("producer: block %d committed (%d txs, hash %s)", p.number, len(txs), block.Hash)

	p.previousHash = block.Hash
	p.number++
}

func (p *Producer) persistHead(hash string, number uint64) error {
	data, err := encodeChainHead(chainHead{Hash: hash, Number: number})
	if err != nil {
		return err
	}
	return p.kv.Put(ChainHeadKey, data)
}

func encodeChainHead(h chainHead) ([]byte, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("core: %w: encode chain head: %v", ErrDecodeFailure, err)
	}
	return data, nil
}

func decodeChainHead(data []byte) (chainHead, error) {
	var h chainHead
	if err := json.Unmarshal(data, &h); err != nil {
		return chainHead{}, fmt.Errorf("core: %w: decode chain head: %v", ErrDecodeFailure, err)
	}
	return h, nil
}
