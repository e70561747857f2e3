package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	log "github.com/sirupsen/logrus"

	"meridian/core"
	"meridian/internal/api"
	"meridian/pkg/config"
)

const (
	exitOK         = 0
	exitConfigErr  = 1
	exitIOErr      = 2
)

func main() {
	rootCmd := &cobra.Command{Use: "meridiand"}
	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(runCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitConfigErr)
	}
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "emit a signing keypair on stdout",
		Run: func(cmd *cobra.Command, args []string) {
			kp, err := core.NewKeypair()
			if err != nil {
				fmt.Fprintln(os.Stderr, "keygen:", err)
				os.Exit(exitIOErr)
			}
			fmt.Printf("public_key: %s\n", kp.PublicHex())
			fmt.Printf("private_key: %s\n", kp.PrivateHex())
		},
	}
}

func runCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "start the node",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runNode(env); err != nil {
				fmt.Fprintln(os.Stderr, "run:", err)
				os.Exit(exitErrCode(err))
			}
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "configuration overlay name")
	return cmd
}

// exitErrCode distinguishes a config-load failure (exit 1) from a
// startup I/O failure (exit 2), per the core's CLI contract.
func exitErrCode(err error) int {
	if _, ok := err.(*configError); ok {
		return exitConfigErr
	}
	return exitIOErr
}

type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func runNode(env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return &configError{err}
	}

	logger := log.StandardLogger()
	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	kv, err := core.OpenKVStore(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer kv.Close()

	trie := core.NewTrie()
	metrics := core.NewMetrics(prometheus.DefaultRegisterer)
	state := core.NewStateProcessor(kv, trie, nil, logger)
	if cfg.Contract.Enabled {
		state.SetContractRunner(core.NewWasmerRunner(state))
	}

	if len(cfg.State.Accounts) > 0 {
		if err := state.PrimeAccounts(cfg.State.Accounts); err != nil {
			return err
		}
	} else if err := state.RebuildTrieFromKV(); err != nil {
		return err
	}

	mempool := core.NewMempool(0, logger)
	indexer := core.NewIndexer()

	engine, err := buildEngine(cfg)
	if err != nil {
		return &configError{err}
	}

	sync := core.NewSyncManager(0, logger)
	handler := &nodeHandler{indexer: indexer, sync: sync, logger: logger}
	network := core.NewNetwork(handler, logger)
	handler.network = network

	listenAddr := fmt.Sprintf("%s:%d", cfg.Network.ListenAddr, cfg.Network.ListenPort)
	if err := network.Listen(listenAddr); err != nil {
		return err
	}
	for _, peer := range cfg.Network.BootstrapPeers {
		if _, err := network.Connect(peer); err != nil {
			logger.Warnf("run: bootstrap dial %s failed: %v", peer, err)
		}
	}

	producer, err := core.NewProducer(mempool, state, engine, indexer, network, kv, metrics, 5*time.Second, logger)
	if err != nil {
		return err
	}
	producer.Start()
	defer producer.Stop()

	sync.Start(func(staged []*core.Block) {
		for _, b := range staged {
			if _, err := state.Commit(b); err != nil {
				logger.Errorf("run: sync reconcile commit failed: %v", err)
				continue
			}
			indexer.IndexBlock(b, 0, time.Now().Unix())
		}
	})
	defer sync.Stop()

	srv := api.NewServer(mempool, indexer, logger)
	httpAddr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	httpServer := &http.Server{Addr: httpAddr, Handler: srv}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("run: admission endpoint stopped: %v", err)
		}
	}()
	logger.Infof("run: node listening p2p=%s api=%s", listenAddr, httpAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("run: shutting down")
	return nil
}

func buildEngine(cfg *config.Config) (core.Engine, error) {
	switch cfg.Consensus.Engine {
	case "pow":
		return core.NewPoWEngine(cfg.Consensus.PowDifficulty), nil
	case "pos", "poa":
		stakes := make(map[string]uint64, len(cfg.State.Accounts))
		for name, bal := range cfg.State.Accounts {
			if bal >= cfg.Consensus.PosMinStake {
				stakes[name] = bal
			}
		}
		if len(stakes) == 0 {
			stakes["validator-0"] = 1
		}
		return core.NewPoSEngine(stakes), nil
	default:
		return nil, fmt.Errorf("unknown consensus.engine %q", cfg.Consensus.Engine)
	}
}

// nodeHandler dispatches inbound network messages: PeerInfo updates the
// sync manager's observed peer height; Block/SyncResponse blocks are
// staged for reconciliation; GetBlock is answered from the indexer.
type nodeHandler struct {
	indexer *core.Indexer
	sync    *core.SyncManager
	network *core.Network
	logger  *log.Logger
}

func (h *nodeHandler) HandleMessage(from core.NodeID, msg core.Message) {
	switch msg.Kind {
	case core.MsgPeerInfo:
		h.sync.UpdatePeerHeight(msg.LatestBlockHeight)
	case core.MsgBlock:
		if msg.Block != nil {
			h.sync.StageBlock(msg.Block)
		}
	case core.MsgSyncResponse:
		for _, b := range msg.Blocks {
			h.sync.StageBlock(b)
		}
	case core.MsgGetBlock:
		b, err := h.indexer.BlockByNumber(msg.Height)
		if err != nil {
			h.logger.Debugf("nodeHandler: GetBlock %d not found", msg.Height)
			return
		}
		if h.network != nil {
			_ = h.network.Broadcast(core.Message{Kind: core.MsgGetBlockResponse, RequestID: msg.RequestID, Block: b})
		}
	default:
	}
}
