package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/relab/paxos/internal/config"
	"github.com/relab/paxos/internal/profiling"
	"github.com/relab/paxos/logging"
	"github.com/relab/paxos/network"
	"github.com/relab/paxos/replica"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a replica.",
	Long: `The run command runs one replica of a cluster and connects to the other replicas over gRPC.
Every replica of the cluster must be started with the same --peers list, for example:

  paxos run --uid a --peers a=localhost:4000,b=localhost:4001,c=localhost:4002 --propose x

The acceptor state is kept in a local log file by default, so a restarted replica keeps its promises.
The replica keeps running after a value has been chosen, so that the other replicas can learn it,
unless --exit-on-decision is set.`,
	PreRunE: bindFlags,
	Run: func(cmd *cobra.Command, _ []string) {
		checkf("replica failed: %v", runReplica(cmd.Context()))
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}

func runReplica(ctx context.Context) (err error) {
	cfg, err := config.NewViper()
	if err != nil {
		return err
	}

	stopProfilers, err := profiling.Start(profiling.Profiles{
		CPU:    cfg.ProfilePath(cfg.CPUProfile, "cpuprofile"),
		Mem:    cfg.ProfilePath(cfg.MemProfile, "memprofile"),
		Trace:  cfg.ProfilePath(cfg.Trace, "trace"),
		Fgprof: cfg.ProfilePath(cfg.FgprofProfile, "fgprofprofile"),
	})
	if err != nil {
		return fmt.Errorf("failed to start profilers: %w", err)
	}
	defer func() { err = multierr.Append(err, stopProfilers()) }()

	logger := logging.New(cfg.UID)
	netOpts, err := cfg.NetworkOptions()
	if err != nil {
		return fmt.Errorf("failed to configure the network: %w", err)
	}
	store, err := cfg.OpenStore()
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}

	var transport *network.GRPC
	r, err := replica.New(cfg.NodeConfig(), store, func(h network.Handler) network.Transport {
		transport = network.NewGRPC(cfg.UID, h, logging.New("network"), netOpts...)
		return transport
	}, logger, cfg.ReplicaOptions()...)
	if err != nil {
		return multierr.Append(err, store.Close())
	}
	if err := transport.Listen(cfg.ListenAddr()); err != nil {
		return multierr.Append(err, r.Close())
	}
	transport.Connect(cfg.Peers)

	if cfg.Propose != "" {
		r.Propose(cfg.Propose)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()
	r.Start()

	go func() {
		v, err := r.WaitForDecision(ctx)
		if err != nil {
			return
		}
		_, id, _ := r.Decision()
		fmt.Printf("%s: decided %q in %v\n", cfg.UID, v, id)
		if viper.GetBool("exit-on-decision") {
			cancel()
		}
	}()

	<-ctx.Done()
	return r.Stop()
}
