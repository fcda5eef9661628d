package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/relab/paxos"
	"github.com/relab/paxos/logging"
	"github.com/relab/paxos/network"
	"github.com/relab/paxos/node"
	"github.com/relab/paxos/replica"
	"github.com/relab/paxos/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Run a cluster in this process.",
	Long: `The local command runs a whole cluster in one process. The replicas exchange
messages in memory, every replica proposes its own value, and the command prints
the value each replica learned. Use --disconnect to cut a minority of the replicas
off from the others.`,
	PreRunE: bindFlags,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()
		_, err := runLocal(ctx, os.Stdout, localOptions{
			replicas:   viper.GetInt("replicas"),
			disconnect: viper.GetInt("disconnect"),
			timeout:    viper.GetDuration("timeout"),
			node: node.Config{
				HeartbeatPeriod:  viper.GetDuration("heartbeat-period"),
				HeartbeatTimeout: viper.GetDuration("heartbeat-timeout"),
				PrepareWindow:    viper.GetDuration("prepare-window"),
			},
		})
		checkf("local cluster failed: %v", err)
	},
}

func init() {
	rootCmd.AddCommand(localCmd)
	addClusterFlags(localCmd)
	localCmd.Flags().Int("replicas", 3, "number of replicas to run")
	localCmd.Flags().Int("disconnect", 0, "number of replicas to disconnect from the start")
	localCmd.Flags().Duration("timeout", time.Minute, "how long to wait for a decision")
}

type localOptions struct {
	replicas   int
	disconnect int
	timeout    time.Duration
	// node holds the timing parameters; the rest is filled in per replica.
	node node.Config
}

// runLocal runs a cluster connected by a Hub until every connected replica has
// learned a value, and writes the result to out.
func runLocal(ctx context.Context, out io.Writer, opts localOptions) (decisions map[string]paxos.Value, err error) {
	if opts.replicas < 1 {
		return nil, fmt.Errorf("need at least one replica, got %d", opts.replicas)
	}
	quorum := node.MajorityQuorum(opts.replicas)
	if opts.disconnect < 0 || opts.replicas-opts.disconnect < quorum {
		return nil, fmt.Errorf("cannot disconnect %d of %d replicas and keep a quorum of %d", opts.disconnect, opts.replicas, quorum)
	}

	hub := network.NewHub(logging.New("hub"))
	replicas := make([]*replica.Replica, 0, opts.replicas)
	defer func() {
		for _, r := range replicas {
			err = multierr.Append(err, r.Stop())
		}
	}()

	for i := 1; i <= opts.replicas; i++ {
		uid := fmt.Sprintf("r%d", i)
		cfg := opts.node
		cfg.UID = uid
		cfg.ClusterSize = opts.replicas
		cfg.QuorumSize = quorum
		r, err := replica.New(cfg, storage.NewMemory(), func(h network.Handler) network.Transport {
			return hub.Join(uid, h)
		}, logging.New(uid), replica.WithSeed(int64(i)))
		if err != nil {
			return nil, err
		}
		if i <= opts.disconnect {
			hub.SetConnected(uid, false)
		}
		r.Propose(paxos.Value("value-" + uid))
		r.Start()
		replicas = append(replicas, r)
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	start := time.Now()
	decisions = make(map[string]paxos.Value)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "replica\tleader\tvalue\tproposal")
	for _, r := range replicas[opts.disconnect:] {
		v, err := r.WaitForDecision(ctx)
		if err != nil {
			return decisions, fmt.Errorf("%s: %w", r.UID(), err)
		}
		_, id, _ := r.Decision()
		decisions[r.UID()] = v
		fmt.Fprintf(w, "%s\t%s\t%q\t%v\n", r.UID(), r.Leader(), v, id)
	}
	fmt.Fprintf(w, "\n%d replicas decided in %v\n", len(decisions), time.Since(start).Round(time.Millisecond))
	return decisions, w.Flush()
}
