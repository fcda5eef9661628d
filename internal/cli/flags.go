package cli

import (
	"time"

	"github.com/relab/paxos/internal/config"
	"github.com/relab/paxos/node"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// addClusterFlags adds the flags shared by every command that runs consensus nodes.
func addClusterFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("heartbeat-period", node.DefaultHeartbeatPeriod, "how often the leader sends heartbeats")
	cmd.Flags().Duration("heartbeat-timeout", node.DefaultHeartbeatTimeout, "how long followers wait for a heartbeat before bidding for leadership")
	cmd.Flags().Duration("prepare-window", 0, "suppress leadership bids for this long after seeing another node's prepare")
}

func addRunFlags(cmd *cobra.Command) {
	addClusterFlags(cmd)

	cmd.Flags().String("uid", "", "the UID of this replica")
	cmd.Flags().StringToString("peers", nil, "the cluster as a comma-separated list of uid=host:port, including this replica")
	cmd.Flags().String("listen", "", "the address to listen on (defaults to the address of uid in peers)")
	cmd.Flags().Int("quorum", 0, "the quorum size (defaults to a majority of peers)")
	cmd.Flags().String("leader", "", "the UID of the initial leader")
	cmd.Flags().String("propose", "", "the value to propose")
	cmd.Flags().Bool("exit-on-decision", false, "exit once a value has been chosen")

	cmd.Flags().String("store", config.StoreFile, "where the acceptor state is kept (memory, file, etcd)")
	cmd.Flags().String("store-path", "", "path of the acceptor log (defaults to paxos-<uid>.log)")
	cmd.Flags().StringSlice("etcd-endpoints", []string{"localhost:2379"}, "the etcd endpoints")
	cmd.Flags().String("etcd-prefix", "paxos", "the key prefix in etcd")
	cmd.Flags().Duration("etcd-dial-timeout", 5*time.Second, "the etcd dial timeout")

	cmd.Flags().Float64("rate-limit", 0, "maximum number of messages per second to each peer (0 disables the limit)")
	cmd.Flags().Int("rate-burst", 10, "the burst size of the rate limit")
	cmd.Flags().Duration("connect-timeout", 5*time.Second, "the timeout for connecting to a peer")
	cmd.Flags().Duration("retry-delay", 100*time.Millisecond, "how long to wait before reconnecting to a peer")
	cmd.Flags().Int("queue-size", 256, "number of messages buffered for each peer")
	cmd.Flags().Int("max-message-size", 0, "the largest message accepted from a peer, in bytes (0 uses the gRPC default)")
	cmd.Flags().String("tls-cert", "", "certificate of this replica (enables mutual TLS with --tls-key and --tls-ca)")
	cmd.Flags().String("tls-key", "", "private key of this replica")
	cmd.Flags().String("tls-ca", "", "CA certificate that signs the replica certificates")

	cmd.Flags().Duration("poll-interval", 0, "how often the leader's liveness is checked (defaults to the heartbeat period)")
	cmd.Flags().Duration("resend-interval", 0, "how often the leader repeats its accept request (defaults to the heartbeat period)")
	cmd.Flags().Float64("backoff-multiplier", 0, "growth factor of the delay after a rejected leadership bid (defaults to 2)")
	cmd.Flags().Duration("backoff-max", 0, "upper bound of the delay after a rejected leadership bid (defaults to the heartbeat timeout)")
	cmd.Flags().Uint("event-buffer", 0, "capacity of the event queue (defaults to 1024)")
	cmd.Flags().Duration("save-timeout", 0, "how long to wait for the acceptor state to be saved (defaults to 5s)")

	cmd.Flags().String("output", "", "the directory to save profiles to (disabled by default)")
	cmd.Flags().Bool("cpu-profile", false, "enable cpu profiling")
	cmd.Flags().Bool("mem-profile", false, "enable memory profiling")
	cmd.Flags().Bool("trace", false, "enable trace")
	cmd.Flags().Bool("fgprof-profile", false, "enable fgprof")
}

// bindFlags binds the flags of cmd to viper. Commands share flag names, so the
// flags are bound when the command runs rather than when it is created.
func bindFlags(cmd *cobra.Command, _ []string) error {
	return viper.BindPFlags(cmd.Flags())
}
