package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/relab/paxos/internal/simnet"
	"github.com/spf13/cobra"
)

var (
	simNodes     int
	simRuns      int
	simTicks     int
	simSeed      int64
	simDeliver   uint
	simDrop      uint
	simDuplicate uint
	simMaxDelay  int
	simVerbose   bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run clusters on a simulated faulty network.",
	Long: `The simulate command runs clusters on a simulated network that drops, duplicates,
delays and reorders messages. Each run uses its own seed, starting at --seed, so
a failing run can be reproduced. The command fails if any run breaks agreement.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return simulate(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().IntVar(&simNodes, "nodes", 5, "Number of nodes.")
	simulateCmd.Flags().IntVar(&simRuns, "runs", 100, "Number of runs.")
	simulateCmd.Flags().IntVar(&simTicks, "ticks", 2000, "Maximum number of ticks in each run.")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "Seed of the first run (defaults to current timestamp).")
	simulateCmd.Flags().UintVar(&simDeliver, "deliver", 8, "Relative weight of delivering a message.")
	simulateCmd.Flags().UintVar(&simDrop, "drop", 1, "Relative weight of dropping a message.")
	simulateCmd.Flags().UintVar(&simDuplicate, "duplicate", 1, "Relative weight of duplicating a message.")
	simulateCmd.Flags().IntVar(&simMaxDelay, "max-delay", 4, "Maximum delay of a message in ticks.")
	simulateCmd.Flags().BoolVar(&simVerbose, "verbose", false, "Print the result of every run.")
}

func simulate(out io.Writer) error {
	seed := simSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	faults := simnet.Faults{
		Deliver:   simDeliver,
		Drop:      simDrop,
		Duplicate: simDuplicate,
		MaxDelay:  simMaxDelay,
	}

	var undecided, unsafe int
	for i := 0; i < simRuns; i++ {
		runSeed := seed + int64(i)
		n, err := simnet.New(simnet.Config{Nodes: simNodes, Seed: runSeed, Faults: faults})
		if err != nil {
			return err
		}
		ticks := n.Run(simTicks, simnet.AllDecided)
		if err := n.CheckAgreement(); err != nil {
			unsafe++
			fmt.Fprintf(out, "seed %d: %v\n", runSeed, err)
			continue
		}
		if !simnet.AllDecided(n) {
			undecided++
		}
		if simVerbose {
			fmt.Fprintf(out, "seed %d: %d of %d nodes decided after %d ticks, leaders %v\n",
				runSeed, len(n.Decisions()), simNodes, ticks, n.Leaders())
		}
	}

	fmt.Fprintf(out, "%d runs from seed %d: %d unsafe, %d not decided within %d ticks\n",
		simRuns, seed, unsafe, undecided, simTicks)
	if unsafe > 0 {
		return fmt.Errorf("%d runs broke agreement", unsafe)
	}
	return nil
}
