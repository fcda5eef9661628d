// Paxos runs replicas of a single-decree Paxos protocol.
package main

import "github.com/relab/paxos/internal/cli"

func main() {
	cli.Execute()
}
