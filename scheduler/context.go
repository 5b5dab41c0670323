package scheduler

import "github.com/ferrethan485/SmartX/chain"

// frame is one saved nested-publication context: the priority floor and
// subscriber-chain cursor pair that was active before a higher-priority
// event preempted it.
type frame struct {
	priority uint16
	head     *chain.Cell
	cursor   *chain.Cell
}
