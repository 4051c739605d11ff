/*
   A Pregel style implementation of the bulk synchronous parallel
   https://en.wikipedia.org/wiki/Bulk_synchronous_parallel computing model.
   The recommendation engines express their iterations as supersteps on it.
*/
package bsp

import (
	"github.com/Ahmed-Sermani/motorec/bsp/message"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/xerrors"
)

var (
	ErrUnknownEdgeSource = xerrors.New("source vertex is not part of the graph")

	// ErrInvalidMessageDestination is returned by calls to SendMessage and
	// BroadcastToNeighbors when the destination is not a vertex of the graph.
	ErrInvalidMessageDestination = xerrors.New("invalid message destination")
)

type Aggregator interface {
	Type() string
	Set(val any)
	Get() any
	// updates the Aggregator value based on the current value.
	Aggregate(val any)
}

// ExecutorFactory builds an Executor for a graph. Engines use it as a seam
// to wrap or replace the executor in tests.
type ExecutorFactory[VT, ET any] func(*Graph[VT, ET], ExecutorHooks[VT, ET]) *Executor[VT, ET]

// GraphConfig encapsulates the configuration options for creating graphs.
type GraphConfig[VT, ET any] struct {
	// QueueFactory is used by the graph to create message queue instances
	// for each vertex that is added to the graph. If not specified, the
	// default in-memory queue will be used instead.
	QueueFactory message.QueueFactory

	// ComputeFn is the compute function that will be invoked for each graph
	// vertex when executing a superstep. A valid ComputeFunc instance is
	// required for the config to be valid.
	ComputeFn ComputeFunc[VT, ET]

	// ComputeWorkers specifies the number of workers to use for invoking
	// the registered ComputeFunc when executing each superstep. With a
	// single worker vertices are processed in insertion order, which keeps
	// floating point accumulation reproducible. Defaults to 1.
	ComputeWorkers int
}

func (cfg *GraphConfig[VT, ET]) validate() error {
	var err error
	if cfg.QueueFactory == nil {
		cfg.QueueFactory = message.NewInMemoryQueue
	}
	if cfg.ComputeWorkers <= 0 {
		cfg.ComputeWorkers = 1
	}

	if cfg.ComputeFn == nil {
		err = multierror.Append(err, xerrors.New("compute function not specified"))
	}

	return err
}
