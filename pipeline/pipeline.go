/*
   Staged concurrent processing. A Source feeds payloads through a chain of
   stages, each driven by a StageRunner from the runners package, and the
   survivors end up in a Sink.
*/
package pipeline

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Payload is implemented by values that travel through a pipeline.
type Payload interface {
	// Clone returns a deep copy of the payload. Broadcasting stages hand a
	// clone to every processor but the first.
	Clone() Payload

	// MarkAsProcessed is invoked once the payload reached the sink or was
	// dropped by a stage.
	MarkAsProcessed()
}

// Processor transforms the payloads of a stage. Returning a nil Payload
// drops the input.
type Processor interface {
	Process(context.Context, Payload) (Payload, error)
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(context.Context, Payload) (Payload, error)

func (f ProcessorFunc) Process(ctx context.Context, p Payload) (Payload, error) {
	return f(ctx, p)
}

// StageParams gives a StageRunner access to its position in the pipeline
// and to the channels wiring it to its neighbours.
type StageParams interface {
	StageIndex() int

	// Input yields the payloads of the previous stage and is closed once
	// that stage is done.
	Input() <-chan Payload

	// Output feeds the next stage.
	Output() chan<- Payload

	// Error collects the errors of the stage. Writes must not block.
	Error() chan<- error
}

// StageRunner runs one stage. Run blocks until the input channel is closed
// or the context is cancelled.
type StageRunner interface {
	Run(context.Context, StageParams)
}

type Source interface {
	// Next fetches the next payload. It returns false when the source is
	// exhausted or failed.
	Next(context.Context) bool

	Payload() Payload

	// Error returns the last error observed by the source.
	Error() error
}

type Sink interface {
	// Consume receives every payload that made it through all stages.
	Consume(context.Context, Payload) error
}

type Pipeline struct {
	stages []StageRunner
}

// New returns a Pipeline whose payloads traverse stages in order.
func New(stages ...StageRunner) *Pipeline {
	return &Pipeline{
		stages: stages,
	}
}

// Process streams the source through the stages into the sink. It returns
// once the source is drained, the context is cancelled or an error was
// reported; all reported errors are combined in the returned error.
//
// Process may be called concurrently with different sources and sinks.
func (p *Pipeline) Process(ctx context.Context, source Source, sink Sink) error {
	var wg sync.WaitGroup
	ctx, ctxCancel := context.WithCancel(ctx)
	defer ctxCancel()

	// stageCh[i] is the input of stage i and the output of stage i-1; the
	// first channel is fed by the source and the last one drained by the
	// sink.
	stageCh := make([]chan Payload, len(p.stages)+1)
	errCh := make(chan error, len(p.stages)+2)
	for i := range stageCh {
		stageCh[i] = make(chan Payload)
	}

	wg.Add(len(p.stages))
	for i := range p.stages {
		go func(stageIdx int) {
			defer wg.Done()
			p.stages[stageIdx].Run(ctx, &WorkerParams{
				Stage: stageIdx,
				InCh:  stageCh[stageIdx],
				OutCh: stageCh[stageIdx+1],
				ErrCh: errCh,
			})
			close(stageCh[stageIdx+1])
		}(i)
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		sourceWorker(ctx, source, stageCh[0], errCh)
		close(stageCh[0])
	}()
	go func() {
		defer wg.Done()
		sinkWorker(ctx, sink, stageCh[len(stageCh)-1], errCh)
	}()

	go func() {
		wg.Wait()
		close(errCh)
		ctxCancel()
	}()

	var err error
	for pErr := range errCh {
		err = multierror.Append(err, pErr)
		ctxCancel()
	}
	return err
}
