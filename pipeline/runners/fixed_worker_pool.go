package runners

import (
	"context"
	"sync"

	"github.com/Ahmed-Sermani/motorec/pipeline"
)

type fixedWorkerPool struct {
	runners []pipeline.StageRunner
}

// FixedWorkerPool returns a StageRunner that processes payloads with
// numWorkers FIFOs in parallel. Output order is not preserved.
func FixedWorkerPool(proc pipeline.Processor, numWorkers int) pipeline.StageRunner {
	if numWorkers <= 0 {
		panic("FixedWorkerPool: numWorkers must be greater than 0")
	}
	runners := make([]pipeline.StageRunner, numWorkers)
	for i := range runners {
		runners[i] = FIFO(proc)
	}

	return &fixedWorkerPool{runners: runners}
}

func (p *fixedWorkerPool) Run(ctx context.Context, params pipeline.StageParams) {
	var wg sync.WaitGroup
	wg.Add(len(p.runners))
	for _, r := range p.runners {
		go func(r pipeline.StageRunner) {
			defer wg.Done()
			r.Run(ctx, params)
		}(r)
	}
	wg.Wait()
}
