package runners

import (
	"context"

	"github.com/Ahmed-Sermani/motorec/pipeline"
	"golang.org/x/xerrors"
)

type dynamicWorkerPool struct {
	proc pipeline.Processor

	// tokenPool bounds the number of payloads in flight.
	tokenPool chan struct{}
}

// DynamicWorkerPool returns a StageRunner that starts a goroutine per
// payload, with at most maxWorkers of them running at any time. Output
// order is not preserved.
func DynamicWorkerPool(proc pipeline.Processor, maxWorkers int) pipeline.StageRunner {
	if maxWorkers <= 0 {
		panic("DynamicWorkerPool: maxWorkers must be greater than 0")
	}
	return &dynamicWorkerPool{proc: proc, tokenPool: make(chan struct{}, maxWorkers)}
}

func (p *dynamicWorkerPool) Run(ctx context.Context, params pipeline.StageParams) {
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case payloadIn, open := <-params.Input():
			if !open {
				break loop
			}

			// Blocks until a worker slot frees up.
			select {
			case p.tokenPool <- struct{}{}:
			case <-ctx.Done():
				payloadIn.MarkAsProcessed()
				break loop
			}

			go func(payloadIn pipeline.Payload) {
				defer func() { <-p.tokenPool }()

				payloadOut, err := p.proc.Process(ctx, payloadIn)
				if err != nil {
					emitError(xerrors.Errorf("pipeline stage %d: %w", params.StageIndex(), err), params.Error())
					payloadIn.MarkAsProcessed()
					return
				}
				if payloadOut == nil {
					payloadIn.MarkAsProcessed()
					return
				}

				select {
				case params.Output() <- payloadOut:
				case <-ctx.Done():
				}
			}(payloadIn)
		}
	}

	// Wait for the workers in flight by taking every slot.
	for i := 0; i < cap(p.tokenPool); i++ {
		p.tokenPool <- struct{}{}
	}
	for i := 0; i < cap(p.tokenPool); i++ {
		<-p.tokenPool
	}
}
