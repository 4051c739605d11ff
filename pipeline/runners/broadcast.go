package runners

import (
	"context"
	"sync"

	"github.com/Ahmed-Sermani/motorec/pipeline"
)

type broadcast struct {
	fifos []pipeline.StageRunner
}

// Broadcast returns a StageRunner that sends every payload to each of
// procs. The outputs of all processors go to the next stage.
func Broadcast(procs ...pipeline.Processor) pipeline.StageRunner {
	if len(procs) == 0 {
		panic("Broadcast: at least one processor must be specified")
	}

	fifos := make([]pipeline.StageRunner, len(procs))
	for i, p := range procs {
		fifos[i] = FIFO(p)
	}

	return &broadcast{fifos: fifos}
}

func (b *broadcast) Run(ctx context.Context, params pipeline.StageParams) {
	var (
		wg    sync.WaitGroup
		inChs = make([]chan pipeline.Payload, len(b.fifos))
	)

	// Every fifo gets its own input and shares the stage output and error
	// channels.
	for i := range b.fifos {
		wg.Add(1)
		inChs[i] = make(chan pipeline.Payload)
		go func(idx int) {
			defer wg.Done()
			b.fifos[idx].Run(ctx, &pipeline.WorkerParams{
				Stage: params.StageIndex(),
				InCh:  inChs[idx],
				OutCh: params.Output(),
				ErrCh: params.Error(),
			})
		}(i)
	}

done:
	for {
		select {
		case <-ctx.Done():
			break done
		case payload, open := <-params.Input():
			if !open {
				break done
			}

			// The first fifo gets the original, the others a clone.
			for i := len(b.fifos) - 1; i >= 0; i-- {
				fifoPayload := payload
				if i != 0 {
					fifoPayload = payload.Clone()
				}

				select {
				case <-ctx.Done():
					break done
				case inChs[i] <- fifoPayload:
				}
			}
		}
	}

	for _, ch := range inChs {
		close(ch)
	}
	wg.Wait()
}
