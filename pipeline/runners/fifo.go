package runners

import (
	"context"

	"github.com/Ahmed-Sermani/motorec/pipeline"
	"golang.org/x/xerrors"
)

type fifo struct {
	proc pipeline.Processor
}

// FIFO returns a StageRunner that processes payloads one at a time, in
// arrival order.
func FIFO(proc pipeline.Processor) pipeline.StageRunner {
	return fifo{proc: proc}
}

func (r fifo) Run(ctx context.Context, params pipeline.StageParams) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, open := <-params.Input():
			if !open {
				return
			}

			out, err := r.proc.Process(ctx, payload)
			if err != nil {
				emitError(xerrors.Errorf("pipeline stage %d: %w", params.StageIndex(), err), params.Error())
				payload.MarkAsProcessed()
				continue
			}
			if out == nil {
				payload.MarkAsProcessed()
				continue
			}

			select {
			case params.Output() <- out:
			case <-ctx.Done():
				return
			}
		}
	}
}
