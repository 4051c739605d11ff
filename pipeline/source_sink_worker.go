package pipeline

import (
	"context"

	"golang.org/x/xerrors"
)

// sourceWorker pulls payloads from source into the first stage.
func sourceWorker(ctx context.Context, source Source, outCh chan<- Payload, errCh chan<- error) {
	for source.Next(ctx) {
		select {
		case outCh <- source.Payload():
		case <-ctx.Done():
			return
		}
	}

	if err := source.Error(); err != nil {
		emitError(errCh, xerrors.Errorf("pipeline source: %w", err))
	}
}

// sinkWorker hands the output of the last stage to sink and marks each
// payload as processed.
func sinkWorker(ctx context.Context, sink Sink, inCh <-chan Payload, errCh chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, open := <-inCh:
			if !open {
				return
			}
			if err := sink.Consume(ctx, payload); err != nil {
				emitError(errCh, xerrors.Errorf("pipeline sink: %w", err))
			}
			payload.MarkAsProcessed()
		}
	}
}

func emitError(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default: // an error is already pending
	}
}
