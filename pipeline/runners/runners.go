/*
   StageRunner implementations: a sequential FIFO, fixed and bounded
   dynamic worker pools, and a broadcaster feeding a copy of every payload
   to several processors.
*/
package runners

func emitError(err error, errCh chan<- error) {
	select {
	case errCh <- err:
	default: // an error is already pending
	}
}
