package aggregators

import (
	"math"
	"sync/atomic"

	"github.com/Ahmed-Sermani/motorec/bsp"
)

var _ bsp.Aggregator = (*Float64Aggregator)(nil)

// Float64Aggregator accumulates float64 values. Both engines sum their
// per-vertex absolute score changes into one and read the per-superstep
// total with Delta to test for convergence.
type Float64Aggregator struct {
	curSum, prevSum uint64 // math.Float64bits
}

func (a *Float64Aggregator) Type() string {
	return "Float64Aggregator"
}

func (a *Float64Aggregator) Get() any {
	return loadFloat64(&a.curSum)
}

func (a *Float64Aggregator) Set(v any) {
	bits := math.Float64bits(v.(float64))
	atomic.StoreUint64(&a.curSum, bits)
	atomic.StoreUint64(&a.prevSum, bits)
}

func (a *Float64Aggregator) Aggregate(v any) {
	for v64 := v.(float64); ; {
		old := atomic.LoadUint64(&a.curSum)
		next := math.Float64bits(math.Float64frombits(old) + v64)
		if atomic.CompareAndSwapUint64(&a.curSum, old, next) {
			return
		}
	}
}

// Delta returns what was aggregated since the last call to Delta or Set.
func (a *Float64Aggregator) Delta() float64 {
	for {
		cur, prev := atomic.LoadUint64(&a.curSum), atomic.LoadUint64(&a.prevSum)
		if atomic.CompareAndSwapUint64(&a.prevSum, prev, cur) {
			return math.Float64frombits(cur) - math.Float64frombits(prev)
		}
	}
}

func loadFloat64(p *uint64) float64 {
	return math.Float64frombits(atomic.LoadUint64(p))
}
