package pipeline_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Ahmed-Sermani/motorec/pipeline"
	"github.com/Ahmed-Sermani/motorec/pipeline/runners"
	"golang.org/x/xerrors"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(PipelineTestSuite))

func Test(t *testing.T) {
	gc.TestingT(t)
}

type PipelineTestSuite struct{}

func (s *PipelineTestSuite) TestFIFOStagesPreserveOrder(c *gc.C) {
	src := &sourceStub{data: numbers(10)}
	sink := new(sinkStub)

	p := pipeline.New(
		runners.FIFO(add(1)),
		runners.FIFO(add(10)),
	)
	c.Assert(p.Process(context.TODO(), src, sink), gc.IsNil)

	want := make([]int, 10)
	for i := range want {
		want[i] = i + 11
	}
	c.Assert(sink.values(false), gc.DeepEquals, want)
	c.Assert(src.processed(), gc.Equals, 10)
}

func (s *PipelineTestSuite) TestFixedWorkerPool(c *gc.C) {
	src := &sourceStub{data: numbers(100)}
	sink := new(sinkStub)

	p := pipeline.New(runners.FixedWorkerPool(add(0), 8))
	c.Assert(p.Process(context.TODO(), src, sink), gc.IsNil)
	c.Assert(sink.values(true), gc.DeepEquals, numbers(100))
}

func (s *PipelineTestSuite) TestDynamicWorkerPool(c *gc.C) {
	src := &sourceStub{data: numbers(100)}
	sink := new(sinkStub)

	var (
		mu            sync.Mutex
		inFlight, peak int
	)
	tracked := pipeline.ProcessorFunc(func(_ context.Context, p pipeline.Payload) (pipeline.Payload, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return p, nil
	})

	p := pipeline.New(runners.DynamicWorkerPool(tracked, 4))
	c.Assert(p.Process(context.TODO(), src, sink), gc.IsNil)
	c.Assert(sink.values(true), gc.DeepEquals, numbers(100))
	c.Assert(peak <= 4, gc.Equals, true, gc.Commentf("%d payloads in flight", peak))
	c.Assert(src.processed(), gc.Equals, 100)
}

func (s *PipelineTestSuite) TestBroadcast(c *gc.C) {
	src := &sourceStub{data: numbers(3)}
	sink := new(sinkStub)

	p := pipeline.New(runners.Broadcast(add(0), add(100)))
	c.Assert(p.Process(context.TODO(), src, sink), gc.IsNil)
	c.Assert(sink.values(true), gc.DeepEquals, []int{0, 1, 2, 100, 101, 102})
}

func (s *PipelineTestSuite) TestDroppedPayloads(c *gc.C) {
	src := &sourceStub{data: numbers(6)}
	sink := new(sinkStub)

	evenOnly := pipeline.ProcessorFunc(func(_ context.Context, p pipeline.Payload) (pipeline.Payload, error) {
		if p.(*intPayload).value%2 != 0 {
			return nil, nil
		}
		return p, nil
	})
	c.Assert(pipeline.New(runners.FIFO(evenOnly)).Process(context.TODO(), src, sink), gc.IsNil)
	c.Assert(sink.values(false), gc.DeepEquals, []int{0, 2, 4})
	c.Assert(src.processed(), gc.Equals, 6)
}

func (s *PipelineTestSuite) TestStageError(c *gc.C) {
	src := &sourceStub{data: numbers(10)}
	sink := new(sinkStub)

	failing := pipeline.ProcessorFunc(func(_ context.Context, p pipeline.Payload) (pipeline.Payload, error) {
		if p.(*intPayload).value == 3 {
			return nil, xerrors.New("bad payload")
		}
		return p, nil
	})
	err := pipeline.New(runners.FIFO(failing)).Process(context.TODO(), src, sink)
	c.Assert(err, gc.ErrorMatches, "(?s).*pipeline stage 0: bad payload.*")
}

func (s *PipelineTestSuite) TestSourceAndSinkErrors(c *gc.C) {
	src := &sourceStub{data: numbers(2), err: xerrors.New("source exhausted badly")}
	err := pipeline.New().Process(context.TODO(), src, new(sinkStub))
	c.Assert(err, gc.ErrorMatches, "(?s).*pipeline source: source exhausted badly.*")

	src = &sourceStub{data: numbers(2)}
	err = pipeline.New().Process(context.TODO(), src, &sinkStub{err: xerrors.New("disk full")})
	c.Assert(err, gc.ErrorMatches, "(?s).*pipeline sink: disk full.*")
}

func (s *PipelineTestSuite) TestCancelledContext(c *gc.C) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &sourceStub{data: numbers(1000)}
	sink := new(sinkStub)
	c.Assert(pipeline.New(runners.FIFO(add(1))).Process(ctx, src, sink), gc.IsNil)
	c.Assert(len(sink.values(false)) < 1000, gc.Equals, true)
}

func add(n int) pipeline.Processor {
	return pipeline.ProcessorFunc(func(_ context.Context, p pipeline.Payload) (pipeline.Payload, error) {
		p.(*intPayload).value += n
		return p, nil
	})
}

func numbers(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

type intPayload struct {
	value     int
	processed *int64
	mu        *sync.Mutex
}

func (p *intPayload) Clone() pipeline.Payload {
	clone := *p
	return &clone
}

func (p *intPayload) MarkAsProcessed() {
	p.mu.Lock()
	*p.processed++
	p.mu.Unlock()
}

type sourceStub struct {
	data  []int
	index int
	err   error

	mu         sync.Mutex
	processedN int64
}

func (s *sourceStub) Next(context.Context) bool {
	if s.index >= len(s.data) {
		return false
	}
	s.index++
	return true
}

func (s *sourceStub) Payload() pipeline.Payload {
	return &intPayload{value: s.data[s.index-1], processed: &s.processedN, mu: &s.mu}
}

func (s *sourceStub) Error() error { return s.err }

func (s *sourceStub) processed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.processedN)
}

type sinkStub struct {
	mu   sync.Mutex
	data []int
	err  error
}

func (s *sinkStub) Consume(_ context.Context, p pipeline.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, p.(*intPayload).value)
	return s.err
}

func (s *sinkStub) values(sorted bool) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]int(nil), s.data...)
	if sorted {
		sort.Ints(out)
	}
	return out
}
