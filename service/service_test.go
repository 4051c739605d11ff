package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/Ahmed-Sermani/motorec/service"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/xerrors"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(GroupTestSuite))

func Test(t *testing.T) {
	gc.TestingT(t)
}

type GroupTestSuite struct{}

func (s *GroupTestSuite) TestFailureCancelsSiblings(c *gc.C) {
	waiter := &blockingService{name: "digest", stopped: make(chan struct{})}
	group := service.Group{
		waiter,
		&failingService{name: "popularity", err: xerrors.New("store unreachable")},
	}

	err := runGroup(c, group)
	c.Assert(err, gc.ErrorMatches, "(?s).*popularity: store unreachable.*")

	select {
	case <-waiter.stopped:
	default:
		c.Fatal("sibling service was not stopped")
	}
}

func (s *GroupTestSuite) TestErrorsAreCombined(c *gc.C) {
	group := service.Group{
		&failingService{name: "popularity", err: xerrors.New("store unreachable")},
		&failingService{name: "digest", err: xerrors.New("cache full")},
		&blockingService{name: "metrics", stopped: make(chan struct{})},
	}

	err := runGroup(c, group)
	merr, ok := err.(*multierror.Error)
	c.Assert(ok, gc.Equals, true, gc.Commentf("got %T", err))
	c.Assert(merr.Errors, gc.HasLen, 2)
	c.Assert(err, gc.ErrorMatches, "(?s).*popularity: store unreachable.*")
	c.Assert(err, gc.ErrorMatches, "(?s).*digest: cache full.*")
}

func (s *GroupTestSuite) TestParentCancellation(c *gc.C) {
	ctx, cancel := context.WithCancel(context.Background())
	group := service.Group{
		&blockingService{name: "popularity", stopped: make(chan struct{})},
		&blockingService{name: "digest", stopped: make(chan struct{})},
	}

	errCh := make(chan error, 1)
	go func() { errCh <- group.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		c.Assert(err, gc.IsNil)
	case <-time.After(10 * time.Second):
		c.Fatal("timed out waiting for the group to exit")
	}
}

func (s *GroupTestSuite) TestEmptyGroup(c *gc.C) {
	c.Assert(service.Group(nil).Run(context.Background()), gc.IsNil)
}

func runGroup(c *gc.C, group service.Group) error {
	errCh := make(chan error, 1)
	go func() { errCh <- group.Run(context.Background()) }()

	select {
	case err := <-errCh:
		return err
	case <-time.After(10 * time.Second):
		c.Fatal("timed out waiting for the group to exit")
	}
	return nil
}

// blockingService runs until its context is cancelled.
type blockingService struct {
	name    string
	stopped chan struct{}
}

func (s *blockingService) Name() string { return s.name }

func (s *blockingService) Run(ctx context.Context) error {
	<-ctx.Done()
	close(s.stopped)
	return nil
}

type failingService struct {
	name string
	err  error
}

func (s *failingService) Name() string { return s.name }

func (s *failingService) Run(context.Context) error { return s.err }
