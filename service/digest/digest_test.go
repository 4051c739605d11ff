package digest_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Ahmed-Sermani/motorec/graph/store/memory"
	"github.com/Ahmed-Sermani/motorec/service/digest"
	"github.com/Ahmed-Sermani/motorec/service/digest/mocks"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	"golang.org/x/xerrors"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(DigestTestSuite))

func Test(t *testing.T) {
	gc.TestingT(t)
}

const garage = `
items:
  - {id: r3, name: YZF-R3, brand: Yamaha, category: sport, displacement: 321, power: 42, price: 5500}
  - {id: mt07, name: MT-07, brand: Yamaha, category: naked, displacement: 689, power: 73, price: 7500}
  - {id: cb500, name: CB500F, brand: Honda, category: naked, displacement: 471, power: 47, price: 6500}
  - {id: gs1250, name: R 1250 GS, brand: BMW, category: adventure, displacement: 1254, power: 136, price: 20000}
interactions:
  - {actor: ana, item: mt07, weight: 2}
  - {actor: ben, item: r3}
friendships:
  - {a: ana, b: ben}
  - {a: ben, b: cid}
ratings:
  - {actor: ana, item: r3, score: 0.9}
  - {actor: ben, item: mt07, score: 0.8}
  - {actor: ben, item: cb500, score: 0.7}
  - {actor: cid, item: gs1250, score: 0.9}
`

type DigestTestSuite struct {
	store *memory.InMemoryStore
	cache *digest.Cache
	clk   *testclock.Clock
}

func (s *DigestTestSuite) SetUpTest(c *gc.C) {
	store, err := memory.LoadFixture(strings.NewReader(garage))
	c.Assert(err, gc.IsNil)
	s.store = store
	s.cache = digest.NewCache()
	s.clk = testclock.NewClock(time.Now())
}

func (s *DigestTestSuite) newService(c *gc.C, notifier digest.Publisher) *digest.Service {
	cfg := digest.Config{
		Store:          s.store,
		Cache:          s.cache,
		TopN:           2,
		Workers:        2,
		Clock:          s.clk,
		UpdateInterval: time.Minute,
	}
	if notifier != nil {
		cfg.Notifier = notifier
	}
	svc, err := digest.NewService(cfg)
	c.Assert(err, gc.IsNil)
	return svc
}

func (s *DigestTestSuite) TestRunOnce(c *gc.C) {
	svc := s.newService(c, nil)
	c.Assert(svc.Name(), gc.Equals, "digest")

	published, err := svc.RunOnce(context.TODO())
	c.Assert(err, gc.IsNil)
	c.Assert(published, gc.Equals, 3)
	c.Assert(s.cache.Actors(), gc.DeepEquals, []string{"ana", "ben", "cid"})

	d, ok := s.cache.Get("ana")
	c.Assert(ok, gc.Equals, true)
	c.Assert(d.Kind, gc.Equals, "ranked")
	c.Assert(d.SessionID, gc.Not(gc.Equals), uuid.Nil)
	c.Assert(d.GeneratedAt.Equal(s.clk.Now()), gc.Equals, true)
	c.Assert(d.Entries, gc.HasLen, 2)
	for _, e := range d.Entries {
		c.Assert(e.ItemID, gc.Not(gc.Equals), "r3", gc.Commentf("ana already rated r3"))
		c.Assert(e.Name, gc.Not(gc.Equals), "")
		c.Assert(e.Reason, gc.Not(gc.Equals), "")
	}
	c.Assert(d.Entries[0].Score >= d.Entries[1].Score, gc.Equals, true)
}

func (s *DigestTestSuite) TestRunOnceNotifies(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	notifier := mocks.NewMockPublisher(ctrl)
	notified := make(chan string, 3)
	notifier.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(3).DoAndReturn(
		func(_ context.Context, d digest.Digest) error {
			notified <- d.ActorID
			return nil
		},
	)

	published, err := s.newService(c, notifier).RunOnce(context.TODO())
	c.Assert(err, gc.IsNil)
	c.Assert(published, gc.Equals, 3)
	c.Assert(s.cache.Len(), gc.Equals, 3)
	c.Assert(notified, gc.HasLen, 3)
}

func (s *DigestTestSuite) TestRunOnceNotifierError(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	notifier := mocks.NewMockPublisher(ctrl)
	notifier.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(xerrors.New("smtp down")).AnyTimes()

	_, err := s.newService(c, notifier).RunOnce(context.TODO())
	c.Assert(err, gc.ErrorMatches, `(?s)digest: .*publish digest of ".*": smtp down.*`)
}

func (s *DigestTestSuite) TestRunOnceWithoutData(c *gc.C) {
	s.store = memory.NewInMemoryStore()
	published, err := s.newService(c, nil).RunOnce(context.TODO())
	c.Assert(err, gc.IsNil)
	c.Assert(published, gc.Equals, 0)
	c.Assert(s.cache.Len(), gc.Equals, 0)
}

func (s *DigestTestSuite) TestRunOnTimer(c *gc.C) {
	svc := s.newService(c, nil)
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()
	c.Assert(s.clk.WaitAdvance(time.Minute, 10*time.Second, 1), gc.IsNil)

	deadline := time.Now().Add(10 * time.Second)
	for s.cache.Len() != 3 {
		if time.Now().After(deadline) {
			c.Fatal("timed out waiting for the digests")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		c.Assert(err, gc.IsNil)
	case <-time.After(10 * time.Second):
		c.Fatal("timed out waiting for the service to exit")
	}
}

func (s *DigestTestSuite) TestCacheKeepsNewestDigest(c *gc.C) {
	now := time.Now()
	c.Assert(s.cache.Publish(context.TODO(), digest.Digest{ActorID: "ana", Kind: "ranked", GeneratedAt: now}), gc.IsNil)
	c.Assert(s.cache.Publish(context.TODO(), digest.Digest{ActorID: "ana", Kind: "fallback", GeneratedAt: now.Add(-time.Hour)}), gc.IsNil)

	d, ok := s.cache.Get("ana")
	c.Assert(ok, gc.Equals, true)
	c.Assert(d.Kind, gc.Equals, "ranked")

	_, ok = s.cache.Get("zoe")
	c.Assert(ok, gc.Equals, false)
}

func (s *DigestTestSuite) TestConfigValidation(c *gc.C) {
	_, err := digest.NewService(digest.Config{TopN: -1})
	c.Assert(err, gc.ErrorMatches, "(?s)digest service: config validation failed:.*row store.*digest cache.*top n.*update interval.*")
}
