package digest

import (
	"context"

	"github.com/Ahmed-Sermani/motorec/pipeline"
	"github.com/Ahmed-Sermani/motorec/propagation"
	"github.com/Ahmed-Sermani/motorec/recommend"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

type recommender struct {
	sess   *recommend.Session
	topN   int
	logger *logrus.Entry
}

func newRecommender(sess *recommend.Session, topN int, logger *logrus.Entry) *recommender {
	return &recommender{sess: sess, topN: topN, logger: logger}
}

// Process drops actors with nothing to recommend.
func (r *recommender) Process(ctx context.Context, p pipeline.Payload) (pipeline.Payload, error) {
	payload := p.(*digestPayload)
	res := r.sess.RecommendFor(ctx, payload.ActorID, r.topN, nil)
	if res.Err != nil {
		r.logger.WithFields(logrus.Fields{"actor": payload.ActorID, "err": res.Err}).Warn("digest degraded to fallback")
	}
	if res.Kind == propagation.KindEmpty || len(res.Items) == 0 {
		return nil, nil
	}

	payload.Kind = res.Kind.String()
	for _, rec := range res.Items {
		payload.Entries = append(payload.Entries, Entry{ItemID: rec.ItemID, Score: rec.Score, Reason: rec.Reason})
	}
	return payload, nil
}

type namer struct {
	sess *recommend.Session
}

func newNamer(sess *recommend.Session) *namer {
	return &namer{sess: sess}
}

// Process fills in the names of known items.
func (n *namer) Process(_ context.Context, p pipeline.Payload) (pipeline.Payload, error) {
	payload := p.(*digestPayload)
	for i, e := range payload.Entries {
		if item, ok := n.sess.Item(e.ItemID); ok {
			payload.Entries[i].Name = item.Name
		}
	}
	return payload, nil
}

type publisher struct {
	to   Publisher
	sess *recommend.Session
	clk  clock.Clock
}

func newPublisher(to Publisher, sess *recommend.Session, clk clock.Clock) *publisher {
	return &publisher{to: to, sess: sess, clk: clk}
}

func (pub *publisher) Process(ctx context.Context, p pipeline.Payload) (pipeline.Payload, error) {
	payload := p.(*digestPayload)
	d := Digest{
		ActorID:     payload.ActorID,
		Kind:        payload.Kind,
		Entries:     append([]Entry(nil), payload.Entries...),
		SessionID:   pub.sess.ID(),
		GeneratedAt: pub.clk.Now(),
	}
	if err := pub.to.Publish(ctx, d); err != nil {
		return nil, xerrors.Errorf("publish digest of %q: %w", payload.ActorID, err)
	}
	return payload, nil
}
