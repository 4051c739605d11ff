package ranker

import (
	"math"

	"github.com/Ahmed-Sermani/motorec/bsp"
	"github.com/Ahmed-Sermani/motorec/bsp/message"
)

const (
	nodeCountAggr = "node_count"
	sadAggr       = "SAD"
)

// ScoreMessage carries the share of a node's score pushed along one edge.
// The damping factor and edge weight are already applied.
type ScoreMessage struct {
	Score float64
}

func (ScoreMessage) Type() string { return "score" }

// makeComputeFunc returns the ComputeFunc for one power iteration.
// Superstep 0 counts nodes, superstep 1 seeds every node with 1/N and every
// later superstep is one round.
func makeComputeFunc(dampingFactor float64) bsp.ComputeFunc[float64, float64] {
	return func(g *bsp.Graph[float64, float64], v *bsp.Vertex[float64, float64], msgIt message.Iterator) error {
		superstep := g.Superstep()
		nodeCount := g.Aggregator(nodeCountAggr)

		if superstep == 0 {
			nodeCount.Aggregate(1)
			return nil
		}

		var (
			n        = float64(nodeCount.Get().(int))
			newScore float64
		)
		switch superstep {
		case 1:
			newScore = 1.0 / n
		default:
			newScore = (1.0 - dampingFactor) / n
			for msgIt.Next() {
				newScore += msgIt.Message().(ScoreMessage).Score
			}
		}

		g.Aggregator(sadAggr).Aggregate(math.Abs(v.Value() - newScore))
		v.SetValue(newScore)

		// Items have no outgoing edges; their mass is not redistributed.
		edges := v.Edges()
		if len(edges) == 0 {
			return nil
		}

		share := dampingFactor * newScore / float64(len(edges))
		for _, e := range edges {
			if err := g.SendMessage(e.DstID(), ScoreMessage{Score: share * e.Value()}); err != nil {
				return err
			}
		}
		return nil
	}
}
