package analysis

import (
	"fmt"

	"market-pipeline/src/models"
)

// Depth curve modes
const (
	DepthPassthrough = "passthrough"
	DepthCumulative  = "cumulative"
)

// DepthNormalizer turns a raw order book into two plottable depth curves.
type DepthNormalizer struct {
	Mode string
}

// -----------------------------------------------------------------------------

func NewDepthNormalizer(mode string) (*DepthNormalizer, error) {
	switch mode {
	case "", DepthPassthrough:
		return &DepthNormalizer{Mode: DepthPassthrough}, nil
	case DepthCumulative:
		return &DepthNormalizer{Mode: DepthCumulative}, nil
	default:
		return nil, fmt.Errorf("unknown depth mode %q", mode)
	}
}

// -----------------------------------------------------------------------------

// Normalize returns the bid and ask curves in the order the exchange sent them
// (bids descending, asks ascending). In passthrough mode the levels are copied
// unchanged; in cumulative mode each amount is the running total from the top of book.
func (n *DepthNormalizer) Normalize(book models.MOrderBook) (bid models.MDepthCurve, ask models.MDepthCurve) {
	cumulative := n.Mode == DepthCumulative
	bid = models.MDepthCurve{Side: "bid", Cumulative: cumulative, Levels: n.side(book.Bids)}
	ask = models.MDepthCurve{Side: "ask", Cumulative: cumulative, Levels: n.side(book.Asks)}
	return bid, ask
}

// -----------------------------------------------------------------------------

func (n *DepthNormalizer) side(levels []models.MDepthLevel) []models.MDepthLevel {
	out := make([]models.MDepthLevel, len(levels))
	copy(out, levels)

	if n.Mode == DepthCumulative {
		total := 0.0
		for i := range out {
			total += out[i].Amount
			out[i].Amount = total
		}
	}
	return out
}
