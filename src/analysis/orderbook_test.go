package analysis

import (
	"testing"

	"market-pipeline/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBook() models.MOrderBook {
	return models.MOrderBook{
		Symbol: "BTC/USDT",
		Bids:   []models.MDepthLevel{{Price: 100, Amount: 1}, {Price: 99, Amount: 2}, {Price: 98, Amount: 3}},
		Asks:   []models.MDepthLevel{{Price: 101, Amount: 0.5}, {Price: 102, Amount: 1.5}},
	}
}

func Test_DepthNormalizer_Passthrough(t *testing.T) {
	n, err := NewDepthNormalizer(DepthPassthrough)
	require.NoError(t, err)

	book := testBook()
	bid, ask := n.Normalize(book)

	assert.Equal(t, "bid", bid.Side)
	assert.Equal(t, "ask", ask.Side)
	assert.False(t, bid.Cumulative)
	assert.Equal(t, book.Bids, bid.Levels)
	assert.Equal(t, book.Asks, ask.Levels)

	// The curves do not alias the book
	bid.Levels[0].Amount = 42
	assert.Equal(t, 1.0, book.Bids[0].Amount)
}

func Test_DepthNormalizer_Cumulative(t *testing.T) {
	n, err := NewDepthNormalizer(DepthCumulative)
	require.NoError(t, err)

	book := testBook()
	bid, ask := n.Normalize(book)

	assert.True(t, bid.Cumulative)
	assert.Equal(t, []models.MDepthLevel{{Price: 100, Amount: 1}, {Price: 99, Amount: 3}, {Price: 98, Amount: 6}}, bid.Levels)
	assert.Equal(t, []models.MDepthLevel{{Price: 101, Amount: 0.5}, {Price: 102, Amount: 2}}, ask.Levels)
	assert.Equal(t, 1.0, book.Bids[0].Amount)
	assert.Equal(t, 2.0, book.Bids[1].Amount)
}

func Test_DepthNormalizer_EmptyBook(t *testing.T) {
	n, err := NewDepthNormalizer(DepthCumulative)
	require.NoError(t, err)

	bid, ask := n.Normalize(models.MOrderBook{})
	assert.Empty(t, bid.Levels)
	assert.Empty(t, ask.Levels)
}

func Test_NewDepthNormalizer_UnknownMode(t *testing.T) {
	_, err := NewDepthNormalizer("log")
	assert.Error(t, err)
}
