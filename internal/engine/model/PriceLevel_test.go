package model

import (
	"testing"
	"time"

	"github.com/DangVuDev/vndc-exchange/pkg/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restingOrder(id string, amount int64) *model.Order {
	o := model.NewOrder(model.OrderId(id), "VNDC_ETH", "alice", model.SELL, model.ORDER_LIMIT,
		decimal.NewFromInt(100), decimal.NewFromInt(amount), time.Unix(0, 0))
	return &o
}

func TestPriceLevel_QueueAndRemove(t *testing.T) {
	pl := NewPriceLevel(decimal.NewFromInt(100))
	pl.Append(restingOrder("a", 3))
	pl.Append(restingOrder("b", 2))
	pl.Append(restingOrder("c", 1))
	assert.True(t, pl.TotalVolume.Equal(decimal.NewFromInt(6)))
	assert.Equal(t, model.OrderId("a"), pl.Front().ID)

	removed, ok := pl.RemoveOrderByID("b")
	require.True(t, ok)
	assert.Equal(t, model.OrderId("b"), removed.ID)
	assert.True(t, pl.TotalVolume.Equal(decimal.NewFromInt(4)))

	_, ok = pl.RemoveOrderByID("zzz")
	assert.False(t, ok)

	pl.Reduce(decimal.NewFromInt(3))
	pl.PopFront()
	assert.Equal(t, model.OrderId("c"), pl.Front().ID)
	assert.True(t, pl.TotalVolume.Equal(decimal.NewFromInt(1)))

	pl.Reduce(decimal.NewFromInt(1))
	pl.PopFront()
	assert.True(t, pl.Empty())
	assert.Nil(t, pl.Front())
}

func TestPriceLevel_Ordering(t *testing.T) {
	lo := NewPriceLevel(decimal.NewFromInt(99))
	hi := NewPriceLevel(decimal.NewFromInt(101))
	assert.True(t, AskLess(lo, hi))
	assert.False(t, AskLess(hi, lo))
	assert.True(t, BidLess(hi, lo))
	assert.False(t, BidLess(lo, hi))
}
