package market

import (
	"time"

	"github.com/DangVuDev/vndc-exchange/pkg/model"
	"github.com/shopspring/decimal"
)

const DefaultHistory = 500

// Fold buckets trades into candles for one timeframe, oldest bucket first.
// Trades must be in tape order.
func Fold(trades []*model.Trade, tf model.Timeframe) []model.Candle {
	out := make([]model.Candle, 0)
	for _, tr := range trades {
		bucket := tf.BucketStart(tr.Timestamp)
		if n := len(out); n == 0 || !out[n-1].Time.Equal(bucket) {
			out = append(out, model.Candle{Time: bucket, Volume: decimal.Zero})
		}
		out[len(out)-1].Add(tr.Price, tr.Amount)
	}
	return out
}

// FillGaps turns sparse candles into a continuous series from the bucket of
// from to the bucket of to. Missing buckets become flat candles at the
// previous close, or at seed before the first trade. A zero from or to falls
// back to the first or last candle. At most limit buckets are returned, the
// newest ones kept.
func FillGaps(candles []model.Candle, tf model.Timeframe, from, to time.Time, seed decimal.Decimal, limit int) []model.Candle {
	if len(candles) == 0 && (from.IsZero() || to.IsZero()) {
		return []model.Candle{}
	}
	start, end := tf.BucketStart(from), tf.BucketStart(to)
	if from.IsZero() {
		start = candles[0].Time
	}
	if to.IsZero() {
		end = candles[len(candles)-1].Time
	}
	if end.Before(start) {
		return []model.Candle{}
	}
	if limit > 0 {
		if earliest := end.Add(-time.Duration(limit-1) * tf.Duration); start.Before(earliest) {
			start = earliest
		}
	}

	prevClose := seed
	i := 0
	for i < len(candles) && candles[i].Time.Before(start) {
		prevClose = candles[i].Close
		i++
	}

	out := make([]model.Candle, 0, int(end.Sub(start)/tf.Duration)+1)
	for at := start; !at.After(end); at = at.Add(tf.Duration) {
		if i < len(candles) && candles[i].Time.Equal(at) {
			out = append(out, candles[i])
			prevClose = candles[i].Close
			i++
			continue
		}
		out = append(out, model.Flat(at, prevClose))
	}
	return out
}

// Series is the memoized candle history of one pair and timeframe. Closed
// buckets are never touched again; only the newest bucket takes updates.
type Series struct {
	tf      model.Timeframe
	limit   int
	candles []model.Candle
}

func NewSeries(tf model.Timeframe, limit int) *Series {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &Series{tf: tf, limit: limit}
}

func (s *Series) Add(tr *model.Trade) {
	bucket := s.tf.BucketStart(tr.Timestamp)
	n := len(s.candles)
	if n > 0 && !bucket.After(s.candles[n-1].Time) {
		// the exchange clock is monotonic, so this is the open bucket
		s.candles[n-1].Add(tr.Price, tr.Amount)
		return
	}
	c := model.Candle{Time: bucket, Volume: decimal.Zero}
	c.Add(tr.Price, tr.Amount)
	s.candles = append(s.candles, c)
	if len(s.candles) > s.limit {
		s.candles = append(s.candles[:0], s.candles[len(s.candles)-s.limit:]...)
	}
}

// Candles returns a copy of the history, oldest first.
func (s *Series) Candles() []model.Candle {
	out := make([]model.Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

func (s *Series) Timeframe() model.Timeframe {
	return s.tf
}

func (s *Series) Reset() {
	s.candles = nil
}

// Aggregator feeds every trade of one pair into one Series per timeframe.
type Aggregator struct {
	series map[string]*Series
}

func NewAggregator(timeframes []model.Timeframe, limit int) *Aggregator {
	a := &Aggregator{series: make(map[string]*Series, len(timeframes))}
	for _, tf := range timeframes {
		a.series[tf.ID] = NewSeries(tf, limit)
	}
	return a
}

func (a *Aggregator) Add(tr *model.Trade) {
	for _, s := range a.series {
		s.Add(tr)
	}
}

func (a *Aggregator) Series(timeframe string) (*Series, bool) {
	s, ok := a.series[timeframe]
	return s, ok
}

func (a *Aggregator) Reset() {
	for _, s := range a.series {
		s.Reset()
	}
}
