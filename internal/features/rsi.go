package features

import "sync"

// RSI computes the relative strength index with Wilder smoothing. The first
// period deltas are averaged directly, later deltas decay into the running
// averages.
type RSI struct {
	period   int
	mu       sync.Mutex
	prev     float64
	avgGain  float64
	avgLoss  float64
	seen     int
	seeded   bool
	sumGain  float64
	sumLoss  float64
}

func NewRSI(period int) *RSI {
	if period <= 0 {
		period = 1
	}
	return &RSI{period: period}
}

func (r *RSI) Update(close float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seen == 0 {
		r.prev = close
		r.seen++
		return
	}

	delta := close - r.prev
	r.prev = close
	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	if !r.seeded {
		r.sumGain += gain
		r.sumLoss += loss
		r.seen++
		if r.seen > r.period {
			r.avgGain = r.sumGain / float64(r.period)
			r.avgLoss = r.sumLoss / float64(r.period)
			r.seeded = true
		}
		return
	}

	n := float64(r.period)
	r.avgGain = (r.avgGain*(n-1) + gain) / n
	r.avgLoss = (r.avgLoss*(n-1) + loss) / n
	r.seen++
}

// Value returns the current RSI in [0, 100]. Before enough samples arrive it
// returns 50, the neutral reading.
func (r *RSI) Value() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.seeded {
		return 50
	}
	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}

func (r *RSI) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seeded
}
