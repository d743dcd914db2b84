package features

// EMA is an incremental exponential moving average with the conventional
// smoothing factor 2/(n+1). The first sample seeds the average.
type EMA struct {
	k     float64
	value float64
	count int
}

func NewEMA(period int) *EMA {
	if period <= 0 {
		period = 1
	}
	return &EMA{k: 2 / float64(period+1)}
}

func (e *EMA) Update(price float64) float64 {
	if e.count == 0 {
		e.value = price
	} else {
		e.value = price*e.k + e.value*(1-e.k)
	}
	e.count++
	return e.value
}

func (e *EMA) Value() float64 { return e.value }

func (e *EMA) Ready() bool { return e.count > 0 }
