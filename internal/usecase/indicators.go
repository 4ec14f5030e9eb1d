package usecase

import "math"

// window is a fixed-capacity ring buffer of float64 samples with O(1) push
// and oldest-first eviction.
type window struct {
	buf   []float64
	start int
	count int
}

func newWindow(capacity int) *window {
	if capacity < 1 {
		capacity = 1
	}
	return &window{buf: make([]float64, capacity)}
}

func (w *window) push(v float64) {
	if w.count < len(w.buf) {
		w.buf[(w.start+w.count)%len(w.buf)] = v
		w.count++
		return
	}
	// Full: overwrite the oldest slot and advance.
	w.buf[w.start] = v
	w.start = (w.start + 1) % len(w.buf)
}

func (w *window) len() int { return w.count }

func (w *window) at(i int) float64 {
	return w.buf[(w.start+i)%len(w.buf)]
}

// meanLast averages the most recent n samples (all of them if n exceeds len).
func (w *window) meanLast(n int) float64 {
	if n > w.count {
		n = w.count
	}
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := w.count - n; i < w.count; i++ {
		sum += w.at(i)
	}
	return sum / float64(n)
}

// Indicators maintains the rolling price and true-range windows and derives
// ATR, short/long SMAs and the bid/ask spread.
//
// True range here is |price_t - price_{t-1}|: only last-trade prices are
// sampled, so there is no high/low/close triad. This understates volatility
// versus a classical ATR and is kept that way on purpose; changing the
// formula changes trading behavior.
type Indicators struct {
	shortWindow int
	longWindow  int
	atrWindow   int

	prices     *window
	trueRanges *window
	lastPrice  float64
	hasLast    bool
}

func NewIndicators(shortWindow, longWindow, atrWindow int) *Indicators {
	return &Indicators{
		shortWindow: shortWindow,
		longWindow:  longWindow,
		atrWindow:   atrWindow,
		prices:      newWindow(longWindow),
		trueRanges:  newWindow(atrWindow),
	}
}

// Update records a new price sample.
func (ind *Indicators) Update(price float64) {
	if price <= 0 {
		return
	}

	if ind.hasLast {
		ind.trueRanges.push(math.Abs(price - ind.lastPrice))
	}

	ind.prices.push(price)
	ind.lastPrice = price
	ind.hasLast = true
}

// ATR is the arithmetic mean of the true-range window, zero until the first
// true range exists.
func (ind *Indicators) ATR() float64 {
	if ind.atrWindow <= 0 || ind.trueRanges.len() == 0 {
		return 0
	}
	return ind.trueRanges.meanLast(ind.trueRanges.len())
}

// SMAShort and SMALong return zero ("unavailable") until the long window has
// filled; after that both are simple means over their respective windows.
func (ind *Indicators) SMAShort() float64 {
	if !ind.smaReady() {
		return 0
	}
	return ind.prices.meanLast(ind.shortWindow)
}

func (ind *Indicators) SMALong() float64 {
	if !ind.smaReady() {
		return 0
	}
	return ind.prices.meanLast(ind.longWindow)
}

func (ind *Indicators) smaReady() bool {
	return ind.shortWindow > 0 && ind.longWindow > 0 && ind.prices.len() >= ind.longWindow
}

// SpreadPct computes (ask-bid)/midpoint, valid only when ask >= bid > 0.
func SpreadPct(bid, ask float64) float64 {
	if bid <= 0 || ask <= 0 || ask < bid {
		return 0
	}
	mid := (bid + ask) / 2
	if mid <= 0 {
		return 0
	}
	return (ask - bid) / mid
}
