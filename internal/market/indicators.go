// Package market fetches exchange data and condenses it into the
// snapshots the signal engine scores. Indicator arithmetic lives in this
// file; lookbacks are noted per function.
package market

import "math"

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime int64
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

func closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// SMA returns the simple moving average of the last period values, or 0
// when there is not enough data.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// EMA returns the exponential moving average seeded with an SMA of the
// first period values.
func EMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	k := 2.0 / float64(period+1)
	ema := SMA(values[:period], period)
	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
	}
	return ema
}

// RSI returns Wilder's relative strength index over period (lookback
// period+1 values).
func RSI(values []float64, period int) float64 {
	if period <= 0 || len(values) < period+1 {
		return 50
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	for i := period + 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACDResult holds the MACD line, signal line, and the previous pair for
// crossover detection.
type MACDResult struct {
	MACD       float64
	Signal     float64
	PrevMACD   float64
	PrevSignal float64
}

// MACD computes MACD(12,26,9). Needs at least 26+9 values.
func MACD(values []float64) MACDResult {
	const fast, slow, sig = 12, 26, 9
	if len(values) < slow+sig {
		return MACDResult{}
	}

	macdSeries := make([]float64, 0, len(values)-slow+1)
	for i := slow; i <= len(values); i++ {
		window := values[:i]
		macdSeries = append(macdSeries, EMA(window, fast)-EMA(window, slow))
	}

	cur := macdSeries[len(macdSeries)-1]
	prev := macdSeries[len(macdSeries)-2]
	curSig := EMA(macdSeries, sig)
	prevSig := EMA(macdSeries[:len(macdSeries)-1], sig)

	return MACDResult{MACD: cur, Signal: curSig, PrevMACD: prev, PrevSignal: prevSig}
}

// BullishCross reports a MACD line crossing up through its signal on the
// latest bar; BearishCross the opposite.
func (m MACDResult) BullishCross() bool {
	return m.PrevMACD <= m.PrevSignal && m.MACD > m.Signal
}

func (m MACDResult) BearishCross() bool {
	return m.PrevMACD >= m.PrevSignal && m.MACD < m.Signal
}

// Bollinger returns the middle band and band half-width (stddev * mult)
// over period.
func Bollinger(values []float64, period int, mult float64) (mid, width float64) {
	if len(values) < period {
		return 0, 0
	}
	mid = SMA(values, period)
	var ss float64
	for _, v := range values[len(values)-period:] {
		d := v - mid
		ss += d * d
	}
	return mid, mult * math.Sqrt(ss/float64(period))
}

// VWAP returns the volume-weighted average price of the given candles
// using the HLC3 typical price.
func VWAP(candles []Candle) float64 {
	var pv, vol float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		pv += typical * c.Volume
		vol += c.Volume
	}
	if vol == 0 {
		return 0
	}
	return pv / vol
}

// ZScore returns how many standard deviations the last value sits from
// the period mean.
func ZScore(values []float64, period int) float64 {
	if len(values) < period {
		return 0
	}
	mean := SMA(values, period)
	var ss float64
	for _, v := range values[len(values)-period:] {
		d := v - mean
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(period))
	if sd == 0 {
		return 0
	}
	return (values[len(values)-1] - mean) / sd
}

// ADX returns Wilder's average directional index over period (lookback
// 2*period values).
func ADX(candles []Candle, period int) float64 {
	if len(candles) < 2*period {
		return 0
	}

	n := len(candles)
	var trs, plusDMs, minusDMs []float64
	for i := 1; i < n; i++ {
		cur, prev := candles[i], candles[i-1]
		tr := math.Max(cur.High-cur.Low,
			math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
		up := cur.High - prev.High
		down := prev.Low - cur.Low
		plusDM, minusDM := 0.0, 0.0
		if up > down && up > 0 {
			plusDM = up
		}
		if down > up && down > 0 {
			minusDM = down
		}
		trs = append(trs, tr)
		plusDMs = append(plusDMs, plusDM)
		minusDMs = append(minusDMs, minusDM)
	}

	smooth := func(vals []float64) float64 {
		s := 0.0
		for _, v := range vals[:period] {
			s += v
		}
		for _, v := range vals[period:] {
			s = s - s/float64(period) + v
		}
		return s
	}

	atr := smooth(trs)
	if atr == 0 {
		return 0
	}

	var dxs []float64
	for i := period; i <= len(trs); i++ {
		tr := smooth(trs[:i])
		if tr == 0 {
			continue
		}
		plusDI := 100 * smooth(plusDMs[:i]) / tr
		minusDI := 100 * smooth(minusDMs[:i]) / tr
		if plusDI+minusDI == 0 {
			continue
		}
		dxs = append(dxs, 100*math.Abs(plusDI-minusDI)/(plusDI+minusDI))
	}
	if len(dxs) < period {
		return 0
	}

	adx := SMA(dxs[:period], period)
	for _, dx := range dxs[period:] {
		adx = (adx*float64(period-1) + dx) / float64(period)
	}
	return adx
}

// CVD returns the cumulative volume delta approximated from candle
// direction: up closes add volume, down closes subtract it.
func CVD(candles []Candle) float64 {
	var delta float64
	for _, c := range candles {
		switch {
		case c.Close > c.Open:
			delta += c.Volume
		case c.Close < c.Open:
			delta -= c.Volume
		}
	}
	return delta
}

// Cloud is a dual-band projection built from the 9/26 midpoint lines,
// shifted forward in the Ichimoku manner.
type Cloud struct {
	SpanA float64
	SpanB float64
}

// CloudSpans computes the cloud bands from the last 52 candles.
func CloudSpans(candles []Candle) Cloud {
	if len(candles) < 52 {
		return Cloud{}
	}
	mid := func(window []Candle) float64 {
		hi, lo := window[0].High, window[0].Low
		for _, c := range window[1:] {
			if c.High > hi {
				hi = c.High
			}
			if c.Low < lo {
				lo = c.Low
			}
		}
		return (hi + lo) / 2
	}
	tenkan := mid(candles[len(candles)-9:])
	kijun := mid(candles[len(candles)-26:])
	return Cloud{
		SpanA: (tenkan + kijun) / 2,
		SpanB: mid(candles[len(candles)-52:]),
	}
}

// Above reports price above both bands; Below price under both.
func (c Cloud) Above(price float64) bool {
	return price > c.SpanA && price > c.SpanB
}

func (c Cloud) Below(price float64) bool {
	return price < c.SpanA && price < c.SpanB
}
