package detect

import "math"

// arOrder is one candidate model order: p autoregressive lags over a
// series differenced d times.
type arOrder struct {
	p, d int
}

// candidateOrders are tried in sequence; the fit with the lowest AIC wins.
// Ordered simplest first so ties keep the simpler model.
var candidateOrders = []arOrder{{1, 0}, {1, 1}, {2, 1}}

// arFit is a fitted autoregressive model over a (possibly differenced)
// series.
type arFit struct {
	order arOrder
	// offset is the number of leading original-series points with no
	// fitted value (d differences plus p lags).
	offset    int
	residuals []float64 // aligned to original index offset..n-1
	fitted    []float64 // same alignment, original scale
	aic       float64
}

// fitBest fits every candidate order and returns the lowest-AIC fit.
// Returns false when no candidate produces a solvable regression.
func fitBest(values []float64) (arFit, bool) {
	best := arFit{aic: math.Inf(1)}
	found := false
	for _, order := range candidateOrders {
		fit, ok := fitOrder(values, order)
		if !ok {
			continue
		}
		if fit.aic < best.aic {
			best = fit
			found = true
		}
	}
	return best, found
}

// fitOrder fits one AR(p) model on the d-times differenced series by
// ordinary least squares and maps fitted values back to the original
// scale.
func fitOrder(values []float64, order arOrder) (arFit, bool) {
	w := difference(values, order.d)
	p := order.p
	rows := len(w) - p
	if rows < p+2 {
		return arFit{}, false
	}

	// Normal equations for w[t] = c + sum coef[i]*w[t-1-i].
	dim := p + 1
	a := make([][]float64, dim)
	for i := range a {
		a[i] = make([]float64, dim)
	}
	b := make([]float64, dim)
	for t := p; t < len(w); t++ {
		x := make([]float64, dim)
		x[0] = 1
		for i := 0; i < p; i++ {
			x[i+1] = w[t-1-i]
		}
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				a[i][j] += x[i] * x[j]
			}
			b[i] += x[i] * w[t]
		}
	}
	coef, ok := solveLinear(a, b)
	if !ok {
		return arFit{}, false
	}

	// Residuals on the differenced scale equal residuals on the original
	// scale: for d=1, yhat[t] = y[t-1] + what[t].
	offset := order.d + p
	fit := arFit{order: order, offset: offset}
	rss := 0.0
	for t := p; t < len(w); t++ {
		pred := coef[0]
		for i := 0; i < p; i++ {
			pred += coef[i+1] * w[t-1-i]
		}
		resid := w[t] - pred
		rss += resid * resid
		origIdx := t + order.d
		fit.residuals = append(fit.residuals, resid)
		fit.fitted = append(fit.fitted, values[origIdx]-resid)
	}

	n := float64(rows)
	if rss <= 0 {
		fit.aic = math.Inf(-1)
	} else {
		fit.aic = n*math.Log(rss/n) + 2*float64(dim)
	}
	return fit, true
}

// difference applies d rounds of first differencing.
func difference(values []float64, d int) []float64 {
	w := values
	for round := 0; round < d; round++ {
		next := make([]float64, len(w)-1)
		for i := 1; i < len(w); i++ {
			next[i-1] = w[i] - w[i-1]
		}
		w = next
	}
	return w
}

// solveLinear solves a*x = b by Gaussian elimination with partial
// pivoting. Returns false for a singular system.
func solveLinear(a [][]float64, b []float64) ([]float64, bool) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			factor := a[r][col] / a[col][col]
			for c := col; c < n; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}

	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * x[c]
		}
		x[r] = sum / a[r][r]
	}
	return x, true
}

// stddev is the population standard deviation.
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)))
}
