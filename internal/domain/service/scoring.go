package service

import "NgxQuant/internal/domain/models"

// TickerScorer ranks tickers at a rebalance date. Higher is better. The
// FX-conditional rotation scores by estimated beta_fx, but the selection
// engine only depends on this capability so alternative factor rotations can
// be evaluated against the same machinery.
type TickerScorer interface {
	Score(est models.RegressionEstimate) float64
}
