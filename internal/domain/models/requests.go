package models

// Requests for the audit/inspection HTTP endpoints. Defined in domain for
// consistency and reuse.

type BacktestRequest struct {
	Tickers        []string `json:"tickers" validate:"required,min=1,dive,required"`
	From           string   `json:"from" validate:"required,datetime=2006-01-02"`
	To             string   `json:"to" validate:"required,datetime=2006-01-02"`
	Window         int      `json:"window" default:"90" validate:"gte=2,lte=2000"`
	MinObs         int      `json:"min_obs" default:"60" validate:"gte=4"`
	TopN           int      `json:"top_n" default:"5" validate:"gte=1,lte=100"`
	FillPolicy     string   `json:"fill_policy" default:"none" validate:"oneof=none forward fail"`
	MaxGap         int      `json:"max_gap" default:"5" validate:"gte=0"`
	ResidualCeil   float64  `json:"residual_ceiling"`
	RiskFreeRate   float64  `json:"risk_free_rate"`
	PeriodsPerYear float64  `json:"periods_per_year" default:"252"`
}

type RegressionHistoryRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required"`
	From   string `query:"from" json:"from" validate:"required,datetime=2006-01-02"`
	To     string `query:"to" json:"to" validate:"required,datetime=2006-01-02"`
	Window int    `query:"window" json:"window" default:"90" validate:"gte=2,lte=2000"`
	MinObs int    `query:"min_obs" json:"min_obs" default:"60" validate:"gte=4"`
}
