package models

// Request bodies and parameters of the forecast HTTP API.

type PredictRequest struct {
	Ticker string `json:"ticker" validate:"required,ticker"`
	Days   int    `json:"days" default:"30" validate:"gte=1,lte=365"`
}

type HistoricalRequest struct {
	Ticker string `param:"ticker" validate:"required,ticker"`
	Period string `query:"period" default:"1y" validate:"oneof=1mo 3mo 6mo 1y 2y 5y 10y max"`
}

type CheckModelRequest struct {
	Ticker string `param:"ticker" validate:"required,ticker"`
}

type SearchRequest struct {
	Ticker string `json:"ticker" validate:"required,ticker"`
}

type StreamRequest struct {
	Ticker string `query:"ticker" validate:"required,ticker"`
	Days   int    `query:"days" default:"30" validate:"gte=1,lte=365"`
}
