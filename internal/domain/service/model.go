package service

import "context"

// SequenceModel is a trained sequence model. PredictBatch receives N windows of
// equal length and returns N scalar predictions in input order.
type SequenceModel interface {
	PredictBatch(ctx context.Context, windows [][]float64) ([]float64, error)
}

// ModelLoader resolves a trained model for a ticker.
type ModelLoader interface {
	// Locate returns the path of the model that Load would use.
	Locate(ticker string) (string, bool)
	// Load returns the model handle and a descriptive name.
	Load(ctx context.Context, ticker string) (SequenceModel, string, error)
}
