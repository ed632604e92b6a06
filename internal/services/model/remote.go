package model

import (
	"context"
	"fmt"
	"net/url"

	domsvc "StockCast/internal/domain/service"
)

var _ domsvc.SequenceModel = (*RemoteModel)(nil)

// RemoteModel calls a TensorFlow Serving style REST endpoint:
// POST /v1/models/{name}:predict with {"instances": [[[x0],[x1],...], ...]}.
// Each window is sent as a (steps, 1) tensor.
type RemoteModel struct {
	base    *HTTPServiceBase
	name    string
	retries int
}

type predictRequest struct {
	Instances [][][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

func NewRemoteModel(base *HTTPServiceBase, name string, retries int) *RemoteModel {
	return &RemoteModel{base: base, name: name, retries: retries}
}

func (m *RemoteModel) PredictBatch(ctx context.Context, windows [][]float64) ([]float64, error) {
	if len(windows) == 0 {
		return nil, nil
	}
	req := predictRequest{Instances: make([][][]float64, len(windows))}
	for i, w := range windows {
		steps := make([][]float64, len(w))
		for j, x := range w {
			steps[j] = []float64{x}
		}
		req.Instances[i] = steps
	}

	var resp predictResponse
	path := "/v1/models/" + url.PathEscape(m.name) + ":predict"
	if err := m.base.PostJSONWithRetry(ctx, path, req, &resp, m.retries); err != nil {
		return nil, fmt.Errorf("remote model %s: %w", m.name, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("remote model %s: %s", m.name, resp.Error)
	}
	if len(resp.Predictions) != len(windows) {
		return nil, fmt.Errorf("remote model %s returned %d predictions for %d windows", m.name, len(resp.Predictions), len(windows))
	}
	out := make([]float64, len(windows))
	for i, p := range resp.Predictions {
		if len(p) == 0 {
			return nil, fmt.Errorf("remote model %s: empty prediction %d", m.name, i)
		}
		out[i] = p[0]
	}
	return out, nil
}
