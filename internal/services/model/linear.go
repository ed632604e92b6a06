package model

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"

	domsvc "StockCast/internal/domain/service"
)

var _ domsvc.SequenceModel = (*LinearModel)(nil)

const (
	KindLinear = "linear"
	// KindNaive repeats the newest input value.
	KindNaive = "naive"
)

// Spec is the on-disk description of a model exported by the training job.
type Spec struct {
	Name           string    `json:"name"`
	Kind           string    `json:"type"`
	SequenceLength int       `json:"sequence_length"`
	Weights        []float64 `json:"weights"`
	Bias           float64   `json:"bias"`
}

// LinearModel predicts bias + sum(weights[i] * window[i]) on normalized windows.
type LinearModel struct {
	name    string
	kind    string
	weights []float64
	bias    float64
	seqLen  int
}

// DecodeSpec reads and validates a JSON model spec.
func DecodeSpec(r io.Reader) (*LinearModel, error) {
	var s Spec
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode model spec: %w", err)
	}
	return NewLinear(s)
}

func NewLinear(s Spec) (*LinearModel, error) {
	if s.Kind == "" {
		s.Kind = KindLinear
	}
	switch s.Kind {
	case KindLinear:
		if len(s.Weights) == 0 {
			return nil, fmt.Errorf("linear model %q has no weights", s.Name)
		}
		if s.SequenceLength == 0 {
			s.SequenceLength = len(s.Weights)
		}
		if s.SequenceLength != len(s.Weights) {
			return nil, fmt.Errorf("linear model %q: %d weights for sequence length %d", s.Name, len(s.Weights), s.SequenceLength)
		}
		for i, w := range s.Weights {
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return nil, fmt.Errorf("linear model %q: weight %d is not finite", s.Name, i)
			}
		}
	case KindNaive:
	default:
		return nil, fmt.Errorf("unknown model type %q", s.Kind)
	}
	return &LinearModel{
		name:    s.Name,
		kind:    s.Kind,
		weights: s.Weights,
		bias:    s.Bias,
		seqLen:  s.SequenceLength,
	}, nil
}

func (m *LinearModel) Name() string { return m.name }

// SequenceLength is the window length the model was trained on. Zero accepts any.
func (m *LinearModel) SequenceLength() int { return m.seqLen }

func (m *LinearModel) PredictBatch(ctx context.Context, windows [][]float64) ([]float64, error) {
	out := make([]float64, len(windows))
	for i, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(w) == 0 {
			return nil, fmt.Errorf("window %d is empty", i)
		}
		if m.seqLen > 0 && len(w) != m.seqLen {
			return nil, fmt.Errorf("window %d has length %d, model expects %d", i, len(w), m.seqLen)
		}
		if m.kind == KindNaive {
			out[i] = w[len(w)-1]
			continue
		}
		v := m.bias
		for j, x := range w {
			v += m.weights[j] * x
		}
		out[i] = v
	}
	return out, nil
}
