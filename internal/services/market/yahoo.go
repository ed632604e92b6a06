// Package market provides daily bar sources: the Yahoo chart API, the
// ClickHouse archive and a deterministic synthetic generator, plus retry and
// fallback wrappers around them.
package market

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	xhttp "StockCast/pkg/http"
)

var _ domrepo.BarSource = (*YahooSource)(nil)

const (
	DefaultYahooURL = "https://query1.finance.yahoo.com"
	userAgent       = "Mozilla/5.0 (compatible; stockcast/1.0)"
)

// YahooSource reads daily bars from the v8 chart endpoint.
type YahooSource struct {
	baseURL string
	client  *xhttp.Client
}

func NewYahooSource(baseURL string, timeout time.Duration) *YahooSource {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithHeader("User-Agent", userAgent))
	return &YahooSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (s *YahooSource) Name() string { return "yahoo" }

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		Currency  string `json:"currency"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// FetchDaily returns bars oldest first. Null quote values become NaN prices
// or MissingVolume so that cleaning can drop them.
func (s *YahooSource) FetchDaily(ctx context.Context, ticker, period string) ([]models.Bar, error) {
	var resp chartResponse
	query := url.Values{
		"range":    {string(domrepo.NormalizePeriod(period))},
		"interval": {"1d"},
	}
	err := s.client.GetJSON(ctx, s.baseURL+"/v8/finance/chart/"+url.PathEscape(ticker), query, &resp)
	if err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}
	if e := resp.Chart.Error; e != nil {
		return nil, fmt.Errorf("yahoo chart %s: %s: %s", ticker, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: empty result", ticker)
	}
	return resp.Chart.Result[0].bars(), nil
}

func (r chartResult) bars() []models.Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]
	out := make([]models.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		local := time.Unix(ts+r.Meta.GMTOffset, 0).UTC()
		y, m, d := local.Date()
		b := models.Bar{
			Date:   time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
			Open:   floatAt(q.Open, i),
			High:   floatAt(q.High, i),
			Low:    floatAt(q.Low, i),
			Close:  floatAt(q.Close, i),
			Volume: models.MissingVolume,
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			b.Volume = *q.Volume[i]
		}
		out = append(out, b)
	}
	return out
}

func floatAt(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return math.NaN()
	}
	return *vals[i]
}
