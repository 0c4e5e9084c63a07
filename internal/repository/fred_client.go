package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	pkghttp "EconDash/pkg/http"

	"golang.org/x/time/rate"
)

// ErrMissingAPIKey means the FRED source was never configured.
var ErrMissingAPIKey = fmt.Errorf("%w: FRED api key not configured", models.ErrSourceUnavailable)

type fredObservations struct {
	Units        string `json:"units"`
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
	ErrorMessage string `json:"error_message"`
}

// FREDClient fetches observations from the St. Louis Fed API, throttled to
// a fixed request rate shared by every caller.
type FREDClient struct {
	http    *pkghttp.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	retries int
}

var _ domrepo.SeriesSource = (*FREDClient)(nil)

func NewFREDClient(client *pkghttp.Client, baseURL, apiKey string, requestsPerSecond float64) *FREDClient {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2
	}
	return &FREDClient{
		http:    client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		retries: 2,
	}
}

// FetchSeries returns the raw (date, value) pairs of seriesID from start on.
// FRED's "." missing marker is passed through for the cleaner to drop.
func (c *FREDClient) FetchSeries(ctx context.Context, seriesID string, start time.Time) (models.RawSeries, error) {
	if c.apiKey == "" {
		return models.RawSeries{}, ErrMissingAPIKey
	}
	opts := &pkghttp.RequestOptions{
		URL: c.baseURL + "/fred/series/observations",
		QueryParams: map[string][]string{
			"series_id":         {seriesID},
			"api_key":           {c.apiKey},
			"file_type":         {"json"},
			"observation_start": {start.Format(models.DateLayout)},
		},
	}

	var body fredObservations
	var err error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if err = c.limiter.Wait(ctx); err != nil {
			return models.RawSeries{}, err
		}
		body = fredObservations{}
		err = c.http.SendAndParse(ctx, opts, &body)
		var se *pkghttp.StatusError
		if err == nil || !errors.As(err, &se) || !se.Temporary() {
			break
		}
	}
	if err != nil {
		return models.RawSeries{}, fmt.Errorf("%w: fred %s: %v", models.ErrSourceUnavailable, seriesID, redact(err.Error(), c.apiKey))
	}
	if body.ErrorMessage != "" {
		return models.RawSeries{}, fmt.Errorf("%w: fred %s: %s", models.ErrSourceUnavailable, seriesID, body.ErrorMessage)
	}

	raw := models.RawSeries{Name: seriesID, Unit: body.Units, Records: make([][2]string, 0, len(body.Observations))}
	for _, o := range body.Observations {
		raw.Records = append(raw.Records, [2]string{o.Date, o.Value})
	}
	return raw, nil
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "***")
}
