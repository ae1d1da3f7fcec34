package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "market-movers-pipeline/1.0"

// EODHDFetcher implements Fetcher against the EODHD bulk last-day API.
// Retry policy lives on the HTTP client, not in the callers: the engine
// itself never sleeps or retries.
type EODHDFetcher struct {
	client *resty.Client
	apiKey string
}

// NewEODHDFetcher creates a fetcher with bounded retry and backoff.
func NewEODHDFetcher(baseURL, apiKey string, timeout time.Duration, maxRetries int) *EODHDFetcher {
	retryCount := maxRetries - 1
	if retryCount < 0 {
		retryCount = 0
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetRetryCount(retryCount).
		SetRetryWaitTime(5 * time.Second).
		SetRetryMaxWaitTime(30 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	return &EODHDFetcher{client: client, apiKey: apiKey}
}

func (f *EODHDFetcher) Name() string { return "eodhd" }

func (f *EODHDFetcher) FetchBulkLastDay(ctx context.Context, market string) ([]RawRecord, error) {
	return f.fetch(ctx, market, "")
}

func (f *EODHDFetcher) FetchBulkForDate(ctx context.Context, market, date string) ([]RawRecord, error) {
	return f.fetch(ctx, market, date)
}

func (f *EODHDFetcher) fetch(ctx context.Context, market, date string) ([]RawRecord, error) {
	params := map[string]string{
		"api_token": f.apiKey,
		"fmt":       "json",
	}
	if date != "" {
		params["date"] = date
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/eod-bulk-last-day/" + market)
	if err != nil {
		return nil, fmt.Errorf("download EODHD bulk data for %s: %s", market, f.redact(err.Error()))
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("download EODHD bulk data for %s: status %d", market, resp.StatusCode())
	}

	var items []json.RawMessage
	if err := json.Unmarshal(resp.Body(), &items); err != nil {
		return nil, fmt.Errorf("decode EODHD payload for %s: %s", market, f.redact(err.Error()))
	}

	records := make([]RawRecord, 0, len(items))
	skipped := 0
	for _, item := range items {
		var rec RawRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if skipped > 0 {
		log.Printf("[WARN] EODHD payload for %s contained %d non-object entries", market, skipped)
	}
	return records, nil
}

// redact strips the API token from error text before it reaches the logs.
func (f *EODHDFetcher) redact(text string) string {
	if f.apiKey == "" {
		return text
	}
	return strings.ReplaceAll(text, f.apiKey, "***")
}
