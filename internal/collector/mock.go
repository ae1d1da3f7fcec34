package collector

import (
	"context"
	"fmt"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	// LastDay maps market code to the bulk last-day records.
	LastDay map[string][]RawRecord
	// ByDate maps "MARKET|DATE" to the records for that historical day.
	ByDate map[string][]RawRecord
	// Err, when set, is returned by every call.
	Err error
	// Calls records every invocation as "market" or "market|date".
	Calls []string
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchBulkLastDay(_ context.Context, market string) ([]RawRecord, error) {
	m.Calls = append(m.Calls, market)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.LastDay[market], nil
}

func (m *MockFetcher) FetchBulkForDate(_ context.Context, market, date string) ([]RawRecord, error) {
	key := fmt.Sprintf("%s|%s", market, date)
	m.Calls = append(m.Calls, key)
	if m.Err != nil {
		return nil, m.Err
	}
	recs, ok := m.ByDate[key]
	if !ok {
		return nil, nil
	}
	return recs, nil
}
