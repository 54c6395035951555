package interfaces

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/giygas/jcrcrawler/crawler"
	"github.com/giygas/jcrcrawler/tabulator"
)

// The pipeline crawler is used by the scheduler through this contract
var _ Crawler = (*crawler.Crawler)(nil)

// MockDataStore implements DataStore interface for testing
type MockDataStore struct {
	result      *crawler.Result
	lastUpdated time.Time
	failedAt    time.Time
	failure     string
	updating    bool
}

func (m *MockDataStore) GetRows() []tabulator.Row {
	if m.result == nil {
		return nil
	}
	return m.result.Rows
}

func (m *MockDataStore) GetLastResult() *crawler.Result      { return m.result }
func (m *MockDataStore) GetLastUpdated() time.Time           { return m.lastUpdated }
func (m *MockDataStore) GetLastFailure() (time.Time, string) { return m.failedAt, m.failure }
func (m *MockDataStore) IsUpdating() bool                    { return m.updating }
func (m *MockDataStore) GetServerStartTime() time.Time       { return time.Time{} }

func (m *MockDataStore) UpdateData(result *crawler.Result) {
	m.UpdateDataAt(result, time.Now())
}

func (m *MockDataStore) UpdateDataAt(result *crawler.Result, producedAt time.Time) {
	m.result = result
	m.lastUpdated = producedAt
}

func (m *MockDataStore) RecordFailure(err error) {
	m.failedAt = time.Now()
	m.failure = err.Error()
}

func (m *MockDataStore) BeginUpdate() bool {
	if m.updating {
		return false
	}
	m.updating = true
	return true
}

func (m *MockDataStore) EndUpdate() {
	m.updating = false
}

// MockCrawler implements Crawler interface for testing
type MockCrawler struct {
	rows []tabulator.Row
	err  error
}

func (m *MockCrawler) Crawl(ctx context.Context) (*crawler.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	return &crawler.Result{Rows: m.rows}, nil
}

// MockHTTPHandler implements HTTPHandler interface for testing
type MockHTTPHandler struct {
	store DataStore
}

func (m *MockHTTPHandler) ServeAbbreviations(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	for _, row := range m.store.GetRows() {
		w.Write([]byte(row.FullName + "\n"))
	}
}

func (m *MockHTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// runOnce drives the contracts the way the scheduler does
func runOnce(ctx context.Context, store DataStore, c Crawler) error {
	if !store.BeginUpdate() {
		return nil
	}
	defer store.EndUpdate()

	result, err := c.Crawl(ctx)
	if err != nil {
		store.RecordFailure(err)
		return err
	}
	store.UpdateData(result)
	return nil
}

func TestDataStoreAndCrawlerContracts(t *testing.T) {
	rows := []tabulator.Row{{FullName: "Nature", Abbreviation: "Nature"}}

	tests := []struct {
		name        string
		crawler     *MockCrawler
		ctx         func() context.Context
		expectRows  int
		expectError bool
	}{
		{
			name:       "successful crawl",
			crawler:    &MockCrawler{rows: rows},
			ctx:        context.Background,
			expectRows: 1,
		},
		{
			name:        "failed crawl keeps nothing",
			crawler:     &MockCrawler{err: crawler.ErrFetchFailed},
			ctx:         context.Background,
			expectError: true,
		},
		{
			name:    "cancelled context",
			crawler: &MockCrawler{rows: rows},
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var store DataStore = &MockDataStore{}

			err := runOnce(tt.ctx(), store, tt.crawler)

			if (err != nil) != tt.expectError {
				t.Errorf("Expected error %v, got %v", tt.expectError, err)
			}
			if got := len(store.GetRows()); got != tt.expectRows {
				t.Errorf("Expected %d rows, got %d", tt.expectRows, got)
			}
			if store.IsUpdating() {
				t.Error("Expected update flag to be released")
			}
			if _, failure := store.GetLastFailure(); tt.expectError && failure == "" {
				t.Error("Expected failure to be recorded")
			}
		})
	}
}

func TestDataStoreBeginUpdateIsExclusive(t *testing.T) {
	var store DataStore = &MockDataStore{}

	if !store.BeginUpdate() {
		t.Fatal("Expected first BeginUpdate to succeed")
	}
	if store.BeginUpdate() {
		t.Error("Expected second BeginUpdate to fail")
	}

	err := runOnce(context.Background(), store, &MockCrawler{err: errors.New("should not run")})
	if err != nil {
		t.Errorf("Expected skipped crawl to return nil, got %v", err)
	}

	store.EndUpdate()
	if store.IsUpdating() {
		t.Error("Expected EndUpdate to release the flag")
	}
}

func TestHTTPHandlerContract(t *testing.T) {
	store := &MockDataStore{}
	store.UpdateData(&crawler.Result{Rows: []tabulator.Row{{FullName: "Nature"}, {FullName: "Cell"}}})

	var handler HTTPHandler = &MockHTTPHandler{store: store}

	rr := httptest.NewRecorder()
	handler.ServeAbbreviations(rr, httptest.NewRequest("GET", "/abbreviations", nil))

	if rr.Body.String() != "Nature\nCell\n" {
		t.Errorf("Expected rows from the store, got %q", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	handler.HealthCheck(rr, httptest.NewRequest("GET", "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
}
