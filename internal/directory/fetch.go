package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/petits-plats/api/internal/config"
	"github.com/petits-plats/api/internal/model"
)

// ErrUnavailable is returned when the sheet export did not produce a success
// response after all retries.
var ErrUnavailable = errors.New("directory source unavailable")

// SheetFetcher downloads the published CSV export of the clients sheet.
type SheetFetcher struct {
	httpClient *http.Client
	url        string
	retries    int
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewSheetFetcher creates a SheetFetcher from the application config. A nil
// fetcher is returned when no sheet URL is configured.
func NewSheetFetcher(cfg *config.Config) *SheetFetcher {
	if cfg.SheetCSVURL == "" {
		return nil
	}
	return &SheetFetcher{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		url:        cfg.SheetCSVURL,
		retries:    cfg.FetchRetries,
		sleep:      sleepContext,
	}
}

// sleepContext waits out a backoff but returns early when the request is
// cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Fetch downloads and parses the sheet. Transient failures are retried with
// doubling backoff; a final failure returns ErrUnavailable so callers can
// degrade to the locally persisted directory.
func (f *SheetFetcher) Fetch(ctx context.Context) ([]model.Customer, []model.Warning, error) {
	var lastErr error
	backoff := 500 * time.Millisecond

	for attempt := 0; attempt < f.retries; attempt++ {
		if attempt > 0 {
			if err := f.sleep(ctx, backoff); err != nil {
				return nil, nil, err
			}
			backoff *= 2
		}

		customers, warnings, err := f.fetchOnce(ctx)
		if err == nil {
			return customers, warnings, nil
		}
		lastErr = err
	}
	return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (f *SheetFetcher) fetchOnce(ctx context.Context) ([]model.Customer, []model.Warning, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return ParseSheet(resp.Body)
}
