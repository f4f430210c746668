// Package directory keeps the facilities table in step with the upstream facility directory.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"facility-booking-backend/config"
	"facility-booking-backend/internal/logging"
	"facility-booking-backend/internal/metrics"
	"facility-booking-backend/internal/store"
)

// FacilityWriter is the part of the store a sync needs.
type FacilityWriter interface {
	UpsertFacilities(ctx context.Context, items []store.DirectoryItem) (int, error)
}

// Service periodically pulls the facility directory and upserts it.
type Service struct {
	cfg       config.DirectoryConfig
	store     FacilityWriter
	client    *http.Client
	afterSync func(upserted int)
	logger    zerolog.Logger
}

// NewService creates and initializes a new directory sync service.
func NewService(cfg config.DirectoryConfig, store FacilityWriter) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	return &Service{
		cfg:   cfg,
		store: store,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logging.WithComponent("directory"),
	}
}

// OnSync registers fn to run after every cycle that upserted facilities.
func (s *Service) OnSync(fn func(upserted int)) *Service {
	s.afterSync = fn
	return s
}

// Run syncs once and then every configured interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info().Msg("facility directory sync is disabled, not starting")
		return
	}
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	s.logger.Info().Str("url", s.cfg.URL).Dur("interval", interval).Msg("starting facility directory sync")

	s.syncAndLog(ctx)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("facility directory sync shutting down")
			return
		case <-timer.C:
			s.syncAndLog(ctx)
			timer.Reset(interval)
		}
	}
}

func (s *Service) syncAndLog(ctx context.Context) {
	n, err := s.SyncOnce(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("facility directory sync failed")
		return
	}
	s.logger.Info().Int("upserted", n).Msg("facility directory sync finished")
}

// SyncOnce fetches every page of the directory and upserts the valid facilities.
// A fetch error after some pages were read still upserts what was read; with
// nothing read the cycle is aborted so existing facilities stay untouched.
func (s *Service) SyncOnce(ctx context.Context) (int, error) {
	var allItems []store.DirectoryItem
	total := 1
	pageSize := s.cfg.PageSize
	var fetchErr error
	for page := 1; (page-1)*pageSize < total; page++ {
		resp, err := s.fetchPage(ctx, page)
		if err != nil {
			s.logger.Warn().Err(err).Int("page", page).Msg("error fetching directory page")
			fetchErr = err
			break
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		allItems = append(allItems, resp.Data.Items...)
		s.logger.Debug().Int("page", page).Int("items", len(allItems)).Int("total", total).Msg("fetched directory page")
	}

	if fetchErr != nil && len(allItems) == 0 {
		metrics.DirectorySyncTotal.WithLabelValues("failed").Inc()
		return 0, fmt.Errorf("directory fetch returned nothing: %w", fetchErr)
	}
	if len(allItems) == 0 {
		metrics.DirectorySyncTotal.WithLabelValues("empty").Inc()
		return 0, nil
	}

	n, err := s.store.UpsertFacilities(ctx, allItems)
	if err != nil {
		metrics.DirectorySyncTotal.WithLabelValues("failed").Inc()
		return 0, err
	}
	if fetchErr != nil {
		metrics.DirectorySyncTotal.WithLabelValues("partial").Inc()
	} else {
		metrics.DirectorySyncTotal.WithLabelValues("ok").Inc()
	}
	if n > 0 && s.afterSync != nil {
		s.afterSync(n)
	}
	return n, nil
}

// fetchPage fetches a single page of facilities from the upstream directory.
func (s *Service) fetchPage(ctx context.Context, page int) (*ApiResponse, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid directory url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(s.cfg.PageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range s.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp ApiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal directory response: %w", err)
	}
	if apiResp.Code != 0 {
		return nil, errors.New("directory returned non-zero application code " + strconv.Itoa(apiResp.Code))
	}
	return &apiResp, nil
}
