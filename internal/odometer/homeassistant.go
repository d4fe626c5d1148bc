package odometer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/pkordes/korjournal/internal/domain"
)

// ErrNoReading is returned by the explicit Home Assistant calls when the
// entity exists but its state is not a number (e.g. "unavailable").
var ErrNoReading = errors.New("odometer entity has no numeric state")

// SettingsFunc returns the current Home Assistant settings. It is called on
// every request so saved changes apply without a restart.
type SettingsFunc func(ctx context.Context) (domain.HomeAssistantSettings, error)

// HAReading is a successful explicit poll.
type HAReading struct {
	Km     float64
	Entity string
	At     time.Time
}

// HomeAssistantOptions tune the client. Zero values pick the defaults.
type HomeAssistantOptions struct {
	HTTPClient *http.Client
	// PollTimeout bounds one shared state request.
	PollTimeout time.Duration
	// ForceWait is how long to let the car report back after a forced update.
	ForceWait time.Duration
	// ForceMinInterval spaces out forced updates; they wake the car.
	ForceMinInterval time.Duration
	Logger           *slog.Logger
}

// HomeAssistant reads an odometer sensor through the Home Assistant REST API.
// Concurrent polls of the same entity share one upstream request.
type HomeAssistant struct {
	settings  SettingsFunc
	client      *http.Client
	pollTimeout time.Duration
	forceWait   time.Duration
	limiter     *rate.Limiter
	polls       singleflight.Group
	log         *slog.Logger
}

// NewHomeAssistant builds a client.
func NewHomeAssistant(settings SettingsFunc, opts HomeAssistantOptions) *HomeAssistant {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 8 * time.Second
	}
	if opts.ForceWait <= 0 {
		opts.ForceWait = 15 * time.Second
	}
	if opts.ForceMinInterval <= 0 {
		opts.ForceMinInterval = 2 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &HomeAssistant{
		settings:    settings,
		client:      opts.HTTPClient,
		pollTimeout: opts.PollTimeout,
		forceWait:   opts.ForceWait,
		limiter:     rate.NewLimiter(rate.Every(opts.ForceMinInterval), 1),
		log:         opts.Logger,
	}
}

// compile-time check: HomeAssistant must satisfy Provider.
var _ Provider = (*HomeAssistant)(nil)

// PollCurrent implements Provider. Home Assistant exposes one configured
// odometer entity, so vehicleReg is not used to pick a sensor.
func (h *HomeAssistant) PollCurrent(ctx context.Context, _ string) (*float64, error) {
	r, err := h.Poll(ctx, "")
	return readingOrNil(r, err)
}

// ForceRefreshAndPoll implements Provider.
func (h *HomeAssistant) ForceRefreshAndPoll(ctx context.Context, _ string) (*float64, error) {
	r, err := h.ForceAndPoll(ctx, "")
	return readingOrNil(r, err)
}

func readingOrNil(r HAReading, err error) (*float64, error) {
	if errors.Is(err, ErrNoReading) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r.Km, nil
}

// Poll reads the odometer state. An empty entity uses the configured one.
// Returns domain.ErrNotConfigured, domain.ErrProviderUnavailable or ErrNoReading.
//
// The upstream request is shared by concurrent callers and is bounded by the
// poll timeout, not by any single caller's context.
func (h *HomeAssistant) Poll(ctx context.Context, entity string) (HAReading, error) {
	cfg, err := h.config(ctx, entity)
	if err != nil {
		return HAReading{}, err
	}

	key := cfg.BaseURL + "|" + cfg.OdometerEntity
	ch := h.polls.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.pollTimeout)
		defer cancel()
		return h.fetchState(fetchCtx, cfg)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return HAReading{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return HAReading{}, res.Err
	}
	km := res.Val.(float64)
	h.log.DebugContext(ctx, "home assistant poll", "entity", cfg.OdometerEntity, "km", km, "shared", res.Shared)
	return HAReading{Km: km, Entity: cfg.OdometerEntity, At: time.Now().UTC()}, nil
}

// ForceAndPoll asks Home Assistant to refresh the car's data, waits for the
// car to report, then polls. Forced updates are rate limited; when the
// limit is hit the refresh is skipped and only the poll runs.
func (h *HomeAssistant) ForceAndPoll(ctx context.Context, entity string) (HAReading, error) {
	cfg, err := h.settings(ctx)
	if err != nil {
		return HAReading{}, fmt.Errorf("odometer.HomeAssistant.ForceAndPoll: settings: %w", err)
	}
	if cfg.BaseURL == "" || cfg.Token == "" {
		return HAReading{}, fmt.Errorf("%w: home assistant base url and token are required", domain.ErrNotConfigured)
	}

	if h.limiter.Allow() {
		if err := h.callForceService(ctx, cfg); err != nil {
			return HAReading{}, err
		}
		if err := sleepCtx(ctx, h.forceWait); err != nil {
			return HAReading{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
	} else {
		h.log.InfoContext(ctx, "home assistant force update skipped, too soon after the last one")
	}
	return h.Poll(ctx, entity)
}

func (h *HomeAssistant) config(ctx context.Context, entity string) (domain.HomeAssistantSettings, error) {
	cfg, err := h.settings(ctx)
	if err != nil {
		return domain.HomeAssistantSettings{}, fmt.Errorf("odometer.HomeAssistant: settings: %w", err)
	}
	if e := strings.TrimSpace(entity); e != "" {
		cfg.OdometerEntity = e
	}
	if !cfg.Configured() {
		return domain.HomeAssistantSettings{}, fmt.Errorf("%w: home assistant base url, token and entity are required", domain.ErrNotConfigured)
	}
	return cfg, nil
}

// stateResponse is the subset of GET /api/states/{entity} we read.
type stateResponse struct {
	State      string `json:"state"`
	Attributes struct {
		Unit string `json:"unit_of_measurement"`
	} `json:"attributes"`
}

func (h *HomeAssistant) fetchState(ctx context.Context, cfg domain.HomeAssistantSettings) (float64, error) {
	endpoint := cfg.BaseURL + "/api/states/" + url.PathEscape(cfg.OdometerEntity)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", domain.ErrProviderUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: states/%s returned %d: %s",
			domain.ErrProviderUnavailable, cfg.OdometerEntity, resp.StatusCode, snippet(resp.Body))
	}

	var st stateResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return 0, fmt.Errorf("%w: decode state: %v", domain.ErrProviderUnavailable, err)
	}
	km, err := parseKm(st.State, st.Attributes.Unit)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNoReading, st.State)
	}
	return km, nil
}

func (h *HomeAssistant) callForceService(ctx context.Context, cfg domain.HomeAssistantSettings) error {
	data := cfg.ForceData
	if data == nil {
		data = map[string]any{}
	}
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: force data: %v", domain.ErrValidation, err)
	}

	endpoint := fmt.Sprintf("%s/api/services/%s/%s", cfg.BaseURL,
		url.PathEscape(cfg.ForceDomain), url.PathEscape(cfg.ForceService))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrProviderUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: services/%s/%s returned %d: %s", domain.ErrProviderUnavailable,
			cfg.ForceDomain, cfg.ForceService, resp.StatusCode, snippet(resp.Body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	h.log.InfoContext(ctx, "home assistant force update sent", "domain", cfg.ForceDomain, "service", cfg.ForceService)
	return nil
}

// parseKm turns a sensor state into kilometres. Miles are converted.
func parseKm(state, unit string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(state), 64)
	if err != nil {
		return 0, err
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("implausible reading %v", v)
	}
	if strings.EqualFold(strings.TrimSpace(unit), "mi") {
		v *= 1.609344
	}
	return v, nil
}

// snippet reads at most 200 bytes of an error body for the log message.
func snippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 200))
	return strings.TrimSpace(string(b))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
