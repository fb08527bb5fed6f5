package ors

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.openrouteservice.org"
	DefaultProfile = "driving-car"

	// Recorded on every optimization run served by the ORS VRP endpoint.
	AlgorithmID = "ors-vroom-v1"

	maxResponseBytes = 4 << 20
)

// Client talks to OpenRouteService for free-text geocoding and VRP solving.
//
// The API key is not part of the client: every call receives the resolved
// credential, so one client serves both personal and shared quotas.
// The client is safe for concurrent use.
type Client struct {
	session     *http.Client
	baseURL     string
	profile     string
	country     string
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger

	// Every HTTP attempt, retries included, passes through these.
	geocodePace pacer
	solvePace   pacer
}

type Options struct {
	BaseURL string
	Profile string
	// Optional ISO country restricting geocoding results.
	Country     string
	Timeout     time.Duration
	MaxAttempts int
	// Idle time kept between the end of one geocode attempt and the start
	// of the next. Zero disables geocode throttling.
	GeocodeInterval time.Duration
	// Minimum spacing between optimization attempts. Zero disables it.
	SolveInterval time.Duration
	Logger        *slog.Logger
}

func NewClient(opts Options) *Client {
	c := &Client{
		session:     &http.Client{Timeout: opts.Timeout},
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		profile:     opts.Profile,
		country:     opts.Country,
		maxAttempts: opts.MaxAttempts,
		backoff:     200 * time.Millisecond,
		logger:      opts.Logger,
		geocodePace: NewThrottle(opts.GeocodeInterval),
		solvePace:   newLimiterPacer(opts.SolveInterval),
	}

	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.profile == "" {
		c.profile = DefaultProfile
	}
	if c.session.Timeout <= 0 {
		c.session.Timeout = 12 * time.Second
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// Algorithm identifies the solver integration on the run audit log.
func (c *Client) Algorithm() string { return AlgorithmID }
