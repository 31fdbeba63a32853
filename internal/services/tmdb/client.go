package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amaumene/cinemaprompt/internal/config"
	"github.com/amaumene/cinemaprompt/internal/metrics"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
)

// searchResponse is the subset of /search/movie we use
type searchResponse struct {
	Results []struct {
		ID         int    `json:"id"`
		Title      string `json:"title"`
		PosterPath string `json:"poster_path"`
	} `json:"results"`
}

// DefaultTimeout bounds a request when no timeout is configured
const DefaultTimeout = 10 * time.Second

// Client resolves movie posters through the TMDB search API
type Client struct {
	apiKey       string
	baseURL      string
	imageBaseURL string
	httpClient   *http.Client
	cache        *cache.Cache
	logger       *logrus.Logger
}

// NewClient creates a new TMDB client. Without an API key the client is
// disabled and every lookup reports no poster.
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	ttl := time.Duration(cfg.PosterCacheMinutes) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}

	timeout := time.Duration(cfg.TMDBTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if cfg.TMDBAPIKey == "" {
		logger.Warn("TMDB_API_KEY not set, poster lookups disabled")
	}

	return &Client{
		apiKey:       cfg.TMDBAPIKey,
		baseURL:      strings.TrimRight(cfg.TMDBBaseURL, "/"),
		imageBaseURL: strings.TrimRight(cfg.TMDBImageBaseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		cache:        cache.New(ttl, 2*ttl),
		logger:       logger,
	}
}

// ResolvePoster returns the poster URL of the first search result for title.
// Any failure is reported as "no poster": lookups never surface errors.
func (c *Client) ResolvePoster(ctx context.Context, title string) (string, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", false
	}
	if c.apiKey == "" {
		metrics.PosterLookups.WithLabelValues("disabled").Inc()
		return "", false
	}

	key := cacheKey(title)
	if cached, ok := c.cache.Get(key); ok {
		metrics.PosterLookups.WithLabelValues("cached").Inc()
		posterURL := cached.(string)
		return posterURL, posterURL != ""
	}

	resp, err := c.search(ctx, title)
	if err != nil {
		// Not cached: a transport failure may succeed on the next refresh
		metrics.PosterLookups.WithLabelValues("error").Inc()
		c.logger.WithError(err).WithField("title", title).Debug("Poster lookup failed")
		return "", false
	}

	posterURL := ""
	if len(resp.Results) > 0 && resp.Results[0].PosterPath != "" {
		posterURL = c.imageBaseURL + "/" + strings.TrimLeft(resp.Results[0].PosterPath, "/")
	}
	c.cache.SetDefault(key, posterURL)

	if posterURL == "" {
		metrics.PosterLookups.WithLabelValues("not_found").Inc()
		c.logger.WithField("title", title).Debug("No poster found")
		return "", false
	}

	metrics.PosterLookups.WithLabelValues("found").Inc()
	c.logger.WithFields(logrus.Fields{
		"title":  title,
		"poster": posterURL,
	}).Debug("Poster resolved")
	return posterURL, true
}

// search performs GET /search/movie?query=<title>
func (c *Client) search(ctx context.Context, title string) (*searchResponse, error) {
	apiURL, err := url.Parse(c.baseURL + "/search/movie")
	if err != nil {
		return nil, fmt.Errorf("invalid TMDB URL: %w", err)
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("query", title)
	apiURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "cinemaprompt/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("TMDB request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("TMDB returned status %d: %s", resp.StatusCode, string(body))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// cacheKey folds case so "Dune" and "DUNE" share one lookup
func cacheKey(title string) string {
	return cases.Fold().String(strings.Join(strings.Fields(title), " "))
}
