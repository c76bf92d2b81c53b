package nhl

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://api-web.nhle.com/v1"
	DefaultTimeout = 15 * time.Second
)

// Failure taxonomy for feed fetches. Callers branch with errors.Is.
var (
	ErrTimeout    = errors.New("nhl: request timed out")
	ErrStatus     = errors.New("nhl: unexpected status")
	ErrTransport  = errors.New("nhl: transport failure")
	ErrMissingKey = errors.New("nhl: missing key")
	ErrDecode     = errors.New("nhl: malformed response body")
)

// StatusError is returned for any non-200 response
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("nhl: %s returned status %d", e.URL, e.Code)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// Config configures the feed client
type Config struct {
	BaseURL string
	Timeout time.Duration
	// DebugDir receives a copy of every raw schedule payload when set
	DebugDir string
}

// Client fetches the public NHL web API
type Client struct {
	baseURL  string
	http     *http.Client
	debugDir string
	logger   *logrus.Logger
}

// NewClient creates a feed client; zero config fields fall back to defaults
func NewClient(cfg Config, logger *logrus.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		baseURL:  cfg.BaseURL,
		http:     NewHTTPClient(cfg.Timeout, logger),
		debugDir: cfg.DebugDir,
		logger:   logger,
	}
}

// NewHTTPClient builds an http.Client with a request timeout and gzip handling
func NewHTTPClient(timeout time.Duration, logger *logrus.Logger) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &compressedTransport{transport: transport, logger: logger},
	}
}

type compressedTransport struct {
	transport http.RoundTripper
	logger    *logrus.Logger
}

func (c *compressedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := c.transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			c.logger.WithError(err).Warn("gzip decode failed, returning raw body")
			return resp, nil
		}
		resp.Body = &gzipReadCloser{Reader: gzReader, closer: resp.Body}
		resp.Header.Del("Content-Encoding")
	}

	return resp, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	closer io.ReadCloser
}

func (g *gzipReadCloser) Close() error {
	if err := g.Reader.Close(); err != nil {
		g.closer.Close()
		return err
	}
	return g.closer.Close()
}

// FetchSchedule fetches the schedule document for the week containing date (YYYY-MM-DD)
func (c *Client) FetchSchedule(ctx context.Context, date string) (map[string]interface{}, error) {
	url := fmt.Sprintf("%s/schedule/%s", c.baseURL, date)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	c.writeDebugFile("schedule_"+date+".json", body)

	return decode(url, body)
}

// FetchStandings fetches the current league standings document
func (c *Client) FetchStandings(ctx context.Context) (map[string]interface{}, error) {
	url := c.baseURL + "/standings/now"

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	return decode(url, body)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	log := c.logger.WithField("url", url)
	log.Debug("Fetching feed")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			log.WithError(err).Error("Feed request timed out")
			return nil, fmt.Errorf("%w: %s: %v", ErrTimeout, url, err)
		}
		log.WithError(err).Error("Feed request failed")
		return nil, fmt.Errorf("%w: %s: %v", ErrTransport, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Error("Feed returned non-200 status")
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrTimeout, url, err)
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrTransport, url, err)
	}
	return body, nil
}

func decode(url string, body []byte) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, url, err)
	}
	return doc, nil
}

func (c *Client) writeDebugFile(name string, body []byte) {
	if c.debugDir == "" {
		return
	}
	if err := os.MkdirAll(c.debugDir, 0o755); err != nil {
		c.logger.WithError(err).Warn("Could not create debug directory")
		return
	}
	path := filepath.Join(c.debugDir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		c.logger.WithError(err).WithField("path", path).Warn("Could not write debug payload")
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
