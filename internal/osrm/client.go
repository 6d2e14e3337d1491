// Package osrm queries a local OSRM routing server for directed
// point-to-point travel times and distances.
package osrm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dcac/traveltimes/internal/points"
)

const (
	// httpMaxIdleConns is the number of keep-alive connections kept in the
	// transport pool. The client only ever talks to one host (the OSRM
	// server), so per-host and total limits are the same.
	httpMaxIdleConns = 32

	// httpIdleConnTimeout is how long an idle connection is kept before
	// being closed.
	httpIdleConnTimeout = 30 * time.Second
)

// ErrNoRoute means the routing engine answered but found no route between
// the two points. This is a permanent condition for the given coordinates
// and is never retried.
var ErrNoRoute = errors.New("osrm: no route found")

// Leg is a normalized directed route outcome: travel time rounded to whole
// minutes and distance rounded to whole kilometers. The rounding policy is
// part of the output contract and must match the documented CSV format.
type Leg struct {
	Minutes int
	Km      int
}

// Oracle answers a single directed routing query. Implementations must be
// safe for concurrent use.
type Oracle interface {
	Query(ctx context.Context, origin, dest points.Point) (Leg, error)
}

// Client is an Oracle backed by the OSRM HTTP API (route service, driving
// profile). Transient failures — transport errors and 5xx responses — are
// retried with a fixed backoff; "no route" answers are not.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	maxAttempts int
	backoff     time.Duration
}

// NewClient creates a Client for the OSRM server at baseURL
// (e.g. "http://localhost:5000"). timeout bounds each individual request,
// maxAttempts bounds retries per query (minimum 1), and backoff is the
// fixed delay between attempts.
func NewClient(baseURL string, timeout time.Duration, maxAttempts int, backoff time.Duration) *Client {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	transport := &http.Transport{
		MaxIdleConns:        httpMaxIdleConns,
		MaxIdleConnsPerHost: httpMaxIdleConns,
		IdleConnTimeout:     httpIdleConnTimeout,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

// routeResponse is the subset of the OSRM route service response we read.
type routeResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Duration float64 `json:"duration"` // seconds
		Distance float64 `json:"distance"` // meters
	} `json:"routes"`
}

// Query asks OSRM for the best driving route from origin to dest and
// returns it normalized to minutes/kilometers. On exhausted retries the
// last transport error is returned wrapped; a "no route" answer returns
// ErrNoRoute immediately.
func (c *Client) Query(ctx context.Context, origin, dest points.Point) (Leg, error) {
	url := c.routeURL(origin, dest)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return Leg{}, ctx.Err()
			case <-time.After(c.backoff):
			}
		}

		leg, err := c.call(ctx, url)
		if err == nil {
			return leg, nil
		}
		if errors.Is(err, ErrNoRoute) || !isTransient(err) {
			return Leg{}, err
		}
		lastErr = err
	}
	return Leg{}, fmt.Errorf("osrm: %s -> %s: %d attempts exhausted: %w",
		origin.ID, dest.ID, c.maxAttempts, lastErr)
}

// routeURL builds the OSRM route service URL. OSRM takes coordinates as
// lon,lat pairs, the reverse of the usual lat,lon presentation.
func (c *Client) routeURL(origin, dest points.Point) string {
	return fmt.Sprintf("%s/route/v1/driving/%s,%s;%s,%s?overview=false",
		c.baseURL,
		strconv.FormatFloat(origin.Lon, 'f', -1, 64),
		strconv.FormatFloat(origin.Lat, 'f', -1, 64),
		strconv.FormatFloat(dest.Lon, 'f', -1, 64),
		strconv.FormatFloat(dest.Lat, 'f', -1, 64))
}

// transientError marks a failure worth retrying.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

func (c *Client) call(ctx context.Context, url string) (Leg, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Leg{}, fmt.Errorf("osrm: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts, connection resets, refused connections.
		return Leg{}, &transientError{fmt.Errorf("osrm: request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Leg{}, &transientError{fmt.Errorf("osrm: read response: %w", err)}
	}

	if resp.StatusCode >= 500 {
		return Leg{}, &transientError{fmt.Errorf("osrm: server error: status %d", resp.StatusCode)}
	}

	var rr routeResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return Leg{}, fmt.Errorf("osrm: decode response: %w", err)
	}

	// OSRM reports NoRoute when the points cannot be connected. That is
	// permanent for these coordinates, as is an Ok answer with no routes.
	if rr.Code == "NoRoute" || (rr.Code == "Ok" && len(rr.Routes) == 0) {
		return Leg{}, ErrNoRoute
	}
	if rr.Code != "Ok" {
		return Leg{}, fmt.Errorf("osrm: response code %q (status %d)", rr.Code, resp.StatusCode)
	}

	best := rr.Routes[0]
	return Leg{
		Minutes: int(math.Round(best.Duration / 60.0)),
		Km:      int(math.Round(best.Distance / 1000.0)),
	}, nil
}
