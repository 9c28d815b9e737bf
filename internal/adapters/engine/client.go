// Package engine drives the external trip-planning engine: an HTTP
// client for its plan and isochrone APIs and a supervisor for its
// process lifecycle
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"otp4gb/internal/core/geo"
	perr "otp4gb/internal/platform/errors"
	"otp4gb/internal/platform/logger"
)

const (
	baseURLDefault = "http://localhost:8080"
	routerDefault  = "filtered"
	defaultUA      = "otp4gb"
	defaultTimeout = 2 * time.Minute

	planRoute      = "plan"
	isochroneRoute = "otp/traveltime/isochrone"

	// isochrone geometries for large cutoffs run to tens of megabytes
	maxBodyBytes = 64 << 20
)

// Options configures the Client
type Options struct {
	// BaseURL is the engine root, e.g. http://localhost:8080
	BaseURL string
	// RouterID namespaces the routing endpoints (the graph the engine loaded)
	RouterID  string
	UserAgent string
	// Timeout bounds each individual request; retries are the caller's
	Timeout time.Duration
}

// Client encodes requests into the engine's query protocol and decodes
// responses. It carries no retry logic
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
	now  func() time.Time
}

// NewClient creates a Client with sane defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.RouterID == "" {
		o.RouterID = routerDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("engine"),
		now:  time.Now,
	}
}

// BaseURL returns the configured engine root
func (c *Client) BaseURL() string { return c.opts.BaseURL }

// routerURL joins a path under the engine's router namespace
func (c *Client) routerURL(path string) string {
	base := strings.TrimSuffix(c.opts.BaseURL, "/")
	u := base + "/otp/routers/" + c.opts.RouterID + "/"
	return u + path
}

// Ping probes the router status endpoint once. Any non-error HTTP
// response counts as healthy
func (c *Client) Ping(ctx context.Context) error {
	status, _, err := c.get(ctx, c.routerURL(""))
	if err != nil {
		return err
	}
	if e := perr.FromStatus(status, "engine status"); e != nil {
		return e
	}
	return nil
}

// PlanRequest is one trip-planning query
type PlanRequest struct {
	Origin      geo.Point
	Destination geo.Point
	// Time is the zone-aware departure or arrival instant
	Time     time.Time
	Modes    []Mode
	ArriveBy bool
	// SearchWindowSeconds widens the departure search; 0 leaves the
	// engine default
	SearchWindowSeconds int
	// MaxWalkDistanceMeters caps walking per itinerary; 0 leaves the
	// engine default
	MaxWalkDistanceMeters float64
}

// PlanResult carries the decoded response plus the verbatim URL and
// body for raw persistence
type PlanResult struct {
	URL      string
	Raw      []byte
	Response PlanResponse
}

// Plan executes one routing request. An engine error payload such as
// PATH_NOT_FOUND is returned as data in Response.Error, not as a Go
// error; a "temporarily unavailable" payload or an empty body comes
// back as a retryable error
func (c *Client) Plan(ctx context.Context, req PlanRequest) (PlanResult, error) {
	q := url.Values{}
	q.Set("fromPlace", formatLatLon(req.Origin))
	q.Set("toPlace", formatLatLon(req.Destination))
	q.Set("time", req.Time.Format(time.RFC3339))
	q.Set("mode", modesParam(req.Modes))
	q.Set("arriveBy", strconv.FormatBool(req.ArriveBy))
	if req.SearchWindowSeconds > 0 {
		q.Set("searchWindow", strconv.Itoa(req.SearchWindowSeconds))
	}
	if req.MaxWalkDistanceMeters > 0 {
		q.Set("maxWalkDistance", formatFloat(req.MaxWalkDistanceMeters))
	}
	u := c.routerURL(planRoute) + "?" + q.Encode()

	status, body, err := c.get(ctx, u)
	if err != nil {
		return PlanResult{URL: u}, err
	}
	if e := perr.FromStatus(status, "engine plan"); e != nil {
		return PlanResult{URL: u, Raw: body}, e
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return PlanResult{URL: u}, perr.Newf(perr.ErrorCodeUnavailable, "engine returned an empty body, not ready yet")
	}

	var out PlanResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return PlanResult{URL: u, Raw: body}, perr.Wrapf(err, perr.ErrorCodeJSON, "engine plan response decode")
	}
	if out.Error != nil && temporarilyUnavailable(*out.Error) {
		return PlanResult{URL: u, Raw: body}, perr.Newf(perr.ErrorCodeUnavailable, "engine temporarily unavailable: %s", out.Error.Msg)
	}
	return PlanResult{URL: u, Raw: body, Response: out}, nil
}

// IsochroneRequest is one reachability query
type IsochroneRequest struct {
	Location geo.Point
	// Time is the zone-aware departure instant
	Time    time.Time
	Cutoffs []time.Duration
	Modes   []Mode
}

// IsochroneResult carries the decoded feature collection plus the
// verbatim URL and body
type IsochroneResult struct {
	URL      string
	Raw      []byte
	Response IsochroneResponse
}

// Isochrone executes one reachability request against the traveltime
// API, which sits outside the router namespace
func (c *Client) Isochrone(ctx context.Context, req IsochroneRequest) (IsochroneResult, error) {
	q := url.Values{}
	q.Set("location", formatLocation(req.Location))
	q.Set("time", req.Time.Format(time.RFC3339))
	for _, cut := range req.Cutoffs {
		q.Add("cutoff", FormatCutoff(cut))
	}
	q.Set("modes", isochroneModesParam(req.Modes))
	u := strings.TrimSuffix(c.opts.BaseURL, "/") + "/" + isochroneRoute + "?" + q.Encode()

	status, body, err := c.get(ctx, u)
	if err != nil {
		return IsochroneResult{URL: u}, err
	}
	if e := perr.FromStatus(status, "engine isochrone"); e != nil {
		return IsochroneResult{URL: u, Raw: body}, e
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return IsochroneResult{URL: u}, perr.Newf(perr.ErrorCodeUnavailable, "engine returned an empty body, not ready yet")
	}

	var out IsochroneResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return IsochroneResult{URL: u, Raw: body}, perr.Wrapf(err, perr.ErrorCodeJSON, "engine isochrone response decode")
	}
	return IsochroneResult{URL: u, Raw: body, Response: out}, nil
}

// get issues a single request with no retries and returns the status
// and body; transport failures come back coded for retry decisions
func (c *Client) get(ctx context.Context, rawURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "engine new request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := c.now()
	resp, err := c.http.Do(req)
	lat := c.now().Sub(start)
	if err != nil {
		return 0, nil, perr.FromTransport(err, "engine request failed")
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Str("url", rawURL).Msg("engine close body failed")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, perr.FromTransport(err, "engine read body failed")
	}

	c.log.Debug().
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Dur("latency", lat).
		Int("bytes", len(body)).
		Msg("engine http response")
	return resp.StatusCode, body, nil
}

func temporarilyUnavailable(e PlanError) bool {
	s := strings.ToLower(e.Msg + " " + e.Message)
	return strings.Contains(s, "temporarily unavailable")
}

func formatLatLon(p geo.Point) string {
	return formatFloat(p.Lat) + "," + formatFloat(p.Lon)
}

// formatLocation renders the traveltime API's "(lat, lon)" form
func formatLocation(p geo.Point) string {
	return fmt.Sprintf("(%s, %s)", formatFloat(p.Lat), formatFloat(p.Lon))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
