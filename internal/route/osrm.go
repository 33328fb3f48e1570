package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/notapoint/backend/internal/models"
)

// ErrProviderFailure wraps every error returned by a routing backend.
var ErrProviderFailure = errors.New("route provider request failed")

// OSRMClient queries the table service of an OSRM server for road distances
// and driving times.
type OSRMClient struct {
	httpClient  *http.Client
	baseURL     string
	profile     string
	rateLimiter *rate.Limiter
}

// NewOSRMClient creates a client for baseURL (e.g. "http://localhost:5000").
// requestsPerSecond throttles calls; public OSRM demo servers allow about one.
func NewOSRMClient(baseURL string, requestsPerSecond float64) *OSRMClient {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &OSRMClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:     strings.TrimRight(baseURL, "/"),
		profile:     "driving",
		rateLimiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 5),
	}
}

// Name identifies the provider in routes and logs.
func (c *OSRMClient) Name() string { return "osrm" }

type osrmTableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Durations [][]*float64 `json:"durations"` // seconds
	Distances [][]*float64 `json:"distances"` // meters
}

// Matrix fetches the distance and duration table between all points.
func (c *OSRMClient) Matrix(ctx context.Context, points []models.GeoPoint) (*Matrix, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	coords := make([]string, len(points))
	for i, p := range points {
		coords[i] = strconv.FormatFloat(p.Lng, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
	}
	reqURL := fmt.Sprintf("%s/table/v1/%s/%s?annotations=duration,distance",
		c.baseURL, c.profile, strings.Join(coords, ";"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "NotaPoint/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrProviderFailure, resp.StatusCode, string(body))
	}

	var table osrmTableResponse
	if err := json.NewDecoder(resp.Body).Decode(&table); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if table.Code != "Ok" {
		return nil, fmt.Errorf("%w: %s %s", ErrProviderFailure, table.Code, table.Message)
	}

	distances, err := convertTable(table.Distances, len(points), 1.0/1000)
	if err != nil {
		return nil, err
	}
	durations, err := convertTable(table.Durations, len(points), 1.0/60)
	if err != nil {
		return nil, err
	}
	return &Matrix{DistancesKm: distances, DriveMinutes: durations}, nil
}

// convertTable scales a table and rejects unreachable (null) cells.
func convertTable(table [][]*float64, n int, scale float64) ([][]float64, error) {
	if len(table) != n {
		return nil, fmt.Errorf("%w: expected %d rows, got %d", ErrProviderFailure, n, len(table))
	}
	out := make([][]float64, n)
	for i, row := range table {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d columns", ErrProviderFailure, i, len(row))
		}
		out[i] = make([]float64, n)
		for j, cell := range row {
			if cell == nil {
				return nil, fmt.Errorf("%w: no route between points %d and %d", ErrProviderFailure, i, j)
			}
			out[i][j] = *cell * scale
		}
	}
	return out, nil
}
