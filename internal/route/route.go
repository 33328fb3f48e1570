// Package route orders the stores of a combo into a trip and estimates its
// length and duration. Without a routing provider it uses a nearest-neighbour
// heuristic over straight-line distances; with one, any provider failure
// degrades to the same heuristic.
package route

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/notapoint/backend/internal/geo"
	"github.com/notapoint/backend/internal/models"
)

const (
	// MethodHeuristic marks routes built from straight-line distances.
	MethodHeuristic = "heuristic"

	DefaultDriveSpeedKmh = 30.0
	DefaultWalkSpeedKmh  = 5.0
	DefaultTimeout       = 2 * time.Second
)

// Stop is one store on the route with cumulative figures up to it.
type Stop struct {
	Store        models.Store
	LegKm        float64
	CumulativeKm float64
	DriveMinutes float64
	WalkMinutes  float64
}

// Route is an ordered visit of stores. All figures are estimates.
type Route struct {
	Stops        []Stop
	TotalKm      float64
	DriveMinutes float64
	WalkMinutes  float64
	// Method is MethodHeuristic or the name of the provider used.
	Method string
}

// Matrix holds pairwise figures between points; index 0 is the origin when
// one was given.
type Matrix struct {
	DistancesKm [][]float64
	// DriveMinutes is optional; nil means derive from distance and speed.
	DriveMinutes [][]float64
}

// DistanceProvider is a routing backend that knows road distances.
type DistanceProvider interface {
	Name() string
	Matrix(ctx context.Context, points []models.GeoPoint) (*Matrix, error)
}

// Config holds the speed constants and provider settings.
type Config struct {
	DriveSpeedKmh float64
	WalkSpeedKmh  float64
	// Timeout bounds a provider call.
	Timeout time.Duration
}

// Estimator plans routes. It is safe for concurrent use.
type Estimator struct {
	cfg      Config
	provider DistanceProvider
}

// NewEstimator creates an estimator. provider may be nil.
func NewEstimator(cfg Config, provider DistanceProvider) *Estimator {
	if cfg.DriveSpeedKmh <= 0 {
		cfg.DriveSpeedKmh = DefaultDriveSpeedKmh
	}
	if cfg.WalkSpeedKmh <= 0 {
		cfg.WalkSpeedKmh = DefaultWalkSpeedKmh
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Estimator{cfg: cfg, provider: provider}
}

// Plan orders stores into a route starting at origin. Without an origin the
// route starts at the store with the lowest ID. Plan never fails: a missing
// or failing provider falls back to the heuristic.
func (e *Estimator) Plan(ctx context.Context, origin *models.GeoPoint, stores []models.Store) Route {
	if len(stores) == 0 {
		return Route{Method: MethodHeuristic}
	}

	sorted := slices.Clone(stores)
	slices.SortFunc(sorted, func(a, b models.Store) int { return cmp.Compare(a.ID, b.ID) })
	points := routePoints(origin, sorted)

	if e.provider != nil && len(points) > 1 {
		pctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		m, err := e.provider.Matrix(pctx, points)
		cancel()
		if err == nil && validMatrix(m, len(points)) {
			return e.walk(origin != nil, sorted, m, e.provider.Name())
		}
		slog.Warn("Route provider unavailable, using heuristic",
			"provider", e.provider.Name(),
			"stores", len(sorted),
			"error", err,
		)
	}

	return e.walk(origin != nil, sorted, straightLine(points), MethodHeuristic)
}

// TravelKm is the heuristic trip length for stores from origin. It never
// calls the provider, so it is cheap enough to score combo candidates.
func (e *Estimator) TravelKm(origin *models.GeoPoint, stores []models.Store) float64 {
	sorted := slices.Clone(stores)
	slices.SortFunc(sorted, func(a, b models.Store) int { return cmp.Compare(a.ID, b.ID) })
	return e.walk(origin != nil, sorted, straightLine(routePoints(origin, sorted)), MethodHeuristic).TotalKm
}

func routePoints(origin *models.GeoPoint, stores []models.Store) []models.GeoPoint {
	points := make([]models.GeoPoint, 0, len(stores)+1)
	if origin != nil {
		points = append(points, *origin)
	}
	for _, st := range stores {
		points = append(points, st.Location)
	}
	return points
}

func straightLine(points []models.GeoPoint) *Matrix {
	m := &Matrix{DistancesKm: make([][]float64, len(points))}
	for i := range points {
		m.DistancesKm[i] = make([]float64, len(points))
		for j := range points {
			if i != j {
				m.DistancesKm[i][j] = geo.DistanceKm(points[i], points[j])
			}
		}
	}
	return m
}

func validMatrix(m *Matrix, n int) bool {
	if m == nil || len(m.DistancesKm) != n {
		return false
	}
	for _, row := range m.DistancesKm {
		if len(row) != n {
			return false
		}
	}
	if m.DriveMinutes != nil {
		if len(m.DriveMinutes) != n {
			return false
		}
		for _, row := range m.DriveMinutes {
			if len(row) != n {
				return false
			}
		}
	}
	return true
}

// walk runs nearest neighbour over m. stores must be sorted by ID so index
// order breaks distance ties deterministically.
func (e *Estimator) walk(hasOrigin bool, stores []models.Store, m *Matrix, method string) Route {
	offset := 0
	if hasOrigin {
		offset = 1
	}

	r := Route{Method: method}
	visited := make([]bool, len(stores))
	current := -1 // index into m; -1 until the first stop without origin
	if hasOrigin {
		current = 0
	}

	for range stores {
		next := -1
		if current < 0 {
			next = 0
		} else {
			for s := range stores {
				if visited[s] {
					continue
				}
				if next < 0 || m.DistancesKm[current][s+offset] < m.DistancesKm[current][next+offset] {
					next = s
				}
			}
		}

		var legKm, legDrive float64
		if current >= 0 {
			legKm = m.DistancesKm[current][next+offset]
			if m.DriveMinutes != nil {
				legDrive = m.DriveMinutes[current][next+offset]
			} else {
				legDrive = minutes(legKm, e.cfg.DriveSpeedKmh)
			}
		}

		visited[next] = true
		current = next + offset

		r.TotalKm += legKm
		r.DriveMinutes += legDrive
		r.WalkMinutes += minutes(legKm, e.cfg.WalkSpeedKmh)
		r.Stops = append(r.Stops, Stop{
			Store:        stores[next],
			LegKm:        legKm,
			CumulativeKm: r.TotalKm,
			DriveMinutes: r.DriveMinutes,
			WalkMinutes:  r.WalkMinutes,
		})
	}
	return r
}

func minutes(km, speedKmh float64) float64 {
	return km / speedKmh * 60
}
