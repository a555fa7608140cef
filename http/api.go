package http

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/laguz/models"
	"github.com/aukilabs/laguz/quadtree"
	"github.com/aukilabs/laguz/transform"
	"github.com/segmentio/encoding/json"
)

const (
	defaultMaxNeighbors = 1000
	maxRequestBodySize  = 1 << 20
)

// API serves the indexes of a store as JSON over HTTP.
type API struct {
	// The indexes exposed by the API.
	Indexes *models.IndexStore

	// The maximum k accepted by nearest neighbors queries. Defaults to 1000.
	MaxNeighbors int
}

// Register adds the API routes to the given mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /indexes", a.HandleCreateIndex)
	mux.HandleFunc("GET /indexes", a.HandleListIndexes)
	mux.HandleFunc("GET /indexes/{id}", a.HandleGetIndex)
	mux.HandleFunc("DELETE /indexes/{id}", a.HandleDeleteIndex)
	mux.HandleFunc("POST /indexes/{id}/points", a.HandleInsertPoint)
	mux.HandleFunc("GET /indexes/{id}/points", a.HandleLookupPoints)
	mux.HandleFunc("DELETE /indexes/{id}/points", a.HandleDeletePoints)
	mux.HandleFunc("GET /indexes/{id}/nearest", a.HandleNearest)
}

type createIndexRequest struct {
	Name string  `json:"name"`
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

type indexResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	MinX      float64         `json:"min_x"`
	MinY      float64         `json:"min_y"`
	MaxX      float64         `json:"max_x"`
	MaxY      float64         `json:"max_y"`
	Count     int             `json:"count"`
	CreatedAt time.Time       `json:"created_at"`
	Stats     *quadtree.Stats `json:"stats,omitempty"`
}

func newIndexResponse(idx *models.Index, withStats bool) indexResponse {
	d := idx.Domain()

	res := indexResponse{
		ID:        idx.ID,
		Name:      idx.Name,
		MinX:      d.MinX,
		MinY:      d.MinY,
		MaxX:      d.MaxX,
		MaxY:      d.MaxY,
		Count:     idx.Count(),
		CreatedAt: idx.CreatedAt,
	}

	if withStats {
		stats := idx.Stats()
		res.Stats = &stats
	}
	return res
}

type insertPointRequest struct {
	X     *float64 `json:"x"`
	Y     *float64 `json:"y"`
	ID    string   `json:"id"`
	Label string   `json:"label"`
}

type valuesResponse struct {
	Values []models.Datapoint `json:"values"`
}

type placementsResponse struct {
	Points []models.Placement `json:"points"`
}

type neighborsResponse struct {
	X         float64           `json:"x"`
	Y         float64           `json:"y"`
	Neighbors []models.Neighbor `json:"neighbors"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func (a *API) HandleCreateIndex(w http.ResponseWriter, r *http.Request) {
	var req createIndexRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body!")
		return
	}

	idx, err := a.Indexes.Create(req.Name, quadtree.Domain{
		MinX: req.MinX,
		MinY: req.MinY,
		MaxX: req.MaxX,
		MaxY: req.MaxY,
	})
	if errors.IsType(err, quadtree.ErrTypeInvalidDomain) {
		writeError(w, http.StatusBadRequest, "Invalid index domain!")
		return
	}
	if err != nil {
		logs.Warn(errors.New("creating index failed").Wrap(err))
		writeError(w, http.StatusInternalServerError, "Creating index failed!")
		return
	}

	logs.WithTag("index_id", idx.ID).
		WithTag("name", idx.Name).
		WithTag("domain", idx.Domain()).
		Info("index created")

	writeJSON(w, http.StatusCreated, newIndexResponse(idx, false))
}

func (a *API) HandleListIndexes(w http.ResponseWriter, r *http.Request) {
	indexes := a.Indexes.List()

	res := make([]indexResponse, len(indexes))
	for i, idx := range indexes {
		res[i] = newIndexResponse(idx, false)
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) HandleGetIndex(w http.ResponseWriter, r *http.Request) {
	idx, ok := a.index(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newIndexResponse(idx, true))
}

func (a *API) HandleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.Indexes.Remove(id); err != nil {
		writeError(w, http.StatusNotFound, "Index not found!")
		return
	}

	logs.WithTag("index_id", id).Info("index deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) HandleInsertPoint(w http.ResponseWriter, r *http.Request) {
	idx, ok := a.index(w, r)
	if !ok {
		return
	}

	var req insertPointRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body!")
		return
	}
	if req.X == nil {
		writeError(w, http.StatusBadRequest, "Missing 'x' field!")
		return
	}
	if req.Y == nil {
		writeError(w, http.StatusBadRequest, "Missing 'y' field!")
		return
	}

	dp, err := idx.Insert(*req.X, *req.Y, models.Datapoint{
		ID:    req.ID,
		Label: req.Label,
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Coordinate is outside the index domain!")
		return
	}

	writeJSON(w, http.StatusCreated, models.Placement{
		X:         *req.X,
		Y:         *req.Y,
		Datapoint: dp,
	})
}

func (a *API) HandleLookupPoints(w http.ResponseWriter, r *http.Request) {
	idx, ok := a.index(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	if !query.Has("x") && !query.Has("y") {
		points := idx.Placements()
		if points == nil {
			points = []models.Placement{}
		}
		writeJSON(w, http.StatusOK, placementsResponse{Points: points})
		return
	}

	x, y, ok := readCoordinate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newValuesResponse(idx.Lookup(x, y)))
}

func (a *API) HandleDeletePoints(w http.ResponseWriter, r *http.Request) {
	idx, ok := a.index(w, r)
	if !ok {
		return
	}

	x, y, ok := readCoordinate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newValuesResponse(idx.Delete(x, y)))
}

// HandleNearest returns the k nearest datapoints of a coordinate. The
// coordinate is a screen coordinate when a viewport scale is given.
func (a *API) HandleNearest(w http.ResponseWriter, r *http.Request) {
	idx, ok := a.index(w, r)
	if !ok {
		return
	}

	x, y, ok := readCoordinate(w, r)
	if !ok {
		return
	}

	k, err := readRequiredQueryParameter(r, "k", strconv.Atoi)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if k < 0 || k > a.maxNeighbors() {
		writeError(w, http.StatusBadRequest, "Invalid 'k' query parameter!")
		return
	}

	if r.URL.Query().Has("scale") {
		viewport, err := readViewport(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		p, err := viewport.ToDomain(x, y)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "Viewport cannot be inverted!")
			return
		}
		x, y = p.X, p.Y
	}

	writeJSON(w, http.StatusOK, neighborsResponse{
		X:         x,
		Y:         y,
		Neighbors: idx.Nearest(x, y, k),
	})
}

func (a *API) index(w http.ResponseWriter, r *http.Request) (*models.Index, bool) {
	idx, ok := a.Indexes.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Index not found!")
	}
	return idx, ok
}

func (a *API) maxNeighbors() int {
	if a.MaxNeighbors <= 0 {
		return defaultMaxNeighbors
	}
	return a.MaxNeighbors
}

func newValuesResponse(values []models.Datapoint) valuesResponse {
	if values == nil {
		values = []models.Datapoint{}
	}
	return valuesResponse{Values: values}
}

func readCoordinate(w http.ResponseWriter, r *http.Request) (float64, float64, bool) {
	x, err := readRequiredQueryParameter(r, "x", parseFloat)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}

	y, err := readRequiredQueryParameter(r, "y", parseFloat)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return x, y, true
}

func readViewport(r *http.Request) (transform.Viewport, error) {
	var v transform.Viewport
	var err error

	if v.Scale, err = readRequiredQueryParameter(r, "scale", parseFloat); err != nil {
		return v, err
	}
	if v.OffsetX, err = readOptionalQueryParameter(r, "offset_x", parseFloat); err != nil {
		return v, err
	}
	if v.OffsetY, err = readOptionalQueryParameter(r, "offset_y", parseFloat); err != nil {
		return v, err
	}
	if v.FlipY, err = readOptionalQueryParameter(r, "flip_y", strconv.ParseBool); err != nil {
		return v, err
	}
	return v, nil
}

// parseFloat parses a finite float.
func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrRange
	}
	return v, nil
}

// queryParameterError describes a missing or malformed query parameter. Its
// message is returned as is to clients.
type queryParameterError struct {
	key     string
	missing bool
}

func (e queryParameterError) Error() string {
	if e.missing {
		return fmt.Sprintf("Missing '%s' query parameter!", e.key)
	}
	return fmt.Sprintf("Invalid '%s' query parameter!", e.key)
}

func readRequiredQueryParameter[T any](r *http.Request, key string, parse func(string) (T, error)) (T, error) {
	var zero T

	if !r.URL.Query().Has(key) {
		return zero, queryParameterError{key: key, missing: true}
	}
	return readOptionalQueryParameter(r, key, parse)
}

func readOptionalQueryParameter[T any](r *http.Request, key string, parse func(string) (T, error)) (T, error) {
	var zero T

	query := r.URL.Query()
	if !query.Has(key) {
		return zero, nil
	}

	v, err := parse(query.Get(key))
	if err != nil {
		return zero, queryParameterError{key: key}
	}
	return v, nil
}

// readJSON decodes a request body of at most maxRequestBodySize bytes.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err != nil {
		return errors.New("reading body failed").Wrap(err)
	}

	if err := json.Unmarshal(b, v); err != nil {
		return errors.New("decoding body failed").Wrap(err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Warn(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}
