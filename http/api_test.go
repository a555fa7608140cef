package http

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aukilabs/laguz/models"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) (*httptest.Server, *models.IndexStore) {
	var store models.IndexStore
	api := API{
		Indexes:      &store,
		MaxNeighbors: 10,
	}

	var mux http.ServeMux
	api.Register(&mux)

	server := httptest.NewServer(HandleWithCORS(&mux))
	t.Cleanup(server.Close)
	return server, &store
}

func doRequest(t *testing.T, method, url string, body any, res any) int {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, reqBody)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if res != nil && len(b) != 0 {
		require.NoError(t, json.Unmarshal(b, res))
	}
	return resp.StatusCode
}

func createTestIndex(t *testing.T, server *httptest.Server) indexResponse {
	var idx indexResponse
	status := doRequest(t, http.MethodPost, server.URL+"/indexes", createIndexRequest{
		Name: "test",
		MaxX: 100,
		MaxY: 100,
	}, &idx)
	require.Equal(t, http.StatusCreated, status)
	return idx
}

func insertTestPoint(t *testing.T, server *httptest.Server, indexID string, x, y float64, id string) {
	status := doRequest(t, http.MethodPost, server.URL+"/indexes/"+indexID+"/points", map[string]any{
		"x":  x,
		"y":  y,
		"id": id,
	}, nil)
	require.Equal(t, http.StatusCreated, status)
}

func TestAPIIndexes(t *testing.T) {
	server, store := newTestAPI(t)

	t.Run("create an index", func(t *testing.T) {
		idx := createTestIndex(t, server)
		require.NotEmpty(t, idx.ID)
		require.Equal(t, "test", idx.Name)
		require.Equal(t, 100.0, idx.MaxX)
		require.Equal(t, 1, store.Len())
	})

	t.Run("create an index with an invalid domain", func(t *testing.T) {
		var res errorResponse
		status := doRequest(t, http.MethodPost, server.URL+"/indexes", createIndexRequest{
			MinX: 10,
			MaxX: 0,
		}, &res)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "Invalid index domain!", res.Message)
	})

	t.Run("create an index with an invalid body", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/indexes", "application/json", bytes.NewReader([]byte("{")))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("create an index with a too large body", func(t *testing.T) {
		body := `{"name":"` + strings.Repeat("a", maxRequestBodySize) + `","max_x":1,"max_y":1}`
		api := API{Indexes: store}

		w := httptest.NewRecorder()
		api.HandleCreateIndex(w, httptest.NewRequest(http.MethodPost, "/indexes", strings.NewReader(body)))
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, 1, store.Len())
	})

	t.Run("list indexes", func(t *testing.T) {
		var res []indexResponse
		status := doRequest(t, http.MethodGet, server.URL+"/indexes", nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, res, 1)
	})

	t.Run("get an index", func(t *testing.T) {
		id := store.List()[0].ID
		insertTestPoint(t, server, id, 10, 10, "a")

		var res indexResponse
		status := doRequest(t, http.MethodGet, server.URL+"/indexes/"+id, nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, 1, res.Count)
		require.NotNil(t, res.Stats)
		require.Equal(t, 1, res.Stats.Coordinates)
	})

	t.Run("get an unknown index", func(t *testing.T) {
		var res errorResponse
		status := doRequest(t, http.MethodGet, server.URL+"/indexes/unknown", nil, &res)
		require.Equal(t, http.StatusNotFound, status)
		require.Equal(t, "Index not found!", res.Message)
	})

	t.Run("delete an index", func(t *testing.T) {
		id := store.List()[0].ID

		status := doRequest(t, http.MethodDelete, server.URL+"/indexes/"+id, nil, nil)
		require.Equal(t, http.StatusNoContent, status)
		require.Zero(t, store.Len())

		status = doRequest(t, http.MethodDelete, server.URL+"/indexes/"+id, nil, nil)
		require.Equal(t, http.StatusNotFound, status)
	})
}

func TestAPIExtremeDomain(t *testing.T) {
	server, _ := newTestAPI(t)

	var idx indexResponse
	status := doRequest(t, http.MethodPost, server.URL+"/indexes", createIndexRequest{
		MinX: 1e308,
		MinY: 1e308,
		MaxX: 1.7e308,
		MaxY: 1.7e308,
	}, &idx)
	require.Equal(t, http.StatusCreated, status)

	pointsURL := server.URL + "/indexes/" + idx.ID + "/points"
	for _, p := range [][2]float64{{1e308, 1e308}, {1.7e308, 1.7e308}, {1.3e308, 1.5e308}} {
		status := doRequest(t, http.MethodPost, pointsURL, map[string]any{
			"x": p[0],
			"y": p[1],
		}, nil)
		require.Equal(t, http.StatusCreated, status)
	}

	var res placementsResponse
	status = doRequest(t, http.MethodGet, pointsURL, nil, &res)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, res.Points, 3)
}

func TestAPIPoints(t *testing.T) {
	server, _ := newTestAPI(t)
	idx := createTestIndex(t, server)
	pointsURL := server.URL + "/indexes/" + idx.ID + "/points"

	insertTestPoint(t, server, idx.ID, 10, 10, "a")
	insertTestPoint(t, server, idx.ID, 90, 90, "b")
	insertTestPoint(t, server, idx.ID, 10, 20, "c")

	t.Run("insert assigns an id", func(t *testing.T) {
		var res models.Placement
		status := doRequest(t, http.MethodPost, pointsURL, map[string]any{
			"x":     50,
			"y":     50,
			"label": "generated",
		}, &res)
		require.Equal(t, http.StatusCreated, status)
		require.NotEmpty(t, res.Datapoint.ID)
		require.Equal(t, "generated", res.Datapoint.Label)

		doRequest(t, http.MethodDelete, pointsURL+"?x=50&y=50", nil, nil)
	})

	t.Run("insert outside the domain", func(t *testing.T) {
		var res errorResponse
		status := doRequest(t, http.MethodPost, pointsURL, map[string]any{
			"x": 150,
			"y": 10,
		}, &res)
		require.Equal(t, http.StatusUnprocessableEntity, status)
		require.Equal(t, "Coordinate is outside the index domain!", res.Message)
	})

	t.Run("insert without coordinate", func(t *testing.T) {
		var res errorResponse
		status := doRequest(t, http.MethodPost, pointsURL, map[string]any{"x": 1}, &res)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "Missing 'y' field!", res.Message)
	})

	t.Run("lookup", func(t *testing.T) {
		var res valuesResponse
		status := doRequest(t, http.MethodGet, pointsURL+"?x=10&y=10", nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, []models.Datapoint{{ID: "a"}}, res.Values)
	})

	t.Run("lookup outside the domain is empty", func(t *testing.T) {
		var res valuesResponse
		status := doRequest(t, http.MethodGet, pointsURL+"?x=-10&y=10", nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.Empty(t, res.Values)
	})

	t.Run("lookup with a missing parameter", func(t *testing.T) {
		var res errorResponse
		status := doRequest(t, http.MethodGet, pointsURL+"?x=10", nil, &res)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "Missing 'y' query parameter!", res.Message)
	})

	t.Run("lookup with an invalid parameter", func(t *testing.T) {
		var res errorResponse
		status := doRequest(t, http.MethodGet, pointsURL+"?x=ten&y=10", nil, &res)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "Invalid 'x' query parameter!", res.Message)
	})

	t.Run("list points", func(t *testing.T) {
		var res placementsResponse
		status := doRequest(t, http.MethodGet, pointsURL, nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, res.Points, 3)
	})

	t.Run("delete", func(t *testing.T) {
		var res valuesResponse
		status := doRequest(t, http.MethodDelete, pointsURL+"?x=10&y=10", nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, []models.Datapoint{{ID: "a"}}, res.Values)

		status = doRequest(t, http.MethodGet, pointsURL+"?x=10&y=10", nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.Empty(t, res.Values)
	})
}

func TestAPINearest(t *testing.T) {
	server, _ := newTestAPI(t)
	idx := createTestIndex(t, server)
	nearestURL := server.URL + "/indexes/" + idx.ID + "/nearest"

	insertTestPoint(t, server, idx.ID, 10, 10, "a")
	insertTestPoint(t, server, idx.ID, 90, 90, "b")
	insertTestPoint(t, server, idx.ID, 10, 20, "c")

	t.Run("returns the nearest datapoints", func(t *testing.T) {
		var res neighborsResponse
		status := doRequest(t, http.MethodGet, nearestURL+"?x=10&y=10&k=2", nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, []models.Neighbor{
			{X: 10, Y: 10, Distance: 0, Datapoint: models.Datapoint{ID: "a"}},
			{X: 10, Y: 20, Distance: 10, Datapoint: models.Datapoint{ID: "c"}},
		}, res.Neighbors)
	})

	t.Run("zero k returns nothing", func(t *testing.T) {
		var res neighborsResponse
		status := doRequest(t, http.MethodGet, nearestURL+"?x=10&y=10&k=0", nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.Empty(t, res.Neighbors)
	})

	t.Run("k over the maximum", func(t *testing.T) {
		var res errorResponse
		status := doRequest(t, http.MethodGet, nearestURL+"?x=10&y=10&k=11", nil, &res)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "Invalid 'k' query parameter!", res.Message)
	})

	t.Run("missing k", func(t *testing.T) {
		var res errorResponse
		status := doRequest(t, http.MethodGet, nearestURL+"?x=10&y=10", nil, &res)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "Missing 'k' query parameter!", res.Message)
	})

	t.Run("screen coordinates are mapped to the domain", func(t *testing.T) {
		var res neighborsResponse
		status := doRequest(t, http.MethodGet, nearestURL+"?x=100&y=780&k=1&scale=4&offset_x=60&offset_y=800&flip_y=true", nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.InDelta(t, 10, res.X, 1e-9)
		require.InDelta(t, 5, res.Y, 1e-9)
		require.Len(t, res.Neighbors, 1)
		require.Equal(t, "a", res.Neighbors[0].Datapoint.ID)
	})

	t.Run("zero scale viewport", func(t *testing.T) {
		var res errorResponse
		status := doRequest(t, http.MethodGet, nearestURL+"?x=1&y=1&k=1&scale=0", nil, &res)
		require.Equal(t, http.StatusUnprocessableEntity, status)
		require.Equal(t, "Viewport cannot be inverted!", res.Message)
	})
}

func TestHandleWithCORS(t *testing.T) {
	h := HandleWithCORS(http.HandlerFunc(HandleHealthCheck))

	t.Run("preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/health", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
		require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("request", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestHandleVersion(t *testing.T) {
	w := httptest.NewRecorder()
	HandleVersion("v1.2.3")(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "v1.2.3", w.Body.String())
}

func TestHandleReadyCheck(t *testing.T) {
	ready := false
	h := HandleReadyCheck(func() bool { return ready })

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	ready = true
	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsPathFormatter(t *testing.T) {
	require.Empty(t, MetricsPathFormatter(http.StatusNotFound, "/indexes/abc"))
	require.Equal(t, "/indexes", MetricsPathFormatter(http.StatusOK, "/indexes"))
	require.Equal(t, "/indexes/{id}/nearest", MetricsPathFormatter(http.StatusOK, "/indexes/abc/nearest"))
	require.Equal(t, "/health", MetricsPathFormatter(http.StatusOK, "/health"))
}
