package smoketest

import (
	"context"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/laguz/models"
	"github.com/aukilabs/laguz/quadtree"
	lwebsocket "github.com/aukilabs/laguz/websocket"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeSmokeTestFailed = "smoke_test_failed"

	defaultTimeout = time.Second * 10
)

type Options struct {
	// The realtime endpoint to test. eg: ws://localhost:4000/realtime.
	Endpoint string

	// The origin sent during the WebSocket handshake.
	Origin string

	UserAgent string

	// The store where the temporary smoke test index is created.
	Indexes *models.IndexStore

	// The maximum duration of a smoke test. Defaults to 10s.
	Timeout time.Duration
}

// Results describes the outcome of a smoke test.
type Results struct {
	Endpoint string       `json:"endpoint"`
	Success  bool         `json:"success"`
	Error    string       `json:"error,omitempty"`
	Steps    []StepResult `json:"steps"`
}

type StepResult struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Run creates a temporary index and queries it through the realtime endpoint.
func Run(ctx context.Context, opts Options) (Results, error) {
	res := Results{Endpoint: opts.Endpoint}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	idx, err := opts.Indexes.Create("smoke-test-"+uuid.NewString(), quadtree.Domain{
		MaxX: 100,
		MaxY: 100,
	})
	if err != nil {
		return res, res.fail(errors.New("creating smoke test index failed").Wrap(err))
	}
	defer opts.Indexes.Remove(idx.ID)

	conn, err := dial(opts)
	if err != nil {
		return res, res.fail(err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	steps := []struct {
		name  string
		req   lwebsocket.Msg
		check func(lwebsocket.Msg) error
	}{
		{
			name: "ping",
			req:  lwebsocket.Msg{Type: lwebsocket.MsgTypePingRequest},
			check: func(msg lwebsocket.Msg) error {
				return expectType(msg, lwebsocket.MsgTypePingResponse)
			},
		},
		{
			name: "insert",
			req: lwebsocket.Msg{
				Type:      lwebsocket.MsgTypeInsertRequest,
				IndexID:   idx.ID,
				X:         lwebsocket.Coordinate(50),
				Y:         lwebsocket.Coordinate(50),
				Datapoint: &models.Datapoint{ID: "smoke-test"},
			},
			check: func(msg lwebsocket.Msg) error {
				return expectType(msg, lwebsocket.MsgTypeInsertResponse)
			},
		},
		{
			name: "lookup",
			req: lwebsocket.Msg{
				Type:    lwebsocket.MsgTypeLookupRequest,
				IndexID: idx.ID,
				X:       lwebsocket.Coordinate(50),
				Y:       lwebsocket.Coordinate(50),
			},
			check: func(msg lwebsocket.Msg) error {
				if err := expectType(msg, lwebsocket.MsgTypeLookupResponse); err != nil {
					return err
				}
				return expectCount(len(msg.Values), 1)
			},
		},
		{
			name: "nearest",
			req: lwebsocket.Msg{
				Type:    lwebsocket.MsgTypeNearestRequest,
				IndexID: idx.ID,
				X:       lwebsocket.Coordinate(10),
				Y:       lwebsocket.Coordinate(10),
				K:       1,
			},
			check: func(msg lwebsocket.Msg) error {
				if err := expectType(msg, lwebsocket.MsgTypeNearestResponse); err != nil {
					return err
				}
				return expectCount(len(msg.Neighbors), 1)
			},
		},
		{
			name: "delete",
			req: lwebsocket.Msg{
				Type:    lwebsocket.MsgTypeDeleteRequest,
				IndexID: idx.ID,
				X:       lwebsocket.Coordinate(50),
				Y:       lwebsocket.Coordinate(50),
			},
			check: func(msg lwebsocket.Msg) error {
				if err := expectType(msg, lwebsocket.MsgTypeDeleteResponse); err != nil {
					return err
				}
				return expectCount(len(msg.Values), 1)
			},
		},
	}

	for i, s := range steps {
		start := time.Now()

		s.req.RequestID = uint32(i + 1)
		msg, err := roundTrip(conn, s.req)
		if err == nil && msg.RequestID != s.req.RequestID {
			err = errors.New("unexpected request id").
				WithTag("expected", s.req.RequestID).
				WithTag("received", msg.RequestID)
		}
		if err == nil {
			err = s.check(msg)
		}
		if err != nil {
			return res, res.fail(errors.New("smoke test step failed").
				WithTag("step", s.name).
				Wrap(err))
		}

		res.Steps = append(res.Steps, StepResult{
			Name:     s.name,
			Duration: time.Since(start),
		})
	}

	res.Success = true
	return res, nil
}

// HandleSmokeTest runs a smoke test and responds with its results.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := Run(ctx, opts)
		if err != nil {
			logs.WithTag("endpoint", opts.Endpoint).Warn(err)
		}

		b, err := json.Marshal(res)
		if err != nil {
			logs.Warn(errors.New("encoding smoke test results failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		status := http.StatusOK
		if !res.Success {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(b)
	}
}

func (r *Results) fail(err error) error {
	r.Success = false
	r.Error = err.Error()
	return err
}

func dial(opts Options) (*websocket.Conn, error) {
	origin := opts.Origin
	if origin == "" {
		origin = "http://localhost"
	}

	config, err := websocket.NewConfig(opts.Endpoint, origin)
	if err != nil {
		return nil, errors.New("creating websocket config failed").
			WithTag("endpoint", opts.Endpoint).
			Wrap(err)
	}
	if opts.UserAgent != "" {
		config.Header.Set("User-Agent", opts.UserAgent)
	}
	config.Header.Set(lwebsocket.HeaderClientID, "smoke-test")

	conn, err := websocket.DialConfig(config)
	if err != nil {
		return nil, errors.New("dialing realtime endpoint failed").
			WithTag("endpoint", opts.Endpoint).
			Wrap(err)
	}
	return conn, nil
}

func roundTrip(conn *websocket.Conn, req lwebsocket.Msg) (lwebsocket.Msg, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return lwebsocket.Msg{}, errors.New("encoding request failed").Wrap(err)
	}
	if err := websocket.Message.Send(conn, string(b)); err != nil {
		return lwebsocket.Msg{}, errors.New("sending request failed").Wrap(err)
	}

	var data []byte
	if err := websocket.Message.Receive(conn, &data); err != nil {
		return lwebsocket.Msg{}, errors.New("receiving response failed").Wrap(err)
	}

	var msg lwebsocket.Msg
	if err := json.Unmarshal(data, &msg); err != nil {
		return lwebsocket.Msg{}, errors.New("decoding response failed").Wrap(err)
	}
	return msg, nil
}

func expectType(msg lwebsocket.Msg, t lwebsocket.MsgType) error {
	if msg.Type == t {
		return nil
	}
	return errors.New("unexpected response type").
		WithType(ErrTypeSmokeTestFailed).
		WithTag("expected", t).
		WithTag("received", msg.Type).
		WithTag("error", msg.Error)
}

func expectCount(n, expected int) error {
	if n == expected {
		return nil
	}
	return errors.Newf("expected %d results, received %d", expected, n).
		WithType(ErrTypeSmokeTestFailed)
}
