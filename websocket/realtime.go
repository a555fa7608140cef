package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/laguz/featureflag"
	"github.com/aukilabs/laguz/models"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	// The header where clients can send their id. A random id is generated
	// when it is missing.
	HeaderClientID = "X-Laguz-Client-Id"

	defaultIdleTimeout  = time.Minute
	defaultMaxNeighbors = 1000
)

// RealtimeHandler serves index queries sent over a WebSocket connection.
type RealtimeHandler struct {
	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The store that contains the queried indexes.
	Indexes *models.IndexStore

	// The maximum k accepted by nearest neighbors queries.
	MaxNeighbors int

	FeatureFlags featureflag.FeatureFlag

	conn     *websocket.Conn
	clientID string
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn

	if req := conn.Request(); req != nil {
		h.clientID = req.Header.Get(HeaderClientID)
	}
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}
}

func (h *RealtimeHandler) HandleDisconnect(_ error) {
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(newResponse(MsgTypePingResponse, msg))
	return nil
}

func (h *RealtimeHandler) HandleInsert(ctx context.Context, respond ResponseSender, msg Msg) error {
	if h.FeatureFlags.IsSet(featureflag.FlagDisableRealtimeWrites) {
		respond.Send(newErrorResponse(msg, ErrTypeMsgForbidden))
		return nil
	}

	idx, ok := h.index(respond, msg)
	if !ok {
		return nil
	}

	x, y, ok := h.coordinates(respond, msg)
	if !ok {
		return nil
	}

	var dp models.Datapoint
	if msg.Datapoint != nil {
		dp = *msg.Datapoint
	}

	dp, err := idx.Insert(x, y, dp)
	if err != nil {
		respond.Send(newErrorResponse(msg, errors.Type(err)))
		return nil
	}

	res := newResponse(MsgTypeInsertResponse, msg)
	res.Datapoint = &dp
	respond.Send(res)
	return nil
}

func (h *RealtimeHandler) HandleLookup(ctx context.Context, respond ResponseSender, msg Msg) error {
	idx, ok := h.index(respond, msg)
	if !ok {
		return nil
	}

	x, y, ok := h.coordinates(respond, msg)
	if !ok {
		return nil
	}

	res := newResponse(MsgTypeLookupResponse, msg)
	res.Values = idx.Lookup(x, y)
	respond.Send(res)
	return nil
}

func (h *RealtimeHandler) HandleDelete(ctx context.Context, respond ResponseSender, msg Msg) error {
	if h.FeatureFlags.IsSet(featureflag.FlagDisableRealtimeWrites) {
		respond.Send(newErrorResponse(msg, ErrTypeMsgForbidden))
		return nil
	}

	idx, ok := h.index(respond, msg)
	if !ok {
		return nil
	}

	x, y, ok := h.coordinates(respond, msg)
	if !ok {
		return nil
	}

	res := newResponse(MsgTypeDeleteResponse, msg)
	res.Values = idx.Delete(x, y)
	respond.Send(res)
	return nil
}

func (h *RealtimeHandler) HandleNearest(ctx context.Context, respond ResponseSender, msg Msg) error {
	if msg.K < 0 || msg.K > h.maxNeighbors() {
		respond.Send(newErrorResponse(msg, ErrTypeMsgInvalid))
		return nil
	}

	idx, ok := h.index(respond, msg)
	if !ok {
		return nil
	}

	x, y, ok := h.coordinates(respond, msg)
	if !ok {
		return nil
	}

	res := newResponse(MsgTypeNearestResponse, msg)
	res.K = msg.K
	res.Neighbors = idx.Nearest(x, y, msg.K)
	respond.Send(res)
	return nil
}

func (h *RealtimeHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		var b []byte
		if err := websocket.Message.Receive(h.conn, &b); err != nil {
			return Msg{}, 0, err
		}

		var msg Msg
		if err := json.Unmarshal(b, &msg); err != nil {
			return Msg{}, len(b), errors.New("decoding message failed").
				WithType(ErrTypeMsgInvalid).
				Wrap(err)
		}
		return msg, len(b), nil
	}
}

func (h *RealtimeHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		b, err := json.Marshal(msg)
		if err != nil {
			return 0, errors.New("encoding message failed").
				WithType(ErrTypeMsgInvalid).
				WithTag("msg_type", msg.TypeString()).
				Wrap(err)
		}

		if err := websocket.Message.Send(h.conn, string(b)); err != nil {
			return 0, err
		}
		return len(b), nil
	}
}

func (h *RealtimeHandler) Close() {
}

func (h *RealtimeHandler) IdleTimeout() time.Duration {
	if h.ClientIdleTimeout <= 0 {
		return defaultIdleTimeout
	}
	return h.ClientIdleTimeout
}

func (h *RealtimeHandler) GetClientID() string {
	return h.clientID
}

func (h *RealtimeHandler) index(respond ResponseSender, msg Msg) (*models.Index, bool) {
	idx, ok := h.Indexes.Get(msg.IndexID)
	if !ok {
		respond.Send(newErrorResponse(msg, models.ErrTypeIndexNotFound))
	}
	return idx, ok
}

// coordinates sends an invalid_msg error when the request has no coordinates.
func (h *RealtimeHandler) coordinates(respond ResponseSender, msg Msg) (float64, float64, bool) {
	x, y, ok := msg.Coordinates()
	if !ok {
		respond.Send(newErrorResponse(msg, ErrTypeMsgInvalid))
	}
	return x, y, ok
}

func (h *RealtimeHandler) maxNeighbors() int {
	if h.MaxNeighbors <= 0 {
		return defaultMaxNeighbors
	}
	return h.MaxNeighbors
}
