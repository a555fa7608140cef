package websocket

import (
	"testing"
	"time"

	"github.com/aukilabs/laguz/featureflag"
	"github.com/aukilabs/laguz/models"
	"github.com/aukilabs/laguz/quadtree"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func sendMsg(t *testing.T, conn *websocket.Conn, msg Msg) {
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, websocket.Message.Send(conn, string(b)))
}

func receiveMsg(t *testing.T, conn *websocket.Conn) Msg {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var b []byte
	require.NoError(t, websocket.Message.Receive(conn, &b))

	var msg Msg
	require.NoError(t, json.Unmarshal(b, &msg))
	return msg
}

func request(t *testing.T, conn *websocket.Conn, msg Msg) Msg {
	sendMsg(t, conn, msg)
	return receiveMsg(t, conn)
}

func newTestStore(t *testing.T) (*models.IndexStore, *models.Index) {
	var store models.IndexStore

	idx, err := store.Create("test", quadtree.Domain{MaxX: 100, MaxY: 100})
	require.NoError(t, err)
	return &store, idx
}

func datapointIDs(values []models.Datapoint) []string {
	ids := make([]string, len(values))
	for i, v := range values {
		ids[i] = v.ID
	}
	return ids
}

func TestHandlerHandlePing(t *testing.T) {
	store, _ := newTestStore(t)
	clientA, _, close := NewTestingEnv(t, newTestHandler(store))
	defer close()

	res := request(t, clientA, Msg{
		Type:      MsgTypePingRequest,
		RequestID: 1,
	})
	require.Equal(t, MsgTypePingResponse, res.Type)
	require.Equal(t, uint32(1), res.RequestID)
	require.NotZero(t, res.Timestamp)
}

func TestHandlerIndexQueries(t *testing.T) {
	store, idx := newTestStore(t)
	clientA, clientB, close := NewTestingEnv(t, newTestHandler(store))
	defer close()

	for i, p := range []struct {
		x, y float64
		id   string
	}{
		{10, 10, "a"},
		{90, 90, "b"},
		{10, 20, "c"},
	} {
		res := request(t, clientA, Msg{
			Type:      MsgTypeInsertRequest,
			RequestID: uint32(i + 1),
			IndexID:   idx.ID,
			X:         Coordinate(p.x),
			Y:         Coordinate(p.y),
			Datapoint: &models.Datapoint{ID: p.id},
		})
		require.Equal(t, MsgTypeInsertResponse, res.Type)
		require.Equal(t, uint32(i+1), res.RequestID)
		require.NotNil(t, res.Datapoint)
		require.Equal(t, p.id, res.Datapoint.ID)
	}

	t.Run("lookup", func(t *testing.T) {
		res := request(t, clientB, Msg{
			Type:      MsgTypeLookupRequest,
			RequestID: 4,
			IndexID:   idx.ID,
			X:         Coordinate(10),
			Y:         Coordinate(10),
		})
		require.Equal(t, MsgTypeLookupResponse, res.Type)
		require.Equal(t, []string{"a"}, datapointIDs(res.Values))
	})

	t.Run("nearest", func(t *testing.T) {
		res := request(t, clientB, Msg{
			Type:      MsgTypeNearestRequest,
			RequestID: 5,
			IndexID:   idx.ID,
			X:         Coordinate(10),
			Y:         Coordinate(10),
			K:         2,
		})
		require.Equal(t, MsgTypeNearestResponse, res.Type)
		require.Len(t, res.Neighbors, 2)
		require.Equal(t, "a", res.Neighbors[0].Datapoint.ID)
		require.Equal(t, 0.0, res.Neighbors[0].Distance)
		require.Equal(t, "c", res.Neighbors[1].Datapoint.ID)
		require.Equal(t, 10.0, res.Neighbors[1].Distance)
	})

	t.Run("nearest with an invalid k", func(t *testing.T) {
		res := request(t, clientB, Msg{
			Type:      MsgTypeNearestRequest,
			RequestID: 6,
			IndexID:   idx.ID,
			K:         11,
		})
		require.Equal(t, MsgTypeErrorResponse, res.Type)
		require.Equal(t, ErrTypeMsgInvalid, res.Error)
	})

	t.Run("delete", func(t *testing.T) {
		res := request(t, clientA, Msg{
			Type:      MsgTypeDeleteRequest,
			RequestID: 7,
			IndexID:   idx.ID,
			X:         Coordinate(10),
			Y:         Coordinate(10),
		})
		require.Equal(t, MsgTypeDeleteResponse, res.Type)
		require.Equal(t, []string{"a"}, datapointIDs(res.Values))

		res = request(t, clientA, Msg{
			Type:      MsgTypeLookupRequest,
			RequestID: 8,
			IndexID:   idx.ID,
			X:         Coordinate(10),
			Y:         Coordinate(10),
		})
		require.Equal(t, MsgTypeLookupResponse, res.Type)
		require.Empty(t, res.Values)
		require.Equal(t, 2, idx.Count())
	})
}

func TestHandlerErrors(t *testing.T) {
	store, idx := newTestStore(t)
	clientA, _, close := NewTestingEnv(t, newTestHandler(store))
	defer close()

	t.Run("unknown index", func(t *testing.T) {
		res := request(t, clientA, Msg{
			Type:      MsgTypeInsertRequest,
			RequestID: 1,
			IndexID:   "unknown",
		})
		require.Equal(t, MsgTypeErrorResponse, res.Type)
		require.Equal(t, uint32(1), res.RequestID)
		require.Equal(t, models.ErrTypeIndexNotFound, res.Error)
	})

	t.Run("out of domain", func(t *testing.T) {
		res := request(t, clientA, Msg{
			Type:      MsgTypeInsertRequest,
			RequestID: 2,
			IndexID:   idx.ID,
			X:         Coordinate(101),
			Y:         Coordinate(50),
		})
		require.Equal(t, MsgTypeErrorResponse, res.Type)
		require.Equal(t, models.ErrTypeOutOfDomain, res.Error)
	})

	t.Run("missing coordinates", func(t *testing.T) {
		for _, msg := range []Msg{
			{Type: MsgTypeInsertRequest, Y: Coordinate(10)},
			{Type: MsgTypeInsertRequest, X: Coordinate(10)},
			{Type: MsgTypeInsertRequest},
			{Type: MsgTypeLookupRequest},
			{Type: MsgTypeDeleteRequest},
			{Type: MsgTypeNearestRequest, K: 1},
		} {
			msg.RequestID = 5
			msg.IndexID = idx.ID

			res := request(t, clientA, msg)
			require.Equal(t, MsgTypeErrorResponse, res.Type)
			require.Equal(t, uint32(5), res.RequestID)
			require.Equal(t, ErrTypeMsgInvalid, res.Error)
		}
		require.Zero(t, idx.Count())
	})

	t.Run("unknown message type", func(t *testing.T) {
		res := request(t, clientA, Msg{
			Type:      "subscribe_request",
			RequestID: 3,
		})
		require.Equal(t, MsgTypeErrorResponse, res.Type)
		require.Equal(t, ErrTypeMsgUnknown, res.Error)
	})

	t.Run("invalid message keeps the connection open", func(t *testing.T) {
		require.NoError(t, websocket.Message.Send(clientA, "{"))

		res := receiveMsg(t, clientA)
		require.Equal(t, MsgTypeErrorResponse, res.Type)
		require.Equal(t, ErrTypeMsgInvalid, res.Error)

		res = request(t, clientA, Msg{
			Type:      MsgTypePingRequest,
			RequestID: 4,
		})
		require.Equal(t, MsgTypePingResponse, res.Type)
	})
}

func TestHandlerWithDisabledWrites(t *testing.T) {
	store, idx := newTestStore(t)
	clientA, _, close := NewTestingEnv(t, func() Handler {
		return &RealtimeHandler{
			Indexes:      store,
			FeatureFlags: featureflag.New([]string{string(featureflag.FlagDisableRealtimeWrites)}),
		}
	})
	defer close()

	res := request(t, clientA, Msg{
		Type:      MsgTypeInsertRequest,
		RequestID: 1,
		IndexID:   idx.ID,
		X:         Coordinate(1),
		Y:         Coordinate(1),
	})
	require.Equal(t, MsgTypeErrorResponse, res.Type)
	require.Equal(t, ErrTypeMsgForbidden, res.Error)
	require.Zero(t, idx.Count())

	res = request(t, clientA, Msg{
		Type:      MsgTypeLookupRequest,
		RequestID: 2,
		IndexID:   idx.ID,
		X:         Coordinate(1),
		Y:         Coordinate(1),
	})
	require.Equal(t, MsgTypeLookupResponse, res.Type)
}

func TestHandlerIdleTimeout(t *testing.T) {
	store, _ := newTestStore(t)
	clientA, _, close := NewTestingEnv(t, func() Handler {
		return &RealtimeHandler{
			ClientIdleTimeout: time.Millisecond * 50,
			Indexes:           store,
		}
	})
	defer close()

	require.NoError(t, clientA.SetReadDeadline(time.Now().Add(5*time.Second)))

	var b []byte
	err := websocket.Message.Receive(clientA, &b)
	require.Error(t, err)
}
