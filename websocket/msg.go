package websocket

import (
	"time"

	"github.com/aukilabs/laguz/models"
)

const (
	ErrTypeMsgInvalid   = "invalid_msg"
	ErrTypeMsgUnknown   = "unknown_msg"
	ErrTypeMsgForbidden = "forbidden_msg"
)

// MsgType is the type of a realtime message.
type MsgType string

const (
	MsgTypePingRequest     MsgType = "ping_request"
	MsgTypePingResponse    MsgType = "ping_response"
	MsgTypeInsertRequest   MsgType = "insert_request"
	MsgTypeInsertResponse  MsgType = "insert_response"
	MsgTypeLookupRequest   MsgType = "lookup_request"
	MsgTypeLookupResponse  MsgType = "lookup_response"
	MsgTypeDeleteRequest   MsgType = "delete_request"
	MsgTypeDeleteResponse  MsgType = "delete_response"
	MsgTypeNearestRequest  MsgType = "nearest_request"
	MsgTypeNearestResponse MsgType = "nearest_response"
	MsgTypeErrorResponse   MsgType = "error_response"
)

// Msg is a JSON message exchanged over a realtime connection. Requests carry
// a request id that is echoed in their response.
type Msg struct {
	Type      MsgType   `json:"type"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	RequestID uint32    `json:"request_id,omitempty"`

	IndexID   string            `json:"index_id,omitempty"`
	X         *float64          `json:"x,omitempty"`
	Y         *float64          `json:"y,omitempty"`
	K         int               `json:"k,omitempty"`
	Datapoint *models.Datapoint `json:"datapoint,omitempty"`

	Values    []models.Datapoint `json:"values,omitempty"`
	Neighbors []models.Neighbor  `json:"neighbors,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// TypeString returns the message type as a string.
func (m Msg) TypeString() string {
	if m.Type == "" {
		return "unknown"
	}
	return string(m.Type)
}

// Coordinates returns the x and y coordinates of the message. ok is false when
// one of them is missing.
func (m Msg) Coordinates() (x, y float64, ok bool) {
	if m.X == nil || m.Y == nil {
		return 0, 0, false
	}
	return *m.X, *m.Y, true
}

// Coordinate returns a pointer to v, to be used as a message coordinate.
func Coordinate(v float64) *float64 {
	return &v
}

// A function that receives a message. It returns the received message, the
// number of read bytes and an error.
type Receiver func() (Msg, int, error)

// A function that sends a message. It returns the number of written bytes and
// an error.
type Sender func(Msg) (int, error)

// ResponseSender queues messages to send to a client.
type ResponseSender interface {
	Send(Msg)
}

func newResponse(t MsgType, req Msg) Msg {
	return Msg{
		Type:      t,
		Timestamp: time.Now(),
		RequestID: req.RequestID,
		IndexID:   req.IndexID,
		X:         req.X,
		Y:         req.Y,
	}
}

func newErrorResponse(req Msg, errType string) Msg {
	res := newResponse(MsgTypeErrorResponse, req)
	res.Error = errType
	return res
}
