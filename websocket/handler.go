package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize    = 512
	receiveChanSize = 64
)

// Handler represents a realtime index handler.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Handles a ping request.
	HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to insert a datapoint in an index.
	HandleInsert(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to get the datapoints stored at a coordinate.
	HandleLookup(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to delete the datapoints stored at a coordinate.
	HandleDelete(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a nearest neighbors query.
	HandleNearest(ctx context.Context, respond ResponseSender, msg Msg) error

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender used to write messages to the client.
	Sender() Sender

	// Closes the handler and releases its allocated resources.
	Close()

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// Returns the client id.
	GetClientID() string
}

// Handle runs the given handler on the connection until the client
// disconnects, stays idle for too long or ctx is done.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The realtime handler.
	Handler Handler

	sendChan       chan Msg
	receiveChan    chan Msg
	sender         Sender
	receiver       Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sendChan = make(chan Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.receiveChan = make(chan Msg, receiveChanSize)
	h.receiver = h.Handler.Receiver()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	responder := responseSender{
		send: func(msg Msg) {
			h.send(ctx, msg)
		},
	}

	for disconnected := false; !disconnected; {
		select {
		case <-ctx.Done():
			h.handleDisconnect(ctx.Err())
			disconnected = true

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", idleTimeout))

		case msg := <-h.receiveChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			if err := h.handleMessage(ctx, msg, responder); err != nil {
				h.disconnect(errors.New("handling message failed").
					WithTag("msg_type", msg.TypeString()).
					Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			disconnected = true
		}
	}

	// cancel context so go routines can cleanly exit
	cancel()
	wg.Wait()
}

func (h *handler) send(ctx context.Context, msg Msg) {
	select {
	case <-ctx.Done():
	case h.sendChan <- msg:
	}
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for ctx.Err() == nil {
		msg, _, err := h.receiver()
		if errors.IsType(err, ErrTypeMsgInvalid) {
			h.send(ctx, newErrorResponse(msg, ErrTypeMsgInvalid))
			continue
		}
		if err != nil {
			h.disconnect(errors.New("receiving message failed").Wrap(err))
			return
		}

		select {
		case <-ctx.Done():
			return
		case h.receiveChan <- msg:
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg Msg, responder ResponseSender) error {
	switch msg.Type {
	case MsgTypePingRequest:
		return h.Handler.HandlePing(ctx, responder, msg)

	case MsgTypeInsertRequest:
		return h.Handler.HandleInsert(ctx, responder, msg)

	case MsgTypeLookupRequest:
		return h.Handler.HandleLookup(ctx, responder, msg)

	case MsgTypeDeleteRequest:
		return h.Handler.HandleDelete(ctx, responder, msg)

	case MsgTypeNearestRequest:
		return h.Handler.HandleNearest(ctx, responder, msg)

	default:
		responder.Send(newErrorResponse(msg, ErrTypeMsgUnknown))
		return nil
	}
}

func (h *handler) disconnect(err error) {
	select {
	case h.disconnectChan <- err:
	default:
	}
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender struct {
	send func(Msg)
}

func (r responseSender) Send(msg Msg) {
	r.send(msg)
}
