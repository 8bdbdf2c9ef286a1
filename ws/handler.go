package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/mqy/minichat/wire"
)

type SessionError int

const (
	ReadError    SessionError = 1
	WriteError   SessionError = 2
	PingError    SessionError = 3
	BadRequest   SessionError = 4
	ServerStop   SessionError = 5
	SlowConsumer SessionError = 6
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 3 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	// Recommend configure nginx with `keep-alive_timeout` >= 65s.
	pingPeriod = 20 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 25 * time.Second

	dataChanSize = 64

	// subscriptions per session.
	maxSubs = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Fix error: request origin not allowed by Upgrader.CheckOrigin
	CheckOrigin: func(r *http.Request) bool {
		// TODO: check origin against an allow list once there is a web client.
		return true
	},
}

// Session is the identity of one websocket connection.
type Session struct {
	Uid        string `json:"uid"`
	Sid        string `json:"sid"`
	CreateTime int64  `json:"create_time"`
	Ip         string `json:"ip"`
}

// Handler managers an active connection to end user.
// Every new websocket connection creates a new session.
type Handler struct {
	sync.Mutex

	api *DocApi
	hub *Hub

	session *Session
	conn    *websocket.Conn

	dataChan chan *SessionData

	closing bool
	// sub id -> collection.
	subs map[string]string
}

// SessionData is the data structure for `dataChan`.
type SessionData struct {
	Error     SessionError    `json:"error,omitempty"`
	ServerMsg *wire.ServerMsg `json:"resp,omitempty"`
}

func (h *Handler) String() string {
	out, _ := json.Marshal(h.session)
	return string(out)
}

func (h *Handler) close(cause SessionError) {
	h.Lock()
	defer h.Unlock()
	if h.closing {
		return
	}

	h.closing = true

	// WriteControl may run concurrently with sendLoop.
	_ = h.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
	h.conn.Close()

	close(h.dataChan)
	liveSubscriptions.Sub(float64(len(h.subs)))
	h.subs = nil

	// on server stop the hub removes all handlers at once.
	if cause != ServerStop {
		glog.V(5).Infof("session closed, cause: %d, %s", cause, h)
		// Ask for node to remove this handler.
		h.hub.delHandler(h.session.Sid)
	}
}

// appendDataChan never blocks, a peer that does not keep up is disconnected.
func (h *Handler) appendDataChan(v *SessionData) {
	h.Lock()
	defer h.Unlock()
	if h.closing {
		return
	}
	select {
	case h.dataChan <- v:
	default:
		glog.Errorf("session data chan is full, close session: %s", h)
		go h.close(SlowConsumer)
	}
}

func (h *Handler) sendError(err *wire.Error) {
	wire.Intercept(err)
	h.appendDataChan(&SessionData{ServerMsg: &wire.ServerMsg{Error: err}})
}

func (h *Handler) sendAck(req int64, id string) {
	h.appendDataChan(&SessionData{ServerMsg: &wire.ServerMsg{Ack: &wire.Ack{Req: req, ID: id}}})
}

// addSub registers a subscription, returns false if the session is closing.
func (h *Handler) addSub(subID, collection string) bool {
	h.Lock()
	defer h.Unlock()
	if h.closing {
		return false
	}
	h.subs[subID] = collection
	liveSubscriptions.Inc()
	return true
}

func (h *Handler) delSub(subID string) bool {
	h.Lock()
	defer h.Unlock()
	if _, ok := h.subs[subID]; !ok {
		return false
	}
	delete(h.subs, subID)
	liveSubscriptions.Dec()
	return true
}

func (h *Handler) hasSub(subID string) bool {
	h.Lock()
	defer h.Unlock()
	_, ok := h.subs[subID]
	return ok
}

func (h *Handler) numSubs() int {
	h.Lock()
	defer h.Unlock()
	return len(h.subs)
}

// subsOf returns the sub ids of `collection`.
func (h *Handler) subsOf(collection string) []string {
	h.Lock()
	defer h.Unlock()
	var out []string
	for id, c := range h.subs {
		if c == collection {
			out = append(out, id)
		}
	}
	return out
}

func sendServerMsg(conn *websocket.Conn, msg *wire.ServerMsg) error {
	out, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, out)
}

func (h *Handler) recvLoop() {
	defer func() { glog.V(5).Infof("recvLoop(): exited, session: %s", h.String()) }()

	h.conn.SetReadLimit(int64(FrameMaxBytes(h.hub.conf.PayloadMaxBytes)))
	h.conn.SetReadDeadline(time.Now().Add(pongWait))
	h.conn.SetPongHandler(func(s string) error {
		h.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, msg, err := h.conn.ReadMessage()
		if err != nil {
			glog.Errorf("recvLoop(): read error: %v", err)
			h.appendDataChan(&SessionData{Error: ReadError})
			return
		}

		glog.V(7).Infof("recvLoop(): incoming client message: %d bytes", len(msg))

		if msgType != websocket.TextMessage {
			glog.Errorf("recvLoop(): unexpected message type: %d", msgType)
			h.sendError(wire.NewInvalidArgumentError(0, "websocket only supports TextMessage"))
			h.appendDataChan(&SessionData{Error: BadRequest})
			return
		}

		req := wire.ClientMsg{}
		if err := json.Unmarshal(msg, &req); err != nil {
			glog.Errorf("recvLoop(): message error: %v", err)
			h.sendError(wire.NewInvalidArgumentError(0, fmt.Sprintf("unmarshal error: %v", err)))
			h.appendDataChan(&SessionData{Error: BadRequest})
			return
		}

		if !h.handle(&req) {
			return
		}
	}
}

// handle serves one request, returns false if the session should be closed.
func (h *Handler) handle(req *wire.ClientMsg) bool {
	uid := h.session.Uid

	if v := req.Subscribe; v != nil {
		if err := h.validateSubscribe(req.Req, v); err != nil {
			err.SubID = v.SubID
			h.sendError(err)
			return true
		}
		h.hub.subscribe(h, v)
	} else if v := req.Unsubscribe; v != nil {
		if !h.delSub(v.SubID) {
			h.sendError(wire.NewInvalidArgumentError(req.Req, "sub_id: not found"))
			return true
		}
		h.sendAck(req.Req, "")
	} else if v := req.AddMessage; v != nil {
		id, err := h.api.AddMessage(context.Background(), uid, req.Req, v)
		if err != nil {
			glog.Errorf("recvLoop(): AddMessage error: %v", err)
			h.sendError(err)
			return true
		}
		h.sendAck(req.Req, id)
	} else if v := req.UpsertProfile; v != nil {
		p, err := h.api.UpsertProfile(context.Background(), uid, req.Req, v)
		if err != nil {
			glog.Errorf("recvLoop(): UpsertProfile error: %v", err)
			h.sendError(err)
			return true
		}
		h.sendAck(req.Req, "")
		h.hub.applyProfile(p)
	} else {
		glog.Errorf("recvLoop(): unsupported request, req: %d", req.Req)
		h.sendError(wire.NewInvalidArgumentError(req.Req, "unsupported request"))
		h.appendDataChan(&SessionData{Error: BadRequest})
		return false
	}
	return true
}

func (h *Handler) validateSubscribe(req int64, v *wire.Subscribe) *wire.Error {
	var errs []string
	if v.SubID == "" {
		errs = append(errs, "sub_id: should not be empty")
	} else if h.hasSub(v.SubID) {
		errs = append(errs, "sub_id: already subscribed")
	}
	if v.Collection != wire.CollectionMessages && v.Collection != wire.CollectionProfiles {
		errs = append(errs, fmt.Sprintf("collection: unknown `%s`", v.Collection))
	}
	if h.numSubs() >= maxSubs {
		errs = append(errs, fmt.Sprintf("subscriptions: exceeds limit: %d", maxSubs))
	}
	if len(errs) > 0 {
		return wire.NewInvalidArgumentError(req, errs...)
	}
	return nil
}

func (h *Handler) sendLoop() {
	pingTicker := time.NewTicker(pingPeriod)
	defer func() {
		pingTicker.Stop()
		glog.V(5).Infof("sendLoop(): exited, session: %s", h.String())
	}()

	for {
		select {
		case v, ok := <-h.dataChan:
			if !ok { // chan was closed
				h.conn.Close()
				glog.V(5).Infof("sendLoop(): data chan closed, session: %s", h.String())
				return
			}

			if v.Error > 0 {
				h.close(v.Error)
				return
			} else if v.ServerMsg == nil {
				// should not happen.
				panic(fmt.Sprintf("sendLoop(), unknown data from dataChan: %#+v", v))
			}

			if err := sendServerMsg(h.conn, v.ServerMsg); err != nil {
				glog.Errorf("sendLoop(), error write message. session: %s, err: %v", h.String(), err)
				h.close(WriteError)
				return
			}
		case <-pingTicker.C:
			h.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				glog.Errorf("sendLoop(), error write ping message. session: %s, err: %v", h, err)
				h.close(PingError)
				return
			}
		}
	}
}
