// Package wsclient implements the remote message and profile collections over the
// chat server websocket. A broken connection is redialed in the background and every
// live subscription is resubscribed, receiving a fresh complete snapshot.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/mqy/minichat/auth"
	"github.com/mqy/minichat/model"
	"github.com/mqy/minichat/remote"
	"github.com/mqy/minichat/retry"
	"github.com/mqy/minichat/wire"
)

var ErrNotConnected = errors.New("wsclient: not connected")

const (
	writeWait = 10 * time.Second
	// The server pings far more often than this.
	pongWait = 60 * time.Second
)

type Conf struct {
	URL      string
	Identity string
	Dialer   *websocket.Dialer // optional
}

type result struct {
	id  string
	err error
}

type subscriber interface {
	collection() string
	deliver(snap *wire.Snapshot)
	fail(err error)
}

// Client is safe for concurrent use. Requests fail fast with ErrNotConnected while
// the connection is down, subscriptions survive reconnects.
type Client struct {
	conf *Conf

	lock    sync.Mutex
	conn    *websocket.Conn // nil while disconnected.
	stopped bool
	reqSeq  int64
	subSeq  int64
	pending map[int64]chan result
	subs    map[string]subscriber

	writeLock sync.Mutex
}

func New(conf *Conf) *Client {
	return &Client{
		conf:    conf,
		pending: make(map[int64]chan result),
		subs:    make(map[string]subscriber),
	}
}

func (c *Client) Messages() remote.MessageCollection {
	return &messages{c}
}

func (c *Client) Profiles() remote.ProfileCollection {
	return &profiles{c}
}

func (c *Client) Connected() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.conn != nil
}

// Run keeps the connection up until ctx is done, then fails every subscription
// with remote.ErrClosed.
func (c *Client) Run(ctx context.Context, stopDoneNotifyC chan<- struct{}) {
	defer func() {
		c.lock.Lock()
		c.stopped = true
		subs := c.subs
		c.subs = make(map[string]subscriber)
		c.lock.Unlock()
		for _, s := range subs {
			s.fail(remote.ErrClosed)
		}
		glog.Infof("wsclient: stopped")
		stopDoneNotifyC <- struct{}{}
	}()

	b := retry.New(ctx, "wsclient: reconnect")
	for {
		conn, err := c.dial(ctx)
		if err == nil {
			glog.Infof("wsclient: connected to %s", c.conf.URL)
			b.Reset()
			c.serve(ctx, conn)
		} else if ctx.Err() == nil {
			glog.Warningf("wsclient: dial %s: %v", c.conf.URL, err)
		}
		if ctx.Err() != nil {
			return
		}
		if !b.Wait() {
			return
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := c.conf.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	header.Set(auth.IdentityHeader, c.conf.Identity)

	conn, resp, err := dialer.DialContext(ctx, c.conf.URL, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%v, status: %s", err, resp.Status)
		}
		return nil, err
	}
	return conn, nil
}

// serve resubscribes and reads the connection until it breaks or ctx is done.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	c.lock.Lock()
	c.conn = conn
	resub := make([]*wire.Subscribe, 0, len(c.subs))
	for id, s := range c.subs {
		resub = append(resub, &wire.Subscribe{SubID: id, Collection: s.collection()})
	}
	c.lock.Unlock()

	for _, v := range resub {
		if err := c.write(conn, &wire.ClientMsg{Subscribe: v}); err != nil {
			glog.Warningf("wsclient: resubscribe `%s`: %v", v.SubID, err)
			break
		}
	}

	for {
		var msg wire.ServerMsg
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				glog.Warningf("wsclient: read: %v", err)
			}
			break
		}
		c.dispatch(&msg)
	}

	c.lock.Lock()
	c.conn = nil
	pending := c.pending
	c.pending = make(map[int64]chan result)
	c.lock.Unlock()

	_ = conn.Close()
	for _, ch := range pending {
		ch <- result{err: ErrNotConnected}
	}
}

func (c *Client) dispatch(msg *wire.ServerMsg) {
	switch {
	case msg.Snapshot != nil:
		c.lock.Lock()
		s := c.subs[msg.Snapshot.SubID]
		c.lock.Unlock()
		if s == nil {
			glog.V(5).Infof("wsclient: drop snapshot of closed subscription `%s`", msg.Snapshot.SubID)
			return
		}
		if s.collection() != msg.Snapshot.Collection {
			glog.Errorf("wsclient: snapshot of `%s` for %s subscription `%s`",
				msg.Snapshot.Collection, s.collection(), msg.Snapshot.SubID)
			return
		}
		s.deliver(msg.Snapshot)
	case msg.Ack != nil:
		c.resolve(msg.Ack.Req, result{id: msg.Ack.ID})
	case msg.Error != nil:
		e := msg.Error
		if e.SubID != "" {
			c.lock.Lock()
			s := c.subs[e.SubID]
			delete(c.subs, e.SubID)
			c.lock.Unlock()
			if s != nil {
				glog.Errorf("wsclient: subscription `%s` rejected: %v", e.SubID, e)
				s.fail(e)
			}
		} else if !c.resolve(e.Req, result{err: e}) {
			glog.Errorf("wsclient: server error: %v", e)
		}
	}
}

func (c *Client) resolve(req int64, r result) bool {
	if req == 0 {
		return false
	}
	c.lock.Lock()
	ch, ok := c.pending[req]
	delete(c.pending, req)
	c.lock.Unlock()
	if ok {
		ch <- r
	}
	return ok
}

func (c *Client) write(conn *websocket.Conn, msg *wire.ClientMsg) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

// request sends msg and waits for its ack.
func (c *Client) request(ctx context.Context, msg *wire.ClientMsg) (string, error) {
	c.lock.Lock()
	conn := c.conn
	if conn == nil {
		c.lock.Unlock()
		return "", ErrNotConnected
	}
	c.reqSeq++
	msg.Req = c.reqSeq
	ch := make(chan result, 1)
	c.pending[msg.Req] = ch
	c.lock.Unlock()

	forget := func() {
		c.lock.Lock()
		delete(c.pending, msg.Req)
		c.lock.Unlock()
	}

	if err := c.write(conn, msg); err != nil {
		forget()
		return "", fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	select {
	case r := <-ch:
		return r.id, r.err
	case <-ctx.Done():
		forget()
		return "", ctx.Err()
	}
}

func (c *Client) attach(collection string, s subscriber) (string, error) {
	c.lock.Lock()
	if c.stopped {
		c.lock.Unlock()
		return "", remote.ErrClosed
	}
	c.subSeq++
	id := strconv.FormatInt(c.subSeq, 10)
	c.subs[id] = s
	conn := c.conn
	c.lock.Unlock()

	if conn != nil {
		// on failure the next connection resubscribes.
		msg := &wire.ClientMsg{Subscribe: &wire.Subscribe{SubID: id, Collection: collection}}
		if err := c.write(conn, msg); err != nil {
			glog.Warningf("wsclient: subscribe `%s`: %v", id, err)
		}
	}
	glog.V(5).Infof("wsclient: subscribe %s `%s`", collection, id)
	return id, nil
}

func (c *Client) detach(id string) {
	c.lock.Lock()
	_, ok := c.subs[id]
	delete(c.subs, id)
	conn := c.conn
	c.lock.Unlock()

	if ok && conn != nil {
		if err := c.write(conn, &wire.ClientMsg{Unsubscribe: &wire.Unsubscribe{SubID: id}}); err != nil {
			glog.Warningf("wsclient: unsubscribe `%s`: %v", id, err)
		}
	}
}

// subscription adapts server snapshots of one collection to remote snapshots.
type subscription[T any] struct {
	c    *Client
	id   string
	coll string
	pump *remote.Pump[T]
	conv func(*wire.Snapshot) T
	errf func(error) T
	once sync.Once
}

func subscribe[T any](ctx context.Context, c *Client, coll string, conv func(*wire.Snapshot) T, errf func(error) T) (*subscription[T], error) {
	s := &subscription[T]{
		c:    c,
		coll: coll,
		pump: remote.NewPump[T](),
		conv: conv,
		errf: errf,
	}
	id, err := c.attach(coll, s)
	if err != nil {
		s.pump.Close()
		return nil, err
	}
	s.id = id
	context.AfterFunc(ctx, s.Close)
	return s, nil
}

func (s *subscription[T]) collection() string {
	return s.coll
}

func (s *subscription[T]) deliver(snap *wire.Snapshot) {
	s.pump.Push(s.conv(snap))
}

func (s *subscription[T]) fail(err error) {
	s.pump.Push(s.errf(err))
	s.pump.Finish()
}

func (s *subscription[T]) C() <-chan T {
	return s.pump.C()
}

func (s *subscription[T]) Close() {
	s.once.Do(func() {
		if s.id != "" {
			s.c.detach(s.id)
		}
		s.pump.Close()
	})
}

type messages struct {
	*Client
}

func (m *messages) Add(ctx context.Context, msg *model.Message) (string, error) {
	return m.request(ctx, &wire.ClientMsg{AddMessage: msg})
}

func (m *messages) Subscribe(ctx context.Context) (remote.MessageSubscription, error) {
	s, err := subscribe(ctx, m.Client, wire.CollectionMessages,
		func(snap *wire.Snapshot) *remote.MessageSnapshot {
			return &remote.MessageSnapshot{Messages: snap.Messages, Changes: snap.Changes}
		},
		func(err error) *remote.MessageSnapshot {
			return &remote.MessageSnapshot{Err: err}
		})
	if err != nil {
		return nil, err
	}
	return s, nil
}

type profiles struct {
	*Client
}

func (p *profiles) Upsert(ctx context.Context, profile *model.Profile) error {
	_, err := p.request(ctx, &wire.ClientMsg{UpsertProfile: profile})
	return err
}

func (p *profiles) Subscribe(ctx context.Context) (remote.ProfileSubscription, error) {
	s, err := subscribe(ctx, p.Client, wire.CollectionProfiles,
		func(snap *wire.Snapshot) *remote.ProfileSnapshot {
			return &remote.ProfileSnapshot{Profiles: snap.Profiles}
		},
		func(err error) *remote.ProfileSnapshot {
			return &remote.ProfileSnapshot{Err: err}
		})
	if err != nil {
		return nil, err
	}
	return s, nil
}
