package wsclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mqy/minichat/auth"
	"github.com/mqy/minichat/model"
	"github.com/mqy/minichat/remote"
	store_mock "github.com/mqy/minichat/store/mock"
	"github.com/mqy/minichat/wire"
	"github.com/mqy/minichat/ws"
)

const me = "me@x.com"

func at(sec int64) *time.Time {
	t := time.Unix(sec, 0).UTC()
	return &t
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// fakeServer runs script for the n-th accepted connection, n starts from 1.
func fakeServer(t *testing.T, script func(n int, conn *websocket.Conn)) string {
	var n int32
	upgrader := websocket.Upgrader{}
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(auth.IdentityHeader) != me {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		script(int(atomic.AddInt32(&n, 1)), conn)
	}))
	t.Cleanup(s.Close)
	return wsURL(s)
}

func readReq(conn *websocket.Conn) *wire.ClientMsg {
	var msg wire.ClientMsg
	if err := conn.ReadJSON(&msg); err != nil {
		return nil
	}
	return &msg
}

func startClient(t *testing.T, url string) (*Client, context.CancelFunc) {
	c := New(&Conf{URL: url, Identity: me})
	ctx, cancel := context.WithCancel(context.Background())
	stopC := make(chan struct{}, 1)
	go c.Run(ctx, stopC)
	t.Cleanup(func() {
		cancel()
		<-stopC
	})
	return c, cancel
}

func waitConnected(t *testing.T, c *Client) {
	require.Eventually(t, c.Connected, 5*time.Second, 10*time.Millisecond)
}

func recvMsgs(t *testing.T, sub remote.MessageSubscription) *remote.MessageSnapshot {
	t.Helper()
	select {
	case v, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting snapshot")
	}
	return nil
}

func recvProfiles(t *testing.T, sub remote.ProfileSubscription) *remote.ProfileSnapshot {
	t.Helper()
	select {
	case v, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting snapshot")
	}
	return nil
}

func TestNotConnected(t *testing.T) {
	c := New(&Conf{URL: "ws://127.0.0.1:1/ws", Identity: me})
	_, err := c.Messages().Add(context.Background(), &model.Message{Text: "hi"})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, c.Profiles().Upsert(context.Background(), &model.Profile{Identity: me}), ErrNotConnected)
	assert.False(t, c.Connected())
}

func TestAddAckAndError(t *testing.T) {
	url := fakeServer(t, func(n int, conn *websocket.Conn) {
		for {
			req := readReq(conn)
			if req == nil {
				return
			}
			if req.AddMessage == nil {
				continue
			}
			var reply *wire.ServerMsg
			if req.AddMessage.Text == "bad" {
				reply = &wire.ServerMsg{Error: wire.NewInvalidArgumentError(req.Req, "text: too long")}
			} else {
				reply = &wire.ServerMsg{Ack: &wire.Ack{Req: req.Req, ID: "srv-1"}}
			}
			if conn.WriteJSON(reply) != nil {
				return
			}
		}
	})
	c, _ := startClient(t, url)
	waitConnected(t, c)

	id, err := c.Messages().Add(context.Background(), &model.Message{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", id)

	_, err = c.Messages().Add(context.Background(), &model.Message{Text: "bad"})
	var werr *wire.Error
	require.True(t, errors.As(err, &werr))
	assert.EqualValues(t, wire.ErrorCodeInvalidArguments, werr.Code)
}

func TestRequestCanceled(t *testing.T) {
	url := fakeServer(t, func(n int, conn *websocket.Conn) {
		for readReq(conn) != nil {
		}
	})
	c, _ := startClient(t, url)
	waitConnected(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Messages().Add(ctx, &model.Message{Text: "hi"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPendingFailOnDisconnect(t *testing.T) {
	url := fakeServer(t, func(n int, conn *websocket.Conn) {
		// drops the connection on the first request.
		readReq(conn)
	})
	c, _ := startClient(t, url)
	waitConnected(t, c)

	_, err := c.Messages().Add(context.Background(), &model.Message{Text: "hi"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestResubscribeAfterReconnect(t *testing.T) {
	msgs := []*model.Message{
		{ID: "a", Text: "hi", SenderID: "a@x.com", CreatedAt: at(1)},
		{ID: "b", Text: "yo", SenderID: "b@x.com", CreatedAt: at(2)},
	}
	subIDs := make(chan string, 4)

	url := fakeServer(t, func(n int, conn *websocket.Conn) {
		req := readReq(conn)
		if req == nil || req.Subscribe == nil {
			return
		}
		subIDs <- req.Subscribe.SubID
		snap := &wire.Snapshot{
			SubID:      req.Subscribe.SubID,
			Collection: req.Subscribe.Collection,
			Messages:   msgs[:min(n, len(msgs))],
		}
		for _, m := range snap.Messages {
			snap.Changes = append(snap.Changes, model.Change{Kind: model.Added, Message: m})
		}
		if conn.WriteJSON(&wire.ServerMsg{Snapshot: snap}) != nil || n == 1 {
			return
		}
		for readReq(conn) != nil {
		}
	})

	c, _ := startClient(t, url)
	sub, err := c.Messages().Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	first := recvMsgs(t, sub)
	require.NoError(t, first.Err)
	require.Len(t, first.Messages, 1)

	second := recvMsgs(t, sub)
	require.NoError(t, second.Err)
	require.Len(t, second.Messages, 2)
	require.Len(t, second.Changes, 2)
	assert.Equal(t, "b", second.Messages[1].ID)

	assert.Equal(t, "1", <-subIDs)
	assert.Equal(t, "1", <-subIDs)
}

func TestSubscriptionRejected(t *testing.T) {
	url := fakeServer(t, func(n int, conn *websocket.Conn) {
		for {
			req := readReq(conn)
			if req == nil {
				return
			}
			if v := req.Subscribe; v != nil {
				e := wire.NewInvalidArgumentError(req.Req, "subscriptions: exceeds limit: 8")
				e.SubID = v.SubID
				if conn.WriteJSON(&wire.ServerMsg{Error: e}) != nil {
					return
				}
			}
		}
	})
	c, _ := startClient(t, url)
	sub, err := c.Profiles().Subscribe(context.Background())
	require.NoError(t, err)

	v := recvProfiles(t, sub)
	var werr *wire.Error
	require.True(t, errors.As(v.Err, &werr))
	_, ok := <-sub.C()
	assert.False(t, ok)
	sub.Close()
}

func TestRunStop(t *testing.T) {
	url := fakeServer(t, func(n int, conn *websocket.Conn) {
		for readReq(conn) != nil {
		}
	})
	c, cancel := startClient(t, url)
	sub, err := c.Messages().Subscribe(context.Background())
	require.NoError(t, err)
	waitConnected(t, c)

	cancel()
	v := recvMsgs(t, sub)
	assert.ErrorIs(t, v.Err, remote.ErrClosed)
	_, ok := <-sub.C()
	assert.False(t, ok)

	require.Eventually(t, func() bool { return !c.Connected() }, 5*time.Second, 10*time.Millisecond)
	_, err = c.Messages().Subscribe(context.Background())
	assert.ErrorIs(t, err, remote.ErrClosed)
}

type stampSubmitter struct {
	storedC chan *model.Message
}

func (s *stampSubmitter) Submit(ctx context.Context, msg *model.Message) error {
	v := msg.Clone()
	v.CreatedAt = at(100)
	s.storedC <- v
	return nil
}

func TestWithHub(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	storeMock := store_mock.NewMockIDocStore(mockCtrl)
	storeMock.EXPECT().ListMessages(gomock.Any(), 10).Return([]*model.Message{
		{ID: "1", Text: "hi", SenderID: "a@x.com", CreatedAt: at(1)},
	}, nil)
	storeMock.EXPECT().ListProfiles(gomock.Any()).Return(nil, nil)
	storeMock.EXPECT().UpsertProfile(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, p *model.Profile) (*model.Profile, error) {
			return p, nil
		})

	submitter := &stampSubmitter{storedC: make(chan *model.Message, 1)}
	hub := ws.NewHub(&auth.MockClient{}, storeMock, submitter, &ws.Conf{PayloadMaxBytes: 4096, HistoryLimit: 10})
	require.NoError(t, hub.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	hubStopC := make(chan struct{}, 1)
	go hub.Run(ctx, submitter.storedC, hubStopC)
	server := httptest.NewServer(hub)
	defer func() {
		cancel()
		<-hubStopC
		server.Close()
	}()

	c, _ := startClient(t, wsURL(server))
	sub, err := c.Messages().Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()
	psub, err := c.Profiles().Subscribe(context.Background())
	require.NoError(t, err)
	defer psub.Close()

	first := recvMsgs(t, sub)
	require.Len(t, first.Messages, 1)
	assert.Empty(t, recvProfiles(t, psub).Profiles)

	id, err := c.Messages().Add(context.Background(), &model.Message{Text: "yo", SenderName: "Me"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	next := recvMsgs(t, sub)
	require.Len(t, next.Messages, 2)
	assert.Equal(t, id, next.Messages[1].ID)
	assert.Equal(t, me, next.Messages[1].SenderID)
	assert.False(t, next.Messages[1].Pending())
	require.Len(t, next.Changes, 1)
	assert.Equal(t, model.Added, next.Changes[0].Kind)

	require.NoError(t, c.Profiles().Upsert(context.Background(), &model.Profile{Identity: me, DisplayName: "Me"}))
	profiles := recvProfiles(t, psub).Profiles
	require.Len(t, profiles, 1)
	assert.Equal(t, "Me", profiles[0].DisplayName)
}
