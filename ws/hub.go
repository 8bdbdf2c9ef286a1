package ws

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/pborman/uuid"

	"github.com/mqy/minichat/auth"
	"github.com/mqy/minichat/cluster"
	"github.com/mqy/minichat/model"
	"github.com/mqy/minichat/store"
	"github.com/mqy/minichat/wire"
)

var _ cluster.IHub = (*Hub)(nil)

// Hub works as a hub that manages and serves sessions. It keeps both collections in
// memory and pushes a complete snapshot to every subscription on each change.
type Hub struct {
	conf       *Conf
	api        *DocApi
	store      store.IDocStore
	authClient auth.Client
	hstore     *HandlerStore
	online     int32

	// guards the collections, held while fanning out so that every subscription
	// observes the same order of snapshots.
	lock     sync.Mutex
	messages map[string]*model.Message
	profiles map[string]*model.Profile
}

// NewHub creates a `Hub`.
func NewHub(authClient auth.Client, docStore store.IDocStore, submitter Submitter, conf *Conf) *Hub {
	return &Hub{
		conf:       conf,
		api:        NewApi(docStore, submitter, conf),
		store:      docStore,
		authClient: authClient,
		hstore: &HandlerStore{
			handlers: make(map[string]*Handler),
		},
		messages: make(map[string]*model.Message),
		profiles: make(map[string]*model.Profile),
	}
}

// Load implements `cluster.IHub.Load`.
func (h *Hub) Load(ctx context.Context) error {
	messages, err := h.store.ListMessages(ctx, h.conf.HistoryLimit)
	if err != nil {
		return err
	}
	profiles, err := h.store.ListProfiles(ctx)
	if err != nil {
		return err
	}

	h.lock.Lock()
	for _, m := range messages {
		h.messages[m.ID] = m
	}
	for _, p := range profiles {
		h.profiles[p.Identity] = p
	}
	h.lock.Unlock()

	atomic.StoreInt32(&h.online, 1)
	glog.Infof("hub: loaded %d messages, %d profiles", len(messages), len(profiles))
	return nil
}

// Run implements `cluster.IHub.Run`.
func (h *Hub) Run(ctx context.Context, storedC <-chan *model.Message, stopDoneNotifyC chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			atomic.StoreInt32(&h.online, 0)
			glog.Infof("close connections ...")
			n := h.hstore.closeAll()
			liveSessions.Sub(float64(n))
			glog.Infof("close %d connections done", n)
			stopDoneNotifyC <- struct{}{}
			return
		case msg, ok := <-storedC:
			if !ok {
				return
			}
			glog.V(5).Infof("hub: get stored message: %s", msg.ID)
			h.applyMessage(msg)
		}
	}
}

func (h *Hub) applyMessage(msg *model.Message) {
	h.lock.Lock()
	defer h.lock.Unlock()

	kind := model.Added
	if old, ok := h.messages[msg.ID]; ok {
		if old.CreatedAt != nil && msg.CreatedAt != nil && old.CreatedAt.Equal(*msg.CreatedAt) {
			glog.V(5).Infof("hub: ignore redelivered message %s", msg.ID)
			return
		}
		kind = model.Modified
	}
	h.messages[msg.ID] = msg
	h.fanoutMessages([]model.Change{{Kind: kind, Message: msg}})
}

func (h *Hub) applyProfile(p *model.Profile) {
	if p == nil {
		return
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	h.profiles[p.Identity] = p
	h.fanoutProfiles()
}

// subscribe registers the subscription and sends its first snapshot, every document
// is `added` in it.
func (h *Hub) subscribe(handler *Handler, req *wire.Subscribe) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if !handler.addSub(req.SubID, req.Collection) {
		return
	}

	snap := &wire.Snapshot{SubID: req.SubID, Collection: req.Collection}
	switch req.Collection {
	case wire.CollectionMessages:
		snap.Messages = h.messageList()
		for _, m := range snap.Messages {
			snap.Changes = append(snap.Changes, model.Change{Kind: model.Added, Message: m})
		}
	case wire.CollectionProfiles:
		snap.Profiles = h.profileList()
	}
	glog.V(5).Infof("hub: subscribe %s `%s`, session: %s", req.Collection, req.SubID, handler.session.Sid)
	handler.appendDataChan(&SessionData{ServerMsg: &wire.ServerMsg{Snapshot: snap}})
}

// messageList returns the ordered messages, h.lock must be held.
func (h *Hub) messageList() []*model.Message {
	out := make([]*model.Message, 0, len(h.messages))
	for _, m := range h.messages {
		out = append(out, m)
	}
	model.SortMessages(out)
	return out
}

func (h *Hub) profileList() []*model.Profile {
	out := make([]*model.Profile, 0, len(h.profiles))
	for _, p := range h.profiles {
		out = append(out, p)
	}
	return out
}

// Snapshots share documents, they are read only after being built.
func (h *Hub) fanoutMessages(changes []model.Change) {
	list := h.messageList()
	for _, t := range h.hstore.targets(wire.CollectionMessages) {
		t.handler.appendDataChan(&SessionData{ServerMsg: &wire.ServerMsg{Snapshot: &wire.Snapshot{
			SubID:      t.subID,
			Collection: wire.CollectionMessages,
			Messages:   list,
			Changes:    changes,
		}}})
	}
}

func (h *Hub) fanoutProfiles() {
	list := h.profileList()
	for _, t := range h.hstore.targets(wire.CollectionProfiles) {
		t.handler.appendDataChan(&SessionData{ServerMsg: &wire.ServerMsg{Snapshot: &wire.Snapshot{
			SubID:      t.subID,
			Collection: wire.CollectionProfiles,
			Profiles:   list,
		}}})
	}
}

// ServeHTTP handles websocket requests from the peer.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt32(&h.online) == 0 {
		http.Error(w, "This node is not ready", http.StatusServiceUnavailable)
		return
	}

	uid, err := h.authClient.Auth(r)
	if err != nil {
		glog.Errorf("ServeHTTP(): authenticate error: %v", err)
		http.Error(w, "Authenticate error", http.StatusForbidden)
		return
	}

	sess := &Session{
		Uid:        uid,
		Sid:        strings.ReplaceAll(uuid.New(), "-", ""),
		CreateTime: time.Now().Unix(),
		Ip:         getRemoteIP(r),
	}

	// If the upgrade fails, then Upgrade replies to the client with an HTTP error response.
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Errorf("ServeHTTP(): upgrader.Upgrade error, uid: %s, err: %s", uid, err)
		return
	}

	// NOTE:  after upgrade, `w.WriteHeader(...)`` causes error `response.Write on hijacked connection`.

	handler := &Handler{
		dataChan: make(chan *SessionData, dataChanSize),
		session:  sess,
		conn:     conn,
		api:      h.api,
		hub:      h,
		subs:     make(map[string]string),
	}

	conn.SetCloseHandler(func(code int, text string) error {
		glog.Infof("session closed by peer, session: %s, code: %d, text: %s", handler, code, text)
		handler.close(ReadError)
		return nil
	})

	h.addHandler(handler)

	go handler.recvLoop()
	go handler.sendLoop()
}

func (h *Hub) addHandler(handler *Handler) {
	h.hstore.add(handler)
	liveSessions.Inc()
	glog.V(5).Infof("session online: %s", handler)
}

func (h *Hub) delHandler(sid string) {
	if h.hstore.del(sid) {
		liveSessions.Dec()
	}
}

// NumSessions returns the number of connected sessions.
func (h *Hub) NumSessions() int {
	return h.hstore.size()
}

func getRemoteIP(r *http.Request) string {
	ip := r.Header.Get("X-REAL-IP")
	if ip == "" {
		if ips := r.Header.Get("X-FORWARDED-FOR"); ips != "" {
			slice := strings.Split(ips, ",")
			for _, x := range slice {
				if x = strings.TrimSpace(x); x != "" {
					ip = x
				}
			}
		}
	}
	if ip == "" {
		ip, _, _ = net.SplitHostPort(r.RemoteAddr)
	}

	return ip
}
