// Package reconcile merges the message feed with the local cache into the one ordered
// message list shown to the user, and decides when a new message is notified.
package reconcile

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/golang/glog"

	"github.com/mqy/minichat/auth"
	"github.com/mqy/minichat/feed"
	"github.com/mqy/minichat/model"
	"github.com/mqy/minichat/notify"
	"github.com/mqy/minichat/present"
)

const toastMaxRunes = 80

type State int32

const (
	// Cold shows the last cache load, no feed snapshot received yet.
	Cold State = iota
	// Live shows the latest feed snapshot. There is no way back to Cold.
	Live
)

func (s State) String() string {
	switch s {
	case Cold:
		return "cold"
	case Live:
		return "live"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type MessageCache interface {
	SaveMessages([]*model.Message)
}

type Scroller interface {
	ScrollToEnd() error
}

type ProfileSource interface {
	Lookup(identity string) *model.Profile
}

type Config struct {
	Self     auth.Identity
	Cache    MessageCache
	Notifier notify.Notifier
	Scroller Scroller      // optional
	Profiles ProfileSource // optional, names the sender in toasts.
}

// Reconciler owns the merged list. Handle must be called from one goroutine;
// Messages and State may be called from any goroutine.
type Reconciler struct {
	conf Config

	list  atomic.Value // []*model.Message, replaced wholesale.
	state int32

	// only touched by Handle.
	firstLoad bool
	seen      map[string]struct{}

	hookLock sync.Mutex
	onChange func()
}

func New(conf Config) *Reconciler {
	if conf.Notifier == nil {
		conf.Notifier = notify.Nop{}
	}
	r := &Reconciler{
		conf:      conf,
		firstLoad: true,
		seen:      make(map[string]struct{}),
	}
	r.list.Store([]*model.Message{})
	return r
}

// OnChange registers a hook called after the displayed list changed.
func (r *Reconciler) OnChange(fn func()) {
	r.hookLock.Lock()
	r.onChange = fn
	r.hookLock.Unlock()
}

func (r *Reconciler) State() State {
	return State(atomic.LoadInt32(&r.state))
}

// Messages returns a copy of the displayed list.
func (r *Reconciler) Messages() []*model.Message {
	cur := r.list.Load().([]*model.Message)
	out := make([]*model.Message, len(cur))
	for i, m := range cur {
		out[i] = m.Clone()
	}
	return out
}

// Warm displays the cache load while Cold. It is ignored once Live.
func (r *Reconciler) Warm(list []*model.Message) {
	if r.State() == Live {
		glog.V(5).Infof("reconcile: ignore warm start, already live")
		return
	}
	next, err := prepare(list)
	if err != nil {
		glog.Errorf("reconcile: ignore cache load: %v", err)
		return
	}
	r.list.Store(next)
	glog.V(5).Infof("reconcile: warm start with %d cached messages", len(next))
	r.changed()
}

// Handle processes one feed update. On error the displayed list and the cache are untouched.
func (r *Reconciler) Handle(u *feed.Update) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("reconcile: recovered: %v", v)
			glog.Error(err)
		}
	}()

	if u == nil {
		return nil
	}
	if u.Err != nil {
		glog.Errorf("reconcile: feed error, keep %d messages on display: %v",
			len(r.list.Load().([]*model.Message)), u.Err)
		return u.Err
	}

	next, err := prepare(u.Snapshot)
	if err != nil {
		glog.Errorf("reconcile: drop update: %v", err)
		return err
	}

	var fresh []*model.Message
	if !r.firstLoad {
		fresh = r.freshForeign(u.Added)
	}

	r.list.Store(next)
	atomic.StoreInt32(&r.state, int32(Live))
	for _, m := range next {
		r.seen[m.ID] = struct{}{}
	}
	for _, m := range fresh {
		r.seen[m.ID] = struct{}{}
	}

	guard("save cache", func() { r.conf.Cache.SaveMessages(next) })

	for _, m := range fresh {
		text := r.toastText(m)
		glog.V(5).Infof("reconcile: notify new message %s from %s", m.ID, m.SenderID)
		notify.Fire(r.conf.Notifier, text)
	}

	r.firstLoad = false

	if s := r.conf.Scroller; s != nil {
		guard("scroll", func() {
			if err := s.ScrollToEnd(); err != nil {
				glog.Warningf("reconcile: scroll to end: %v", err)
			}
		})
	}

	glog.V(7).Infof("reconcile: displaying %d messages, %d new", len(next), len(fresh))
	r.changed()
	return nil
}

// freshForeign returns added messages from others never seen on this subscription.
// Redelivered documents, e.g. after a transport reconnect, are not fresh.
func (r *Reconciler) freshForeign(added []*model.Message) []*model.Message {
	var out []*model.Message
	dup := make(map[string]struct{})
	for _, m := range added {
		if m == nil || m.ID == "" || m.SenderID == r.conf.Self.ID {
			continue
		}
		if _, ok := r.seen[m.ID]; ok {
			continue
		}
		if _, ok := dup[m.ID]; ok {
			continue
		}
		dup[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

func (r *Reconciler) toastText(m *model.Message) string {
	var profiles map[string]*model.Profile
	if src := r.conf.Profiles; src != nil {
		if p := src.Lookup(m.SenderID); p != nil {
			profiles = map[string]*model.Profile{m.SenderID: p}
		}
	}
	name := present.Resolve(r.conf.Self.ID, m, profiles).Name

	text := m.Text
	if text == "" && m.ImageData != "" {
		return name + " sent a photo"
	}
	if utf8.RuneCountInString(text) > toastMaxRunes {
		text = string([]rune(text)[:toastMaxRunes]) + "..."
	}
	return name + ": " + text
}

func (r *Reconciler) changed() {
	r.hookLock.Lock()
	fn := r.onChange
	r.hookLock.Unlock()
	if fn != nil {
		guard("on change", fn)
	}
}

// prepare validates and copies the snapshot into display order.
func prepare(snapshot []*model.Message) ([]*model.Message, error) {
	ids := make(map[string]struct{}, len(snapshot))
	for i, m := range snapshot {
		if m == nil {
			return nil, fmt.Errorf("document #%d: nil", i)
		}
		if m.ID == "" {
			return nil, fmt.Errorf("document #%d: empty id", i)
		}
		if _, ok := ids[m.ID]; ok {
			return nil, fmt.Errorf("document #%d: duplicate id `%s`", i, m.ID)
		}
		ids[m.ID] = struct{}{}
	}
	return model.CloneMessages(snapshot), nil
}

func guard(what string, fn func()) {
	defer func() {
		if v := recover(); v != nil {
			glog.Errorf("reconcile: %s: recovered: %v", what, v)
		}
	}()
	fn()
}
