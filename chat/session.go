// Package chat wires the cache, the feed, the directory and the reconciler of one chat screen.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/mqy/minichat/auth"
	"github.com/mqy/minichat/cache"
	"github.com/mqy/minichat/compose"
	"github.com/mqy/minichat/directory"
	"github.com/mqy/minichat/feed"
	"github.com/mqy/minichat/model"
	"github.com/mqy/minichat/notify"
	"github.com/mqy/minichat/present"
	"github.com/mqy/minichat/reconcile"
	"github.com/mqy/minichat/remote"
)

var ErrActive = errors.New("chat: session already active")

type Options struct {
	Self     auth.Identity
	Messages remote.MessageCollection
	Profiles remote.ProfileCollection
	Cache    *cache.Store
	Notifier notify.Notifier
	Scroller reconcile.Scroller // optional
}

// Line is a message joined with the profile directory, ready to render.
type Line struct {
	ID        string
	Text      string
	ImageData string
	CreatedAt *time.Time
	Display   present.Display
}

func (l *Line) Pending() bool {
	return l.CreatedAt == nil
}

// Session runs between Activate and Deactivate. Feed updates and directory snapshots
// are handled one at a time by a single goroutine.
type Session struct {
	opts     Options
	feed     *feed.Subscriber
	dir      *directory.Directory
	composer *compose.Composer

	lock       sync.Mutex
	rec        *reconcile.Reconciler
	activating bool
	cancel     context.CancelFunc
	done       chan struct{}
	onChange   func()
}

func NewSession(opts Options) *Session {
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	s := &Session{
		opts: opts,
		feed: feed.New(opts.Messages),
		dir:  directory.New(opts.Profiles),
	}
	s.composer = compose.New(opts.Self, opts.Messages, s.dir)
	s.rec = s.newReconciler()
	s.dir.OnChange(s.changed)
	return s
}

func (s *Session) newReconciler() *reconcile.Reconciler {
	r := reconcile.New(reconcile.Config{
		Self:     s.opts.Self,
		Cache:    s.opts.Cache,
		Notifier: s.opts.Notifier,
		Scroller: s.opts.Scroller,
		Profiles: s.dir,
	})
	r.OnChange(s.changed)
	return r
}

// OnChange registers a hook called from the session goroutine after the
// displayed list or the directory changed.
func (s *Session) OnChange(fn func()) {
	s.lock.Lock()
	s.onChange = fn
	s.lock.Unlock()
}

func (s *Session) changed() {
	s.lock.Lock()
	fn := s.onChange
	s.lock.Unlock()
	if fn != nil {
		fn()
	}
}

// Activate shows the cached list and opens both subscriptions.
func (s *Session) Activate(ctx context.Context) error {
	s.lock.Lock()
	if s.done != nil || s.activating {
		s.lock.Unlock()
		return ErrActive
	}
	s.activating = true
	// first load suppression applies to every activation.
	s.rec = s.newReconciler()
	rec := s.rec
	s.lock.Unlock()

	failed := func() {
		s.lock.Lock()
		s.activating = false
		s.lock.Unlock()
	}

	rec.Warm(s.opts.Cache.LoadMessages())

	ctx, cancel := context.WithCancel(ctx)
	updates, err := s.feed.Start(ctx)
	if err != nil {
		cancel()
		failed()
		return err
	}
	snapshots, err := s.dir.Start(ctx)
	if err != nil {
		s.feed.Stop()
		cancel()
		failed()
		return err
	}

	done := make(chan struct{})
	s.lock.Lock()
	s.activating = false
	s.cancel = cancel
	s.done = done
	s.lock.Unlock()

	go s.run(ctx, rec, updates, snapshots, done)
	glog.Infof("chat: session of %s activated", s.opts.Self.ID)
	return nil
}

// Deactivate releases both subscriptions and waits for the session goroutine.
func (s *Session) Deactivate() {
	s.lock.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.lock.Unlock()

	if done == nil {
		return
	}
	cancel()
	<-done
	s.feed.Stop()
	s.dir.Stop()
	glog.Infof("chat: session of %s deactivated", s.opts.Self.ID)
}

func (s *Session) run(ctx context.Context, rec *reconcile.Reconciler,
	updates <-chan *feed.Update, snapshots <-chan *remote.ProfileSnapshot, done chan<- struct{}) {
	defer close(done)

	for updates != nil || snapshots != nil {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				glog.Warningf("chat: message feed stopped, keep the last list")
				updates = nil
				continue
			}
			// errors are logged by the reconciler.
			_ = rec.Handle(u)
		case snap, ok := <-snapshots:
			if !ok {
				glog.Warningf("chat: profile directory stopped, keep the last profiles")
				snapshots = nil
				continue
			}
			s.applyProfiles(snap)
		}
	}
}

func (s *Session) applyProfiles(snap *remote.ProfileSnapshot) {
	defer func() {
		if v := recover(); v != nil {
			glog.Errorf("chat: apply profiles: recovered: %v", v)
		}
	}()
	if err := s.dir.Apply(snap); err != nil {
		glog.Errorf("chat: apply profiles: %v", err)
	}
}

func (s *Session) State() reconcile.State {
	return s.reconciler().State()
}

func (s *Session) reconciler() *reconcile.Reconciler {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.rec
}

// Messages returns a copy of the displayed list.
func (s *Session) Messages() []*model.Message {
	return s.reconciler().Messages()
}

// Render joins the displayed list with the current directory.
func (s *Session) Render() []Line {
	msgs := s.Messages()
	profiles := s.dir.CurrentProfiles()
	lines := make([]Line, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, Line{
			ID:        m.ID,
			Text:      m.Text,
			ImageData: m.ImageData,
			CreatedAt: m.CreatedAt,
			Display:   present.Resolve(s.opts.Self.ID, m, profiles),
		})
	}
	return lines
}

func (s *Session) Composer() *compose.Composer {
	return s.composer
}

func (s *Session) Directory() *directory.Directory {
	return s.dir
}

// LocalProfile returns the cached profile of the local user, defaults filled in.
func (s *Session) LocalProfile() *model.Profile {
	p := s.opts.Cache.LoadProfile()
	if p == nil {
		p = &model.Profile{}
	}
	p.Identity = s.opts.Self.ID
	if p.DisplayName == "" {
		p.DisplayName = s.opts.Self.DisplayName
	}
	if p.ThemeColor == "" {
		p.ThemeColor = model.DefaultThemeColor
	}
	return p
}

// SaveProfile publishes the edited profile and mirrors it to the local cache.
func (s *Session) SaveProfile(ctx context.Context, p *model.Profile) error {
	p = p.Clone()
	p.Identity = s.opts.Self.ID
	if err := s.dir.Publish(ctx, p); err != nil {
		return err
	}
	s.opts.Cache.SaveProfile(p)
	return nil
}
