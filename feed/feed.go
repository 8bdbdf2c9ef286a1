// Package feed keeps a live, ordered view of the remote message collection.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/mqy/minichat/model"
	"github.com/mqy/minichat/remote"
)

var ErrStarted = errors.New("feed: already started")

// Update is delivered on every change notification of the subscription.
type Update struct {
	Snapshot []*model.Message // complete snapshot, order by created time asc, pending last.
	Added    []*model.Message
	Modified []*model.Message
	First    bool // the first update since the subscription started.

	// Err is set on the last update of a failed subscription, other fields are empty.
	Err error
}

// Subscriber owns at most one live message subscription.
type Subscriber struct {
	sync.Mutex
	messages remote.MessageCollection

	sub    remote.MessageSubscription
	cancel context.CancelFunc
	done   chan struct{}
}

func New(messages remote.MessageCollection) *Subscriber {
	return &Subscriber{messages: messages}
}

// Start opens the subscription. Updates are delivered in order on the returned channel,
// which is closed after Stop or after an update carrying `Err`.
func (s *Subscriber) Start(ctx context.Context) (<-chan *Update, error) {
	s.Lock()
	defer s.Unlock()
	if s.sub != nil {
		return nil, ErrStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	sub, err := s.messages.Subscribe(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("feed: subscribe: %w", err)
	}

	out := make(chan *Update)
	s.sub = sub
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, sub, out, s.done)

	glog.V(5).Infof("feed: subscribed")
	return out, nil
}

// Stop releases the subscription and waits for the delivery goroutine. It is safe to Start again.
func (s *Subscriber) Stop() {
	s.Lock()
	sub, cancel, done := s.sub, s.cancel, s.done
	s.sub, s.cancel, s.done = nil, nil, nil
	s.Unlock()

	if sub == nil {
		return
	}
	cancel()
	sub.Close()
	<-done
	glog.V(5).Infof("feed: unsubscribed")
}

func (s *Subscriber) run(ctx context.Context, sub remote.MessageSubscription, out chan<- *Update, done chan<- struct{}) {
	defer func() {
		close(out)
		close(done)
	}()

	first := true
	for {
		var u *Update
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-sub.C():
			if !ok {
				if ctx.Err() != nil {
					return
				}
				u = &Update{Err: remote.ErrClosed}
			} else if snap.Err != nil {
				u = &Update{Err: snap.Err}
			} else {
				u = Convert(snap, first)
				first = false
			}
		}

		if u.Err != nil {
			glog.Errorf("feed: subscription error: %v", u.Err)
		}

		select {
		case out <- u:
		case <-ctx.Done():
			return
		}
		if u.Err != nil {
			return
		}
	}
}

// Convert turns a remote snapshot into an Update.
func Convert(snap *remote.MessageSnapshot, first bool) *Update {
	u := &Update{
		Snapshot: model.CloneMessages(snap.Messages),
		First:    first,
	}
	for _, c := range snap.Changes {
		if c.Message == nil {
			continue
		}
		switch c.Kind {
		case model.Added:
			u.Added = append(u.Added, c.Message.Clone())
		case model.Modified:
			u.Modified = append(u.Modified, c.Message.Clone())
		default:
			// no delete path.
			glog.V(5).Infof("feed: ignore change `%s` of %s", c.Kind, c.Message.ID)
		}
	}
	return u
}
