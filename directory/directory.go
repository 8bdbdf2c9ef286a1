// Package directory keeps a live identity -> profile mapping fed by the remote profile collection.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/mqy/minichat/model"
	"github.com/mqy/minichat/remote"
)

var ErrStarted = errors.New("directory: already started")

// Directory is replaced wholesale on every remote snapshot. Readers get read-only copies.
// Nothing is buffered while stopped, a new Start resumes from the next full snapshot.
type Directory struct {
	sync.Mutex
	profiles remote.ProfileCollection

	current  atomic.Value // map[string]*model.Profile
	onChange func()

	sub    remote.ProfileSubscription
	cancel context.CancelFunc
}

func New(profiles remote.ProfileCollection) *Directory {
	d := &Directory{profiles: profiles}
	d.current.Store(map[string]*model.Profile{})
	return d
}

// OnChange registers a hook called after each applied snapshot.
func (d *Directory) OnChange(fn func()) {
	d.Lock()
	d.onChange = fn
	d.Unlock()
}

// Start opens the subscription, snapshots are delivered on the returned channel and must
// be passed to Apply by the consumer.
func (d *Directory) Start(ctx context.Context) (<-chan *remote.ProfileSnapshot, error) {
	d.Lock()
	defer d.Unlock()
	if d.sub != nil {
		return nil, ErrStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	sub, err := d.profiles.Subscribe(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("directory: subscribe: %w", err)
	}
	d.sub = sub
	d.cancel = cancel
	glog.V(5).Infof("directory: subscribed")
	return sub.C(), nil
}

// Stop releases the subscription.
func (d *Directory) Stop() {
	d.Lock()
	sub, cancel := d.sub, d.cancel
	d.sub, d.cancel = nil, nil
	d.Unlock()

	if sub == nil {
		return
	}
	cancel()
	sub.Close()
	glog.V(5).Infof("directory: unsubscribed")
}

// Apply replaces the mapping with the snapshot. On error the last good mapping stays.
func (d *Directory) Apply(snap *remote.ProfileSnapshot) error {
	if snap == nil {
		return nil
	}
	if snap.Err != nil {
		glog.Errorf("directory: subscription error: %v", snap.Err)
		return snap.Err
	}

	next := make(map[string]*model.Profile, len(snap.Profiles))
	for _, p := range snap.Profiles {
		if p == nil || p.Identity == "" {
			continue
		}
		next[p.Identity] = p.Clone()
	}
	d.current.Store(next)
	glog.V(7).Infof("directory: %d profiles", len(next))

	d.Lock()
	fn := d.onChange
	d.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// CurrentProfiles returns a copy of the mapping.
func (d *Directory) CurrentProfiles() map[string]*model.Profile {
	cur := d.current.Load().(map[string]*model.Profile)
	out := make(map[string]*model.Profile, len(cur))
	for k, v := range cur {
		out[k] = v.Clone()
	}
	return out
}

// Lookup returns a copy of the profile of `identity`, nil if unknown.
func (d *Directory) Lookup(identity string) *model.Profile {
	cur := d.current.Load().(map[string]*model.Profile)
	if p, ok := cur[identity]; ok {
		return p.Clone()
	}
	return nil
}

// Publish upserts the profile with merge semantics, as the profile editor does.
func (d *Directory) Publish(ctx context.Context, p *model.Profile) error {
	if p.Identity == "" {
		return fmt.Errorf("directory: publish: empty identity")
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("directory: publish: %w", err)
	}
	if err := d.profiles.Upsert(ctx, p); err != nil {
		return fmt.Errorf("directory: publish: %w", err)
	}
	return nil
}
