package remote

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pborman/uuid"

	"github.com/mqy/minichat/model"
)

// Memory is an in-process document store holding both collections.
// It backs tests and the offline mode of the terminal client.
type Memory struct {
	sync.Mutex
	now      func() time.Time
	writeErr error
	messages map[string]*model.Message
	profiles map[string]*model.Profile
	msgSubs  map[*memMsgSub]struct{}
	profSubs map[*memProfileSub]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		now:      time.Now,
		messages: make(map[string]*model.Message),
		profiles: make(map[string]*model.Profile),
		msgSubs:  make(map[*memMsgSub]struct{}),
		profSubs: make(map[*memProfileSub]struct{}),
	}
}

// SetClock replaces the server clock.
func (m *Memory) SetClock(now func() time.Time) {
	m.Lock()
	m.now = now
	m.Unlock()
}

func (m *Memory) Messages() MessageCollection {
	return &memMessages{m}
}

func (m *Memory) Profiles() ProfileCollection {
	return &memProfiles{m}
}

// Inject stores documents as they are, pending ones included, and notifies subscribers.
func (m *Memory) Inject(msgs ...*model.Message) {
	m.Lock()
	defer m.Unlock()
	var changes []model.Change
	for _, v := range msgs {
		kind := model.Added
		if _, ok := m.messages[v.ID]; ok {
			kind = model.Modified
		}
		c := v.Clone()
		m.messages[c.ID] = c
		changes = append(changes, model.Change{Kind: kind, Message: c.Clone()})
	}
	m.broadcastMessages(changes)
}

// Confirm sets the server timestamp of a pending message.
func (m *Memory) Confirm(id string, t time.Time) error {
	m.Lock()
	defer m.Unlock()
	v, ok := m.messages[id]
	if !ok {
		return fmt.Errorf("message `%s` not found", id)
	}
	v.CreatedAt = &t
	m.broadcastMessages([]model.Change{{Kind: model.Modified, Message: v.Clone()}})
	return nil
}

// RejectWrites makes every following Add and Upsert fail with err, nil accepts writes again.
func (m *Memory) RejectWrites(err error) {
	m.Lock()
	m.writeErr = err
	m.Unlock()
}

// Fail terminates every live subscription with err.
func (m *Memory) Fail(err error) {
	m.Lock()
	defer m.Unlock()
	for s := range m.msgSubs {
		s.pump.Push(&MessageSnapshot{Err: err})
		s.pump.Finish()
		delete(m.msgSubs, s)
	}
	for s := range m.profSubs {
		s.pump.Push(&ProfileSnapshot{Err: err})
		s.pump.Finish()
		delete(m.profSubs, s)
	}
}

// NumSubscriptions returns the count of live message and profile subscriptions.
func (m *Memory) NumSubscriptions() (int, int) {
	m.Lock()
	defer m.Unlock()
	return len(m.msgSubs), len(m.profSubs)
}

func (m *Memory) messageSnapshot() []*model.Message {
	out := make([]*model.Message, 0, len(m.messages))
	for _, v := range m.messages {
		out = append(out, v)
	}
	return model.CloneMessages(out)
}

func (m *Memory) profileSnapshot() []*model.Profile {
	out := make([]*model.Profile, 0, len(m.profiles))
	for _, v := range m.profiles {
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identity < out[j].Identity
	})
	return out
}

// must hold lock.
func (m *Memory) broadcastMessages(changes []model.Change) {
	for s := range m.msgSubs {
		s.pump.Push(&MessageSnapshot{
			Messages: m.messageSnapshot(),
			Changes:  cloneChanges(changes),
		})
	}
}

// must hold lock.
func (m *Memory) broadcastProfiles() {
	for s := range m.profSubs {
		s.pump.Push(&ProfileSnapshot{Profiles: m.profileSnapshot()})
	}
}

func cloneChanges(changes []model.Change) []model.Change {
	out := make([]model.Change, 0, len(changes))
	for _, c := range changes {
		out = append(out, model.Change{Kind: c.Kind, Message: c.Message.Clone()})
	}
	return out
}

type memMessages struct {
	m *Memory
}

func (c *memMessages) Add(ctx context.Context, msg *model.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m := c.m
	m.Lock()
	defer m.Unlock()
	if m.writeErr != nil {
		return "", m.writeErr
	}

	v := msg.Clone()
	v.ID = strings.ReplaceAll(uuid.New(), "-", "")
	t := m.now()
	v.CreatedAt = &t
	m.messages[v.ID] = v
	glog.V(5).Infof("memory: add message %s from %s", v.ID, v.SenderID)
	m.broadcastMessages([]model.Change{{Kind: model.Added, Message: v.Clone()}})
	return v.ID, nil
}

func (c *memMessages) Subscribe(ctx context.Context) (MessageSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := c.m
	m.Lock()
	defer m.Unlock()

	s := &memMsgSub{m: m, pump: NewPump[*MessageSnapshot]()}
	snapshot := m.messageSnapshot()
	changes := make([]model.Change, 0, len(snapshot))
	for _, v := range snapshot {
		changes = append(changes, model.Change{Kind: model.Added, Message: v.Clone()})
	}
	s.pump.Push(&MessageSnapshot{Messages: snapshot, Changes: changes})
	m.msgSubs[s] = struct{}{}
	s.stop = context.AfterFunc(ctx, s.Close)
	return s, nil
}

type memMsgSub struct {
	m    *Memory
	pump *Pump[*MessageSnapshot]
	stop func() bool
}

func (s *memMsgSub) C() <-chan *MessageSnapshot {
	return s.pump.C()
}

func (s *memMsgSub) Close() {
	s.m.Lock()
	delete(s.m.msgSubs, s)
	stop := s.stop
	s.m.Unlock()
	if stop != nil {
		stop()
	}
	s.pump.Close()
}

type memProfiles struct {
	m *Memory
}

func (c *memProfiles) Upsert(ctx context.Context, p *model.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Identity == "" {
		return fmt.Errorf("profile: empty identity")
	}
	m := c.m
	m.Lock()
	defer m.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}

	if v, ok := m.profiles[p.Identity]; ok {
		v.Merge(p)
	} else {
		m.profiles[p.Identity] = p.Clone()
	}
	m.broadcastProfiles()
	return nil
}

func (c *memProfiles) Subscribe(ctx context.Context) (ProfileSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := c.m
	m.Lock()
	defer m.Unlock()

	s := &memProfileSub{m: m, pump: NewPump[*ProfileSnapshot]()}
	s.pump.Push(&ProfileSnapshot{Profiles: m.profileSnapshot()})
	m.profSubs[s] = struct{}{}
	s.stop = context.AfterFunc(ctx, s.Close)
	return s, nil
}

type memProfileSub struct {
	m    *Memory
	pump *Pump[*ProfileSnapshot]
	stop func() bool
}

func (s *memProfileSub) C() <-chan *ProfileSnapshot {
	return s.pump.C()
}

func (s *memProfileSub) Close() {
	s.m.Lock()
	delete(s.m.profSubs, s)
	stop := s.stop
	s.m.Unlock()
	if stop != nil {
		stop()
	}
	s.pump.Close()
}
