package cache

import (
	"encoding/json"

	"github.com/golang/glog"

	"github.com/mqy/minichat/model"
)

const (
	MessagesKey = "chat_history"
	ProfileKey  = "my_profile"
)

// Store is the local cache of the merged message list and the own profile.
// It is a warm start optimization only: loads fail soft to empty, saves are best effort.
type Store struct {
	kv KV
}

func New(kv KV) *Store {
	return &Store{kv: kv}
}

// LoadMessages returns the cached list, or nil on any read or decode error.
func (s *Store) LoadMessages() []*model.Message {
	v, ok, err := s.kv.Get(MessagesKey)
	if err != nil {
		glog.Errorf("cache: read `%s` error: %v", MessagesKey, err)
		return nil
	}
	if !ok {
		return nil
	}

	var list []*model.Message
	if err := json.Unmarshal([]byte(v), &list); err != nil {
		glog.Errorf("cache: decode `%s` error: %v", MessagesKey, err)
		return nil
	}

	out := list[:0]
	for _, m := range list {
		if m != nil && m.ID != "" {
			out = append(out, m)
		}
	}
	glog.V(5).Infof("cache: loaded %d messages", len(out))
	return out
}

// SaveMessages overwrites the cached list. Errors are logged.
func (s *Store) SaveMessages(list []*model.Message) {
	if list == nil {
		list = []*model.Message{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		glog.Errorf("cache: encode messages error: %v", err)
		return
	}
	if err := s.kv.Set(MessagesKey, string(b)); err != nil {
		glog.Errorf("cache: write `%s` error: %v", MessagesKey, err)
		return
	}
	glog.V(7).Infof("cache: saved %d messages, %d bytes", len(list), len(b))
}

// LoadProfile returns the own cached profile without identity, nil if absent or broken.
func (s *Store) LoadProfile() *model.Profile {
	v, ok, err := s.kv.Get(ProfileKey)
	if err != nil {
		glog.Errorf("cache: read `%s` error: %v", ProfileKey, err)
		return nil
	}
	if !ok {
		return nil
	}

	var p model.Profile
	if err := json.Unmarshal([]byte(v), &p); err != nil {
		glog.Errorf("cache: decode `%s` error: %v", ProfileKey, err)
		return nil
	}
	p.Identity = ""
	return &p
}

// SaveProfile overwrites the own cached profile, the identity is not stored.
func (s *Store) SaveProfile(p *model.Profile) {
	if p == nil {
		return
	}
	c := p.Clone()
	c.Identity = ""
	b, err := json.Marshal(c)
	if err != nil {
		glog.Errorf("cache: encode profile error: %v", err)
		return
	}
	if err := s.kv.Set(ProfileKey, string(b)); err != nil {
		glog.Errorf("cache: write `%s` error: %v", ProfileKey, err)
	}
}
