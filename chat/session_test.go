package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mqy/minichat/auth"
	"github.com/mqy/minichat/cache"
	"github.com/mqy/minichat/model"
	"github.com/mqy/minichat/reconcile"
	"github.com/mqy/minichat/remote"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var me = auth.Identity{ID: "me@x.com", DisplayName: "Me"}

type recNotifier struct {
	sync.Mutex
	toasts []string
}

func (n *recNotifier) Pulse() {}
func (n *recNotifier) Toast(text string) {
	n.Lock()
	n.toasts = append(n.toasts, text)
	n.Unlock()
}
func (n *recNotifier) ToastSupported() bool { return true }

func (n *recNotifier) count() int {
	n.Lock()
	defer n.Unlock()
	return len(n.toasts)
}

func at(sec int64) *time.Time {
	t := time.Unix(sec, 0).UTC()
	return &t
}

func ids(list []*model.Message) []string {
	out := []string{}
	for _, m := range list {
		out = append(out, m.ID)
	}
	return out
}

type fixture struct {
	mem   *remote.Memory
	store *cache.Store
	n     *recNotifier
	s     *Session
}

func newFixture() *fixture {
	f := &fixture{
		mem:   remote.NewMemory(),
		store: cache.New(cache.NewMemKV()),
		n:     &recNotifier{},
	}
	f.s = NewSession(Options{
		Self:     me,
		Messages: f.mem.Messages(),
		Profiles: f.mem.Profiles(),
		Cache:    f.store,
		Notifier: f.n,
	})
	return f
}

func (f *fixture) waitIDs(t *testing.T, want ...string) {
	want = append([]string{}, want...)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, ids(f.s.Messages()))
	}, waitFor, tick, "want %v, got %v", want, ids(f.s.Messages()))
}

func TestSessionFirstLoad(t *testing.T) {
	f := newFixture()
	f.store.SaveMessages([]*model.Message{{ID: "1", Text: "hi", SenderID: me.ID, CreatedAt: at(1)}})
	f.mem.Inject(
		&model.Message{ID: "1", Text: "hi", SenderID: me.ID, CreatedAt: at(1)},
		&model.Message{ID: "2", Text: "yo", SenderID: "other@x.com", CreatedAt: at(2)},
	)

	require.NoError(t, f.s.Activate(context.Background()))
	defer f.s.Deactivate()

	f.waitIDs(t, "1", "2")
	assert.Equal(t, reconcile.Live, f.s.State())
	assert.Equal(t, []string{"1", "2"}, ids(f.store.LoadMessages()))
	assert.Zero(t, f.n.count())

	f.mem.Inject(&model.Message{ID: "3", Text: "new", SenderID: "other@x.com", CreatedAt: at(3)})
	f.waitIDs(t, "1", "2", "3")
	require.Eventually(t, func() bool { return f.n.count() == 1 }, waitFor, tick)
	assert.Equal(t, "other: new", f.n.toasts[0])
}

func TestSessionShowsCacheWhileCold(t *testing.T) {
	f := newFixture()
	f.store.SaveMessages([]*model.Message{{ID: "c", Text: "cached", CreatedAt: at(1)}})

	var once sync.Once
	seen := make(chan []string, 1)
	f.s.OnChange(func() {
		once.Do(func() { seen <- ids(f.s.Messages()) })
	})
	require.NoError(t, f.s.Activate(context.Background()))
	defer f.s.Deactivate()

	select {
	case got := <-seen:
		assert.Equal(t, []string{"c"}, got)
	case <-time.After(waitFor):
		t.Fatal("no change")
	}
	// the remote is empty, the first snapshot replaces the cached list.
	f.waitIDs(t)
}

func TestSessionReactivate(t *testing.T) {
	f := newFixture()
	f.mem.Inject(&model.Message{ID: "1", SenderID: "other@x.com", Text: "a", CreatedAt: at(1)})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, f.s.Activate(ctx))
		assert.ErrorIs(t, f.s.Activate(ctx), ErrActive)
		nm, np := f.mem.NumSubscriptions()
		assert.Equal(t, 1, nm)
		assert.Equal(t, 1, np)
		f.waitIDs(t, "1")

		f.s.Deactivate()
		nm, np = f.mem.NumSubscriptions()
		assert.Zero(t, nm)
		assert.Zero(t, np)
	}
	// deactivated twice is fine.
	f.s.Deactivate()
	assert.Zero(t, f.n.count())
}

func TestSessionConcurrentActivate(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture()
		f.mem.Inject(&model.Message{ID: "1", SenderID: "other@x.com", Text: "a", CreatedAt: at(1)})

		const n = 8
		errs := make(chan error, n)
		var wg sync.WaitGroup
		for j := 0; j < n; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- f.s.Activate(context.Background())
			}()
		}
		wg.Wait()
		close(errs)

		var ok int
		for err := range errs {
			if err == nil {
				ok++
			} else {
				assert.ErrorIs(t, err, ErrActive)
			}
		}
		require.Equal(t, 1, ok)

		f.waitIDs(t, "1")
		assert.Equal(t, reconcile.Live, f.s.State())
		nm, np := f.mem.NumSubscriptions()
		assert.Equal(t, 1, nm)
		assert.Equal(t, 1, np)

		f.s.Deactivate()
	}
}

func TestSessionSendAndRender(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.s.Activate(ctx))
	defer f.s.Deactivate()

	require.NoError(t, f.mem.Profiles().Upsert(ctx, &model.Profile{Identity: me.ID, DisplayName: "Mimi", ThemeColor: "#FF6347"}))
	require.Eventually(t, func() bool { return f.s.Directory().Lookup(me.ID) != nil }, waitFor, tick)

	c := f.s.Composer()
	c.SetText("hello")
	require.NoError(t, c.Send(ctx, ""))
	assert.Empty(t, c.Text())

	require.Eventually(t, func() bool { return len(f.s.Messages()) == 1 }, waitFor, tick)
	lines := f.s.Render()
	require.Len(t, lines, 1)
	assert.Equal(t, "hello", lines[0].Text)
	assert.False(t, lines[0].Pending())
	assert.Equal(t, "Mimi", lines[0].Display.Name)
	assert.Equal(t, "#FF6347", lines[0].Display.Color)
	assert.True(t, lines[0].Display.Mine)
	// own message, no notification.
	assert.Zero(t, f.n.count())

	// renaming relabels the message already on display.
	require.NoError(t, f.s.SaveProfile(ctx, &model.Profile{DisplayName: "Momo"}))
	require.Eventually(t, func() bool { return f.s.Render()[0].Display.Name == "Momo" }, waitFor, tick)
	assert.Equal(t, "#FF6347", f.s.Render()[0].Display.Color)
	assert.Equal(t, "Momo", f.s.LocalProfile().DisplayName)

	assert.Error(t, f.s.SaveProfile(ctx, &model.Profile{DisplayName: "a name too long"}))
}

func TestSessionFeedErrorKeepsList(t *testing.T) {
	f := newFixture()
	f.mem.Inject(&model.Message{ID: "1", CreatedAt: at(1)})
	require.NoError(t, f.s.Activate(context.Background()))
	defer f.s.Deactivate()
	f.waitIDs(t, "1")

	f.mem.Fail(errors.New("permission denied"))
	require.Eventually(t, func() bool {
		nm, np := f.mem.NumSubscriptions()
		return nm == 0 && np == 0
	}, waitFor, tick)
	assert.Equal(t, []string{"1"}, ids(f.s.Messages()))
	assert.Equal(t, []string{"1"}, ids(f.store.LoadMessages()))
}

func TestLocalProfileDefaults(t *testing.T) {
	f := newFixture()
	p := f.s.LocalProfile()
	assert.Equal(t, me.ID, p.Identity)
	assert.Equal(t, "Me", p.DisplayName)
	assert.Equal(t, model.DefaultThemeColor, p.ThemeColor)
}
