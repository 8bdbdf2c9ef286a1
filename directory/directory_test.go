package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mqy/minichat/model"
	"github.com/mqy/minichat/remote"
	"github.com/mqy/minichat/remote/mock"
)

func recv(t *testing.T, c <-chan *remote.ProfileSnapshot) *remote.ProfileSnapshot {
	t.Helper()
	select {
	case v, ok := <-c:
		require.True(t, ok)
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
	return nil
}

func TestApplyReplacesWholesale(t *testing.T) {
	d := New(remote.NewMemory().Profiles())
	var changes int
	d.OnChange(func() { changes++ })

	require.NoError(t, d.Apply(&remote.ProfileSnapshot{Profiles: []*model.Profile{
		{Identity: "a@x", DisplayName: "A", ThemeColor: "#FF5733"},
		{Identity: "b@x", DisplayName: "B"},
		{DisplayName: "no identity"},
	}}))
	assert.Len(t, d.CurrentProfiles(), 2)

	// fields missing from the new snapshot are gone: replace, not merge.
	require.NoError(t, d.Apply(&remote.ProfileSnapshot{Profiles: []*model.Profile{
		{Identity: "a@x", DisplayName: "A2"},
	}}))
	cur := d.CurrentProfiles()
	assert.Len(t, cur, 1)
	assert.Equal(t, &model.Profile{Identity: "a@x", DisplayName: "A2"}, cur["a@x"])
	assert.Nil(t, d.Lookup("b@x"))
	assert.Equal(t, 2, changes)
}

func TestApplyErrorKeepsLastGood(t *testing.T) {
	d := New(remote.NewMemory().Profiles())
	require.NoError(t, d.Apply(&remote.ProfileSnapshot{Profiles: []*model.Profile{{Identity: "a@x", DisplayName: "A"}}}))
	assert.Error(t, d.Apply(&remote.ProfileSnapshot{Err: errors.New("unavailable")}))
	assert.Equal(t, "A", d.Lookup("a@x").DisplayName)
}

func TestSnapshotIsReadOnlyCopy(t *testing.T) {
	d := New(remote.NewMemory().Profiles())
	require.NoError(t, d.Apply(&remote.ProfileSnapshot{Profiles: []*model.Profile{{Identity: "a@x", DisplayName: "A"}}}))
	cur := d.CurrentProfiles()
	cur["a@x"].DisplayName = "hacked"
	delete(cur, "a@x")
	assert.Equal(t, "A", d.Lookup("a@x").DisplayName)
}

func TestStartStopWithMemory(t *testing.T) {
	mem := remote.NewMemory()
	ctx := context.Background()
	d := New(mem.Profiles())

	c, err := d.Start(ctx)
	require.NoError(t, err)
	_, err = d.Start(ctx)
	assert.ErrorIs(t, err, ErrStarted)

	require.NoError(t, d.Apply(recv(t, c)))
	assert.Empty(t, d.CurrentProfiles())

	require.NoError(t, d.Publish(ctx, &model.Profile{Identity: "a@x", DisplayName: "Andi", ThemeColor: "#33FF57"}))
	require.NoError(t, d.Apply(recv(t, c)))
	assert.Equal(t, "Andi", d.Lookup("a@x").DisplayName)

	d.Stop()
	_, p := mem.NumSubscriptions()
	assert.Equal(t, 0, p)

	// changes while stopped are lost, resubscribe resumes from a full snapshot.
	require.NoError(t, mem.Profiles().Upsert(ctx, &model.Profile{Identity: "b@x", DisplayName: "Bayu"}))
	c, err = d.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Apply(recv(t, c)))
	assert.Len(t, d.CurrentProfiles(), 2)
	d.Stop()
	d.Stop()
}

func TestPublishValidates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	coll := mock.NewMockProfileCollection(ctrl)
	d := New(coll)

	assert.Error(t, d.Publish(context.Background(), &model.Profile{DisplayName: "A"}))
	assert.Error(t, d.Publish(context.Background(), &model.Profile{Identity: "a@x", DisplayName: "thirteen char"}))

	coll.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(errors.New("quota"))
	assert.Error(t, d.Publish(context.Background(), &model.Profile{Identity: "a@x", DisplayName: "A"}))
}
