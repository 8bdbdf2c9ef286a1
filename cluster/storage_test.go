package cluster

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/golang/mock/gomock"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cluster_mock "github.com/mqy/minichat/cluster/mock"
	"github.com/mqy/minichat/model"
	store_mock "github.com/mqy/minichat/store/mock"
)

func TestDecodeKafkaMsg(t *testing.T) {
	s := newStorage(nil, nil, nil, 256)
	now := time.Date(2024, 5, 1, 8, 0, 0, 123456789, time.UTC)

	m := s.decodeKafkaMsg(&kafka.Message{Topic: "t", Offset: 9, Time: now,
		Value: []byte(`{"id":"abc","text":"hi","senderId":"a@x.com","createdAt":null}`)})
	require.NotNil(t, m)
	assert.Equal(t, "abc", m.ID)
	assert.Equal(t, now.Truncate(time.Millisecond), *m.CreatedAt)

	km := &kafka.Message{Topic: "t", Partition: 1, Offset: 10, Time: now,
		Value: []byte(`{"text":"","imageData":"data:image/jpeg;base64,AA==","senderId":"a@x.com"}`)}
	m = s.decodeKafkaMsg(km)
	require.NotNil(t, m)
	assert.Len(t, m.ID, 32)
	assert.Equal(t, m.ID, s.decodeKafkaMsg(km).ID)
	assert.NotEqual(t, m.ID, offsetID(&kafka.Message{Topic: "t", Partition: 1, Offset: 11}))

	for _, value := range []string{
		`{"text":"hi","senderId":"a@x.com"`,
		`{"text":"  ","senderId":"a@x.com"}`,
		`{"text":"hi"}`,
		`{"text":"` + strings.Repeat("x", 300) + `","senderId":"a@x.com"}`,
	} {
		assert.Nil(t, s.decodeKafkaMsg(&kafka.Message{Value: []byte(value), Time: now}), value)
	}
}

type consumeFixture struct {
	ctx       context.Context
	cancel    context.CancelFunc
	kafkaMock *cluster_mock.MockIKafkaReader
	storeMock *store_mock.MockIDocStore
	pushC     chan *model.Message
	s         *storage
}

func newConsumeFixture(t *testing.T, msgs ...kafka.Message) *consumeFixture {
	mockCtrl := gomock.NewController(t)
	t.Cleanup(mockCtrl.Finish)

	f := &consumeFixture{
		kafkaMock: cluster_mock.NewMockIKafkaReader(mockCtrl),
		storeMock: store_mock.NewMockIDocStore(mockCtrl),
		pushC:     make(chan *model.Message, 10),
	}
	f.ctx, f.cancel = context.WithCancel(context.Background())
	f.s = newStorage(f.storeMock, f.kafkaMock, f.pushC, 1024)

	var calls []*gomock.Call
	for _, m := range msgs {
		calls = append(calls, f.kafkaMock.EXPECT().FetchMessage(gomock.Any()).Return(m, nil))
	}
	calls = append(calls, f.kafkaMock.EXPECT().FetchMessage(gomock.Any()).DoAndReturn(
		func(ctx context.Context) (kafka.Message, error) {
			<-ctx.Done()
			return kafka.Message{}, ctx.Err()
		}))
	gomock.InOrder(calls...)
	return f
}

func (f *consumeFixture) run(t *testing.T, wantPushed int) []*model.Message {
	f.s.wg.Add(1)
	go f.s.consumeLoop(f.ctx)

	var out []*model.Message
	for i := 0; i < wantPushed; i++ {
		select {
		case m := <-f.pushC:
			out = append(out, m)
		case <-time.After(5 * time.Second):
			t.Fatalf("pushed %d messages, want %d", len(out), wantPushed)
		}
	}
	f.cancel()
	f.s.wg.Wait()
	assert.Empty(t, f.pushC)
	return out
}

func TestConsumeLoop(t *testing.T) {
	now := time.Now()
	f := newConsumeFixture(t,
		kafka.Message{Offset: 1, Time: now, Value: []byte(`{"id":"a","text":"hi","senderId":"a@x.com"}`)},
		kafka.Message{Offset: 2, Time: now, Value: []byte(`not json`)},
		kafka.Message{Offset: 3, Time: now, Value: []byte(`{"id":"b","text":"yo","senderId":"b@x.com"}`)},
	)

	f.storeMock.EXPECT().SaveMessage(gomock.Any(), 0, int64(1), gomock.Any()).Return(nil)
	f.storeMock.EXPECT().SaveMessage(gomock.Any(), 0, int64(3), gomock.Any()).Return(nil)
	f.kafkaMock.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Return(nil).Times(3)

	out := f.run(t, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
	assert.NotNil(t, out[0].CreatedAt)
}

func TestConsumeLoopRetry(t *testing.T) {
	f := newConsumeFixture(t,
		kafka.Message{Offset: 1, Time: time.Now(), Value: []byte(`{"id":"a","text":"hi","senderId":"a@x.com"}`)},
	)

	gomock.InOrder(
		f.storeMock.EXPECT().SaveMessage(gomock.Any(), 0, int64(1), gomock.Any()).Return(errors.New("bad connection")),
		f.storeMock.EXPECT().SaveMessage(gomock.Any(), 0, int64(1), gomock.Any()).Return(nil),
	)
	f.storeMock.EXPECT().IsDupKeyError(gomock.Any()).Return(false)
	gomock.InOrder(
		f.kafkaMock.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Return(errors.New("rebalance")),
		f.kafkaMock.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Return(nil),
	)

	out := f.run(t, 1)
	assert.Equal(t, "a", out[0].ID)
}

func TestConsumeLoopDiscardDupKey(t *testing.T) {
	f := newConsumeFixture(t,
		kafka.Message{Offset: 1, Time: time.Now(), Value: []byte(`{"id":"a","text":"hi","senderId":"a@x.com"}`)},
		kafka.Message{Offset: 2, Time: time.Now(), Value: []byte(`{"id":"b","text":"hi","senderId":"a@x.com"}`)},
	)

	dup := &mysql.MySQLError{Number: 1062}
	f.storeMock.EXPECT().SaveMessage(gomock.Any(), 0, int64(1), gomock.Any()).Return(dup)
	f.storeMock.EXPECT().IsDupKeyError(dup).Return(true)
	f.storeMock.EXPECT().SaveMessage(gomock.Any(), 0, int64(2), gomock.Any()).Return(nil)
	f.kafkaMock.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	out := f.run(t, 1)
	assert.Equal(t, "b", out[0].ID)
}

func TestConsumeLoopSameOffsetOtherPartition(t *testing.T) {
	now := time.Now()
	f := newConsumeFixture(t,
		kafka.Message{Partition: 0, Offset: 5, Time: now, Value: []byte(`{"id":"a","text":"hi","senderId":"a@x.com"}`)},
		kafka.Message{Partition: 1, Offset: 5, Time: now, Value: []byte(`{"id":"b","text":"yo","senderId":"b@x.com"}`)},
	)

	saved := map[[2]int64]string{}
	f.storeMock.EXPECT().SaveMessage(gomock.Any(), gomock.Any(), int64(5), gomock.Any()).DoAndReturn(
		func(_ context.Context, partition int, offset int64, m *model.Message) error {
			key := [2]int64{int64(partition), offset}
			if _, ok := saved[key]; ok {
				return &mysql.MySQLError{Number: 1062}
			}
			saved[key] = m.ID
			return nil
		}).Times(2)
	f.kafkaMock.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	out := f.run(t, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
	assert.Equal(t, map[[2]int64]string{{0, 5}: "a", {1, 5}: "b"}, saved)
}

func TestPublisher(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	writer := cluster_mock.NewMockIKafkaWriter(mockCtrl)
	p := NewPublisher(writer, 128)

	ts := time.Now()
	writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msgs ...kafka.Message) error {
			require.Len(t, msgs, 1)
			assert.Equal(t, "id1", string(msgs[0].Key))
			assert.JSONEq(t, `{"id":"id1","text":"hi","senderId":"a@x.com","createdAt":null}`, string(msgs[0].Value))
			return nil
		})
	require.NoError(t, p.Submit(context.Background(), &model.Message{ID: "id1", Text: "hi", SenderID: "a@x.com", CreatedAt: &ts}))

	assert.Error(t, p.Submit(context.Background(), &model.Message{ID: "id2", Text: strings.Repeat("x", 200), SenderID: "a@x.com"}))

	writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Return(errors.New("leader not available"))
	assert.Error(t, p.Submit(context.Background(), &model.Message{ID: "id3", Text: "hi", SenderID: "a@x.com"}))

	writer.EXPECT().Close().Return(nil)
	assert.NoError(t, p.Close())
}
