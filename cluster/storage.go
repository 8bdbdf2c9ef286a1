package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pborman/uuid"
	kafka "github.com/segmentio/kafka-go"

	"github.com/mqy/minichat/model"
	"github.com/mqy/minichat/retry"
	"github.com/mqy/minichat/store"
)

// storage consumes submitted messages from kafka, stamps them with the server time,
// saves and pushes them to the hub.
// There MUST have exactly one storage instance in cluster.
type storage struct {
	ds            store.IDocStore
	valueMaxBytes int
	kafkaReader   IKafkaReader
	pushChan      chan<- *model.Message
	wg            sync.WaitGroup
}

func newStorage(ds store.IDocStore, kafkaReader IKafkaReader, pushChan chan<- *model.Message,
	valueMaxBytes int) *storage {
	return &storage{
		ds:            ds,
		valueMaxBytes: valueMaxBytes,
		kafkaReader:   kafkaReader,
		pushChan:      pushChan,
	}
}

// run consumes messages from kafka until ctx is done.
// It may block at reading kafka message.
func (s *storage) run(ctx context.Context, stopDoneNotifyC chan<- struct{}) {
	glog.Info("storage: enter")

	s.wg.Add(1)
	go s.consumeLoop(ctx)

	glog.Info("storage: ready")

	<-ctx.Done()

	glog.Info("storage: stopping")
	_ = s.kafkaReader.Close() // slow: take about 7s

	glog.Info("storage: stop wait")
	s.wg.Wait()

	glog.Info("storage: stopped")
	stopDoneNotifyC <- struct{}{}
}

func (s *storage) consumeLoop(ctx context.Context) {
	glog.Info("storage: consume loop enter")

	defer func() {
		glog.Info("storage: consume loop exited")
		s.wg.Done()
	}()

	b := retry.New(ctx, "storage: fetch")

	for {
		glog.V(5).Info("storage: fetching message ...")
		msg, err := s.kafkaReader.FetchMessage(ctx)
		glog.V(5).Info("storage: fetch message done")

		if err != nil {
			glog.Errorf("storage: fetch from kafka err: %v", err)
			if errors.Is(err, context.Canceled) {
				glog.V(5).Info("storage: fetch was cancelled")
				return
			}
			if !b.Wait() {
				return
			}
			continue
		}
		b.Reset()

		// skip: bad format or too large.
		m := s.decodeKafkaMsg(&msg)
		if m != nil {
			saved, ok := s.save(ctx, &msg, m)
			if !ok {
				return
			}
			if !saved {
				m = nil
			}
		}
		if !s.commit(ctx, &msg) {
			return
		}
		if m == nil {
			continue
		}

		glog.V(5).Infof("storage: push message %s to hub", m.ID)
		select {
		case s.pushChan <- m:
		case <-ctx.Done():
			return
		}
	}
}

// save retries until the message is saved or discarded, `ok` is false when ctx is done first.
func (s *storage) save(ctx context.Context, msg *kafka.Message, m *model.Message) (saved, ok bool) {
	var discard bool
	err := retry.Do(ctx, "storage: save", func() error {
		glog.V(5).Infof("storage: saving %s, partition: %d, offset: %d", m.ID, msg.Partition, msg.Offset)
		err := s.ds.SaveMessage(ctx, msg.Partition, msg.Offset, m)
		if err == nil {
			return nil
		}
		glog.Errorf("storage: save message to mysql err: %v", err)
		if errors.Is(err, context.Canceled) {
			return retry.Permanent(err)
		}
		if s.ds.IsDupKeyError(err) || errors.Is(err, store.ErrTooLarge) {
			// another document holds this position or id, never succeeds.
			discard = true
			return retry.Permanent(err)
		}
		return err
	})

	switch {
	case err == nil:
		storedMessages.Inc()
		return true, true
	case discard:
		glog.Errorf("storage: discard message %s at %d/%d", m.ID, msg.Partition, msg.Offset)
		discardedMessages.Inc()
		return false, true
	default:
		glog.V(5).Infof("storage: save was cancelled: %v", err)
		return false, false
	}
}

func (s *storage) commit(ctx context.Context, msg *kafka.Message) bool {
	// If this message is not committed back, it will be fetched by in next FetchMessage().
	// docStore.SaveMessage() handles this case when gets duplicate key error.
	err := retry.Do(ctx, "storage: commit to kafka", func() error {
		err := s.kafkaReader.CommitMessages(ctx, *msg)
		if errors.Is(err, context.Canceled) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		glog.V(5).Infof("storage: commit to kafka was cancelled: %v", err)
		return false
	}
	return true
}

// decodeKafkaMsg returns the message with server assigned fields, nil if it should be skipped.
func (s *storage) decodeKafkaMsg(msg *kafka.Message) *model.Message {
	if len(msg.Value) > s.valueMaxBytes {
		glog.Errorf("storage: kafka value out of limit, offset: %d, %d bytes", msg.Offset, len(msg.Value))
		discardedMessages.Inc()
		return nil
	}
	var v model.Message
	if err := json.Unmarshal(msg.Value, &v); err != nil {
		glog.Errorf("storage: failed to unmarshal kafka msg value: `%s`, error: %v", msg.Value, err)
		discardedMessages.Inc()
		return nil
	}
	if v.SenderID == "" || !v.HasContent() {
		glog.Errorf("storage: ignore message without sender or content, offset: %d", msg.Offset)
		discardedMessages.Inc()
		return nil
	}

	// redelivery of the same kafka message gets the same id.
	if v.ID == "" {
		v.ID = offsetID(msg)
	}
	t := msg.Time.UTC().Truncate(time.Millisecond)
	if msg.Time.IsZero() {
		t = time.Now().UTC().Truncate(time.Millisecond)
	}
	v.CreatedAt = &t
	return &v
}

func offsetID(msg *kafka.Message) string {
	name := fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	return strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpace_OID, []byte(name)).String(), "-", "")
}
