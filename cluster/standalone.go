package cluster

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"
	kafka "github.com/segmentio/kafka-go"

	"github.com/mqy/minichat/model"
	"github.com/mqy/minichat/retry"
	"github.com/mqy/minichat/store"
)

const (
	kafkaReadTimeout = 10 * time.Second
)

type Conf struct {
	Addr  string
	Mux   http.Handler
	Hub   IHub
	Store store.IDocStore

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupId string

	PayloadMaxBytes int
}

// Standalone is a standalone server: http server, hub and storage in one process.
type Standalone struct {
	ICluster

	conf       *Conf
	httpServer *http.Server
	storage    *storage
	storedC    chan *model.Message
}

func NewStandalone(conf *Conf) *Standalone {
	kafkaReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: conf.KafkaBrokers,
		GroupID: conf.KafkaGroupId,
		Topic:   conf.KafkaTopic,
		Dialer: &kafka.Dialer{
			Timeout:   kafkaReadTimeout,
			DualStack: true,
		},
	})
	return newStandalone(conf, kafkaReader)
}

func newStandalone(conf *Conf, kafkaReader IKafkaReader) *Standalone {
	s := &Standalone{
		conf:       conf,
		httpServer: &http.Server{Handler: conf.Mux},
		storedC:    make(chan *model.Message),
	}
	s.storage = newStorage(conf.Store, kafkaReader, s.storedC, conf.PayloadMaxBytes)
	return s
}

// NewKafkaWriter returns the writer of message submissions.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.Hash{},
		Dialer: &kafka.Dialer{
			Timeout:   kafkaWriteTimeout,
			DualStack: true,
		},
	})
}

func (s *Standalone) Run(ctx context.Context, stopNotifyCh chan<- struct{}) {
	glog.Infof("standalone cluster is starting")

	lis, err := net.Listen("tcp", s.conf.Addr)
	if err != nil {
		err := fmt.Errorf("listen %s error: %v", s.conf.Addr, err)
		glog.Error(err)
		panic(err)
	}
	s.serve(ctx, lis, stopNotifyCh)
}

func (s *Standalone) serve(ctx context.Context, lis net.Listener, stopNotifyCh chan<- struct{}) {
	go func() {
		glog.Infof("http server is listening %v", lis.Addr())
		if err := s.httpServer.Serve(lis); errors.Is(err, http.ErrServerClosed) {
			glog.Infof("http server closed")
		} else if err != nil {
			err := fmt.Errorf("error serve http mux server: %v", err)
			glog.Error(err)
			panic(err)
		}
	}()

	defer func() {
		s.httpServer.Shutdown(context.Background())
		glog.Infof("standalone cluster: http server shutdown done")
		glog.Infof("standalone cluster: stopped")
		stopNotifyCh <- struct{}{}
	}()

	if !s.load(ctx) {
		return
	}

	storageStopDoneC := make(chan struct{})
	hubStopDoneC := make(chan struct{})

	go s.storage.run(ctx, storageStopDoneC)
	go s.conf.Hub.Run(ctx, s.storedC, hubStopDoneC)

	glog.Infof("standalone cluster is running")
	<-ctx.Done()
	glog.Infof("standalone cluster is stopping")

	<-storageStopDoneC
	glog.Infof("standalone cluster: storage stopped")

	<-hubStopDoneC
	glog.Infof("standalone cluster: hub stopped")
}

// load retries until the hub is loaded, returns false if ctx is done first.
func (s *Standalone) load(ctx context.Context) bool {
	err := retry.Do(ctx, "standalone cluster: load hub", func() error {
		return s.conf.Hub.Load(ctx)
	})
	return err == nil
}
