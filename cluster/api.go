package cluster

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/mqy/minichat/model"
)

//go:generate mockgen -destination mock/kafka.go -package mock github.com/mqy/minichat/cluster IKafkaReader,IKafkaWriter

type IKafkaReader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

type IKafkaWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

type ICluster interface {
	Run(ctx context.Context, stopNotifyCh chan<- struct{})
}

// IHub provides interfaces of local Hub.
type IHub interface {
	// Load fills the hub with the stored collections.
	Load(ctx context.Context) error
	// Run receives stored messages until ctx is done.
	Run(ctx context.Context, storedC <-chan *model.Message, stopDoneNotifyC chan<- struct{})
}
