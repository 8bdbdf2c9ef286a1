package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/pborman/uuid"

	"github.com/mqy/minichat/cluster"
	"github.com/mqy/minichat/model"
)

// The bot mocks a chat member that publishes messages straight to `kafka`,
// bypassing the websocket server.

var (
	kafkaBrokers   = flag.String("kafka-brokers", "127.0.0.1:9092", "kafka brokers, ',' delimitted.")
	kafkaTopic     = flag.String("kafka-topic", "minichat-messages", "kafka topic of submitted messages")
	tickerDuration = flag.Duration("ticker-duration", 30*time.Second, "ticker duration")
	identity       = flag.String("identity", "bot@minichat.local", "sender identity")
	displayName    = flag.String("name", "Bot", "sender display name")
	themeColor     = flag.String("color", "#2E8B57", "sender theme color, #RRGGBB")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	if len(*kafkaBrokers) == 0 {
		panic("--kafka-brokers is required.")
	}
	if !model.IsHexColor(*themeColor) {
		panic("--color should be #RRGGBB")
	}

	publisher := cluster.NewPublisher(cluster.NewKafkaWriter(strings.Split(*kafkaBrokers, ","), *kafkaTopic), 1<<20)
	defer publisher.Close()

	ticker := time.NewTicker(*tickerDuration)
	defer func() {
		ticker.Stop()
	}()

	// kafka-topics.sh --bootstrap-server localhost:9092 --topic minichat-messages --create
	// kafka-topics.sh --bootstrap-server localhost:9092 --topic minichat-messages --delete

	var i int = 0
	for range ticker.C {
		msg := &model.Message{
			ID:          strings.ReplaceAll(uuid.New(), "-", ""),
			Text:        fmt.Sprintf("hello #%d, it's %s", i, time.Now().Format(time.Kitchen)),
			SenderID:    *identity,
			SenderName:  *displayName,
			SenderColor: *themeColor,
		}
		if err := publisher.Submit(context.Background(), msg); err != nil {
			glog.Errorf("submit message %s: %v", msg.ID, err)
			continue
		}
		glog.V(5).Infof("submitted message %s", msg.ID)
		i++
	}
}
