package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mqy/minichat/auth"
	"github.com/mqy/minichat/cluster"
	"github.com/mqy/minichat/store"
	"github.com/mqy/minichat/ws"
)

var (
	flagAddr         = flag.String("addr", "127.0.0.1:7070", "server address, ip:port")
	flagPidFile      = flag.String("pid-file", "minichat.pid", "pid file")
	flagMysqlDsn     = flag.String("mysql-dsn", "root:@tcp(127.0.0.1:3306)/minichat?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci", "mysql server dsn")
	flagKafkaBrokers = flag.String("kafka-brokers", "127.0.0.1:9092", "comma separated kafka brokers")
	flagKafkaTopic   = flag.String("kafka-topic", "minichat-messages", "kafka topic of submitted messages")
	flagKafkaGroupId = flag.String("kafka-group-id", "minichat", "kafka consumer group id")

	flagPayloadMaxBytes = flag.Int("payload-max-bytes", 1<<20, "max bytes of text, images and names of one message or profile")
	flagHistoryLimit    = flag.Int("history-limit", 500, "number of stored messages served to subscribers")

	flagDisableMetrics = flag.Bool("disable-metrics", false, "disable prometheus metrics")
)

func main() {
	flag.Parse()

	// NOTE: os.Exit() does not call defers.
	os.Exit(run())
}

func run() int {
	defer glog.Flush()

	if v := validateFlags(); v > 0 {
		return v
	}

	pid := os.Getpid()

	if err := savePid(*flagPidFile, pid); err != nil {
		return errorf("pid file: %v", err)
	}
	defer func() {
		_ = os.Remove(*flagPidFile)
	}()

	db, err := sql.Open("mysql", *flagMysqlDsn)
	if err != nil {
		return errorf("sql.Open error, dsn: %s, err: %v", *flagMysqlDsn, err)
	}

	db.SetConnMaxLifetime(time.Minute * 3)
	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(1)

	docStore := store.NewDocStore(db)

	kafkaBrokers := strings.Split(*flagKafkaBrokers, ",")
	// a kafka value is the json of one validated message.
	kafkaValueMaxBytes := ws.FrameMaxBytes(*flagPayloadMaxBytes)
	publisher := cluster.NewPublisher(cluster.NewKafkaWriter(kafkaBrokers, *flagKafkaTopic), kafkaValueMaxBytes)

	hub := ws.NewHub(newAuthClient(), docStore, publisher, &ws.Conf{
		PayloadMaxBytes: *flagPayloadMaxBytes,
		HistoryLimit:    *flagHistoryLimit,
	})

	mux := http.NewServeMux()
	if !*flagDisableMetrics {
		mux.Handle("/metrics", promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{},
		))
	}
	mux.Handle("/ws", hub)

	var server cluster.ICluster = cluster.NewStandalone(&cluster.Conf{
		Addr:  *flagAddr,
		Mux:   mux,
		Hub:   hub,
		Store: docStore,

		KafkaBrokers: kafkaBrokers,
		KafkaTopic:   *flagKafkaTopic,
		KafkaGroupId: *flagKafkaGroupId,

		PayloadMaxBytes: kafkaValueMaxBytes,
	})

	stopNotifyChan := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go server.Run(ctx, stopNotifyChan)

	glog.Infof("minichat server is starting")
	glog.Infof("`CTRL+c` or `kill %d` to graceful stop", pid)

	var stopping bool

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	for sig := range sigCh {
		if stopping {
			glog.Infof("minichat server is already in stop")
			continue
		}
		stopping = true
		glog.Infof("received signal `%s` stopping", sig.String())
		go func() {
			cancel()
			<-stopNotifyChan
			close(stopNotifyChan)
			if err := publisher.Close(); err != nil {
				glog.Warningf("close kafka writer: %v", err)
			}
			_ = db.Close()
			signal.Stop(sigCh)
			close(sigCh)
		}()
	}

	glog.Info("minichat server exited")
	return 0
}

func newAuthClient() auth.Client {
	// TODO: hook into production auth API.
	return &auth.MockClient{}
}

func validateFlags() int {
	if *flagAddr == "" {
		return errorf("--addr is required")
	}
	if err := validateAddr(*flagAddr); err != nil {
		return errorf("--addr: %v", err)
	}
	if *flagPidFile == "" {
		return errorf("--pid-file is required")
	}
	if *flagMysqlDsn == "" {
		return errorf("--mysql-dsn is required.")
	}
	if len(*flagKafkaBrokers) == 0 {
		return errorf("--kafka-brokers is required.")
	}
	if *flagKafkaTopic == "" {
		return errorf("--kafka-topic is required.")
	}
	if *flagKafkaGroupId == "" {
		return errorf("--kafka-group-id is required.")
	}
	if *flagPayloadMaxBytes < ws.MinPayloadMaxBytes || *flagPayloadMaxBytes > ws.MaxPayloadMaxBytes {
		return errorf("invalid --payload-max-bytes, expect in range [%d, %d]", ws.MinPayloadMaxBytes, ws.MaxPayloadMaxBytes)
	}
	if *flagHistoryLimit < 1 || *flagHistoryLimit > store.MaxListMessages {
		return errorf("invalid --history-limit, expect in range [1, %d]", store.MaxListMessages)
	}
	return 0
}

func validateAddr(s string) error {
	ips, _, err := net.SplitHostPort(s)
	if err != nil {
		return fmt.Errorf("error split host port from `%s`: %v", s, err)
	}
	ip := net.ParseIP(ips)
	if ip == nil {
		return fmt.Errorf("error parse IP from host `%s`", ips)
	}
	if !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("`%s` is not loopback or private address", ips)
	}
	return nil
}

func errorf(fmt string, args ...interface{}) int {
	glog.Errorf(fmt, args...)
	return 1
}

func savePid(name string, pid int) error {
	if _, err := os.Stat(name); err == nil {
		// Ok, see, if we have a stale lockfile here
		content, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		if len(content) > 0 {
			oldPid, err := strconv.Atoi(string(content))
			if err != nil {
				return err
			}

			proc, err := os.FindProcess(oldPid)
			if err != nil {
				return err
			}
			defer proc.Release()

			if err := proc.Signal(syscall.Signal(0)); err == nil {
				return fmt.Errorf("pid file: exists with pid: %d, the process is running", oldPid)
			} else {
				glog.Infof("pid file exists with pid: %d, but is not running", oldPid)
			}
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("pid file: stat error: %v", err)
	}

	if err := os.WriteFile(name, []byte(strconv.Itoa(pid)), 0600); err != nil {
		return fmt.Errorf("pid file: write error: %v", err)
	}
	glog.Infof("pid file: write pid done")
	return nil
}
