package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"github.com/mqy/minichat/auth"
	"github.com/mqy/minichat/cache"
	"github.com/mqy/minichat/chat"
	"github.com/mqy/minichat/media"
	"github.com/mqy/minichat/notify"
	"github.com/mqy/minichat/remote"
	"github.com/mqy/minichat/wsclient"
)

// A terminal chat client. Commands:
//   /img <path>     send an image with the pending text
//   /name <name>    publish display name
//   /color #RRGGBB  publish theme color
//   /photo <path>   publish profile photo
//   /quit

var (
	flagConfig   = flag.String("config", "minichat.yaml", "config file, yaml")
	flagServer   = flag.String("server", chat.DefaultServer, "websocket endpoint")
	flagOffline  = flag.Bool("offline", false, "run on an in-memory store, no server")
	flagIdentity = flag.String("identity", "", "account identity, e.g. email")
	flagName     = flag.String("name", "", "display name from the identity provider")
	flagCache    = flag.String("cache", chat.DefaultCachePath, "local cache file")
	flagQuiet    = flag.Bool("quiet", false, "no bell on new messages")
	flagRows     = flag.Int("rows", 20, "messages shown")
	flagWidth    = flag.Int("width", 80, "screen width")
)

func main() {
	flag.Parse()

	// NOTE: os.Exit() does not call defers.
	os.Exit(run())
}

func run() int {
	defer glog.Flush()

	conf, err := loadConfig()
	if err != nil {
		return errorf("config: %v", err)
	}

	kv, err := cache.OpenBolt(conf.CachePath)
	if err != nil {
		return errorf("open cache %s: %v", conf.CachePath, err)
	}
	defer kv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	var messages remote.MessageCollection
	var profiles remote.ProfileCollection
	connected := func() bool { return true }

	if conf.Server == "" {
		mem := remote.NewMemory()
		messages, profiles = mem.Messages(), mem.Profiles()
	} else {
		client := wsclient.New(&wsclient.Conf{URL: conf.Server, Identity: conf.Identity})
		stopDoneC := make(chan struct{}, 1)
		go client.Run(ctx, stopDoneC)
		defer func() {
			cancel()
			<-stopDoneC
		}()
		messages, profiles = client.Messages(), client.Profiles()
		connected = client.Connected
	}

	notifier := notify.NewTerminal()
	notifier.Quiet = conf.Quiet

	self := auth.Identity{ID: conf.Identity, DisplayName: conf.DisplayName}
	sess := chat.NewSession(chat.Options{
		Self:     self,
		Messages: messages,
		Profiles: profiles,
		Cache:    cache.New(kv),
		Notifier: notifier,
	})

	scr := &screen{
		out:   os.Stdout,
		width: *flagWidth,
		rows:  *flagRows,
		lines: sess.Render,
		status: func() string {
			link := "online"
			if !connected() {
				link = "offline"
			}
			return fmt.Sprintf("%s | %s | %s", self.ID, sess.State(), link)
		},
	}
	sess.OnChange(scr.redraw)
	sess.Composer().SetAlerter(func(err error) {
		notifier.Toast(fmt.Sprintf("not sent: %v", err))
	})

	if err := sess.Activate(ctx); err != nil {
		return errorf("activate: %v", err)
	}
	defer sess.Deactivate()
	scr.redraw()

	inputC := make(chan string)
	go func() {
		defer close(inputC)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			inputC <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return 0
		case line, ok := <-inputC:
			if !ok {
				return 0
			}
			if quit := handleInput(ctx, sess, line); quit {
				return 0
			}
			scr.redraw()
		}
	}
}

// handleInput runs one command or sends the line, returns true on /quit.
func handleInput(ctx context.Context, sess *chat.Session, line string) bool {
	composer := sess.Composer()
	cmd, arg := parseCommand(line)

	var err error
	switch cmd {
	case "":
		composer.SetText(arg)
		err = composer.Send(ctx, "")
	case "img":
		err = composer.SendImageFile(ctx, arg)
	case "name", "color", "photo":
		err = editProfile(ctx, sess, cmd, arg)
	case "quit":
		return true
	default:
		err = fmt.Errorf("unknown command `/%s`", cmd)
	}
	if err != nil {
		glog.Warningf("input `%s`: %v", line, err)
		fmt.Fprintf(os.Stderr, "!! %v\n", err)
	}
	return false
}

func editProfile(ctx context.Context, sess *chat.Session, field, arg string) error {
	p := sess.LocalProfile()
	switch field {
	case "name":
		p.DisplayName = arg
	case "color":
		p.ThemeColor = arg
	case "photo":
		photo, err := media.EncodeAvatarFile(arg)
		if err != nil {
			return err
		}
		p.PhotoData = photo
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return sess.SaveProfile(ctx, p)
}

// loadConfig reads the config file, flags set on the command line win.
func loadConfig() (*chat.Config, error) {
	conf, err := chat.LoadConfig(*flagConfig)
	if err != nil {
		return nil, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			conf.Server = *flagServer
		case "identity":
			conf.Identity = *flagIdentity
		case "name":
			conf.DisplayName = *flagName
		case "cache":
			conf.CachePath = *flagCache
		case "quiet":
			conf.Quiet = *flagQuiet
		}
	})
	if *flagOffline {
		conf.Server = ""
	}
	return conf, conf.Validate()
}

func errorf(fmt string, args ...interface{}) int {
	glog.Errorf(fmt, args...)
	return 1
}
