package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/avtopazar/avtochat/internal/config"
	"github.com/avtopazar/avtochat/internal/daemon"
	"github.com/avtopazar/avtochat/internal/profile"
	"github.com/avtopazar/avtochat/internal/push"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	offlineFlag := flag.Bool("offline", false, "run without a remote store (cache only)")
	pushTestFlag := flag.Bool("push-test", false, "publish a test notification to the push topic and exit")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *pushTestFlag {
		if err := publishTest(); err != nil {
			fmt.Fprintf(os.Stderr, "push test: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("test notification published")
		return
	}

	app := fx.New(
		daemon.Module(daemon.Params{Profile: profileName, Offline: *offlineFlag}),
	)

	app.Run()
}

func publishTest() error {
	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		return err
	}
	if len(cfg.Push.Brokers) == 0 {
		return fmt.Errorf("no push brokers configured")
	}
	producer, err := push.NewProducer(cfg.Push.Brokers, cfg.Push.Topic)
	if err != nil {
		return err
	}
	defer func() { _ = producer.Close() }()
	return producer.PublishTest()
}
