package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/avtopazar/avtochat/internal/bus"
	"github.com/avtopazar/avtochat/internal/cache"
	"github.com/avtopazar/avtochat/internal/chat"
	"github.com/avtopazar/avtochat/internal/config"
	"github.com/avtopazar/avtochat/internal/daemon"
	"github.com/avtopazar/avtochat/internal/inbox"
	"github.com/avtopazar/avtochat/internal/profile"
	"github.com/avtopazar/avtochat/internal/status"
	"github.com/avtopazar/avtochat/internal/tui"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	offlineFlag := flag.Bool("offline", false, "browse the local cache without a remote store")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var (
		db      *cache.DB
		svc     *chat.Service
		in      *inbox.Inbox
		b       *bus.Bus
		machine *status.Machine
		cfg     *config.Config
		logger  *zap.Logger
	)

	app := fx.New(
		fx.NopLogger,
		daemon.Module(daemon.Params{Profile: profileName, Offline: *offlineFlag}),
		fx.Populate(&db, &svc, &in, &b, &machine, &cfg, &logger),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		fmt.Fprintf(os.Stderr, "start: %v\n", err)
		os.Exit(1)
	}

	ui := tui.NewApp(db, svc, in, b, machine, cfg.User.ID, cfg.User.Name, profileName, logger)
	runErr := ui.Run()
	ui.Stop()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "stop: %v\n", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}
