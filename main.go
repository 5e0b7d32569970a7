/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fennelvane/ember/engine"
	"github.com/fennelvane/ember/engine/config"
	"github.com/fennelvane/ember/engine/core"
	"github.com/fennelvane/ember/testbed"
)

func main() {
	cfg, err := config.Load("ember.toml")
	if err != nil {
		panic(err)
	}
	core.SetLogLevel(cfg.LogLevel)

	tb, err := testbed.NewTestGame(cfg)
	if err != nil {
		panic(err)
	}

	app, err := engine.New(tb)
	if err != nil {
		panic(err)
	}

	if err := app.Initialize(); err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// stop the loop on the control thread; Run returns and the
	// shutdown below tears everything down in order
	go func() {
		<-sigCh
		app.RequestShutdown()
	}()

	if err := app.Run(); err != nil {
		panic(err)
	}

	if err := app.Shutdown(); err != nil {
		panic(err)
	}
}
