/*
vkloop opens a window and renders a lit mesh through a Vulkan swapchain
that survives resizes, minimization and shader reloads.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/vkloop/engine"
	"github.com/spaghettifunk/vkloop/engine/core"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the application config")
	flag.Parse()

	config, err := engine.LoadConfig(*configPath)
	if err != nil {
		core.LogFatal(err.Error())
	}

	e, err := engine.New(config)
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal(err.Error())
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// the main goroutine owns the window, so a signal only asks the loop to stop
	go func() {
		<-sigCh
		e.Stop()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError(err.Error())
	}
	if runErr != nil {
		os.Exit(1)
	}
}
