package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"vls-chat/internal/bootstrap"
)

func main() {
	app, err := bootstrap.NewApp()
	if err != nil {
		logrus.Fatalf("Failed to initialize application: %v", err)
	}

	app.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// A fault takes the same ordered shutdown as a signal, but exits nonzero.
	select {
	case <-quit:
		logrus.Info("Shutdown signal received...")
		app.Shutdown()
	case err := <-app.Fatal:
		logrus.Errorf("Unrecoverable fault: %v", err)
		app.Shutdown()
		os.Exit(1)
	}
}
