package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/qinyiguo/DMS2.0/internal/config"
	"github.com/qinyiguo/DMS2.0/internal/listener"
	"github.com/qinyiguo/DMS2.0/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("mail listener starting (provider=%s interval=%ds)\n",
		cfg.MailListenerProvider, cfg.MailListenerIntervalSec)
	if err := listener.NewService(db, cfg).Run(ctx); err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
}
