package main

import (
	"context"
	"os/signal"
	"syscall"

	"LiveDesk/server"
)

func main() {
	s := server.NewServer()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s.RunBackground(ctx)
	s.Start(s.Config.Server.Addr)
}
