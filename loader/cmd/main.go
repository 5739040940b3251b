package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"docqa/loader/internal"
	"docqa/loader/service"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment defaults")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigch
		log.Println("received shutdown signal")
		cancel()
	}()

	if err := service.New(internal.LoadConfig()).Run(ctx); err != nil {
		log.Fatal(err)
	}
}
