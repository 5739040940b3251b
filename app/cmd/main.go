package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"docqa/app/server"
	"docqa/types"

	"github.com/joho/godotenv"
)

func init() {
	loadEnvVariables()
}

func main() {
	s := server.NewServer(types.LoadConfig())

	go s.Run()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	log.Println("Received shutdown signal, shutting down server...")
	s.Stop()
}

func loadEnvVariables() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment as is")
	}
}
