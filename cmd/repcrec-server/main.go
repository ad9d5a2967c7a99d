package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/repcrec/repcrec/pkg/server"
	"github.com/repcrec/repcrec/pkg/txn"
)

func main() {
	var (
		address = flag.String("addr", ":4200", "server address")
	)
	flag.Parse()

	mgr := txn.NewManager()

	log.Printf("repcrec server starting...")
	log.Printf("Listening on: %s", *address)

	srv := server.New(mgr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutting down...")
		srv.Close()
	}()

	if err := srv.Listen(*address); err != nil {
		log.Printf("Server error: %v", err)
	}
}
