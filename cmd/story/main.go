package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	storycmd "github.com/louisbranch/chronicle/internal/cmd/story"
	platformcmd "github.com/louisbranch/chronicle/internal/platform/cmd"
)

// main starts the story engine MCP server on stdio or HTTP.
func main() {
	cfg, err := storycmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix(platformcmd.LogPrefix(platformcmd.ServiceStory))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := storycmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve story: %v", err)
	}
}
