// Command harvester collects social media and survey content into normalized tables.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"harvester/cmd/harvester/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := commands.ExecuteContext(ctx)

	stop()
	os.Exit(code)
}
