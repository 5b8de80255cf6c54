// Command spark-chat is a terminal chat client for the Spark API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	if err := execute(ctx, newRootCmd(a), a); err != nil {
		_, _ = os.Stderr.WriteString("spark-chat: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
