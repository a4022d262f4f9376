// Command appbuilder generates a project from a one-line request.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"appbuilder/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	interrupted := errors.Is(ctx.Err(), context.Canceled)
	stop()

	if err == nil {
		return
	}
	if interrupted {
		fmt.Fprintln(os.Stderr, "\nOperation cancelled")
		os.Exit(130)
	}
	os.Exit(1)
}
