// Command asyncaction drives, tests and traces the demo stores.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/seonyeopkim/asyncaction/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
