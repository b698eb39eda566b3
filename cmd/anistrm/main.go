package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"github.com/alvarorichard/anistrm/internal/util"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root, cc := newRootCommand()
	err := root.ExecuteContext(ctx)
	if closeErr := cc.close(); closeErr != nil {
		util.Warnf("Cleanup failed: %v", closeErr)
	}
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, util.ErrorHandler(err))
		}
		os.Exit(1)
	}
}
