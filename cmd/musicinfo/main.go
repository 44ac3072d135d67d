package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"musicinfo/internal/logger"
	"musicinfo/internal/shutdown"
)

func main() {
	sh := shutdown.New(logger.New(false))
	sh.Listen()

	cmd := newRootCommand(sh)
	err := cmd.ExecuteContext(sh.Context())

	sh.Shutdown()
	sh.Wait()

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		}
		os.Exit(1)
	}
}
