package main

import (
	"context"
	"fmt"
	"os"

	gradeproof "github.com/wolfiling/gradeproof"
	"pkt.systems/pslog"
)

func main() {
	loader := gradeproof.NewLoader()
	root := NewRootCommand(loader)
	logger := pslog.LoggerFromEnv(pslog.WithEnvWriter(os.Stdout))
	root.SetContext(pslog.ContextWithLogger(context.Background(), logger))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
