//go:build linux

// The judger is the single-shot sandbox helper: a framed JudgeRequest
// on stdin, one framed JudgeResult on stdout. It re-executes itself for
// the two inner stages; the stage arguments are internal and the
// external surface takes none.
package main

import (
	"os"

	"github.com/ParaN3xus/koioj/internal/judge/sandbox/driver"
	"github.com/ParaN3xus/koioj/internal/judge/sandbox/executor"
	"github.com/ParaN3xus/koioj/internal/judge/sandbox/nsinit"
	"github.com/ParaN3xus/koioj/pkg/utils/logger"
)

func main() {
	if len(os.Args) == 2 {
		switch os.Args[1] {
		case nsinit.StageArg:
			os.Exit(nsinit.Main())
		case executor.StageArg:
			os.Exit(executor.Main())
		}
	}

	_ = logger.Init(logger.Config{Level: "warn", OutputPath: "stderr"})
	defer logger.Sync()
	os.Exit(driver.Main())
}
