package client

import (
	"fmt"

	"github.com/google/shlex"
	"github.com/google/uuid"
)

// NewSandboxID returns an id unique enough to name the ephemeral
// mountpoint and cgroup leaf of a concurrent run.
func NewSandboxID() string {
	return uuid.NewString()
}

// SplitCommand turns a shell-style run command from a language profile
// into the argv the sandbox expects. The first word must be the
// absolute in-sandbox path of the executable.
func SplitCommand(line string) ([]string, error) {
	fields, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("split command: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return fields, nil
}
