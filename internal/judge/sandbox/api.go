// Package sandbox defines the call interface the judge worker uses to
// execute untrusted programs.
//
// One request, one verdict: the sandbox never retries, and every
// accepted request produces exactly one JudgeResult, a UKE when the
// sandbox itself failed. The judger binary under cmd/judger implements
// the three nested stages (driver, namespace-init, executor); package
// client is the in-process caller.
package sandbox

import (
	"context"

	"github.com/ParaN3xus/koioj/internal/judge/sandbox/protocol"
)

// Runner executes one sandboxed run per call. client.Client is the
// production implementation; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, req protocol.JudgeRequest) (protocol.JudgeResult, error)
}
