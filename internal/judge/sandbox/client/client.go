// Package client is the caller side of the judger protocol. The judge
// worker uses it to run one test case: it spawns the judger binary,
// streams the framed request over its stdin, and decodes the framed
// result from its stdout.
package client

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/ParaN3xus/koioj/internal/judge/sandbox/protocol"
	"github.com/ParaN3xus/koioj/pkg/utils/logger"
)

const defaultJudgerPath = "judger"

// stderrTailBytes bounds how much judger stderr is quoted in errors
// and logs.
const stderrTailBytes = 4 * 1024

// Config controls how the judger binary is invoked.
type Config struct {
	// JudgerPath is the judger executable, resolved through PATH when
	// it contains no path separator.
	JudgerPath string
}

// Client runs judge requests through the judger binary. It is safe for
// concurrent use; each Run spawns its own process.
type Client struct {
	cfg Config
}

// New creates a client.
func New(cfg Config) *Client {
	if cfg.JudgerPath == "" {
		cfg.JudgerPath = defaultJudgerPath
	}
	return &Client{cfg: cfg}
}

// Run executes one sandboxed judge run. The returned result carries the
// verdict even when the judger exits non-zero (a UKE run still responds
// with a complete frame); an error means no usable response arrived.
func (c *Client) Run(ctx context.Context, req protocol.JudgeRequest) (protocol.JudgeResult, error) {
	var res protocol.JudgeResult
	if err := req.Validate(); err != nil {
		return res, fmt.Errorf("invalid request: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.cfg.JudgerPath)
	// Cancellation kills the driver; its stages die with it through
	// their parent-death signals. WaitDelay bounds the drain of any
	// stderr still held open by a dying stage.
	cmd.WaitDelay = 3 * time.Second
	cmd.Stdin = protocol.RequestReader(req)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return res, fmt.Errorf("judger: %w", ctx.Err())
	}

	res, decErr := protocol.DecodeResult(&stdout)
	if decErr != nil {
		if runErr != nil {
			return res, fmt.Errorf("judger failed (%v): %s", runErr, stderrTail(stderr.Bytes()))
		}
		return res, fmt.Errorf("decode result: %w", decErr)
	}
	if stderr.Len() > 0 {
		logger.Warn(ctx, "judger stderr",
			zap.String("sandbox_id", req.SandboxID),
			zap.String("stderr", string(stderrTail(stderr.Bytes()))))
	}
	return res, nil
}

func stderrTail(b []byte) []byte {
	if len(b) <= stderrTailBytes {
		return b
	}
	return b[len(b)-stderrTailBytes:]
}
