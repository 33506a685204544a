//go:build linux

// Package driver is the outer judger stage: the only one the caller
// talks to. It parses the framed request from stdin, spawns the
// namespace-init into fresh user/mount/IPC/network/UTS namespaces, and
// forwards the framed result to stdout. It emits exactly one response
// frame for every accepted request, a UKE on any internal failure.
package driver

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ParaN3xus/koioj/internal/judge/sandbox/nsinit"
	"github.com/ParaN3xus/koioj/internal/judge/sandbox/protocol"
	"github.com/ParaN3xus/koioj/pkg/utils/logger"
)

// Main runs the driver. It returns the process exit code: 0 for any
// verdict except UKE, 1 for UKE including malformed requests.
func Main() int {
	// A caller that closes its end early must not kill the driver
	// before the response frame is attempted.
	signal.Ignore(syscall.SIGPIPE)

	req, err := protocol.DecodeRequest(os.Stdin)
	if err != nil {
		return respond(failure(fmt.Errorf("decode request: %w", err)))
	}
	if err := req.Validate(); err != nil {
		return respond(failure(fmt.Errorf("invalid request: %w", err)))
	}

	res, err := run(req)
	if err != nil {
		logger.Error(context.Background(), "sandbox run failed",
			zap.String("sandbox_id", req.SandboxID), zap.Error(err))
		return respond(failure(err))
	}
	return respond(res)
}

// run spawns the namespace-init stage and relays its result. The PID
// namespace is deliberately not created here; it belongs to the
// executor grandchild, so the namespace-init keeps a /proc view it can
// manage its children through.
func run(req protocol.JudgeRequest) (protocol.JudgeResult, error) {
	var res protocol.JudgeResult

	barrierR, barrierW, err := os.Pipe()
	if err != nil {
		return res, fmt.Errorf("barrier pipe: %w", err)
	}
	defer barrierR.Close()
	defer barrierW.Close()
	resultR, resultW, err := os.Pipe()
	if err != nil {
		return res, fmt.Errorf("result pipe: %w", err)
	}
	defer resultR.Close()
	defer resultW.Close()

	cmd := exec.Command("/proc/self/exe", nsinit.StageArg)
	cmd.Stdin = protocol.RequestReader(req)
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{barrierR, resultW}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: syscall.CLONE_NEWUSER | syscall.CLONE_NEWNS |
			syscall.CLONE_NEWIPC | syscall.CLONE_NEWNET | syscall.CLONE_NEWUTS,
		// setgroups is denied before the gid map is written, as the
		// kernel requires for unprivileged single-line maps.
		GidMappingsEnableSetgroups: false,
		UidMappings: []syscall.SysProcIDMap{{
			ContainerID: 0, HostID: os.Getuid(), Size: 1,
		}},
		GidMappings: []syscall.SysProcIDMap{{
			ContainerID: 0, HostID: os.Getgid(), Size: 1,
		}},
		Pdeathsig: syscall.SIGKILL,
	}
	if err := cmd.Start(); err != nil {
		return res, fmt.Errorf("start ns-init: %w", err)
	}
	barrierR.Close()
	resultW.Close()

	// Start has installed the UID/GID maps; releasing the barrier lets
	// the namespace-init begin privileged mount and cgroup work.
	if _, err := barrierW.Write([]byte{1}); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return res, fmt.Errorf("release barrier: %w", err)
	}
	barrierW.Close()

	// Read the frame before reaping: a large result does not fit in
	// the pipe buffer, and the child only exits once it is drained.
	res, decErr := protocol.DecodeResult(resultR)
	waitErr := cmd.Wait()
	if decErr != nil {
		if waitErr != nil {
			return res, fmt.Errorf("read result (ns-init: %v): %w", waitErr, decErr)
		}
		return res, fmt.Errorf("read result: %w", decErr)
	}
	if waitErr != nil {
		logger.Warn(context.Background(), "ns-init exited abnormally",
			zap.String("sandbox_id", req.SandboxID), zap.Error(waitErr))
	}
	return res, nil
}

// failure synthesizes the UKE response for errors that occur before a
// real result exists.
func failure(err error) protocol.JudgeResult {
	return protocol.JudgeResult{
		Verdict: protocol.VerdictUKE,
		Stderr:  []byte(fmt.Sprintf("Internal Error: %v", err)),
	}
}

// respond writes the single response frame and maps the verdict to the
// process exit code.
func respond(res protocol.JudgeResult) int {
	if err := protocol.EncodeResult(os.Stdout, res); err != nil {
		// Nothing left to report to; the caller reads silence as UKE.
		fmt.Fprintf(os.Stderr, "judger: write response: %v\n", err)
		return 1
	}
	if res.Verdict == protocol.VerdictUKE {
		return 1
	}
	return 0
}
