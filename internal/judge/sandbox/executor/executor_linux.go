//go:build linux

// Package executor is the innermost judger stage. It runs as pid 1 of a
// fresh PID namespace, already confined by the namespace-init's mounts
// and cgroup, and supervises exactly one judged program. Its whole
// report to the parent is the process exit byte.
package executor

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ParaN3xus/koioj/internal/judge/sandbox/protocol"
	"github.com/ParaN3xus/koioj/internal/judge/sandbox/workspace"
)

// StageArg selects this stage when the judger re-executes itself.
const StageArg = "exec-init"

// Exit bytes decoded by the namespace-init.
const (
	exitOK      = 0
	exitRE      = 1
	exitTLE     = 2
	exitSysFail = 3
)

// graceMs absorbs scheduling jitter on top of the CPU budget so the
// wall-clock waiter catches a true TLE before the caller gives up.
const graceMs = 1000

const pathEnv = "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// barrierFd is the read end of the cgroup-enrollment barrier, passed by
// the namespace-init as the first extra file.
const barrierFd = 3

// Main runs the executor stage and returns its exit byte.
func Main() int {
	// This stage lives inside the run cgroup; keep the runtime's
	// footprint off the judged program's memory and CPU accounting.
	runtime.GOMAXPROCS(1)

	spec, err := protocol.DecodeExecSpec(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "executor: decode spec: %v\n", err)
		return exitSysFail
	}
	if len(spec.Cmdline) == 0 {
		fmt.Fprintln(os.Stderr, "executor: empty cmdline")
		return exitSysFail
	}
	barrier := os.NewFile(barrierFd, "barrier")
	if barrier == nil {
		fmt.Fprintln(os.Stderr, "executor: barrier pipe missing")
		return exitSysFail
	}
	if err := setup(spec); err != nil {
		fmt.Fprintf(os.Stderr, "executor: %v\n", err)
		return exitSysFail
	}

	// The target must not start before the namespace-init has placed
	// this process into the run cgroup, or it would evade every limit.
	var b [1]byte
	if n, err := barrier.Read(b[:]); n != 1 || err != nil {
		fmt.Fprintf(os.Stderr, "executor: barrier: %v\n", err)
		return exitSysFail
	}
	barrier.Close()

	return supervise(spec)
}

// setup prepares the process state the target inherits: the sandbox
// rootfs as /, cwd inside the tmpfs, the stdin file, dropped
// credentials, redirected stdio.
func setup(spec protocol.ExecSpec) error {
	// Chroot while still holding the namespace capabilities; after the
	// credential drop the sandbox root is all the target can name.
	if err := unix.Chroot(workspace.SandboxRoot(spec.SandboxID)); err != nil {
		return fmt.Errorf("chroot: %w", err)
	}
	if err := os.Chdir("/tmp"); err != nil {
		return fmt.Errorf("chdir tmpfs: %w", err)
	}
	if err := os.WriteFile(workspace.StdinFile, spec.Stdin, 0644); err != nil {
		return fmt.Errorf("write stdin file: %w", err)
	}

	// Only uid 0 is mapped in the user namespace, so moving to the
	// nobody ids fails with EINVAL; the process then keeps the mapped
	// id, which has no privilege outside the namespace either way.
	_ = syscall.Setgid(65534)
	_ = syscall.Setuid(65534)

	if err := redirectStdio(); err != nil {
		return err
	}
	return nil
}

// redirectStdio points fds 0/1/2 at files inside the tmpfs. The target
// inherits them; so does any stray output from this stage.
func redirectStdio() error {
	stdin, err := os.Open(workspace.StdinFile)
	if err != nil {
		return fmt.Errorf("open stdin: %w", err)
	}
	stdout, err := os.OpenFile(workspace.StdoutFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open stdout: %w", err)
	}
	stderr, err := os.OpenFile(workspace.StderrFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open stderr: %w", err)
	}
	if err := unix.Dup2(int(stdin.Fd()), 0); err != nil {
		return fmt.Errorf("dup stdin: %w", err)
	}
	if err := unix.Dup2(int(stdout.Fd()), 1); err != nil {
		return fmt.Errorf("dup stdout: %w", err)
	}
	if err := unix.Dup2(int(stderr.Fd()), 2); err != nil {
		return fmt.Errorf("dup stderr: %w", err)
	}
	stdin.Close()
	stdout.Close()
	stderr.Close()
	return nil
}

// supervise starts the target and waits out the CPU budget plus grace.
// The cgroup enforces the real CPU cap; this timer only bounds the wall
// clock so a sleeper cannot hold the sandbox open forever.
func supervise(spec protocol.ExecSpec) int {
	// memory.max is the effective ceiling, so the stack need not be
	// capped separately. Raising the hard limit needs a capability the
	// dropped credentials may lack; the target then keeps the default.
	inf := unix.Rlimit{Cur: unix.RLIM_INFINITY, Max: unix.RLIM_INFINITY}
	_ = unix.Setrlimit(unix.RLIMIT_STACK, &inf)

	cmd := &exec.Cmd{
		Path:   spec.Cmdline[0],
		Args:   spec.Cmdline,
		Env:    []string{pathEnv},
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		SysProcAttr: &syscall.SysProcAttr{
			Setpgid: true,
		},
	}
	if err := cmd.Start(); err != nil {
		return exitRE
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timeout := time.Duration(int64(spec.TimeLimitMs)+graceMs) * time.Millisecond
	select {
	case <-time.After(timeout):
		killGroup(cmd.Process.Pid)
		<-done
		return exitTLE
	case <-done:
	}

	state := cmd.ProcessState
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return exitRE
	}
	if state.ExitCode() == 0 {
		return exitOK
	}
	return exitRE
}

// killGroup kills the target's process group. Descendants that escaped
// the group die with this pid namespace when the executor exits.
func killGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
	_ = syscall.Kill(pid, syscall.SIGKILL)
}
