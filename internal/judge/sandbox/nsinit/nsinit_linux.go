//go:build linux

// Package nsinit is the middle judger stage. It runs as apparent root
// inside the fresh user namespace the driver created, builds the
// sandbox filesystem and cgroup, supervises the executor stage, and is
// the only stage that assembles a JudgeResult from a live run.
package nsinit

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/ParaN3xus/koioj/internal/judge/sandbox/cgroup"
	"github.com/ParaN3xus/koioj/internal/judge/sandbox/executor"
	"github.com/ParaN3xus/koioj/internal/judge/sandbox/protocol"
	"github.com/ParaN3xus/koioj/internal/judge/sandbox/workspace"
)

// StageArg selects this stage when the judger re-executes itself.
const StageArg = "ns-init"

const hostname = "sandbox"

// Extra files inherited from the driver.
const (
	barrierFd = 3
	resultFd  = 4
)

// Main runs the namespace-init stage. Whatever happens inside the run,
// exactly one result frame goes out on the result pipe; only a broken
// pipe makes this stage exit non-zero.
func Main() int {
	resultPipe := os.NewFile(resultFd, "result")
	if resultPipe == nil {
		fmt.Fprintln(os.Stderr, "ns-init: result pipe missing")
		return 1
	}
	defer resultPipe.Close()

	res, err := execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ns-init: %v\n", err)
		res = protocol.JudgeResult{
			Verdict: protocol.VerdictUKE,
			Stderr:  []byte(fmt.Sprintf("Internal Error: %v", err)),
		}
	}
	if err := protocol.EncodeResult(resultPipe, res); err != nil {
		fmt.Fprintf(os.Stderr, "ns-init: write result: %v\n", err)
		return 1
	}
	return 0
}

// execute performs one sandboxed run. Every acquired resource is
// released by a deferred cleanup, so a failure at any step still tears
// down whatever came before it.
func execute() (protocol.JudgeResult, error) {
	var res protocol.JudgeResult

	// The driver releases the barrier only after the UID/GID maps are
	// installed; mounting before that would happen without privilege.
	barrier := os.NewFile(barrierFd, "barrier")
	if barrier == nil {
		return res, fmt.Errorf("barrier pipe missing")
	}
	var b [1]byte
	if n, err := barrier.Read(b[:]); n != 1 || err != nil {
		return res, fmt.Errorf("barrier: %w", err)
	}
	barrier.Close()

	req, err := protocol.DecodeRequest(os.Stdin)
	if err != nil {
		return res, fmt.Errorf("decode request: %w", err)
	}

	if err := unix.Sethostname([]byte(hostname)); err != nil {
		return res, fmt.Errorf("sethostname: %w", err)
	}
	// Keep every mount below out of the host's view.
	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return res, fmt.Errorf("make mounts private: %w", err)
	}

	root := workspace.SandboxRoot(req.SandboxID)
	if err := os.Mkdir(root, 0777); err != nil {
		return res, fmt.Errorf("create sandbox root: %w", err)
	}
	defer os.Remove(root)
	// Mkdir is subject to the umask; the mountpoint must stay
	// traversable for the unprivileged executor.
	if err := os.Chmod(root, 0777); err != nil {
		return res, fmt.Errorf("chmod sandbox root: %w", err)
	}

	if err := unix.Mount(req.RootfsPath, root, "", unix.MS_BIND, ""); err != nil {
		return res, fmt.Errorf("bind rootfs: %w", err)
	}
	defer unix.Unmount(root, 0)
	if err := unix.Mount("", root, "", unix.MS_REMOUNT|unix.MS_RDONLY|unix.MS_BIND, ""); err != nil {
		return res, fmt.Errorf("remount rootfs readonly: %w", err)
	}

	tmpDir := workspace.TmpDir(req.SandboxID)
	opts := "mode=0777,size=" + req.TmpfsSize
	if err := unix.Mount("tmpfs", tmpDir, "tmpfs", 0, opts); err != nil {
		return res, fmt.Errorf("mount tmpfs: %w", err)
	}
	defer unix.Unmount(tmpDir, 0)

	if err := writeInputFiles(req); err != nil {
		return res, err
	}

	leaf := workspace.CgroupLeaf(req.CgroupRoot, req.SandboxID)
	if err := cgroup.Create(leaf); err != nil {
		return res, err
	}
	defer cgroup.Remove(leaf)
	if err := cgroup.ApplyLimits(leaf, req.PidsLimit, req.MemoryLimitMB); err != nil {
		return res, err
	}

	exitCode, err := runExecutor(req, leaf)
	if err != nil {
		return res, err
	}

	// Counters are read only after the executor has been reaped, once
	// the kernel has flushed final accounting into the leaf.
	timeMs := cgroup.UserTimeMs(leaf)
	memoryMB := cgroup.PeakMemoryBytes(leaf) / (1024 * 1024)
	oomKilled := cgroup.OOMKilled(leaf)

	res.Verdict = classify(exitCode, oomKilled, timeMs, int64(req.TimeLimitMs))
	res.TimeMs = int32(timeMs)
	res.MemoryMB = memoryMB
	res.Stdout = readFileOrEmpty(workspace.TmpFile(req.SandboxID, workspace.StdoutFile))
	res.Stderr = readFileOrEmpty(workspace.TmpFile(req.SandboxID, workspace.StderrFile))
	res.OutputFiles = make([]protocol.FileOutput, 0, len(req.OutputFilenames))
	for _, name := range req.OutputFilenames {
		res.OutputFiles = append(res.OutputFiles, protocol.FileOutput{
			Filename: name,
			Content:  readFileOrEmpty(workspace.TmpFile(req.SandboxID, name)),
		})
	}
	return res, nil
}

// writeInputFiles materializes the requested files in the tmpfs.
func writeInputFiles(req protocol.JudgeRequest) error {
	for _, f := range req.InputFiles {
		if err := checkInputName(f.Filename); err != nil {
			return err
		}
		path := workspace.TmpFile(req.SandboxID, f.Filename)
		if err := os.WriteFile(path, f.Content, fs.FileMode(f.Mode)); err != nil {
			return fmt.Errorf("write input file %s: %w", f.Filename, err)
		}
	}
	return nil
}

// runExecutor spawns the executor stage in its own PID, network, mount
// and UTS namespaces, enrolls it in the cgroup leaf, releases the
// barrier and waits for its exit byte.
func runExecutor(req protocol.JudgeRequest, leaf string) (int, error) {
	barrierR, barrierW, err := os.Pipe()
	if err != nil {
		return 0, fmt.Errorf("barrier pipe: %w", err)
	}
	defer barrierR.Close()
	defer barrierW.Close()

	spec := protocol.ExecSpec{
		SandboxID:   req.SandboxID,
		TimeLimitMs: req.TimeLimitMs,
		Stdin:       req.Stdin,
		Cmdline:     req.Cmdline,
	}

	cmd := exec.Command("/proc/self/exe", executor.StageArg)
	cmd.Stdin = protocol.ExecSpecReader(spec)
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{barrierR}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: syscall.CLONE_NEWPID | syscall.CLONE_NEWNET |
			syscall.CLONE_NEWNS | syscall.CLONE_NEWUTS,
		Pdeathsig: syscall.SIGKILL,
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start executor: %w", err)
	}
	barrierR.Close()

	// Enroll before releasing the barrier: the executor does not fork
	// the target until this byte arrives, so nothing ever runs outside
	// the leaf's accounting.
	if err := cgroup.AddProcess(leaf, cmd.Process.Pid); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return 0, err
	}
	if _, err := barrierW.Write([]byte{1}); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return 0, fmt.Errorf("release barrier: %w", err)
	}
	barrierW.Close()

	// The executor is pid 1 of its namespace; its descendants die with
	// it and need no reaping here.
	err = cmd.Wait()
	state := cmd.ProcessState
	if state == nil {
		return 0, fmt.Errorf("wait executor: %w", err)
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Exited() {
		return ws.ExitStatus(), nil
	}
	// Killed by signal: indistinguishable from a sandbox fault.
	return 255, nil
}

func readFileOrEmpty(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "ns-init: read %s: %v\n", path, err)
		}
		return nil
	}
	return data
}
