package protocol

import "fmt"

// Verdict is the terminal classification of one judged run.
type Verdict int32

const (
	VerdictOK  Verdict = 0
	VerdictTLE Verdict = 1
	VerdictMLE Verdict = 2
	VerdictRE  Verdict = 3
	VerdictUKE Verdict = 4
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "OK"
	case VerdictTLE:
		return "TLE"
	case VerdictMLE:
		return "MLE"
	case VerdictRE:
		return "RE"
	default:
		return "UKE"
	}
}

// FileInput is a file materialized in the sandbox tmpfs before execution.
// Filename is relative to the sandbox /tmp.
type FileInput struct {
	Filename string
	Content  []byte
	Mode     int32
}

// FileOutput is an artifact collected from the sandbox tmpfs after
// execution. A file the program never wrote has empty content.
type FileOutput struct {
	Filename string
	Content  []byte
}

// JudgeRequest contains everything needed for one sandboxed run.
type JudgeRequest struct {
	TimeLimitMs   int32
	MemoryLimitMB int64
	PidsLimit     int32

	// RootfsPath is bind-mounted read-only as the sandbox root.
	RootfsPath string
	// TmpfsSize caps the writable tmpfs, e.g. "64M".
	TmpfsSize string
	// CgroupRoot is a delegated cgroup v2 subtree writable by the caller.
	CgroupRoot string
	// SandboxID names the ephemeral mountpoint and cgroup leaf. The
	// caller owns uniqueness across concurrent runs.
	SandboxID string

	Stdin   []byte
	Cmdline []string

	InputFiles      []FileInput
	OutputFilenames []string
}

// Validate rejects requests the sandbox cannot execute. A validation
// failure becomes a UKE response, never a partial run.
func (r *JudgeRequest) Validate() error {
	if r.TimeLimitMs <= 0 {
		return fmt.Errorf("time limit %d must be positive", r.TimeLimitMs)
	}
	if r.MemoryLimitMB <= 0 {
		return fmt.Errorf("memory limit %d must be positive", r.MemoryLimitMB)
	}
	if r.PidsLimit <= 0 {
		return fmt.Errorf("pids limit %d must be positive", r.PidsLimit)
	}
	if r.RootfsPath == "" {
		return fmt.Errorf("rootfs path is required")
	}
	if r.TmpfsSize == "" {
		return fmt.Errorf("tmpfs size is required")
	}
	if r.CgroupRoot == "" {
		return fmt.Errorf("cgroup root is required")
	}
	if r.SandboxID == "" {
		return fmt.Errorf("sandbox id is required")
	}
	if len(r.Cmdline) == 0 {
		return fmt.Errorf("cmdline is required")
	}
	return nil
}

// JudgeResult is the single response produced for every accepted request.
type JudgeResult struct {
	Verdict  Verdict
	TimeMs   int32
	MemoryMB int64
	Stdout   []byte
	Stderr   []byte
	// OutputFiles preserve the order of the requested output filenames.
	OutputFiles []FileOutput
}

// ExecSpec is the reduced request the namespace-init hands to the
// executor stage: only what is needed inside the prepared sandbox.
type ExecSpec struct {
	SandboxID   string
	TimeLimitMs int32
	Stdin       []byte
	Cmdline     []string
}
