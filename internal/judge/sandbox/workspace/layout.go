// Package workspace maps a sandbox id to the ephemeral host paths the
// judger owns for one run. The caller guarantees id uniqueness across
// concurrent runs; the sandbox guarantees cleanup of everything named
// here on every exit path.
package workspace

import "path/filepath"

const sandboxPrefix = "/tmp/judger_sandbox_"

// Conventional stream file names inside the sandbox tmpfs.
const (
	StdinFile  = "stdin"
	StdoutFile = "stdout"
	StderrFile = "stderr"
)

// SandboxRoot is the mountpoint the rootfs is bound onto.
func SandboxRoot(id string) string {
	return sandboxPrefix + id
}

// TmpDir is the writable tmpfs inside the sandbox, and the working
// directory of the judged program.
func TmpDir(id string) string {
	return filepath.Join(SandboxRoot(id), "tmp")
}

// TmpFile resolves a request-relative filename inside the tmpfs.
func TmpFile(id, name string) string {
	return filepath.Join(TmpDir(id), name)
}

// CgroupLeaf is the per-run cgroup v2 node under the delegated root.
func CgroupLeaf(root, id string) string {
	return filepath.Join(root, "judge."+id)
}
