//go:build linux

package client

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ParaN3xus/koioj/internal/judge/sandbox/protocol"
)

func testRequest() protocol.JudgeRequest {
	return protocol.JudgeRequest{
		TimeLimitMs:   1000,
		MemoryLimitMB: 64,
		PidsLimit:     8,
		RootfsPath:    "/srv/rootfs",
		TmpfsSize:     "16M",
		CgroupRoot:    "/sys/fs/cgroup/judge",
		SandboxID:     NewSandboxID(),
		Cmdline:       []string{"/bin/true"},
	}
}

// fakeJudger writes a script that drains stdin like the real binary,
// emits a canned response frame, and exits with the given code.
func fakeJudger(t *testing.T, res protocol.JudgeResult, exitCode int) string {
	t.Helper()
	dir := t.TempDir()

	var frame bytes.Buffer
	if err := protocol.EncodeResult(&frame, res); err != nil {
		t.Fatalf("encode canned result: %v", err)
	}
	framePath := filepath.Join(dir, "response.bin")
	if err := os.WriteFile(framePath, frame.Bytes(), 0644); err != nil {
		t.Fatalf("write canned result: %v", err)
	}

	script := "#!/bin/sh\ncat >/dev/null\ncat " + framePath + "\nexit " +
		strconv.Itoa(exitCode) + "\n"
	scriptPath := filepath.Join(dir, "judger")
	if err := os.WriteFile(scriptPath, []byte(script), 0755); err != nil {
		t.Fatalf("write fake judger: %v", err)
	}
	return scriptPath
}

func TestRunDecodesResult(t *testing.T) {
	want := protocol.JudgeResult{
		Verdict:  protocol.VerdictOK,
		TimeMs:   12,
		MemoryMB: 3,
		Stdout:   []byte("hello\n"),
		OutputFiles: []protocol.FileOutput{
			{Filename: "out.bin", Content: []byte("ok\n")},
		},
	}
	c := New(Config{JudgerPath: fakeJudger(t, want, 0)})

	got, err := c.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.Verdict != want.Verdict || got.TimeMs != want.TimeMs {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if !bytes.Equal(got.Stdout, want.Stdout) {
		t.Fatalf("stdout = %q, want %q", got.Stdout, want.Stdout)
	}
	if len(got.OutputFiles) != 1 || got.OutputFiles[0].Filename != "out.bin" {
		t.Fatalf("output files = %+v", got.OutputFiles)
	}
}

// A UKE run exits 1 but still responds with a complete frame; the
// client must surface the verdict, not an error.
func TestRunUKEFrameIsNotAnError(t *testing.T) {
	want := protocol.JudgeResult{
		Verdict: protocol.VerdictUKE,
		Stderr:  []byte("Internal Error: mount tmpfs: no space"),
	}
	c := New(Config{JudgerPath: fakeJudger(t, want, 1)})

	got, err := c.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.Verdict != protocol.VerdictUKE {
		t.Fatalf("verdict = %v, want UKE", got.Verdict)
	}
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	c := New(Config{JudgerPath: "/bin/true"})
	req := testRequest()
	req.Cmdline = nil
	if _, err := c.Run(context.Background(), req); err == nil {
		t.Fatal("invalid request accepted")
	}
}

func TestRunJudgerDiesWithoutFrame(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "judger")
	script := "#!/bin/sh\ncat >/dev/null\necho doomed >&2\nexit 1\n"
	if err := os.WriteFile(scriptPath, []byte(script), 0755); err != nil {
		t.Fatalf("write fake judger: %v", err)
	}
	c := New(Config{JudgerPath: scriptPath})
	if _, err := c.Run(context.Background(), testRequest()); err == nil {
		t.Fatal("missing frame not reported")
	}
}

func TestRunHonorsContext(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "judger")
	script := "#!/bin/sh\nexec sleep 30\n"
	if err := os.WriteFile(scriptPath, []byte(script), 0755); err != nil {
		t.Fatalf("write fake judger: %v", err)
	}
	c := New(Config{JudgerPath: scriptPath})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := c.Run(ctx, testRequest()); err == nil {
		t.Fatal("cancelled run succeeded")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("cancellation took %v", elapsed)
	}
}
