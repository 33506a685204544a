package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"reflect"
	"strings"
	"testing"
)

func sampleRequest() JudgeRequest {
	return JudgeRequest{
		TimeLimitMs:   1000,
		MemoryLimitMB: 64,
		PidsLimit:     16,
		RootfsPath:    "/srv/rootfs",
		TmpfsSize:     "64M",
		CgroupRoot:    "/sys/fs/cgroup/judge",
		SandboxID:     "run-1",
		Stdin:         []byte("hello\n"),
		Cmdline:       []string{"/bin/sh", "-c", "cat"},
		InputFiles: []FileInput{
			{Filename: "in.txt", Content: []byte("42"), Mode: 0644},
			{Filename: "empty.bin", Content: nil, Mode: 0600},
		},
		OutputFilenames: []string{"out.bin", "log.txt"},
	}
}

func TestRequestRoundTrip(t *testing.T) {
	req := sampleRequest()
	var buf bytes.Buffer
	if err := EncodeRequest(&buf, req); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRequest(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, req) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, req)
	}
	if buf.Len() != 0 {
		t.Fatalf("%d trailing bytes after decode", buf.Len())
	}
}

// TestRequestWireLayout pins the byte-exact layout the C++ era callers
// depend on: scalars first, then paths, stdin, and the three counted
// sequences, all little-endian.
func TestRequestWireLayout(t *testing.T) {
	req := JudgeRequest{
		TimeLimitMs:   200,
		MemoryLimitMB: 16,
		PidsLimit:     4,
		RootfsPath:    "/r",
		TmpfsSize:     "8M",
		CgroupRoot:    "/c",
		SandboxID:     "s",
		Stdin:         []byte("in"),
		Cmdline:       []string{"/bin/true"},
		InputFiles:    []FileInput{{Filename: "f", Content: []byte("x"), Mode: 0755}},
		OutputFilenames: []string{
			"o",
		},
	}

	var want bytes.Buffer
	le := binary.LittleEndian
	writeU32 := func(v uint32) {
		var b [4]byte
		le.PutUint32(b[:], v)
		want.Write(b[:])
	}
	writeU64 := func(v uint64) {
		var b [8]byte
		le.PutUint64(b[:], v)
		want.Write(b[:])
	}
	writeStr := func(s string) {
		writeU32(uint32(len(s)))
		want.WriteString(s)
	}
	writeU32(200)
	writeU64(16)
	writeU32(4)
	writeStr("/r")
	writeStr("8M")
	writeStr("/c")
	writeStr("s")
	writeStr("in")
	writeU32(1)
	writeStr("/bin/true")
	writeU32(1)
	writeStr("f")
	writeStr("x")
	writeU32(0755)
	writeU32(1)
	writeStr("o")

	var got bytes.Buffer
	if err := EncodeRequest(&got, req); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(got.Bytes(), want.Bytes()) {
		t.Fatalf("wire layout mismatch:\ngot  %v\nwant %v", got.Bytes(), want.Bytes())
	}
}

func TestResultRoundTrip(t *testing.T) {
	res := JudgeResult{
		Verdict:  VerdictTLE,
		TimeMs:   1234,
		MemoryMB: 17,
		Stdout:   []byte("partial"),
		Stderr:   nil,
		OutputFiles: []FileOutput{
			{Filename: "out.bin", Content: []byte("ok\n")},
			{Filename: "missing", Content: nil},
		},
	}
	var buf bytes.Buffer
	if err := EncodeResult(&buf, res); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeResult(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, res) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, res)
	}
}

func TestExecSpecRoundTrip(t *testing.T) {
	spec := ExecSpec{
		SandboxID:   "run-9",
		TimeLimitMs: 500,
		Stdin:       []byte{0, 1, 2},
		Cmdline:     []string{"/bin/sh", "-c", "exit 7"},
	}
	var buf bytes.Buffer
	if err := EncodeExecSpec(&buf, spec); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeExecSpec(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, spec) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, spec)
	}
}

func TestDecodeRequestTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeRequest(&buf, sampleRequest()); err != nil {
		t.Fatalf("encode: %v", err)
	}
	full := buf.Bytes()
	for _, cut := range []int{0, 1, 4, 12, len(full) / 2, len(full) - 1} {
		if _, err := DecodeRequest(bytes.NewReader(full[:cut])); err == nil {
			t.Fatalf("truncation at %d bytes not detected", cut)
		}
	}
}

func TestRequestReaderStreams(t *testing.T) {
	req := sampleRequest()
	data, err := io.ReadAll(RequestReader(req))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got, err := DecodeRequest(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, req) {
		t.Fatalf("streamed request mismatch")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*JudgeRequest)
		wantErr string
	}{
		{"valid", func(r *JudgeRequest) {}, ""},
		{"zero_time", func(r *JudgeRequest) { r.TimeLimitMs = 0 }, "time limit"},
		{"negative_memory", func(r *JudgeRequest) { r.MemoryLimitMB = -1 }, "memory limit"},
		{"zero_pids", func(r *JudgeRequest) { r.PidsLimit = 0 }, "pids limit"},
		{"no_rootfs", func(r *JudgeRequest) { r.RootfsPath = "" }, "rootfs"},
		{"no_tmpfs_size", func(r *JudgeRequest) { r.TmpfsSize = "" }, "tmpfs"},
		{"no_cgroup_root", func(r *JudgeRequest) { r.CgroupRoot = "" }, "cgroup"},
		{"no_sandbox_id", func(r *JudgeRequest) { r.SandboxID = "" }, "sandbox id"},
		{"no_cmdline", func(r *JudgeRequest) { r.Cmdline = nil }, "cmdline"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := sampleRequest()
			tc.mutate(&req)
			err := req.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("got %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestVerdictString(t *testing.T) {
	cases := map[Verdict]string{
		VerdictOK:  "OK",
		VerdictTLE: "TLE",
		VerdictMLE: "MLE",
		VerdictRE:  "RE",
		VerdictUKE: "UKE",
		Verdict(9): "UKE",
	}
	for v, want := range cases {
		if v.String() != want {
			t.Fatalf("Verdict(%d).String() = %q, want %q", v, v.String(), want)
		}
	}
}
