package protocol

import (
	"fmt"
	"io"
)

// EncodeRequest writes the request frame with the primitives of
// protocol.go, in this order: scalars, paths, stdin, then the three
// counted sequences.
func EncodeRequest(w io.Writer, req JudgeRequest) error {
	if err := WriteInt32(w, req.TimeLimitMs); err != nil {
		return err
	}
	if err := WriteInt64(w, req.MemoryLimitMB); err != nil {
		return err
	}
	if err := WriteInt32(w, req.PidsLimit); err != nil {
		return err
	}
	for _, s := range []string{req.RootfsPath, req.TmpfsSize, req.CgroupRoot, req.SandboxID} {
		if err := WriteString(w, s); err != nil {
			return err
		}
	}
	if err := WriteBytes(w, req.Stdin); err != nil {
		return err
	}

	if err := WriteInt32(w, int32(len(req.Cmdline))); err != nil {
		return err
	}
	for _, arg := range req.Cmdline {
		if err := WriteString(w, arg); err != nil {
			return err
		}
	}

	if err := WriteInt32(w, int32(len(req.InputFiles))); err != nil {
		return err
	}
	for _, f := range req.InputFiles {
		if err := WriteString(w, f.Filename); err != nil {
			return err
		}
		if err := WriteBytes(w, f.Content); err != nil {
			return err
		}
		if err := WriteInt32(w, f.Mode); err != nil {
			return err
		}
	}

	if err := WriteInt32(w, int32(len(req.OutputFilenames))); err != nil {
		return err
	}
	for _, name := range req.OutputFilenames {
		if err := WriteString(w, name); err != nil {
			return err
		}
	}
	return nil
}

// DecodeRequest reads one request frame. EOF mid-frame is an error.
func DecodeRequest(r io.Reader) (JudgeRequest, error) {
	var req JudgeRequest
	var err error
	if req.TimeLimitMs, err = ReadInt32(r); err != nil {
		return req, fmt.Errorf("time limit: %w", err)
	}
	if req.MemoryLimitMB, err = ReadInt64(r); err != nil {
		return req, fmt.Errorf("memory limit: %w", err)
	}
	if req.PidsLimit, err = ReadInt32(r); err != nil {
		return req, fmt.Errorf("pids limit: %w", err)
	}
	if req.RootfsPath, err = ReadString(r); err != nil {
		return req, fmt.Errorf("rootfs path: %w", err)
	}
	if req.TmpfsSize, err = ReadString(r); err != nil {
		return req, fmt.Errorf("tmpfs size: %w", err)
	}
	if req.CgroupRoot, err = ReadString(r); err != nil {
		return req, fmt.Errorf("cgroup root: %w", err)
	}
	if req.SandboxID, err = ReadString(r); err != nil {
		return req, fmt.Errorf("sandbox id: %w", err)
	}
	if req.Stdin, err = ReadBytes(r); err != nil {
		return req, fmt.Errorf("stdin: %w", err)
	}

	n, err := readCount(r)
	if err != nil {
		return req, fmt.Errorf("cmdline count: %w", err)
	}
	req.Cmdline = make([]string, 0, n)
	for i := 0; i < n; i++ {
		arg, err := ReadString(r)
		if err != nil {
			return req, fmt.Errorf("cmdline[%d]: %w", i, err)
		}
		req.Cmdline = append(req.Cmdline, arg)
	}

	if n, err = readCount(r); err != nil {
		return req, fmt.Errorf("input file count: %w", err)
	}
	req.InputFiles = make([]FileInput, 0, n)
	for i := 0; i < n; i++ {
		var f FileInput
		if f.Filename, err = ReadString(r); err != nil {
			return req, fmt.Errorf("input file[%d] name: %w", i, err)
		}
		if f.Content, err = ReadBytes(r); err != nil {
			return req, fmt.Errorf("input file[%d] content: %w", i, err)
		}
		if f.Mode, err = ReadInt32(r); err != nil {
			return req, fmt.Errorf("input file[%d] mode: %w", i, err)
		}
		req.InputFiles = append(req.InputFiles, f)
	}

	if n, err = readCount(r); err != nil {
		return req, fmt.Errorf("output filename count: %w", err)
	}
	req.OutputFilenames = make([]string, 0, n)
	for i := 0; i < n; i++ {
		name, err := ReadString(r)
		if err != nil {
			return req, fmt.Errorf("output filename[%d]: %w", i, err)
		}
		req.OutputFilenames = append(req.OutputFilenames, name)
	}
	return req, nil
}

// EncodeResult writes one response frame.
func EncodeResult(w io.Writer, res JudgeResult) error {
	if err := WriteInt32(w, int32(res.Verdict)); err != nil {
		return err
	}
	if err := WriteInt32(w, res.TimeMs); err != nil {
		return err
	}
	if err := WriteInt64(w, res.MemoryMB); err != nil {
		return err
	}
	if err := WriteBytes(w, res.Stdout); err != nil {
		return err
	}
	if err := WriteBytes(w, res.Stderr); err != nil {
		return err
	}
	if err := WriteInt32(w, int32(len(res.OutputFiles))); err != nil {
		return err
	}
	for _, f := range res.OutputFiles {
		if err := WriteString(w, f.Filename); err != nil {
			return err
		}
		if err := WriteBytes(w, f.Content); err != nil {
			return err
		}
	}
	return nil
}

// DecodeResult reads one response frame.
func DecodeResult(r io.Reader) (JudgeResult, error) {
	var res JudgeResult
	v, err := ReadInt32(r)
	if err != nil {
		return res, fmt.Errorf("verdict: %w", err)
	}
	res.Verdict = Verdict(v)
	if res.TimeMs, err = ReadInt32(r); err != nil {
		return res, fmt.Errorf("time: %w", err)
	}
	if res.MemoryMB, err = ReadInt64(r); err != nil {
		return res, fmt.Errorf("memory: %w", err)
	}
	if res.Stdout, err = ReadBytes(r); err != nil {
		return res, fmt.Errorf("stdout: %w", err)
	}
	if res.Stderr, err = ReadBytes(r); err != nil {
		return res, fmt.Errorf("stderr: %w", err)
	}
	n, err := readCount(r)
	if err != nil {
		return res, fmt.Errorf("output file count: %w", err)
	}
	res.OutputFiles = make([]FileOutput, 0, n)
	for i := 0; i < n; i++ {
		var f FileOutput
		if f.Filename, err = ReadString(r); err != nil {
			return res, fmt.Errorf("output file[%d] name: %w", i, err)
		}
		if f.Content, err = ReadBytes(r); err != nil {
			return res, fmt.Errorf("output file[%d] content: %w", i, err)
		}
		res.OutputFiles = append(res.OutputFiles, f)
	}
	return res, nil
}

// EncodeExecSpec writes the namespace-init to executor frame.
func EncodeExecSpec(w io.Writer, spec ExecSpec) error {
	if err := WriteString(w, spec.SandboxID); err != nil {
		return err
	}
	if err := WriteInt32(w, spec.TimeLimitMs); err != nil {
		return err
	}
	if err := WriteBytes(w, spec.Stdin); err != nil {
		return err
	}
	if err := WriteInt32(w, int32(len(spec.Cmdline))); err != nil {
		return err
	}
	for _, arg := range spec.Cmdline {
		if err := WriteString(w, arg); err != nil {
			return err
		}
	}
	return nil
}

// DecodeExecSpec reads the namespace-init to executor frame.
func DecodeExecSpec(r io.Reader) (ExecSpec, error) {
	var spec ExecSpec
	var err error
	if spec.SandboxID, err = ReadString(r); err != nil {
		return spec, fmt.Errorf("sandbox id: %w", err)
	}
	if spec.TimeLimitMs, err = ReadInt32(r); err != nil {
		return spec, fmt.Errorf("time limit: %w", err)
	}
	if spec.Stdin, err = ReadBytes(r); err != nil {
		return spec, fmt.Errorf("stdin: %w", err)
	}
	n, err := readCount(r)
	if err != nil {
		return spec, fmt.Errorf("cmdline count: %w", err)
	}
	spec.Cmdline = make([]string, 0, n)
	for i := 0; i < n; i++ {
		arg, err := ReadString(r)
		if err != nil {
			return spec, fmt.Errorf("cmdline[%d]: %w", i, err)
		}
		spec.Cmdline = append(spec.Cmdline, arg)
	}
	return spec, nil
}

// RequestReader streams an encoded request, for wiring straight into a
// child process stdin without buffering the whole frame.
func RequestReader(req JudgeRequest) io.Reader {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(EncodeRequest(pw, req))
	}()
	return pr
}

// ExecSpecReader streams an encoded executor spec.
func ExecSpecReader(spec ExecSpec) io.Reader {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(EncodeExecSpec(pw, spec))
	}()
	return pr
}
