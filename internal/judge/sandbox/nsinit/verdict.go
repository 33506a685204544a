package nsinit

import "github.com/ParaN3xus/koioj/internal/judge/sandbox/protocol"

// verdictFromExit decodes the executor's exit byte.
func verdictFromExit(code int) protocol.Verdict {
	switch code {
	case 0:
		return protocol.VerdictOK
	case 1:
		return protocol.VerdictRE
	case 2:
		return protocol.VerdictTLE
	default:
		return protocol.VerdictUKE
	}
}

// classify applies the post-run reclassification over the executor's
// own report. An observed OOM kill means the memory limit was hit and
// wins outright: the killer may have taken the executor itself, which
// otherwise decodes as a system failure. Measured CPU time past the
// budget upgrades the remaining user verdicts; the kernel can
// under-report user time for kernel-heavy workloads, so the executor's
// grace-timer TLE is kept even when the counter stays under the limit.
func classify(exitCode int, oomKilled bool, timeMs, timeLimitMs int64) protocol.Verdict {
	if oomKilled {
		return protocol.VerdictMLE
	}
	v := verdictFromExit(exitCode)
	if v == protocol.VerdictUKE {
		return v
	}
	if timeMs > timeLimitMs {
		return protocol.VerdictTLE
	}
	return v
}
