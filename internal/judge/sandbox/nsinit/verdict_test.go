package nsinit

import (
	"testing"

	"github.com/ParaN3xus/koioj/internal/judge/sandbox/protocol"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		exitCode  int
		oomKilled bool
		timeMs    int64
		limitMs   int64
		want      protocol.Verdict
	}{
		{"clean_exit", 0, false, 120, 1000, protocol.VerdictOK},
		{"nonzero_exit", 1, false, 120, 1000, protocol.VerdictRE},
		// cpu.stat can under-report kernel-heavy time; the grace-timer
		// verdict stands even with the counter under the limit.
		{"grace_timer_fired", 2, false, 800, 1000, protocol.VerdictTLE},
		{"executor_sys_fail", 3, false, 0, 1000, protocol.VerdictUKE},
		{"executor_killed", 255, false, 0, 1000, protocol.VerdictUKE},
		// Measured CPU time past the limit upgrades an OK or RE report.
		{"measured_overrun", 0, false, 1001, 1000, protocol.VerdictTLE},
		{"measured_overrun_after_re", 1, false, 1500, 1000, protocol.VerdictTLE},
		{"exact_limit_is_ok", 0, false, 1000, 1000, protocol.VerdictOK},
		{"oom_overrides_ok", 0, true, 120, 1000, protocol.VerdictMLE},
		{"oom_overrides_re", 1, true, 120, 1000, protocol.VerdictMLE},
		{"oom_overrides_tle", 2, true, 1500, 1000, protocol.VerdictMLE},
		// The OOM killer can take the executor itself; the limit was
		// still hit by the judged program.
		{"oom_overrides_executor_kill", 255, true, 0, 1000, protocol.VerdictMLE},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.exitCode, tc.oomKilled, tc.timeMs, tc.limitMs)
			if got != tc.want {
				t.Fatalf("classify(%d, %v, %d, %d) = %v, want %v",
					tc.exitCode, tc.oomKilled, tc.timeMs, tc.limitMs, got, tc.want)
			}
		})
	}
}
