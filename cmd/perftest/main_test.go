// main_test.go — Tests for CLI argument handling and exit codes.
package main

import "testing"

func TestRunExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no args prints usage", nil, 1},
		{"help", []string{"help"}, 0},
		{"unknown command", []string{"frobnicate"}, 1},
		{"start-daemon without token", []string{"start-daemon"}, 1},
		{"start-daemon with empty token", []string{"start-daemon", ""}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := run(tc.args); got != tc.want {
				t.Errorf("run(%v) = %d, want %d", tc.args, got, tc.want)
			}
		})
	}
}

func TestStartDaemonRejectsBadPort(t *testing.T) {
	if err := startDaemon("token@1", []string{"--port", "not-a-number", "--foreground"}); err == nil {
		t.Error("expected an error for a malformed port")
	}
}
