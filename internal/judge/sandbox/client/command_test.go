package client

import (
	"reflect"
	"testing"
)

func TestSplitCommand(t *testing.T) {
	cases := []struct {
		line    string
		want    []string
		wantErr bool
	}{
		{"/bin/cat /tmp/in.txt", []string{"/bin/cat", "/tmp/in.txt"}, false},
		{`/bin/sh -c "while :; do :; done"`, []string{"/bin/sh", "-c", "while :; do :; done"}, false},
		{"/usr/bin/python3 'main.py'", []string{"/usr/bin/python3", "main.py"}, false},
		{"", nil, true},
		{"   ", nil, true},
		{`/bin/sh -c "unterminated`, nil, true},
	}
	for _, tc := range cases {
		got, err := SplitCommand(tc.line)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("SplitCommand(%q) succeeded with %v", tc.line, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("SplitCommand(%q): %v", tc.line, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("SplitCommand(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}
}

func TestNewSandboxID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewSandboxID()
		if id == "" {
			t.Fatal("empty sandbox id")
		}
		if seen[id] {
			t.Fatalf("duplicate sandbox id %q", id)
		}
		seen[id] = true
	}
}
