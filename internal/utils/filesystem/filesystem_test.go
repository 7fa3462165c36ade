package filesystem

import "testing"

func TestRelPosix(t *testing.T) {
	tests := []struct {
		base, target, want string
	}{
		{".", "worker.js", "worker.js"},
		{"chunks", "workers/w.js", "../workers/w.js"},
		{"a/b", "a/b/c.js", "c.js"},
		{"a/b", "a", ".."},
		{"a", "a", "."},
		{`dist\chunks`, `dist\workers\w.js`, "../workers/w.js"},
		{"/out", "/out/workers/w.js", "workers/w.js"},
	}
	for _, tt := range tests {
		if got := RelPosix(tt.base, tt.target); got != tt.want {
			t.Errorf("RelPosix(%q, %q) = %q, want %q", tt.base, tt.target, got, tt.want)
		}
	}
}

func TestEntryBaseName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/app/src/worker.js", "worker"},
		{"./compute.worker.ts", "compute.worker"},
		{"some-pkg/worker", "worker"},
		{"/app/src/my worker.js", "my_worker"},
		{"/app/src/.js", "js"},
		{"", "worker"},
		{"/app/src/???.js", "___"},
	}
	for _, tt := range tests {
		if got := EntryBaseName(tt.in); got != tt.want {
			t.Errorf("EntryBaseName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
