package buildinfo

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	i := Info{
		Package:    "github.com/aim-lab/pecg/cmd/ecgdetect",
		GoVersion:  "go1.21.5",
		Commit:     "abc123",
		CommitTime: "2024-03-01T10:00:00Z",
	}

	s := i.String()
	for _, want := range []string{"ecgdetect", "go1.21.5", "abc123"} {
		if !strings.Contains(s, want) {
			t.Fatalf("String() = %q, missing %q", s, want)
		}
	}
	if strings.Contains(s, "dirty") {
		t.Fatalf("clean build described as dirty: %q", s)
	}

	i.Modified = true
	if !strings.Contains(i.String(), "dirty") {
		t.Fatalf("dirty build not flagged: %q", i.String())
	}
}

func TestGet(t *testing.T) {
	// Test binaries are built from a module, so the call must not panic
	// and the Go version is always stamped.
	if got := Get(); got.GoVersion == "" {
		t.Fatalf("Get() returned no Go version: %+v", got)
	}
}
