package version

import (
	"strings"
	"testing"
)

func TestResolvePrefersLinkerValues(t *testing.T) {
	oldV, oldC := Version, Commit
	t.Cleanup(func() { Version, Commit = oldV, oldC })

	Version = "v1.2.3"
	Commit = "0123456789abcdef0123"
	info := Resolve()
	if info.Version != "v1.2.3" {
		t.Fatalf("version: got %q", info.Version)
	}
	if got := String(); got != "v1.2.3 (0123456789ab)" {
		t.Fatalf("String: got %q", got)
	}
	if ua := UserAgent(); !strings.HasPrefix(ua, "genserve/v1.2.3") {
		t.Fatalf("UserAgent: got %q", ua)
	}
}

func TestResolveNeverEmpty(t *testing.T) {
	oldV := Version
	t.Cleanup(func() { Version = oldV })

	Version = ""
	if Resolve().Version == "" {
		t.Fatal("expected a fallback version")
	}
}
