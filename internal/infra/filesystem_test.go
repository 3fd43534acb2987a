package infra

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWorkDirCreatesNestedDirectories(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	dir, err := WorkDir(base, "models", "zeroshot")
	if err != nil {
		t.Fatalf("WorkDir: %v", err)
	}
	if dir != filepath.Join(base, "models", "zeroshot") {
		t.Fatalf("unexpected dir %q", dir)
	}
	stat, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !stat.IsDir() {
		t.Fatal("work dir is not a directory")
	}
}
