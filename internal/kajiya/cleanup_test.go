package kajiya

import (
	"os"
	"testing"
)

func TestCleanupRemovesScratchDirs(t *testing.T) {
	chdir(t, t.TempDir())

	for _, d := range []string{TarballDir, SourcesDir, BuildRoot} {
		if err := os.MkdirAll(d+"/nested", 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}

	if err := Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	for _, d := range []string{TarballDir, SourcesDir, BuildRoot} {
		if dirExists(d) {
			t.Errorf("%s still exists after cleanup", d)
		}
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	chdir(t, t.TempDir())

	if err := Cleanup(); err != nil {
		t.Fatalf("Cleanup on empty workspace: %v", err)
	}
	if err := Cleanup(); err != nil {
		t.Fatalf("second Cleanup: %v", err)
	}
}
