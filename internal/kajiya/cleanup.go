package kajiya

import (
	"fmt"
	"os"
)

// Cleanup unconditionally removes the build scratch area, the extracted
// sources and the downloaded tarball cache, returning the tool to its
// initial state. Install prefixes are never touched. Idempotent: removing
// already-absent directories is not an error.
func Cleanup() error {
	for _, dir := range []string{BuildRoot, SourcesDir, TarballDir} {
		colArrow.Print("-> ")
		colSuccess.Printf("Removing %s\n", dir)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dir, err)
		}
	}
	return nil
}
