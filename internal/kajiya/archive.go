package kajiya

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/ulikunitz/xz"
)

// archiveExt is the compression extension used for toolchain archives.
const archiveExt = ".tar.xz"

// archiveName fixes the distributable file name. The compiler suite's
// name is part of the contract regardless of which components the
// archive bundles; consumers identify the variant from the triple.
func archiveName(arch, platform, binfmt string) string {
	return fmt.Sprintf("%s-%s-%s-gcc%s", arch, platform, binfmt, archiveExt)
}

// hostLabel returns the (arch, platform) pair naming archives built for
// the machine this process runs on.
func hostLabel() (arch, platform string) {
	return runtime.GOARCH, runtime.GOOS
}

// packPrefix streams an install prefix into a single tar.xz archive in
// archiveDir. Only the prefix's immediate children are enumerated; each
// entry's subtree is preserved as-is. An existing archive of the same
// name is overwritten.
func packPrefix(archiveDir, prefix, arch, platform, binfmt string) error {
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive dir %s: %w", archiveDir, err)
	}

	entries, err := os.ReadDir(prefix)
	if err != nil {
		return fmt.Errorf("cannot read install prefix %s: %w", prefix, err)
	}

	outPath := filepath.Join(archiveDir, archiveName(arch, platform, binfmt))
	outFile, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer outFile.Close()

	if err := writeArchive(outFile, prefix, entries); err != nil {
		return err
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Archive created: %s\n", outPath)
	return nil
}

// writeArchive streams the prefix entries as a tar.xz into w. Both
// writers are closed explicitly: xz emits most of its output on the
// final flush, so a discarded close error means a truncated archive
// reported as success.
func writeArchive(w io.Writer, prefix string, entries []os.DirEntry) error {
	xzw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create xz writer: %w", err)
	}
	tw := tar.NewWriter(xzw)

	for _, e := range entries {
		if err := addTree(tw, filepath.Join(prefix, e.Name()), e.Name()); err != nil {
			tw.Close()
			xzw.Close()
			return fmt.Errorf("failed to add %s to archive: %w", e.Name(), err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := xzw.Close(); err != nil {
		return fmt.Errorf("failed to flush xz stream: %w", err)
	}
	return nil
}

// addTree writes the file or directory at path into the tar stream under
// arcname, recursing into subtrees.
func addTree(tw *tar.Writer, path, arcname string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}

	var linkTarget string
	if info.Mode()&os.ModeSymlink != 0 {
		linkTarget, err = os.Readlink(path)
		if err != nil {
			return fmt.Errorf("readlink %s: %w", path, err)
		}
	}

	hdr, err := tar.FileInfoHeader(info, linkTarget)
	if err != nil {
		return err
	}
	hdr.Name = arcname
	if info.IsDir() {
		hdr.Name += "/"
	}

	// Toolchain archives must unpack identically for any user.
	hdr.Uid, hdr.Gid = 0, 0
	hdr.Uname, hdr.Gname = "root", "root"

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	if info.Mode().IsRegular() {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(tw, f); err != nil {
			f.Close()
			return err
		}
		f.Close()
		return nil
	}

	if !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := addTree(tw, filepath.Join(path, e.Name()), arcname+"/"+e.Name()); err != nil {
			return err
		}
	}
	return nil
}
