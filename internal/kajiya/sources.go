package kajiya

import (
	"archive/tar"
	"compress/bzip2"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/schollz/progressbar/v3"
	"github.com/ulikunitz/xz"
	"golang.org/x/sys/unix"
)

// Component identifies one upstream source package.
type Component string

const (
	ComponentBinutils Component = "binutils"
	ComponentGDB      Component = "gdb"
	ComponentGCC      Component = "gcc"
	ComponentMinGW    Component = "mingw"
)

var components = []Component{ComponentBinutils, ComponentGDB, ComponentGCC, ComponentMinGW}

// SourceTrees maps each component to its extracted directory. Built once
// after extraction and validated; stages treat the trees as read-only.
type SourceTrees struct {
	Binutils string
	GDB      string
	GCC      string
	MinGW    string
}

// sourceURL returns the upstream tarball URL for a component at the
// configured version. URL shapes are fixed upstream conventions.
func sourceURL(c Component, cfg *Config) (url, filename string) {
	switch c {
	case ComponentBinutils:
		filename = fmt.Sprintf("binutils-%s.tar.gz", cfg.Binutils)
		url = "https://ftp.gnu.org/gnu/binutils/" + filename
	case ComponentGDB:
		filename = fmt.Sprintf("gdb-%s.tar.gz", cfg.GDB)
		url = "https://ftp.gnu.org/gnu/gdb/" + filename
	case ComponentGCC:
		filename = fmt.Sprintf("gcc-%s.tar.gz", cfg.GCC)
		url = fmt.Sprintf("https://ftp.gnu.org/gnu/gcc/gcc-%s/", cfg.GCC) + filename
	case ComponentMinGW:
		filename = fmt.Sprintf("mingw-w64-v%s.tar.bz2", cfg.MinGW)
		url = "https://downloads.sourceforge.net/project/mingw-w64/mingw-w64/mingw-w64-release/" + filename
	}
	return url, filename
}

func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// Sourceforge redirects through slow mirror selectors.
	transport.TLSHandshakeTimeout = 30 * time.Second
	return &http.Client{Transport: transport}
}

// downloadFile fetches a URL into destPath, reporting progress on stderr.
func downloadFile(url, destPath string) error {
	client := newHTTPClient()

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download of %s failed with status: %s", url, resp.Status)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", destPath, err)
	}
	defer out.Close()

	bar := progressbar.DefaultBytes(resp.ContentLength, "   "+filepath.Base(destPath))
	if _, err := io.Copy(io.MultiWriter(out, bar), resp.Body); err != nil {
		return fmt.Errorf("failed to write %s: %w", destPath, err)
	}
	return nil
}

// downloadSources fetches every component tarball into TarballDir.
func downloadSources(cfg *Config) error {
	if err := os.MkdirAll(TarballDir, 0o755); err != nil {
		return fmt.Errorf("failed to create tarball dir: %w", err)
	}

	for _, c := range components {
		url, filename := sourceURL(c, cfg)
		colArrow.Print("-> ")
		colSuccess.Printf("Downloading %s\n", c)
		if err := downloadFile(url, filepath.Join(TarballDir, filename)); err != nil {
			return err
		}
	}
	return nil
}

// extractSources unpacks every tarball in TarballDir into SourcesDir.
// The versioned top-level directories are kept: they are how source
// trees are located afterwards.
func extractSources() error {
	if err := os.MkdirAll(SourcesDir, 0o755); err != nil {
		return fmt.Errorf("failed to create sources dir: %w", err)
	}

	entries, err := os.ReadDir(TarballDir)
	if err != nil {
		return fmt.Errorf("failed to read tarball dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.Contains(e.Name(), ".tar.") {
			continue
		}
		colArrow.Print("-> ")
		colSuccess.Printf("Extracting %s\n", e.Name())
		if err := extractTar(filepath.Join(TarballDir, e.Name()), SourcesDir); err != nil {
			return err
		}
	}
	return nil
}

// extractTar extracts a tar archive (with possible compression) into dest,
// handling PAX headers and preserving modes, timestamps and hardlinks.
func extractTar(realPath, dest string) error {
	f, err := os.Open(realPath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", realPath, err)
	}
	defer f.Close()

	var r io.Reader = f
	switch {
	case strings.HasSuffix(realPath, ".tar.gz") || strings.HasSuffix(realPath, ".tgz"):
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader for %s: %w", realPath, err)
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(realPath, ".tar.bz2"):
		r = bzip2.NewReader(f)
	case strings.HasSuffix(realPath, ".tar.xz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create xz reader for %s: %w", realPath, err)
		}
		r = xzr
	case strings.HasSuffix(realPath, ".tar.zst"):
		zst, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create zstd reader for %s: %w", realPath, err)
		}
		defer zst.Close()
		r = zst
	case strings.HasSuffix(realPath, ".tar"):
		// No compression
	default:
		return fmt.Errorf("unsupported archive format: %s", realPath)
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("error reading tar header in %s: %w", realPath, err)
		}

		// Skip PAX headers (global or per-file)
		if hdr.Typeflag == tar.TypeXHeader || hdr.Typeflag == tar.TypeXGlobalHeader {
			if _, err := io.Copy(io.Discard, tr); err != nil {
				return fmt.Errorf("error skipping extended header data in %s: %w", realPath, err)
			}
			continue
		}

		targetPath := filepath.Join(dest, hdr.Name)
		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return fmt.Errorf("failed to create parent dir for %s: %w", targetPath, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, os.FileMode(hdr.Mode)); err != nil {
				return fmt.Errorf("failed to create dir %s: %w", targetPath, err)
			}
		case tar.TypeReg:
			outFile, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return fmt.Errorf("failed to create file %s: %w", targetPath, err)
			}
			if _, err := io.Copy(outFile, tr); err != nil {
				outFile.Close()
				return fmt.Errorf("failed to write file %s: %w", targetPath, err)
			}
			outFile.Close()
			if err := os.Chtimes(targetPath, hdr.AccessTime, hdr.ModTime); err != nil {
				return fmt.Errorf("failed to set times for file %s: %w", targetPath, err)
			}
		case tar.TypeLink:
			// GNU release tarballs carry hardlinks for duplicated files.
			linkSrc := filepath.Join(dest, hdr.Linkname)
			_ = os.Remove(targetPath)
			if err := os.Link(linkSrc, targetPath); err != nil {
				return fmt.Errorf("failed to create hardlink %s -> %s: %w", targetPath, linkSrc, err)
			}
		case tar.TypeSymlink:
			if err := os.Symlink(hdr.Linkname, targetPath); err != nil && !os.IsExist(err) {
				return fmt.Errorf("failed to create symlink %s -> %s: %w", targetPath, hdr.Linkname, err)
			}
			atime := unix.Timeval{
				Sec:  hdr.AccessTime.Unix(),
				Usec: int64(hdr.AccessTime.Nanosecond() / 1000),
			}
			mtime := unix.Timeval{
				Sec:  hdr.ModTime.Unix(),
				Usec: int64(hdr.ModTime.Nanosecond() / 1000),
			}
			if err := unix.Lutimes(targetPath, []unix.Timeval{atime, mtime}); err != nil {
				debugf("Warning: failed to set times for symlink %s: %v (continuing)\n", targetPath, err)
			}
		default:
			debugf("Skipping unsupported tar entry type %c: %s\n", hdr.Typeflag, hdr.Name)
		}
	}

	return nil
}

// resolveSourceTrees builds the explicit component-to-directory mapping
// from the extracted sources. Zero or multiple candidate directories for
// a component is a missing-prerequisite error, never a silent first match.
func resolveSourceTrees(dir string) (*SourceTrees, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("extracted sources missing: %w", err)
	}

	find := func(c Component) (string, error) {
		var matches []string
		for _, e := range entries {
			if e.IsDir() && strings.Contains(e.Name(), string(c)) {
				matches = append(matches, e.Name())
			}
		}
		switch len(matches) {
		case 0:
			return "", fmt.Errorf("no source tree for %s found in %s", c, dir)
		case 1:
			abs, err := filepath.Abs(filepath.Join(dir, matches[0]))
			if err != nil {
				return "", err
			}
			return abs, nil
		default:
			return "", fmt.Errorf("ambiguous source trees for %s in %s: %s", c, dir, strings.Join(matches, ", "))
		}
	}

	trees := &SourceTrees{}
	targets := map[Component]*string{
		ComponentBinutils: &trees.Binutils,
		ComponentGDB:      &trees.GDB,
		ComponentGCC:      &trees.GCC,
		ComponentMinGW:    &trees.MinGW,
	}
	for _, c := range components {
		path, err := find(c)
		if err != nil {
			return nil, err
		}
		*targets[c] = path
	}
	return trees, nil
}
