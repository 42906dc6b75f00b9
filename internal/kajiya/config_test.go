package kajiya

import (
	"os"
	"path/filepath"
	"testing"
)

const validConfig = `{
  "binutils": "2.44",
  "gdb": "16.2",
  "gcc": "15.1.0",
  "mingw": "12.0.0",
  "mingw_prefix": "prefix/mingw",
  "elf_prefix": "prefix/elf",
  "mingw_win_prefix": "prefix/win-mingw",
  "elf_win_prefix": "prefix/win-elf",
  "archive_prefix": "archives"
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.GCC != "15.1.0" {
		t.Errorf("GCC = %q; want %q", cfg.GCC, "15.1.0")
	}
	if cfg.Mirror != nil {
		t.Error("Mirror should be nil when absent from the document")
	}
	if got := cfg.PrefixFor(VariantWinELF); got != "prefix/win-elf" {
		t.Errorf("PrefixFor(win-elf) = %q; want %q", got, "prefix/win-elf")
	}
}

func TestLoadConfigMissingField(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing gcc version", `{"binutils":"2.44","gdb":"16.2","mingw":"12.0.0",
			"mingw_prefix":"a","elf_prefix":"b","mingw_win_prefix":"c","elf_win_prefix":"d","archive_prefix":"e"}`},
		{"missing archive prefix", `{"binutils":"2.44","gdb":"16.2","gcc":"15.1.0","mingw":"12.0.0",
			"mingw_prefix":"a","elf_prefix":"b","mingw_win_prefix":"c","elf_win_prefix":"d"}`},
		{"empty prefix", `{"binutils":"2.44","gdb":"16.2","gcc":"15.1.0","mingw":"12.0.0",
			"mingw_prefix":"","elf_prefix":"b","mingw_win_prefix":"c","elf_win_prefix":"d","archive_prefix":"e"}`},
		{"malformed json", `{`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadConfig(writeConfig(t, tc.content)); err == nil {
				t.Error("loadConfig accepted an invalid document")
			}
		})
	}
}

func TestLoadConfigMirrorSection(t *testing.T) {
	content := `{
  "binutils": "2.44", "gdb": "16.2", "gcc": "15.1.0", "mingw": "12.0.0",
  "mingw_prefix": "a", "elf_prefix": "b", "mingw_win_prefix": "c", "elf_win_prefix": "d",
  "archive_prefix": "e",
  "mirror": {"endpoint": "https://example.r2.cloudflarestorage.com", "bucket": "toolchains",
             "access_key": "k", "secret_key": "s"}
}`
	cfg, err := loadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Mirror == nil || cfg.Mirror.Bucket != "toolchains" {
		t.Errorf("Mirror = %+v; want bucket %q", cfg.Mirror, "toolchains")
	}
}
