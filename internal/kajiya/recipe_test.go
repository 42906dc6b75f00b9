package kajiya

import (
	"slices"
	"strings"
	"testing"
)

func testConfig() *Config {
	return &Config{
		Binutils: "2.44",
		GDB:      "16.2",
		GCC:      "15.1.0",
		MinGW:    "12.0.0",

		MinGWPrefix:    "prefix/mingw",
		ELFPrefix:      "prefix/elf",
		MinGWWinPrefix: "prefix/win-mingw",
		ELFWinPrefix:   "prefix/win-elf",

		ArchivePrefix: "archives",
	}
}

func testTrees() *SourceTrees {
	return &SourceTrees{
		Binutils: "/src/binutils-2.44",
		GDB:      "/src/gdb-16.2",
		GCC:      "/src/gcc-15.1.0",
		MinGW:    "/src/mingw-w64-v12.0.0",
	}
}

func mustRecipe(t *testing.T, v Variant) *Recipe {
	t.Helper()
	r, err := newRecipe(v, testConfig(), testTrees())
	if err != nil {
		t.Fatalf("newRecipe(%s): %v", v, err)
	}
	return r
}

func findStage(t *testing.T, r *Recipe, name string) Stage {
	t.Helper()
	for _, s := range r.Stages {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("%s recipe has no stage %q", r.Variant, name)
	return Stage{}
}

func TestNewRecipeRequires(t *testing.T) {
	tests := []struct {
		variant Variant
		want    []Variant
	}{
		{VariantMinGW, nil},
		{VariantELF, nil},
		{VariantWinMinGW, []Variant{VariantMinGW}},
		{VariantWinELF, []Variant{VariantMinGW, VariantELF, VariantWinMinGW}},
	}

	for _, tc := range tests {
		r := mustRecipe(t, tc.variant)
		if !slices.Equal(r.Requires, tc.want) {
			t.Errorf("%s Requires = %v; want %v", tc.variant, r.Requires, tc.want)
		}
	}
}

func TestMinGWRecipeStageOrder(t *testing.T) {
	r := mustRecipe(t, VariantMinGW)

	// The driver-only gcc must exist before the CRT builds, and the CRT
	// and winpthreads must be installed before the gcc runtime libraries.
	want := []string{
		"Configuring binutils",
		"Building binutils",
		"Installing binutils",
		"Configuring mingw headers",
		"Installing mingw headers",
		"Creating mingw sysroot symlink",
		"Downloading gcc prerequisites",
		"Configuring gcc",
		"Building gcc",
		"Installing gcc",
		"Configuring mingw crt",
		"Building mingw crt",
		"Installing mingw crt",
		"Configuring mingw winpthreads",
		"Building mingw winpthreads",
		"Installing mingw winpthreads",
		"Building gcc libs",
		"Installing gcc libs",
	}

	var got []string
	for _, s := range r.Stages {
		got = append(got, s.Name)
	}
	if !slices.Equal(got, want) {
		t.Errorf("stage order = %v; want %v", got, want)
	}
}

func TestEveryConfigureCarriesFixedFlags(t *testing.T) {
	for _, v := range buildOrder {
		r := mustRecipe(t, v)
		for _, s := range r.Stages {
			if !strings.HasSuffix(s.Argv[0], "/configure") {
				continue
			}
			for _, flag := range []string{"--disable-nls", "--disable-werror", "--without-zstd"} {
				if !slices.Contains(s.Argv, flag) {
					t.Errorf("%s %q: missing %s in %v", v, s.Name, flag, s.Argv)
				}
			}
		}
	}
}

func TestELFGCCConfigureIsFreestanding(t *testing.T) {
	for _, v := range []Variant{VariantELF, VariantWinELF} {
		s := findStage(t, mustRecipe(t, v), "Configuring gcc")
		for _, flag := range []string{"--disable-multilib", "--disable-libstdcxx", "--without-headers", "--without-newlib", "--target=" + TripleELF} {
			if !slices.Contains(s.Argv, flag) {
				t.Errorf("%s gcc configure missing %s: %v", v, flag, s.Argv)
			}
		}
	}
}

func TestMakeStagesUseFixedJobCount(t *testing.T) {
	r := mustRecipe(t, VariantELF)

	build := findStage(t, r, "Building binutils")
	if !slices.Contains(build.Argv, "-j16") {
		t.Errorf("build stage argv %v lacks -j16", build.Argv)
	}

	install := findStage(t, r, "Installing binutils")
	for _, arg := range install.Argv {
		if strings.HasPrefix(arg, "-j") {
			t.Errorf("install stage argv %v must run serially", install.Argv)
		}
	}
}

func TestWinELFPathLayersHostPrefixes(t *testing.T) {
	cfg := testConfig()
	r := mustRecipe(t, VariantWinELF)

	path, ok := envValue(findStage(t, r, "Configuring binutils").Env, "PATH")
	if !ok {
		t.Fatal("stage env has no PATH")
	}

	own := absPrefix(cfg.ELFWinPrefix) + "/bin"
	mingw := absPrefix(cfg.MinGWPrefix) + "/bin"
	elf := absPrefix(cfg.ELFPrefix) + "/bin"

	iOwn := strings.Index(path, own)
	iMinGW := strings.Index(path, mingw)
	iELF := strings.Index(path, elf)
	if iOwn < 0 || iMinGW < 0 || iELF < 0 {
		t.Fatalf("PATH %q missing a prefix bin dir", path)
	}
	if !(iOwn < iMinGW && iMinGW < iELF) {
		t.Errorf("PATH priority wrong: own=%d mingw=%d elf=%d in %q", iOwn, iMinGW, iELF, path)
	}
}

func TestMinGWRuntimeStagesUseCrossCompiler(t *testing.T) {
	r := mustRecipe(t, VariantMinGW)

	crt := findStage(t, r, "Configuring mingw crt")
	if got, _ := envValue(crt.Env, "CC"); got != TripleMinGW+"-gcc" {
		t.Errorf("crt CC = %q; want %q", got, TripleMinGW+"-gcc")
	}

	// The compiler itself is built with the host toolchain.
	gcc := findStage(t, r, "Configuring gcc")
	if got, ok := envValue(gcc.Env, "CC"); ok && strings.HasPrefix(got, TripleMinGW) {
		t.Errorf("gcc configure CC = %q; must not be the cross driver", got)
	}
}

func TestMinGWSysrootSymlinkSurvivesReruns(t *testing.T) {
	s := findStage(t, mustRecipe(t, VariantMinGW), "Creating mingw sysroot symlink")

	// Plain ln -s exits non-zero when the link already exists, which
	// would abort a rebuild over a populated prefix.
	if !slices.Equal(s.Argv[:2], []string{"ln", "-sfn"}) {
		t.Errorf("symlink argv = %v; want ln -sfn so reruns replace the link", s.Argv)
	}
}

func TestWinELFGDBHintsAtWinMinGWLibraries(t *testing.T) {
	cfg := testConfig()
	s := findStage(t, mustRecipe(t, VariantWinELF), "Configuring gdb")

	hint := "--with-gmp=" + absPrefix(cfg.MinGWWinPrefix)
	if !slices.Contains(s.Argv, hint) {
		t.Errorf("gdb configure %v missing %s", s.Argv, hint)
	}
}

func TestELFGDBHintsAtOwnPrefix(t *testing.T) {
	cfg := testConfig()
	s := findStage(t, mustRecipe(t, VariantELF), "Configuring gdb")

	hint := "--with-mpfr=" + absPrefix(cfg.ELFPrefix)
	if !slices.Contains(s.Argv, hint) {
		t.Errorf("gdb configure %v missing %s", s.Argv, hint)
	}
}
