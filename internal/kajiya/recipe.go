package kajiya

import (
	"fmt"
	"path/filepath"
)

// Variant identifies one of the four toolchain flavors.
type Variant string

const (
	VariantMinGW    Variant = "mingw"
	VariantELF      Variant = "elf"
	VariantWinMinGW Variant = "win-mingw"
	VariantWinELF   Variant = "win-elf"
)

// buildOrder is the fixed processing order for requested variants. The
// dependency graph refines it, but ties are broken in this order so runs
// are reproducible.
var buildOrder = []Variant{VariantMinGW, VariantELF, VariantWinMinGW, VariantWinELF}

// Recipe is the fixed, ordered stage sequence that builds one toolchain
// variant into its install prefix. Requires lists the variants whose
// prefixes must already exist before the first stage may run.
type Recipe struct {
	Variant  Variant
	Prefix   string
	Requires []Variant
	Stages   []Stage
}

// newRecipe assembles the stage list for a variant. Stage order is a
// static property of the variant; the orchestrator never reorders it.
func newRecipe(v Variant, cfg *Config, src *SourceTrees) (*Recipe, error) {
	switch v {
	case VariantMinGW:
		return mingwRecipe(cfg, src), nil
	case VariantELF:
		return elfRecipe(cfg, src), nil
	case VariantWinMinGW:
		return winMinGWRecipe(cfg, src), nil
	case VariantWinELF:
		return winELFRecipe(cfg, src), nil
	}
	return nil, fmt.Errorf("unknown toolchain variant %q", v)
}

func buildDir(parts ...string) string {
	return filepath.Join(append([]string{BuildRoot}, parts...)...)
}

// makeStage is a plain make invocation in dir with the fixed job count.
func makeStage(name, dir string, env []string, targets ...string) Stage {
	argv := append([]string{"make"}, targets...)
	argv = append(argv, fmt.Sprintf("-j%d", makeJobs))
	return Stage{Name: name, Dir: dir, Argv: argv, Env: env}
}

// installStage is a serial make invocation (install targets do not
// benefit from -j and some upstream install rules are not parallel-safe).
func installStage(name, dir string, env []string, targets ...string) Stage {
	return Stage{Name: name, Dir: dir, Argv: append([]string{"make"}, targets...), Env: env}
}

// mingwRecipe builds the native-hosted, MinGW-targeting toolchain:
// binutils, the mingw-w64 runtime headers, a driver-only gcc that is then
// used as CC/CXX to build the mingw-w64 CRT and winpthreads, and finally
// the remaining gcc runtime libraries which need those in place.
func mingwRecipe(cfg *Config, src *SourceTrees) *Recipe {
	target := TripleMinGW
	prefix := absPrefix(cfg.MinGWPrefix)
	env := composeEnv(cfg.MinGWPrefix, nil, target, nil)
	crossEnv := composeEnv(cfg.MinGWPrefix, nil, target, crossOverrides(target))

	binutilsDir := buildDir("build-binutils-" + target)
	gccDir := buildDir("build-gcc-" + target)
	headersDir := buildDir("build-mingw-headers-" + target)
	crtDir := buildDir("build-mingw-libs-" + target)
	pthreadsDir := buildDir("build-mingw-winpthreads-" + target)

	stages := []Stage{
		{
			Name: "Configuring binutils",
			Dir:  binutilsDir,
			Argv: []string{
				filepath.Join(src.Binutils, "configure"),
				"--target=" + target,
				"--prefix=" + prefix,
				"--with-sysroot=" + prefix,
				"--disable-nls",
				"--disable-werror",
				"--without-zstd",
			},
			Env: env,
		},
		makeStage("Building binutils", binutilsDir, env),
		installStage("Installing binutils", binutilsDir, env, "install-strip"),
		{
			Name: "Configuring mingw headers",
			Dir:  headersDir,
			Argv: []string{
				filepath.Join(src.MinGW, "mingw-w64-headers", "configure"),
				"--host=" + target,
				"--prefix=" + filepath.Join(prefix, target),
				"--disable-nls",
				"--disable-werror",
				"--without-zstd",
			},
			Env: env,
		},
		installStage("Installing mingw headers", headersDir, env, "install"),
		{
			// Some gcc configure probes look for headers under
			// <sysroot>/mingw regardless of the triple. -sfn so a
			// leftover link from a prior run does not abort the recipe.
			Name: "Creating mingw sysroot symlink",
			Dir:  prefix,
			Argv: []string{"ln", "-sfn", filepath.Join(prefix, target), filepath.Join(prefix, "mingw")},
			Env:  env,
		},
		{
			Name: "Downloading gcc prerequisites",
			Dir:  src.GCC,
			Argv: []string{"./contrib/download_prerequisites"},
			Env:  env,
		},
		{
			Name: "Configuring gcc",
			Dir:  gccDir,
			Argv: []string{
				filepath.Join(src.GCC, "configure"),
				"--target=" + target,
				"--with-sysroot=" + prefix,
				"--with-ld=" + filepath.Join(prefix, "bin", target+"-ld"),
				"--with-as=" + filepath.Join(prefix, "bin", target+"-as"),
				"--prefix=" + prefix,
				"--without-zstd",
				"--disable-nls",
				"--disable-multilib",
				"--disable-werror",
				"--enable-languages=c,c++",
				"--enable-threads=posix",
			},
			Env: env,
		},
		makeStage("Building gcc", gccDir, env, "all-gcc"),
		installStage("Installing gcc", gccDir, env, "install-strip-gcc"),
		{
			Name: "Configuring mingw crt",
			Dir:  crtDir,
			Argv: []string{
				filepath.Join(src.MinGW, "mingw-w64-crt", "configure"),
				"--host=" + target,
				"--prefix=" + filepath.Join(prefix, target),
				"--with-sysroot=" + filepath.Join(prefix, target),
				"--disable-multilib",
				"--disable-nls",
				"--disable-werror",
				"--without-zstd",
			},
			Env: crossEnv,
		},
		makeStage("Building mingw crt", crtDir, crossEnv),
		installStage("Installing mingw crt", crtDir, crossEnv, "install-strip"),
		{
			Name: "Configuring mingw winpthreads",
			Dir:  pthreadsDir,
			Argv: []string{
				filepath.Join(src.MinGW, "mingw-w64-libraries", "winpthreads", "configure"),
				"--host=" + target,
				"--with-sysroot=" + filepath.Join(prefix, target),
				"--prefix=" + filepath.Join(prefix, target),
				"--disable-nls",
				"--disable-werror",
				"--without-zstd",
			},
			Env: crossEnv,
		},
		makeStage("Building mingw winpthreads", pthreadsDir, crossEnv),
		installStage("Installing mingw winpthreads", pthreadsDir, crossEnv, "install-strip"),
		makeStage("Building gcc libs", gccDir, env),
		installStage("Installing gcc libs", gccDir, env, "install-strip"),
	}

	return &Recipe{Variant: VariantMinGW, Prefix: prefix, Stages: stages}
}

// elfRecipe builds the native-hosted, bare-metal ELF toolchain: binutils,
// a freestanding gcc (no headers, no hosted libstdc++), libgcc for the
// target, the numeric libraries bundled in the gcc build tree, and gdb
// pointed at those libraries.
func elfRecipe(cfg *Config, src *SourceTrees) *Recipe {
	target := TripleELF
	prefix := absPrefix(cfg.ELFPrefix)
	env := composeEnv(cfg.ELFPrefix, nil, target, nil)

	binutilsDir := buildDir("build-binutils-" + target)
	gccDir := buildDir("build-gcc-" + target)
	gdbDir := buildDir("build-gdb-" + target)

	stages := append(
		binutilsStages(src, binutilsDir, env,
			"--target="+target,
			"--prefix="+prefix,
		),
		elfGCCStages(src, gccDir, env, "", target, prefix)...,
	)
	stages = append(stages, gdbStages(src, gdbDir, env, "", target, prefix, prefix)...)

	return &Recipe{Variant: VariantELF, Prefix: prefix, Stages: stages}
}

// winMinGWRecipe cross-builds the Windows-hosted MinGW toolchain using
// the native MinGW cross compiler as host compiler. The produced binaries
// link against libgcc and winpthread DLLs, which are copied into bin so
// the unpacked toolchain is self-contained on a Windows machine.
func winMinGWRecipe(cfg *Config, src *SourceTrees) *Recipe {
	target := TripleMinGW
	prefix := absPrefix(cfg.MinGWWinPrefix)
	hosts := []string{cfg.MinGWPrefix}
	env := composeEnv(cfg.MinGWWinPrefix, hosts, target, nil)

	binutilsDir := buildDir("build-win-binutils-" + target)
	gccDir := buildDir("build-win-gcc-" + target)
	crtDir := buildDir("build-win-mingw-libs-" + target)

	stages := []Stage{
		{
			Name: "Configuring binutils",
			Dir:  binutilsDir,
			Argv: []string{
				filepath.Join(src.Binutils, "configure"),
				"--host=" + target,
				"--target=" + target,
				"--prefix=" + prefix,
				"--disable-multilib",
				"--disable-nls",
				"--disable-werror",
				"--without-zstd",
			},
			Env: env,
		},
		makeStage("Building binutils", binutilsDir, env),
		installStage("Installing binutils", binutilsDir, env, "install-strip"),
		{
			Name: "Downloading gcc prerequisites",
			Dir:  src.GCC,
			Argv: []string{"./contrib/download_prerequisites"},
			Env:  env,
		},
		{
			Name: "Configuring gcc",
			Dir:  gccDir,
			Argv: []string{
				filepath.Join(src.GCC, "configure"),
				"--host=" + target,
				"--target=" + target,
				"--prefix=" + prefix,
				"--disable-nls",
				"--disable-multilib",
				"--disable-werror",
				"--without-zstd",
				"--without-headers",
				"--without-newlib",
				"--enable-languages=c",
			},
			Env: env,
		},
		makeStage("Building gcc", gccDir, env),
		installStage("Installing gcc", gccDir, env, "install-strip"),
		{
			Name: "Copying libgcc runtime DLL to bin",
			Dir:  prefix,
			Argv: []string{"cp", filepath.Join(prefix, "lib", "libgcc_s_seh-1.dll"), filepath.Join(prefix, "bin") + "/"},
			Env:  env,
		},
		{
			Name: "Configuring mingw runtime",
			Dir:  crtDir,
			Argv: []string{
				filepath.Join(src.MinGW, "configure"),
				"--host=" + target,
				"--prefix=" + filepath.Join(prefix, target),
				"--with-libraries=winpthread",
				"--disable-multilib",
				"--disable-nls",
				"--disable-werror",
				"--without-zstd",
			},
			Env: env,
		},
		makeStage("Building mingw runtime", crtDir, env),
		installStage("Installing mingw runtime", crtDir, env, "install-strip"),
		{
			Name: "Copying winpthread runtime DLL to bin",
			Dir:  prefix,
			Argv: []string{"cp", filepath.Join(prefix, target, "bin", "libwinpthread-1.dll"), filepath.Join(prefix, "bin") + "/"},
			Env:  env,
		},
		installStage("Installing gmp", filepath.Join(gccDir, "gmp"), env, "install-strip"),
		installStage("Installing mpfr", filepath.Join(gccDir, "mpfr"), env, "install-strip"),
		installStage("Installing mpc", filepath.Join(gccDir, "mpc"), env, "install-strip"),
	}

	return &Recipe{
		Variant:  VariantWinMinGW,
		Prefix:   prefix,
		Requires: []Variant{VariantMinGW},
		Stages:   stages,
	}
}

// winELFRecipe cross-builds the Windows-hosted ELF toolchain. The MinGW
// host compiler builds the toolchain's own binaries; the native ELF
// tools must also be on PATH so target libgcc can be assembled. gdb's
// gmp/mpfr hints point at the Windows-MinGW prefix, where host-ABI
// numeric libraries were installed.
func winELFRecipe(cfg *Config, src *SourceTrees) *Recipe {
	host := TripleMinGW
	target := TripleELF
	prefix := absPrefix(cfg.ELFWinPrefix)
	hosts := []string{cfg.ELFPrefix, cfg.MinGWPrefix}
	env := composeEnv(cfg.ELFWinPrefix, hosts, target, nil)

	binutilsDir := buildDir("build-win-elf-binutils-" + target)
	gccDir := buildDir("build-win-elf-gcc-" + target)
	gdbDir := buildDir("build-win-elf-gdb-" + target)

	stages := append(
		binutilsStages(src, binutilsDir, env,
			"--host="+host,
			"--target="+target,
			"--prefix="+prefix,
		),
		elfGCCStages(src, gccDir, env, host, target, prefix)...,
	)
	stages = append(stages, gdbStages(src, gdbDir, env, host, target, prefix, absPrefix(cfg.MinGWWinPrefix))...)

	return &Recipe{
		Variant:  VariantWinELF,
		Prefix:   prefix,
		Requires: []Variant{VariantMinGW, VariantELF, VariantWinMinGW},
		Stages:   stages,
	}
}

// binutilsStages is the configure/build/install-strip triple shared by
// the two ELF recipes. selection holds the --host/--target/--prefix set.
func binutilsStages(src *SourceTrees, dir string, env []string, selection ...string) []Stage {
	argv := append([]string{filepath.Join(src.Binutils, "configure")}, selection...)
	argv = append(argv, "--disable-nls", "--disable-werror", "--without-zstd")
	return []Stage{
		{Name: "Configuring binutils", Dir: dir, Argv: argv, Env: env},
		makeStage("Building binutils", dir, env),
		installStage("Installing binutils", dir, env, "install-strip"),
	}
}

// elfGCCStages covers the freestanding gcc bootstrap: prerequisites,
// driver-only build, target libgcc, and the bundled numeric libraries
// (gmp, mpfr, mpc) that gdb later links against. host is empty for the
// native variant.
func elfGCCStages(src *SourceTrees, dir string, env []string, host, target, prefix string) []Stage {
	configure := []string{filepath.Join(src.GCC, "configure")}
	if host != "" {
		configure = append(configure, "--host="+host)
	}
	configure = append(configure,
		"--target="+target,
		"--prefix="+prefix,
		"--disable-nls",
		"--disable-multilib",
		"--disable-werror",
		"--disable-libstdcxx",
		"--without-zstd",
		"--without-headers",
		"--without-newlib",
		"--enable-languages=c,c++",
	)

	return []Stage{
		{
			Name: "Downloading gcc prerequisites",
			Dir:  src.GCC,
			Argv: []string{"./contrib/download_prerequisites"},
			Env:  env,
		},
		{Name: "Configuring gcc", Dir: dir, Argv: configure, Env: env},
		makeStage("Building gcc", dir, env, "all-gcc"),
		installStage("Installing gcc", dir, env, "install-strip-gcc"),
		// The red zone is unusable in kernel/interrupt contexts, which is
		// what a freestanding x86_64-elf libgcc exists for.
		makeStage("Building gcc libs", dir, env, "all-target-libgcc", "CFLAGS_FOR_TARGET=-g -O2 -mno-red-zone"),
		installStage("Installing gcc libs", dir, env, "install-target-libgcc"),
		installStage("Installing gmp", filepath.Join(dir, "gmp"), env, "install-strip"),
		installStage("Installing mpfr", filepath.Join(dir, "mpfr"), env, "install-strip"),
		installStage("Installing mpc", filepath.Join(dir, "mpc"), env, "install-strip"),
	}
}

// gdbStages configures gdb against the numeric libraries installed under
// libHintPrefix and builds only the debugger proper.
func gdbStages(src *SourceTrees, dir string, env []string, host, target, prefix, libHintPrefix string) []Stage {
	configure := []string{filepath.Join(src.GDB, "configure")}
	if host != "" {
		configure = append(configure, "--host="+host)
	}
	configure = append(configure,
		"--target="+target,
		"--prefix="+prefix,
		"--with-gmp="+libHintPrefix,
		"--with-mpfr="+libHintPrefix,
		"--without-zstd",
		"--disable-nls",
		"--disable-werror",
	)

	return []Stage{
		{Name: "Configuring gdb", Dir: dir, Argv: configure, Env: env},
		makeStage("Building gdb", dir, env, "all-gdb"),
		installStage("Installing gdb", dir, env, "install-gdb"),
	}
}
