package kajiya

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Main is the CLI entry point. Flags are boolean switches per variant;
// --config is required for everything except --version.
func Main() {
	buildMinGW := flag.Bool("build_mingw", false, "Build the native MinGW toolchain.")
	buildELF := flag.Bool("build_elf", false, "Build the native ELF toolchain.")
	buildWinMinGW := flag.Bool("build_win_mingw", false, "Build the Windows-hosted MinGW toolchain.")
	buildWinELF := flag.Bool("build_win_elf", false, "Build the Windows-hosted ELF toolchain.")

	packMinGW := flag.Bool("pack_mingw", false, "Pack the native MinGW prefix into an archive.")
	packELF := flag.Bool("pack_elf", false, "Pack the native ELF prefix into an archive.")
	packWinMinGW := flag.Bool("pack_win_mingw", false, "Pack the Windows-hosted MinGW prefix into an archive.")
	packWinELF := flag.Bool("pack_win_elf", false, "Pack the Windows-hosted ELF prefix into an archive.")

	upload := flag.Bool("upload", false, "Upload archives to the configured mirror.")
	cleanup := flag.Bool("cleanup", false, "Remove tarball, source and build scratch directories, then exit.")
	configPath := flag.String("config", "", "Path to the JSON configuration document (required).")
	showVersion := flag.Bool("version", false, "Print version information and exit.")
	flag.BoolVar(&Debug, "debug", false, "Enable debug output.")

	flag.Parse()

	if *showVersion {
		fmt.Printf("kajiya %s (%s, built %s)\n", version, hostTriple(), buildDate)
		return
	}

	if *configPath == "" {
		cPrintf(colError, "Error: --config is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}

	// Cleanup is mutually exclusive with everything else: purge and exit.
	if *cleanup {
		if err := Cleanup(); err != nil {
			fatal(err)
		}
		colArrow.Print("-> ")
		colSuccess.Println("Cleanup done")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var requested []Variant
	for _, sel := range []struct {
		on bool
		v  Variant
	}{
		{*buildMinGW, VariantMinGW},
		{*buildELF, VariantELF},
		{*buildWinMinGW, VariantWinMinGW},
		{*buildWinELF, VariantWinELF},
	} {
		if sel.on {
			requested = append(requested, sel.v)
		}
	}

	if len(requested) > 0 {
		orch := NewOrchestrator(cfg, NewExecRunner(ctx))
		if err := orch.Build(requested); err != nil {
			fatal(err)
		}
	}

	hostArch, hostOS := hostLabel()
	for _, sel := range []struct {
		on               bool
		prefix           string
		arch, os, binfmt string
	}{
		{*packMinGW, cfg.MinGWPrefix, hostArch, hostOS, "mingw"},
		{*packELF, cfg.ELFPrefix, hostArch, hostOS, "elf"},
		{*packWinMinGW, cfg.MinGWWinPrefix, "amd64", "windows", "mingw"},
		{*packWinELF, cfg.ELFWinPrefix, "amd64", "windows", "elf"},
	} {
		if !sel.on {
			continue
		}
		colArrow.Print("-> ")
		colSuccess.Printf("Packing %s for %s-%s\n", sel.binfmt, sel.arch, sel.os)
		if err := packPrefix(cfg.ArchivePrefix, absPrefix(sel.prefix), sel.arch, sel.os, sel.binfmt); err != nil {
			fatal(err)
		}
	}

	if *upload {
		if err := uploadArchives(ctx, cfg); err != nil {
			fatal(err)
		}
	}
}

func hostTriple() string {
	arch, platform := hostLabel()
	return arch + "-" + platform
}

func fatal(err error) {
	colArrow.Print("-> ")
	cPrintf(colError, "Error: %v\n", err)
	os.Exit(1)
}
