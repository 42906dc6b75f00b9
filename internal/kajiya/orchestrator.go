package kajiya

import (
	"fmt"
	"os"
)

// recipeStatus tracks a requested variant through its lifecycle.
type recipeStatus int

const (
	statusPending recipeStatus = iota
	statusRunning
	statusDone
	statusFailed
	statusSkipped // prerequisite failed in this run; never started
)

// Orchestrator owns one build run: source acquisition, recipe ordering
// and stage execution. Everything is synchronous; recipes never overlap.
type Orchestrator struct {
	cfg    *Config
	runner StageRunner

	status map[Variant]recipeStatus
}

func NewOrchestrator(cfg *Config, runner StageRunner) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		runner: runner,
		status: make(map[Variant]recipeStatus),
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// EnsureSources drives the NEED_DOWNLOAD -> NEED_EXTRACT -> READY part of
// the run. Both transitions are presence-checked only: an existing
// tarball cache is trusted as complete.
func (o *Orchestrator) EnsureSources() (*SourceTrees, error) {
	if !dirExists(TarballDir) {
		colArrow.Print("-> ")
		colSuccess.Println("Downloading sources")
		if err := downloadSources(o.cfg); err != nil {
			return nil, err
		}
	}

	if !dirExists(SourcesDir) {
		colArrow.Print("-> ")
		colSuccess.Println("Extracting sources")
		if err := extractSources(); err != nil {
			return nil, err
		}
	}

	return resolveSourceTrees(SourcesDir)
}

// Build runs the requested variants in dependency order. A stage failure
// is fatal to its recipe and to every requested recipe that depends on
// it, but independent requested recipes still run. The first failure is
// returned after the run completes.
func (o *Orchestrator) Build(requested []Variant) error {
	if len(requested) == 0 {
		return nil
	}

	trees, err := o.EnsureSources()
	if err != nil {
		return err
	}

	recipes := make(map[Variant]*Recipe, len(requested))
	graph := newDepGraph()
	for _, v := range requested {
		r, err := newRecipe(v, o.cfg, trees)
		if err != nil {
			return err
		}
		recipes[v] = r
		graph.addNode(v)
		o.status[v] = statusPending
	}
	for _, r := range recipes {
		for _, dep := range r.Requires {
			if _, ok := recipes[dep]; !ok {
				// Satisfied by a prefix from a prior run; checked below.
				continue
			}
			if err := graph.addEdge(dep, r.Variant); err != nil {
				return err
			}
		}
	}

	order, err := graph.topoSort()
	if err != nil {
		return err
	}

	var firstErr error
	for _, v := range order {
		r := recipes[v]

		if blocked := o.failedPrereq(r); blocked != "" {
			o.status[v] = statusSkipped
			colArrow.Print("-> ")
			cPrintf(colWarn, "Skipping %s toolchain: prerequisite %s failed\n", v, blocked)
			continue
		}

		if err := o.checkPrereqPrefixes(r); err != nil {
			o.status[v] = statusFailed
			if firstErr == nil {
				firstErr = err
			}
			colArrow.Print("-> ")
			cPrintf(colError, "%v\n", err)
			continue
		}

		colArrow.Print("-> ")
		colSuccess.Printf("Building %s toolchain\n", v)
		o.status[v] = statusRunning

		if err := o.runRecipe(r); err != nil {
			o.status[v] = statusFailed
			if firstErr == nil {
				firstErr = err
			}
			colArrow.Print("-> ")
			cPrintf(colError, "%s toolchain failed: %v\n", v, err)
			continue
		}

		o.status[v] = statusDone
		colArrow.Print("-> ")
		colSuccess.Printf("%s toolchain complete: %s\n", v, r.Prefix)
	}

	return firstErr
}

// failedPrereq reports the first requested prerequisite of r that failed
// or was skipped in this run, or "" if none did.
func (o *Orchestrator) failedPrereq(r *Recipe) Variant {
	for _, dep := range r.Requires {
		switch o.status[dep] {
		case statusFailed, statusSkipped:
			return dep
		}
	}
	return ""
}

// checkPrereqPrefixes verifies that every prerequisite install prefix
// exists on disk, whether produced in this run or a prior one.
func (o *Orchestrator) checkPrereqPrefixes(r *Recipe) error {
	for _, dep := range r.Requires {
		if o.status[dep] == statusDone {
			continue
		}
		prefix := absPrefix(o.cfg.PrefixFor(dep))
		if !dirExists(prefix) {
			return fmt.Errorf("missing prerequisite for %s toolchain: %s prefix %s does not exist (build --build_%s first)",
				r.Variant, dep, prefix, flagName(dep))
		}
	}
	return nil
}

// runRecipe executes the recipe's stages strictly in order, stopping at
// the first failure. The half-populated prefix is left on disk for
// inspection; only cleanup removes scratch state.
func (o *Orchestrator) runRecipe(r *Recipe) error {
	for _, stage := range r.Stages {
		if err := o.runner.Run(stage); err != nil {
			return err
		}
	}
	return nil
}

// flagName maps a variant to its CLI flag suffix.
func flagName(v Variant) string {
	switch v {
	case VariantMinGW:
		return "mingw"
	case VariantELF:
		return "elf"
	case VariantWinMinGW:
		return "win_mingw"
	case VariantWinELF:
		return "win_elf"
	}
	return string(v)
}
