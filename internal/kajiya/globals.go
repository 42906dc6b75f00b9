package kajiya

import (
	"github.com/gookit/color"
)

// Global variables
var (
	// Scratch layout, relative to the working directory. Only the install
	// prefixes and the archive directory come from the config file.
	TarballDir = "tarballs"
	SourcesDir = "sources"
	BuildRoot  = "build"

	Debug bool

	version   = "dev"     // overridden at build time
	buildDate = "unknown" // overridden at build time
)

// Target triples. These are fixed properties of the four toolchain
// variants, not configuration.
const (
	TripleELF   = "x86_64-elf"
	TripleMinGW = "x86_64-w64-mingw32"
)

// makeJobs is the fixed -j worker count handed to make. Parallelism
// inside a stage belongs to make; recipes themselves never overlap.
const makeJobs = 16

// color helpers
var (
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
)
