package compilation

import (
	"github.com/specialistvlad/aotgraph/internal/codegen"
	"github.com/specialistvlad/aotgraph/internal/ilcache"
	"github.com/specialistvlad/aotgraph/internal/modulegroup"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
)

// Config holds the per-run options of a compilation.
type Config struct {
	// Parallelism bounds the compile workers. Values below one mean one.
	Parallelism int
	// Resilient turns code generator failures into skips.
	Resilient bool
	// Verbose logs a line for every method compiled.
	Verbose bool
	// MapFile writes a map next to the image.
	MapFile bool
	// TrackEdges records graph edges for the dependency log and export.
	TrackEdges bool
}

// Deps are the collaborators of a compilation.
type Deps struct {
	TypeSystem *typesystem.Context
	Group      *modulegroup.Group
	IL         ilcache.ILProvider
	// Input is the component embedded in the image next to the compiled code.
	Input []byte
	// Backend defaults to codegen.ReferenceBackend.
	Backend codegen.Backend
	Roots   []RootProvider
}
