package codegen

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/aotgraph/internal/typesystem"
)

// ErrRequiresRuntimeJit is wrapped by errors for methods that are left to the
// runtime JIT on purpose.
var ErrRequiresRuntimeJit = errors.New("requires runtime JIT")

func requiresRuntimeJit(what string) error {
	return fmt.Errorf("%s: %w", what, ErrRequiresRuntimeJit)
}

// CodeGenerationFailedError reports a defect or unsupported construct inside
// the code generator itself.
type CodeGenerationFailedError struct {
	Method *typesystem.Method
	Reason string
}

func (e *CodeGenerationFailedError) Error() string {
	return fmt.Sprintf("code generation failed for %s: %s", e.Method, e.Reason)
}

// ResultKind is the outcome of compiling one method.
type ResultKind int

const (
	Compiled ResultKind = iota
	SkippedResolutionFailure
	SkippedRequiresRuntimeJit
	Failed
)

func (k ResultKind) String() string {
	switch k {
	case Compiled:
		return "compiled"
	case SkippedResolutionFailure:
		return "skipped_resolution_failure"
	case SkippedRequiresRuntimeJit:
		return "skipped_requires_runtime_jit"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// Classify maps a CompileMethod error onto a result kind. Anything that is not
// a resolution failure or a deliberate runtime-JIT skip counts as Failed.
func Classify(err error) ResultKind {
	if err == nil {
		return Compiled
	}
	var tse *typesystem.TypeSystemError
	switch {
	case errors.As(err, &tse):
		return SkippedResolutionFailure
	case errors.Is(err, ErrRequiresRuntimeJit):
		return SkippedRequiresRuntimeJit
	default:
		return Failed
	}
}
