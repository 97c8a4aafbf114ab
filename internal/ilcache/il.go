package ilcache

import (
	"fmt"

	"github.com/specialistvlad/aotgraph/internal/typesystem"
)

// Op is an IL operation understood by the code generator.
type Op int

const (
	OpCall Op = iota
	OpNewArr
	OpNewObj
	OpLdToken
	OpLdsflda
	OpDelegate
	OpHelper
	OpCalli
	OpLocalloc
)

var opNames = [...]string{
	OpCall:     "call",
	OpNewArr:   "newarr",
	OpNewObj:   "newobj",
	OpLdToken:  "ldtoken",
	OpLdsflda:  "ldsflda",
	OpDelegate: "delegate",
	OpHelper:   "helper",
	OpCalli:    "calli",
	OpLocalloc: "localloc",
}

func (o Op) String() string {
	if int(o) >= 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// ParseOp maps an op name to its Op.
func ParseOp(name string) (Op, bool) {
	for i, n := range opNames {
		if n == name {
			return Op(i), true
		}
	}
	return 0, false
}

// Helper names a runtime helper IL can call directly.
type Helper uint8

const (
	HelperNone Helper = iota
	HelperPInvokeBegin
	HelperPInvokeEnd
)

func (h Helper) String() string {
	switch h {
	case HelperPInvokeBegin:
		return "PInvokeBegin"
	case HelperPInvokeEnd:
		return "PInvokeEnd"
	default:
		return "None"
	}
}

// Instruction is one IL operation with its resolved operands. Which operand
// is set depends on Op.
type Instruction struct {
	Op Op

	// Method and Token are set for call and delegate. Constrained is set for
	// constrained calls.
	Method      *typesystem.Method
	Token       typesystem.ModuleToken
	Constrained *typesystem.Type

	// Type is the array type of newarr, the allocated type of newobj, the
	// loaded type of ldtoken and the delegate type of delegate.
	Type *typesystem.Type

	Field  *typesystem.Field
	Helper Helper
}

// MethodIL is the body of a method definition. Operands may mention the
// generic parameters of the method and its owner.
type MethodIL struct {
	Method       *typesystem.Method
	Instructions []Instruction
}

// IsTrivial reports whether the body does nothing and can be inlined away.
func (il *MethodIL) IsTrivial() bool {
	return il != nil && len(il.Instructions) == 0
}

// ILProvider returns method bodies. A nil body without error means the
// method has no IL, such as a P/Invoke or an abstract method.
type ILProvider interface {
	GetMethodIL(m *typesystem.Method) (*MethodIL, error)
}

// StaticProvider serves bodies registered per method definition.
type StaticProvider struct {
	bodies map[*typesystem.Method]*MethodIL
}

// NewStaticProvider returns a provider over bodies keyed by method
// definition.
func NewStaticProvider(bodies map[*typesystem.Method]*MethodIL) *StaticProvider {
	return &StaticProvider{bodies: bodies}
}

// GetMethodIL returns the body of m's typical definition.
func (p *StaticProvider) GetMethodIL(m *typesystem.Method) (*MethodIL, error) {
	return p.bodies[m.TypicalDefinition()], nil
}

// pinvokeStub is the marshalling body compiled for P/Invoke methods: an
// unmanaged-transition frame around an indirect call to the target.
func pinvokeStub(m *typesystem.Method) *MethodIL {
	return &MethodIL{
		Method: m,
		Instructions: []Instruction{
			{Op: OpHelper, Helper: HelperPInvokeBegin},
			{Op: OpCalli},
			{Op: OpHelper, Helper: HelperPInvokeEnd},
		},
	}
}
