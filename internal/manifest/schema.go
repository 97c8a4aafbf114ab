package manifest

import "github.com/hashicorp/hcl/v2"

// fileRoot is the top level of an assembly description.
type fileRoot struct {
	Modules []*moduleBlock `hcl:"module,block"`
	Roots   []*rootBlock   `hcl:"root,block"`
}

type moduleBlock struct {
	Name             string       `hcl:"name,label"`
	Compile          bool         `hcl:"compile,optional"`
	GeneratesPInvoke bool         `hcl:"generates_pinvoke,optional"`
	Types            []*typeBlock `hcl:"type,block"`
}

type typeBlock struct {
	Namespace         string         `hcl:"namespace,label"`
	Name              string         `hcl:"name,label"`
	Kind              string         `hcl:"kind,optional"`
	Token             *uint32        `hcl:"token,optional"`
	GenericParameters int            `hcl:"generic_parameters,optional"`
	Delegate          bool           `hcl:"delegate,optional"`
	LoadError         string         `hcl:"load_error,optional"`
	Fields            []*fieldBlock  `hcl:"field,block"`
	Methods           []*methodBlock `hcl:"method,block"`
}

type fieldBlock struct {
	Name      string  `hcl:"name,label"`
	Type      string  `hcl:"type"`
	Token     *uint32 `hcl:"token,optional"`
	Static    bool    `hcl:"static,optional"`
	LoadError string  `hcl:"load_error,optional"`
}

type methodBlock struct {
	Name              string   `hcl:"name,label"`
	Token             *uint32  `hcl:"token,optional"`
	GenericParameters int      `hcl:"generic_parameters,optional"`
	PInvoke           bool     `hcl:"pinvoke,optional"`
	Virtual           bool     `hcl:"virtual,optional"`
	RequireSecObject  bool     `hcl:"require_sec_object,optional"`
	LoadError         string   `hcl:"load_error,optional"`
	IL                *ilBlock `hcl:"il,block"`
}

// ilBlock keeps its body undecoded; instruction order is the order of the
// nested blocks.
type ilBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// instructionBlock is the union of every instruction's operands.
type instructionBlock struct {
	Method      *string `hcl:"method,optional"`
	Type        *string `hcl:"type,optional"`
	Field       *string `hcl:"field,optional"`
	Token       *uint32 `hcl:"token,optional"`
	Constrained *string `hcl:"constrained,optional"`
	Helper      *string `hcl:"helper,optional"`
}

type rootBlock struct {
	Method *string `hcl:"method,optional"`
	Type   *string `hcl:"type,optional"`
	Module string  `hcl:"module,optional"`
	Reason string  `hcl:"reason,optional"`
}
