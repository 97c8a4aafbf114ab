// Package manifest loads an HCL assembly description into a type system,
// method bodies and compilation roots.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/aotgraph/internal/compilation"
	"github.com/specialistvlad/aotgraph/internal/ctxlog"
	"github.com/specialistvlad/aotgraph/internal/fsutil"
	"github.com/specialistvlad/aotgraph/internal/ilcache"
	"github.com/specialistvlad/aotgraph/internal/modulegroup"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
)

var typeKinds = map[string]typesystem.Kind{
	"":          typesystem.KindClass,
	"class":     typesystem.KindClass,
	"valuetype": typesystem.KindValueType,
	"interface": typesystem.KindInterface,
}

var ilHelpers = map[string]ilcache.Helper{
	"pinvoke_begin": ilcache.HelperPInvokeBegin,
	"pinvoke_end":   ilcache.HelperPInvokeEnd,
}

// ilSchema lists the instruction blocks an il body may contain.
var ilSchema = func() *hcl.BodySchema {
	s := &hcl.BodySchema{}
	for op := ilcache.OpCall; op <= ilcache.OpLocalloc; op++ {
		s.Blocks = append(s.Blocks, hcl.BlockHeaderSchema{Type: op.String()})
	}
	return s
}()

// Root is one compilation root. Exactly one of Method and Type is set.
type Root struct {
	Method *typesystem.Method
	Type   *typesystem.Type
	Reason string
}

// Assembly is a loaded description.
type Assembly struct {
	TypeSystem *typesystem.Context
	// Compiled are the modules whose code is generated, in declaration order.
	Compiled []*typesystem.Module
	Bodies   map[*typesystem.Method]*ilcache.MethodIL
	Roots    []Root
	// Input is the description as read: the file bytes, or for a directory
	// the bytes of every file concatenated in lexical path order.
	Input []byte
}

// IL returns a provider over the loaded bodies.
func (a *Assembly) IL() ilcache.ILProvider {
	return ilcache.NewStaticProvider(a.Bodies)
}

// ModuleGroup builds the group of compiled modules.
func (a *Assembly) ModuleGroup(opts ...modulegroup.Option) (*modulegroup.Group, error) {
	return modulegroup.New(a.Compiled, opts...)
}

// AddCompilationRoots roots every declared root.
func (a *Assembly) AddCompilationRoots(r *compilation.RootingService) error {
	for _, root := range a.Roots {
		var err error
		if root.Method != nil {
			err = r.AddMethodRoot(root.Method, root.Reason)
		} else {
			err = r.AddTypeRoot(root.Type, root.Reason)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// LoadFile parses and resolves the description at path. A directory is
// searched recursively for .hcl files, which are merged in lexical order.
func LoadFile(ctx context.Context, path string) (*Assembly, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read assembly description %s: %w", path, err)
	}
	paths := []string{path}
	if info.IsDir() {
		if paths, err = fsutil.FindFilesByExtension(path, ".hcl"); err != nil {
			return nil, fmt.Errorf("failed to search %s: %w", path, err)
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("no .hcl files found in %s", path)
		}
	}

	parser := hclparse.NewParser()
	files := make([]*hcl.File, 0, len(paths))
	var input []byte
	for _, p := range paths {
		src, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read assembly description %s: %w", p, err)
		}
		file, diags := parser.ParseHCL(src, p)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", p, diags)
		}
		files = append(files, file)
		input = append(input, src...)
	}
	asm, err := decode(ctx, hcl.MergeFiles(files), path)
	if err != nil {
		return nil, err
	}
	asm.Input = input
	return asm, nil
}

// Load parses and resolves a description. filename is used in diagnostics.
func Load(ctx context.Context, src []byte, filename string) (*Assembly, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	asm, err := decode(ctx, file.Body, filename)
	if err != nil {
		return nil, err
	}
	asm.Input = src
	return asm, nil
}

func decode(ctx context.Context, body hcl.Body, filename string) (*Assembly, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Manifest loader started.", "source", filename)

	var root fileRoot
	if diags := gohcl.DecodeBody(body, evalContext(), &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	l := &loader{
		ts: typesystem.NewContext(),
		asm: &Assembly{
			Bodies: make(map[*typesystem.Method]*ilcache.MethodIL),
		},
	}
	l.asm.TypeSystem = l.ts
	if err := l.resolve(&root); err != nil {
		return nil, err
	}

	logger.Debug("Manifest loaded.",
		"modules", len(root.Modules),
		"compiled", len(l.asm.Compiled),
		"bodies", len(l.asm.Bodies),
		"roots", len(l.asm.Roots),
	)
	return l.asm, nil
}

type loader struct {
	ts  *typesystem.Context
	asm *Assembly
}

// resolve defines every type before any member so members may reference
// types declared later, and every member before any body.
func (l *loader) resolve(root *fileRoot) error {
	modules := make([]*typesystem.Module, len(root.Modules))
	types := make(map[*typeBlock]*typesystem.Type)

	for i, mb := range root.Modules {
		m, err := l.ts.AddModule(mb.Name)
		if err != nil {
			return err
		}
		m.GeneratesPInvoke = mb.GeneratesPInvoke
		modules[i] = m
		if mb.Compile {
			l.asm.Compiled = append(l.asm.Compiled, m)
		}
		for _, tb := range mb.Types {
			kind, ok := typeKinds[tb.Kind]
			if !ok {
				return fmt.Errorf("type %s.%s: unknown kind %q", tb.Namespace, tb.Name, tb.Kind)
			}
			t, err := l.ts.DefineType(m, typesystem.TypeDef{
				Namespace:             tb.Namespace,
				Name:                  tb.Name,
				Kind:                  kind,
				Token:                 token(tb.Token),
				GenericParameterCount: tb.GenericParameters,
				IsDelegate:            tb.Delegate,
				LoadError:             tb.LoadError,
			})
			if err != nil {
				return err
			}
			types[tb] = t
		}
	}

	methods := make(map[*methodBlock]*typesystem.Method)
	for i, mb := range root.Modules {
		for _, tb := range mb.Types {
			owner := types[tb]
			for _, fb := range tb.Fields {
				ft, err := l.ts.ParseType(fb.Type, modules[i])
				if err != nil {
					return fmt.Errorf("field %s::%s: %w", owner, fb.Name, err)
				}
				_, err = l.ts.DefineField(owner, typesystem.FieldDef{
					Name:      fb.Name,
					Token:     token(fb.Token),
					Type:      ft,
					IsStatic:  fb.Static,
					LoadError: fb.LoadError,
				})
				if err != nil {
					return err
				}
			}
			for _, mdb := range tb.Methods {
				m, err := l.ts.DefineMethod(owner, typesystem.MethodDef{
					Name:                  mdb.Name,
					Token:                 token(mdb.Token),
					GenericParameterCount: mdb.GenericParameters,
					IsPInvoke:             mdb.PInvoke,
					IsVirtual:             mdb.Virtual,
					RequireSecObject:      mdb.RequireSecObject,
					LoadError:             mdb.LoadError,
				})
				if err != nil {
					return err
				}
				methods[mdb] = m
			}
		}
	}

	for i, mb := range root.Modules {
		for _, tb := range mb.Types {
			for _, mdb := range tb.Methods {
				if mdb.IL == nil {
					continue
				}
				m := methods[mdb]
				body, err := l.body(m, modules[i], mdb.IL)
				if err != nil {
					return fmt.Errorf("body of %s: %w", m, err)
				}
				l.asm.Bodies[m] = body
			}
		}
	}

	for _, rb := range root.Roots {
		r, err := l.root(rb)
		if err != nil {
			return err
		}
		l.asm.Roots = append(l.asm.Roots, r)
	}
	return nil
}

func (l *loader) body(m *typesystem.Method, scope *typesystem.Module, il *ilBlock) (*ilcache.MethodIL, error) {
	content, diags := il.Body.Content(ilSchema)
	if diags.HasErrors() {
		return nil, diags
	}
	body := &ilcache.MethodIL{Method: m, Instructions: []ilcache.Instruction{}}
	for i, block := range content.Blocks {
		op, _ := ilcache.ParseOp(block.Type)
		var ib instructionBlock
		if diags := gohcl.DecodeBody(block.Body, evalContext(), &ib); diags.HasErrors() {
			return nil, fmt.Errorf("instruction %d (%s): %w", i, block.Type, diags)
		}
		in, err := l.instruction(op, scope, &ib)
		if err != nil {
			return nil, fmt.Errorf("instruction %d (%s): %w", i, block.Type, err)
		}
		body.Instructions = append(body.Instructions, in)
	}
	return body, nil
}

func (l *loader) instruction(op ilcache.Op, scope *typesystem.Module, ib *instructionBlock) (ilcache.Instruction, error) {
	in := ilcache.Instruction{Op: op}
	var err error
	if ib.Method != nil {
		if in.Method, err = l.ts.ParseMethod(*ib.Method, scope); err != nil {
			return in, err
		}
	}
	if ib.Token != nil {
		in.Token = typesystem.ModuleToken{Module: scope, Token: typesystem.Token(*ib.Token)}
	}
	if ib.Constrained != nil {
		if in.Constrained, err = l.ts.ParseType(*ib.Constrained, scope); err != nil {
			return in, err
		}
	}
	if ib.Type != nil {
		if in.Type, err = l.ts.ParseType(*ib.Type, scope); err != nil {
			return in, err
		}
	}
	if ib.Field != nil {
		if in.Field, err = l.ts.ParseField(*ib.Field, scope); err != nil {
			return in, err
		}
	}
	if ib.Helper != nil {
		h, ok := ilHelpers[*ib.Helper]
		if !ok {
			return in, fmt.Errorf("unknown helper %q", *ib.Helper)
		}
		in.Helper = h
	}

	switch op {
	case ilcache.OpCall:
		if in.Method == nil {
			return in, errors.New("call needs a method")
		}
	case ilcache.OpNewArr, ilcache.OpNewObj, ilcache.OpLdToken:
		if in.Type == nil {
			return in, fmt.Errorf("%s needs a type", op)
		}
	case ilcache.OpLdsflda:
		if in.Field == nil {
			return in, errors.New("ldsflda needs a field")
		}
	case ilcache.OpDelegate:
		if in.Type == nil || in.Method == nil {
			return in, errors.New("delegate needs a type and a method")
		}
	case ilcache.OpHelper:
		if in.Helper == ilcache.HelperNone {
			return in, errors.New("helper needs a helper name")
		}
	}
	return in, nil
}

func (l *loader) root(rb *rootBlock) (Root, error) {
	var scope *typesystem.Module
	if len(l.asm.Compiled) > 0 {
		scope = l.asm.Compiled[0]
	}
	if rb.Module != "" {
		if scope = l.ts.Module(rb.Module); scope == nil {
			return Root{}, fmt.Errorf("root refers to unknown module %q", rb.Module)
		}
	}
	reason := rb.Reason
	switch {
	case rb.Method != nil && rb.Type == nil:
		m, err := l.ts.ParseMethod(*rb.Method, scope)
		if err != nil {
			return Root{}, fmt.Errorf("root method: %w", err)
		}
		if reason == "" {
			reason = "Method root"
		}
		return Root{Method: m, Reason: reason}, nil
	case rb.Type != nil && rb.Method == nil:
		t, err := l.ts.ParseType(*rb.Type, scope)
		if err != nil {
			return Root{}, fmt.Errorf("root type: %w", err)
		}
		if reason == "" {
			reason = "Type root"
		}
		return Root{Type: t, Reason: reason}, nil
	default:
		return Root{}, errors.New("root needs exactly one of method and type")
	}
}

func token(v *uint32) typesystem.Token {
	if v == nil {
		return 0
	}
	return typesystem.Token(*v)
}
