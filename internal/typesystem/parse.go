package typesystem

import (
	"fmt"
	"strconv"
	"strings"
)

var typeAliases = map[string]ElementType{
	"void":    ElementTypeVoid,
	"bool":    ElementTypeBoolean,
	"char":    ElementTypeChar,
	"int8":    ElementTypeI1,
	"uint8":   ElementTypeU1,
	"int16":   ElementTypeI2,
	"uint16":  ElementTypeU2,
	"int32":   ElementTypeI4,
	"uint32":  ElementTypeU4,
	"int64":   ElementTypeI8,
	"uint64":  ElementTypeU8,
	"float32": ElementTypeR4,
	"float64": ElementTypeR8,
	"nint":    ElementTypeI,
	"nuint":   ElementTypeU,
}

// ParseType resolves a textual type reference such as "int32[]",
// "App.List<string>", "[Lib]Lib.Box<!!0>" or "!0". Unqualified names are
// looked up in scope first and then in the core library.
func (c *Context) ParseType(s string, scope *Module) (*Type, error) {
	p := &typeParser{ctx: c, scope: scope, src: s}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("unexpected %q at offset %d in type %q", p.src[p.pos:], p.pos, s)
	}
	return t, nil
}

// ParseMethod resolves "Type::Name" or "Type::Name<args>".
func (c *Context) ParseMethod(s string, scope *Module) (*Method, error) {
	ownerText, memberText, err := splitMember(s)
	if err != nil {
		return nil, err
	}
	owner, err := c.ParseType(ownerText, scope)
	if err != nil {
		return nil, err
	}
	name := memberText
	var args []*Type
	if i := strings.IndexByte(memberText, '<'); i >= 0 {
		name = memberText[:i]
		p := &typeParser{ctx: c, scope: scope, src: memberText, pos: i}
		if args, err = p.parseArgs(); err != nil {
			return nil, err
		}
		if p.pos != len(p.src) {
			return nil, fmt.Errorf("unexpected %q after method arguments in %q", p.src[p.pos:], s)
		}
	}
	def := owner.FindMethod(name)
	if def == nil {
		return nil, fmt.Errorf("method %s not found on %s", name, owner)
	}
	m := c.MethodOn(owner, def)
	if len(args) == 0 {
		if m.GenericParameterCount > 0 {
			return nil, fmt.Errorf("method %s requires %d type arguments", m, m.GenericParameterCount)
		}
		return m, nil
	}
	return c.InstantiateMethod(m, args...)
}

// ParseField resolves "Type::Name".
func (c *Context) ParseField(s string, scope *Module) (*Field, error) {
	ownerText, name, err := splitMember(s)
	if err != nil {
		return nil, err
	}
	owner, err := c.ParseType(ownerText, scope)
	if err != nil {
		return nil, err
	}
	def := owner.FindField(name)
	if def == nil {
		return nil, fmt.Errorf("field %s not found on %s", name, owner)
	}
	return c.FieldOn(owner, def), nil
}

func splitMember(s string) (string, string, error) {
	depth := 0
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ':':
			if depth == 0 && s[i+1] == ':' {
				if i == 0 || i+2 == len(s) {
					break
				}
				return s[:i], s[i+2:], nil
			}
		}
	}
	return "", "", fmt.Errorf("member reference %q must have the form Type::Name", s)
}

type typeParser struct {
	ctx   *Context
	scope *Module
	src   string
	pos   int
}

func (p *typeParser) parseType() (*Type, error) {
	t, err := p.parseBase()
	if err != nil {
		return nil, err
	}
	for strings.HasPrefix(p.src[p.pos:], "[]") {
		p.pos += 2
		t = p.ctx.ArrayOf(t)
	}
	return t, nil
}

func (p *typeParser) parseBase() (*Type, error) {
	rest := p.src[p.pos:]
	if strings.HasPrefix(rest, "!") {
		kind := TypeParameter
		p.pos++
		if strings.HasPrefix(p.src[p.pos:], "!") {
			kind = MethodParameter
			p.pos++
		}
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		idx, err := strconv.Atoi(p.src[start:p.pos])
		if err != nil {
			return nil, fmt.Errorf("invalid generic parameter in %q", p.src)
		}
		if kind == MethodParameter {
			return p.ctx.MethodParameter(idx), nil
		}
		return p.ctx.TypeParameter(idx), nil
	}

	module := p.scope
	explicit := false
	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, fmt.Errorf("unterminated module qualifier in %q", p.src)
		}
		name := rest[1:end]
		module = p.ctx.Module(name)
		if module == nil {
			return nil, fmt.Errorf("unknown module %q in %q", name, p.src)
		}
		explicit = true
		p.pos += end + 1
	}

	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune("<>[],", rune(p.src[p.pos])) {
		p.pos++
	}
	name := strings.TrimSpace(p.src[start:p.pos])
	if name == "" {
		return nil, fmt.Errorf("missing type name in %q", p.src)
	}

	var def *Type
	if et, ok := typeAliases[name]; ok && !explicit {
		def = p.ctx.Primitive(et)
	} else if name == "object" && !explicit {
		def = p.ctx.Object()
	} else if name == "string" && !explicit {
		def = p.ctx.StringType()
	} else {
		ns, simple := "", name
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			ns, simple = name[:i], name[i+1:]
		}
		if module != nil {
			def = p.ctx.FindType(module, ns, simple)
		}
		if def == nil && !explicit {
			def = p.ctx.FindType(p.ctx.SystemModule(), ns, simple)
		}
		if def == nil {
			return nil, fmt.Errorf("type %s not found", name)
		}
	}

	if p.pos < len(p.src) && p.src[p.pos] == '<' {
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return p.ctx.Instantiate(def, args...)
	}
	if def.GenericParameterCount > 0 {
		return nil, fmt.Errorf("type %s requires %d type arguments", def, def.GenericParameterCount)
	}
	return def, nil
}

func (p *typeParser) parseArgs() ([]*Type, error) {
	p.pos++ // '<'
	var args []*Type
	for {
		for p.pos < len(p.src) && p.src[p.pos] == ' ' {
			p.pos++
		}
		arg, err := p.parseType()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("unterminated type argument list in %q", p.src)
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case '>':
			p.pos++
			return args, nil
		default:
			return nil, fmt.Errorf("unexpected %q in type argument list of %q", p.src[p.pos], p.src)
		}
	}
}
