package typesystem

import (
	"fmt"
	"strings"
	"sync"
)

// SystemModuleName is the name of the core library created by NewContext.
const SystemModuleName = "System.Private.CoreLib"

// CanonicalFormKind selects how aggressively generic arguments are shared.
type CanonicalFormKind int

const (
	// Specific replaces reference-type arguments with __Canon and keeps value types.
	Specific CanonicalFormKind = iota
	// Universal replaces every argument with __Canon.
	Universal
)

func (k CanonicalFormKind) String() string {
	if k == Universal {
		return "universal"
	}
	return "specific"
}

// TypeDef describes a type definition to register with DefineType.
type TypeDef struct {
	Namespace             string
	Name                  string
	Kind                  Kind
	Token                 Token
	GenericParameterCount int
	IsDelegate            bool
	LoadError             string
}

// MethodDef describes a method definition to register with DefineMethod.
type MethodDef struct {
	Name                  string
	Token                 Token
	GenericParameterCount int
	IsPInvoke             bool
	IsVirtual             bool
	RequireSecObject      bool
	LoadError             string
}

// FieldDef describes a field definition to register with DefineField.
type FieldDef struct {
	Name      string
	Token     Token
	Type      *Type
	IsStatic  bool
	LoadError string
}

// Context owns every module and interns every constructed entity so that
// identity comparisons are pointer comparisons.
type Context struct {
	mu sync.Mutex

	modules []*Module
	byName  map[string]*Module
	system  *Module

	primitives map[ElementType]*Type
	object     *Type
	str        *Type
	canon      *Type

	lookup       map[*Module]map[string]*Type
	instances    map[string]*Type
	arrays       map[*Type]*Type
	typeParams   []*Type
	methodParams []*Type
	methods      map[string]*Method
	fields       map[string]*Field
}

var primitiveNames = []struct {
	et   ElementType
	name string
}{
	{ElementTypeVoid, "Void"},
	{ElementTypeBoolean, "Boolean"},
	{ElementTypeChar, "Char"},
	{ElementTypeI1, "SByte"},
	{ElementTypeU1, "Byte"},
	{ElementTypeI2, "Int16"},
	{ElementTypeU2, "UInt16"},
	{ElementTypeI4, "Int32"},
	{ElementTypeU4, "UInt32"},
	{ElementTypeI8, "Int64"},
	{ElementTypeU8, "UInt64"},
	{ElementTypeR4, "Single"},
	{ElementTypeR8, "Double"},
	{ElementTypeI, "IntPtr"},
	{ElementTypeU, "UIntPtr"},
}

// NewContext creates a type-system context holding the core library.
func NewContext() *Context {
	c := &Context{
		byName:     make(map[string]*Module),
		primitives: make(map[ElementType]*Type),
		lookup:     make(map[*Module]map[string]*Type),
		instances:  make(map[string]*Type),
		arrays:     make(map[*Type]*Type),
		methods:    make(map[string]*Method),
		fields:     make(map[string]*Field),
	}
	sys, _ := c.AddModule(SystemModuleName)
	sys.IsSystem = true
	c.system = sys

	c.object = c.mustDefine(sys, TypeDef{Namespace: "System", Name: "Object", Kind: KindClass})
	c.object.Element = ElementTypeObject
	c.str = c.mustDefine(sys, TypeDef{Namespace: "System", Name: "String", Kind: KindClass})
	c.str.Element = ElementTypeString
	for _, p := range primitiveNames {
		t := c.mustDefine(sys, TypeDef{Namespace: "System", Name: p.name, Kind: KindPrimitive})
		t.Element = p.et
		c.primitives[p.et] = t
	}
	c.canon = c.mustDefine(sys, TypeDef{Namespace: "System", Name: "__Canon", Kind: KindCanon})
	c.canon.Element = ElementTypeCanonZapSig
	return c
}

func (c *Context) mustDefine(m *Module, def TypeDef) *Type {
	t, err := c.DefineType(m, def)
	if err != nil {
		panic(err)
	}
	return t
}

// AddModule registers a new module. Module names are unique.
func (c *Context) AddModule(name string) (*Module, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == "" {
		return nil, fmt.Errorf("module name cannot be empty")
	}
	if _, ok := c.byName[name]; ok {
		return nil, fmt.Errorf("module %q is already defined", name)
	}
	m := &Module{Name: name, index: len(c.modules)}
	c.modules = append(c.modules, m)
	c.byName[name] = m
	c.lookup[m] = make(map[string]*Type)
	return m, nil
}

// Module returns the module with the given name, or nil.
func (c *Context) Module(name string) *Module {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byName[name]
}

// Modules returns all modules in registration order.
func (c *Context) Modules() []*Module {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Module(nil), c.modules...)
}

// SystemModule returns the core library.
func (c *Context) SystemModule() *Module { return c.system }

// Object returns System.Object.
func (c *Context) Object() *Type { return c.object }

// StringType returns System.String.
func (c *Context) StringType() *Type { return c.str }

// Canon returns the canonical placeholder System.__Canon.
func (c *Context) Canon() *Type { return c.canon }

// Primitive returns the primitive type for an element type, or nil.
func (c *Context) Primitive(et ElementType) *Type { return c.primitives[et] }

// DefineType adds a type definition to a module. A zero token is assigned the
// next TypeDef row.
func (c *Context) DefineType(m *Module, def TypeDef) (*Type, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := qualifiedName(def.Namespace, def.Name)
	if _, ok := c.lookup[m][key]; ok {
		return nil, fmt.Errorf("type %s is already defined in module %s", key, m.Name)
	}
	tok := def.Token
	if tok == 0 {
		tok = NewToken(TokenTypeDef, uint32(len(m.types)+1))
	}
	t := &Type{
		Module:                m,
		Namespace:             def.Namespace,
		Name:                  def.Name,
		Token:                 tok,
		Kind:                  def.Kind,
		IsDelegate:            def.IsDelegate,
		GenericParameterCount: def.GenericParameterCount,
		LoadError:             def.LoadError,
	}
	m.types = append(m.types, t)
	c.lookup[m][key] = t
	return t, nil
}

// DefineMethod adds a method definition to a type definition.
func (c *Context) DefineMethod(owner *Type, def MethodDef) (*Method, error) {
	if owner.Definition != nil || owner.Kind == KindArray || owner.Kind == KindGenericParameter {
		return nil, fmt.Errorf("methods can only be defined on type definitions, got %s", owner)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range owner.methods {
		if existing.Name == def.Name {
			return nil, fmt.Errorf("method %s is already defined on %s", def.Name, owner)
		}
	}
	tok := def.Token
	if tok == 0 {
		tok = NewToken(TokenMethodDef, uint32(c.countMethods(owner.Module)+1))
	}
	m := &Method{
		Owner:                 owner,
		Name:                  def.Name,
		Token:                 tok,
		GenericParameterCount: def.GenericParameterCount,
		IsPInvoke:             def.IsPInvoke,
		IsVirtual:             def.IsVirtual,
		RequireSecObject:      def.RequireSecObject,
		LoadError:             def.LoadError,
	}
	owner.methods = append(owner.methods, m)
	return m, nil
}

func (c *Context) countMethods(m *Module) int {
	n := 0
	for _, t := range m.types {
		n += len(t.methods)
	}
	return n
}

// DefineField adds a field definition to a type definition.
func (c *Context) DefineField(owner *Type, def FieldDef) (*Field, error) {
	if owner.Definition != nil || owner.Kind == KindArray || owner.Kind == KindGenericParameter {
		return nil, fmt.Errorf("fields can only be defined on type definitions, got %s", owner)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range owner.fields {
		if existing.Name == def.Name {
			return nil, fmt.Errorf("field %s is already defined on %s", def.Name, owner)
		}
	}
	tok := def.Token
	if tok == 0 {
		n := 0
		for _, t := range owner.Module.types {
			n += len(t.fields)
		}
		tok = NewToken(TokenFieldDef, uint32(n+1))
	}
	f := &Field{
		Owner:     owner,
		Name:      def.Name,
		Token:     tok,
		Type:      def.Type,
		IsStatic:  def.IsStatic,
		LoadError: def.LoadError,
	}
	owner.fields = append(owner.fields, f)
	return f, nil
}

// FindType looks up a type definition by namespace and name.
func (c *Context) FindType(m *Module, namespace, name string) *Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup[m][qualifiedName(namespace, name)]
}

// Instantiate returns the generic instantiation of def over args.
func (c *Context) Instantiate(def *Type, args ...*Type) (*Type, error) {
	if def.Definition != nil || def.GenericParameterCount == 0 {
		return nil, fmt.Errorf("%s is not a generic type definition", def)
	}
	if len(args) != def.GenericParameterCount {
		return nil, fmt.Errorf("%s expects %d type arguments, got %d", def, def.GenericParameterCount, len(args))
	}
	for i, a := range args {
		if a == nil {
			return nil, fmt.Errorf("type argument %d of %s is nil", i, def)
		}
	}
	return c.instantiate(def, args), nil
}

func (c *Context) instantiate(def *Type, args []*Type) *Type {
	var sb strings.Builder
	writeTypeName(&sb, def)
	writeTypeList(&sb, args)
	key := sb.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.instances[key]; ok {
		return t
	}
	t := &Type{
		Module:        def.Module,
		Namespace:     def.Namespace,
		Name:          def.Name,
		Token:         def.Token,
		Kind:          def.Kind,
		IsDelegate:    def.IsDelegate,
		Definition:    def,
		Instantiation: append([]*Type(nil), args...),
	}
	c.instances[key] = t
	return t
}

// ArrayOf returns the single-dimensional zero-based array of elem.
func (c *Context) ArrayOf(elem *Type) *Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.arrays[elem]; ok {
		return t
	}
	t := &Type{
		Module:    elem.Module,
		Namespace: elem.Namespace,
		Name:      elem.Name + "[]",
		Kind:      KindArray,
		Elem:      elem,
	}
	c.arrays[elem] = t
	return t
}

// TypeParameter returns the type generic parameter !index.
func (c *Context) TypeParameter(index int) *Type {
	return c.genericParameter(TypeParameter, index)
}

// MethodParameter returns the method generic parameter !!index.
func (c *Context) MethodParameter(index int) *Type {
	return c.genericParameter(MethodParameter, index)
}

func (c *Context) genericParameter(kind GenericParameterKind, index int) *Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := &c.typeParams
	prefix := "!"
	if kind == MethodParameter {
		list = &c.methodParams
		prefix = "!!"
	}
	for len(*list) <= index {
		i := len(*list)
		*list = append(*list, &Type{
			Name:           fmt.Sprintf("%s%d", prefix, i),
			Kind:           KindGenericParameter,
			ParameterKind:  kind,
			ParameterIndex: i,
		})
	}
	return (*list)[index]
}

// MethodOn returns the method def as a member of owner, which must be def's
// owning type definition or an instantiation of it.
func (c *Context) MethodOn(owner *Type, def *Method) *Method {
	def = def.TypicalDefinition()
	if owner == def.Owner {
		return def
	}
	if owner.TypicalDefinition() != def.Owner {
		panic(fmt.Sprintf("typesystem: %s is not declared on %s", def, owner))
	}
	key := owner.String() + "::" + def.Name
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.methods[key]; ok {
		return m
	}
	m := &Method{
		Owner:                 owner,
		Name:                  def.Name,
		Token:                 def.Token,
		GenericParameterCount: def.GenericParameterCount,
		Definition:            def,
		IsPInvoke:             def.IsPInvoke,
		IsVirtual:             def.IsVirtual,
		RequireSecObject:      def.RequireSecObject,
		LoadError:             def.LoadError,
	}
	c.methods[key] = m
	return m
}

// InstantiateMethod returns the generic method instantiation of m over args.
// m must not already carry a method instantiation.
func (c *Context) InstantiateMethod(m *Method, args ...*Type) (*Method, error) {
	if m.HasInstantiation() || m.GenericParameterCount == 0 {
		return nil, fmt.Errorf("%s is not a generic method definition", m)
	}
	if len(args) != m.GenericParameterCount {
		return nil, fmt.Errorf("%s expects %d method type arguments, got %d", m, m.GenericParameterCount, len(args))
	}
	for i, a := range args {
		if a == nil {
			return nil, fmt.Errorf("method type argument %d of %s is nil", i, m)
		}
	}
	return c.instantiateMethod(m, args), nil
}

func (c *Context) instantiateMethod(m *Method, args []*Type) *Method {
	var sb strings.Builder
	writeMethodName(&sb, m)
	writeTypeList(&sb, args)
	key := sb.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if inst, ok := c.methods[key]; ok {
		return inst
	}
	def := m.TypicalDefinition()
	inst := &Method{
		Owner:                 m.Owner,
		Name:                  m.Name,
		Token:                 m.Token,
		GenericParameterCount: m.GenericParameterCount,
		Definition:            def,
		Instantiation:         append([]*Type(nil), args...),
		IsPInvoke:             def.IsPInvoke,
		IsVirtual:             def.IsVirtual,
		RequireSecObject:      def.RequireSecObject,
		LoadError:             def.LoadError,
	}
	c.methods[key] = inst
	return inst
}

// Uninstantiated returns m without its method instantiation, keeping the owner.
func (c *Context) Uninstantiated(m *Method) *Method {
	if !m.HasInstantiation() {
		return m
	}
	return c.MethodOn(m.Owner, m.TypicalDefinition())
}

// FieldOn returns the field def as a member of owner.
func (c *Context) FieldOn(owner *Type, def *Field) *Field {
	def = def.TypicalDefinition()
	if owner == def.Owner {
		return def
	}
	if owner.TypicalDefinition() != def.Owner {
		panic(fmt.Sprintf("typesystem: %s is not declared on %s", def, owner))
	}
	key := owner.String() + "::" + def.Name
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.fields[key]; ok {
		return f
	}
	f := &Field{
		Owner:      owner,
		Name:       def.Name,
		Token:      def.Token,
		Type:       def.Type,
		IsStatic:   def.IsStatic,
		Definition: def,
		LoadError:  def.LoadError,
	}
	c.fields[key] = f
	return f
}

// CanonicalType maps t onto its shared-code form.
func (c *Context) CanonicalType(t *Type, kind CanonicalFormKind) *Type {
	switch {
	case t.Kind == KindArray:
		return c.ArrayOf(c.canonicalArgument(t.Elem, kind))
	case t.HasInstantiation():
		args := make([]*Type, len(t.Instantiation))
		changed := false
		for i, a := range t.Instantiation {
			args[i] = c.canonicalArgument(a, kind)
			changed = changed || args[i] != a
		}
		if !changed {
			return t
		}
		return c.instantiate(t.Definition, args)
	default:
		return t
	}
}

func (c *Context) canonicalArgument(t *Type, kind CanonicalFormKind) *Type {
	if t.Kind == KindGenericParameter {
		return t
	}
	if kind == Universal || !t.IsValueType() {
		return c.canon
	}
	return c.CanonicalType(t, kind)
}

// CanonicalMethod maps m onto the method whose body is shared by all
// instantiations equivalent to m under kind.
func (c *Context) CanonicalMethod(m *Method, kind CanonicalFormKind) *Method {
	owner := c.CanonicalType(m.Owner, kind)
	on := c.MethodOn(owner, m.TypicalDefinition())
	if !m.HasInstantiation() {
		return on
	}
	args := make([]*Type, len(m.Instantiation))
	for i, a := range m.Instantiation {
		args[i] = c.canonicalArgument(a, kind)
	}
	return c.instantiateMethod(on, args)
}

// IsCanonicalMethod reports whether m already is its own Specific canonical form.
func (c *Context) IsCanonicalMethod(m *Method) bool {
	return c.CanonicalMethod(m, Specific) == m
}

// SubstituteType replaces generic parameters in t with the given arguments.
// Parameters without a corresponding argument are kept.
func (c *Context) SubstituteType(t *Type, typeArgs, methodArgs []*Type) *Type {
	switch t.Kind {
	case KindGenericParameter:
		args := typeArgs
		if t.ParameterKind == MethodParameter {
			args = methodArgs
		}
		if t.ParameterIndex < len(args) {
			return args[t.ParameterIndex]
		}
		return t
	case KindArray:
		elem := c.SubstituteType(t.Elem, typeArgs, methodArgs)
		if elem == t.Elem {
			return t
		}
		return c.ArrayOf(elem)
	}
	if !t.HasInstantiation() {
		return t
	}
	args := make([]*Type, len(t.Instantiation))
	changed := false
	for i, a := range t.Instantiation {
		args[i] = c.SubstituteType(a, typeArgs, methodArgs)
		changed = changed || args[i] != a
	}
	if !changed {
		return t
	}
	return c.instantiate(t.Definition, args)
}

// SubstituteMethod replaces generic parameters in the owner and method
// instantiation of m.
func (c *Context) SubstituteMethod(m *Method, typeArgs, methodArgs []*Type) *Method {
	owner := c.SubstituteType(m.Owner, typeArgs, methodArgs)
	on := c.MethodOn(owner, m.TypicalDefinition())
	if !m.HasInstantiation() {
		return on
	}
	args := make([]*Type, len(m.Instantiation))
	for i, a := range m.Instantiation {
		args[i] = c.SubstituteType(a, typeArgs, methodArgs)
	}
	return c.instantiateMethod(on, args)
}

// SubstituteField replaces generic parameters in the owner of f.
func (c *Context) SubstituteField(f *Field, typeArgs, methodArgs []*Type) *Field {
	return c.FieldOn(c.SubstituteType(f.Owner, typeArgs, methodArgs), f.TypicalDefinition())
}

func qualifiedName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}
