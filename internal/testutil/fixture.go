package testutil

import (
	"testing"

	"github.com/specialistvlad/aotgraph/internal/modulegroup"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
	"github.com/stretchr/testify/require"
)

// Fixture is a small two-module type system: App is compiled, Lib is only
// referenced.
type Fixture struct {
	TS    *typesystem.Context
	App   *typesystem.Module
	Lib   *typesystem.Module
	Group *modulegroup.Group

	Program *typesystem.Type
	Util    *typesystem.Type
	List    *typesystem.Type // App.List`1
	Box     *typesystem.Type // App.Box`1, a value type
	Handler *typesystem.Type // App.Handler, a delegate
	Broken  *typesystem.Type // fails to load
	Native  *typesystem.Type
	Extern  *typesystem.Type // Lib.External

	Main    *typesystem.Method
	Echo    *typesystem.Method // Util::Echo<T>
	Helper  *typesystem.Method
	Secure  *typesystem.Method // requires a security object
	Add     *typesystem.Method // List::Add
	Get     *typesystem.Method // Box::Get
	Run     *typesystem.Method // Broken::Run
	Beep    *typesystem.Method // Native::Beep, a P/Invoke
	Call    *typesystem.Method // External::Call
	Counter *typesystem.Field  // static Util::Counter
}

// NewFixture builds the fixture with App as the only compiled module.
func NewFixture(t testing.TB, opts ...modulegroup.Option) *Fixture {
	t.Helper()
	ts := typesystem.NewContext()
	f := &Fixture{TS: ts}

	var err error
	f.App, err = ts.AddModule("App")
	require.NoError(t, err)
	f.App.GeneratesPInvoke = true
	f.Lib, err = ts.AddModule("Lib")
	require.NoError(t, err)

	f.Program = f.defineType(t, f.App, typesystem.TypeDef{Namespace: "App", Name: "Program", Kind: typesystem.KindClass})
	f.Util = f.defineType(t, f.App, typesystem.TypeDef{Namespace: "App", Name: "Util", Kind: typesystem.KindClass})
	f.List = f.defineType(t, f.App, typesystem.TypeDef{Namespace: "App", Name: "List", Kind: typesystem.KindClass, GenericParameterCount: 1})
	f.Box = f.defineType(t, f.App, typesystem.TypeDef{Namespace: "App", Name: "Box", Kind: typesystem.KindValueType, GenericParameterCount: 1})
	f.Handler = f.defineType(t, f.App, typesystem.TypeDef{Namespace: "App", Name: "Handler", Kind: typesystem.KindClass, IsDelegate: true})
	f.Broken = f.defineType(t, f.App, typesystem.TypeDef{Namespace: "App", Name: "Broken", Kind: typesystem.KindClass, LoadError: "base type could not be resolved"})
	f.Native = f.defineType(t, f.App, typesystem.TypeDef{Namespace: "App", Name: "Native", Kind: typesystem.KindClass})
	f.Extern = f.defineType(t, f.Lib, typesystem.TypeDef{Namespace: "Lib", Name: "External", Kind: typesystem.KindClass})

	f.Main = f.defineMethod(t, f.Program, typesystem.MethodDef{Name: "Main"})
	f.Echo = f.defineMethod(t, f.Util, typesystem.MethodDef{Name: "Echo", GenericParameterCount: 1})
	f.Helper = f.defineMethod(t, f.Util, typesystem.MethodDef{Name: "Helper"})
	f.Secure = f.defineMethod(t, f.Util, typesystem.MethodDef{Name: "Secure", RequireSecObject: true})
	f.Add = f.defineMethod(t, f.List, typesystem.MethodDef{Name: "Add"})
	f.Get = f.defineMethod(t, f.Box, typesystem.MethodDef{Name: "Get"})
	f.Run = f.defineMethod(t, f.Broken, typesystem.MethodDef{Name: "Run"})
	f.Beep = f.defineMethod(t, f.Native, typesystem.MethodDef{Name: "Beep", IsPInvoke: true})
	f.Call = f.defineMethod(t, f.Extern, typesystem.MethodDef{Name: "Call"})

	f.Counter, err = ts.DefineField(f.Util, typesystem.FieldDef{Name: "Counter", Type: ts.Primitive(typesystem.ElementTypeI4), IsStatic: true})
	require.NoError(t, err)

	f.Group, err = modulegroup.New([]*typesystem.Module{f.App}, opts...)
	require.NoError(t, err)
	return f
}

func (f *Fixture) defineType(t testing.TB, m *typesystem.Module, def typesystem.TypeDef) *typesystem.Type {
	t.Helper()
	typ, err := f.TS.DefineType(m, def)
	require.NoError(t, err)
	return typ
}

func (f *Fixture) defineMethod(t testing.TB, owner *typesystem.Type, def typesystem.MethodDef) *typesystem.Method {
	t.Helper()
	m, err := f.TS.DefineMethod(owner, def)
	require.NoError(t, err)
	return m
}

// Inst instantiates a generic type definition.
func (f *Fixture) Inst(t testing.TB, def *typesystem.Type, args ...*typesystem.Type) *typesystem.Type {
	t.Helper()
	inst, err := f.TS.Instantiate(def, args...)
	require.NoError(t, err)
	return inst
}

// InstMethod instantiates a generic method definition.
func (f *Fixture) InstMethod(t testing.TB, def *typesystem.Method, args ...*typesystem.Type) *typesystem.Method {
	t.Helper()
	m, err := f.TS.InstantiateMethod(def, args...)
	require.NoError(t, err)
	return m
}

// Int32 returns System.Int32.
func (f *Fixture) Int32() *typesystem.Type {
	return f.TS.Primitive(typesystem.ElementTypeI4)
}
