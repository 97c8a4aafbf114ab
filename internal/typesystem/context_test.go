package typesystem

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx  *Context
	app  *Module
	list *Type // App.List`1
	box  *Type // App.Box`1 (value type)
	echo *Method
	add  *Method
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := NewContext()
	app, err := c.AddModule("App")
	require.NoError(t, err)

	list, err := c.DefineType(app, TypeDef{Namespace: "App", Name: "List", Kind: KindClass, GenericParameterCount: 1})
	require.NoError(t, err)
	box, err := c.DefineType(app, TypeDef{Namespace: "App", Name: "Box", Kind: KindValueType, GenericParameterCount: 1})
	require.NoError(t, err)
	util, err := c.DefineType(app, TypeDef{Namespace: "App", Name: "Util", Kind: KindClass})
	require.NoError(t, err)

	echo, err := c.DefineMethod(util, MethodDef{Name: "Echo", GenericParameterCount: 1})
	require.NoError(t, err)
	add, err := c.DefineMethod(list, MethodDef{Name: "Add"})
	require.NoError(t, err)

	return &fixture{ctx: c, app: app, list: list, box: box, echo: echo, add: add}
}

func TestInstantiate_Interns(t *testing.T) {
	f := newFixture(t)
	a, err := f.ctx.Instantiate(f.list, f.ctx.StringType())
	require.NoError(t, err)
	b, err := f.ctx.Instantiate(f.list, f.ctx.StringType())
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Same(t, f.list, a.TypicalDefinition())

	_, err = f.ctx.Instantiate(f.list)
	assert.Error(t, err)
	_, err = f.ctx.Instantiate(f.ctx.Object(), f.ctx.StringType())
	assert.Error(t, err)
}

func TestCanonicalType(t *testing.T) {
	f := newFixture(t)
	c := f.ctx
	i32 := c.Primitive(ElementTypeI4)
	mustInst := func(def *Type, args ...*Type) *Type {
		inst, err := c.Instantiate(def, args...)
		require.NoError(t, err)
		return inst
	}

	testCases := []struct {
		name      string
		input     *Type
		kind      CanonicalFormKind
		canonical *Type
	}{
		{"reference arg becomes canon", mustInst(f.list, c.StringType()), Specific, mustInst(f.list, c.Canon())},
		{"value arg is kept", mustInst(f.list, i32), Specific, mustInst(f.list, i32)},
		{"universal replaces value arg", mustInst(f.list, i32), Universal, mustInst(f.list, c.Canon())},
		{"nested value type canonicalizes inside", mustInst(f.list, mustInst(f.box, c.Object())), Specific, mustInst(f.list, mustInst(f.box, c.Canon()))},
		{"array of reference", c.ArrayOf(c.StringType()), Specific, c.ArrayOf(c.Canon())},
		{"non-generic is unchanged", i32, Specific, i32},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Same(t, tc.canonical, c.CanonicalType(tc.input, tc.kind))
		})
	}
}

func TestCanonicalMethod(t *testing.T) {
	f := newFixture(t)
	c := f.ctx

	echoString, err := c.InstantiateMethod(f.echo, c.StringType())
	require.NoError(t, err)
	echoCanon, err := c.InstantiateMethod(f.echo, c.Canon())
	require.NoError(t, err)
	echoInt, err := c.InstantiateMethod(f.echo, c.Primitive(ElementTypeI4))
	require.NoError(t, err)

	assert.Same(t, echoCanon, c.CanonicalMethod(echoString, Specific))
	assert.Same(t, echoInt, c.CanonicalMethod(echoInt, Specific))
	assert.Same(t, echoCanon, c.CanonicalMethod(echoInt, Universal))
	assert.True(t, c.IsCanonicalMethod(echoCanon))
	assert.False(t, c.IsCanonicalMethod(echoString))
	assert.True(t, echoCanon.IsSharedByGenericInstantiations())

	listString, err := c.Instantiate(f.list, c.StringType())
	require.NoError(t, err)
	addOnString := c.MethodOn(listString, f.add)
	addOnCanon := c.CanonicalMethod(addOnString, Specific)
	assert.Equal(t, "[App]App.List<[System.Private.CoreLib]System.__Canon>::Add", addOnCanon.String())
	assert.Same(t, f.add, addOnCanon.TypicalDefinition())
}

func TestSubstitute(t *testing.T) {
	f := newFixture(t)
	c := f.ctx
	openArray := c.ArrayOf(c.MethodParameter(0))
	assert.True(t, openArray.IsRuntimeDetermined())

	closed := c.SubstituteType(openArray, nil, []*Type{c.Primitive(ElementTypeI4)})
	assert.Same(t, c.ArrayOf(c.Primitive(ElementTypeI4)), closed)
	assert.False(t, closed.IsRuntimeDetermined())

	openEcho, err := c.InstantiateMethod(f.echo, c.MethodParameter(0))
	require.NoError(t, err)
	closedEcho := c.SubstituteMethod(openEcho, nil, []*Type{c.StringType()})
	assert.Equal(t, "[App]App.Util::Echo<[System.Private.CoreLib]System.String>", closedEcho.String())
}

func TestEnsureLoadable(t *testing.T) {
	f := newFixture(t)
	c := f.ctx
	broken, err := c.DefineType(f.app, TypeDef{Namespace: "App", Name: "Broken", Kind: KindClass, LoadError: "missing base type"})
	require.NoError(t, err)

	listBroken, err := c.Instantiate(f.list, broken)
	require.NoError(t, err)

	testCases := []struct {
		name    string
		check   func() error
		wantErr bool
	}{
		{"closed generic", func() error { return EnsureLoadableType(c.ArrayOf(c.StringType())) }, false},
		{"broken definition", func() error { return EnsureLoadableType(broken) }, true},
		{"broken argument", func() error { return EnsureLoadableType(listBroken) }, true},
		{"array of broken", func() error { return EnsureLoadableType(c.ArrayOf(broken)) }, true},
		{"array of void", func() error { return EnsureLoadableType(c.ArrayOf(c.Primitive(ElementTypeVoid))) }, true},
		{"method on broken owner", func() error { return EnsureLoadableMethod(c.MethodOn(listBroken, f.add)) }, true},
		{"nil method", func() error { return EnsureLoadableMethod(nil) }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.check()
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			var tse *TypeSystemError
			require.Error(t, err)
			assert.True(t, errors.As(err, &tse))
		})
	}
}

func TestCompareTypes_IsDeterministic(t *testing.T) {
	f := newFixture(t)
	c := f.ctx
	listString, _ := c.Instantiate(f.list, c.StringType())
	listInt, _ := c.Instantiate(f.list, c.Primitive(ElementTypeI4))

	types := []*Type{listString, c.ArrayOf(c.Object()), f.box, nil, c.MethodParameter(1), listInt, c.TypeParameter(0), c.Object()}
	reversed := slices.Clone(types)
	slices.Reverse(reversed)

	slices.SortFunc(types, CompareTypes)
	slices.SortFunc(reversed, CompareTypes)
	assert.Equal(t, types, reversed)
	assert.Nil(t, types[0])

	for i := 1; i < len(types); i++ {
		assert.Negative(t, CompareTypes(types[i-1], types[i]))
		assert.Positive(t, CompareTypes(types[i], types[i-1]))
	}
}

func TestParse(t *testing.T) {
	f := newFixture(t)
	c := f.ctx

	testCases := []struct {
		input string
		want  string
	}{
		{"int32", "[System.Private.CoreLib]System.Int32"},
		{"string[]", "[System.Private.CoreLib]System.String[]"},
		{"App.List<object>", "[App]App.List<[System.Private.CoreLib]System.Object>"},
		{"[App]App.Box<App.List<!0>>[]", "[App]App.Box<[App]App.List<!0>>[]"},
		{"!!1", "!!1"},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := c.ParseType(tc.input, f.app)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
		})
	}

	m, err := c.ParseMethod("App.Util::Echo<string>", f.app)
	require.NoError(t, err)
	assert.Equal(t, "[App]App.Util::Echo<[System.Private.CoreLib]System.String>", m.String())

	_, err = c.ParseMethod("App.Util::Echo", f.app)
	assert.Error(t, err, "generic method without arguments")
	_, err = c.ParseType("App.Missing", f.app)
	assert.Error(t, err)
	_, err = c.ParseType("App.List", f.app)
	assert.Error(t, err, "generic type without arguments")
}
