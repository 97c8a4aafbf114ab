package ilcache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/specialistvlad/aotgraph/internal/testutil"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	inner ILProvider
	calls atomic.Int32
	err   error
}

func (p *countingProvider) GetMethodIL(m *typesystem.Method) (*MethodIL, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return p.inner.GetMethodIL(m)
}

func TestCache_MemoizesBodies(t *testing.T) {
	fx := testutil.NewFixture(t)
	body := &MethodIL{Method: fx.Main, Instructions: []Instruction{{Op: OpNewObj, Type: fx.Program}}}
	provider := &countingProvider{inner: NewStaticProvider(map[*typesystem.Method]*MethodIL{fx.Main: body})}
	c := New(provider, fx.Group)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			il, err := c.GetMethodIL(fx.Main)
			assert.NoError(t, err)
			assert.Same(t, body, il)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), provider.calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCache_InstantiationsShareDefinitionBody(t *testing.T) {
	fx := testutil.NewFixture(t)
	body := &MethodIL{Method: fx.Echo}
	c := New(NewStaticProvider(map[*typesystem.Method]*MethodIL{fx.Echo: body}), fx.Group)

	il, err := c.GetMethodIL(fx.InstMethod(t, fx.Echo, fx.Int32()))
	require.NoError(t, err)
	assert.Same(t, body, il)
	assert.True(t, il.IsTrivial())
}

func TestCache_PInvokeStub(t *testing.T) {
	testCases := []struct {
		name      string
		generates bool
		wantStub  bool
	}{
		{"module generating stubs", true, true},
		{"module leaving stubs to the runtime", false, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fx := testutil.NewFixture(t)
			fx.App.GeneratesPInvoke = tc.generates
			c := New(NewStaticProvider(nil), fx.Group)

			il, err := c.GetMethodIL(fx.Beep)
			require.NoError(t, err)
			if !tc.wantStub {
				assert.Nil(t, il)
				return
			}
			require.NotNil(t, il)
			ops := make([]Op, 0, len(il.Instructions))
			for _, in := range il.Instructions {
				ops = append(ops, in.Op)
			}
			assert.Equal(t, []Op{OpHelper, OpCalli, OpHelper}, ops)
			assert.Equal(t, HelperPInvokeBegin, il.Instructions[0].Helper)
			assert.Equal(t, HelperPInvokeEnd, il.Instructions[2].Helper)
		})
	}
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	fx := testutil.NewFixture(t)
	provider := &countingProvider{inner: NewStaticProvider(nil), err: errors.New("corrupt body")}
	c := New(provider, fx.Group)

	_, err := c.GetMethodIL(fx.Main)
	require.Error(t, err)
	_, err = c.GetMethodIL(fx.Main)
	require.Error(t, err)
	assert.Equal(t, int32(2), provider.calls.Load())
	assert.Zero(t, c.Len())
}

func TestCache_RenewSharesProvider(t *testing.T) {
	fx := testutil.NewFixture(t)
	provider := NewStaticProvider(nil)
	c := New(provider, fx.Group)
	_, err := c.GetMethodIL(fx.Main)
	require.NoError(t, err)

	renewed := c.Renew()
	assert.Zero(t, renewed.Len())
	assert.Same(t, provider, renewed.Provider())
}

func TestParseOp(t *testing.T) {
	op, ok := ParseOp("ldsflda")
	require.True(t, ok)
	assert.Equal(t, OpLdsflda, op)
	_, ok = ParseOp("jmp")
	assert.False(t, ok)
}
