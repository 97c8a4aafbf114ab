package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/aotgraph/internal/compilation"
	"github.com/specialistvlad/aotgraph/internal/ilcache"
	"github.com/specialistvlad/aotgraph/internal/testutil"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
module "App" {
  compile           = true
  generates_pinvoke = true

  type "App" "Program" {
    method "Main" {
      token = methoddef(1)
      il {
        call {
          method = "App.Util::Echo<string>"
          token  = methodspec(1)
        }
        newarr {
          type = "int32[]"
        }
        ldsflda {
          field = "App.Util::Counter"
        }
        call {
          method = "[Lib]Lib.External::Call"
          token  = memberref(3)
        }
      }
    }
  }

  type "App" "Util" {
    token = typedef(7)

    field "Counter" {
      type   = "int32"
      static = true
    }

    method "Echo" {
      generic_parameters = 1
      il {
        ldtoken {
          type = "!!0"
        }
      }
    }
  }

  type "App" "Box" {
    kind               = "valuetype"
    generic_parameters = 1
  }
}

module "Lib" {
  type "Lib" "External" {
    method "Call" {}
  }
}

root {
  method = "App.Program::Main"
  reason = "Entrypoint"
}

root {
  type = "App.Box<int32>"
}
`

func TestLoad(t *testing.T) {
	ctx, _ := testutil.NewLoggerContext(t)
	asm, err := Load(ctx, []byte(sample), "sample.hcl")
	require.NoError(t, err)
	ts := asm.TypeSystem

	require.Len(t, asm.Compiled, 1)
	app := asm.Compiled[0]
	assert.Equal(t, "App", app.Name)
	assert.True(t, app.GeneratesPInvoke)

	util := ts.FindType(app, "App", "Util")
	require.NotNil(t, util)
	assert.Equal(t, typesystem.NewToken(typesystem.TokenTypeDef, 7), util.Token)
	box := ts.FindType(app, "App", "Box")
	require.NotNil(t, box)
	assert.Equal(t, typesystem.KindValueType, box.Kind)

	main, err := ts.ParseMethod("App.Program::Main", app)
	require.NoError(t, err)
	body := asm.Bodies[main]
	require.NotNil(t, body)

	ops := make([]ilcache.Op, 0, len(body.Instructions))
	for _, in := range body.Instructions {
		ops = append(ops, in.Op)
	}
	assert.Equal(t, []ilcache.Op{ilcache.OpCall, ilcache.OpNewArr, ilcache.OpLdsflda, ilcache.OpCall}, ops, "instructions keep source order")

	call := body.Instructions[0]
	assert.Equal(t, "App.Util::Echo<string>", call.Method.String())
	assert.Equal(t, typesystem.ModuleToken{Module: app, Token: typesystem.NewToken(typesystem.TokenMethodSpec, 1)}, call.Token)
	assert.Equal(t, ts.ArrayOf(ts.Primitive(typesystem.ElementTypeI4)), body.Instructions[1].Type)
	assert.Equal(t, "Counter", body.Instructions[2].Field.Name)
	assert.Equal(t, "Lib", body.Instructions[3].Method.Owner.Module.Name)

	require.Len(t, asm.Roots, 2)
	assert.Same(t, main, asm.Roots[0].Method)
	assert.Equal(t, "Entrypoint", asm.Roots[0].Reason)
	assert.Equal(t, "Type root", asm.Roots[1].Reason)
	assert.Equal(t, box, asm.Roots[1].Type.TypicalDefinition())
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", `module "App" {`, "failed to parse"},
		{"unknown attribute", `module "App" { speed = 1 }`, "failed to decode"},
		{"unknown kind", `module "App" {
  type "App" "T" {
    kind = "struct"
  }
}`, "unknown kind"},
		{"unresolved call", `module "App" {
  type "App" "T" {
    method "M" {
      il {
        call {
          method = "App.Missing::M"
        }
      }
    }
  }
}`, "not found"},
		{"missing operand", `module "App" {
  type "App" "T" {
    method "M" {
      il {
        newobj {}
      }
    }
  }
}`, "needs a type"},
		{"bad row id", `module "App" {
  type "App" "T" {
    token = typedef(0)
  }
}`, "out of range"},
		{"ambiguous root", `module "App" {
  compile = true
  type "App" "T" {
    method "M" {}
  }
}
root {
  method = "App.T::M"
  type   = "App.T"
}`, "exactly one"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, _ := testutil.NewLoggerContext(t)
			_, err := Load(ctx, []byte(tc.src), "bad.hcl")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadFile_CompilesEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.hcl")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	ctx, _ := testutil.NewLoggerContext(t)
	asm, err := LoadFile(ctx, path)
	require.NoError(t, err)
	group, err := asm.ModuleGroup()
	require.NoError(t, err)

	assert.Equal(t, []byte(sample), asm.Input)

	c, err := compilation.New(compilation.Config{Parallelism: 2}, compilation.Deps{
		TypeSystem: asm.TypeSystem,
		Group:      group,
		IL:         asm.IL(),
		Input:      asm.Input,
		Roots:      []compilation.RootProvider{asm},
	})
	require.NoError(t, err)

	out := filepath.Join(dir, "app.r2r")
	require.NoError(t, c.Compile(ctx, out))
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
	assert.Equal(t, int64(2), c.Status().Results["compiled"], "Main and Echo<__Canon>")
}

func TestLoadFile_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_modules.hcl"), []byte(`
module "App" {
  compile = true
  type "App" "Program" {
    method "Main" {
      il {}
    }
  }
}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_roots.hcl"), []byte(`
root {
  method = "App.Program::Main"
}
`), 0o644))

	ctx, _ := testutil.NewLoggerContext(t)
	asm, err := LoadFile(ctx, dir)
	require.NoError(t, err)
	require.Len(t, asm.Roots, 1)
	assert.Equal(t, "Main", asm.Roots[0].Method.Name)
	assert.True(t, bytes.HasPrefix(asm.Input, []byte("\nmodule \"App\"")), "files are concatenated in lexical order")
	assert.True(t, bytes.HasSuffix(asm.Input, []byte("method = \"App.Program::Main\"\n}\n")))

	_, err = LoadFile(ctx, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .hcl files")
}
