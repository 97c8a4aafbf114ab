package manifest

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/gocty"
)

// tokenFunction returns an HCL function building a metadata token of table
// from a row id.
func tokenFunction(table typesystem.TokenType) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "rid", Type: cty.Number}},
		Type:   function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			var rid uint32
			if err := gocty.FromCtyValue(args[0], &rid); err != nil {
				return cty.NilVal, fmt.Errorf("row id: %w", err)
			}
			if rid == 0 || rid > 0x00FFFFFF {
				return cty.NilVal, fmt.Errorf("row id %d is out of range", rid)
			}
			return cty.NumberUIntVal(uint64(typesystem.NewToken(table, rid))), nil
		},
	})
}

// evalContext exposes the token helpers to manifest expressions.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"typedef":    tokenFunction(typesystem.TokenTypeDef),
			"typeref":    tokenFunction(typesystem.TokenTypeRef),
			"typespec":   tokenFunction(typesystem.TokenTypeSpec),
			"methoddef":  tokenFunction(typesystem.TokenMethodDef),
			"memberref":  tokenFunction(typesystem.TokenMemberRef),
			"methodspec": tokenFunction(typesystem.TokenMethodSpec),
			"fielddef":   tokenFunction(typesystem.TokenFieldDef),
		},
	}
}
