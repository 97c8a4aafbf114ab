package typesystem

import (
	"cmp"
	"fmt"
)

// TokenType is the metadata table a token points into, stored in the high byte.
type TokenType uint32

const (
	TokenTypeRef    TokenType = 0x01000000
	TokenTypeDef    TokenType = 0x02000000
	TokenFieldDef   TokenType = 0x04000000
	TokenMethodDef  TokenType = 0x06000000
	TokenMemberRef  TokenType = 0x0A000000
	TokenTypeSpec   TokenType = 0x1B000000
	TokenMethodSpec TokenType = 0x2B000000
)

// Token is an ECMA-335 metadata token.
type Token uint32

// NewToken builds a token from a table and a row id.
func NewToken(table TokenType, rid uint32) Token {
	return Token(uint32(table) | (rid & 0x00FFFFFF))
}

// Table returns the metadata table of the token.
func (t Token) Table() TokenType {
	return TokenType(uint32(t) & 0xFF000000)
}

// RID returns the row id of the token.
func (t Token) RID() uint32 {
	return uint32(t) & 0x00FFFFFF
}

// IsNil reports whether the token has no row.
func (t Token) IsNil() bool {
	return t.RID() == 0
}

func (t Token) String() string {
	return fmt.Sprintf("%08X", uint32(t))
}

// ModuleToken is a token together with the module whose metadata defines it.
type ModuleToken struct {
	Module *Module
	Token  Token
}

// IsNull reports whether the token is absent.
func (mt ModuleToken) IsNull() bool {
	return mt.Module == nil || mt.Token.IsNil()
}

// Compare orders module tokens by module name, then token value.
func (mt ModuleToken) Compare(other ModuleToken) int {
	if r := compareModules(mt.Module, other.Module); r != 0 {
		return r
	}
	return cmp.Compare(mt.Token, other.Token)
}

func (mt ModuleToken) String() string {
	if mt.Module == nil {
		return "[?]" + mt.Token.String()
	}
	return "[" + mt.Module.Name + "]" + mt.Token.String()
}
