package typesystem

import "fmt"

// TypeSystemError reports an entity that cannot be loaded.
type TypeSystemError struct {
	Entity string
	Reason string
}

func (e *TypeSystemError) Error() string {
	return fmt.Sprintf("failed to load %s: %s", e.Entity, e.Reason)
}

// EnsureLoadableType returns a *TypeSystemError when t, its definition, its
// element type or any of its generic arguments cannot be loaded.
func EnsureLoadableType(t *Type) error {
	if t == nil {
		return &TypeSystemError{Entity: "<nil type>", Reason: "type reference could not be resolved"}
	}
	switch t.Kind {
	case KindGenericParameter:
		return nil
	case KindArray:
		if err := EnsureLoadableType(t.Elem); err != nil {
			return err
		}
		if t.Elem.Kind == KindPrimitive && t.Elem.Element == ElementTypeVoid {
			return &TypeSystemError{Entity: t.String(), Reason: "arrays of void are not allowed"}
		}
		return nil
	}
	if def := t.TypicalDefinition(); def.LoadError != "" {
		return &TypeSystemError{Entity: t.String(), Reason: def.LoadError}
	}
	for _, arg := range t.Instantiation {
		if err := EnsureLoadableType(arg); err != nil {
			return err
		}
	}
	return nil
}

// EnsureLoadableMethod checks the method, its owning type and its method
// instantiation.
func EnsureLoadableMethod(m *Method) error {
	if m == nil {
		return &TypeSystemError{Entity: "<nil method>", Reason: "method reference could not be resolved"}
	}
	if err := EnsureLoadableType(m.Owner); err != nil {
		return err
	}
	if def := m.TypicalDefinition(); def.LoadError != "" {
		return &TypeSystemError{Entity: m.String(), Reason: def.LoadError}
	}
	for _, arg := range m.Instantiation {
		if err := EnsureLoadableType(arg); err != nil {
			return err
		}
	}
	return nil
}

// EnsureLoadableField checks the field, its owning type and its field type.
func EnsureLoadableField(f *Field) error {
	if f == nil {
		return &TypeSystemError{Entity: "<nil field>", Reason: "field reference could not be resolved"}
	}
	if err := EnsureLoadableType(f.Owner); err != nil {
		return err
	}
	if def := f.TypicalDefinition(); def.LoadError != "" {
		return &TypeSystemError{Entity: f.String(), Reason: def.LoadError}
	}
	if f.Type != nil {
		return EnsureLoadableType(f.Type)
	}
	return nil
}
