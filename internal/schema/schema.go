// Package schema compiles CUE class schemas into a catalog used to
// validate stored objects.
//
// A schema declares classes, their typed properties, and their ordered
// to-many list fields:
//
//	class: Dog: {
//		properties: {
//			Name: "string"
//			Age:  "int"
//		}
//		lists: {
//			Puppies: "Dog"
//		}
//	}
package schema

import (
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/loomdb/loom/internal/record"
)

// ValidPropertyTypes are the property type names a schema may declare.
var ValidPropertyTypes = map[string]bool{
	"string": true,
	"int":    true,
	"float":  true,
	"bool":   true,
}

// ClassSpec is one compiled class definition.
type ClassSpec struct {
	Name       string
	Properties map[string]string // property name -> type name
	Lists      map[string]string // list field name -> target class name
}

// Catalog holds every compiled class of a schema.
type Catalog struct {
	classes map[string]*ClassSpec
}

// CompileError reports a schema compilation failure with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile compiles a CUE schema file into a Catalog.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	return Compile(v)
}

// Compile parses a CUE value into a Catalog. The value must contain a
// "class" struct whose fields are class definitions.
func Compile(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	classRoot := v.LookupPath(cue.ParsePath("class"))
	if !classRoot.Exists() {
		return nil, &CompileError{
			Field:   "class",
			Message: "schema must declare at least one class",
			Pos:     v.Pos(),
		}
	}

	cat := &Catalog{classes: make(map[string]*ClassSpec)}

	iter, err := classRoot.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		spec, err := compileClass(iter.Selector().String(), iter.Value())
		if err != nil {
			return nil, err
		}
		cat.classes[spec.Name] = spec
	}

	// Second pass: list targets must name declared classes.
	for _, spec := range cat.classes {
		for field, target := range spec.Lists {
			if _, ok := cat.classes[target]; !ok {
				return nil, &CompileError{
					Field:   spec.Name + "." + field,
					Message: fmt.Sprintf("list targets undeclared class %q", target),
				}
			}
		}
	}

	return cat, nil
}

func compileClass(name string, v cue.Value) (*ClassSpec, error) {
	spec := &ClassSpec{
		Name:       name,
		Properties: make(map[string]string),
		Lists:      make(map[string]string),
	}

	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if propsVal.Exists() {
		iter, err := propsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			typeName, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if !ValidPropertyTypes[typeName] {
				return nil, &CompileError{
					Field:   name + "." + iter.Selector().String(),
					Message: fmt.Sprintf("unknown property type %q", typeName),
					Pos:     iter.Value().Pos(),
				}
			}
			spec.Properties[iter.Selector().String()] = typeName
		}
	}

	listsVal := v.LookupPath(cue.ParsePath("lists"))
	if listsVal.Exists() {
		iter, err := listsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			target, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			spec.Lists[iter.Selector().String()] = target
		}
	}

	if len(spec.Properties) == 0 && len(spec.Lists) == 0 {
		return nil, &CompileError{
			Field:   name,
			Message: "class declares no properties and no lists",
			Pos:     v.Pos(),
		}
	}

	return spec, nil
}

// Class returns the spec for a class name, or nil.
func (c *Catalog) Class(name string) *ClassSpec {
	return c.classes[name]
}

// Classes returns the declared class names, sorted.
func (c *Catalog) Classes() []string {
	names := make([]string, 0, len(c.classes))
	for name := range c.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks object properties against a declared class. Undeclared
// properties and type mismatches are errors; declared properties may be
// absent (treated as null).
func (c *Catalog) Validate(class string, props record.Object) error {
	spec := c.classes[class]
	if spec == nil {
		return fmt.Errorf("unknown class %q", class)
	}

	for name, val := range props {
		typeName, ok := spec.Properties[name]
		if !ok {
			return fmt.Errorf("class %s: undeclared property %q", class, name)
		}
		if err := checkType(typeName, val); err != nil {
			return fmt.Errorf("class %s: property %q: %w", class, name, err)
		}
	}
	return nil
}

func checkType(typeName string, v record.Value) error {
	if _, ok := v.(record.Null); ok {
		return nil
	}
	switch typeName {
	case "string":
		if _, ok := v.(record.String); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
	case "int":
		if _, ok := v.(record.Int); !ok {
			return fmt.Errorf("expected int, got %T", v)
		}
	case "float":
		switch v.(type) {
		case record.Float, record.Int: // ints are acceptable floats
		default:
			return fmt.Errorf("expected float, got %T", v)
		}
	case "bool":
		if _, ok := v.(record.Bool); !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
	}
	return nil
}

// formatCUEError converts a CUE error into a CompileError with position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	return &CompileError{
		Field:   "schema",
		Message: first.Error(),
		Pos:     first.Position(),
	}
}
