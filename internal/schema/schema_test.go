package schema

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomdb/loom/internal/record"
)

func compileString(t *testing.T, src string) (*Catalog, error) {
	t.Helper()
	ctx := cuecontext.New()
	return Compile(ctx.CompileString(src))
}

const kennelSchema = `
class: Dog: {
	properties: {
		Name: "string"
		Age:  "int"
	}
	lists: {
		Puppies: "Dog"
	}
}
class: Person: {
	properties: {
		Name: "string"
	}
	lists: {
		Dogs: "Dog"
	}
}
`

func TestCompileSchema(t *testing.T) {
	cat, err := compileString(t, kennelSchema)
	require.NoError(t, err)

	assert.Equal(t, []string{"Dog", "Person"}, cat.Classes())

	dog := cat.Class("Dog")
	require.NotNil(t, dog)
	assert.Equal(t, "int", dog.Properties["Age"])
	assert.Equal(t, "Dog", dog.Lists["Puppies"])

	assert.Nil(t, cat.Class("Cat"))
}

func TestCompileSchemaErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"no_class_root", `foo: 1`},
		{"unknown_property_type", `class: Dog: {properties: {Name: "varchar"}}`},
		{"empty_class", `class: Dog: {}`},
		{"undeclared_list_target", `class: Dog: {lists: {Puppies: "Cat"}}`},
		{"malformed_cue", `class: Dog: {properties: {Name: }`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := compileString(t, tc.src)
			require.Error(t, err)
			var compileErr *CompileError
			assert.ErrorAs(t, err, &compileErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "classes.cue")
	require.NoError(t, os.WriteFile(path, []byte(kennelSchema), 0o644))

	cat, err := LoadFile(path)
	require.NoError(t, err)
	assert.NotNil(t, cat.Class("Dog"))

	_, err = LoadFile(filepath.Join(dir, "missing.cue"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cat, err := compileString(t, kennelSchema)
	require.NoError(t, err)

	ok := record.Object{"Name": record.String("Rex"), "Age": record.Int(4)}
	assert.NoError(t, cat.Validate("Dog", ok))

	// Declared properties may be absent.
	assert.NoError(t, cat.Validate("Dog", record.Object{"Name": record.String("Rex")}))

	// Null is valid for any declared property.
	assert.NoError(t, cat.Validate("Dog", record.Object{"Age": record.Null{}}))

	assert.Error(t, cat.Validate("Cat", ok), "unknown class")
	assert.Error(t, cat.Validate("Dog", record.Object{"Color": record.String("brown")}), "undeclared property")
	assert.Error(t, cat.Validate("Dog", record.Object{"Age": record.String("four")}), "type mismatch")
}

func TestValidateFloatAcceptsInt(t *testing.T) {
	cat, err := compileString(t, `class: Reading: {properties: {Temp: "float"}}`)
	require.NoError(t, err)

	assert.NoError(t, cat.Validate("Reading", record.Object{"Temp": record.Int(38)}))
	assert.NoError(t, cat.Validate("Reading", record.Object{"Temp": record.Float(38.2)}))
	assert.Error(t, cat.Validate("Reading", record.Object{"Temp": record.Bool(true)}))
}
