package codegen

import (
	"fmt"

	"github.com/iancoleman/strcase"
	"shadeir/internal/ir"
)

// Naming conventions in output (§6): NameSourceInternalExact and
// NameSourceShaderInterface names are preserved verbatim (with their
// respective prefixes already baked into Variable.Name by the front end);
// only NameSourceTemporary names may be renamed by the backend to avoid
// collisions. These helpers give Target implementations a canonical,
// shared way to do that renaming rather than each backend inventing its own
// scheme.
const (
	tempVariablePrefix = "_utmp"
	tempStructPrefix   = "_uStruct"
	tempFieldPrefix    = "_ufield"
	tempFunctionPrefix = "_ufn"
)

// VariableName returns the identifier a backend should emit for v, renaming
// temporaries to a canonical, collision-free, snake_case-normalized form
// keyed by seq (typically a per-function or per-compile counter).
func VariableName(v *ir.Variable, seq int) string {
	if v.NameSource != ir.NameSourceTemporary {
		return v.Name
	}
	base := v.Name
	if base == "" {
		base = "v"
	}
	return fmt.Sprintf("%s_%s%d", tempVariablePrefix, strcase.ToSnake(base), seq)
}

// StructName returns the identifier for an anonymous/temporary struct type
// synthesized during transformation (e.g. by monomorphize's access-chain
// preambles), distinct from a user-declared, front-end-named struct.
func StructName(seq int) string {
	return fmt.Sprintf("%s%d", tempStructPrefix, seq)
}

// FieldName canonicalizes a struct field's name for output.
func FieldName(name string, index int) string {
	if name == "" {
		return fmt.Sprintf("%s%d", tempFieldPrefix, index)
	}
	return strcase.ToLowerCamel(name)
}

// FunctionName returns the identifier for f: main keeps its name, and every
// other function (monomorphization's "_mono" specializations included) is
// renamed into a stable, collision-free form.
func FunctionName(f *ir.Function, seq int) string {
	if f.Name == "main" {
		return "main"
	}
	return fmt.Sprintf("%s_%s%d", tempFunctionPrefix, strcase.ToSnake(f.Name), seq)
}
