package ir

// NameSource tags where a variable's name came from, which in turn decides
// how codegen is allowed to treat it (§6 "Naming conventions in output").
type NameSource int

const (
	NameSourceShaderInterface NameSource = iota
	NameSourceInternalExact
	NameSourceTemporary
)

// VariableScope is where a variable was declared.
type VariableScope int

const (
	ScopeGlobal VariableScope = iota
	ScopeLocal
	ScopeFunctionParam
)

// Decoration is a shader-interface qualifier attached to a global variable.
type Decoration int

const (
	DecorationNone Decoration = iota
	DecorationInput
	DecorationOutput
	DecorationInputOutput
	DecorationUniform
	DecorationBuffer
	DecorationShared
	DecorationPixelLocalStorage
)

// BuiltIn names a well-known shading-language built-in variable (gl_Position
// and friends). The zero value means "not a built-in".
type BuiltIn int

const (
	BuiltInNone BuiltIn = iota
	BuiltInPosition
	BuiltInFragColor
	BuiltInFragData
	BuiltInFragDepth
	BuiltInViewIDOVR
	BuiltInVertexID
	BuiltInInstanceID
)

// Variable is always pointer-typed: Type names the pointer type whose
// pointee is the variable's logical type.
type Variable struct {
	Name       string
	NameSource NameSource
	Type       TypeId // pointer type
	Precision  Precision
	Decoration Decoration
	BuiltIn    BuiltIn
	Initializer *ConstantId
	Scope      VariableScope

	IsConst               bool
	IsStaticUse           bool
	IsDeadCodeEliminated  bool
}

// HasDecorationOrBuiltIn reports whether this variable is marked live
// unconditionally by prune-unused-variables (§4.4.2): any decoration or
// built-in tag, independent of reachability.
func (v *Variable) HasDecorationOrBuiltIn() bool {
	return v.Decoration != DecorationNone || v.BuiltIn != BuiltInNone
}
