package ir

// IdKind tags which table an Id indexes into.
type IdKind int

const (
	IdRegister IdKind = iota
	IdConstant
	IdVariable
)

// Id is the closed union {Register, Constant, Variable}; it never refers to
// a type or function directly (those are referenced by their own ids in
// operand structs where needed).
type Id struct {
	Kind     IdKind
	Register RegisterId
	Constant ConstantId
	Variable VariableId
}

func RegId(r RegisterId) Id { return Id{Kind: IdRegister, Register: r} }
func ConstId(c ConstantId) Id { return Id{Kind: IdConstant, Constant: c} }
func VarId(v VariableId) Id { return Id{Kind: IdVariable, Variable: v} }

// TypedId pairs an operand reference with the type it resolves to and the
// precision it carries at this particular use site.
type TypedId struct {
	Id        Id
	Type      TypeId
	Precision Precision
}

func (t TypedId) IsRegister() bool { return t.Id.Kind == IdRegister }
func (t TypedId) IsConstant() bool { return t.Id.Kind == IdConstant }
func (t TypedId) IsVariable() bool { return t.Id.Kind == IdVariable }
