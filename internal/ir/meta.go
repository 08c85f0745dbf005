package ir

import (
	"fmt"
	"math"

	"shadeir/internal/diag"
)

// ShaderType is the shader stage this compile targets.
type ShaderType int

const (
	ShaderVertex ShaderType = iota
	ShaderFragment
	ShaderCompute
	ShaderGeometry
	ShaderTessControl
	ShaderTessEvaluation
)

// GeometryParams and TessParams hold the handful of stage-specific global
// properties IRMeta tracks alongside the flat intern tables.
type GeometryParams struct {
	InputPrimitive  string
	OutputPrimitive string
	MaxVertices     int
	Invocations     int
}

type TessParams struct {
	NumVertices   int
	Spacing       string
	PrimitiveMode string
	VertexOrder   string
	PointMode     bool
}

// Meta is IRMeta: the interned flat tables of types, constants, variables,
// functions and register-producing instructions, plus the shader-global
// properties attached at construction (§4.1).
type Meta struct {
	shaderType ShaderType
	geometry   GeometryParams
	tess       TessParams
	mainFn     *FunctionId
	blendEqs   []string
	perVertexRedeclared bool

	types     []Type
	constants []Constant
	variables []Variable
	functions []Function
	instructions []Instruction

	// intern side-maps for structural shapes
	vectorTypes  map[vectorKey]TypeId
	matrixTypes  map[matrixKey]TypeId
	arrayTypes   map[arrayKey]TypeId
	pointerTypes map[TypeId]TypeId
	structTypes  map[string]TypeId

	floatConsts     map[uint64]ConstantId
	compositeConsts map[compositeKey]ConstantId
}

type vectorKey struct {
	elem TypeId
	n    int
}

type matrixKey struct {
	columnType TypeId
	columns    int
}

type arrayKey struct {
	elem  TypeId
	size  int
	sized bool
}

// NewMeta constructs an IRMeta with every predefined type and constant
// reserved, matching the low-id layout in ids.go.
func NewMeta(shaderType ShaderType) *Meta {
	m := &Meta{
		shaderType:      shaderType,
		vectorTypes:     map[vectorKey]TypeId{},
		matrixTypes:     map[matrixKey]TypeId{},
		arrayTypes:      map[arrayKey]TypeId{},
		pointerTypes:    map[TypeId]TypeId{},
		structTypes:     map[string]TypeId{},
		floatConsts:     map[uint64]ConstantId{},
		compositeConsts: map[compositeKey]ConstantId{},
	}
	m.reservePredefinedTypes()
	m.reservePredefinedConstants()
	return m
}

func (m *Meta) reservePredefinedTypes() {
	scalars := []TypeId{TypeVoid, TypeFloat, TypeInt, TypeUint, TypeBool, TypeAtomicCounter, TypeYUVCSC}
	for range scalars {
	}
	m.types = make([]Type, firstUserTypeId)
	m.types[TypeVoid] = Type{Tag: TypeTagScalar, Basic: TypeVoid}
	m.types[TypeFloat] = scalarType(TypeFloat)
	m.types[TypeInt] = scalarType(TypeInt)
	m.types[TypeUint] = scalarType(TypeUint)
	m.types[TypeBool] = scalarType(TypeBool)
	m.types[TypeAtomicCounter] = scalarType(TypeAtomicCounter)
	m.types[TypeYUVCSC] = scalarType(TypeYUVCSC)

	vecOf := func(elem TypeId, n int) func(TypeId) {
		return func(id TypeId) { m.types[id] = vectorType(elem, n); m.vectorTypes[vectorKey{elem, n}] = id }
	}
	vecOf(TypeFloat, 2)(TypeVec2)
	vecOf(TypeFloat, 3)(TypeVec3)
	vecOf(TypeFloat, 4)(TypeVec4)
	vecOf(TypeInt, 2)(TypeIVec2)
	vecOf(TypeInt, 3)(TypeIVec3)
	vecOf(TypeInt, 4)(TypeIVec4)
	vecOf(TypeUint, 2)(TypeUVec2)
	vecOf(TypeUint, 3)(TypeUVec3)
	vecOf(TypeUint, 4)(TypeUVec4)
	vecOf(TypeBool, 2)(TypeBVec2)
	vecOf(TypeBool, 3)(TypeBVec3)
	vecOf(TypeBool, 4)(TypeBVec4)

	matOf := func(col, cols, rows int) func(TypeId) {
		return func(id TypeId) {
			colType := m.vectorTypes[vectorKey{TypeFloat, rows}]
			m.types[id] = matrixType(colType, cols, rows)
			m.matrixTypes[matrixKey{colType, cols}] = id
		}
	}
	matOf(0, 2, 2)(TypeMat2x2)
	matOf(0, 2, 3)(TypeMat2x3)
	matOf(0, 2, 4)(TypeMat2x4)
	matOf(0, 3, 2)(TypeMat3x2)
	matOf(0, 3, 3)(TypeMat3x3)
	matOf(0, 3, 4)(TypeMat3x4)
	matOf(0, 4, 2)(TypeMat4x2)
	matOf(0, 4, 3)(TypeMat4x3)
	matOf(0, 4, 4)(TypeMat4x4)
}

func (m *Meta) reservePredefinedConstants() {
	m.constants = make([]Constant, firstUserConstantId)
	m.constants[ConstFalse] = Constant{Tag: ConstantTagBool, Typ: TypeBool, BoolVal: false}
	m.constants[ConstTrue] = Constant{Tag: ConstantTagBool, Typ: TypeBool, BoolVal: true}
	m.constants[ConstFloatZero] = Constant{Tag: ConstantTagFloat, Typ: TypeFloat, FloatBits: math.Float64bits(0)}
	m.constants[ConstFloatOne] = Constant{Tag: ConstantTagFloat, Typ: TypeFloat, FloatBits: math.Float64bits(1)}
	m.constants[ConstIntZero] = Constant{Tag: ConstantTagInt, Typ: TypeInt, IntVal: 0}
	m.constants[ConstIntOne] = Constant{Tag: ConstantTagInt, Typ: TypeInt, IntVal: 1}
	m.constants[ConstUintZero] = Constant{Tag: ConstantTagUint, Typ: TypeUint, UintVal: 0}
	m.constants[ConstUintOne] = Constant{Tag: ConstantTagUint, Typ: TypeUint, UintVal: 1}
	m.constants[ConstYUVItu601] = Constant{Tag: ConstantTagYUV, Typ: TypeYUVCSC, YUVVal: 0}
	m.constants[ConstYUVItu601FullRange] = Constant{Tag: ConstantTagYUV, Typ: TypeYUVCSC, YUVVal: 1}
	m.constants[ConstYUVItu709] = Constant{Tag: ConstantTagYUV, Typ: TypeYUVCSC, YUVVal: 2}
}

// --- shader-global properties ------------------------------------------

func (m *Meta) ShaderType() ShaderType            { return m.shaderType }
func (m *Meta) Geometry() GeometryParams          { return m.geometry }
func (m *Meta) SetGeometry(g GeometryParams)      { m.geometry = g }
func (m *Meta) Tess() TessParams                  { return m.tess }
func (m *Meta) SetTess(t TessParams)              { m.tess = t }
func (m *Meta) MainFunction() (FunctionId, bool) {
	if m.mainFn == nil {
		return 0, false
	}
	return *m.mainFn, true
}
func (m *Meta) SetMainFunction(id FunctionId) { m.mainFn = &id }
func (m *Meta) BlendEquations() []string      { return m.blendEqs }
func (m *Meta) SetBlendEquations(e []string)  { m.blendEqs = e }
func (m *Meta) PerVertexRedeclared() bool     { return m.perVertexRedeclared }
func (m *Meta) SetPerVertexRedeclared(b bool) { m.perVertexRedeclared = b }

// --- types ----------------------------------------------------------------

func (m *Meta) Type(id TypeId) *Type {
	if int(id) >= len(m.types) {
		diag.Abortf("ir.meta", "type id %d out of range", id)
	}
	return &m.types[id]
}

func (m *Meta) declareType(t Type) TypeId {
	id := TypeId(len(m.types))
	m.types = append(m.types, t)
	return id
}

// InternVector returns the id for vector<elem, n>, declaring it on first use.
func (m *Meta) InternVector(elem TypeId, n int) TypeId {
	k := vectorKey{elem, n}
	if id, ok := m.vectorTypes[k]; ok {
		return id
	}
	id := m.declareType(vectorType(elem, n))
	m.vectorTypes[k] = id
	return id
}

// InternMatrix returns the id for a matrix of `columns` columns of
// `columnType` (a vector type), declaring it on first use.
func (m *Meta) InternMatrix(columnType TypeId, columns int) TypeId {
	k := matrixKey{columnType, columns}
	if id, ok := m.matrixTypes[k]; ok {
		return id
	}
	rows := m.Type(columnType).VectorSize
	id := m.declareType(matrixType(columnType, columns, rows))
	m.matrixTypes[k] = id
	return id
}

// InternArray returns the id for array<elem>[size] (sized) or array<elem>[]
// (unsized), declaring it on first use.
func (m *Meta) InternArray(elem TypeId, size int, sized bool) TypeId {
	k := arrayKey{elem, size, sized}
	if id, ok := m.arrayTypes[k]; ok {
		return id
	}
	id := m.declareType(Type{Tag: TypeTagArray, ArrayElement: elem, ArraySize: size, ArraySized: sized})
	m.arrayTypes[k] = id
	return id
}

// InternPointer returns the id for pointer(pointee), declaring it on first
// use. Pointer types are never nested (§3 invariants): pointee must not
// itself be a pointer.
func (m *Meta) InternPointer(pointee TypeId) TypeId {
	if m.Type(pointee).Tag == TypeTagPointer {
		diag.Abortf("ir.meta", "attempted to nest pointer types (pointee %d is already a pointer)", pointee)
	}
	if id, ok := m.pointerTypes[pointee]; ok {
		return id
	}
	id := m.declareType(Type{Tag: TypeTagPointer, Pointee: pointee})
	m.pointerTypes[pointee] = id
	return id
}

// DeclareStruct always declares a fresh struct/interface-block type; struct
// identity is nominal, not structural, so there is no interning by shape and
// no existing id is reused. The name->id entry it records in structTypes is
// only read by EliminateType, which removes it.
func (m *Meta) DeclareStruct(name string, fields []StructField, spec StructSpec) TypeId {
	id := m.declareType(Type{Tag: TypeTagStruct, Name: name, Fields: fields, Spec: spec})
	if name != "" {
		m.structTypes[name] = id
	}
	return id
}

func (m *Meta) DeclareImage(basic TypeId, shape ImageShape) TypeId {
	return m.declareType(Type{Tag: TypeTagImage, ImageBasic: basic, Image: shape})
}

// EliminateType marks id dead-code-eliminated in place, preserving id
// stability, and removes it from whichever intern map might still refer to
// it so the id is never handed out again.
func (m *Meta) EliminateType(id TypeId) {
	if isPredefinedType(id) {
		diag.Abortf("ir.meta", "attempted to eliminate predefined type %d", id)
	}
	m.types[id].Tag = TypeTagDeadCodeEliminated
	for k, v := range m.vectorTypes {
		if v == id {
			delete(m.vectorTypes, k)
		}
	}
	for k, v := range m.matrixTypes {
		if v == id {
			delete(m.matrixTypes, k)
		}
	}
	for k, v := range m.arrayTypes {
		if v == id {
			delete(m.arrayTypes, k)
		}
	}
	for k, v := range m.pointerTypes {
		if v == id {
			delete(m.pointerTypes, k)
		}
	}
	for k, v := range m.structTypes {
		if v == id {
			delete(m.structTypes, k)
		}
	}
}

// --- constants -------------------------------------------------------

func (m *Meta) Constant(id ConstantId) *Constant {
	if int(id) >= len(m.constants) {
		diag.Abortf("ir.meta", "constant id %d out of range", id)
	}
	return &m.constants[id]
}

func (m *Meta) InternFloat(typ TypeId, v float64) ConstantId {
	bits := math.Float64bits(v)
	if id, ok := m.floatConsts[bits]; ok && m.constants[id].Typ == typ {
		return id
	}
	id := ConstantId(len(m.constants))
	m.constants = append(m.constants, Constant{Tag: ConstantTagFloat, Typ: typ, FloatBits: bits})
	m.floatConsts[bits] = id
	return id
}

func (m *Meta) InternInt(typ TypeId, v int64) ConstantId {
	for i, c := range m.constants {
		if c.Tag == ConstantTagInt && c.Typ == typ && c.IntVal == v {
			return ConstantId(i)
		}
	}
	id := ConstantId(len(m.constants))
	m.constants = append(m.constants, Constant{Tag: ConstantTagInt, Typ: typ, IntVal: v})
	return id
}

func (m *Meta) InternUint(typ TypeId, v uint64) ConstantId {
	id := ConstantId(len(m.constants))
	m.constants = append(m.constants, Constant{Tag: ConstantTagUint, Typ: typ, UintVal: v})
	return id
}

func (m *Meta) InternBool(v bool) ConstantId {
	if v {
		return ConstTrue
	}
	return ConstFalse
}

// InternComposite interns on (type, component ids) so two structurally
// identical composite constants share one id.
func (m *Meta) InternComposite(typ TypeId, components []ConstantId) ConstantId {
	key := compositeKey{typ: typ, comp: fmt.Sprint(components)}
	if id, ok := m.compositeConsts[key]; ok {
		return id
	}
	id := ConstantId(len(m.constants))
	comp := append([]ConstantId(nil), components...)
	m.constants = append(m.constants, Constant{Tag: ConstantTagComposite, Typ: typ, Components: comp})
	m.compositeConsts[key] = id
	return id
}

// GetConstantNull synthesizes the zero value of typ, recursing through
// composites. Defined for every constructible type.
func (m *Meta) GetConstantNull(typ TypeId) ConstantId {
	t := m.Type(typ)
	switch t.Tag {
	case TypeTagScalar:
		switch t.Basic {
		case TypeFloat:
			return ConstFloatZero
		case TypeInt:
			return ConstIntZero
		case TypeUint:
			return ConstUintZero
		case TypeBool:
			return ConstFalse
		default:
			diag.Abortf("ir.meta", "no null constant for scalar basic type %v", t.Basic)
		}
	case TypeTagVector:
		comps := make([]ConstantId, t.VectorSize)
		elemNull := m.GetConstantNull(t.Element)
		for i := range comps {
			comps[i] = elemNull
		}
		return m.InternComposite(typ, comps)
	case TypeTagMatrix:
		comps := make([]ConstantId, t.VectorSize)
		colNull := m.GetConstantNull(t.Element)
		for i := range comps {
			comps[i] = colNull
		}
		return m.InternComposite(typ, comps)
	case TypeTagArray:
		if !t.ArraySized {
			diag.Abortf("ir.meta", "cannot synthesize a null constant for an unsized array type %d", typ)
		}
		comps := make([]ConstantId, t.ArraySize)
		elemNull := m.GetConstantNull(t.ArrayElement)
		for i := range comps {
			comps[i] = elemNull
		}
		return m.InternComposite(typ, comps)
	case TypeTagStruct:
		comps := make([]ConstantId, len(t.Fields))
		for i, f := range t.Fields {
			comps[i] = m.GetConstantNull(f.Type)
		}
		return m.InternComposite(typ, comps)
	default:
		diag.Abortf("ir.meta", "no null constant for type tag %v", t.Tag)
	}
	panic("unreachable")
}

// --- variables --------------------------------------------------------

func (m *Meta) Variable(id VariableId) *Variable {
	if int(id) >= len(m.variables) {
		diag.Abortf("ir.meta", "variable id %d out of range", id)
	}
	return &m.variables[id]
}

// DeclareVariable unconditionally declares a new variable and returns its
// fresh id; there is no interning (two variables with identical shape are
// still distinct declarations).
func (m *Meta) DeclareVariable(v Variable) VariableId {
	id := VariableId(len(m.variables))
	m.variables = append(m.variables, v)
	return id
}

func (m *Meta) NumVariables() int { return len(m.variables) }

// NumTypes is the current length of the flat type table, including
// predefined entries.
func (m *Meta) NumTypes() int { return len(m.types) }

// NumConstants is the current length of the flat constant table, including
// predefined entries.
func (m *Meta) NumConstants() int { return len(m.constants) }

// --- functions --------------------------------------------------------

func (m *Meta) Function(id FunctionId) *Function {
	if int(id) >= len(m.functions) {
		diag.Abortf("ir.meta", "function id %d out of range", id)
	}
	return &m.functions[id]
}

func (m *Meta) DeclareFunction(f Function) FunctionId {
	id := FunctionId(len(m.functions))
	m.functions = append(m.functions, f)
	return id
}

func (m *Meta) NumFunctions() int { return len(m.functions) }

// --- instructions / registers ---------------------------------------

// NumInstructions is the current length of the flat register/instruction
// table.
func (m *Meta) NumInstructions() int { return len(m.instructions) }

func (m *Meta) Instruction(id RegisterId) *Instruction {
	if int(id) >= len(m.instructions) {
		diag.Abortf("ir.meta", "register id %d out of range", id)
	}
	return &m.instructions[id]
}

// NewRegister stores op as a fresh instruction and returns a TypedId
// referencing its result register at typ/precision.
func (m *Meta) NewRegister(op OpCode, typ TypeId, precision Precision) TypedId {
	id := RegisterId(len(m.instructions))
	m.instructions = append(m.instructions, Instruction{Result: id, Op: op, ResultType: typ, ResultPrecision: precision})
	return TypedId{Id: RegId(id), Type: typ, Precision: precision}
}

// ReplaceInstruction swaps two register entries so that toReplace's id now
// describes what replaceBy described, while replaceBy's own id is left
// pointing at the (now stale) old content of toReplace. This is the
// register-swap primitive (§4.1, §9): it lets a pass insert new code while
// keeping the original result id stable for whatever else refers to it.
func (m *Meta) ReplaceInstruction(toReplace, replaceBy RegisterId) {
	a, b := m.Instruction(toReplace), m.Instruction(replaceBy)
	newA := *b
	newB := *a
	newA.Result = toReplace
	newB.Result = replaceBy
	*a = newA
	*b = newB
}

// AssignNewRegisterToInstruction moves the instruction currently at id out
// to a fresh register, replaces id's entry with an inert NextBlock
// placeholder, and returns the fresh id. Used when a transformation wants
// to insert code ahead of an existing instruction while some later
// reference still expects to find that instruction under its original id.
func (m *Meta) AssignNewRegisterToInstruction(id RegisterId) RegisterId {
	moved := *m.Instruction(id)
	fresh := RegisterId(len(m.instructions))
	moved.Result = fresh
	m.instructions = append(m.instructions, moved)
	*m.Instruction(id) = Instruction{Result: id, Op: &NextBlock{}, ResultType: TypeVoid, ResultPrecision: PrecisionNotApplicable}
	return fresh
}

// GetAliasedId walks any chain of Alias opcodes starting at id to its
// origin. Non-register ids (constants, variables) are their own origin.
func (m *Meta) GetAliasedId(id Id) Id {
	for id.Kind == IdRegister {
		inst := m.Instruction(id.Register)
		alias, ok := inst.Op.(*Alias)
		if !ok {
			return id
		}
		id = alias.Source
	}
	return id
}
