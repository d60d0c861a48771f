// Package image reads and writes programs as CBOR-encoded images.
//
// An image is self-contained: classes, fields, methods, accessor bindings and
// bodies. Cross references (field and method references, jump targets,
// locals) are encoded as indexes so the encoding is deterministic and
// round-trips object identity.
package image

// ImageVersion is the current image format version. Increment when making
// incompatible changes to the format.
const ImageVersion uint16 = 1

// Image is the top-level encoded program.
type Image struct {
	Version uint16       `cbor:"1,keyasint"`
	Classes []ClassImage `cbor:"2,keyasint"`
}

// ClassImage encodes one class.
type ClassImage struct {
	Name    string        `cbor:"1,keyasint"`
	Flags   uint8         `cbor:"2,keyasint,omitempty"`
	Fields  []FieldImage  `cbor:"3,keyasint,omitempty"`
	Methods []MethodImage `cbor:"4,keyasint,omitempty"`
}

// FieldImage encodes one field. Getter and Setter are method indexes in the
// owning class, -1 when unbound.
type FieldImage struct {
	Name      string    `cbor:"1,keyasint"`
	Type      TypeImage `cbor:"2,keyasint"`
	Modifiers uint16    `cbor:"3,keyasint,omitempty"`
	Getter    int       `cbor:"4,keyasint"`
	Setter    int       `cbor:"5,keyasint"`
}

// MethodImage encodes one method.
type MethodImage struct {
	Name      string      `cbor:"1,keyasint"`
	Params    []TypeImage `cbor:"2,keyasint,omitempty"`
	Return    TypeImage   `cbor:"3,keyasint"`
	Modifiers uint16      `cbor:"4,keyasint,omitempty"`
	Body      *BodyImage  `cbor:"5,keyasint,omitempty"`
}

// TypeImage encodes an ir.Type.
type TypeImage struct {
	Kind  uint8  `cbor:"1,keyasint"`
	Class string `cbor:"2,keyasint,omitempty"`
}

// LocalImage encodes a local declaration.
type LocalImage struct {
	Name string    `cbor:"1,keyasint"`
	Type TypeImage `cbor:"2,keyasint"`
}

// BodyImage encodes a method body.
type BodyImage struct {
	Locals []LocalImage `cbor:"1,keyasint,omitempty"`
	Units  []StmtImage  `cbor:"2,keyasint"`
}

// Statement opcodes.
const (
	StmtIdentity uint8 = iota + 1
	StmtAssign
	StmtInvoke
	StmtReturn
	StmtIf
	StmtGoto
)

// StmtImage encodes a statement. Operands holds, by opcode:
// identity [local, ref], assign [left, right], invoke [call],
// return [] or [value], if [cond]. Target is a statement index or -1.
type StmtImage struct {
	Op       uint8        `cbor:"1,keyasint"`
	Operands []ValueImage `cbor:"2,keyasint,omitempty"`
	Target   int          `cbor:"3,keyasint"`
}

// Value opcodes.
const (
	ValLocal uint8 = iota + 1
	ValConst
	ValInstanceField
	ValStaticField
	ValInvoke
	ValNew
	ValBinop
	ValThis
	ValParam
)

// ValueImage encodes a value. Only the members meaningful for Op are set.
type ValueImage struct {
	Op     uint8        `cbor:"1,keyasint"`
	Type   TypeImage    `cbor:"2,keyasint"`
	Local  int          `cbor:"3,keyasint,omitempty"` // local index + 1, 0 = none
	Int    int64        `cbor:"4,keyasint,omitempty"` // constant, param index or invoke kind
	Class  string       `cbor:"5,keyasint,omitempty"`
	Member int          `cbor:"6,keyasint,omitempty"` // field index, method index or binop
	Args   []ValueImage `cbor:"7,keyasint,omitempty"`
}
