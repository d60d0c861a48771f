package image

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/encap/ir"
)

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a program to CBOR bytes.
func Marshal(p *ir.Program) ([]byte, error) {
	img, err := Encode(p)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(img)
}

// Unmarshal deserializes a program from CBOR bytes.
func Unmarshal(data []byte) (*ir.Program, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	return Decode(&img)
}

// ReadFile loads a program image from path.
func ReadFile(path string) (*ir.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read image %s: %w", path, err)
	}
	p, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// WriteFile stores a program image at path.
func WriteFile(path string, p *ir.Program) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write image %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// Encode converts a program into its image form.
func Encode(p *ir.Program) (*Image, error) {
	img := &Image{Version: ImageVersion}
	for _, c := range p.Classes {
		ci := ClassImage{Name: c.Name, Flags: uint8(c.Flags)}
		for _, f := range c.Fields {
			ci.Fields = append(ci.Fields, FieldImage{
				Name:      f.Name,
				Type:      encodeType(f.Type),
				Modifiers: uint16(f.Modifiers),
				Getter:    methodIndex(f.Getter()),
				Setter:    methodIndex(f.Setter()),
			})
		}
		for _, m := range c.Methods {
			mi := MethodImage{
				Name:      m.Name,
				Return:    encodeType(m.Return),
				Modifiers: uint16(m.Modifiers),
			}
			for _, t := range m.Params {
				mi.Params = append(mi.Params, encodeType(t))
			}
			if m.Body != nil {
				bi, err := encodeBody(m.Body)
				if err != nil {
					return nil, fmt.Errorf("image: %s: %w", m.Signature(), err)
				}
				mi.Body = bi
			}
			ci.Methods = append(ci.Methods, mi)
		}
		img.Classes = append(img.Classes, ci)
	}
	return img, nil
}

func encodeType(t ir.Type) TypeImage {
	return TypeImage{Kind: uint8(t.Kind), Class: t.Class}
}

func methodIndex(m *ir.Method) int {
	if m == nil || m.Class == nil {
		return -1
	}
	for i, cm := range m.Class.Methods {
		if cm == m {
			return i
		}
	}
	return -1
}

func fieldIndex(f *ir.Field) int {
	for i, cf := range f.Class.Fields {
		if cf == f {
			return i
		}
	}
	return -1
}

type bodyEncoder struct {
	locals map[*ir.Local]int
	units  map[ir.Stmt]int
}

func encodeBody(b *ir.Body) (*BodyImage, error) {
	e := &bodyEncoder{
		locals: make(map[*ir.Local]int, len(b.Locals)),
		units:  make(map[ir.Stmt]int, b.Units.Len()),
	}
	bi := &BodyImage{}
	for i, l := range b.Locals {
		e.locals[l] = i
		bi.Locals = append(bi.Locals, LocalImage{Name: l.Name, Type: encodeType(l.Ty)})
	}
	units := b.Units.Snapshot()
	for i, s := range units {
		e.units[s] = i
	}
	for i, s := range units {
		si, err := e.stmt(s)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i, err)
		}
		bi.Units = append(bi.Units, si)
	}
	return bi, nil
}

func (e *bodyEncoder) stmt(s ir.Stmt) (StmtImage, error) {
	si := StmtImage{Target: -1}
	var operands []ir.Value
	switch s := s.(type) {
	case *ir.IdentityStmt:
		si.Op = StmtIdentity
		operands = []ir.Value{s.Local, s.Ref}
	case *ir.AssignStmt:
		si.Op = StmtAssign
		operands = []ir.Value{s.Left, s.Right}
	case *ir.InvokeStmt:
		si.Op = StmtInvoke
		operands = []ir.Value{s.Call}
	case *ir.ReturnStmt:
		si.Op = StmtReturn
		if s.Value != nil {
			operands = []ir.Value{s.Value}
		}
	case *ir.IfStmt:
		si.Op = StmtIf
		operands = []ir.Value{s.Cond}
		si.Target = e.target(s.Target)
	case *ir.GotoStmt:
		si.Op = StmtGoto
		si.Target = e.target(s.Target)
	default:
		return si, fmt.Errorf("unknown statement %T", s)
	}
	for _, v := range operands {
		vi, err := e.value(v)
		if err != nil {
			return si, err
		}
		si.Operands = append(si.Operands, vi)
	}
	return si, nil
}

func (e *bodyEncoder) target(t ir.Stmt) int {
	if i, ok := e.units[t]; ok {
		return i
	}
	return -1
}

func (e *bodyEncoder) local(l *ir.Local) (int, error) {
	if l == nil {
		return 0, nil
	}
	i, ok := e.locals[l]
	if !ok {
		return 0, fmt.Errorf("local %s is not declared", l.Name)
	}
	return i + 1, nil
}

func (e *bodyEncoder) value(v ir.Value) (ValueImage, error) {
	vi := ValueImage{Type: encodeType(v.Type())}
	var err error
	switch v := v.(type) {
	case *ir.Local:
		vi.Op = ValLocal
		vi.Local, err = e.local(v)
	case *ir.Constant:
		vi.Op = ValConst
		vi.Int = v.Val
	case *ir.InstanceFieldRef:
		vi.Op = ValInstanceField
		vi.Local, err = e.local(v.Base)
		vi.Class = v.Field.Class.Name
		vi.Member = fieldIndex(v.Field)
	case *ir.StaticFieldRef:
		vi.Op = ValStaticField
		vi.Class = v.Field.Class.Name
		vi.Member = fieldIndex(v.Field)
	case *ir.InvokeExpr:
		vi.Op = ValInvoke
		vi.Local, err = e.local(v.Base)
		vi.Class = v.Method.Class.Name
		vi.Member = methodIndex(v.Method)
		vi.Int = int64(v.Kind)
		for _, a := range v.Args {
			ai, aerr := e.value(a)
			if aerr != nil {
				return vi, aerr
			}
			vi.Args = append(vi.Args, ai)
		}
	case *ir.NewExpr:
		vi.Op = ValNew
		vi.Class = v.Class.Name
	case *ir.BinopExpr:
		vi.Op = ValBinop
		vi.Member = int(v.Op)
		for _, a := range []ir.Value{v.X, v.Y} {
			ai, aerr := e.value(a)
			if aerr != nil {
				return vi, aerr
			}
			vi.Args = append(vi.Args, ai)
		}
	case *ir.ThisRef:
		vi.Op = ValThis
		vi.Class = v.Class.Name
	case *ir.ParamRef:
		vi.Op = ValParam
		vi.Int = int64(v.Index)
	default:
		return vi, fmt.Errorf("unknown value %T", v)
	}
	return vi, err
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// Decode rebuilds a program from its image form.
func Decode(img *Image) (*ir.Program, error) {
	if img.Version != ImageVersion {
		return nil, fmt.Errorf("image: unsupported version %d (want %d)", img.Version, ImageVersion)
	}
	p := ir.NewProgram()
	for _, ci := range img.Classes {
		c := ir.NewClass(ci.Name, ir.ClassFlags(ci.Flags))
		if _, err := p.AddClass(c); err != nil {
			return nil, fmt.Errorf("image: %w", err)
		}
		for _, fi := range ci.Fields {
			c.AddField(fi.Name, decodeType(fi.Type), ir.Modifier(fi.Modifiers))
		}
		for _, mi := range ci.Methods {
			params := make([]ir.Type, len(mi.Params))
			for i, t := range mi.Params {
				params[i] = decodeType(t)
			}
			c.AddMethod(ir.NewMethod(mi.Name, params, decodeType(mi.Return), ir.Modifier(mi.Modifiers)))
		}
	}

	for ci, cimg := range img.Classes {
		c := p.Classes[ci]
		for fi, fimg := range cimg.Fields {
			get, err := methodAt(c, fimg.Getter)
			if err != nil {
				return nil, err
			}
			set, err := methodAt(c, fimg.Setter)
			if err != nil {
				return nil, err
			}
			if get != nil || set != nil {
				c.Fields[fi].BindAccessors(get, set)
			}
		}
	}

	for ci, cimg := range img.Classes {
		c := p.Classes[ci]
		for mi, mimg := range cimg.Methods {
			if mimg.Body == nil {
				continue
			}
			m := c.Methods[mi]
			if err := decodeBody(p, m, mimg.Body); err != nil {
				return nil, fmt.Errorf("image: %s: %w", m.Signature(), err)
			}
		}
	}
	return p, nil
}

func decodeType(t TypeImage) ir.Type {
	return ir.Type{Kind: ir.Kind(t.Kind), Class: t.Class}
}

func methodAt(c *ir.Class, i int) (*ir.Method, error) {
	if i < 0 {
		return nil, nil
	}
	if i >= len(c.Methods) {
		return nil, fmt.Errorf("image: %s has no method %d", c.Name, i)
	}
	return c.Methods[i], nil
}

type bodyDecoder struct {
	prog   *ir.Program
	locals []*ir.Local
}

func decodeBody(p *ir.Program, m *ir.Method, bi *BodyImage) error {
	body := ir.NewBody()
	d := &bodyDecoder{prog: p}
	for _, li := range bi.Locals {
		d.locals = append(d.locals, body.AddLocal(&ir.Local{Name: li.Name, Ty: decodeType(li.Type)}))
	}

	units := make([]ir.Stmt, len(bi.Units))
	for i, si := range bi.Units {
		s, err := d.stmt(si)
		if err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
		units[i] = s
	}
	for i, si := range bi.Units {
		if si.Op != StmtIf && si.Op != StmtGoto {
			continue
		}
		if si.Target < 0 || si.Target >= len(units) {
			return fmt.Errorf("statement %d: jump target %d out of range", i, si.Target)
		}
		switch s := units[i].(type) {
		case *ir.IfStmt:
			s.Target = units[si.Target]
		case *ir.GotoStmt:
			s.Target = units[si.Target]
		}
	}
	for _, s := range units {
		body.Units.Add(s)
	}
	m.SetBody(body)
	return nil
}

func (d *bodyDecoder) operands(si StmtImage, n int) ([]ir.Value, error) {
	if len(si.Operands) != n {
		return nil, fmt.Errorf("opcode %d has %d operands, want %d", si.Op, len(si.Operands), n)
	}
	vals := make([]ir.Value, n)
	for i, vi := range si.Operands {
		v, err := d.value(vi)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func (d *bodyDecoder) stmt(si StmtImage) (ir.Stmt, error) {
	switch si.Op {
	case StmtIdentity:
		ops, err := d.operands(si, 2)
		if err != nil {
			return nil, err
		}
		l, ok := ops[0].(*ir.Local)
		if !ok {
			return nil, fmt.Errorf("identity statement binds %T", ops[0])
		}
		return &ir.IdentityStmt{Local: l, Ref: ops[1]}, nil
	case StmtAssign:
		ops, err := d.operands(si, 2)
		if err != nil {
			return nil, err
		}
		return &ir.AssignStmt{Left: ops[0], Right: ops[1]}, nil
	case StmtInvoke:
		ops, err := d.operands(si, 1)
		if err != nil {
			return nil, err
		}
		call, ok := ops[0].(*ir.InvokeExpr)
		if !ok {
			return nil, fmt.Errorf("invoke statement holds %T", ops[0])
		}
		return &ir.InvokeStmt{Call: call}, nil
	case StmtReturn:
		if len(si.Operands) == 0 {
			return &ir.ReturnStmt{}, nil
		}
		ops, err := d.operands(si, 1)
		if err != nil {
			return nil, err
		}
		return &ir.ReturnStmt{Value: ops[0]}, nil
	case StmtIf:
		ops, err := d.operands(si, 1)
		if err != nil {
			return nil, err
		}
		return &ir.IfStmt{Cond: ops[0]}, nil
	case StmtGoto:
		return &ir.GotoStmt{}, nil
	default:
		return nil, fmt.Errorf("unknown statement opcode %d", si.Op)
	}
}

func (d *bodyDecoder) local(i int) (*ir.Local, error) {
	if i == 0 {
		return nil, nil
	}
	if i < 0 || i > len(d.locals) {
		return nil, fmt.Errorf("local %d out of range", i-1)
	}
	return d.locals[i-1], nil
}

func (d *bodyDecoder) class(name string) (*ir.Class, error) {
	c := d.prog.Class(name)
	if c == nil {
		return nil, fmt.Errorf("unknown class %s", name)
	}
	return c, nil
}

func (d *bodyDecoder) field(vi ValueImage) (*ir.Field, error) {
	c, err := d.class(vi.Class)
	if err != nil {
		return nil, err
	}
	if vi.Member < 0 || vi.Member >= len(c.Fields) {
		return nil, fmt.Errorf("%s has no field %d", c.Name, vi.Member)
	}
	return c.Fields[vi.Member], nil
}

func (d *bodyDecoder) value(vi ValueImage) (ir.Value, error) {
	switch vi.Op {
	case ValLocal:
		l, err := d.local(vi.Local)
		if err != nil {
			return nil, err
		}
		if l == nil {
			return nil, fmt.Errorf("missing local")
		}
		return l, nil
	case ValConst:
		return &ir.Constant{Ty: decodeType(vi.Type), Val: vi.Int}, nil
	case ValInstanceField:
		base, err := d.local(vi.Local)
		if err != nil {
			return nil, err
		}
		f, err := d.field(vi)
		if err != nil {
			return nil, err
		}
		return ir.FieldRef(base, f), nil
	case ValStaticField:
		f, err := d.field(vi)
		if err != nil {
			return nil, err
		}
		return &ir.StaticFieldRef{Field: f}, nil
	case ValInvoke:
		base, err := d.local(vi.Local)
		if err != nil {
			return nil, err
		}
		c, err := d.class(vi.Class)
		if err != nil {
			return nil, err
		}
		m, err := methodAt(c, vi.Member)
		if err != nil || m == nil {
			return nil, fmt.Errorf("%s has no method %d", c.Name, vi.Member)
		}
		call := &ir.InvokeExpr{Kind: ir.InvokeKind(vi.Int), Base: base, Method: m}
		for _, ai := range vi.Args {
			a, err := d.value(ai)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, a)
		}
		return call, nil
	case ValNew:
		c, err := d.class(vi.Class)
		if err != nil {
			return nil, err
		}
		return ir.New(c), nil
	case ValBinop:
		if len(vi.Args) != 2 {
			return nil, fmt.Errorf("binary expression has %d operands", len(vi.Args))
		}
		x, err := d.value(vi.Args[0])
		if err != nil {
			return nil, err
		}
		y, err := d.value(vi.Args[1])
		if err != nil {
			return nil, err
		}
		return ir.Binop(ir.BinOp(vi.Member), x, y), nil
	case ValThis:
		c, err := d.class(vi.Class)
		if err != nil {
			return nil, err
		}
		return &ir.ThisRef{Class: c}, nil
	case ValParam:
		return &ir.ParamRef{Index: int(vi.Int), Ty: decodeType(vi.Type)}, nil
	default:
		return nil, fmt.Errorf("unknown value opcode %d", vi.Op)
	}
}
