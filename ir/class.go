package ir

import (
	"fmt"
	"strings"
	"unicode"
)

// ---------------------------------------------------------------------------
// Modifiers and flags
// ---------------------------------------------------------------------------

// Modifier is a set of member modifiers. A member with none of Public,
// Protected or Private set has package visibility.
type Modifier uint16

const (
	ModPublic Modifier = 1 << iota
	ModProtected
	ModPrivate
	ModStatic
	ModFinal
)

const visibilityMask = ModPublic | ModProtected | ModPrivate

func (m Modifier) String() string {
	var parts []string
	switch {
	case m&ModPublic != 0:
		parts = append(parts, "public")
	case m&ModProtected != 0:
		parts = append(parts, "protected")
	case m&ModPrivate != 0:
		parts = append(parts, "private")
	}
	if m&ModStatic != 0 {
		parts = append(parts, "static")
	}
	if m&ModFinal != 0 {
		parts = append(parts, "final")
	}
	return strings.Join(parts, " ")
}

// ClassFlags describes how a class may be analyzed.
type ClassFlags uint8

const (
	ClassPhantom ClassFlags = 1 << iota // referenced but not loaded
	ClassInterface
	ClassAbstract
	ClassStatic
)

// ---------------------------------------------------------------------------
// Program
// ---------------------------------------------------------------------------

// Program is the set of application classes being transformed.
type Program struct {
	Classes []*Class

	byName map[string]*Class
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{byName: make(map[string]*Class)}
}

// AddClass appends a class to the program. Class names must be unique.
func (p *Program) AddClass(c *Class) (*Class, error) {
	if _, dup := p.byName[c.Name]; dup {
		return nil, fmt.Errorf("duplicate class %s", c.Name)
	}
	c.ID = len(p.Classes)
	p.Classes = append(p.Classes, c)
	p.byName[c.Name] = c
	return c, nil
}

// MustAddClass is AddClass for program construction code that cannot
// produce duplicates.
func (p *Program) MustAddClass(c *Class) *Class {
	if _, err := p.AddClass(c); err != nil {
		panic(err)
	}
	return c
}

// Class returns the class with the given name, or nil.
func (p *Program) Class(name string) *Class {
	return p.byName[name]
}

// Bodies returns every method body in the program, in class then method
// order. The result is a snapshot; methods added afterwards are not included.
func (p *Program) Bodies() []*Body {
	var bodies []*Body
	for _, c := range p.Classes {
		for _, m := range c.Methods {
			if m.Body != nil {
				bodies = append(bodies, m.Body)
			}
		}
	}
	return bodies
}

// ---------------------------------------------------------------------------
// Class
// ---------------------------------------------------------------------------

// Class is an application class.
type Class struct {
	ID      int // index in the owning program
	Name    string
	Flags   ClassFlags
	Fields  []*Field
	Methods []*Method
}

// NewClass creates a class with no members.
func NewClass(name string, flags ClassFlags) *Class {
	return &Class{Name: name, Flags: flags, ID: -1}
}

func (c *Class) IsPhantom() bool   { return c.Flags&ClassPhantom != 0 }
func (c *Class) IsInterface() bool { return c.Flags&ClassInterface != 0 }
func (c *Class) IsAbstract() bool  { return c.Flags&ClassAbstract != 0 }
func (c *Class) IsStatic() bool    { return c.Flags&ClassStatic != 0 }

// Type returns the reference type of instances of c.
func (c *Class) Type() Type {
	return Ref(c.Name)
}

// AddField declares a new field on c.
func (c *Class) AddField(name string, t Type, mods Modifier) *Field {
	f := &Field{Class: c, Name: name, Type: t, Modifiers: mods}
	c.Fields = append(c.Fields, f)
	return f
}

// Field returns the field with the given name, or nil.
func (c *Class) Field(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// AddMethod attaches m to c.
func (c *Class) AddMethod(m *Method) *Method {
	m.Class = c
	c.Methods = append(c.Methods, m)
	return m
}

// Method returns the first method with the given name, or nil.
func (c *Class) Method(name string) *Method {
	for _, m := range c.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// HasMethod reports whether m is declared by c.
func (c *Class) HasMethod(m *Method) bool {
	for _, cm := range c.Methods {
		if cm == m {
			return true
		}
	}
	return false
}

// HasBody reports whether any method of c has code.
func (c *Class) HasBody() bool {
	for _, m := range c.Methods {
		if m.Body != nil {
			return true
		}
	}
	return false
}

// UniqueMethodName returns base if no method of c uses it, otherwise base
// followed by the first free numeric suffix.
func (c *Class) UniqueMethodName(base string) string {
	name := base
	for i := 1; c.Method(name) != nil; i++ {
		name = fmt.Sprintf("%s$%d", base, i)
	}
	return name
}

func (c *Class) String() string {
	return c.Name
}

// ---------------------------------------------------------------------------
// Field
// ---------------------------------------------------------------------------

// Field is a field declared by a class.
type Field struct {
	Class     *Class
	Name      string
	Type      Type
	Modifiers Modifier

	getter *Method
	setter *Method
}

// IsStatic reports whether f is a static field.
func (f *Field) IsStatic() bool {
	return f.Modifiers&ModStatic != 0
}

// IsPrivate reports whether f has private visibility.
func (f *Field) IsPrivate() bool {
	return f.Modifiers&ModPrivate != 0
}

// SetPrivate replaces the visibility of f with private, keeping the other
// modifiers.
func (f *Field) SetPrivate() {
	f.Modifiers = f.Modifiers&^visibilityMask | ModPrivate
}

// BindAccessors records get and set as the accessors of f. Either may be nil.
func (f *Field) BindAccessors(get, set *Method) {
	f.getter, f.setter = get, set
	if get != nil {
		get.accessor = &Accessor{Field: f, Kind: AccessorGet}
	}
	if set != nil {
		set.accessor = &Accessor{Field: f, Kind: AccessorSet}
	}
}

// Getter returns the getter bound to f, or nil.
func (f *Field) Getter() *Method { return f.getter }

// Setter returns the setter bound to f, or nil.
func (f *Field) Setter() *Method { return f.setter }

// Signature renders f the way statements print it.
func (f *Field) Signature() string {
	return fmt.Sprintf("<%s: %s %s>", f.Class.Name, f.Type, f.Name)
}

func (f *Field) String() string {
	return f.Signature()
}

// AccessorName returns prefix followed by the field name with its first
// letter upper-cased, e.g. "get" + "x" = "getX".
func AccessorName(prefix, field string) string {
	if field == "" {
		return prefix
	}
	r := []rune(field)
	r[0] = unicode.ToUpper(r[0])
	return prefix + string(r)
}

// ---------------------------------------------------------------------------
// Method
// ---------------------------------------------------------------------------

// AccessorKind tells getters from setters.
type AccessorKind uint8

const (
	AccessorGet AccessorKind = iota + 1
	AccessorSet
)

func (k AccessorKind) String() string {
	switch k {
	case AccessorGet:
		return "get"
	case AccessorSet:
		return "set"
	default:
		return fmt.Sprintf("AccessorKind(%d)", k)
	}
}

// Accessor is the binding of a synthesized method to its field.
type Accessor struct {
	Field *Field
	Kind  AccessorKind
}

// Method is a method declared by a class.
type Method struct {
	Class     *Class
	Name      string
	Params    []Type
	Return    Type
	Modifiers Modifier
	Body      *Body

	accessor *Accessor
}

// NewMethod creates a method that is not yet attached to a class.
func NewMethod(name string, params []Type, ret Type, mods Modifier) *Method {
	return &Method{Name: name, Params: params, Return: ret, Modifiers: mods}
}

// IsStatic reports whether m has no receiver.
func (m *Method) IsStatic() bool {
	return m.Modifiers&ModStatic != 0
}

// Accessor returns the field binding of a synthesized accessor, or nil for
// any other method.
func (m *Method) Accessor() *Accessor {
	return m.accessor
}

// IsAccessor reports whether m is a synthesized accessor.
func (m *Method) IsAccessor() bool {
	return m.accessor != nil
}

// SetBody attaches b as the code of m.
func (m *Method) SetBody(b *Body) {
	b.Method = m
	m.Body = b
}

// Signature renders m as "<Class: ret name(params)>".
func (m *Method) Signature() string {
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.String()
	}
	owner := "?"
	if m.Class != nil {
		owner = m.Class.Name
	}
	return fmt.Sprintf("<%s: %s %s(%s)>", owner, m.Return, m.Name, strings.Join(params, ","))
}

func (m *Method) String() string {
	return m.Signature()
}
