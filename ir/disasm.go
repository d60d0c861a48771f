package ir

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the body.
//
//	; === <Point: int getX()> ===
//	; Locals: this Point, tmp int
//
//	   0  this := @this: Point
//	   1  tmp = this.<Point: int x>
//	   2  return tmp
//
// Jump targets are printed as statement indexes.
func (b *Body) Disassemble() string {
	var sb strings.Builder

	name := "<detached>"
	if b.Method != nil {
		name = b.Method.Signature()
	}
	sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	if b.Method != nil && b.Method.IsAccessor() {
		acc := b.Method.Accessor()
		sb.WriteString(fmt.Sprintf("; Accessor: %s %s\n", acc.Kind, acc.Field.Signature()))
	}

	if len(b.Locals) > 0 {
		locals := make([]string, len(b.Locals))
		for i, l := range b.Locals {
			locals[i] = l.Name + " " + l.Ty.String()
		}
		sb.WriteString("; Locals: " + strings.Join(locals, ", ") + "\n")
	}
	sb.WriteString("\n")

	units := b.Units.Snapshot()
	index := make(map[Stmt]int, len(units))
	for i, s := range units {
		index[s] = i
	}
	label := func(s Stmt) string {
		if i, ok := index[s]; ok {
			return fmt.Sprintf("%d", i)
		}
		return "?"
	}

	for i, s := range units {
		sb.WriteString(fmt.Sprintf("%4d  ", i))
		switch s := s.(type) {
		case *IfStmt:
			sb.WriteString(fmt.Sprintf("if %s goto %s", s.Cond, label(s.Target)))
		case *GotoStmt:
			sb.WriteString("goto " + label(s.Target))
		default:
			sb.WriteString(s.String())
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// DisassembleClass lists the fields of c followed by every method body.
func DisassembleClass(c *Class) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("class %s", c.Name))
	if c.Flags != 0 {
		var flags []string
		if c.IsPhantom() {
			flags = append(flags, "phantom")
		}
		if c.IsInterface() {
			flags = append(flags, "interface")
		}
		if c.IsAbstract() {
			flags = append(flags, "abstract")
		}
		if c.IsStatic() {
			flags = append(flags, "static")
		}
		sb.WriteString(" [" + strings.Join(flags, " ") + "]")
	}
	sb.WriteString("\n")
	for _, f := range c.Fields {
		mods := f.Modifiers.String()
		if mods == "" {
			mods = "package"
		}
		sb.WriteString(fmt.Sprintf("  %s %s %s\n", mods, f.Type, f.Name))
	}
	for _, m := range c.Methods {
		if m.Body == nil {
			sb.WriteString(fmt.Sprintf("  %s (no body)\n", m.Signature()))
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(m.Body.Disassemble())
	}
	return sb.String()
}
