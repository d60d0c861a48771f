package privatize

import (
	"github.com/chazu/encap/ir"
)

// Synthesize makes every instance field of class private and gives it a
// getter and a setter bound to the field. It returns the number of fields
// privatized. It must run at most once per class.
func Synthesize(class *ir.Class) int {
	n := 0
	// Accessors are appended to class.Methods; fields are not added, so
	// ranging over the field list is stable.
	for _, f := range class.Fields {
		if f.IsStatic() {
			continue
		}
		f.SetPrivate()
		get := synthesizeGetter(f)
		set := synthesizeSetter(f)
		f.BindAccessors(get, set)
		n++
	}
	return n
}

// synthesizeGetter adds
//
//	public T getF() { this := @this; tmp = this.f; return tmp }
func synthesizeGetter(f *ir.Field) *ir.Method {
	c := f.Class
	m := c.AddMethod(ir.NewMethod(c.UniqueMethodName(ir.AccessorName("get", f.Name)), nil, f.Type, ir.ModPublic))
	b := ir.NewBuilder(m)
	this := b.This()
	tmp := b.Local("tmp", f.Type)
	b.Assign(tmp, ir.FieldRef(this, f))
	b.Return(tmp)
	b.MustBuild()
	return m
}

// synthesizeSetter adds
//
//	public void setF(T v) { this := @this; v := @parameter0; this.f = v; return }
func synthesizeSetter(f *ir.Field) *ir.Method {
	c := f.Class
	m := c.AddMethod(ir.NewMethod(c.UniqueMethodName(ir.AccessorName("set", f.Name)), []ir.Type{f.Type}, ir.Void, ir.ModPublic))
	b := ir.NewBuilder(m)
	this := b.This()
	v := b.Param(0, "v")
	b.Assign(ir.FieldRef(this, f), v)
	b.Return(nil)
	b.MustBuild()
	return m
}
