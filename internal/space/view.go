package space

import "fmt"

// View presents an object of a backing space in the coordinates of a mapper window.
type View struct {
	Object

	lo, hi  uint64
	foreign bool
	segment *Segment
}

// Lo returns the first visible address in mapper coordinates.
func (v *View) Lo() uint64 { return v.lo }

// Hi returns the address following the visible part in mapper coordinates.
func (v *View) Hi() uint64 { return v.hi }

// Foreign returns whether the object is not native to the window it is seen
// through, either because only a part of it is visible or because its start is
// served by another window.
func (v *View) Foreign() bool { return v.foreign }

// Segment returns the window the object is seen through.
func (v *View) Segment() Segment { return *v.segment }

// Render returns the text of the object, foreign objects are marked as such.
func (v *View) Render() string {
	if v.foreign {
		return fmt.Sprintf("foreign(%s)", v.Object.Render())
	}
	return v.Object.Render()
}

// Unwrap returns the object behind a view, or the object itself.
func Unwrap(obj Object) Object {
	for {
		v, ok := obj.(*View)
		if !ok {
			return obj
		}
		obj = v.Object
	}
}

// IsForeign returns whether the object is a foreign view.
func IsForeign(obj Object) bool {
	v, ok := obj.(*View)
	return ok && v.foreign
}
