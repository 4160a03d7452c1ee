package space

import (
	"fmt"
	"slices"
)

// Leaf type tags used by the core. Decoders may use their own tags.
const (
	TagCode      = "code"
	TagData      = "data"
	TagReference = "ref"
)

// Object is an element stored in a space. Leaf implements it and types that embed
// a *Leaf inherit the implementation.
type Object interface {
	Lo() uint64
	Hi() uint64
	Tag() string
	Render() string
	Base() *Leaf
}

// Leaf is an object occupying [lo,hi) in one address space. Bounds and tag are
// immutable once the leaf has been inserted.
type Leaf struct {
	lo, hi uint64
	tag    string

	text          string
	compact       bool
	lineComments  []string
	blockComments []string

	space    Space
	inserted bool

	// mapper and address the leaf was first inserted through
	via Space
	at  uint64
}

var _ Object = (*Leaf)(nil)

// NewLeaf returns a leaf occupying [lo,hi) of the given space.
func NewLeaf(sp Space, lo, hi uint64, tag string) *Leaf {
	return &Leaf{
		lo:    lo,
		hi:    hi,
		tag:   tag,
		space: sp,
	}
}

// Lo returns the first address of the leaf.
func (l *Leaf) Lo() uint64 { return l.lo }

// Hi returns the address following the leaf.
func (l *Leaf) Hi() uint64 { return l.hi }

// Tag returns the type tag.
func (l *Leaf) Tag() string { return l.tag }

// Base returns the leaf itself, it gives embedding types access to the leaf.
func (l *Leaf) Base() *Leaf { return l }

// Space returns the space that owns the leaf.
func (l *Leaf) Space() Space { return l.space }

// Inserted returns whether the leaf was inserted into a space.
func (l *Leaf) Inserted() bool { return l.inserted }

// Resize moves the end of a leaf that was not inserted yet.
func (l *Leaf) Resize(hi uint64) error {
	if l.inserted {
		return fmt.Errorf("%w: resizing inserted leaf %s", ErrPrecondition, l)
	}
	l.hi = hi
	return nil
}

// SetText sets the rendered text of the leaf.
func (l *Leaf) SetText(text string) {
	l.text = text
}

// SetCompact hints a listing to render the leaf without surrounding blank lines.
func (l *Leaf) SetCompact(compact bool) {
	l.compact = compact
}

// Compact returns the compact display hint.
func (l *Leaf) Compact() bool {
	return l.compact
}

// AddLineComment appends a comment rendered on the line of the leaf.
func (l *Leaf) AddLineComment(comment string) {
	l.lineComments = append(l.lineComments, comment)
}

// LineComments returns the line comments of the leaf.
func (l *Leaf) LineComments() []string {
	return slices.Clone(l.lineComments)
}

// AddBlockComment appends a comment rendered above the leaf.
func (l *Leaf) AddBlockComment(comment string) {
	l.blockComments = append(l.blockComments, comment)
}

// BlockComments returns the block comments of the leaf.
func (l *Leaf) BlockComments() []string {
	return slices.Clone(l.blockComments)
}

// Render returns the text representation of the leaf.
func (l *Leaf) Render() string {
	if l.text != "" {
		return l.text
	}
	return "<" + l.tag + ">"
}

func (l *Leaf) String() string {
	return fmt.Sprintf("<%s 0x%04x-0x%04x>", l.tag, l.lo, l.hi)
}

// rebase moves a leaf into the coordinates of a backing space before insertion.
func (l *Leaf) rebase(sp Space, lo uint64) {
	l.hi = lo + (l.hi - l.lo)
	l.lo = lo
	l.space = sp
}

// placement holds the position of a leaf so that a failed insert can be undone.
type placement struct {
	lo, hi uint64
	space  Space
	via    Space
	at     uint64
}

func (l *Leaf) placement() placement {
	return placement{lo: l.lo, hi: l.hi, space: l.space, via: l.via, at: l.at}
}

func (l *Leaf) restore(p placement) {
	l.lo, l.hi = p.lo, p.hi
	l.space = p.space
	l.via, l.at = p.via, p.at
}
