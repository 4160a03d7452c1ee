package space

import (
	"fmt"
	"iter"
	"slices"

	"github.com/retroenv/retrorev/internal/interval"
)

// DefaultWidth is the word width of a mapper that was not configured otherwise.
const DefaultWidth = 8

// Segment is a window [Lo,Hi) of a mapper onto a backing space, starting at the
// backing address Offset.
type Segment struct {
	Lo, Hi  uint64
	Offset  uint64
	Backing Space
	Shared  bool

	overlay map[uint64]uint64 // private writes of a non-shared window, keyed by backing address
}

func (s *Segment) contains(address uint64) bool {
	return address >= s.Lo && address < s.Hi
}

func (s *Segment) overlaps(o *Segment) bool {
	return s.Lo < o.Hi && o.Lo < s.Hi
}

// backing converts a mapper address to the backing address.
func (s *Segment) backing(address uint64) uint64 {
	return address - s.Lo + s.Offset
}

// window converts a backing address to the mapper address.
func (s *Segment) window(address uint64) uint64 {
	return address - s.Offset + s.Lo
}

func (s *Segment) backingEnd() uint64 {
	return s.Offset + (s.Hi - s.Lo)
}

// clean returns whether no private writes exist for the backing range [lo,hi).
func (s *Segment) clean(lo, hi uint64) bool {
	if s.Shared || len(s.overlay) == 0 {
		return true
	}
	for address := range s.overlay {
		if address >= lo && address < hi {
			return false
		}
	}
	return true
}

func (s *Segment) String() string {
	kind := "banked"
	if s.Shared {
		kind = "shared"
	}
	return fmt.Sprintf("0x%04x-0x%04x -> %s+0x%04x (%s)", s.Lo, s.Hi, s.Backing.Name(), s.Offset, kind)
}

// MapOption configures a segment added by Map.
type MapOption func(*mapConfig)

type mapConfig struct {
	hi        uint64
	hasHi     bool
	offset    uint64
	hasOffset bool
	shared    bool
}

// WithHi sets the end of the window. It defaults to the extent of the backing space.
func WithHi(hi uint64) MapOption {
	return func(c *mapConfig) {
		c.hi = hi
		c.hasHi = true
	}
}

// WithOffset sets the backing address that the start of the window maps to. It
// defaults to the start of the backing space.
func WithOffset(offset uint64) MapOption {
	return func(c *mapConfig) {
		c.offset = offset
		c.hasOffset = true
	}
}

// Shared makes writes through the window change the backing space directly, so that
// they are visible through every window onto it.
func Shared() MapOption {
	return func(c *mapConfig) {
		c.shared = true
	}
}

// MapperOption configures a MemMapper.
type MapperOption func(*MemMapper)

// WithWidth sets the word width that all mapped backing spaces must have.
func WithWidth(width uint) MapperOption {
	return func(m *MemMapper) {
		m.width = width
	}
}

// WithSplitLimit sets the split limit of the local interval store.
func WithSplitLimit(limit uint64) MapperOption {
	return func(m *MemMapper) {
		m.storeOpts = append(m.storeOpts, interval.WithSplitLimit(limit))
	}
}

// MemMapper composes backing spaces into one address space through translated
// windows. Addresses that no window covers are served by local storage.
// The mapper reorders its segments on every translated access and is not safe
// for concurrent use.
type MemMapper struct {
	*AddressSpace

	width     uint
	storeOpts []interval.Option

	segments []*Segment
	local    map[uint64]uint64
}

var (
	_ Space = (*MemMapper)(nil)
	_ Bulk  = (*MemMapper)(nil)
)

// NewMemMapper returns a mapper covering [lo,hi) without any segments.
func NewMemMapper(name string, lo, hi uint64, opts ...MapperOption) *MemMapper {
	m := &MemMapper{
		width: DefaultWidth,
		local: map[uint64]uint64{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.AddressSpace = NewAddressSpace(name, lo, hi, m.storeOpts...)
	return m
}

// Width returns the word width in bits.
func (m *MemMapper) Width() uint {
	return m.width
}

// Map adds a window starting at lo onto the backing space. Windows may only overlap
// if both of them are shared.
func (m *MemMapper) Map(backing Space, lo uint64, opts ...MapOption) error {
	var cfg mapConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	blo, bhi := backing.Bounds()
	offset := blo
	if cfg.hasOffset {
		offset = cfg.offset
	}
	if offset < blo || offset >= bhi {
		return fmt.Errorf("%w: offset 0x%04x outside of %s [0x%04x,0x%04x)",
			ErrPrecondition, offset, backing.Name(), blo, bhi)
	}

	hi := lo + (bhi - offset)
	if cfg.hasHi {
		hi = cfg.hi
	}
	if hi <= lo || hi-lo > bhi-offset {
		return fmt.Errorf("%w: window [0x%04x,0x%04x) does not fit %s from offset 0x%04x",
			ErrPrecondition, lo, hi, backing.Name(), offset)
	}
	if lo < m.lo || hi > m.hi {
		return addressError("map", m.name, lo, ErrOutOfRange)
	}
	if backing.Width() != m.width {
		return fmt.Errorf("%w: mapping %d bit space %s into %d bit mapper",
			ErrPrecondition, backing.Width(), backing.Name(), m.width)
	}

	seg := &Segment{
		Lo:      lo,
		Hi:      hi,
		Offset:  offset,
		Backing: backing,
		Shared:  cfg.shared,
	}
	for _, existing := range m.segments {
		if seg.overlaps(existing) && (!seg.Shared || !existing.Shared) {
			return fmt.Errorf("mapping %s: %w with %s", seg, ErrAmbiguousTranslation, existing)
		}
	}
	if !seg.Shared {
		seg.overlay = map[uint64]uint64{}
	}

	m.segments = append(m.segments, seg)
	return nil
}

// Segments returns the current segments in translation order.
func (m *MemMapper) Segments() []Segment {
	result := make([]Segment, 0, len(m.segments))
	for _, seg := range m.segments {
		result = append(result, *seg)
	}
	return result
}

// translate returns the segment covering the address. A hit on a segment that is
// not first moves it to the front of the list.
func (m *MemMapper) translate(address uint64) (*Segment, bool) {
	switch len(m.segments) {
	case 0:
		return nil, false

	case 1:
		seg := m.segments[0]
		return seg, seg.contains(address)

	default:
		for i, seg := range m.segments {
			if !seg.contains(address) {
				continue
			}
			if i > 0 {
				copy(m.segments[1:i+1], m.segments[:i])
				m.segments[0] = seg
			}
			return seg, true
		}
		return nil, false
	}
}

// peek returns the segment covering the address without changing the order.
func (m *MemMapper) peek(address uint64) (*Segment, bool) {
	for _, seg := range m.segments {
		if seg.contains(address) {
			return seg, true
		}
	}
	return nil, false
}

// Read returns the word at the given address.
func (m *MemMapper) Read(address uint64) (uint64, error) {
	if err := m.check("read", address); err != nil {
		return 0, err
	}

	seg, ok := m.translate(address)
	if !ok {
		value, ok := m.local[address]
		if !ok {
			return 0, addressError("read", m.name, address, ErrUnmapped)
		}
		return value, nil
	}

	baddr := seg.backing(address)
	if value, ok := seg.overlay[baddr]; ok {
		return value, nil
	}
	value, err := seg.Backing.Read(baddr)
	if err != nil {
		return 0, fmt.Errorf("reading through %s: %w", m.name, err)
	}
	return value, nil
}

// Write stores a word at the given address. Writes through non-shared windows are
// only visible through that window.
func (m *MemMapper) Write(address, value uint64) error {
	if err := m.check("write", address); err != nil {
		return err
	}
	if !fits(value, m.width) {
		return addressError("write", m.name, address, ErrValueTooWide)
	}

	seg, ok := m.translate(address)
	switch {
	case !ok:
		m.local[address] = value
		return nil

	case seg.Shared:
		if err := seg.Backing.Write(seg.backing(address), value); err != nil {
			return fmt.Errorf("writing through %s: %w", m.name, err)
		}
		return nil

	default:
		seg.overlay[seg.backing(address)] = value
		return nil
	}
}

// Insert stores the object in the backing space of the window containing its start,
// in backing coordinates. Objects in unmapped ranges are stored locally.
func (m *MemMapper) Insert(obj Object) error {
	lo, hi := obj.Lo(), obj.Hi()
	if lo >= hi {
		return addressError("insert", m.name, lo, fmt.Errorf("%w: empty range", ErrPrecondition))
	}
	if err := m.check("insert", lo); err != nil {
		return err
	}

	seg, ok := m.translate(lo)
	if !ok {
		if err := m.AddressSpace.Insert(obj); err != nil {
			return err
		}
		obj.Base().space = m
		return nil
	}
	if hi > seg.Hi {
		return addressError("insert", m.name, seg.Hi, ErrUnmapped)
	}

	base := obj.Base()
	saved := base.placement()
	if base.via == nil {
		base.via, base.at = m, lo
	}
	base.rebase(seg.Backing, seg.backing(lo))
	if err := seg.Backing.Insert(obj); err != nil {
		base.restore(saved)
		return fmt.Errorf("inserting through %s: %w", m.name, err)
	}
	return nil
}

// SetLabel appends a label for the address in the space that serves it.
func (m *MemMapper) SetLabel(address uint64, name string) error {
	if err := m.check("label", address); err != nil {
		return err
	}
	if seg, ok := m.translate(address); ok {
		return seg.Backing.SetLabel(seg.backing(address), name)
	}
	return m.AddressSpace.SetLabel(address, name)
}

// Labels returns the labels of the address.
func (m *MemMapper) Labels(address uint64) []string {
	if seg, ok := m.peek(address); ok {
		return seg.Backing.Labels(seg.backing(address))
	}
	return m.AddressSpace.Labels(address)
}

// SetLineComment appends a line comment for the address in the space that serves it.
func (m *MemMapper) SetLineComment(address uint64, comment string) error {
	if err := m.check("comment", address); err != nil {
		return err
	}
	if seg, ok := m.translate(address); ok {
		return seg.Backing.SetLineComment(seg.backing(address), comment)
	}
	return m.AddressSpace.SetLineComment(address, comment)
}

// LineComments returns the line comments of the address.
func (m *MemMapper) LineComments(address uint64) []string {
	if seg, ok := m.peek(address); ok {
		return seg.Backing.LineComments(seg.backing(address))
	}
	return m.AddressSpace.LineComments(address)
}

// SetBlockComment appends a block comment for the address in the space that serves it.
func (m *MemMapper) SetBlockComment(address uint64, comment string) error {
	if err := m.check("comment", address); err != nil {
		return err
	}
	if seg, ok := m.translate(address); ok {
		return seg.Backing.SetBlockComment(seg.backing(address), comment)
	}
	return m.AddressSpace.SetBlockComment(address, comment)
}

// BlockComments returns the block comments of the address.
func (m *MemMapper) BlockComments(address uint64) []string {
	if seg, ok := m.peek(address); ok {
		return seg.Backing.BlockComments(seg.backing(address))
	}
	return m.AddressSpace.BlockComments(address)
}

// All returns the local objects and the objects of all backing spaces visible
// through a window, in mapper coordinates and address order.
func (m *MemMapper) All() iter.Seq[Object] {
	objs := m.collect(m.lo, m.hi)
	return func(yield func(Object) bool) {
		for _, obj := range objs {
			if !yield(obj) {
				return
			}
		}
	}
}

// FindLo returns all visible objects starting at the address.
func (m *MemMapper) FindLo(address uint64) []Object {
	var result []Object
	for _, obj := range m.collect(address, address+1) {
		if obj.Lo() == address {
			result = append(result, obj)
		}
	}
	return result
}

// FindHi returns all visible objects ending at the address.
func (m *MemMapper) FindHi(address uint64) []Object {
	if address == 0 {
		return nil
	}
	var result []Object
	for _, obj := range m.collect(address-1, address) {
		if obj.Hi() == address {
			result = append(result, obj)
		}
	}
	return result
}

// FindRange returns all visible objects intersecting [lo,hi) partitioned by their
// relation to the range.
func (m *MemMapper) FindRange(lo, hi uint64) interval.Buckets[Object] {
	return interval.Classify(m.collect(lo, hi), lo, hi)
}

// collect returns the local objects and the views of backing objects that intersect
// [lo,hi) in mapper coordinates, ordered by address.
func (m *MemMapper) collect(lo, hi uint64) []Object {
	if lo >= hi {
		return nil
	}

	var result []Object
	for obj := range m.AddressSpace.store.Range(lo, hi) {
		result = append(result, obj)
	}

	for _, seg := range m.segments {
		wlo, whi := max(lo, seg.Lo), min(hi, seg.Hi)
		if wlo >= whi {
			continue
		}

		b := seg.Backing.FindRange(seg.backing(wlo), seg.backing(whi))
		for _, obj := range visible(b) {
			result = append(result, m.view(seg, obj))
		}
	}

	slices.SortStableFunc(result, interval.Compare[Object])
	return result
}

// visible returns all objects of the buckets once.
func visible(b interval.Buckets[Object]) []Object {
	objs := make([]Object, 0, len(b.Contained)+len(b.Containing)+len(b.Partial))
	objs = append(objs, b.Contained...)
	objs = append(objs, b.Containing...)
	objs = append(objs, b.Partial...)
	return objs
}

// view re-expresses a backing object in mapper coordinates. Objects that are only
// partially visible through the window, or that are seen at an address other than
// their home address, are marked foreign.
func (m *MemMapper) view(seg *Segment, obj Object) *View {
	blo := max(obj.Lo(), seg.Offset)
	bhi := min(obj.Hi(), seg.backingEnd())

	v := &View{
		Object:  obj,
		lo:      seg.window(blo),
		hi:      seg.window(bhi),
		segment: seg,
	}
	if blo != obj.Lo() || bhi != obj.Hi() || IsForeign(obj) {
		v.foreign = true
		return v
	}
	if v.lo != m.home(seg, obj) {
		v.foreign = true
		return v
	}
	if first, ok := m.peek(v.lo); ok && first != seg && first.Backing != seg.Backing {
		v.foreign = true
	}
	return v
}

// home returns the mapper address an object is listed at. Leaves inserted through
// this mapper live at their insertion address, any other object at the lowest
// window address that shows it completely.
func (m *MemMapper) home(seg *Segment, obj Object) uint64 {
	if base := obj.Base(); base.via == m {
		return base.at
	}

	home := seg.window(obj.Lo())
	for _, other := range m.segments {
		if other.Backing != seg.Backing || obj.Lo() < other.Offset || obj.Hi() > other.backingEnd() {
			continue
		}
		home = min(home, other.window(obj.Lo()))
	}
	return home
}

// Bytes reads n bytes, forwarding to the backing space when one window serves the
// whole range.
func (m *MemMapper) Bytes(address uint64, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrPrecondition, n)
	}
	if b, baddr, ok := m.forward(address, uint64(n)); ok {
		return b.Bytes(baddr, n)
	}
	return readBytes(m, address, n)
}

// BE16 reads a big endian 16 bit value.
func (m *MemMapper) BE16(address uint64) (uint16, error) {
	if b, baddr, ok := m.forward(address, m.words(16)); ok {
		return b.BE16(baddr)
	}
	v, err := readUint(m, address, 16, true)
	return uint16(v), err
}

// LE16 reads a little endian 16 bit value.
func (m *MemMapper) LE16(address uint64) (uint16, error) {
	if b, baddr, ok := m.forward(address, m.words(16)); ok {
		return b.LE16(baddr)
	}
	v, err := readUint(m, address, 16, false)
	return uint16(v), err
}

// BE32 reads a big endian 32 bit value.
func (m *MemMapper) BE32(address uint64) (uint32, error) {
	if b, baddr, ok := m.forward(address, m.words(32)); ok {
		return b.BE32(baddr)
	}
	v, err := readUint(m, address, 32, true)
	return uint32(v), err
}

// LE32 reads a little endian 32 bit value.
func (m *MemMapper) LE32(address uint64) (uint32, error) {
	if b, baddr, ok := m.forward(address, m.words(32)); ok {
		return b.LE32(baddr)
	}
	v, err := readUint(m, address, 32, false)
	return uint32(v), err
}

func (m *MemMapper) words(bits uint) uint64 {
	if m.width == 0 || m.width > bits {
		return 1
	}
	return uint64(bits / m.width)
}

// forward returns the bulk accessor of the backing space when a single window
// without private writes covers [address,address+n).
func (m *MemMapper) forward(address, n uint64) (Bulk, uint64, bool) {
	if n == 0 || !m.Contains(address) {
		return nil, 0, false
	}
	seg, ok := m.translate(address)
	if !ok || address+n > seg.Hi {
		return nil, 0, false
	}
	b, ok := seg.Backing.(Bulk)
	if !ok {
		return nil, 0, false
	}
	baddr := seg.backing(address)
	if !seg.clean(baddr, baddr+n) {
		return nil, 0, false
	}
	return b, baddr, true
}
