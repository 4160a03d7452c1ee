// Package listing renders the objects of a space as an annotated text listing.
package listing

import (
	"fmt"
	"io"
	"strings"

	"github.com/retroenv/retrorev/internal/space"
)

// Options of the listing writer.
type Options struct {
	AddressComments bool // prefix line comments with the address of the object
	HexComments     bool // add the bytes of non compact objects to the line comment
	Foreign         bool // include foreign views of objects
}

// Writer renders a space. It only reads from the space.
type Writer struct {
	sp      space.Space
	options Options
	writer  io.Writer
}

// New creates a new listing writer.
func New(sp space.Space, writer io.Writer, options Options) *Writer {
	return &Writer{
		sp:      sp,
		options: options,
		writer:  writer,
	}
}

// Write writes the header followed by all objects of the space in address order.
// Ranges are announced before the first object at or after their start.
func (w Writer) Write() error {
	lo, hi := w.sp.Bounds()
	if _, err := fmt.Fprintf(w.writer, "; %s 0x%04x-0x%04x\n", w.sp.Name(), lo, hi); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	ranges := w.sp.Ranges()
	first := true
	for obj := range w.sp.All() {
		if space.IsForeign(obj) && !w.options.Foreign {
			continue
		}

		for len(ranges) > 0 && ranges[0].Lo <= obj.Lo() {
			if err := w.writeRange(ranges[0]); err != nil {
				return err
			}
			ranges = ranges[1:]
		}

		if err := w.writeObject(obj, first); err != nil {
			return err
		}
		first = false
	}

	for _, r := range ranges {
		if err := w.writeRange(r); err != nil {
			return err
		}
	}
	return nil
}

func (w Writer) writeRange(r space.Range) error {
	if _, err := fmt.Fprintf(w.writer, "\n; range 0x%04x-0x%04x %s\n", r.Lo, r.Hi, r.Text); err != nil {
		return fmt.Errorf("writing range: %w", err)
	}
	return nil
}

func (w Writer) writeObject(obj space.Object, first bool) error {
	lo := obj.Lo()
	native := !space.IsForeign(obj)

	var blocks []string
	if native {
		blocks = append(blocks, w.sp.BlockComments(lo)...)
	}
	blocks = append(blocks, obj.Base().BlockComments()...)
	for _, comment := range blocks {
		if _, err := fmt.Fprintf(w.writer, "; %s\n", comment); err != nil {
			return fmt.Errorf("writing block comment: %w", err)
		}
	}

	if native {
		if err := w.writeLabels(lo, first); err != nil {
			return err
		}
	}

	return w.writeLine(obj.Render(), w.comments(obj, native))
}

func (w Writer) writeLabels(address uint64, first bool) error {
	labels := w.sp.Labels(address)
	if len(labels) == 0 {
		return nil
	}

	if !first {
		if _, err := fmt.Fprintln(w.writer); err != nil {
			return fmt.Errorf("writing line: %w", err)
		}
	}
	for _, label := range labels {
		if _, err := fmt.Fprintf(w.writer, "%s:\n", label); err != nil {
			return fmt.Errorf("writing label: %w", err)
		}
	}
	return nil
}

// comments returns all line comments of the object.
func (w Writer) comments(obj space.Object, native bool) []string {
	var comments []string
	if w.options.AddressComments {
		comments = append(comments, fmt.Sprintf("$%04X", obj.Lo()))
	}
	if w.options.HexComments && !obj.Base().Compact() {
		if hex := w.hexBytes(obj); hex != "" {
			comments = append(comments, hex)
		}
	}
	if native {
		comments = append(comments, w.sp.LineComments(obj.Lo())...)
	}
	return append(comments, obj.Base().LineComments()...)
}

// hexBytes returns the bytes covered by the object, empty if the memory can not
// be read as bytes.
func (w Writer) hexBytes(obj space.Object) string {
	n := int(obj.Hi() - obj.Lo())
	if n <= 0 {
		return ""
	}
	data, err := space.Bytes(w.sp, obj.Lo(), n)
	if err != nil {
		return ""
	}

	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

func (w Writer) writeLine(text string, comments []string) error {
	if len(comments) == 0 {
		if _, err := fmt.Fprintf(w.writer, "  %s\n", text); err != nil {
			return fmt.Errorf("writing line: %w", err)
		}
		return nil
	}
	if _, err := fmt.Fprintf(w.writer, "  %-30s ; %s\n", text, strings.Join(comments, " ")); err != nil {
		return fmt.Errorf("writing line: %w", err)
	}
	return nil
}
