package listing

import (
	"fmt"
	"io"
)

// Alias is a name assigned to an address outside of the listed code.
type Alias struct {
	Name    string
	Address uint64
}

// WriteAliases writes a titled block of alias definitions. Nothing is written
// for an empty list.
func WriteAliases(w io.Writer, title string, aliases []Alias) error {
	if len(aliases) == 0 {
		return nil
	}

	if _, err := fmt.Fprintf(w, "; %s\n", title); err != nil {
		return fmt.Errorf("writing alias title: %w", err)
	}
	for _, alias := range aliases {
		if _, err := fmt.Fprintf(w, "%s = $%04X\n", alias.Name, alias.Address); err != nil {
			return fmt.Errorf("writing alias: %w", err)
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}
