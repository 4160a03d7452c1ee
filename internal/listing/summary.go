package listing

import (
	"fmt"
	"io"

	"github.com/retroenv/retrorev/internal/partition"
)

// Namer names code groups.
type Namer interface {
	Name(g *partition.CodeGroup) string
}

// WriteSummary writes one comment line per non empty code group of the result
// followed by its call targets.
func WriteSummary(w io.Writer, result *partition.Result, namer Namer) error {
	if _, err := fmt.Fprintf(w, "\n; %d groups, %d colors, %d stretches, %d edges\n",
		len(result.Groups), len(result.Colors), len(result.Stretches), len(result.Edges)); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}

	for _, g := range result.Groups {
		stretches := g.Stretches()
		if len(stretches) == 0 {
			continue
		}

		lo, hi := g.Bounds()
		if _, err := fmt.Fprintf(w, "; %-24s 0x%04x-0x%04x colors %d stretches %d\n",
			namer.Name(g), lo, hi, len(g.Colors()), len(stretches)); err != nil {
			return fmt.Errorf("writing group: %w", err)
		}

		for e := range g.Calls() {
			target := "?"
			if e.Dst != nil {
				target = namer.Name(e.Dst.Color().Group())
			}
			if _, err := fmt.Fprintf(w, ";   calls %s from 0x%04x\n", target, e.Flow.Source.Address()); err != nil {
				return fmt.Errorf("writing call: %w", err)
			}
		}
	}
	return nil
}
