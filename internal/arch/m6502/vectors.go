package m6502

import (
	"fmt"
	"slices"

	"github.com/retroenv/retrogolib/arch/cpu/cpu6502"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorev/internal/space"
)

// Handlers contains the interrupt handler addresses read from the vector table.
// A zero address marks an unset handler.
type Handlers struct {
	NMI   uint64
	Reset uint64
	IRQ   uint64
}

// Entries returns the distinct handler addresses in the order reset, NMI, IRQ.
func (h Handlers) Entries() []uint64 {
	entries := []uint64{h.Reset}
	for _, address := range []uint64{h.NMI, h.IRQ} {
		if address != 0 && !slices.Contains(entries, address) {
			entries = append(entries, address)
		}
	}
	return entries
}

// Vectors reads the 3 interrupt handler addresses from the vector table and
// labels them. Multiple handlers can point to the same address, the reset
// label takes precedence.
func Vectors(logger *log.Logger, sp space.Space) (Handlers, error) {
	var handlers Handlers

	vectors := []struct {
		address uint64
		name    string
		handler *uint64
	}{
		{uint64(cpu6502.ResetAddress), "Reset", &handlers.Reset},
		{uint64(cpu6502.NMIAddress), "NMI", &handlers.NMI},
		{uint64(cpu6502.IrqAddress), "IRQ", &handlers.IRQ},
	}

	for _, v := range vectors {
		w, err := space.LE16(sp, v.address)
		if err != nil {
			return Handlers{}, fmt.Errorf("reading %s address: %w", v.name, err)
		}
		*v.handler = uint64(w)
		if w == 0 {
			continue
		}

		logger.Debug(v.name+" handler", log.Hex("address", w))
		if len(sp.Labels(uint64(w))) > 0 {
			continue
		}
		if err := sp.SetLabel(uint64(w), v.name); err != nil && !space.IsRecoverable(err) {
			return Handlers{}, fmt.Errorf("labeling %s handler: %w", v.name, err)
		}
	}

	return handlers, nil
}
