// Package job implements the worklist driver that turns decode requests into
// decoder invocations.
package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrogolib/set"
	"github.com/retroenv/retrorev/internal/code"
	"github.com/retroenv/retrorev/internal/space"
)

// ErrNoEntryPoints is returned by Seed when no entry point could be queued.
var ErrNoEntryPoints = errors.New("no entry points")

// item is a queued decode request.
type item struct {
	address uint64
	decoder code.Decoder
}

// key identifies a decode request independent of the decoder instance.
type key struct {
	decoder string
	address uint64
}

// Stats counts the outcome of processed requests.
type Stats struct {
	Decoded   int // requests that produced a code leaf
	Failed    int // requests abandoned because of unmapped or out of range memory
	Dropped   int // requests outside of the root space bounds
	Duplicate int // requests for an already queued address and decoder
}

// Job drains a queue of decode requests against a root space.
type Job struct {
	logger *log.Logger
	root   space.Space

	queue  []item
	queued set.Set[key]
	stats  Stats

	decoded []*code.Code
}

var _ code.Scheduler = (*Job)(nil)

// New returns a driver for the root space.
func New(logger *log.Logger, root space.Space) *Job {
	return &Job{
		logger: logger,
		root:   root,
		queued: set.New[key](),
	}
}

// Todo queues the address for decoding. Requests outside of the root space are
// reported and dropped, requests that were queued before are skipped.
func (j *Job) Todo(address uint64, dec code.Decoder) {
	lo, hi := j.root.Bounds()
	if address < lo || address >= hi {
		j.stats.Dropped++
		j.logger.Warn("Dropping decode request outside of memory",
			log.Hex("address", address),
			log.String("decoder", dec.Name()),
			log.String("space", j.root.Name()))
		return
	}

	k := key{decoder: dec.Name(), address: address}
	if j.queued.Contains(k) {
		j.stats.Duplicate++
		return
	}
	j.queued.Add(k)
	j.queue = append(j.queue, item{address: address, decoder: dec})
}

// Pending returns the number of queued requests.
func (j *Job) Pending() int {
	return len(j.queue)
}

// Stats returns the request counters.
func (j *Job) Stats() Stats {
	return j.stats
}

// Decoded returns all code leaves produced so far in decoding order.
func (j *Job) Decoded() []*code.Code {
	return j.decoded
}

// Run drains the queue. Decoders may queue further requests while running.
// A request failing on unmapped or out of range memory is abandoned, any other
// error aborts the run.
func (j *Job) Run(ctx context.Context) error {
	for len(j.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("running decode queue: %w", err)
		}

		it := j.queue[0]
		j.queue = j.queue[1:]

		if err := j.process(ctx, it); err != nil {
			return err
		}
	}
	return nil
}

func (j *Job) process(ctx context.Context, it item) error {
	c, err := it.decoder.Decode(ctx, j.root, it.address)
	if err != nil {
		if space.IsRecoverable(err) {
			j.stats.Failed++
			j.logger.Warn("Abandoning decode request",
				log.Hex("address", it.address),
				log.String("decoder", it.decoder.Name()),
				log.Err(err))
			return nil
		}
		return fmt.Errorf("decoding 0x%04x with %s: %w", it.address, it.decoder.Name(), err)
	}
	if c == nil {
		return nil
	}

	j.stats.Decoded++
	j.decoded = append(j.decoded, c)
	j.logger.Debug("Decoded instruction",
		log.Hex("address", it.address),
		log.String("instruction", c.Render()))

	c.Propagate(j)
	return nil
}

// Seed queues all entry points for decoding with the decoder.
func (j *Job) Seed(dec code.Decoder, addresses ...uint64) error {
	for _, address := range addresses {
		j.Todo(address, dec)
	}
	if len(j.queue) == 0 {
		return ErrNoEntryPoints
	}
	return nil
}
