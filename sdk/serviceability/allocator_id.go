package serviceability

import (
	"sort"

	"github.com/malbeclabs/doublezero-sub006/sdk/codec"
)

// IDAllocator hands out unique integer IDs drawn from the half-open range
// [Lo, Hi). Free space is tracked as a sorted run-list of half-open
// intervals rather than a bitmap: tunnel ID and dz_ip block ranges are
// large and usually nearly-full or nearly-empty, so a run-list stays
// compact in both states and serializes in proportion to fragmentation
// rather than to range size.
type IDAllocator struct {
	Lo, Hi uint32
	// free holds disjoint, sorted, non-adjacent [start,end) intervals.
	free []idRange
}

type idRange struct{ start, end uint32 }

// NewIDAllocator creates an allocator over [lo, hi) with every ID free.
func NewIDAllocator(lo, hi uint32) *IDAllocator {
	a := &IDAllocator{Lo: lo, Hi: hi}
	if hi > lo {
		a.free = []idRange{{lo, hi}}
	}
	return a
}

// Contains reports whether id falls within this allocator's configured
// range, regardless of whether it is currently assigned.
func (a *IDAllocator) Contains(id uint32) bool { return id >= a.Lo && id < a.Hi }

// NextAvailable returns the lowest free ID without reserving it.
func (a *IDAllocator) NextAvailable() (uint32, bool) {
	if len(a.free) == 0 {
		return 0, false
	}
	return a.free[0].start, true
}

// Assign reserves id. It errors with CodeAllocatorConflict if id is
// already assigned and with CodeInvalidArgument if id is out of range.
func (a *IDAllocator) Assign(id uint32) error {
	if !a.Contains(id) {
		return Err(CodeInvalidArgument, "id %d outside allocator range [%d,%d)", id, a.Lo, a.Hi)
	}
	for i, r := range a.free {
		if id < r.start || id >= r.end {
			continue
		}
		switch {
		case id == r.start && id == r.end-1:
			a.free = append(a.free[:i], a.free[i+1:]...)
		case id == r.start:
			a.free[i].start++
		case id == r.end-1:
			a.free[i].end--
		default:
			left := idRange{r.start, id}
			right := idRange{id + 1, r.end}
			a.free = append(a.free[:i], append([]idRange{left, right}, a.free[i+1:]...)...)
		}
		return nil
	}
	return Err(CodeAllocatorConflict, "id %d already assigned", id)
}

// Allocate reserves and returns the lowest free ID.
func (a *IDAllocator) Allocate() (uint32, error) {
	id, ok := a.NextAvailable()
	if !ok {
		return 0, Err(CodeAllocatorExhausted, "no free id in [%d,%d)", a.Lo, a.Hi)
	}
	if err := a.Assign(id); err != nil {
		return 0, err
	}
	return id, nil
}

// Unassign releases id back to the free pool, merging it with adjacent
// free runs. It is idempotent: unassigning an id that is already free is
// a no-op, not an error, so callers that don't track prior allocation
// state (BanUser releasing a resource that may never have been assigned)
// can call it unconditionally.
func (a *IDAllocator) Unassign(id uint32) error {
	if !a.Contains(id) {
		return Err(CodeInvalidArgument, "id %d outside allocator range [%d,%d)", id, a.Lo, a.Hi)
	}
	for _, r := range a.free {
		if id >= r.start && id < r.end {
			return nil
		}
	}
	idx := sort.Search(len(a.free), func(i int) bool { return a.free[i].start >= id })
	a.free = append(a.free, idRange{})
	copy(a.free[idx+1:], a.free[idx:])
	a.free[idx] = idRange{id, id + 1}
	a.mergeAdjacent()
	return nil
}

func (a *IDAllocator) mergeAdjacent() {
	sort.Slice(a.free, func(i, j int) bool { return a.free[i].start < a.free[j].start })
	out := a.free[:0]
	for _, r := range a.free {
		if n := len(out); n > 0 && out[n-1].end == r.start {
			out[n-1].end = r.end
		} else {
			out = append(out, r)
		}
	}
	a.free = out
}

// Encode serializes the allocator as its bounds plus the free run-list.
func (a *IDAllocator) Encode(w *codec.Writer) {
	w.WriteU32(a.Lo)
	w.WriteU32(a.Hi)
	w.WriteU32(uint32(len(a.free)))
	for _, r := range a.free {
		w.WriteU32(r.start)
		w.WriteU32(r.end)
	}
}

// DecodeIDAllocator reconstructs an allocator from its encoded form.
func DecodeIDAllocator(r *codec.Reader) (*IDAllocator, error) {
	lo, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	hi, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	a := &IDAllocator{Lo: lo, Hi: hi}
	a.free = make([]idRange, n)
	for i := range a.free {
		start, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		end, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		a.free[i] = idRange{start, end}
	}
	return a, nil
}
