package core

// reorderBuffer releases results in id order. Ids are dense from zero,
// so a result waits only for ids that are still in flight.
type reorderBuffer struct {
	next    uint64
	pending map[uint64]Result
}

func newReorderBuffer() *reorderBuffer {
	return &reorderBuffer{pending: make(map[uint64]Result)}
}

// push adds res and returns every result now ready, in order.
func (b *reorderBuffer) push(res Result) []Result {
	if res.ID != b.next {
		b.pending[res.ID] = res
		return nil
	}
	ready := []Result{res}
	b.next++
	for {
		r, ok := b.pending[b.next]
		if !ok {
			break
		}
		delete(b.pending, b.next)
		ready = append(ready, r)
		b.next++
	}
	return ready
}

// Len reports the number of held results.
func (b *reorderBuffer) Len() int { return len(b.pending) }
