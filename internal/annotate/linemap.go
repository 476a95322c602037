package annotate

import (
	"slices"
	"sort"
)

// Mapping relates one source line to a contiguous, inclusive range of
// 1-based output lines.
type Mapping struct {
	SourceLine int `json:"source_line"`
	AsmStart   int `json:"asm_start"`
	AsmEnd     int `json:"asm_end"`
}

type span struct{ lo, hi int }

// linemap maintains, per source line, an ordered set of disjoint,
// non-touching closed ranges of output line numbers. Merging needs the
// structured form; flatten produces the public triples.
type linemap struct {
	m map[int][]span
}

func newLinemap() *linemap {
	return &linemap{m: make(map[int][]span)}
}

// register extends, merges or inserts the range containing asm for src.
// Invariant afterwards: for consecutive ranges [l1,h1] < [l2,h2] at the
// same source line, l2 > h1+1.
func (lm *linemap) register(src, asm int) {
	rs, ok := lm.m[src]
	if !ok {
		lm.m[src] = []span{{asm, asm}}
		return
	}
	for i := range rs {
		x := &rs[i]
		if asm >= x.lo && asm <= x.hi {
			return
		}
		if asm == x.lo-1 {
			x.lo = asm
			return
		}
		if asm == x.hi+1 {
			if i+1 < len(rs) && rs[i+1].lo == asm+1 {
				x.hi = rs[i+1].hi
				lm.m[src] = slices.Delete(rs, i+1, i+2)
			} else {
				x.hi = asm
			}
			return
		}
	}
	pos := sort.Search(len(rs), func(i int) bool { return rs[i].lo > asm })
	lm.m[src] = slices.Insert(rs, pos, span{asm, asm})
}

// flatten emits the triples ordered by source line, then by range.
func (lm *linemap) flatten() []Mapping {
	keys := make([]int, 0, len(lm.m))
	for k := range lm.m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	var out []Mapping
	for _, k := range keys {
		for _, r := range lm.m[k] {
			out = append(out, Mapping{SourceLine: k, AsmStart: r.lo, AsmEnd: r.hi})
		}
	}
	return out
}
