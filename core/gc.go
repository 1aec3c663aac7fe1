package core

import "time"

// ---------------------------------------------------------------------------
// Garbage collector: mark/sweep over the stub and pairing pools
// ---------------------------------------------------------------------------

// RecycleStats holds counters from one collection.
type RecycleStats struct {
	SeriesSwept   int
	PairingsSwept int
	SeriesMarked  int
	Duration      time.Duration
}

// DisableGC suspends collection (nestable); signals stay pending.
func (in *Interp) DisableGC() {
	in.gcDisabled++
}

// EnableGC re-enables collection after DisableGC.
func (in *Interp) EnableGC() {
	if in.gcDisabled == 0 {
		panic("gc: unbalanced EnableGC")
	}
	in.gcDisabled--
}

// Recycle runs a full mark/sweep collection and resets the ballast.
//
// Roots are: API handles (root-flagged singular arrays, gated on their
// owner's liveness), the guard stack, every frame on the frame stack
// with its out, spare, and argument cells, the data stack, the
// standard contexts and boot errors, the pre-interned symbols, and the
// thrown-arg slot. Symbol tables are weak and swept after marking.
func (in *Interp) Recycle() RecycleStats {
	if in.gcDisabled > 0 {
		return RecycleStats{}
	}
	start := time.Now()
	in.recycleCount++

	var markStack []uint64

	push := func(bits uint64) {
		if bits != 0 {
			markStack = append(markStack, bits)
		}
	}

	markCell := func(c *Cell) {
		if c.Kind().IsBindable() && c.extra != 0 {
			push(c.extra)
		}
		if c.GetFlag(cellFlagFirstIsNode) && c.first != 0 {
			push(c.first)
		}
		if c.GetFlag(cellFlagSecondIsNode) && c.second != 0 {
			push(c.second)
		}
	}

	marked := 0
	drain := func() {
		for len(markStack) > 0 {
			bits := markStack[len(markStack)-1]
			markStack = markStack[:len(markStack)-1]

			if nodeIsCell(bits) {
				c := cellFromBits(bits)
				if c.header&(nodeFlagMarked|nodeFlagFree) != 0 {
					continue
				}
				c.SetFlag(nodeFlagMarked)
				markCell(c)
				markCell(paired(c))
				continue
			}

			s := seriesFromBits(bits)
			if s.info&(nodeFlagMarked|nodeFlagFree) != 0 {
				continue
			}
			s.SetFlag(nodeFlagMarked)
			marked++
			if s.IsArray() {
				for i := 0; i < s.Len(); i++ {
					markCell(s.At(i))
				}
			}
			if s.GetFlag(seriesFlagLinkIsNode) && s.link != 0 {
				push(s.link)
			}
			if s.GetFlag(seriesFlagMiscIsNode) && s.misc != 0 {
				push(s.misc)
			}
		}
	}

	// explicit guards
	for _, g := range in.guarded {
		if g.series != nil {
			push(seriesBits(g.series))
		}
		if g.cell != nil {
			markCell(g.cell)
		}
	}

	// frame stack
	for f := in.topFrame; f != nil; f = f.prior {
		if f.Out != nil {
			markCell(f.Out)
		}
		markCell(&f.spare)
		for i := range f.args {
			markCell(&f.args[i])
		}
		if f.feed != nil {
			push(seriesBits(f.feed))
		}
		if f.action != nil {
			push(seriesBits(f.action))
		}
		if f.details != nil {
			push(seriesBits(f.details))
		}
		if f.varlist != nil {
			push(seriesBits(f.varlist))
		}
		if f.label != nil {
			push(seriesBits(f.label))
		}
	}

	// data stack
	for i := range in.dataStack {
		markCell(&in.dataStack[i])
	}

	// globals and boot values
	push(seriesBits(in.lib))
	push(seriesBits(in.sys))
	push(seriesBits(in.user))
	push(seriesBits(in.moldBuf))
	push(seriesBits(in.stackOverflowError))
	push(seriesBits(in.haltError))
	for _, s := range in.protectedSyms {
		push(seriesBits(s))
	}
	for _, s := range in.moldStack {
		push(seriesBits(s))
	}
	markCell(&in.thrownArg)

	drain()

	// API handles: a root series survives if it is indefinite (no
	// owner) or its owner varlist survived. Owners can be marked by
	// other handles' contents, so iterate to a fixed point.
	for {
		added := false
		stubPool := in.pools[stubPoolIdx]
		for _, seg := range stubPool.stubSegs {
			for i := range seg {
				s := &seg[i]
				if s.info&(nodeFlagFree|nodeFlagMarked) != 0 || s.info&nodeFlagRoot == 0 {
					continue
				}
				owner := seriesFromBits(s.link)
				if owner == nil || owner.info&nodeFlagMarked != 0 {
					push(seriesBits(s))
					drain()
					added = true
				}
			}
		}
		if !added {
			break
		}
	}

	// weak tables before the sweep consumes the marks
	in.sweepSymbols()

	stats := RecycleStats{SeriesMarked: marked}

	// sweep series stubs
	stubPool := in.pools[stubPoolIdx]
	for _, seg := range stubPool.stubSegs {
		for i := range seg {
			s := &seg[i]
			if s.info&nodeFlagFree != 0 {
				continue
			}
			if s.info&nodeFlagManaged == 0 {
				continue // manuals list owns it
			}
			if s.info&nodeFlagMarked != 0 {
				s.ClearFlag(nodeFlagMarked)
				continue
			}
			if cleanup, ok := in.handleCleanups[s]; ok {
				cleanup(&s.cell)
				delete(in.handleCleanups, s)
			}
			delete(in.handleValues, s)
			in.killSeries(s)
			stats.SeriesSwept++
		}
	}

	// sweep pairings
	pairPool := in.pools[pairPoolIdx]
	for _, seg := range pairPool.pairSegs {
		for i := 0; i < len(seg); i += 2 {
			c := &seg[i]
			if c.header&nodeFlagFree != 0 {
				continue
			}
			if c.header&nodeFlagManaged == 0 {
				continue
			}
			if c.header&nodeFlagMarked != 0 {
				c.ClearFlag(nodeFlagMarked)
				continue
			}
			in.freePairing(c)
			stats.PairingsSwept++
		}
	}

	in.ballast = in.ballastReset
	stats.Duration = time.Since(start)
	log.Debugf("recycle: %d marked, %d series swept, %d pairings swept in %s",
		stats.SeriesMarked, stats.SeriesSwept, stats.PairingsSwept, stats.Duration)
	return stats
}

// RecycleCount returns how many collections have run.
func (in *Interp) RecycleCount() int64 {
	return in.recycleCount
}
