package core

// ---------------------------------------------------------------------------
// System natives
// ---------------------------------------------------------------------------

import "hash/crc32"

func (in *Interp) initSystemNatives() {
	in.AddNative("checksum", []ParamSpec{
		argTyped("data", KindBinary, KindText),
	}, nativeChecksum, false)

	in.AddNative("recycle", nil, nativeRecycle, false)
	in.AddNative("stats", nil, nativeStats, false)
	in.AddNative("halt", nil, nativeHalt, false)
}

// nativeChecksum computes the CRC-32 (IEEE) of the data. The result
// goes through a signed 32-bit cast, so high-bit checksums come out
// negative; scripts that compare stored checksums rely on that.
func nativeChecksum(in *Interp, f *Frame) Ret {
	data := CellBytes(f.Arg(1))
	sum := int32(crc32.ChecksumIEEE(data))
	f.Out.InitInteger(int64(sum))
	return RetOut
}

// nativeRecycle forces a collection and yields the swept series count.
func nativeRecycle(in *Interp, f *Frame) Ret {
	stats := in.Recycle()
	f.Out.InitInteger(int64(stats.SeriesSwept))
	return RetOut
}

// nativeStats yields an object describing pool usage.
func nativeStats(in *Interp, f *Frame) Ret {
	pools := in.Stats()
	var live, free, held int64
	for i, p := range pools {
		held += int64(p.Wide * p.Has)
		if i == stubPoolIdx {
			live = int64(p.Has - p.Free)
			free = int64(p.Free)
		}
	}

	ctx := in.MakeContext(KindObject, 4)
	in.GuardSeries(ctx)
	defer in.DropGuard()
	in.FindOrAppendVar(ctx, in.Intern("series-live")).InitInteger(live)
	in.FindOrAppendVar(ctx, in.Intern("series-free")).InitInteger(free)
	in.FindOrAppendVar(ctx, in.Intern("bytes-held")).InitInteger(held)
	in.FindOrAppendVar(ctx, in.Intern("recycles")).InitInteger(in.recycleCount)
	f.Out.InitContextCell(KindObject, ctx)
	return RetOut
}

func nativeHalt(in *Interp, f *Frame) Ret {
	in.Halt()
	in.checkSignals()
	return RetNull // unreachable; checkSignals fails with halt
}
