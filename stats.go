package tradesim

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SnapshotStats summarizes the total value over a series of snapshots.
//
// Values are computed in float64 and are only meant for display.
type SnapshotStats struct {
	Count       int
	First, Last time.Time
	Min, Max    float64
	Mean        float64
	StdDev      float64 // sample standard deviation, zero with fewer than two snapshots
	MaxDrawdown float64 // largest peak-to-trough decline, as a ratio of the peak
}

// ComputeSnapshotStats returns the statistics of snaps, which must be in
// chronological order. It returns the zero value for an empty series.
func ComputeSnapshotStats(snaps []Snapshot) SnapshotStats {
	if len(snaps) == 0 {
		return SnapshotStats{}
	}
	values := make([]float64, len(snaps))
	for i, s := range snaps {
		values[i] = s.TotalValue.Float()
	}
	st := SnapshotStats{
		Count:       len(snaps),
		First:       snaps[0].Timestamp,
		Last:        snaps[len(snaps)-1].Timestamp,
		Min:         floats.Min(values),
		Max:         floats.Max(values),
		Mean:        stat.Mean(values, nil),
		MaxDrawdown: maxDrawdown(values),
	}
	if len(values) > 1 {
		st.StdDev = stat.StdDev(values, nil)
	}
	return st
}

func maxDrawdown(values []float64) float64 {
	var peak, worst float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
