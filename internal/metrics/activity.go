package metrics

import (
	"context"
	"slices"
	"time"

	"github.com/wesm/barview/internal/db"
	"github.com/wesm/barview/internal/query"
)

// Activity returns order cadence over the scope: the last order,
// minutes since it, and median minutes between consecutive
// orders among the last recent orders and over the whole range.
func (s *Service) Activity(
	ctx context.Context, sc Scope, recent int,
) (Activity, error) {
	if recent <= 0 {
		recent = query.DefaultRecentOrders
	}
	w, err := s.where(ctx, sc, sc.view())
	if err != nil {
		return Activity{}, err
	}

	st, err := s.b.EmissionTimes(sc.view(), w, 0)
	rows, err := s.run(ctx, "emission_times", st, err)
	if err != nil {
		return Activity{}, err
	}
	all := s.timestamps(rows)

	st, err = s.b.EmissionTimes(sc.view(), w, recent)
	rows, err = s.run(ctx, "emission_times_recent", st, err)
	if err != nil {
		return Activity{}, err
	}
	last := s.timestamps(rows)

	var a Activity
	a.ComandasRango = len(all)
	a.MedianaRango, a.IntervalosRango = medianInterval(all)
	a.MedianaRecientes, a.IntervalosRecientes = medianInterval(last)
	if len(all) > 0 {
		newest := all[len(all)-1]
		stamp := newest.Format(query.TimestampLayout)
		mins := max(s.clock.Now().Sub(newest).Minutes(), 0)
		a.UltimaComanda = &stamp
		a.MinutosDesdeUltima = &mins
	}
	return a, nil
}

// timestamps parses emission times and sorts them ascending.
// Unparseable values are skipped.
func (s *Service) timestamps(rows []db.Row) []time.Time {
	out := make([]time.Time, 0, len(rows))
	for _, r := range rows {
		if t, ok := toTime(r["fecha_emision"], s.loc); ok {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}

// medianInterval returns the median of positive gaps, in minutes,
// between consecutive sorted timestamps, and how many gaps were
// used. Zero or negative gaps are dropped.
func medianInterval(ts []time.Time) (*float64, int) {
	if len(ts) < 2 {
		return nil, 0
	}
	sorted := slices.Clone(ts)
	slices.SortFunc(sorted, func(a, b time.Time) int { return a.Compare(b) })

	var deltas []float64
	for i := 1; i < len(sorted); i++ {
		if d := sorted[i].Sub(sorted[i-1]).Minutes(); d > 0 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return nil, 0
	}
	m := median(deltas)
	return &m, len(deltas)
}

func median(xs []float64) float64 {
	s := slices.Clone(xs)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
