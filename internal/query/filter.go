package query

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrConfiguration reports missing or malformed filter
	// fields for the selected mode.
	ErrConfiguration = errors.New("invalid filter configuration")
	// ErrInvalidMode reports a mode outside none/ops/dates.
	ErrInvalidMode = errors.New("invalid mode")
)

// TimestampLayout is the datetime format used for emission
// timestamp bounds.
const TimestampLayout = "2006-01-02 15:04:05"

// Mode selects which Filters fields apply and which column the
// range predicate targets.
type Mode string

const (
	// ModeNone applies no range; the view is already scoped to
	// the open operation.
	ModeNone Mode = "none"
	// ModeOps filters by operation id range.
	ModeOps Mode = "ops"
	// ModeDates filters by emission timestamp range.
	ModeDates Mode = "dates"
)

// ParseMode validates a user supplied mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeNone, ModeOps, ModeDates:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q (use ops, dates or none)", ErrInvalidMode, s)
}

// Filters bounds a dashboard query. Only the pair matching the
// mode is read.
type Filters struct {
	OpIni *int64
	OpFin *int64
	DtIni string // YYYY-MM-DD HH:MM:SS, inclusive
	DtFin string // YYYY-MM-DD HH:MM:SS, inclusive
}

// OperationRange returns filters for operations [ini, fin].
func OperationRange(ini, fin int64) Filters {
	return Filters{OpIni: &ini, OpFin: &fin}
}

// DayRange expands whole days into an inclusive timestamp range,
// from 00:00:00 on the first day to 23:59:59 on the last.
// Inverted days are swapped.
func DayRange(from, to string) (Filters, error) {
	f, err := time.Parse("2006-01-02", from)
	if err != nil {
		return Filters{}, fmt.Errorf(
			"%w: invalid date %q: use YYYY-MM-DD", ErrConfiguration, from,
		)
	}
	t, err := time.Parse("2006-01-02", to)
	if err != nil {
		return Filters{}, fmt.Errorf(
			"%w: invalid date %q: use YYYY-MM-DD", ErrConfiguration, to,
		)
	}
	if f.After(t) {
		f, t = t, f
	}
	return Filters{
		DtIni: f.Format("2006-01-02") + " 00:00:00",
		DtFin: t.Format("2006-01-02") + " 23:59:59",
	}, nil
}

// Where is a resolved range predicate. Clause never includes the
// WHERE keyword and is empty for ModeNone.
type Where struct {
	Clause string
	Params map[string]any
}

// And returns the clause joined with extra predicates, prefixed
// with WHERE, or "" when there is nothing to filter on.
func (w Where) And(preds ...string) string {
	var parts []string
	if w.Clause != "" {
		parts = append(parts, w.Clause)
	}
	for _, p := range preds {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(parts, " AND ")
}

// Resolve translates filters and mode into a range predicate and
// its bound parameters. alias qualifies the column when set.
func Resolve(f Filters, mode Mode, alias string) (Where, error) {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}

	switch mode {
	case ModeOps:
		if f.OpIni == nil || f.OpFin == nil {
			return Where{}, fmt.Errorf(
				"%w: mode ops requires op_ini and op_fin", ErrConfiguration,
			)
		}
		ini, fin := *f.OpIni, *f.OpFin
		if ini > fin {
			ini, fin = fin, ini
		}
		return Where{
			Clause: col(ColOperation) + " BETWEEN :op_ini AND :op_fin",
			Params: map[string]any{"op_ini": ini, "op_fin": fin},
		}, nil
	case ModeDates:
		if f.DtIni == "" || f.DtFin == "" {
			return Where{}, fmt.Errorf(
				"%w: mode dates requires dt_ini and dt_fin", ErrConfiguration,
			)
		}
		ini, err := time.Parse(TimestampLayout, f.DtIni)
		if err != nil {
			return Where{}, fmt.Errorf(
				"%w: invalid dt_ini %q", ErrConfiguration, f.DtIni,
			)
		}
		fin, err := time.Parse(TimestampLayout, f.DtFin)
		if err != nil {
			return Where{}, fmt.Errorf(
				"%w: invalid dt_fin %q", ErrConfiguration, f.DtFin,
			)
		}
		if ini.After(fin) {
			ini, fin = fin, ini
		}
		return Where{
			Clause: col(ColEmission) + " BETWEEN :dt_ini AND :dt_fin",
			Params: map[string]any{
				"dt_ini": ini.Format(TimestampLayout),
				"dt_fin": fin.Format(TimestampLayout),
			},
		}, nil
	case ModeNone:
		return Where{Params: map[string]any{}}, nil
	}
	return Where{}, fmt.Errorf(
		"%w: %q (use ops, dates or none)", ErrInvalidMode, string(mode),
	)
}
