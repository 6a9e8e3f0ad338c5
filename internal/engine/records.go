package engine

import (
	"time"

	"github.com/pearcec/kioskstats/internal/deployment"
	"github.com/pearcec/kioskstats/internal/report"
)

// TimestampLayout is used for every *_formatted column.
const TimestampLayout = "2006-01-02 15:04:05.000"

// FormatMillis renders an epoch-millisecond time in loc.
func FormatMillis(ms int64, loc *time.Location) string {
	return time.UnixMilli(ms).In(loc).Format(TimestampLayout)
}

func timeColumns() []report.Column {
	return []report.Column{
		report.StringColumn("date_formatted"),
		report.StringColumn("starting_time_formatted"),
		report.StringColumn("ending_time_formatted"),
		report.Int64Column("date"),
		report.Int64Column("starting_time"),
		report.Int64Column("ending_time"),
	}
}

func timeValues(date, start, end int64, loc *time.Location) report.Record {
	return report.Record{
		FormatMillis(date, loc),
		FormatMillis(start, loc),
		FormatMillis(end, loc),
		date,
		start,
		end,
	}
}

// DayColumns returns the day-record layout of dep.
func DayColumns(dep *deployment.Deployment) []report.Column {
	cols := timeColumns()
	for _, c := range dep.DayColumns {
		if c.Kind == deployment.ColumnTally {
			t, _ := dep.LookupTally(c.Tally)
			for _, key := range t.Keys {
				cols = append(cols, report.Int64Column(t.ColumnName(key)))
			}
			continue
		}
		cols = append(cols, report.Int64Column(c.ColumnName()))
	}
	return cols
}

// DayRecord renders day in the DayColumns layout.
func DayRecord(dep *deployment.Deployment, day *DayAggregate) report.Record {
	rec := timeValues(day.Date, day.Earliest, day.Latest, dep.Location())
	for _, c := range dep.DayColumns {
		switch c.Kind {
		case deployment.ColumnDurationTotal:
			rec = append(rec, day.Span())
		case deployment.ColumnDuration:
			rec = append(rec, day.Durations[c.Mode])
		case deployment.ColumnPeriods:
			rec = append(rec, int64(day.Periods[c.Mode]))
		case deployment.ColumnCounter:
			rec = append(rec, int64(day.Counters[c.Event]))
		case deployment.ColumnTally:
			t, _ := dep.LookupTally(c.Tally)
			counts := day.Tallies[c.Tally]
			for _, key := range t.Keys {
				rec = append(rec, int64(counts[key]))
			}
		}
	}
	return rec
}

// SessionColumns returns the session-record layout of dep.
func SessionColumns(dep *deployment.Deployment) []report.Column {
	cols := timeColumns()
	cols = append(cols, report.Int64Column("session_number"), report.Int64Column("duration_millis"))
	for _, c := range dep.Session.Counters {
		cols = append(cols, report.Int64Column(c.Name))
	}
	return cols
}

// SessionRecord renders s in the SessionColumns layout.
func SessionRecord(dep *deployment.Deployment, s *SessionAggregate) report.Record {
	rec := timeValues(s.Date, s.Start, s.End, dep.Location())
	rec = append(rec, int64(s.Number), s.Duration())
	for _, c := range dep.Session.Counters {
		rec = append(rec, int64(s.Counters[c.Event]))
	}
	return rec
}
