package tle

import "time"

// Entry is one object's two-line element set.
type Entry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// EpochRange is the oldest and newest element epoch of a dataset.
type EpochRange struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// Dataset is a parsed catalog snapshot. It is immutable once published to a
// Store.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Entries    []Entry
}

// NewDataset builds a Dataset and computes its epoch range.
func NewDataset(source string, fetchedAt time.Time, entries []Entry) *Dataset {
	ds := &Dataset{
		Source:    source,
		FetchedAt: fetchedAt.UTC(),
		Entries:   entries,
	}
	for i, e := range entries {
		if i == 0 || e.Epoch.Before(ds.EpochRange.Min) {
			ds.EpochRange.Min = e.Epoch
		}
		if i == 0 || e.Epoch.After(ds.EpochRange.Max) {
			ds.EpochRange.Max = e.Epoch
		}
	}
	return ds
}

// Version identifies the dataset for cache keys.
func (d *Dataset) Version() int64 {
	return d.FetchedAt.UnixNano()
}
