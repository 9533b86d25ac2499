package catalog

import "strconv"

// State is the processing state of a file. States only increase.
type State int

const (
	StateSeen      State = 0
	StateSynced    State = 10
	StateProcessed State = 20
)

func (s State) String() string {
	switch s {
	case StateSeen:
		return "seen"
	case StateSynced:
		return "synced"
	case StateProcessed:
		return "processed"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// File is one catalog row.
type File struct {
	ID    int64
	Name  string
	Type  string
	Seq   int
	State State
	Group string
}

// AddResult reports what AddFile derived and changed.
type AddResult struct {
	Group    string
	Seq      int
	Inserted bool
	// ExistingGroup is the group the file was stored under when it was
	// already present.
	ExistingGroup string
	// Regrouped is set when the derived group differs from ExistingGroup.
	// The stored grouping is kept.
	Regrouped bool
}

// GroupSummary aggregates the members of one image group.
type GroupSummary struct {
	Name      string
	Files     int
	Processed int
	MinState  State
}

// Done reports whether every member of the group has been processed.
func (g GroupSummary) Done() bool {
	return g.Files > 0 && g.MinState >= StateProcessed
}
