package store

import (
	"encoding/json"
	"time"
)

// TaskStatus represents the lifecycle of a label task.
type TaskStatus string

const (
	TaskQueued     TaskStatus = "queued"
	TaskProcessing TaskStatus = "processing"
	TaskDone       TaskStatus = "done"
	TaskFailed     TaskStatus = "failed"
)

// AbandonedTaskReason is the error recorded on tasks whose worker went away mid-run.
const AbandonedTaskReason = "abandoned while processing"

var allTaskStatuses = []TaskStatus{TaskQueued, TaskProcessing, TaskDone, TaskFailed}

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskQueued:     {TaskProcessing, TaskFailed},
	TaskProcessing: {TaskDone, TaskFailed},
}

// AllTaskStatuses returns every known label task status in lifecycle order.
func AllTaskStatuses() []TaskStatus {
	out := make([]TaskStatus, len(allTaskStatuses))
	copy(out, allTaskStatuses)
	return out
}

// ParseTaskStatus converts a string into a TaskStatus.
func ParseTaskStatus(value string) (TaskStatus, bool) {
	for _, status := range allTaskStatuses {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskDone || s == TaskFailed
}

// CanTransition reports whether moving a task from one status to another is legal.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range taskTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Wine is a distinct product. A wine created from a scan carries only its UPC
// until enrichment fills in the descriptive fields.
type Wine struct {
	ID         int64
	UPC        *string
	Producer   *string
	Label      *string
	Vintage    *int
	Region     *string
	Country    *string
	DrinkFrom  *time.Time
	DrinkTo    *time.Time
	CriticData json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsPlaceholder reports whether the wine is known only by its barcode.
func (w Wine) IsPlaceholder() bool {
	return w.UPC != nil &&
		w.Producer == nil &&
		w.Label == nil &&
		w.Vintage == nil &&
		w.Region == nil &&
		w.Country == nil
}

// Bottle is one physical unit of a wine.
type Bottle struct {
	ID            int64
	WineID        int64
	PurchasePrice *float64
	Slot          *string
	CreatedAt     time.Time
}

// LabelTask tracks one asynchronous label-reading job.
type LabelTask struct {
	ID        int64
	Status    TaskStatus
	Payload   json.RawMessage
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Descriptors carries the descriptive wine fields an external source can supply.
// Blank strings and nil values are never written.
type Descriptors struct {
	Producer string
	Label    string
	Vintage  *int
	Region   string
	Country  string
}

// IsEmpty reports whether no field carries a usable value.
func (d Descriptors) IsEmpty() bool {
	return d.Producer == "" && d.Label == "" && d.Vintage == nil && d.Region == "" && d.Country == ""
}

// PatchMode selects how Descriptors interact with values already stored.
type PatchMode int

const (
	// PatchOverwrite replaces stored values with any non-blank incoming value.
	PatchOverwrite PatchMode = iota
	// PatchFillMissing only writes fields that are currently NULL.
	PatchFillMissing
)

// WinePatch is a manual edit. Nil pointers leave a field untouched; a pointer
// to an empty string clears it.
type WinePatch struct {
	UPC        *string
	Producer   *string
	Label      *string
	Vintage    *int
	Region     *string
	Country    *string
	DrinkFrom  *time.Time
	DrinkTo    *time.Time
	CriticData json.RawMessage

	ClearVintage   bool
	ClearDrinkFrom bool
	ClearDrinkTo   bool
}

// IsEmpty reports whether the patch changes nothing.
func (p WinePatch) IsEmpty() bool {
	return p.UPC == nil && p.Producer == nil && p.Label == nil && p.Vintage == nil &&
		p.Region == nil && p.Country == nil && p.DrinkFrom == nil && p.DrinkTo == nil &&
		p.CriticData == nil && !p.ClearVintage && !p.ClearDrinkFrom && !p.ClearDrinkTo
}

// WineFilter narrows ListWines results.
type WineFilter struct {
	Query            string
	PlaceholdersOnly bool
	Limit            int
	Offset           int
}

// WineListing pairs a wine with the number of bottles on hand.
type WineListing struct {
	Wine        Wine
	BottleCount int
}

// Stats summarizes cellar contents.
type Stats struct {
	Wines        int
	Placeholders int
	Bottles      int
	LabelTasks   map[TaskStatus]int
}
