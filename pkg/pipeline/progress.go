package pipeline

import (
	"sync"
)

// Event is a progress snapshot for one phase.
type Event struct {
	Phase Phase
	Done  int
	Total int
	// Ratio is Done/Total; 1.0 for a phase without units.
	Ratio float64
	// TablesDone and TablesTotal are only set in the tables phase.
	TablesDone  int
	TablesTotal int
}

// Reporter receives progress events. Calls are serialized per run.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

// Report calls f(e).
func (f ReporterFunc) Report(e Event) { f(e) }

// Tracker counts completed units of one phase. Its ratio never decreases and
// reaches exactly 1.0 with the last unit.
type Tracker struct {
	mu       sync.Mutex
	phase    Phase
	total    int
	done     int
	tables   []int
	tablesOK int
	reporter Reporter
}

// NewTracker creates a tracker for a phase of total units. reporter may be nil.
func NewTracker(phase Phase, total int, reporter Reporter) *Tracker {
	return &Tracker{phase: phase, total: total, reporter: reporter}
}

// NewTableTracker creates a tables-phase tracker that also counts finished
// tables. sizes holds the number of cells of each table.
func NewTableTracker(sizes []int, reporter Reporter) *Tracker {
	t := &Tracker{phase: PhaseTables, reporter: reporter}
	t.tables = append([]int(nil), sizes...)
	for _, n := range sizes {
		t.total += n
		if n == 0 {
			t.tablesOK++
		}
	}
	return t
}

// Start reports the phase's initial state: ratio 0, or 1.0 when the phase has
// no units.
func (t *Tracker) Start() Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.emit()
}

// Tick records one completed unit and reports the new state. Ticks beyond
// the total are ignored.
func (t *Tracker) Tick(u Unit) Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done < t.total {
		t.done++
		if t.tables != nil && u.Kind == KindCell && u.Table >= 0 && u.Table < len(t.tables) {
			t.tables[u.Table]--
			if t.tables[u.Table] == 0 {
				t.tablesOK++
			}
		}
	}
	return t.emit()
}

// Ratio returns the current completion ratio.
func (t *Tracker) Ratio() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ratio()
}

func (t *Tracker) ratio() float64 {
	if t.total == 0 {
		return 1.0
	}
	return float64(t.done) / float64(t.total)
}

func (t *Tracker) emit() Event {
	e := Event{
		Phase: t.phase,
		Done:  t.done,
		Total: t.total,
		Ratio: t.ratio(),
	}
	if t.tables != nil {
		e.TablesDone = t.tablesOK
		e.TablesTotal = len(t.tables)
	}
	if t.reporter != nil {
		t.reporter.Report(e)
	}
	return e
}
