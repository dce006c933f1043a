// Package selection tracks multi-select mode and the set of selected
// records.
package selection

import (
	"sync"

	"github.com/fruitsalade/folderview/internal/events"
	"github.com/fruitsalade/folderview/internal/models"
)

// Snapshot is published after every change.
type Snapshot struct {
	MultiSelect bool
	Selected    []models.Record
}

// Manager holds the selection. Records are keyed by ID and kept in the order
// they were selected.
type Manager struct {
	mu       sync.RWMutex
	multi    bool
	order    []string
	selected map[string]models.Record

	changes *events.Broadcaster[Snapshot]
}

// New creates an empty manager outside multi-select mode.
func New() *Manager {
	return &Manager{
		selected: make(map[string]models.Record),
		changes:  events.NewBroadcaster[Snapshot]("selection"),
	}
}

// EnterMultiSelect turns multi-select mode on.
func (m *Manager) EnterMultiSelect() {
	m.mu.Lock()
	m.multi = true
	m.mu.Unlock()
	m.publish()
}

// ExitMultiSelect turns multi-select mode off and clears the selection.
func (m *Manager) ExitMultiSelect() {
	m.mu.Lock()
	m.multi = false
	m.reset()
	m.mu.Unlock()
	m.publish()
}

// Toggle selects record if it is not selected and deselects it otherwise.
// It reports whether the record is selected afterwards.
func (m *Manager) Toggle(record models.Record) bool {
	m.mu.Lock()
	_, ok := m.selected[record.ID]
	if ok {
		delete(m.selected, record.ID)
		for i, id := range m.order {
			if id == record.ID {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	} else {
		m.selected[record.ID] = record
		m.order = append(m.order, record.ID)
	}
	m.mu.Unlock()
	m.publish()
	return !ok
}

// SelectOnly replaces the selection with a single record.
func (m *Manager) SelectOnly(record models.Record) {
	m.mu.Lock()
	m.reset()
	m.selected[record.ID] = record
	m.order = append(m.order, record.ID)
	m.mu.Unlock()
	m.publish()
}

// Clear empties the selection without leaving multi-select mode.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.reset()
	m.mu.Unlock()
	m.publish()
}

func (m *Manager) reset() {
	m.order = nil
	m.selected = make(map[string]models.Record)
}

// IsSelected reports whether the record with id is selected.
func (m *Manager) IsSelected(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.selected[id]
	return ok
}

// Selection returns the selected records in selection order.
func (m *Manager) Selection() []models.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() []models.Record {
	out := make([]models.Record, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.selected[id])
	}
	return out
}

// Take returns the selection and clears it in one step.
func (m *Manager) Take() []models.Record {
	m.mu.Lock()
	out := m.snapshotLocked()
	m.reset()
	m.mu.Unlock()
	m.publish()
	return out
}

// Len returns the number of selected records.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// IsMultiSelectMode reports whether multi-select mode is on.
func (m *Manager) IsMultiSelectMode() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.multi
}

// Subscribe returns a channel of selection snapshots.
func (m *Manager) Subscribe() chan Snapshot {
	return m.changes.Subscribe()
}

// Unsubscribe stops delivery to ch and closes it.
func (m *Manager) Unsubscribe(ch chan Snapshot) {
	m.changes.Unsubscribe(ch)
}

// Close closes all subscriptions.
func (m *Manager) Close() {
	m.changes.Close()
}

func (m *Manager) publish() {
	m.mu.RLock()
	snap := Snapshot{MultiSelect: m.multi, Selected: m.snapshotLocked()}
	m.mu.RUnlock()
	m.changes.Publish(snap)
}
