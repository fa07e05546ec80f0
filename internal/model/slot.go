package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Station is a fixed inspection position bound 1:1 to a device id.
type Station string

const (
	StationFront Station = "front"
	StationLeft  Station = "left"
	StationRight Station = "right"
	StationBrake Station = "brake"
)

// ModelKind selects which detection model runs for a station.
type ModelKind string

const (
	ModelDamage ModelKind = "damage"
	ModelBrake  ModelKind = "brake"
)

// ErrUnknownStation is returned for station names outside the fixed set.
var ErrUnknownStation = errors.New("unknown station")

var knownStations = map[Station]ModelKind{
	StationFront: ModelDamage,
	StationLeft:  ModelDamage,
	StationRight: ModelDamage,
	StationBrake: ModelBrake,
}

// ParseStation normalizes and validates a station name.
func ParseStation(s string) (Station, error) {
	st := Station(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownStations[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStation, s)
	}
	return st, nil
}

// DefaultModel returns the model a station uses when none is configured.
func (s Station) DefaultModel() ModelKind {
	return knownStations[s]
}

// DeviceSlot is one configured capture device.
type DeviceSlot struct {
	ID      int
	Station Station
	Model   ModelKind
}

// SlotTable is the fixed id<->station mapping. It is immutable after construction.
type SlotTable struct {
	slots     []DeviceSlot
	byID      map[int]DeviceSlot
	byStation map[Station]DeviceSlot
}

// NewSlotTable validates that slots form a bijection between ids 0..N-1 and
// distinct known stations.
func NewSlotTable(slots []DeviceSlot) (*SlotTable, error) {
	if len(slots) == 0 {
		return nil, errors.New("no device slots configured")
	}

	t := &SlotTable{
		slots:     make([]DeviceSlot, len(slots)),
		byID:      make(map[int]DeviceSlot, len(slots)),
		byStation: make(map[Station]DeviceSlot, len(slots)),
	}
	copy(t.slots, slots)
	sort.Slice(t.slots, func(i, j int) bool { return t.slots[i].ID < t.slots[j].ID })

	for i, slot := range t.slots {
		if slot.ID != i {
			return nil, fmt.Errorf("device ids must be 0..%d without gaps, got %d at position %d", len(slots)-1, slot.ID, i)
		}
		if _, ok := knownStations[slot.Station]; !ok {
			return nil, fmt.Errorf("device %d: %w: %q", slot.ID, ErrUnknownStation, slot.Station)
		}
		if _, dup := t.byStation[slot.Station]; dup {
			return nil, fmt.Errorf("station %q is mapped to more than one device", slot.Station)
		}
		if slot.Model != ModelDamage && slot.Model != ModelBrake {
			return nil, fmt.Errorf("device %d: unknown model %q", slot.ID, slot.Model)
		}
		t.byID[slot.ID] = slot
		t.byStation[slot.Station] = slot
	}

	return t, nil
}

// DefaultSlots is the stock four-camera bay.
func DefaultSlots() []DeviceSlot {
	return []DeviceSlot{
		{ID: 0, Station: StationFront, Model: ModelDamage},
		{ID: 1, Station: StationLeft, Model: ModelDamage},
		{ID: 2, Station: StationRight, Model: ModelDamage},
		{ID: 3, Station: StationBrake, Model: ModelBrake},
	}
}

// Slots returns the slots in ascending id order.
func (t *SlotTable) Slots() []DeviceSlot {
	out := make([]DeviceSlot, len(t.slots))
	copy(out, t.slots)
	return out
}

// Len returns the number of configured devices.
func (t *SlotTable) Len() int {
	return len(t.slots)
}

// Slot looks up a slot by device id.
func (t *SlotTable) Slot(id int) (DeviceSlot, bool) {
	slot, ok := t.byID[id]
	return slot, ok
}

// Station resolves a device id to its station.
func (t *SlotTable) Station(id int) (Station, bool) {
	slot, ok := t.byID[id]
	return slot.Station, ok
}

// ByStation resolves a station to its slot.
func (t *SlotTable) ByStation(st Station) (DeviceSlot, bool) {
	slot, ok := t.byStation[st]
	return slot, ok
}
