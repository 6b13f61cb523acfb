package evaluator

import (
	"context"
	"sort"
	"sync/atomic"

	"lodepa-air/internal/models"
)

type override struct {
	minWarning *float64
	maxWarning *float64
}

// fakeStore emulates the override-joined-with-global queries in memory.
// It is read-only once built, so concurrent lookups are safe.
type fakeStore struct {
	global    map[models.Parameter]models.ThresholdDefinition
	overrides map[string]map[models.Parameter]override

	roomThresholdsErr   error
	globalThresholdsErr error
	paramErr            map[models.Parameter]error

	calls atomic.Int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		global:    map[models.Parameter]models.ThresholdDefinition{},
		overrides: map[string]map[models.Parameter]override{},
		paramErr:  map[models.Parameter]error{},
	}
}

func (f *fakeStore) withGlobal(p models.Parameter, minGood, maxGood, minWarning, maxWarning float64) *fakeStore {
	f.global[p] = models.ThresholdDefinition{Parameter: p, MinGood: minGood, MaxGood: maxGood, MinWarning: minWarning, MaxWarning: maxWarning}
	return f
}

func (f *fakeStore) withOverride(roomID string, p models.Parameter, minWarning, maxWarning *float64) *fakeStore {
	if f.overrides[roomID] == nil {
		f.overrides[roomID] = map[models.Parameter]override{}
	}
	f.overrides[roomID][p] = override{minWarning: minWarning, maxWarning: maxWarning}
	return f
}

func (f *fakeStore) joined(p models.Parameter, o override) (models.ThresholdDefinition, bool) {
	g, ok := f.global[p]
	if !ok {
		return models.ThresholdDefinition{}, false
	}
	if o.minWarning != nil {
		g.MinWarning = *o.minWarning
	}
	if o.maxWarning != nil {
		g.MaxWarning = *o.maxWarning
	}
	return g, true
}

func (f *fakeStore) GlobalThreshold(_ context.Context, p models.Parameter) (*models.ThresholdDefinition, error) {
	f.calls.Add(1)
	if err := f.paramErr[p]; err != nil {
		return nil, err
	}
	g, ok := f.global[p]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (f *fakeStore) RoomThreshold(_ context.Context, roomID string, p models.Parameter) (*models.ThresholdDefinition, error) {
	f.calls.Add(1)
	if err := f.paramErr[p]; err != nil {
		return nil, err
	}
	o, ok := f.overrides[roomID][p]
	if !ok {
		return nil, nil
	}
	row, ok := f.joined(p, o)
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (f *fakeStore) RoomThresholds(_ context.Context, roomID string) ([]models.ThresholdDefinition, error) {
	f.calls.Add(1)
	if f.roomThresholdsErr != nil {
		return nil, f.roomThresholdsErr
	}
	var rows []models.ThresholdDefinition
	for p, o := range f.overrides[roomID] {
		if row, ok := f.joined(p, o); ok {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Parameter < rows[j].Parameter })
	return rows, nil
}

func (f *fakeStore) GlobalThresholds(_ context.Context) ([]models.ThresholdDefinition, error) {
	f.calls.Add(1)
	if f.globalThresholdsErr != nil {
		return nil, f.globalThresholdsErr
	}
	rows := make([]models.ThresholdDefinition, 0, len(f.global))
	for _, g := range f.global {
		rows = append(rows, g)
	}
	return rows, nil
}

func ptr(v float64) *float64 { return &v }
