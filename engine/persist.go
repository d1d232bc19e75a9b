package engine

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ExportJSON serializes every lane as a JSON array
func (am *CCAutomationManager) ExportJSON() ([]byte, error) {
	lanes := am.Lanes()
	data, err := json.MarshalIndent(lanes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export automation lanes: %w", err)
	}
	return data, nil
}

// ImportJSON replaces all lanes with the decoded array. The input is
// fully decoded and validated before any state changes, so a malformed
// payload leaves the manager untouched. Imported lanes get fresh ids
// and their points are re-sorted to restore the time-order invariant
// against hand-edited files.
func (am *CCAutomationManager) ImportJSON(data []byte) error {
	var staged []AutomationLane
	if err := json.Unmarshal(data, &staged); err != nil {
		return fmt.Errorf("import automation lanes: %w", err)
	}
	for i := range staged {
		if staged[i].CC > 127 {
			return fmt.Errorf("import automation lanes: lane %d has cc %d out of range", i, staged[i].CC)
		}
		if staged[i].Channel > 15 {
			return fmt.Errorf("import automation lanes: lane %d has channel %d out of range", i, staged[i].Channel)
		}
	}

	am.mu.Lock()
	defer am.mu.Unlock()
	am.lanes = am.lanes[:0]
	for _, lane := range staged {
		l := lane
		l.Recording = false
		sort.SliceStable(l.Points, func(a, b int) bool { return l.Points[a].Time < l.Points[b].Time })
		am.nextLaneID++
		l.ID = fmt.Sprintf("lane-%d", am.nextLaneID)
		am.lanes = append(am.lanes, &l)
	}
	return nil
}

// ExportJSON serializes every mapping as a JSON array
func (lm *MIDILearnManager) ExportJSON() ([]byte, error) {
	mappings := lm.Mappings()
	data, err := json.MarshalIndent(mappings, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export midi mappings: %w", err)
	}
	return data, nil
}

// ImportJSON replaces all mappings with the decoded array, under the
// same no-partial-mutation contract as lane import. Ids are
// regenerated.
func (lm *MIDILearnManager) ImportJSON(data []byte) error {
	var staged []MIDIMapping
	if err := json.Unmarshal(data, &staged); err != nil {
		return fmt.Errorf("import midi mappings: %w", err)
	}
	for i := range staged {
		if staged[i].CC > 127 {
			return fmt.Errorf("import midi mappings: mapping %d has cc %d out of range", i, staged[i].CC)
		}
		if staged[i].Channel > 15 {
			return fmt.Errorf("import midi mappings: mapping %d has channel %d out of range", i, staged[i].Channel)
		}
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.mappings = lm.mappings[:0]
	for _, m := range staged {
		lm.nextID++
		m.ID = fmt.Sprintf("map-%d", lm.nextID)
		stored := m
		lm.mappings = append(lm.mappings, &stored)
	}
	return nil
}
