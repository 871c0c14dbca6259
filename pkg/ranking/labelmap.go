package ranking

import "fmt"

// alphabet bounds the label space to A..Z: max 26 raters, failing models
// reduce the count.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// MaxLabels is the largest council that can be anonymized with single-letter
// labels.
const MaxLabels = len(alphabet)

// LabelMap is the bijection between opaque labels ("Response A", ...) and
// real model IDs, valid only within one stage-2 invocation.
type LabelMap struct {
	labelToModel map[string]string
	modelToLabel map[string]string
	order        []string // labels in assignment order
}

// NewLabelMap builds a LabelMap assigning labels A, B, C... to models in
// insertion order, matching the stage-2 prompt rule. Returns an error if
// there are more models than the alphabet supports.
func NewLabelMap(models []string) (*LabelMap, error) {
	if len(models) > MaxLabels {
		return nil, fmt.Errorf("ranking: %d models exceeds max label alphabet of %d", len(models), MaxLabels)
	}
	lm := &LabelMap{
		labelToModel: make(map[string]string, len(models)),
		modelToLabel: make(map[string]string, len(models)),
		order:        make([]string, 0, len(models)),
	}
	for i, model := range models {
		label := fmt.Sprintf("Response %c", alphabet[i])
		lm.labelToModel[label] = model
		lm.modelToLabel[model] = label
		lm.order = append(lm.order, label)
	}
	return lm, nil
}

// Label returns the label assigned to model, and whether one exists.
func (lm *LabelMap) Label(model string) (string, bool) {
	l, ok := lm.modelToLabel[model]
	return l, ok
}

// Model resolves a label back to its real model ID. Labels outside the map
// are ignored — a label not in the LabelMap contributes nothing.
func (lm *LabelMap) Model(label string) (string, bool) {
	m, ok := lm.labelToModel[label]
	return m, ok
}

// Labels returns the assigned labels in order.
func (lm *LabelMap) Labels() []string {
	return append([]string(nil), lm.order...)
}
