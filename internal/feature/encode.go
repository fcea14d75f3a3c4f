package feature

// Encoder maps categorical string values to stable numeric indices.
// Categories first seen at inference time are appended and receive the
// next free index, so prediction never fails on an unseen label.
// Classes is exported for gob; the lookup index is rebuilt lazily.
type Encoder struct {
	Classes []string

	index map[string]int
}

// Fit registers the distinct values in first-seen order.
func (e *Encoder) Fit(values []string) {
	e.Classes = nil
	e.index = make(map[string]int)
	for _, v := range values {
		if _, ok := e.index[v]; !ok {
			e.index[v] = len(e.Classes)
			e.Classes = append(e.Classes, v)
		}
	}
}

// Transform encodes values, appending categories it has not seen.
func (e *Encoder) Transform(values []string) []float64 {
	e.ensureIndex()
	out := make([]float64, len(values))
	for i, v := range values {
		idx, ok := e.index[v]
		if !ok {
			idx = len(e.Classes)
			e.index[v] = idx
			e.Classes = append(e.Classes, v)
		}
		out[i] = float64(idx)
	}
	return out
}

func (e *Encoder) ensureIndex() {
	if e.index != nil {
		return
	}
	e.index = make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		e.index[c] = i
	}
}
