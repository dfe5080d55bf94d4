package handler

import "encoding/json"

// jsonField tracks the difference between a JSON key being absent, explicitly
// null, and carrying a value. PATCH bodies need all three states: absent means
// "leave unchanged", null means "clear".
type jsonField[T any] struct {
	Present bool
	Value   *T
}

func (f *jsonField[T]) UnmarshalJSON(data []byte) error {
	f.Present = true
	if string(data) == "null" {
		f.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}

// Patch renders the field as the double pointer the service layer expects:
// nil when absent, pointer-to-nil when null, pointer-to-value otherwise.
func (f jsonField[T]) Patch() **T {
	if !f.Present {
		return nil
	}
	return &f.Value
}
