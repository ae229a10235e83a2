package api

import (
	"encoding/json"
	"strings"
)

// NonFieldErrorsKey holds validation messages not tied to a single field.
const NonFieldErrorsKey = "non_field_errors"

// ValidationErrors is a 400 body: field name to messages. The service sends
// either a list of strings or a single string per field; both decode.
type ValidationErrors map[string]Messages

// Messages is the list of messages for one field.
type Messages []string

func (m *Messages) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*m = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*m = Messages{single}
	return nil
}

// Has reports whether field has at least one message.
func (v ValidationErrors) Has(field string) bool {
	return len(v[field]) > 0
}

// Contains reports whether any message of field contains substr.
func (v ValidationErrors) Contains(field, substr string) bool {
	for _, msg := range v[field] {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// NonField returns the messages not tied to a field.
func (v ValidationErrors) NonField() []string {
	return v[NonFieldErrorsKey]
}
