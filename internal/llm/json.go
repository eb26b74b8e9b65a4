package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when a model reply contains no JSON object.
var ErrNoJSON = errors.New("no json object in model reply")

// DecodeObject parses a model reply into a generic JSON object. Replies in
// free-text mode often wrap the object in markdown fences or prose, so the
// outermost {...} span is used when the whole reply does not parse.
func DecodeObject(reply string) (map[string]any, error) {
	reply = strings.TrimSpace(reply)

	var obj map[string]any
	if err := json.Unmarshal([]byte(reply), &obj); err == nil && obj != nil {
		return obj, nil
	}

	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, ErrNoJSON
	}
	return obj, nil
}
