package aiclient

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON indicates the model reply contained no parseable JSON object.
var ErrNoJSON = errors.New("no JSON object in model response")

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON pulls the outermost JSON object out of a model reply. Models
// routinely wrap their answer in prose or markdown fences; callers get back
// just the object, or ErrNoJSON.
func ExtractJSON(reply string) (json.RawMessage, error) {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	match := jsonObjectPattern.FindString(cleaned)
	if match == "" {
		return nil, ErrNoJSON
	}
	if !json.Valid([]byte(match)) {
		return nil, ErrNoJSON
	}
	return json.RawMessage(match), nil
}
