package npc

import (
	"encoding/json"
	"math"
)

// Schema sent to the completion API with strict conformance requested. It
// mirrors the persisted NPC shape plus the ephemeral appearance_desc field;
// additionalProperties is forbidden at every level.
var GenerationSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "race": {"type": "string", "minLength": 1},
    "subrace": {"type": ["string", "null"]},
    "class": {"type": "string", "minLength": 1},
    "level": {"type": "integer", "minimum": 1, "maximum": 5},
    "gender": {"type": "string"},
    "age": {"type": "integer", "minimum": 10, "maximum": 500},
    "alignment": {"type": "string"},
    "background": {"type": "string"},
    "personality_type": {"type": "string"},
    "bio": {"type": "string"},
    "short_pitch": {"type": "string"},
    "appearance_desc": {"type": "string"},
    "stats": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "str": {"type": "integer", "minimum": 6, "maximum": 20},
        "dex": {"type": "integer", "minimum": 6, "maximum": 20},
        "con": {"type": "integer", "minimum": 6, "maximum": 20},
        "int": {"type": "integer", "minimum": 6, "maximum": 20},
        "wis": {"type": "integer", "minimum": 6, "maximum": 20},
        "cha": {"type": "integer", "minimum": 6, "maximum": 20}
      },
      "required": ["str", "dex", "con", "int", "wis", "cha"]
    }
  },
  "required": [
    "name", "race", "subrace", "class", "level", "gender", "age",
    "alignment", "background", "personality_type", "bio",
    "short_pitch", "appearance_desc", "stats"
  ]
}`)

var requiredKeys = []string{
	"name", "race", "subrace", "class", "level", "gender", "age",
	"alignment", "background", "personality_type", "bio",
	"short_pitch", "appearance_desc", "stats",
}

var statKeys = []string{"str", "dex", "con", "int", "wis", "cha"}

// ValidatePayload reports whether a decoded JSON value is structurally a
// valid NPC payload: an object with all required keys, a stats object, and
// six integer ability scores in [6,20]. It never panics and performs no I/O.
func ValidatePayload(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	for _, k := range requiredKeys {
		if _, ok := obj[k]; !ok {
			return false
		}
	}

	stats, ok := obj["stats"].(map[string]any)
	if !ok {
		return false
	}
	for _, k := range statKeys {
		raw, ok := stats[k]
		if !ok {
			return false
		}
		// encoding/json decodes numbers as float64; an integer score must
		// have no fractional part.
		f, ok := raw.(float64)
		if !ok || f != math.Trunc(f) {
			return false
		}
		if f < 6 || f > 20 {
			return false
		}
	}
	return true
}

// Payload is the strict deserialization of a validated generation response.
type Payload struct {
	Name            string  `json:"name"`
	Race            string  `json:"race"`
	Subrace         *string `json:"subrace"`
	Class           string  `json:"class"`
	Level           int     `json:"level"`
	Gender          string  `json:"gender"`
	Age             int     `json:"age"`
	Alignment       string  `json:"alignment"`
	Background      string  `json:"background"`
	PersonalityType string  `json:"personality_type"`
	Bio             string  `json:"bio"`
	ShortPitch      string  `json:"short_pitch"`
	AppearanceDesc  string  `json:"appearance_desc"`
	Stats           struct {
		Str *int `json:"str"`
		Dex *int `json:"dex"`
		Con *int `json:"con"`
		Int *int `json:"int"`
		Wis *int `json:"wis"`
		Cha *int `json:"cha"`
	} `json:"stats"`
}

// DecodePayload parses a raw completion into a Payload. Callers validate the
// document with ValidatePayload first.
func DecodePayload(raw []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func statOrDefault(v *int) int {
	if v == nil {
		return 10
	}
	return *v
}
