package npc

import (
	"encoding/json"
	"testing"
)

const validPayloadJSON = `{
  "name": "Mirella Thorn",
  "race": "Half-Elf",
  "subrace": null,
  "class": "Bard",
  "level": 3,
  "gender": "female",
  "age": 34,
  "alignment": "Chaotic Good",
  "background": "Entertainer",
  "personality_type": "ENFP",
  "bio": "A wandering performer with a debt she never mentions.",
  "short_pitch": "A silver-tongued bard hiding from her past.",
  "appearance_desc": "Auburn hair, patched traveling cloak, a lute on her back.",
  "stats": {"str": 8, "dex": 14, "con": 12, "int": 11, "wis": 10, "cha": 17}
}`

func decodeAny(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return v
}

func TestValidatePayload(t *testing.T) {
	cases := []struct {
		name string
		v    any
		want bool
	}{
		{"valid", decodeAny(t, validPayloadJSON), true},
		{"nil", nil, false},
		{"string", "hello", false},
		{"array", decodeAny(t, `[1,2,3]`), false},
		{"empty object", decodeAny(t, `{}`), false},
		{"stats is string", func() any {
			v := decodeAny(t, validPayloadJSON).(map[string]any)
			v["stats"] = "strong"
			return v
		}(), false},
		{"missing key", func() any {
			v := decodeAny(t, validPayloadJSON).(map[string]any)
			delete(v, "alignment")
			return v
		}(), false},
		{"missing stat", func() any {
			v := decodeAny(t, validPayloadJSON).(map[string]any)
			delete(v["stats"].(map[string]any), "cha")
			return v
		}(), false},
		{"fractional stat", func() any {
			v := decodeAny(t, validPayloadJSON).(map[string]any)
			v["stats"].(map[string]any)["str"] = 12.5
			return v
		}(), false},
		{"stat below range", func() any {
			v := decodeAny(t, validPayloadJSON).(map[string]any)
			v["stats"].(map[string]any)["dex"] = 5.0
			return v
		}(), false},
		{"stat above range", func() any {
			v := decodeAny(t, validPayloadJSON).(map[string]any)
			v["stats"].(map[string]any)["con"] = 21.0
			return v
		}(), false},
		{"stat is string", func() any {
			v := decodeAny(t, validPayloadJSON).(map[string]any)
			v["stats"].(map[string]any)["wis"] = "10"
			return v
		}(), false},
		{"boundary stats", func() any {
			v := decodeAny(t, validPayloadJSON).(map[string]any)
			stats := v["stats"].(map[string]any)
			stats["str"] = 6.0
			stats["cha"] = 20.0
			return v
		}(), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidatePayload(tc.v); got != tc.want {
				t.Fatalf("ValidatePayload = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload([]byte(validPayloadJSON))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Name != "Mirella Thorn" || p.Level != 3 {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if p.Subrace != nil {
		t.Fatalf("expected nil subrace, got %q", *p.Subrace)
	}
	if p.Stats.Cha == nil || *p.Stats.Cha != 17 {
		t.Fatalf("unexpected cha: %v", p.Stats.Cha)
	}
}

func TestStatOrDefault(t *testing.T) {
	if got := statOrDefault(nil); got != 10 {
		t.Fatalf("nil stat = %d, want 10", got)
	}
	v := 15
	if got := statOrDefault(&v); got != 15 {
		t.Fatalf("stat = %d, want 15", got)
	}
}
