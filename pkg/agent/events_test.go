package agent

import (
	"encoding/json"
	"testing"
)

func TestStepDataMarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		data StepData
		want string
	}{
		{"text payload", Text("searching the web"), `"searching the web"`},
		{"empty text", Text(""), `""`},
		{"list payload", List([]string{"q1", "q2"}), `["q1","q2"]`},
		{"empty list stays an array", List([]string{}), `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.data)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEventMarshalShape(t *testing.T) {
	ev := stepEvent("Web Research", List([]string{"golang news"}))
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded struct {
		Type  string          `json:"type"`
		Title string          `json:"title"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Type != EventStep {
		t.Errorf("type = %q, want %q", decoded.Type, EventStep)
	}
	if decoded.Title != "Web Research" {
		t.Errorf("title = %q, want %q", decoded.Title, "Web Research")
	}
	if string(decoded.Data) != `["golang news"]` {
		t.Errorf("data = %s, want %s", decoded.Data, `["golang news"]`)
	}

	// Terminal events omit step fields entirely.
	raw, err = json.Marshal(completeEvent(Result{Query: "q", Answer: "a"}))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, ok := m["data"]; ok {
		t.Error("complete event should not carry a data field")
	}
	if _, ok := m["result"]; !ok {
		t.Error("complete event should carry a result field")
	}
}
