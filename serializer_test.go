package jobline

import "testing"

func TestJSONSerializerRoundTrip(t *testing.T) {
	s := jsonSerializer{}
	data, err := s.Serialize(map[string]interface{}{"a": 1, "b": "two"})
	if err != nil {
		t.Fatalf("Serialize failed with %v", err)
	}
	var out map[string]interface{}
	if err := s.Deserialize(data, &out); err != nil {
		t.Fatalf("Deserialize failed with %v", err)
	}
	if have, want := out["b"], "two"; have != want {
		t.Fatalf("b = %v, want %v", have, want)
	}
}

func TestJSONSerializerEmptyPayload(t *testing.T) {
	s := jsonSerializer{}
	data, err := s.Serialize(emptyPayload)
	if err != nil {
		t.Fatalf("Serialize failed with %v", err)
	}
	if have, want := data, "{}"; have != want {
		t.Fatalf("Serialize(empty) = %q, want %q", have, want)
	}
}
