package core

import (
	"encoding/json"
	"testing"
)

func TestJSONBinder(t *testing.T) {
	var v map[string]any
	if err := (JSONBinder{}).Bind([]byte(`{"a":1}`), &v); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if v["a"] != float64(1) {
		t.Errorf("a = %v (%T)", v["a"], v["a"])
	}

	if err := (JSONBinder{UseNumber: true}).Bind([]byte(`{"a":1}`), &v); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, ok := v["a"].(json.Number); !ok {
		t.Errorf("a = %T, want json.Number", v["a"])
	}

	if err := (JSONBinder{}).Bind([]byte(`{"a":1} {"b":2}`), &v); err == nil {
		t.Error("expected error for trailing data")
	}
	if err := (JSONBinder{}).Bind([]byte(`{`), &v); err == nil {
		t.Error("expected error for truncated body")
	}
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"QUESTION_FAILED","payload":{"questionId":9}}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if env.Type != TypeQuestionFailed {
		t.Errorf("Type = %q", env.Type)
	}
	if env.Payload["questionId"] != float64(9) {
		t.Errorf("payload = %v", env.Payload)
	}

	if _, err := DecodeEnvelope([]byte(`[]`)); err == nil {
		t.Error("expected error for non-object body")
	}
}
