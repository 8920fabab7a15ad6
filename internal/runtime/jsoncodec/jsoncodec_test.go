package jsoncodec

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type testPayload struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
}

func TestMarshalAndUnmarshal(t *testing.T) {
	in := testPayload{ID: 42, Email: "test@test.com"}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out testPayload
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out != in {
		t.Fatalf("expected round trip to match, got %#v", out)
	}

	indented, err := MarshalIndent(in, "", "  ")
	if err != nil {
		t.Fatalf("marshal indent failed: %v", err)
	}
	if !strings.Contains(string(indented), "\n  \"id\"") {
		t.Fatalf("expected indented output, got %s", string(indented))
	}
}

func TestMarshalWireKeepsHTMLCharacters(t *testing.T) {
	data, err := MarshalWire(map[string]string{"q": "a<b&c"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"q":"a<b&c"}` {
		t.Fatalf("unexpected output %s", data)
	}
}

func TestUnmarshalNumberPreservesIntegers(t *testing.T) {
	var out map[string]any
	if err := UnmarshalNumber([]byte(`{"id":9007199254740993}`), &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	num, ok := out["id"].(json.Number)
	if !ok {
		t.Fatalf("expected json.Number, got %T", out["id"])
	}
	if num.String() != "9007199254740993" {
		t.Fatalf("expected exact digits, got %s", num)
	}
}

func TestValid(t *testing.T) {
	if !Valid([]byte(`{"a":1}`)) {
		t.Fatal("expected valid document")
	}
	if Valid([]byte(`{"a":`)) {
		t.Fatal("expected truncated document to be invalid")
	}
}

func TestEncodeAndDecode(t *testing.T) {
	buf := &bytes.Buffer{}
	payload := testPayload{ID: 7, Email: "stream@test.com"}

	if err := Encode(buf, payload); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var decoded testPayload
	if err := Decode(buf, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != payload {
		t.Fatalf("expected decoded payload to match, got %#v", decoded)
	}
}
