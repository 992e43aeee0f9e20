package jsonvalue

import (
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	obj := NewObject()
	obj.Set("id", String("srcA"))
	obj.Set("verbosity", Int(3))
	obj.Set("ok", Bool(true))
	obj.Set("nothing", Null())
	obj.Set("samples", Array(Int(1), Int(2), Int(3)))

	v := Obj(obj)
	encoded := Encode(v)

	decoded, err := Parse([]byte(encoded))
	if err != nil {
		t.Fatalf("Parse(%q): %v", encoded, err)
	}
	if decoded.Kind() != KindObject {
		t.Fatalf("round trip changed kind: got %v", decoded.Kind())
	}

	again := Encode(decoded)
	if again != encoded {
		t.Fatalf("re-encoding is not idempotent:\n  first:  %s\n  second: %s", encoded, again)
	}
}

func TestParseControlProtocolExample(t *testing.T) {
	// a GetIDs reply envelope: ["GetIDs", 0, ["srcA","srcB"]]
	data := []byte(`["GetIDs", 0, ["srcA","srcB"]]`)
	v, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	arr := v.AsArray()
	if len(arr) != 3 {
		t.Fatalf("expected 3-element response array, got %d", len(arr))
	}
	if arr[0].AsString() != "GetIDs" {
		t.Fatalf("command mismatch: %q", arr[0].AsString())
	}
	if arr[1].AsInt() != 0 {
		t.Fatalf("token mismatch: %d", arr[1].AsInt())
	}
	ids := arr[2].AsArray()
	if len(ids) != 2 || ids[0].AsString() != "srcA" || ids[1].AsString() != "srcB" {
		t.Fatalf("id payload mismatch: %v", ids)
	}
}

func TestParseDuplicateKeyRejected(t *testing.T) {
	_, err := Parse([]byte(`{"a":1,"a":2}`))
	if err == nil {
		t.Fatal("expected duplicate key error, got nil")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	_, err := Parse([]byte(`1 2`))
	if err == nil {
		t.Fatal("expected trailing-data error, got nil")
	}
}

func TestEncodeStringEscaping(t *testing.T) {
	got := Encode(String("a\"b\\c\nd\te\x01"))
	want := `"a\"b\\c\nd\te"`
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestParseUnicodeEscapeSurrogatePair(t *testing.T) {
	// U+1F600 GRINNING FACE encoded as a surrogate pair.
	v, err := Parse([]byte(`"\ud83d\ude00"`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v.AsString() != "\U0001F600" {
		t.Fatalf("got %q", v.AsString())
	}
}

func TestEncodeSurrogatePairRoundTrip(t *testing.T) {
	original := "\U0001F600"
	encoded := Encode(String(original))
	decoded, err := Parse([]byte(encoded))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if decoded.AsString() != original {
		t.Fatalf("round trip mismatch: got %q want %q", decoded.AsString(), original)
	}
}

func TestNumberFormatting(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{-5, "-5"},
		{3.5, "3.5"},
		{1e20, "1e+20"},
	}
	for _, c := range cases {
		got := Encode(Number(c.in))
		if got != c.want {
			t.Errorf("Encode(Number(%v)) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestObjectAddDuplicate(t *testing.T) {
	obj := NewObject()
	if err := obj.Add("k", Int(1)); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := obj.Add("k", Int(2)); err == nil {
		t.Fatal("expected ErrDuplicateKey on second Add")
	}
}
