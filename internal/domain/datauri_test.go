package domain

import (
	"bytes"
	"testing"
)

func TestDataURIRoundTrip(t *testing.T) {
	uri := DataURI("image/png", []byte{0x89, 'P', 'N', 'G'})
	if uri != "data:image/png;base64,iVBORw==" {
		t.Fatalf("unexpected uri %q", uri)
	}

	mime, data, err := ParseDataURI(uri)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mime != "image/png" || !bytes.Equal(data, []byte{0x89, 'P', 'N', 'G'}) {
		t.Fatalf("got %q %v", mime, data)
	}
}

func TestParseDataURIRejects(t *testing.T) {
	for _, in := range []string{"", "https://example.com/a.png", "data:image/png,raw", "data:image/png;base64"} {
		if _, _, err := ParseDataURI(in); err != ErrNotDataURI {
			t.Fatalf("%q: expected ErrNotDataURI, got %v", in, err)
		}
	}
	if _, _, err := ParseDataURI("data:image/png;base64,@@@"); err == nil {
		t.Fatal("expected base64 error")
	}
}

func TestMemoryInputComplete(t *testing.T) {
	in := MemoryInput{Name: "Anna", Relationship: "grandmother", Detail: "cinnamon", Mood: MoodNostalgic}
	if !in.Complete() {
		t.Fatal("expected complete input")
	}
	in.Relationship = "  "
	if in.Complete() {
		t.Fatal("blank relationship must be incomplete")
	}
}

func TestParseMood(t *testing.T) {
	if m, ok := ParseMood(" Grieving "); !ok || m != MoodGrieving {
		t.Fatalf("got %q %v", m, ok)
	}
	if _, ok := ParseMood("angry"); ok {
		t.Fatal("unknown mood accepted")
	}
}
