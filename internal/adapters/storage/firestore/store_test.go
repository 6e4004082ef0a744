package firestore

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/PabloGalante/keepsake/internal/domain"
)

// firestoreDocLimit is the maximum size of one Firestore document.
const firestoreDocLimit = 1_048_576

func docSize(doc keepsakeDoc) int {
	n := len(doc.SessionID) + len(doc.Name) + len(doc.Relationship) + len(doc.Detail) +
		len(doc.Mood) + len(doc.Letter) + len(doc.ImagePrompt)
	for _, c := range doc.Citations {
		n += len(c.Title) + len(c.URI)
	}
	// field names, timestamps and counters
	return n + 512
}

func realisticKeepsake() *domain.Keepsake {
	// 90 s of 24 kHz mono PCM16 and a 1.5 MB image
	audio := base64.StdEncoding.EncodeToString(make([]byte, 24000*2*90))
	image := domain.DataURI("image/png", make([]byte, 1_500_000))
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	return &domain.Keepsake{
		ID:        "k1",
		SessionID: "s1",
		Input: domain.MemoryInput{
			Name:         "Anna",
			Relationship: "grandmother",
			Detail:       "smell of cinnamon",
			Mood:         domain.MoodNostalgic,
		},
		Result: domain.GenerationResult{
			Letter:    strings.Repeat("Dear Anna, the kitchen still smells of cinnamon. ", 40),
			ImageURL:  image,
			AudioData: audio,
			Citations: []domain.Citation{{Title: "Cinnamon", URI: "https://example.com/c"}},
		},
		CreatedAt: created,
		UpdatedAt: created.Add(time.Second),
	}
}

func TestToDocStaysUnderDocumentLimit(t *testing.T) {
	k := realisticKeepsake()
	doc, chunks := toDoc(k)

	if size := docSize(doc); size >= firestoreDocLimit {
		t.Fatalf("main document is %d bytes, limit is %d", size, firestoreDocLimit)
	}
	for _, c := range chunks {
		if len(c.Data)+len(c.Field)+64 >= firestoreDocLimit {
			t.Fatalf("chunk %s-%d is %d bytes", c.Field, c.Index, len(c.Data))
		}
	}
	if doc.AudioChunks < 2 || doc.ImageChunks < 2 {
		t.Fatalf("expected payloads to be split, got image=%d audio=%d", doc.ImageChunks, doc.AudioChunks)
	}
	if len(chunks) != doc.ImageChunks+doc.AudioChunks {
		t.Fatalf("chunk count mismatch: %d vs %d+%d", len(chunks), doc.ImageChunks, doc.AudioChunks)
	}
}

func TestDocRoundTripKeepsFields(t *testing.T) {
	k := realisticKeepsake()

	doc, chunks := toDoc(k)
	// chunks may come back in any order
	for i, j := 0, len(chunks)-1; i < j; i, j = i+1, j-1 {
		chunks[i], chunks[j] = chunks[j], chunks[i]
	}
	got := fromDoc("k1", doc, chunks)

	if got.Input != k.Input {
		t.Fatalf("input mismatch: %+v", got.Input)
	}
	if got.Result.Letter != k.Result.Letter {
		t.Fatalf("letter mismatch")
	}
	if got.Result.ImageURL != k.Result.ImageURL {
		t.Fatalf("image mismatch: %d vs %d bytes", len(got.Result.ImageURL), len(k.Result.ImageURL))
	}
	if got.Result.AudioData != k.Result.AudioData {
		t.Fatalf("audio mismatch: %d vs %d bytes", len(got.Result.AudioData), len(k.Result.AudioData))
	}
	if len(got.Result.Citations) != 1 || got.Result.Citations[0] != k.Result.Citations[0] {
		t.Fatalf("citations mismatch: %+v", got.Result.Citations)
	}
	if !got.UpdatedAt.Equal(k.UpdatedAt) || got.SessionID != "s1" {
		t.Fatalf("metadata mismatch: %+v", got)
	}
}

func TestToDocWithoutPayloads(t *testing.T) {
	k := realisticKeepsake()
	k.Result.ImageURL = ""
	k.Result.AudioData = ""

	doc, chunks := toDoc(k)
	if len(chunks) != 0 || doc.ImageChunks != 0 || doc.AudioChunks != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}

	got := fromDoc("k1", doc, nil)
	if got.Result.ImageURL != "" || got.Result.HasAudio() {
		t.Fatalf("expected empty payloads, got %+v", got.Result)
	}
	if got.Result.Citations == nil {
		t.Fatalf("expected citations to survive")
	}
}

func TestFromDocWithoutCitations(t *testing.T) {
	got := fromDoc("k2", keepsakeDoc{Letter: "hi", Citations: nil}, nil)
	if got.Result.Citations != nil {
		t.Fatalf("expected nil citations, got %+v", got.Result.Citations)
	}
}
