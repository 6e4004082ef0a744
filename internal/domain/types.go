package domain

import (
	"strings"
	"time"
)

type SessionID string
type KeepsakeID string

type Timestamp = time.Time

// Mood is the emotional register the letter is written in.
type Mood string

const (
	MoodNostalgic   Mood = "nostalgic"
	MoodBittersweet Mood = "bittersweet"
	MoodHopeful     Mood = "hopeful"
	MoodGrieving    Mood = "grieving"
)

// Moods lists every accepted mood, in display order.
var Moods = []Mood{MoodNostalgic, MoodBittersweet, MoodHopeful, MoodGrieving}

// ParseMood accepts a mood name in any case. ok is false for unknown moods.
func ParseMood(s string) (Mood, bool) {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Moods {
		if m == known {
			return m, true
		}
	}
	return "", false
}

// MemoryInput is what the user tells us about the person they remember.
// It is immutable once submitted.
type MemoryInput struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Detail       string `json:"detail"`
	Mood         Mood   `json:"mood"`
}

// Complete reports whether all four fields are filled in.
func (in MemoryInput) Complete() bool {
	return strings.TrimSpace(in.Name) != "" &&
		strings.TrimSpace(in.Relationship) != "" &&
		strings.TrimSpace(in.Detail) != "" &&
		strings.TrimSpace(string(in.Mood)) != ""
}

// Citation is a web source the model used while grounding the letter.
type Citation struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Letter is the output of the letter call. ImagePrompt is only set when the
// structured (JSON) letter format is used.
type Letter struct {
	Text        string
	ImagePrompt string
	Citations   []Citation
}

// GenerationResult is built incrementally: the letter first, then the image
// and the voice are patched in as their calls complete. ImageURL and AudioData
// may stay empty forever if their calls fail.
type GenerationResult struct {
	Letter      string     `json:"letter"`
	ImagePrompt string     `json:"image_prompt,omitempty"`
	ImageURL    string     `json:"image_url"`
	AudioData   string     `json:"audio_data,omitempty"`
	Citations   []Citation `json:"citations,omitempty"`
}

// Clone returns a deep copy safe to hand to readers.
func (r GenerationResult) Clone() GenerationResult {
	out := r
	if r.Citations != nil {
		out.Citations = append([]Citation(nil), r.Citations...)
	}
	return out
}

// HasAudio reports whether a voice payload is present.
func (r GenerationResult) HasAudio() bool {
	return r.AudioData != ""
}

// Keepsake is an archived generation.
type Keepsake struct {
	ID        KeepsakeID       `json:"id"`
	SessionID SessionID        `json:"session_id"`
	Input     MemoryInput      `json:"input"`
	Result    GenerationResult `json:"result"`
	CreatedAt Timestamp        `json:"created_at"`
	UpdatedAt Timestamp        `json:"updated_at"`
}
