package llm

import (
	"fmt"
	"strings"

	"github.com/PabloGalante/keepsake/internal/domain"
)

// FallbackLetter is used when the model answers with no text at all.
const FallbackLetter = "Some memories are too tender for words. Hold this one close; it is still yours, and it is still warm."

const letterInstructions = `
You are a gentle, literary letter writer. Someone wants to remember a person
they love. Write a short letter addressed directly to that person, in the
voice of the one remembering.

Writing guidelines:
- Write in the SAME LANGUAGE as the details below.
- 150 to 250 words, 3 to 5 short paragraphs.
- Build the letter around the specific detail given; make it concrete and sensory.
- Poetic but plain: no clichés, no rhyming, no headings, no lists.
- Do not invent facts that contradict the details.
- Sign off with a single line, without a name.
`

const jsonInstructions = `
Answer with a JSON object with two fields:
- "letter": the full letter text.
- "imagePrompt": one or two sentences describing a single evocative scene from
  the memory for an illustrator. Describe light, place and objects; no people's faces, no text.
`

const groundingInstructions = `
If the detail mentions a real place, era, song or custom, you may look it up
and weave one accurate, evocative fact into the letter.
`

// ImageStyleSuffix is appended to every image prompt.
const ImageStyleSuffix = " Style: cinematic still, nostalgic, soft warm light, shallow depth of field, subtle film grain, muted colors. Absolutely no text, letters or words in the image."

const narrationInstruction = "Read the following letter aloud with gentle, profound emotion, slowly, as if speaking to someone you miss:"

// BuildLetterPrompt embeds the four memory fields with tone and length
// instructions for the chosen mood.
func BuildLetterPrompt(in domain.MemoryInput, format domain.LetterFormat, grounding bool) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(letterInstructions))
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(moodInstructions(in.Mood)))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "The person: %s\n", strings.TrimSpace(in.Name))
	fmt.Fprintf(&b, "Who they were to me: %s\n", strings.TrimSpace(in.Relationship))
	fmt.Fprintf(&b, "A detail I remember: %s\n", strings.TrimSpace(in.Detail))
	fmt.Fprintf(&b, "Mood: %s\n", in.Mood)

	if format == domain.LetterFormatJSON {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(jsonInstructions))
		b.WriteString("\n")
	} else if grounding {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(groundingInstructions))
		b.WriteString("\n")
	}

	return b.String()
}

// BuildImagePrompt describes a scene when no precomputed image prompt exists.
func BuildImagePrompt(in domain.MemoryInput, letterText string) string {
	excerpt := firstSentence(letterText)
	prompt := fmt.Sprintf(
		"An illustration of a memory of %s, my %s: %s. The feeling is %s.",
		strings.TrimSpace(in.Name),
		strings.TrimSpace(in.Relationship),
		strings.TrimSpace(in.Detail),
		in.Mood,
	)
	if excerpt != "" {
		prompt += " Inspired by the words: \"" + excerpt + "\""
	}
	return prompt
}

// WithImageStyle appends the fixed style suffix.
func WithImageStyle(prompt string) string {
	return strings.TrimSpace(prompt) + ImageStyleSuffix
}

// BuildNarrationPrompt wraps the letter in the narration instruction.
func BuildNarrationPrompt(letterText string) string {
	return narrationInstruction + "\n\n" + strings.TrimSpace(letterText)
}

func moodInstructions(mood domain.Mood) string {
	switch mood {
	case domain.MoodBittersweet:
		return "Tone: bittersweet. Let joy and loss sit side by side; end on a quiet, honest note."
	case domain.MoodHopeful:
		return "Tone: hopeful. Gratitude and light; end looking forward, carrying the memory along."
	case domain.MoodGrieving:
		return "Tone: grieving. Tender and unhurried; name the absence softly, do not try to fix it."
	case domain.MoodNostalgic:
		fallthrough
	default:
		return "Tone: nostalgic. Warm and wistful; linger on the small details of the past."
	}
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if i := strings.IndexAny(text, ".!?\n"); i > 0 {
		text = text[:i]
	}
	const max = 160
	if r := []rune(text); len(r) > max {
		text = string(r[:max])
	}
	return strings.TrimSpace(text)
}
