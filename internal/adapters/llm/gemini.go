package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/PabloGalante/keepsake/internal/domain"
	"github.com/PabloGalante/keepsake/internal/observability"
	"github.com/PabloGalante/keepsake/internal/retry"
)

// modelAPI is the slice of *genai.Models we use.
type modelAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiOptions selects models and per-call retry budgets.
type GeminiOptions struct {
	LetterModel string
	ImageModel  string
	VoiceModel  string
	VoiceName   string
	AspectRatio string

	Format    domain.LetterFormat
	Grounding bool

	LetterRetry retry.Policy
	ImageRetry  retry.Policy
	VoiceRetry  retry.Policy
}

// GeminiClient implements domain.Generator on the Gemini API.
type GeminiClient struct {
	models    modelAPI
	opts      GeminiOptions
	retryOpts []retry.Option
}

// NewGeminiClient creates a Generator backed by the Gemini API.
func NewGeminiClient(ctx context.Context, apiKey string, opts GeminiOptions) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, domain.ErrMissingCredential
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	return newGeminiClient(client.Models, opts), nil
}

func newGeminiClient(models modelAPI, opts GeminiOptions, retryOpts ...retry.Option) *GeminiClient {
	if opts.Format == "" {
		opts.Format = domain.LetterFormatText
	}
	if opts.AspectRatio == "" {
		opts.AspectRatio = "16:9"
	}
	if opts.VoiceName == "" {
		opts.VoiceName = "Kore"
	}
	return &GeminiClient{models: models, opts: opts, retryOpts: retryOpts}
}

// ─────────────────────────────────────────────
// Letter
// ─────────────────────────────────────────────

type structuredLetter struct {
	Letter      string `json:"letter"`
	ImagePrompt string `json:"imagePrompt"`
}

var structuredLetterSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"letter":      {Type: genai.TypeString},
		"imagePrompt": {Type: genai.TypeString},
	},
	Required: []string{"letter", "imagePrompt"},
}

// WriteLetter implements domain.LetterWriter.
func (g *GeminiClient) WriteLetter(ctx context.Context, in domain.MemoryInput) (domain.Letter, error) {
	log := observability.LoggerFromContext(ctx).With("operation", observability.OpLetter)

	temp := float32(0.9)
	cfg := &genai.GenerateContentConfig{
		Temperature: &temp,
	}

	grounding := g.opts.Grounding
	if g.opts.Format == domain.LetterFormatJSON {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = structuredLetterSchema
		if grounding {
			// the API rejects search tools together with a response schema
			log.Warn("grounding is ignored for the json letter format")
			grounding = false
		}
	}
	if grounding {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	prompt := BuildLetterPrompt(in, g.opts.Format, grounding)
	res, err := g.call(ctx, observability.OpLetter, g.opts.LetterRetry, g.opts.LetterModel, genai.Text(prompt), cfg)
	if err != nil {
		return domain.Letter{}, err
	}

	letter := parseLetter(responseText(res), g.opts.Format)
	if strings.TrimSpace(letter.Text) == "" {
		log.Warn("model returned an empty letter, using fallback")
		letter.Text = FallbackLetter
		observability.GenerationCalls.WithLabelValues(observability.OpLetter, observability.OutcomeEmpty).Inc()
	} else {
		observability.GenerationCalls.WithLabelValues(observability.OpLetter, observability.OutcomeOK).Inc()
	}
	letter.Citations = citationsFrom(res)

	log.Info("letter generated", "chars", len(letter.Text), "citations", len(letter.Citations))
	return letter, nil
}

func parseLetter(text string, format domain.LetterFormat) domain.Letter {
	if format != domain.LetterFormatJSON {
		return domain.Letter{Text: strings.TrimSpace(text)}
	}

	var out structuredLetter
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &out); err != nil {
		// a model that ignores the schema still wrote something worth keeping
		return domain.Letter{Text: strings.TrimSpace(text)}
	}
	return domain.Letter{
		Text:        strings.TrimSpace(out.Letter),
		ImagePrompt: strings.TrimSpace(out.ImagePrompt),
	}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// citationsFrom keeps the web grounding chunks that have both a URI and a
// title, in the order the model returned them.
func citationsFrom(res *genai.GenerateContentResponse) []domain.Citation {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0] == nil {
		return nil
	}
	md := res.Candidates[0].GroundingMetadata
	if md == nil {
		return nil
	}

	var out []domain.Citation
	for _, chunk := range md.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		if chunk.Web.URI == "" || chunk.Web.Title == "" {
			continue
		}
		out = append(out, domain.Citation{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}
	return out
}

// ─────────────────────────────────────────────
// Image
// ─────────────────────────────────────────────

// Illustrate implements domain.Illustrator. It returns a data URI.
func (g *GeminiClient) Illustrate(ctx context.Context, in domain.MemoryInput, letter domain.Letter) (string, error) {
	prompt := letter.ImagePrompt
	if prompt == "" {
		prompt = BuildImagePrompt(in, letter.Text)
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage)},
		ImageConfig:        &genai.ImageConfig{AspectRatio: g.opts.AspectRatio},
	}

	res, err := g.call(ctx, observability.OpImage, g.opts.ImageRetry, g.opts.ImageModel, genai.Text(WithImageStyle(prompt)), cfg)
	if err != nil {
		return "", err
	}

	for _, part := range firstCandidateParts(res) {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mime := part.InlineData.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		observability.GenerationCalls.WithLabelValues(observability.OpImage, observability.OutcomeOK).Inc()
		return domain.DataURI(mime, part.InlineData.Data), nil
	}

	observability.GenerationCalls.WithLabelValues(observability.OpImage, observability.OutcomeEmpty).Inc()
	return "", domain.ErrNoImageData
}

// ─────────────────────────────────────────────
// Voice
// ─────────────────────────────────────────────

// Narrate implements domain.Narrator. A response without audio yields "".
func (g *GeminiClient) Narrate(ctx context.Context, letterText string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.opts.VoiceName},
			},
		},
	}

	res, err := g.call(ctx, observability.OpVoice, g.opts.VoiceRetry, g.opts.VoiceModel, genai.Text(BuildNarrationPrompt(letterText)), cfg)
	if err != nil {
		return "", err
	}

	parts := firstCandidateParts(res)
	if len(parts) == 0 || parts[0] == nil || parts[0].InlineData == nil || len(parts[0].InlineData.Data) == 0 {
		observability.LoggerFromContext(ctx).Warn("voice response carried no audio", "operation", observability.OpVoice)
		observability.GenerationCalls.WithLabelValues(observability.OpVoice, observability.OutcomeEmpty).Inc()
		return "", nil
	}

	observability.GenerationCalls.WithLabelValues(observability.OpVoice, observability.OutcomeOK).Inc()
	return base64.StdEncoding.EncodeToString(parts[0].InlineData.Data), nil
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

// call runs one request through the retry wrapper and records metrics for
// failures. Callers record the success outcome themselves.
func (g *GeminiClient) call(
	ctx context.Context,
	op string,
	policy retry.Policy,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	log := observability.LoggerFromContext(ctx).With("operation", op, "model", model)
	start := time.Now()

	opts := append([]retry.Option{
		retry.WithNotify(func(err error, delay time.Duration) {
			observability.GenerationRetries.WithLabelValues(op).Inc()
			log.Warn("rate limited, retrying", "delay_ms", delay.Milliseconds(), "error", err)
		}),
	}, g.retryOpts...)

	res, err := retry.DoValue(ctx, policy, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return g.models.GenerateContent(ctx, model, contents, cfg)
	}, opts...)

	observability.GenerationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := observability.OutcomeError
		if retry.IsRateLimited(err) {
			outcome = observability.OutcomeRateLimited
		}
		observability.GenerationCalls.WithLabelValues(op, outcome).Inc()
		return nil, fmt.Errorf("gemini %s: %w", op, err)
	}
	return res, nil
}

func firstCandidateParts(res *genai.GenerateContentResponse) []*genai.Part {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0] == nil || res.Candidates[0].Content == nil {
		return nil
	}
	return res.Candidates[0].Content.Parts
}

// responseText joins the text parts of the first candidate, skipping thoughts.
func responseText(res *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, part := range firstCandidateParts(res) {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}
