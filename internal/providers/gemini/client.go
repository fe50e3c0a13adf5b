package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"voicewidget/internal/domain"
)

// Config controls Gemini model calls.
type Config struct {
	APIKey      string
	Model       string
	SiteContext string
}

// transcriptionInstruction asks for verbatim transcript text only.
const transcriptionInstruction = "Transkribiere diese Audioaufnahme exakt. Gib NUR den Text zurück."

// msgUnprocessable replaces an empty fallback reply.
const msgUnprocessable = "Ich konnte das leider nicht verarbeiten."

// contentCaller is the slice of the genai client the provider uses.
type contentCaller interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements both the transcription adapter and the fallback model on
// one Gemini client.
type Client struct {
	caller contentCaller
	cfg    Config
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is not configured")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{caller: client.Models, cfg: cfg}, nil
}

func newWithCaller(caller contentCaller, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	return &Client{caller: caller, cfg: cfg}
}

// Transcribe sends the artifact bytes inline and returns the verbatim
// transcript. An empty transcript is not an error; the pipeline substitutes
// its own placeholder.
func (c *Client) Transcribe(ctx context.Context, artifact domain.Artifact) (string, error) {
	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				genai.NewPartFromBytes(artifact.Data, artifact.MIMEType),
				genai.NewPartFromText(transcriptionInstruction),
			},
		},
	}

	resp, err := c.caller.GenerateContent(ctx, c.cfg.Model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Generate produces a direct model reply when the workflow backend is
// unavailable. The system instruction embeds the selected topic and the site
// context.
func (c *Client) Generate(ctx context.Context, topic domain.Topic, message string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(BuildSystemPrompt(topic, c.cfg.SiteContext), genai.RoleUser),
	}
	contents := []*genai.Content{
		genai.NewContentFromText(message, genai.RoleUser),
	}

	resp, err := c.caller.GenerateContent(ctx, c.cfg.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return msgUnprocessable, nil
	}
	return text, nil
}

// BuildSystemPrompt assembles the fallback system instruction.
func BuildSystemPrompt(topic domain.Topic, siteContext string) string {
	var b strings.Builder
	b.WriteString("Du bist ein hilfreicher Assistent für eine Firmen-Wissensdatenbank. ")
	b.WriteString(siteContext)
	b.WriteString("\n\nDer Besucher hat das Thema \"")
	b.WriteString(string(topic))
	b.WriteString("\" gewählt. ")
	b.WriteString("Antworte mit gut strukturiertem Markdown (nutze Fettungen, Listen und Absätze wo sinnvoll).")
	return b.String()
}
