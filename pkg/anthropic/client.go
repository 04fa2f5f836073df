package anthropic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client defines the Anthropic API operations used by the pipeline.
type Client interface {
	UploadFile(ctx context.Context, path string) (string, error)
	CreateDocumentMessage(ctx context.Context, req DocumentMessageRequest) (*MessageResponse, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// DocumentMessageRequest asks the model to read an uploaded file and answer
// the prompt about it.
type DocumentMessageRequest struct {
	Model     string
	MaxTokens int64
	System    string
	FileID    string
	Prompt    string
}

// MessageResponse is our own response type from CreateDocumentMessage.
type MessageResponse struct {
	ID         string
	Model      string
	Content    []ContentBlock
	StopReason string
	Usage      TokenUsage
}

// ContentBlock represents a block of content in a response.
type ContentBlock struct {
	Type string
	Text string
}

// Text concatenates the text blocks of the response.
func (r *MessageResponse) Text() string {
	var out string
	for _, b := range r.Content {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// modelPricing holds per-million-token pricing for known models.
var modelPricing = map[string][2]float64{
	// model → {input $/MTok, output $/MTok}
	"claude-haiku-4-5-20251001":  {0.80, 4.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
	"claude-opus-4-6":            {15.00, 75.00},
}

// EstimateCost computes an estimated cost in USD from a TokenUsage and model ID.
// Returns 0 for unknown models.
func (u TokenUsage) EstimateCost(model string) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return 0
	}
	inCost := (float64(u.InputTokens) / 1e6) * pricing[0]
	outCost := (float64(u.OutputTokens) / 1e6) * pricing[1]
	return inCost + outCost
}

// LogCost logs token usage and estimated cost with structured zap fields.
func (u TokenUsage) LogCost(model, phase string) {
	zap.L().Info("cost attribution",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}

// fileBetas gates the Files API endpoints.
var fileBetas = []sdk.AnthropicBeta{sdk.AnthropicBetaFilesAPI2025_04_14}

// sdkClient implements Client using the official anthropic-sdk-go.
type sdkClient struct {
	client sdk.Client
}

// NewClient creates a new Anthropic client backed by the SDK.
func NewClient(apiKey string) Client {
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
		),
	}
}

func (c *sdkClient) UploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrap(err, "anthropic: open upload")
	}
	defer f.Close()

	meta, err := c.client.Beta.Files.Upload(ctx, sdk.BetaFileUploadParams{
		File:  sdk.File(f, filepath.Base(path), "application/pdf"),
		Betas: fileBetas,
	})
	if err != nil {
		return "", eris.Wrap(err, "anthropic: upload file")
	}
	return meta.ID, nil
}

func (c *sdkClient) CreateDocumentMessage(ctx context.Context, req DocumentMessageRequest) (*MessageResponse, error) {
	params := sdk.BetaMessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages: []sdk.BetaMessageParam{
			sdk.NewBetaUserMessage(
				sdk.BetaContentBlockParamUnion{
					OfDocument: &sdk.BetaRequestDocumentBlockParam{
						Source: sdk.BetaRequestDocumentBlockSourceUnionParam{
							OfFile: &sdk.BetaFileDocumentSourceParam{FileID: req.FileID},
						},
					},
				},
				sdk.NewBetaTextBlock(req.Prompt),
			),
		},
		Betas: fileBetas,
	}
	if req.System != "" {
		params.System = []sdk.BetaTextBlockParam{{Text: req.System}}
	}

	msg, err := c.client.Beta.Messages.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create document message")
	}
	return fromSDKMessage(msg), nil
}

func (c *sdkClient) DeleteFile(ctx context.Context, fileID string) error {
	_, err := c.client.Beta.Files.Delete(ctx, fileID, sdk.BetaFileDeleteParams{
		Betas: fileBetas,
	})
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("anthropic: delete file %s", fileID))
	}
	return nil
}

func fromSDKMessage(msg *sdk.BetaMessage) *MessageResponse {
	blocks := make([]ContentBlock, 0, len(msg.Content))
	for _, b := range msg.Content {
		blocks = append(blocks, ContentBlock{
			Type: string(b.Type),
			Text: b.Text,
		})
	}

	return &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Content:    blocks,
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}
}
