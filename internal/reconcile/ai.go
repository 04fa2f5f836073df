package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grupomas/invoice-cli/internal/model"
	"github.com/grupomas/invoice-cli/pkg/anthropic"
)

// Extractor produces merge proposals from a downloaded invoice document.
type Extractor interface {
	Extract(ctx context.Context, pdfPath string) (map[string]string, error)
}

const extractionPrompt = `Lee la factura eléctrica adjunta y devuelve un único objeto JSON que
cumpla exactamente el esquema indicado. Usa null para cualquier campo que no
aparezca en el documento. Las fechas van en formato DD/MM/YYYY y los importes
como números con punto decimal, sin símbolo de moneda. No añadas texto fuera
del JSON.

Esquema:
%s`

// DocumentExtractor asks the model to read an uploaded invoice and fill the
// full field schema. The server-side copy of the document is deleted after
// the call, whether it succeeded or not.
type DocumentExtractor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewDocumentExtractor creates an AI-backed document extractor.
func NewDocumentExtractor(client anthropic.Client, modelID string, maxTokens int64) *DocumentExtractor {
	return &DocumentExtractor{client: client, model: modelID, maxTokens: maxTokens}
}

// Extract uploads the document, requests a schema-bound extraction in a
// single attempt, and returns the parsed proposals.
func (e *DocumentExtractor) Extract(ctx context.Context, pdfPath string) (map[string]string, error) {
	log := zap.L().With(zap.String("component", "reconcile.ai"))

	fileID, err := e.client.UploadFile(ctx, pdfPath)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: upload document")
	}
	defer func() {
		if err := e.client.DeleteFile(ctx, fileID); err != nil {
			log.Warn("server-side document not deleted",
				zap.String("file_id", fileID),
				zap.Error(err),
			)
		}
	}()

	schema, err := json.Marshal(model.ExtractionSchema())
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: marshal extraction schema")
	}

	resp, err := e.client.CreateDocumentMessage(ctx, anthropic.DocumentMessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		FileID:    fileID,
		Prompt:    fmt.Sprintf(extractionPrompt, schema),
	})
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: extraction request")
	}
	resp.Usage.LogCost(e.model, "document extraction")

	return parseProposals(resp.Text())
}

// parseProposals decodes the model's JSON answer into canonical string
// proposals. Nulls are dropped here so the merge only sees carried values.
func parseProposals(raw string) (map[string]string, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		return nil, eris.Wrap(err, "reconcile: decode extraction answer")
	}

	proposals := make(map[string]string, len(payload))
	for key, v := range payload {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			proposals[key] = val
		case float64:
			proposals[key] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			proposals[key] = strconv.FormatBool(val)
		default:
			proposals[key] = fmt.Sprint(val)
		}
	}
	return proposals, nil
}

// stripFences removes a surrounding markdown code fence if the model added
// one despite the instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
