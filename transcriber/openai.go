package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"feedback-media-worker/config"
	"feedback-media-worker/constant"
)

const defaultRequestTimeout = 2 * time.Minute

// openAITranscriber fetches the blob, transcribes it with Whisper and
// normalizes the transcript (translation + sentiment) with a chat
// completion.
type openAITranscriber struct {
	client     *openai.Client
	storage    *minio.Client
	bucket     string
	cfg        config.Transcriber
	targetLang string
	httpClient *http.Client
}

func NewOpenAITranscriber(cfg *config.Config) Transcriber {
	var client *openai.Client
	if cfg.Transcriber.APIKey != "" {
		clientConfig := openai.DefaultConfig(cfg.Transcriber.APIKey)
		if cfg.Transcriber.BaseURL != "" {
			clientConfig.BaseURL = cfg.Transcriber.BaseURL
		}
		client = openai.NewClientWithConfig(clientConfig)
	}

	return &openAITranscriber{
		client:     client,
		storage:    cfg.Storage,
		bucket:     cfg.MinIOBucket,
		cfg:        cfg.Transcriber,
		targetLang: cfg.Pipeline.NormalizedLanguage,
		httpClient: &http.Client{},
	}
}

func (t *openAITranscriber) TranscribeAndNormalize(ctx context.Context, storageKey string) (*Result, error) {
	if t.client == nil {
		return nil, NewFailure(constant.ErrorCodeMissingCredentials, "transcription API key is not configured")
	}

	timeout := t.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	localPath, err := t.fetchBlob(ctx, storageKey)
	if err != nil {
		return nil, NewFailure(constant.ErrorCodeProcessingError, fmt.Sprintf("fetch blob: %v", err))
	}
	defer os.RemoveAll(filepath.Dir(localPath))

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.cfg.TranscriptionModel,
		FilePath: localPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, NewFailure(constant.ErrorCodeProcessingError, fmt.Sprintf("transcription: %v", err))
	}

	transcript := strings.TrimSpace(resp.Text)
	if transcript == "" {
		return nil, NewFailure(constant.ErrorCodeEmptyTranscript, "transcription produced no text")
	}

	normalized, sentiment, err := t.normalize(ctx, transcript)
	if err != nil {
		return nil, NewFailure(constant.ErrorCodeProcessingError, fmt.Sprintf("normalization: %v", err))
	}

	zerolog.Ctx(ctx).Debug().
		Str("storage_key", storageKey).
		Str("original_language", resp.Language).
		Str("sentiment", string(sentiment)).
		Msg("transcription normalized")

	return &Result{
		TranscriptText:     transcript,
		OriginalLanguage:   resp.Language,
		NormalizedText:     normalized,
		NormalizedLanguage: t.targetLang,
		Sentiment:          sentiment,
	}, nil
}

// fetchBlob downloads the media blob into a per-call temp directory and
// returns the local file path. Keys with an http(s) scheme are fetched
// with a plain GET, everything else is treated as an object path in the
// configured bucket.
func (t *openAITranscriber) fetchBlob(ctx context.Context, storageKey string) (string, error) {
	tempDir, err := os.MkdirTemp("", "feedback-media-")
	if err != nil {
		return "", err
	}
	localPath := filepath.Join(tempDir, blobFileName(storageKey))
	if err := t.download(ctx, storageKey, localPath); err != nil {
		os.RemoveAll(tempDir)
		return "", err
	}
	return localPath, nil
}

func (t *openAITranscriber) download(ctx context.Context, storageKey, localPath string) error {
	if strings.HasPrefix(storageKey, "http://") || strings.HasPrefix(storageKey, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, storageKey, nil)
		if err != nil {
			return err
		}
		resp, err := t.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("blob fetch returned status %d", resp.StatusCode)
		}
		out, err := os.Create(localPath)
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, resp.Body)
		return err
	}

	return t.storage.FGetObject(ctx, t.bucket, storageKey, localPath, minio.GetObjectOptions{})
}

func blobFileName(storageKey string) string {
	// Presigned URLs carry long query strings; keep them out of the
	// temp filename.
	key := storageKey
	if i := strings.IndexByte(key, '?'); i >= 0 {
		key = key[:i]
	}
	name := filepath.Base(strings.TrimSuffix(key, "/"))
	if name == "" || name == "." || name == "/" {
		name = uuid.New().String()
	}
	return name
}

const normalizePromptFmt = `You are a feedback analytics normalizer. Translate the user feedback below into %s (keep it unchanged if it already is) and classify its sentiment as positive, neutral or negative.
Respond with JSON only, in the form {"normalized_text": "...", "sentiment": "..."}.

Feedback:
%s`

func (t *openAITranscriber) normalize(ctx context.Context, transcript string) (string, constant.Sentiment, error) {
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.cfg.CompletionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(normalizePromptFmt, t.targetLang, transcript),
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", "", err
	}
	if len(resp.Choices) == 0 {
		return "", "", fmt.Errorf("completion returned no choices")
	}

	return parseNormalization(resp.Choices[0].Message.Content, transcript)
}

type normalization struct {
	NormalizedText string `json:"normalized_text"`
	Sentiment      string `json:"sentiment"`
}

// parseNormalization decodes the model output, tolerating markdown code
// fences. A missing normalized text falls back to the transcript and an
// unrecognized sentiment label degrades to neutral.
func parseNormalization(content, transcript string) (string, constant.Sentiment, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var out normalization
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return "", "", fmt.Errorf("decode completion output: %w", err)
	}

	normalized := strings.TrimSpace(out.NormalizedText)
	if normalized == "" {
		normalized = transcript
	}

	sentiment := constant.Sentiment(strings.ToLower(strings.TrimSpace(out.Sentiment)))
	if !sentiment.Valid() {
		sentiment = constant.SentimentNeutral
	}

	return normalized, sentiment, nil
}
