package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/noah-isme/batch-extractor-bot/internal/dto"
	"github.com/noah-isme/batch-extractor-bot/internal/models"
	appErrors "github.com/noah-isme/batch-extractor-bot/pkg/errors"
)

// Chat replies.
const (
	WelcomeMessage      = "👋 Welcome to the KGS Batch Extractor Bot!\nSend a keyword to search for batches."
	InvalidIndexMessage = "❌ Invalid index."
	NoMatchesMessage    = "❌ No matching batches found."
	NoSelectionMessage  = "❌ No batch selected. Search and select a batch first."
	SelectPromptSuffix  = "\nSend the index (e.g. 0 or 1) to select."
	ExtractPromptSuffix = "\n\nSend /extract to generate the file."
)

const (
	defaultChunkLimit = 4000

	commandStart   = "/start"
	commandExtract = "/extract"

	sessionResultHit   = "hit"
	sessionResultMiss  = "miss"
	sessionResultError = "error"
	sessionResultOK    = "ok"

	commandLabelStart        = "start"
	commandLabelSearch       = "search"
	commandLabelSelect       = "select"
	commandLabelExtract      = "extract"
	commandLabelInvalidIndex = "invalid_index"
)

// SessionStore persists per-chat selection state.
type SessionStore interface {
	Get(ctx context.Context, chatID string) (*models.Session, error)
	Put(ctx context.Context, chatID string, session models.Session) error
	Delete(ctx context.Context, chatID string) error
}

type catalogSearcher interface {
	Search(term string) []models.BatchRecord
}

type summaryBuilder interface {
	BuildSummary(ctx context.Context, batchID, batchName string) (string, error)
}

type batchExporter interface {
	ExportBatch(ctx context.Context, batchID, batchName string, format models.ExportFormat) (*models.ExportResult, error)
}

// ChatConfig tunes reply shaping.
type ChatConfig struct {
	ChunkLimit   int
	ExportFormat models.ExportFormat
}

// ChatService routes inbound chat messages through search, selection and export.
type ChatService struct {
	catalog   catalogSearcher
	sessions  SessionStore
	summaries summaryBuilder
	exporter  batchExporter
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ChatConfig
	now       func() time.Time
}

// NewChatService constructs a ChatService.
func NewChatService(catalog catalogSearcher, sessions SessionStore, summaries summaryBuilder, exporter batchExporter, cfg ChatConfig, metrics *MetricsService, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChunkLimit <= 0 {
		cfg.ChunkLimit = defaultChunkLimit
	}
	if cfg.ExportFormat == "" {
		cfg.ExportFormat = models.ExportFormatText
	}
	return &ChatService{
		catalog:   catalog,
		sessions:  sessions,
		summaries: summaries,
		exporter:  exporter,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// HandleMessage routes one inbound message and returns the replies to send.
// User mistakes become replies; only infrastructure failures are returned
// as errors.
func (s *ChatService) HandleMessage(ctx context.Context, chatID, text string) ([]dto.ChatReply, error) {
	text = strings.TrimSpace(text)
	if chatID == "" || text == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "chat id and text are required")
	}

	switch commandOf(text) {
	case commandStart:
		s.metrics.RecordCommand(commandLabelStart)
		return textReplies(s.Start()), nil
	case commandExtract:
		s.metrics.RecordCommand(commandLabelExtract)
		return s.handleExtract(ctx, chatID)
	}

	if isIndex(text) {
		session, err := s.loadSession(ctx, chatID)
		if err != nil {
			return nil, err
		}
		if session.HasResults() {
			index, convErr := strconv.Atoi(text)
			if convErr != nil {
				index = -1
			}
			summary, err := s.Select(ctx, chatID, index)
			if errors.Is(err, appErrors.ErrInvalidSelection) {
				s.metrics.RecordCommand(commandLabelInvalidIndex)
				return textReplies(InvalidIndexMessage), nil
			}
			if err != nil {
				return nil, err
			}
			s.metrics.RecordCommand(commandLabelSelect)
			return textReplies(summary), nil
		}
	}

	s.metrics.RecordCommand(commandLabelSearch)
	messages, err := s.Search(ctx, chatID, text)
	if err != nil {
		return nil, err
	}
	return textReplies(messages...), nil
}

// Start returns the welcome text.
func (s *ChatService) Start() string {
	return WelcomeMessage
}

// Search matches term against the catalog, remembers the results for the
// chat and returns the listing split into messages under the chunk limit.
func (s *ChatService) Search(ctx context.Context, chatID, term string) ([]string, error) {
	matches := s.catalog.Search(term)
	if len(matches) == 0 {
		return []string{NoMatchesMessage}, nil
	}
	if err := s.storeSession(ctx, chatID, models.NewResultsSession(matches, s.now())); err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(matches)+1)
	lines = append(lines, fmt.Sprintf("🔍 Found %d results for \"%s\":\n", len(matches), term))
	for i, match := range matches {
		lines = append(lines, fmt.Sprintf("%d. %s [ID: %s]", i, match.Title, match.ID))
	}
	return chunkLines(lines, SelectPromptSuffix, s.cfg.ChunkLimit), nil
}

// Select commits the index-th search result as the chat's batch and returns
// its summary. A missing results session or an index outside the results is
// ErrInvalidSelection.
func (s *ChatService) Select(ctx context.Context, chatID string, index int) (string, error) {
	session, err := s.loadSession(ctx, chatID)
	if err != nil {
		return "", err
	}
	if !session.HasResults() || index < 0 || index >= len(session.Results) {
		return "", appErrors.ErrInvalidSelection
	}

	record := session.Results[index]
	if err := s.storeSession(ctx, chatID, models.NewSelectedSession(record, s.now())); err != nil {
		return "", err
	}
	summary, err := s.summaries.BuildSummary(ctx, record.ID, record.Title)
	if err != nil {
		return "", err
	}
	return summary + ExtractPromptSuffix, nil
}

// Extract exports the chat's selected batch.
func (s *ChatService) Extract(ctx context.Context, chatID string) (*models.BatchRecord, *models.ExportResult, error) {
	session, err := s.loadSession(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	if !session.HasSelection() {
		return nil, nil, appErrors.ErrNoSelection
	}
	selected := *session.Selected
	result, err := s.exporter.ExportBatch(ctx, selected.ID, selected.Title, s.cfg.ExportFormat)
	if err != nil {
		return &selected, nil, err
	}
	return &selected, result, nil
}

func (s *ChatService) handleExtract(ctx context.Context, chatID string) ([]dto.ChatReply, error) {
	selected, result, err := s.Extract(ctx, chatID)
	switch {
	case errors.Is(err, appErrors.ErrNoSelection):
		return textReplies(NoSelectionMessage), nil
	case err != nil && selected != nil:
		s.logger.Warn("extract failed", zap.String("chat_id", chatID), zap.String("batch_id", selected.ID), zap.Error(err))
		return textReplies(exportFailedMessage(selected.Title, err)), nil
	case err != nil:
		return nil, err
	}

	return []dto.ChatReply{{
		Document: &dto.ChatDocument{
			Filename:  result.Filename,
			URL:       result.URL,
			Caption:   fmt.Sprintf("📦 Extracted %d entries from %s!", result.TotalEntries, selected.Title),
			Entries:   result.TotalEntries,
			ExpiresAt: result.ExpiresAt,
		},
	}}, nil
}

func exportFailedMessage(name string, err error) string {
	if errors.Is(err, appErrors.ErrRemoteFetch) || errors.Is(err, appErrors.ErrExportFailed) {
		return fmt.Sprintf("❌ Export failed for %s: the course service did not respond. Please try again later.", name)
	}
	return fmt.Sprintf("❌ Export failed for %s. Please try again later.", name)
}

// loadSession returns nil for chats without state.
func (s *ChatService) loadSession(ctx context.Context, chatID string) (*models.Session, error) {
	session, err := s.sessions.Get(ctx, chatID)
	switch {
	case errors.Is(err, appErrors.ErrSessionMiss):
		s.metrics.RecordSessionOp("get", sessionResultMiss)
		return nil, nil
	case err != nil:
		s.metrics.RecordSessionOp("get", sessionResultError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load chat session")
	}
	s.metrics.RecordSessionOp("get", sessionResultHit)
	return session, nil
}

func (s *ChatService) storeSession(ctx context.Context, chatID string, session models.Session) error {
	if err := s.sessions.Put(ctx, chatID, session); err != nil {
		s.metrics.RecordSessionOp("put", sessionResultError)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store chat session")
	}
	s.metrics.RecordSessionOp("put", sessionResultOK)
	return nil
}

// commandOf returns the lowercased leading /command, dropping any @botname
// suffix, or "" when text is not a command.
func commandOf(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	command, _, _ := strings.Cut(text, " ")
	command, _, _ = strings.Cut(command, "@")
	return strings.ToLower(command)
}

func isIndex(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// chunkLines packs lines into messages of at most limit characters, joining
// with newlines, and appends suffix to the last message. Lines longer than
// limit are split.
func chunkLines(lines []string, suffix string, limit int) []string {
	chunks := make([]string, 0, 1)
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
		}
		current.Reset()
		currentLen = 0
	}
	add := func(piece string) {
		n := utf8.RuneCountInString(piece)
		if currentLen+n > limit {
			flush()
		}
		current.WriteString(piece)
		currentLen += n
	}

	for _, line := range lines {
		for _, piece := range splitRunes(line+"\n", limit) {
			add(piece)
		}
	}
	for _, piece := range splitRunes(suffix, limit) {
		add(piece)
	}
	flush()
	return chunks
}

func splitRunes(s string, limit int) []string {
	if utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}
	runes := []rune(s)
	parts := make([]string, 0, len(runes)/limit+1)
	for len(runes) > limit {
		parts = append(parts, string(runes[:limit]))
		runes = runes[limit:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func textReplies(messages ...string) []dto.ChatReply {
	replies := make([]dto.ChatReply, 0, len(messages))
	for _, message := range messages {
		replies = append(replies, dto.ChatReply{Text: message})
	}
	return replies
}
