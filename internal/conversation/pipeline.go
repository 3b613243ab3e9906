package conversation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/mesavia/restaurant-ai-platform/internal/catalog"
	"github.com/mesavia/restaurant-ai-platform/internal/observability/metrics"
	"github.com/mesavia/restaurant-ai-platform/pkg/logging"
)

var pipelineTracer = otel.Tracer("mesavia.internal.conversation.pipeline")

// transcriptWindow bounds how much history is replayed to the AI per turn.
const transcriptWindow = 20

// Fixed replies the pipeline sends without an AI call.
const (
	welcomeReply = "¡Bienvenido! 🙌 Soy tu asistente de pedidos.\n" +
		"¿Prefieres español o inglés? / Do you prefer Spanish or English?"

	invalidTokenReply = "Ese código QR ya no es válido. Por favor escanea de nuevo el código QR de tu mesa.\n" +
		"That QR code is no longer valid. Please scan your table's QR code again."

	scanQRReply = "Para comenzar tu pedido, escanea el código QR de tu mesa. 📱\n" +
		"To start your order, please scan the QR code on your table."

	safetyFallbackReply = "Lo sentimos, no podemos continuar con esta conversación. 🙏 Un miembro del personal te atenderá en tu mesa.\n" +
		"We're sorry, we can't continue this conversation. A staff member will assist you at your table."
)

// InboundEvent is one customer WhatsApp message entering the pipeline.
type InboundEvent struct {
	MessageID   string
	From        string // customer phone
	To          string // branch WhatsApp number
	ProfileName string // sender's WhatsApp display name, may be empty
	Body        string
	ReceivedAt  time.Time
}

// CatalogReader is the catalog access the pipeline needs; satisfied by
// catalog.Cache.
type CatalogReader interface {
	BranchByNumber(ctx context.Context, whatsappNumber string) (*catalog.Branch, error)
	ActiveMenu(ctx context.Context, branchID string) ([]catalog.MenuItem, error)
}

// conversationStore is the slice of Store the pipeline needs.
type conversationStore interface {
	conversationWriter
	GetByPhone(ctx context.Context, phone, branchID string) (*Conversation, error)
	Create(ctx context.Context, conv *Conversation) error
	AppendMessage(ctx context.Context, conversationID, role, content string) error
	Messages(ctx context.Context, conversationID string, limit int) ([]Message, error)
}

// Service runs one inbound message through the full turn: safety filter, QR
// gate, session lifecycle, intent classification, the AI call, staff
// notification and the chunked customer reply.
type Service struct {
	store      conversationStore
	catalog    CatalogReader
	llm        LLMClient
	gate       *QRGate
	safety     *SafetyFilter
	notifier   *Notifier
	messenger  ReplyMessenger
	chunkLen   int
	chunkDelay time.Duration
	metrics    *metrics.PipelineMetrics
	logger     *logging.Logger
}

// ServiceConfig carries the pipeline's tunables.
type ServiceConfig struct {
	ChunkMaxLength     int
	ChunkDispatchDelay time.Duration
	Metrics            *metrics.PipelineMetrics
}

// NewService wires the pipeline.
func NewService(
	store conversationStore,
	cat CatalogReader,
	llm LLMClient,
	notifier *Notifier,
	messenger ReplyMessenger,
	cfg ServiceConfig,
	logger *logging.Logger,
) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ChunkMaxLength <= 0 {
		cfg.ChunkMaxLength = defaultChunkLength
	}
	return &Service{
		store:      store,
		catalog:    cat,
		llm:        llm,
		gate:       NewQRGate(),
		safety:     NewSafetyFilter(),
		notifier:   notifier,
		messenger:  messenger,
		chunkLen:   cfg.ChunkMaxLength,
		chunkDelay: cfg.ChunkDispatchDelay,
		metrics:    cfg.Metrics,
		logger:     logger,
	}
}

// TurnResult reports what one processed event produced.
type TurnResult struct {
	Intention Intention
	QRResult  QRResult
	Outcome   NotifyOutcome
	Reply     string
}

// Process handles one inbound event end to end. A returned error means the
// event was not fully handled and should be redelivered by the queue.
func (s *Service) Process(ctx context.Context, event InboundEvent) (TurnResult, error) {
	ctx, span := pipelineTracer.Start(ctx, "conversation.pipeline.process")
	defer span.End()

	var result TurnResult

	branch, err := s.catalog.BranchByNumber(ctx, event.To)
	if err != nil {
		if err == catalog.ErrBranchNotFound {
			s.logger.Warn("inbound message for unknown branch number, dropping",
				"to", event.To, "message_id", event.MessageID)
			return result, nil
		}
		return result, fmt.Errorf("conversation: failed to resolve branch: %w", err)
	}

	log := s.logger.With("branch_id", branch.ID, "from", event.From)

	if s.safety.IsFlagged(event.Body) {
		log.Info("message flagged by safety filter")
		if err := s.alertSafety(ctx, branch, event); err != nil {
			return result, fmt.Errorf("conversation: safety alert dispatch failed: %w", err)
		}
		result.Reply = safetyFallbackReply
		return result, s.reply(ctx, ConversationID(branch.ID, event.From), branch, event.From, safetyFallbackReply)
	}

	conv, err := s.store.GetByPhone(ctx, event.From, branch.ID)
	if err != nil {
		return result, fmt.Errorf("conversation: failed to load session: %w", err)
	}

	result.QRResult = s.gate.Check(conv, event.Body, branch.QRToken)
	switch result.QRResult {
	case ValidationSuccess:
		if conv, err = s.validateSession(ctx, conv, branch, event); err != nil {
			return result, err
		}
		log.Info("qr gate passed", "conversation_id", conv.ID)
		result.Reply = welcomeReply
		return result, s.reply(ctx, conv.ID, branch, event.From, welcomeReply)
	case TokenInvalid:
		log.Info("qr token rejected")
		result.Reply = invalidTokenReply
		return result, s.reply(ctx, ConversationID(branch.ID, event.From), branch, event.From, invalidTokenReply)
	case ValidationFailed:
		log.Info("message before qr validation, prompting for scan")
		result.Reply = scanQRReply
		return result, s.reply(ctx, ConversationID(branch.ID, event.From), branch, event.From, scanQRReply)
	}

	history, err := s.store.Messages(ctx, conv.ID, transcriptWindow)
	if err != nil {
		return result, fmt.Errorf("conversation: failed to load transcript: %w", err)
	}

	// Classification sees the pre-capture session state: a language answer
	// must still observe language == "" or the language rule can never fire.
	result.Intention = Classify(event.Body, history, conv)
	s.captureSessionFacts(conv, event)
	log = log.With("conversation_id", conv.ID, "intention", string(result.Intention))

	if result.Intention == IntentionRequestAmenities {
		s.recordAmenities(conv, event.Body)
	}

	conv.LastActivity = time.Now().UTC()
	if err := s.store.Update(ctx, conv); err != nil {
		return result, fmt.Errorf("conversation: failed to persist session: %w", err)
	}
	if err := s.store.AppendMessage(ctx, conv.ID, RoleUser, event.Body); err != nil {
		return result, fmt.Errorf("conversation: failed to append user message: %w", err)
	}

	menu, err := s.catalog.ActiveMenu(ctx, branch.ID)
	if err != nil {
		return result, fmt.Errorf("conversation: failed to load menu: %w", err)
	}

	aiReply, err := s.complete(ctx, result.Intention, branch, menu, conv, history, event.Body)
	if err != nil {
		return result, err
	}
	result.Reply = aiReply
	log.Info("ai reply generated", "reply_chars", len(aiReply))

	if err := s.store.AppendMessage(ctx, conv.ID, RoleAssistant, aiReply); err != nil {
		return result, fmt.Errorf("conversation: failed to append assistant message: %w", err)
	}

	turnHistory := append(append([]Message{}, history...), Message{
		ConversationID: conv.ID,
		Role:           RoleUser,
		Content:        event.Body,
		Timestamp:      event.ReceivedAt,
	})
	result.Outcome, err = s.notifier.HandleTurn(ctx, conv, branch, result.Intention, event.Body, aiReply, turnHistory)
	if err != nil {
		return result, fmt.Errorf("conversation: staff notification failed: %w", err)
	}
	if result.Outcome != OutcomeNone {
		log.Info("staff notified", "outcome", string(result.Outcome))
	}

	return result, s.reply(ctx, conv.ID, branch, event.From, aiReply)
}

// alertSafety notifies the branch cashier about a flagged message. The session
// is read only to attach the customer's stored name; the turn otherwise leaves
// no state behind.
func (s *Service) alertSafety(ctx context.Context, branch *catalog.Branch, event InboundEvent) error {
	name := ""
	conv, err := s.store.GetByPhone(ctx, event.From, branch.ID)
	if err != nil {
		s.logger.Warn("could not load session for safety alert", "from", event.From, "error", err)
	} else if conv != nil {
		name = conv.CustomerName
	}
	if name == "" {
		name = event.ProfileName
	}
	if name == "" {
		name = "cliente sin nombre"
	}

	if s.messenger == nil || branch.CashierPhone == "" {
		s.logger.Warn("safety alert dropped: no cashier destination", "branch_id", branch.ID)
		return nil
	}
	body := fmt.Sprintf("⚠️ Mensaje bloqueado por el filtro de contenido\nCliente: %s (%s)\nMensaje: %q",
		name, event.From, event.Body)
	return s.messenger.SendReply(ctx, OutboundReply{
		ConversationID: ConversationID(branch.ID, event.From),
		To:             branch.CashierPhone,
		From:           branch.WhatsAppNumber,
		Body:           body,
	})
}

// validateSession marks the session as QR-validated, creating it when the
// gate is the customer's first contact.
func (s *Service) validateSession(ctx context.Context, conv *Conversation, branch *catalog.Branch, event InboundEvent) (*Conversation, error) {
	now := time.Now().UTC()
	if conv == nil {
		conv = &Conversation{
			ID:           ConversationID(branch.ID, event.From),
			PhoneNumber:  event.From,
			BranchID:     branch.ID,
			CustomerName: event.ProfileName,
			QRValidated:  true,
			LastActivity: now,
			CreatedAt:    now,
		}
		if err := s.store.Create(ctx, conv); err != nil {
			return nil, fmt.Errorf("conversation: failed to create session: %w", err)
		}
		return conv, nil
	}

	conv.QRValidated = true
	conv.LastActivity = now
	if conv.CustomerName == "" {
		conv.CustomerName = event.ProfileName
	}
	if err := s.store.Update(ctx, conv); err != nil {
		return nil, fmt.Errorf("conversation: failed to validate session: %w", err)
	}
	return conv, nil
}

// captureSessionFacts harvests language and location answers from the raw
// message, plus the sender's display name. All are capture-once: a later
// mention never overwrites.
func (s *Service) captureSessionFacts(conv *Conversation, event InboundEvent) {
	if conv.CustomerName == "" && event.ProfileName != "" {
		conv.CustomerName = event.ProfileName
	}
	if conv.Language == "" {
		if lang, ok := ParseLanguage(event.Body); ok {
			conv.Language = lang
		}
	}
	if conv.Location == "" {
		if loc, ok := ParseLocation(event.Body); ok {
			conv.Location = loc
		}
	}
}

// recordAmenities tallies amenity requests on the session so staff context
// survives across turns.
func (s *Service) recordAmenities(conv *Conversation, message string) {
	names := matchAmenities(message)
	if len(names) == 0 {
		return
	}
	if conv.Amenities == nil {
		conv.Amenities = make(map[string]int)
	}
	for _, name := range names {
		conv.Amenities[name]++
	}
}

// complete issues the single AI call for the turn.
func (s *Service) complete(
	ctx context.Context,
	intention Intention,
	branch *catalog.Branch,
	menu []catalog.MenuItem,
	conv *Conversation,
	history []Message,
	userMessage string,
) (string, error) {
	messages := make([]ChatMessage, 0, len(history)+1)
	for _, msg := range history {
		role := ChatRoleUser
		if msg.Role == RoleAssistant {
			role = ChatRoleAssistant
		}
		messages = append(messages, ChatMessage{Role: role, Content: msg.Content})
	}
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: userMessage})

	resp, err := s.llm.Complete(ctx, LLMRequest{
		System:   BuildInstructions(intention, branch, menu, conv),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("conversation: ai completion failed: %w", err)
	}
	return resp.Text, nil
}

// reply chunks and dispatches a customer-facing message. A failure on the
// first chunk fails the event so the queue redelivers; a failure after the
// first chunk is logged and swallowed, since redelivery would duplicate the
// already-sent prefix.
func (s *Service) reply(ctx context.Context, conversationID string, branch *catalog.Branch, to, body string) error {
	chunks := ChunkMessage(body, s.chunkLen)
	sent := 0
	defer func() { s.metrics.AddChunksSent(sent) }()
	for i, chunk := range chunks {
		if i > 0 && s.chunkDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.chunkDelay):
			}
		}
		err := s.messenger.SendReply(ctx, OutboundReply{
			ConversationID: conversationID,
			To:             to,
			From:           branch.WhatsAppNumber,
			Body:           chunk,
		})
		if err != nil {
			if i == 0 {
				return fmt.Errorf("conversation: failed to send reply: %w", err)
			}
			s.logger.Warn("dropping trailing reply chunks after send failure",
				"conversation_id", conversationID, "chunk", i, "total", len(chunks), "error", err)
			return nil
		}
		sent++
	}
	return nil
}
