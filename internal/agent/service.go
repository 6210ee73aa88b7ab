package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/confidence-coach/internal/coach"
	"github.com/ashureev/confidence-coach/internal/completion"
	"github.com/ashureev/confidence-coach/internal/config"
	"github.com/ashureev/confidence-coach/internal/domain"
	"github.com/ashureev/confidence-coach/internal/session"
	"github.com/ashureev/confidence-coach/internal/store"
)

const archiveTimeout = 5 * time.Second

// ServiceConfig tunes turn handling.
type ServiceConfig struct {
	AssessmentMode string // config.AssessmentInline or config.AssessmentSeparate
	Validator      coach.Validator
	Policy         *coach.Policy // nil means the embedded policy
}

// Service runs coaching turns against per-session ledgers.
type Service struct {
	registry  *session.Registry
	completer completion.Completer
	composer  *coach.Composer
	assessor  *coach.Assessor
	validator coach.Validator
	separate  bool
	archive   store.Repository
	log       ConversationLogger
	now       func() time.Time
}

// NewService wires the turn pipeline. archive and logger may be nil.
func NewService(registry *session.Registry, completer completion.Completer, archive store.Repository, logger ConversationLogger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = noopConversationLogger{}
	}
	if cfg.Validator.MaxChars <= 0 {
		cfg.Validator = coach.NewValidator(coach.DefaultMaxChars, cfg.Validator.Denylist)
	}
	composer := coach.NewComposer(cfg.Policy)
	return &Service{
		registry:  registry,
		completer: completer,
		composer:  composer,
		assessor:  coach.NewAssessor(completer, composer),
		validator: cfg.Validator,
		separate:  cfg.AssessmentMode == config.AssessmentSeparate,
		archive:   archive,
		log:       logger,
		now:       time.Now,
	}
}

// SubmitTurn validates message, asks the completion service for a reply and
// commits the exchange to the session ledger. A failed completion commits the
// fallback reply. A cancelled ctx commits nothing and returns ctx's error.
func (s *Service) SubmitTurn(ctx context.Context, key session.Key, message string) (*TurnResult, error) {
	userTurn, err := s.validator.Validate(message, s.now())
	if err != nil {
		return &TurnResult{State: StateFailed}, err
	}

	sess, release, err := s.registry.Acquire(ctx, key)
	if err != nil {
		return &TurnResult{State: StateFailed}, err
	}
	defer release()
	ledger := sess.Ledger()

	result := &TurnResult{
		State:          StateIdle,
		Classification: coach.Classify(userTurn.Content),
		LedgerID:       ledger.ID(),
	}
	s.logUserMessage(ctx, key, ledger.ID(), userTurn.Content, result.Classification)

	level := ledger.LatestConfidence()
	if s.separate && result.Classification == coach.Normal {
		assessment := s.assessor.Assess(ctx, userTurn.Content)
		if err := ctx.Err(); err != nil {
			return &TurnResult{State: StateFailed}, err
		}
		result.Assessment = &assessment
		level = assessment.ConfidenceLevel
	}

	prompt := s.composer.Compose(userTurn.Content, level, coach.Context(ledger.Turns()), result.Classification)

	result.State = StateAwaitingCompletion
	raw, err := s.completer.Complete(ctx, prompt)
	switch {
	case err != nil && ctx.Err() != nil:
		slog.Info("Turn cancelled while awaiting completion", "session", key.String())
		return &TurnResult{State: StateFailed}, ctx.Err()
	case err != nil:
		slog.Warn("Completion failed, using fallback reply", "session", key.String(), "error", err)
		result.Reply = domain.FallbackReply()
		result.Fallback = true
	case result.Classification == coach.Vague:
		result.Reply, result.Report = coach.ParseClarification(raw)
		s.reconcile(key, result)
	default:
		result.Reply, result.Report = coach.ParseWithReport(raw)
		s.reconcile(key, result)
	}

	ledger.AppendExchange(userTurn, result.Reply)
	result.State = StateDone

	s.archiveExchange(ctx, key, ledger, result.Fallback)
	s.logAssistantMessage(ctx, key, ledger.ID(), result)
	return result, nil
}

// reconcile checks the parsed reply against the expected format and, in
// separate mode, the assessed confidence.
func (s *Service) reconcile(key session.Key, result *TurnResult) {
	// Clarifying replies carry no sections.
	if result.Classification == coach.Normal && !result.Report.Conforms() {
		slog.Warn("Completion did not follow reply format",
			"session", key.String(),
			"missing", result.Report.Missing,
			"bullets", result.Report.Bullets,
			"confidence_found", result.Report.ConfidenceFound,
		)
	}

	if result.Assessment == nil {
		return
	}
	assessed := result.Assessment.ConfidenceLevel
	if !result.Report.ConfidenceFound {
		result.Reply = result.Reply.WithConfidence(assessed)
		return
	}
	if result.Reply.ConfidenceLevel != assessed {
		slog.Info("Reply confidence differs from assessment",
			"session", key.String(),
			"reply", result.Reply.ConfidenceLevel,
			"assessed", assessed,
		)
	}
}

// Summary returns the ledger analytics for key.
func (s *Service) Summary(ctx context.Context, key session.Key) (session.Summary, error) {
	sess, release, err := s.registry.Acquire(ctx, key)
	if err != nil {
		return session.Summary{}, err
	}
	defer release()
	return sess.Ledger().Summary(), nil
}

// Reset discards the session's ledger and starts a new one.
func (s *Service) Reset(ctx context.Context, key session.Key) (session.Summary, error) {
	sess, release, err := s.registry.Acquire(ctx, key)
	if err != nil {
		return session.Summary{}, err
	}
	defer release()

	ledger := sess.Ledger()
	previous := ledger.ID()
	ledger.Reset()
	slog.Info("Session reset", "session", key.String(), "previous_ledger", previous, "ledger", ledger.ID())
	s.log.Log(newLogEvent(ctx, key, ledger.ID(), "inbound", "session_reset", ""))
	return ledger.Summary(), nil
}

// Boosters returns the policy's quick confidence boosters.
func (s *Service) Boosters() []coach.Booster {
	return append([]coach.Booster(nil), s.composer.Policy().Boosters...)
}

// Completer returns the underlying completion client.
func (s *Service) Completer() completion.Completer {
	return s.completer
}

// archiveExchange writes the last exchange to the archive. Failures are logged;
// the in-memory ledger stays authoritative.
func (s *Service) archiveExchange(ctx context.Context, key session.Key, ledger *session.Ledger, fallback bool) {
	if s.archive == nil {
		return
	}
	turns := ledger.Turns()
	if len(turns) < 2 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	now := s.now()
	rec := domain.ArchivedSession{
		LedgerID:         ledger.ID(),
		ClientID:         key.ClientID,
		SessionID:        key.SessionID,
		TurnCount:        len(turns),
		LatestConfidence: ledger.LatestConfidence(),
		StartedAt:        ledger.StartedAt(),
		UpdatedAt:        now,
	}
	first := len(turns) - 2
	archived := make([]domain.ArchivedTurn, 0, 2)
	for i, t := range turns[first:] {
		archived = append(archived, domain.ArchivedTurn{
			LedgerID:        rec.LedgerID,
			Seq:             first + i,
			Role:            t.Role,
			Content:         t.Content,
			ConfidenceLevel: t.ConfidenceLevel,
			Fallback:        fallback && t.IsAssistant(),
			CreatedAt:       t.Timestamp,
		})
	}

	if err := s.archive.RecordExchange(ctx, rec, archived); err != nil {
		slog.Warn("Failed to archive exchange", "session", key.String(), "ledger", rec.LedgerID, "error", err)
	}
}
