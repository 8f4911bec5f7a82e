package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/caseflow/caseflow/internal/application/cooldown"
	"github.com/caseflow/caseflow/internal/application/lifecycle"
	"github.com/caseflow/caseflow/internal/application/partner"
	"github.com/caseflow/caseflow/internal/domain/action"
	"github.com/caseflow/caseflow/internal/domain/member"
	"github.com/caseflow/caseflow/internal/domain/ticket"
)

// Event is one UI interaction as the gateway reports it. Fields is
// populated for form submissions only.
type Event struct {
	GuildID    string            `json:"guildId"`
	ChannelID  string            `json:"channelId"`
	ActorID    string            `json:"actorId"`
	ActorRoles []string          `json:"actorRoles"`
	Token      string            `json:"token"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// Outcome is the single user-visible result of one handled event. At
// most one of Message/View/FormFor drives the renderer's primary
// surface; View may accompany a message when a new control set is
// broadcast to the channel.
type Outcome struct {
	Message   string                    `json:"message,omitempty"`
	View      *lifecycle.ViewDescriptor `json:"view,omitempty"`
	FormFor   action.Type               `json:"formFor,omitempty"`
	Ephemeral bool                      `json:"ephemeral"`
}

// Service routes decoded UI events to the lifecycle engine and shapes
// exactly one outcome per event.
type Service struct {
	engine     *lifecycle.Service
	resolver   *partner.Resolver
	cooldowns  *cooldown.Tracker
	extTimeout time.Duration
	logger     zerolog.Logger
}

func NewService(engine *lifecycle.Service, resolver *partner.Resolver, cooldowns *cooldown.Tracker, extTimeout time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		engine:     engine,
		resolver:   resolver,
		cooldowns:  cooldowns,
		extTimeout: extTimeout,
		logger:     logger.With().Str("service", "dispatcher").Logger(),
	}
}

const (
	msgStaleControl   = "This control is no longer valid."
	msgAlreadyHandled = "This case was already updated."
	msgNoPermission   = "You don't have permission to do that."
	msgNotFound       = "Not found."
	msgExternalFailed = "An external service failed. Please try again."
	msgCooldown       = "Please wait before doing that again."
)

// Handle processes one event. handled=false means the event carries no
// token for this engine and other collaborators may claim it.
func (s *Service) Handle(ctx context.Context, ev Event) (bool, Outcome) {
	if ev.Token == "" {
		return false, Outcome{}
	}
	if s.extTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.extTimeout)
		defer cancel()
	}

	tok, err := action.Decode(ev.Token)
	if err != nil {
		if errors.Is(err, action.ErrMalformedToken) {
			s.logger.Warn().Str("token", ev.Token).Msg("stale or tampered token")
		} else {
			// A recognized prefix with broken fields means we encoded it
			// wrong somewhere.
			s.logger.Error().Err(err).Str("token", ev.Token).Msg("token field decode bug")
		}
		return true, Outcome{Message: msgStaleControl, Ephemeral: true}
	}

	actor := lifecycle.Actor{ID: ev.ActorID, Roles: ev.ActorRoles}
	out := s.route(ctx, ev, tok, actor)

	s.logger.Info().
		Str("op", string(tok.Op)).
		Str("case_id", tok.CaseID).
		Str("actor_id", ev.ActorID).
		Bool("ok", out.Message != "" || out.View != nil || out.FormFor != "").
		Msg("interaction handled")
	return true, out
}

func (s *Service) route(ctx context.Context, ev Event, tok action.Token, actor lifecycle.Actor) Outcome {
	switch tok.Op {
	case action.TypeCreateShop:
		return s.createShop(ctx, ev, actor)
	case action.TypeCreateMidman:
		return s.createMidman(ctx, ev, actor)
	case action.TypeRequestPaymentDetails:
		return s.paymentDetails(ctx, ev, tok, actor)
	case action.TypePay:
		return s.paymentView(ctx, tok, actor)
	default:
		return s.transition(ctx, tok, actor)
	}
}

func (s *Service) createShop(ctx context.Context, ev Event, actor lifecycle.Actor) Outcome {
	if len(ev.Fields) == 0 {
		return Outcome{FormFor: action.TypeCreateShop, Ephemeral: true}
	}
	if !s.cooldowns.Allow(actor.ID, action.TypeCreateShop) {
		return Outcome{Message: msgCooldown, Ephemeral: true}
	}
	c, err := s.engine.CreateShop(ctx, actor.ID, lifecycle.ShopForm{
		Category:         ev.Fields["category"],
		OrderDescription: ev.Fields["order"],
		Quantity:         ev.Fields["quantity"],
		Notes:            ev.Fields["notes"],
	})
	if err != nil {
		return s.failure(err)
	}
	view, err := lifecycle.OrderConfirmationView(c)
	if err != nil {
		return s.failure(err)
	}
	return Outcome{Message: "Ticket created.", View: view}
}

func (s *Service) createMidman(ctx context.Context, ev Event, actor lifecycle.Actor) Outcome {
	if len(ev.Fields) == 0 {
		return Outcome{FormFor: action.TypeCreateMidman, Ephemeral: true}
	}
	if !s.cooldowns.Allow(actor.ID, action.TypeCreateMidman) {
		return Outcome{Message: msgCooldown, Ephemeral: true}
	}
	ref := ev.Fields["partner"]
	if len(ref) > 100 {
		return Outcome{Message: "Validation failed: partner reference exceeds 100 characters.", Ephemeral: true}
	}
	var resolved *member.Member
	if ref != "" {
		var err error
		resolved, err = s.resolver.Resolve(ctx, ev.GuildID, ref)
		if err != nil {
			// Directory trouble degrades to manual attach, same as an
			// unmatched reference; creation is never blocked on it.
			s.logger.Error().Err(err).Msg("partner resolution failed")
			resolved = nil
		}
	}
	c, err := s.engine.CreateMidman(ctx, actor.ID, lifecycle.MidmanForm{
		TransactionDescription: ev.Fields["transaction"],
		Amount:                 ev.Fields["amount"],
		PartnerReference:       ref,
	}, resolved)
	if err != nil {
		return s.failure(err)
	}
	view, err := lifecycle.MidmanIntroView(c)
	if err != nil {
		return s.failure(err)
	}
	msg := "Midman ticket created."
	if c.PartnerMissing {
		msg = "Midman ticket created. Partner could not be added; ask a midman handler to attach them manually."
	}
	return Outcome{Message: msg, View: view}
}

func (s *Service) paymentDetails(ctx context.Context, ev Event, tok action.Token, actor lifecycle.Actor) Outcome {
	caseID, err := uuid.Parse(tok.CaseID)
	if err != nil {
		return Outcome{Message: msgStaleControl, Ephemeral: true}
	}
	if len(ev.Fields) == 0 {
		// Button click: advance to PENDING and ask the renderer to open
		// the staff payment form.
		if _, err := s.engine.Apply(ctx, caseID, action.TypeRequestPaymentDetails, actor); err != nil {
			return s.failure(err)
		}
		return Outcome{FormFor: action.TypeRequestPaymentDetails, Ephemeral: true}
	}
	c, _, err := s.engine.SubmitPaymentDetails(ctx, caseID, actor, ev.Fields["staff_name"], ev.Fields["amount"])
	if err != nil {
		return s.failure(err)
	}
	view, err := s.engine.PaymentRequestView(c)
	if err != nil {
		return s.failure(err)
	}
	return Outcome{Message: "Payment details sent.", View: view}
}

func (s *Service) paymentView(ctx context.Context, tok action.Token, actor lifecycle.Actor) Outcome {
	caseID, err := uuid.Parse(tok.CaseID)
	if err != nil {
		return Outcome{Message: msgStaleControl, Ephemeral: true}
	}
	c, err := s.engine.GetByID(ctx, caseID)
	if err != nil {
		return s.failure(err)
	}
	view, err := s.engine.PaymentView(c, actor)
	if err != nil {
		return s.failure(err)
	}
	return Outcome{View: view, Ephemeral: true}
}

func (s *Service) transition(ctx context.Context, tok action.Token, actor lifecycle.Actor) Outcome {
	caseID, err := uuid.Parse(tok.CaseID)
	if err != nil {
		return Outcome{Message: msgStaleControl, Ephemeral: true}
	}
	c, err := s.engine.Apply(ctx, caseID, tok.Op, actor)
	if err != nil {
		return s.failure(err)
	}
	switch tok.Op {
	case action.TypeConfirmShop:
		view, err := lifecycle.OrderAgreementView(c)
		if err != nil {
			return s.failure(err)
		}
		return Outcome{Message: "Order confirmation sent.", View: view}
	case action.TypeAgreeShop:
		return Outcome{Message: "Order confirmed. Ticket closed.", Ephemeral: true}
	case action.TypeRejectShop:
		return Outcome{Message: "Ticket cancelled and deleted.", Ephemeral: true}
	case action.TypeConfirmPaymentReceived:
		return Outcome{Message: "Payment confirmed. Ticket closed.", Ephemeral: true}
	case action.TypeCloseCase:
		return Outcome{Message: "Ticket closed.", Ephemeral: true}
	default:
		return Outcome{Message: msgStaleControl, Ephemeral: true}
	}
}

// failure maps the error taxonomy to its user-facing wording. Each kind
// reads differently on purpose: a stale control, a lost race, and a
// permission failure call for different user reactions.
func (s *Service) failure(err error) Outcome {
	switch {
	case errors.Is(err, ticket.ErrInvalidTransition):
		return Outcome{Message: msgAlreadyHandled, Ephemeral: true}
	case errors.Is(err, ticket.ErrForbidden):
		return Outcome{Message: msgNoPermission, Ephemeral: true}
	case errors.Is(err, ticket.ErrValidationFailed):
		return Outcome{Message: "Validation failed: " + trimSentinel(err, ticket.ErrValidationFailed), Ephemeral: true}
	case errors.Is(err, ticket.ErrCaseNotFound), errors.Is(err, ticket.ErrNotFound):
		return Outcome{Message: msgNotFound, Ephemeral: true}
	case errors.Is(err, ticket.ErrExternalCallFailed):
		s.logger.Error().Err(err).Msg("external call failed")
		return Outcome{Message: msgExternalFailed, Ephemeral: true}
	default:
		s.logger.Error().Err(err).Msg("interaction failed")
		return Outcome{Message: "Something went wrong. Please try again.", Ephemeral: true}
	}
}

func trimSentinel(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
