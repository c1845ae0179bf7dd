// Package notifier turns routed tickets and escalation actions into chat
// messages. It owns destination resolution for the main notification path
// (escalation destinations are already resolved by the escalation engine)
// and hands the no-destination and forbidden-send cases off to the
// observability service rather than swallowing them.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opsdesk/sd-bridge/internal/domain"
	"github.com/opsdesk/sd-bridge/internal/notifier/chat"
	"github.com/opsdesk/sd-bridge/internal/poller"
	"github.com/opsdesk/sd-bridge/internal/routing"
)

// ConfigProvider returns the currently active runtime configuration. The
// service re-reads it on every call since config sync may have swapped it
// between notifications.
type ConfigProvider interface {
	Current() domain.RuntimeConfig
}

// NoDestinationHandler is notified when the main notification path has no
// destination to send to at all (no rule matched and no default is
// configured). Satisfied by the observability service's admin-alert path.
type NoDestinationHandler interface {
	HandleNoDestination(ctx context.Context, items []domain.Ticket)
}

// ForbiddenSendHandler is notified when the chat platform reports the bot
// can no longer post to a destination.
type ForbiddenSendHandler interface {
	HandleForbiddenSend(ctx context.Context, chatID, threadID int64, context, reason string)
}

// Service is the notification fan-out: one sender, one config snapshot
// source, and the two observability hooks the reference implementation
// wires into its bot.
type Service struct {
	sender    chat.Sender
	config    ConfigProvider
	noDest    NoDestinationHandler
	forbidden ForbiddenSendHandler
	logger    *slog.Logger
}

// New constructs a Service. noDest and forbidden may be nil, in which
// case the corresponding event is only logged.
func New(sender chat.Sender, config ConfigProvider, noDest NoDestinationHandler, forbidden ForbiddenSendHandler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{sender: sender, config: config, noDest: noDest, forbidden: forbidden, logger: logger}
}

// NotifyMain routes items through the currently active routing rules and
// sends text to every resolved destination. If routing resolves to no
// destination at all, the no-destination handler is invoked instead of
// silently dropping the notification.
func (s *Service) NotifyMain(ctx context.Context, items []domain.Ticket, text string) error {
	cfg := s.config.Current()
	dests := routing.PickDestinations(items, cfg.Routing.Rules, cfg.Routing.DefaultDest, cfg.Routing.Fields)

	if len(dests) == 0 {
		if s.noDest != nil {
			s.noDest.HandleNoDestination(ctx, items)
		} else {
			s.logger.WarnContext(ctx, "no destination for open queue notification", "item_count", len(items))
		}
		return nil
	}

	var firstErr error
	for _, dest := range dests {
		if err := s.sendSafe(ctx, dest, text, "routing.main"); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NotifyEscalation sends one message per escalation action (tickets that
// coalesced into the same destination and mention were already merged by
// the escalation engine into a single action).
func (s *Service) NotifyEscalation(ctx context.Context, actions []poller.EscalationAction) error {
	cfg := s.config.Current()
	if !cfg.Escalation.Enabled {
		return nil
	}

	var firstErr error
	for _, action := range actions {
		text := renderEscalationText(action)
		if err := s.sendSafe(ctx, action.Dest, text, "routing.escalation"); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NotifyEventlog routes one eventlog entry through the eventlog route set
// and sends text to every resolved destination. Unlike NotifyMain, an
// entry matching no filter is simply dropped: the eventlog bridge has no
// default destination and no no-destination observability hook, since it
// is a supplemental signal rather than the bot's primary queue.
func (s *Service) NotifyEventlog(ctx context.Context, entry domain.EventlogEntry, text string) error {
	cfg := s.config.Current()
	dests := routing.MatchEventlogDestinations(entry, cfg.Eventlog.Filters)
	if len(dests) == 0 {
		s.logger.DebugContext(ctx, "no destination for eventlog entry", "entry_id", entry.ID)
		return nil
	}

	var firstErr error
	for _, dest := range dests {
		if err := s.sendSafe(ctx, dest, text, "routing.eventlog"); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// sendSafe sends text to dest, translating a forbidden response into a
// call to the forbidden-send handler instead of propagating the error -
// a bot kicked from a chat should not stall the rest of the fan-out, nor
// repeatedly fail the caller's retry logic for a destination that will
// never accept another message.
func (s *Service) sendSafe(ctx context.Context, dest domain.Destination, text, notifyContext string) error {
	err := s.sender.SendMessage(ctx, dest.ChatID, dest.ThreadID, text)
	if err == nil {
		return nil
	}

	if errors.Is(err, chat.ErrForbidden) {
		s.logger.WarnContext(ctx, "forbidden send", "chat_id", dest.ChatID, "thread_id", dest.ThreadID, "error", err)
		if s.forbidden != nil {
			s.forbidden.HandleForbiddenSend(ctx, dest.ChatID, dest.ThreadID, notifyContext, err.Error())
		}
		return nil
	}

	s.logger.ErrorContext(ctx, "send message failed", "chat_id", dest.ChatID, "thread_id", dest.ThreadID,
		"context", notifyContext, "error", err)
	return err
}

func renderEscalationText(action poller.EscalationAction) string {
	now := time.Now().Format("2006-01-02 15:04:05")
	lines := []string{
		fmt.Sprintf("Escalation: tickets not taken into work in time -- %s", now),
		fmt.Sprintf("%s please take these into work.", action.Mention),
		"",
	}
	for _, ticket := range action.Tickets {
		lines = append(lines, fmt.Sprintf("- #%d: %s", ticket.ID, ticket.Name))
	}
	return strings.Join(lines, "\n")
}
