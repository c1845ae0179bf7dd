// Package escalation tracks how long each open ticket has dwelled unattended
// and fires a one-shot notification once a ticket crosses its configured
// threshold. A ticket's disappearance from the open queue is treated as the
// definitive signal that it was taken into work, closed, or transferred —
// no per-assignee probing is needed, since the poller already reports
// exactly the tickets currently in the open status.
package escalation

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/opsdesk/sd-bridge/internal/domain"
)

// StateKey is the fixed state store key the engine persists its maps
// under.
const StateKey = "escalation.v1"

// Action is one escalation event: a destination, the mention text
// configured for the matching rule, and the tickets that triggered it
// (multiple tickets matching the same destination+mention in one pass are
// coalesced into a single action).
type Action struct {
	Dest    domain.Destination
	Mention string
	Tickets []domain.Ticket
}

type state struct {
	SeenAt      map[string]int64 `json:"seen_at"`
	EscalatedAt map[string]int64 `json:"escalated_at"`
}

// Engine is the stateful dwell-time tracker described in component C3.
// Process holds the engine's mutex for the whole pass, persistence
// included, so concurrent calls are serialized rather than interleaved.
type Engine struct {
	store Store
	mu    sync.Mutex
	st    state
}

// Store is the subset of statestore.Store the engine depends on.
type Store interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}) error
}

// NewEngine constructs an Engine and loads any persisted state. A load
// failure (including ErrNotFound on a cold start) is not fatal: the engine
// simply starts with empty maps, matching "on cold start with no prior
// snapshot, treat as empty" from the error handling design.
func NewEngine(ctx context.Context, store Store) *Engine {
	e := &Engine{
		store: store,
		st: state{
			SeenAt:      map[string]int64{},
			EscalatedAt: map[string]int64{},
		},
	}
	e.load(ctx)
	return e
}

func (e *Engine) load(ctx context.Context) {
	if e.store == nil {
		return
	}
	var loaded state
	if err := e.store.GetJSON(ctx, StateKey, &loaded); err != nil {
		return
	}
	e.st = sanitizeState(loaded)
}

// sanitizeState coerces non-integer keys out of a freshly loaded state, as
// required when the persisted blob came from an untrusted or stale writer.
func sanitizeState(in state) state {
	out := state{SeenAt: map[string]int64{}, EscalatedAt: map[string]int64{}}
	for k, v := range in.SeenAt {
		if _, err := strconv.ParseInt(k, 10, 64); err == nil {
			out.SeenAt[k] = v
		}
	}
	for k, v := range in.EscalatedAt {
		if _, err := strconv.ParseInt(k, 10, 64); err == nil {
			out.EscalatedAt[k] = v
		}
	}
	return out
}

// Process runs one escalation pass over the currently open tickets,
// updating dwell-time state and returning the actions (if any) that should
// fire now. now is supplied by the caller rather than read internally so
// that tests can drive virtual time (spec scenario 4).
func (e *Engine) Process(ctx context.Context, items []domain.Ticket, cfg domain.EscalationConfig, now time.Time) []Action {
	e.mu.Lock()
	defer e.mu.Unlock()

	nowUnix := now.Unix()
	currentIDs := make(map[string]domain.Ticket, len(items))
	for _, item := range items {
		if item.ID <= 0 {
			continue
		}
		key := strconv.FormatInt(item.ID, 10)
		currentIDs[key] = item
		if _, ok := e.st.SeenAt[key]; !ok {
			e.st.SeenAt[key] = nowUnix
		}
	}

	for key := range e.st.SeenAt {
		if _, ok := currentIDs[key]; !ok {
			delete(e.st.SeenAt, key)
			delete(e.st.EscalatedAt, key)
		}
	}

	actions := e.collectActions(currentIDs, cfg, nowUnix)

	e.persist(ctx)
	return actions
}

func (e *Engine) collectActions(currentIDs map[string]domain.Ticket, cfg domain.EscalationConfig, nowUnix int64) []Action {
	type actionKey struct {
		dest    domain.Destination
		mention string
	}
	byKey := make(map[actionKey]*Action)
	var order []actionKey

	for key, item := range currentIDs {
		if _, already := e.st.EscalatedAt[key]; already {
			continue
		}
		seenAt, ok := e.st.SeenAt[key]
		if !ok {
			seenAt = nowUnix
		}
		if nowUnix-seenAt < int64(cfg.AfterS) {
			continue
		}

		rule, matched := matchEscalationRule(item, cfg.Rules, cfg.Fields)
		if !matched {
			continue
		}

		e.st.EscalatedAt[key] = nowUnix

		ak := actionKey{dest: rule.Dest, mention: rule.Mention}
		if a, exists := byKey[ak]; exists {
			a.Tickets = append(a.Tickets, item)
			continue
		}
		a := &Action{Dest: rule.Dest, Mention: rule.Mention, Tickets: []domain.Ticket{item}}
		byKey[ak] = a
		order = append(order, ak)
	}

	out := make([]Action, 0, len(order))
	for _, ak := range order {
		out = append(out, *byKey[ak])
	}
	return out
}

func matchEscalationRule(item domain.Ticket, rules []domain.EscalationRule, fields domain.FieldBindings) (domain.EscalationRule, bool) {
	for _, rule := range rules {
		if matchesEscalationFilter(item, rule.Filt, fields) {
			return rule, true
		}
	}
	return domain.EscalationRule{}, false
}

// matchesEscalationFilter mirrors routing's OR-of-criteria semantics, but
// with the escalation-specific rule that an empty filter matches
// everything (escalate anything that dwells long enough).
func matchesEscalationFilter(item domain.Ticket, flt domain.Filter, fields domain.FieldBindings) bool {
	if flt.Empty() {
		return true
	}

	if len(flt.Keywords) > 0 {
		name := domain.NormalizeKeyword(item.Name)
		for _, kw := range flt.Keywords {
			if kw != "" && strings.Contains(name, kw) {
				return true
			}
		}
	}
	if matchesIDSet(item, fields.ServiceIDField, flt.ServiceIDs) {
		return true
	}
	if matchesIDSet(item, fields.CustomerIDField, flt.CustomerIDs) {
		return true
	}
	if matchesIDSet(item, fields.CreatorIDField, flt.CreatorIDs) {
		return true
	}
	if matchesIDSet(item, fields.CreatorCompanyIDField, flt.CreatorCompanyIDs) {
		return true
	}
	return false
}

func matchesIDSet(item domain.Ticket, field string, ids []int64) bool {
	if len(ids) == 0 || field == "" {
		return false
	}
	val, ok := item.FieldInt(field)
	if !ok {
		return false
	}
	for _, id := range ids {
		if val == id {
			return true
		}
	}
	return false
}

func (e *Engine) persist(ctx context.Context) {
	if e.store == nil {
		return
	}
	_ = e.store.SetJSON(ctx, StateKey, e.st)
}

// MarshalState is exported for diagnostics endpoints that want to report
// current dwell-time state without exposing the engine's internals.
func (e *Engine) MarshalState() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return json.Marshal(e.st)
}
