package api

import (
	"errors"
	"net/http"
	"strconv"

	apierrors "github.com/opsdesk/sd-bridge/internal/api/errors"
	"github.com/opsdesk/sd-bridge/internal/configstore"
	"github.com/opsdesk/sd-bridge/internal/domain"
	"github.com/opsdesk/sd-bridge/internal/routing"
)

// handleGetExplain answers "would this ticket route, and why" without
// requiring the caller to read the raw routing JSON. It resolves a
// ticket two ways: ?id=<n> looks it up in the live open queue; absent
// that, ?name= and the criterion ids the current field bindings expect
// build a synthetic ticket for dry-run testing.
func (h *handlers) handleGetExplain(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.configStore.Read(r.Context())
	if errors.Is(err, configstore.ErrNoConfig) {
		writeAPIError(w, r, apierrors.NotFoundError("configuration"))
		return
	}
	if err != nil {
		h.logger.Error("config read failed", "error", err)
		writeAPIError(w, r, apierrors.InternalError("failed to read configuration"))
		return
	}

	ticket, err := h.resolveExplainTicket(r, cfg.Routing.Fields)
	if err != nil {
		writeAPIError(w, r, apierrors.ValidationError(err.Error()))
		return
	}

	explanations := routing.ExplainMatches([]domain.Ticket{ticket}, cfg.Routing.Rules, cfg.Routing.Fields)
	writeJSON(w, http.StatusOK, map[string]any{"explain_matches": explanations})
}

// resolveExplainTicket builds the ticket handleGetExplain explains,
// either by id from the live open queue or synthetically from query
// params bound to the configuration's current field names.
func (h *handlers) resolveExplainTicket(r *http.Request, fields domain.FieldBindings) (domain.Ticket, error) {
	q := r.URL.Query()

	if raw := q.Get("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.Ticket{}, errors.New("id must be an integer")
		}
		result := h.sdProxy.GetOpen(r.Context(), defaultSDOpenLimit)
		if !result.OK {
			return domain.Ticket{}, errors.New("open queue unavailable: " + result.Error)
		}
		for _, item := range result.Items {
			if item.ID == id {
				return item, nil
			}
		}
		return domain.Ticket{}, errors.New("ticket not found in open queue")
	}

	ticket := domain.Ticket{Name: q.Get("name"), Fields: map[string]interface{}{}}
	setExplainField(ticket.Fields, fields.ServiceIDField, q.Get("service_id"))
	setExplainField(ticket.Fields, fields.CustomerIDField, q.Get("customer_id"))
	setExplainField(ticket.Fields, fields.CreatorIDField, q.Get("creator_id"))
	setExplainField(ticket.Fields, fields.CreatorCompanyIDField, q.Get("creator_company_id"))
	return ticket, nil
}

func setExplainField(fields map[string]interface{}, field, raw string) {
	if field == "" || raw == "" {
		return
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		fields[field] = n
	}
}
