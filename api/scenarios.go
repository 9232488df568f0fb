/*
scenarios.go - Demo scenario loaders

PURPOSE:
  Seeds the database with demo members, payments, and issued documents so
  the admin UI and manual API exploration have realistic data. Scenarios
  are dev-only; the reset endpoint wipes everything first.

SCENARIOS:
  fresh-january:  Two members, three January payments, no documents issued
                  yet - the starting point for walking through issuance
  issued-quarter: A quarter of payments with receipts already issued,
                  demonstrating per-month serial scopes

SEE ALSO:
  - handlers.go: Handler struct this extends
  - receipts/service.go: Issuance used to pre-issue documents
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/billing-engine/invoices"
	"github.com/warp/billing-engine/numbering"
	"github.com/warp/billing-engine/receipts"
	"github.com/warp/billing-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-january",
		Name:        "Fresh January",
		Description: "Two members with January payments, no documents issued yet",
	},
	{
		ID:          "issued-quarter",
		Name:        "Issued Quarter",
		Description: "A quarter of payments with receipts issued, showing monthly serial scopes",
	},
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"scenarios": scenarios,
		"current":   h.currentScenario,
	})
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.Store.Reset(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if err := h.seedSeries(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "fresh-january":
		err = h.loadFreshJanuary(r.Context())
	case "issued-quarter":
		err = h.loadIssuedQuarter(r.Context())
	default:
		respondError(w, http.StatusBadRequest, fmt.Errorf("unknown scenario %q", req.ScenarioID))
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	h.currentScenario = req.ScenarioID
	respondJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	h.currentScenario = ""
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SEED DATA
// =============================================================================

func (h *Handler) seedSeries(ctx context.Context) error {
	for _, preset := range []string{receipts.DefaultSeriesJSON(), invoices.DefaultSeriesJSON()} {
		series, err := h.SeriesFactory.ParseSeries(preset)
		if err != nil {
			return err
		}
		record := sqlite.SeriesRecord{
			Code:         series.Kind.KindCode(),
			Name:         series.Name,
			Domain:       series.Kind.KindDomain(),
			CounterWidth: series.CounterWidth,
		}
		if err := h.Store.SaveSeries(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadFreshJanuary(ctx context.Context) error {
	members := []sqlite.Member{
		{ID: "mem-alice", Name: "Alice Moreau", Email: "alice@example.com"},
		{ID: "mem-bruno", Name: "Bruno Keller", Email: "bruno@example.com"},
	}
	for _, m := range members {
		if err := h.Store.SaveMember(ctx, m); err != nil {
			return err
		}
	}

	payments := []numbering.Transaction{
		payment("pay-jan-1", "mem-alice", "150.00", date(2025, time.January, 15), "January dues"),
		payment("pay-jan-2", "mem-bruno", "75.00", date(2025, time.January, 20), "January dues"),
		payment("pay-jan-3", "mem-alice", "42.50", date(2025, time.January, 28), "Locker fee"),
	}
	for _, p := range payments {
		if err := h.Store.SavePayment(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadIssuedQuarter(ctx context.Context) error {
	if err := h.loadFreshJanuary(ctx); err != nil {
		return err
	}

	extra := []numbering.Transaction{
		payment("pay-feb-1", "mem-bruno", "75.00", date(2025, time.February, 3), "February dues"),
		payment("pay-feb-2", "mem-alice", "150.00", date(2025, time.February, 17), "February dues"),
		payment("pay-mar-1", "mem-alice", "150.00", date(2025, time.March, 12), "March dues"),
	}
	for _, p := range extra {
		if err := h.Store.SavePayment(ctx, p); err != nil {
			return err
		}
	}

	// Issue receipts in effective-date order so each month's serials are
	// dense from 001.
	ids := []numbering.TransactionID{
		"pay-jan-1", "pay-jan-2", "pay-jan-3",
		"pay-feb-1", "pay-feb-2", "pay-mar-1",
	}
	for _, id := range ids {
		if _, err := h.Receipts.Issue(ctx, id, "system"); err != nil {
			return err
		}
	}
	return nil
}

func payment(id, memberID, amount string, effectiveAt time.Time, note string) numbering.Transaction {
	return numbering.Transaction{
		ID:          numbering.TransactionID(id),
		OwnerID:     numbering.OwnerID(memberID),
		Amount:      numbering.NewMoneyFromString(amount, "EUR"),
		EffectiveAt: effectiveAt,
		Note:        note,
	}
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
