/*
handlers.go - HTTP API handlers for the revenue engine

PURPOSE:
  Exposes the revenue engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to revenue.Engine and revenue.Ledger.

ENDPOINTS:
  Contracts:
    GET    /api/contracts                       List contracts
    POST   /api/contracts                       Create from a contract document
    GET    /api/contracts/{id}                  Contract header
    PUT    /api/contracts/{id}/obligations      Replace candidate obligations
    POST   /api/contracts/{id}/considerations   Add variable consideration
    POST   /api/contracts/{id}/process          Resolve, allocate, schedule
    GET    /api/contracts/{id}/obligations      Allocated obligations
    GET    /api/contracts/{id}/schedule         Schedule with status
    GET    /api/contracts/{id}/history          Journal records
    GET    /api/contracts/{id}/summary          Recognized / remaining
    POST   /api/contracts/{id}/recognize-due    Recognize everything due

  Entries:
    POST   /api/entries/{id}/recognize          Recognize one entry
    POST   /api/entries/{id}/adjust             Append a signed delta
    POST   /api/entries/{id}/reverse            Append a reversal

  Obligations:
    GET    /api/obligations/{id}/remaining      Recognized and remaining

  Admin:
    POST   /api/admin/process                   Process every contract
    POST   /api/admin/recognize-due             Recognize due entries everywhere

ERROR HANDLING:
  - 400: Malformed body, invalid contract document
  - 404: Contract, obligation or entry not found
  - 409: Ledger state forbids the operation (already recognized, reversed,
         over-recognition, not recognized, obligation in use), or the
         contract ID already exists
  - 422: Valid request the engine rejects (negative price, bad
         consideration, negative SSP, not yet due)
  - 500: Internal errors

SECURITY NOTE:
  No authentication. Run behind a gateway that provides it.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/revenue-engine/factory"
	"github.com/warp/revenue-engine/generic"
	"github.com/warp/revenue-engine/logger"
	"github.com/warp/revenue-engine/revenue"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine  *revenue.Engine
	Factory *factory.ContractFactory

	// Now is the clock used for "today". Tests replace it.
	Now func() time.Time
}

func NewHandler(engine *revenue.Engine) *Handler {
	return &Handler{
		Engine:  engine,
		Factory: factory.NewContractFactory(),
		Now:     time.Now,
	}
}

func (h *Handler) repo() revenue.Repository { return h.Engine.Repository() }
func (h *Handler) ledger() *revenue.Ledger  { return h.Engine.Ledger() }

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	contracts, err := h.repo().ListContracts(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]ContractDTO, len(contracts))
	for i, c := range contracts {
		dtos[i] = toContractDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateContract stores a contract document. With ?process=true the
// pipeline runs immediately and the result is returned. An ID that is
// already stored is a conflict.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	doc, err := h.Factory.ParseContract(body)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	ctx := r.Context()
	repo := h.repo()
	if _, err := repo.GetContract(ctx, doc.Contract.ID); err == nil {
		writeDomainError(w, r, fmt.Errorf("contract %s: %w", doc.Contract.ID, generic.ErrContractExists))
		return
	} else if !errors.Is(err, generic.ErrContractNotFound) {
		writeDomainError(w, r, err)
		return
	}
	if err := repo.SaveContract(ctx, doc.Contract); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := repo.SaveCandidates(ctx, doc.Contract.ID, doc.Candidates); err != nil {
		writeDomainError(w, r, err)
		return
	}
	for _, el := range doc.Considerations {
		if err := repo.AddConsideration(ctx, doc.Contract.ID, el); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}

	if r.URL.Query().Get("process") == "true" {
		res, err := h.Engine.Process(ctx, doc.Contract.ID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toProcessDTO(res))
		return
	}
	writeJSON(w, http.StatusCreated, toContractDTO(doc.Contract))
}

func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	c, err := h.repo().GetContract(r.Context(), contractID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c))
}

func (h *Handler) ReplaceObligations(w http.ResponseWriter, r *http.Request) {
	id := contractID(r)
	if _, err := h.repo().GetContract(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}

	var req ReplaceObligationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	candidates, err := h.Factory.ParseObligations(req.Obligations)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.repo().SaveCandidates(r.Context(), id, candidates); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddConsideration(w http.ResponseWriter, r *http.Request) {
	id := contractID(r)
	if _, err := h.repo().GetContract(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}

	var req factory.ConsiderationJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	el, err := factory.ParseConsideration(req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.repo().AddConsideration(r.Context(), id, el); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ProcessContract(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.Process(r.Context(), contractID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProcessDTO(res))
}

func (h *Handler) GetObligations(w http.ResponseWriter, r *http.Request) {
	id := contractID(r)
	if _, err := h.repo().GetContract(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	obs, err := h.repo().Obligations(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationDTOs(obs))
}

func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id := contractID(r)
	if _, err := h.repo().GetContract(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	entries, err := h.ledger().Schedule(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := contractID(r)
	if _, err := h.repo().GetContract(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	entries, err := h.ledger().History(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id := contractID(r)
	if _, err := h.repo().GetContract(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	summary, err := h.ledger().Summary(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// RecognizeDue recognizes the contract's due entries. A failure part way
// is reported with the entries recognized before it.
func (h *Handler) RecognizeDue(w http.ResponseWriter, r *http.Request) {
	id := contractID(r)
	if _, err := h.repo().GetContract(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	asOf, ok := h.decodeAsOf(w, r)
	if !ok {
		return
	}
	recognized, err := h.ledger().RecognizeDue(r.Context(), id, asOf)
	dto := RecognizedDTO{Count: len(recognized), Entries: toEntryDTOs(recognized)}
	if err != nil {
		if len(recognized) == 0 {
			writeDomainError(w, r, err)
			return
		}
		dto.Error = err.Error()
		writeJSON(w, statusFor(err), dto)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

func (h *Handler) RecognizeEntry(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.decodeAsOf(w, r)
	if !ok {
		return
	}
	entry, err := h.ledger().Recognize(r.Context(), entryID(r), asOf)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

func (h *Handler) AdjustEntry(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required", nil)
		return
	}
	entry, err := h.ledger().Adjust(r.Context(), entryID(r), generic.AmountOf(req.Delta), req.Reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

func (h *Handler) ReverseEntry(w http.ResponseWriter, r *http.Request) {
	var req ReverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required", nil)
		return
	}
	entry, err := h.ledger().Reverse(r.Context(), entryID(r), req.Reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

func (h *Handler) GetRemaining(w http.ResponseWriter, r *http.Request) {
	id := revenue.ObligationID(chi.URLParam(r, "id"))
	recognized, err := h.ledger().TotalRecognized(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	remaining, err := h.ledger().RemainingRevenue(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RemainingDTO{
		ObligationID: string(id),
		Recognized:   recognized.String(),
		Remaining:    remaining.String(),
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

func (h *Handler) ProcessAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.Engine.ProcessAll(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]ProcessDTO, len(results))
	for i, res := range results {
		dtos[i] = toProcessDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) RecognizeAllDue(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.decodeAsOf(w, r)
	if !ok {
		return
	}
	count, err := h.Engine.RecognizeAllDue(r.Context(), asOf)
	dto := RecognizedDTO{Count: count}
	if err != nil {
		dto.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

func contractID(r *http.Request) revenue.ContractID {
	return revenue.ContractID(chi.URLParam(r, "id"))
}

func entryID(r *http.Request) revenue.EntryID {
	return revenue.EntryID(chi.URLParam(r, "id"))
}

// decodeAsOf reads an optional AsOfRequest body; empty body or date means
// today.
func (h *Handler) decodeAsOf(w http.ResponseWriter, r *http.Request) (generic.TimePoint, bool) {
	var req AsOfRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return generic.TimePoint{}, false
		}
	}
	if req.AsOf == "" {
		return generic.FromTime(h.Now()), true
	}
	asOf, err := generic.ParseDate(req.AsOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
		return generic.TimePoint{}, false
	}
	return asOf, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, factory.ErrInvalidDocument):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	case generic.IsClientError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error().Err(err).Msg("request failed")
		writeError(w, status, "Internal error", err)
		return
	}
	writeError(w, status, http.StatusText(status), err)
}
