package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/zhirschtritt/deals/internal/domain"
)

const maxDealBodyBytes = 1 << 20

type DealRouter struct {
	dealService *domain.DealService
	logger      *slog.Logger
}

func NewDealRouter(dealService *domain.DealService, logger *slog.Logger) *DealRouter {
	return &DealRouter{
		dealService: dealService,
		logger:      logger,
	}
}

func (dr *DealRouter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", dr.listDeals)
	r.Post("/", dr.createDeal)
	r.Get("/{id}", dr.getDeal)
	r.Patch("/{id}", dr.updateDeal)
	r.Put("/{id}", dr.updateDeal)
	r.Delete("/{id}", dr.deleteDeal)
	return r
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ValidationErrorResponse struct {
	Message string              `json:"message"`
	Errors  []domain.FieldError `json:"errors"`
}

func (dr *DealRouter) listDeals(w http.ResponseWriter, r *http.Request) {
	deals, err := dr.dealService.ListDeals(r.Context())
	if err != nil {
		dr.writeDealError(w, err, "failed to list deals")
		return
	}

	dr.writeJSON(w, http.StatusOK, deals)
}

func (dr *DealRouter) createDeal(w http.ResponseWriter, r *http.Request) {
	input, ok := dr.decodeInput(w, r)
	if !ok {
		return
	}

	deal, err := dr.dealService.CreateDeal(r.Context(), input)
	if err != nil {
		dr.writeDealError(w, err, "failed to create deal", "email", input.Email)
		return
	}

	dr.writeJSON(w, http.StatusCreated, deal)
}

func (dr *DealRouter) getDeal(w http.ResponseWriter, r *http.Request) {
	id, ok := dr.parseID(w, r)
	if !ok {
		return
	}

	deal, err := dr.dealService.GetDeal(r.Context(), id)
	if err != nil {
		dr.writeDealError(w, err, "failed to get deal", "deal_id", id)
		return
	}

	dr.writeJSON(w, http.StatusOK, deal)
}

func (dr *DealRouter) updateDeal(w http.ResponseWriter, r *http.Request) {
	id, ok := dr.parseID(w, r)
	if !ok {
		return
	}

	input, ok := dr.decodeInput(w, r)
	if !ok {
		return
	}

	deal, err := dr.dealService.UpdateDeal(r.Context(), id, input)
	if err != nil {
		dr.writeDealError(w, err, "failed to update deal", "deal_id", id)
		return
	}

	dr.writeJSON(w, http.StatusOK, deal)
}

// deleteDeal reports success whether or not the deal existed.
func (dr *DealRouter) deleteDeal(w http.ResponseWriter, r *http.Request) {
	id, ok := dr.parseID(w, r)
	if !ok {
		return
	}

	if err := dr.dealService.DeleteDeal(r.Context(), id); err != nil {
		dr.writeDealError(w, err, "failed to delete deal", "deal_id", id)
		return
	}

	dr.writeJSON(w, http.StatusOK, MessageResponse{Message: "Deal deleted"})
}

func (dr *DealRouter) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		dr.writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Invalid deal id"})
		return 0, false
	}
	return id, true
}

func (dr *DealRouter) decodeInput(w http.ResponseWriter, r *http.Request) (domain.DealInput, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDealBodyBytes))
	if err != nil {
		dr.logger.Error("failed to read deal request body", "error", err)
		dr.writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Invalid request body"})
		return domain.DealInput{}, false
	}

	input, err := domain.DecodeDealInput(body)
	if err != nil {
		dr.writeDealError(w, err, "failed to decode deal request")
		return domain.DealInput{}, false
	}

	return input, true
}

func (dr *DealRouter) writeDealError(w http.ResponseWriter, err error, msg string, attrs ...any) {
	var validationErr *domain.ValidationError

	switch {
	case errors.As(err, &validationErr):
		dr.writeJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Message: "Invalid deal",
			Errors:  validationErr.Fields,
		})
	case errors.Is(err, domain.ErrMalformedInput):
		dr.writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Invalid request body"})
	case errors.Is(err, domain.ErrDealNotFound):
		dr.writeJSON(w, http.StatusNotFound, MessageResponse{Message: "Deal not found"})
	case errors.Is(err, domain.ErrDuplicateEmail):
		dr.logger.Warn(msg, append(attrs, "error", err)...)
		dr.writeJSON(w, http.StatusConflict, MessageResponse{Message: "A deal with this email already exists"})
	case errors.Is(err, domain.ErrCreationFailed):
		dr.logger.Error(msg, append(attrs, "error", err)...)
		dr.writeJSON(w, http.StatusInternalServerError, MessageResponse{Message: "Failed to create deal"})
	default:
		dr.logger.Error(msg, append(attrs, "error", err)...)
		dr.writeJSON(w, http.StatusInternalServerError, MessageResponse{Message: "Internal server error"})
	}
}

func (dr *DealRouter) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		dr.logger.Error("failed to encode deal response", "error", err)
	}
}
