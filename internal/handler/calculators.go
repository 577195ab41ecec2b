package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sakif/deskkit/internal/apperror"
	"github.com/sakif/deskkit/internal/calculator"
)

// MaxCalculators bounds how many calculators the registry keeps at once.
const MaxCalculators = 256

// CalculatorHandler keeps calculator engines in memory and drives them
// over HTTP.
//
// Each calculator is addressed by an xid. xids are sortable and URL safe,
// which keeps the /api/calculators/{id} paths short.
//
// An Engine is not safe for concurrent use, so every calculator carries its
// own mutex; requests to different calculators never wait on each other.
type CalculatorHandler struct {
	mu      sync.Mutex
	engines map[string]*calculatorEntry
	logger  *slog.Logger
}

type calculatorEntry struct {
	mu     sync.Mutex
	engine *calculator.Engine
}

// NewCalculatorHandler creates an empty calculator registry.
func NewCalculatorHandler(logger *slog.Logger) *CalculatorHandler {
	return &CalculatorHandler{
		engines: make(map[string]*calculatorEntry),
		logger:  logger,
	}
}

type calculatorResponse struct {
	ID    string           `json:"id"`
	State calculator.State `json:"state"`
}

type keysRequest struct {
	Keys []string `json:"keys"`
}

type evaluateRequest struct {
	Expression string `json:"expression"`
}

type evaluateResponse struct {
	Expression string  `json:"expression"`
	Value      float64 `json:"value"`
	Display    string  `json:"display"`
}

// HandleCreate starts a new calculator in its initial state.
//
// HTTP: POST /api/calculators
func (h *CalculatorHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if len(h.engines) >= MaxCalculators {
		h.mu.Unlock()
		writeError(w, apperror.Conflict("", "too many calculators; delete one first"))
		return
	}
	id := xid.New().String()
	engine := calculator.New()
	st := engine.State()
	h.engines[id] = &calculatorEntry{engine: engine}
	h.mu.Unlock()

	h.logger.Info("calculator created", slog.String("id", id))
	writeJSON(w, http.StatusCreated, calculatorResponse{ID: id, State: st})
}

// HandleGet returns a calculator's state.
//
// HTTP: GET /api/calculators/{id}
func (h *CalculatorHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, entry, err := h.lookup(r)
	if err != nil {
		writeError(w, err)
		return
	}

	entry.mu.Lock()
	st := entry.engine.State()
	entry.mu.Unlock()

	writeJSON(w, http.StatusOK, calculatorResponse{ID: id, State: st})
}

// HandleKeys presses keys on a calculator, in order.
//
// HTTP: POST /api/calculators/{id}/keys
// REQUEST BODY: {"keys": ["2", "+", "3", "="]}
//
// An evaluation error is not an HTTP error: the calculator shows "Error"
// and the response carries that state. An unknown key stops the sequence
// with 400; keys before it stay applied.
func (h *CalculatorHandler) HandleKeys(w http.ResponseWriter, r *http.Request) {
	id, entry, err := h.lookup(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req keysRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	entry.mu.Lock()
	err = entry.engine.PressAll(req.Keys)
	st := entry.engine.State()
	entry.mu.Unlock()

	if err != nil {
		if errors.Is(err, calculator.ErrUnknownKey) {
			writeError(w, apperror.ValidationFailed("keys", err.Error()))
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, calculatorResponse{ID: id, State: st})
}

// HandleDelete discards a calculator. Deleting an unknown id answers 204.
//
// HTTP: DELETE /api/calculators/{id}
func (h *CalculatorHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	delete(h.engines, id)
	h.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// HandleEvaluate computes a whole expression without keeping any state.
//
// HTTP: POST /api/evaluate
// REQUEST BODY: {"expression": "2+3×4"}
func (h *CalculatorHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	v, err := calculator.Evaluate(req.Expression)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, evaluateResponse{
		Expression: req.Expression,
		Value:      v,
		Display:    calculator.FormatResult(v),
	})
}

func (h *CalculatorHandler) lookup(r *http.Request) (string, *calculatorEntry, error) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	entry, ok := h.engines[id]
	h.mu.Unlock()

	if !ok {
		return id, nil, apperror.NotFound("calculator", id)
	}
	return id, entry, nil
}
