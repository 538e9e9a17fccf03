package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/Rajan093/VastuAi/internal/core"
	"github.com/Rajan093/VastuAi/internal/generation"
	"github.com/Rajan093/VastuAi/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// followUpTopK bounds retrieval for follow-up questions; the initial reading
// uses one rule per chart pair instead.
const followUpTopK = 3

// PlaceResolver fills coordinates and timezone for a birth place.
type PlaceResolver interface {
	Resolve(b *models.BirthDetails) error
}

// ChartCalculator computes the sidereal horoscope from resolved birth details.
type ChartCalculator interface {
	Calculate(b models.BirthDetails) (*models.Horoscope, error)
}

// RuleRetriever fetches rule passages for a chart or a question.
type RuleRetriever interface {
	ByChart(ctx context.Context, chart *models.Horoscope, perPair int) ([]models.RetrievedRule, error)
	ByQuestion(ctx context.Context, question string, chart *models.Horoscope, k int) ([]models.RetrievedRule, error)
}

// Astrologer is the LLM side of a consultation.
type Astrologer interface {
	InitialReading(ctx context.Context, chart *models.Horoscope, rules []models.RetrievedRule) (map[string]string, error)
	Answer(ctx context.Context, chart *models.Horoscope, rules []models.RetrievedRule, history []models.ChatMessage, question string) (string, error)
	ExtractBirthDetails(ctx context.Context, message string) (*generation.BirthExtraction, error)
	ValidateTopic(ctx context.Context, question string) bool
}

type SessionHandler struct {
	dbclient   core.DbClient
	resolver   PlaceResolver
	calculator ChartCalculator
	retriever  RuleRetriever
	astrologer Astrologer
}

func NewSessionHandler(db core.DbClient, resolver PlaceResolver, calc ChartCalculator, retriever RuleRetriever, astrologer Astrologer) *SessionHandler {
	return &SessionHandler{
		dbclient:   db,
		resolver:   resolver,
		calculator: calc,
		retriever:  retriever,
		astrologer: astrologer,
	}
}

// createSessionRequest accepts birth details either as structured fields or
// as free text to run through LLM extraction.
type createSessionRequest struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Place string `json:"place"`
	Text  string `json:"text"`
}

type createSessionResponse struct {
	SessionID string            `json:"session_id"`
	Chart     *models.Horoscope `json:"chart"`
	Reading   string            `json:"reading"`
	Degraded  bool              `json:"degraded,omitempty"`
}

type apiError struct {
	Error         string   `json:"error"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, missing ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiError{Error: msg, MissingFields: missing})
}

// CreateSession starts a consultation: birth details in, chart plus the
// four-aspect initial reading out.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := ctx.Value("user_id").(string)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	birth, firstMessage, errDone := h.birthFromRequest(ctx, w, &req)
	if errDone {
		return
	}

	if err := h.resolver.Resolve(birth); err != nil {
		var re *core.ResolutionError
		if errors.As(err, &re) {
			writeError(w, http.StatusUnprocessableEntity, "could not find birth place "+re.Place+"; please re-enter the location")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	chart, err := h.calculator.Calculate(*birth)
	if err != nil {
		var ce *core.CalculationError
		if errors.As(err, &ce) {
			writeError(w, http.StatusUnprocessableEntity, ce.Reason)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rules, degraded := h.retrieve(func() ([]models.RetrievedRule, error) {
		return h.retriever.ByChart(ctx, chart, 1)
	})

	reading, err := h.astrologer.InitialReading(ctx, chart, rules)
	if err != nil {
		writeError(w, http.StatusBadGateway, "the astrologer is unavailable right now; please try again")
		return
	}

	session := &models.ChatSession{
		ID:     uuid.NewString(),
		UserID: userID,
		Birth:  *birth,
		Chart:  chart,
	}
	if err := h.dbclient.CreateChatSession(ctx, session); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store session")
		return
	}

	formatted := generation.FormatReading(reading)
	if err := h.appendTurn(ctx, session.ID, firstMessage, formatted); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store conversation")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(createSessionResponse{
		SessionID: session.ID,
		Chart:     chart,
		Reading:   formatted,
		Degraded:  degraded,
	})
}

// birthFromRequest normalizes the request into birth details, writing the
// error response itself when the input cannot produce one.
func (h *SessionHandler) birthFromRequest(ctx context.Context, w http.ResponseWriter, req *createSessionRequest) (birth *models.BirthDetails, firstMessage string, errDone bool) {
	if strings.TrimSpace(req.Text) == "" {
		birth = &models.BirthDetails{Date: req.Date, Time: req.Time, Place: req.Place}
		var missing []string
		if birth.Date == "" {
			missing = append(missing, "birth date")
		}
		if birth.Time == "" {
			missing = append(missing, "birth time")
		}
		if birth.Place == "" {
			missing = append(missing, "birth place")
		}
		if len(missing) > 0 {
			writeError(w, http.StatusUnprocessableEntity, "missing birth details", missing...)
			return nil, "", true
		}
		return birth, "Birth details: " + birth.Date + " " + birth.Time + ", " + birth.Place, false
	}

	ext, err := h.astrologer.ExtractBirthDetails(ctx, req.Text)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not read birth details; please try again")
		return nil, "", true
	}
	switch ext.Status {
	case generation.ExtractionNonAstrology:
		writeError(w, http.StatusBadRequest, "I'm an astrology assistant. To get started, please provide your birth date, time, and place.")
		return nil, "", true
	case generation.ExtractionIncomplete:
		writeError(w, http.StatusUnprocessableEntity, "some birth details are missing", ext.Missing...)
		return nil, "", true
	}
	return ext.Details, req.Text, false
}

type messageRequest struct {
	Question string `json:"question"`
}

type messageResponse struct {
	Answer   string                 `json:"answer"`
	Rules    []models.RetrievedRule `json:"rules,omitempty"`
	Degraded bool                   `json:"degraded,omitempty"`
}

// PostMessage answers one follow-up question inside a session.
func (h *SessionHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := ctx.Value("user_id").(string)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	session, errDone := h.loadSession(ctx, w, chi.URLParam(r, "sessionID"), userID)
	if errDone {
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	if !h.astrologer.ValidateTopic(ctx, req.Question) {
		reply := generation.OffTopicReply()
		if err := h.appendTurn(ctx, session.ID, req.Question, reply); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to store conversation")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messageResponse{Answer: reply})
		return
	}

	rules, degraded := h.retrieve(func() ([]models.RetrievedRule, error) {
		return h.retriever.ByQuestion(ctx, req.Question, session.Chart, followUpTopK)
	})

	history, err := h.dbclient.GetMessagesBySession(ctx, session.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	answer, err := h.astrologer.Answer(ctx, session.Chart, rules, history, req.Question)
	if err != nil {
		writeError(w, http.StatusBadGateway, "the astrologer is unavailable right now; please try again")
		return
	}

	if err := h.appendTurn(ctx, session.ID, req.Question, answer); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store conversation")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messageResponse{Answer: answer, Rules: rules, Degraded: degraded})
}

type sessionResponse struct {
	Session  *models.ChatSession  `json:"session"`
	Messages []models.ChatMessage `json:"messages"`
}

// GetSession returns a session with its full conversation history.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := ctx.Value("user_id").(string)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	session, errDone := h.loadSession(ctx, w, chi.URLParam(r, "sessionID"), userID)
	if errDone {
		return
	}

	messages, err := h.dbclient.GetMessagesBySession(ctx, session.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessionResponse{Session: session, Messages: messages})
}

func (h *SessionHandler) loadSession(ctx context.Context, w http.ResponseWriter, id, userID string) (*models.ChatSession, bool) {
	session, err := h.dbclient.GetChatSession(ctx, id)
	if err != nil || session == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, true
	}
	if session.UserID != userID {
		writeError(w, http.StatusForbidden, "session belongs to another user")
		return nil, true
	}
	return session, false
}

// retrieve runs a retrieval call, degrading to an empty rule set when the
// store is unavailable. The turn still reaches the astrologer.
func (h *SessionHandler) retrieve(fn func() ([]models.RetrievedRule, error)) ([]models.RetrievedRule, bool) {
	rules, err := fn()
	if err != nil {
		var re *core.RetrievalError
		if errors.As(err, &re) {
			log.Printf("SessionHandler: retrieval degraded: %v", err)
			return nil, true
		}
		log.Printf("SessionHandler: retrieval failed: %v", err)
		return nil, true
	}
	return rules, false
}

func (h *SessionHandler) appendTurn(ctx context.Context, sessionID, userContent, assistantContent string) error {
	return h.dbclient.AppendChatTurn(ctx,
		&models.ChatMessage{ID: uuid.NewString(), SessionID: sessionID, Role: "user", Content: userContent},
		&models.ChatMessage{ID: uuid.NewString(), SessionID: sessionID, Role: "assistant", Content: assistantContent},
	)
}
