package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"quizmint-service/internal/app"
	"quizmint-service/internal/domain"
)

// Handler exposes the quiz and credential pipeline over JSON endpoints.
type Handler struct {
	service  *app.MintService
	validate *validator.Validate
}

func NewHandler(service *app.MintService) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// Register wires all routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/save-quiz", h.saveQuiz)
	mux.HandleFunc("GET /api/get-quiz", h.getQuiz)
	mux.HandleFunc("GET /api/get-quizzes", h.listQuizzes)
	mux.HandleFunc("POST /api/archive-quiz", h.archiveQuiz)
	mux.HandleFunc("POST /api/submit-quiz", h.submitQuiz)
	mux.HandleFunc("POST /api/sign-mint", h.signMint)
	mux.HandleFunc("POST /api/sign-quiz-creation", h.signQuizCreation)
	mux.HandleFunc("POST /api/record-mint", h.recordMint)
	mux.HandleFunc("POST /api/record-quiz-creation", h.recordQuizCreation)
	mux.HandleFunc("GET /api/check-quiz-status", h.quizStatus)
	mux.HandleFunc("GET /api/get-completers", h.completers)
	mux.HandleFunc("GET /metadata/{tokenId}", h.metadata(domain.CredentialKindQuiz))
	mux.HandleFunc("GET /metadata/img/{tokenId}", h.image(domain.CredentialKindQuiz))
	mux.HandleFunc("GET /quizcreatormetadata/{tokenId}", h.metadata(domain.CredentialKindCreator))
	mux.HandleFunc("GET /quizcreatormetadata/img/{tokenId}", h.image(domain.CredentialKindCreator))
}

type saveQuizRequest struct {
	Quiz          []domain.Question `json:"quiz" validate:"required,min=1"`
	QuizName      string            `json:"quizName"`
	Tags          []string          `json:"tags"`
	WalletAddress string            `json:"walletAddress" validate:"required"`
}

func (h *Handler) saveQuiz(w http.ResponseWriter, r *http.Request) {
	var req saveQuizRequest
	if !h.decode(w, r, &req) {
		return
	}
	name := req.QuizName
	if name == "" {
		name = "Untitled Quiz"
	}
	quiz, err := h.service.SaveQuiz(r.Context(), domain.Quiz{
		Name:          name,
		Tags:          req.Tags,
		Questions:     req.Quiz,
		CreatorWallet: req.WalletAddress,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "quizId": quiz.ID})
}

func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("id")
	if quizID == "" {
		h.badRequest(w, "missing quiz id")
		return
	}
	quiz, err := h.service.GetQuiz(r.Context(), quizID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "quiz": quiz})
}

func (h *Handler) listQuizzes(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("archived") == "true"
	quizzes, err := h.service.ListQuizzes(r.Context(), includeArchived)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "quizzes": quizzes})
}

type archiveQuizRequest struct {
	QuizID string `json:"quizId" validate:"required"`
}

func (h *Handler) archiveQuiz(w http.ResponseWriter, r *http.Request) {
	var req archiveQuizRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.ArchiveQuiz(r.Context(), req.QuizID); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type submitQuizRequest struct {
	QuizID        string `json:"quizId" validate:"required"`
	WalletAddress string `json:"walletAddress" validate:"required"`
	Answers       []int  `json:"answers" validate:"required"`
	Score         *int   `json:"score" validate:"required"`
	Signature     string `json:"signature" validate:"required"`
	Message       string `json:"message" validate:"required"`
}

func (h *Handler) submitQuiz(w http.ResponseWriter, r *http.Request) {
	var req submitQuizRequest
	if !h.decode(w, r, &req) {
		return
	}
	_, err := h.service.SubmitAttempt(r.Context(), app.SubmitAttemptRequest{
		QuizID:        req.QuizID,
		WalletAddress: req.WalletAddress,
		Answers:       req.Answers,
		Score:         *req.Score,
		Signature:     req.Signature,
		Message:       req.Message,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type signRequest struct {
	WalletAddress string `json:"walletAddress" validate:"required"`
	QuizID        string `json:"quizId" validate:"required"`
}

func (h *Handler) signMint(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if !h.decode(w, r, &req) {
		return
	}
	auth, err := h.service.AuthorizeMint(r.Context(), req.WalletAddress, req.QuizID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "signature": auth.Signature, "nonce": auth.Nonce})
}

func (h *Handler) signQuizCreation(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if !h.decode(w, r, &req) {
		return
	}
	auth, err := h.service.AuthorizeQuizCreation(r.Context(), req.WalletAddress, req.QuizID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "signature": auth.Signature, "nonce": auth.Nonce})
}

type recordMintRequest struct {
	TxHash        string `json:"txHash" validate:"required"`
	QuizID        string `json:"quizId" validate:"required"`
	WalletAddress string `json:"walletAddress" validate:"required"`
	Timestamp     string `json:"timestamp" validate:"required"`
}

func (h *Handler) recordMint(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, h.service.RecordMint)
}

func (h *Handler) recordQuizCreation(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, h.service.RecordQuizCreation)
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request, run func(context.Context, app.RecordMintRequest, func(app.ConfirmProgress)) (domain.Credential, error)) {
	var req recordMintRequest
	if !h.decode(w, r, &req) {
		return
	}
	credential, err := run(r.Context(), app.RecordMintRequest{
		TxHash:        req.TxHash,
		QuizID:        req.QuizID,
		WalletAddress: req.WalletAddress,
		Timestamp:     req.Timestamp,
	}, nil)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tokenId": credential.TokenID,
		"rarity":  credential.Rarity,
	})
}

func (h *Handler) quizStatus(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	address := r.URL.Query().Get("address")
	if quizID == "" || address == "" {
		h.badRequest(w, "missing quizId or address")
		return
	}
	status, err := h.service.Status(r.Context(), quizID, address)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": status})
}

func (h *Handler) completers(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		h.badRequest(w, "missing quizId")
		return
	}
	wallets, err := h.service.Completers(r.Context(), quizID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "completers": wallets})
}

func (h *Handler) metadata(kind domain.CredentialKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := h.service.Metadata(r.Context(), kind, r.PathValue("tokenId"))
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func (h *Handler) image(kind domain.CredentialKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		img, err := h.service.Image(r.Context(), kind, r.PathValue("tokenId"))
		if err != nil {
			h.fail(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(img)
	}
}

// decode parses and validates a JSON body, writing the 400 itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.badRequest(w, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.badRequest(w, "missing required fields")
		return false
	}
	return true
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": msg})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

// statusForError maps the domain error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrMetadataNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidSignature), errors.Is(err, domain.ErrWalletMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrScoreMismatch), errors.Is(err, domain.ErrAlreadyPerfect), errors.Is(err, domain.ErrNotEligible):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAttemptWindow):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrTxReverted), errors.Is(err, domain.ErrEventNotFound):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrReceiptTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}
