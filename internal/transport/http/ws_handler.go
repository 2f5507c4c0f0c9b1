package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quizmint-service/internal/app"
	"quizmint-service/internal/domain"
)

// WSHandler streams mint-confirmation progress over a websocket: one
// "progress" frame per receipt poll, then a terminal "minted" or "error"
// frame. Useful for the multi-minute confirmation wait where a single HTTP
// response would leave the client blind.
type WSHandler struct {
	service  *app.MintService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.MintService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type mintedPayload struct {
	TokenID string        `json:"tokenId"`
	Rarity  domain.Rarity `json:"rarity"`
}

// ServeMint upgrades the request and runs the record-mint pipeline, pushing
// each confirmation poll to the client as it happens.
func (h *WSHandler) ServeMint(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := app.RecordMintRequest{
		TxHash:        query.Get("tx"),
		QuizID:        query.Get("quizId"),
		WalletAddress: query.Get("address"),
		Timestamp:     query.Get("timestamp"),
	}
	if req.TxHash == "" || req.QuizID == "" || req.WalletAddress == "" || req.Timestamp == "" {
		http.Error(w, "missing tx, quizId, address, or timestamp", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	run := h.service.RecordMint
	if query.Get("kind") == string(domain.CredentialKindCreator) {
		run = h.service.RecordQuizCreation
	}

	credential, err := run(r.Context(), req, func(progress app.ConfirmProgress) {
		if err := conn.WriteJSON(outboundMessage[app.ConfirmProgress]{Type: "progress", Payload: progress}); err != nil {
			log.Printf("ws write error: %v", err)
		}
	})
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	_ = conn.WriteJSON(outboundMessage[mintedPayload]{Type: "minted", Payload: mintedPayload{
		TokenID: credential.TokenID,
		Rarity:  credential.Rarity,
	}})
}
