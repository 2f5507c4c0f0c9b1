package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"quizmint-service/internal/app"
	"quizmint-service/internal/artwork"
	"quizmint-service/internal/domain"
	"quizmint-service/internal/infra/memory"
)

const serviceKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

type scriptedChain struct {
	nonce   *big.Int
	misses  int
	calls   int
	receipt *types.Receipt
}

func (c *scriptedChain) MintNonce(_ context.Context, _, _ common.Address) (*big.Int, error) {
	return c.nonce, nil
}

func (c *scriptedChain) TransactionReceipt(_ context.Context, _ common.Hash) (*types.Receipt, error) {
	c.calls++
	if c.calls <= c.misses {
		return nil, ethereum.NotFound
	}
	return c.receipt, nil
}

func mintReceipt(tokenID int64) *types.Receipt {
	return &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs: []*types.Log{
			{Topics: []common.Hash{
				app.TransferEvent.ID,
				{}, {},
				common.BigToHash(big.NewInt(tokenID)),
			}},
		},
	}
}

func testFixture(t *testing.T, chain *scriptedChain) (*httptest.Server, *memory.SubmissionRepository) {
	t.Helper()
	signer, err := app.NewSigner(serviceKey)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	quizzes := memory.NewQuizRepository(map[string]domain.Quiz{"quiz-1": fixtureQuiz()})
	attempts := memory.NewSubmissionRepository()
	service := app.NewMintService(app.MintServiceDeps{
		Quizzes:     quizzes,
		Attempts:    attempts,
		Credentials: memory.NewCredentialRepository(),
		Chain:       chain,
		Signer:      signer,
		Gate:        app.NewSubmissionGate(attempts),
		Confirmer:   app.NewTransactionConfirmer(chain, 5, time.Millisecond),
		Generator:   artwork.NewGenerator(nil),
		Rarity:      app.NewRarityDrawerWithRoll(func() float64 { return 0.5 }),
		QuizNFT:     common.HexToAddress("0x33B66e43f6f3CCd8C433c2F9D4159bdB3ce49d77"),
		CreatorNFT:  common.HexToAddress("0xf7d547b46F331229D4FeA41d85c6561DA5288678"),
		MetadataURL: "http://localhost:8080",
	})

	mux := http.NewServeMux()
	NewHandler(service).Register(mux)
	mux.HandleFunc("GET /ws/mint", NewWSHandler(service).ServeMint)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, attempts
}

func fixtureQuiz() domain.Quiz {
	questions := make([]domain.Question, 3)
	for i := range questions {
		questions[i] = domain.Question{
			Prompt:        "pick the first choice",
			Choices:       []string{"right", "wrong", "wrong", "wrong"},
			CorrectAnswer: 0,
		}
	}
	return domain.Quiz{ID: "quiz-1", Name: "fixture", Questions: questions}
}

func playerWallet(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func personalSign(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig[64] += 27
	return hexutil.Encode(sig)
}

func postJSON(t *testing.T, url string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func submitPayload(wallet, signature, message string, answers []int, score int) map[string]any {
	return map[string]any{
		"quizId":        "quiz-1",
		"walletAddress": wallet,
		"answers":       answers,
		"score":         score,
		"signature":     signature,
		"message":       message,
	}
}

func TestSubmitQuizHappyPath(t *testing.T) {
	server, attempts := testFixture(t, &scriptedChain{nonce: big.NewInt(0)})
	key, wallet := playerWallet(t)

	message := "submit quiz-1"
	resp, body := postJSON(t, server.URL+"/api/submit-quiz",
		submitPayload(wallet, personalSign(t, key, message), message, []int{0, 0, 1}, 2))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d body %v", resp.StatusCode, body)
	}
	if body["success"] != true {
		t.Fatalf("success flag missing: %v", body)
	}

	history, err := attempts.ListAttempts(context.Background(), "quiz-1", wallet)
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(history) != 1 || history[0].Score != 2 {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestSubmitQuizStatusMapping(t *testing.T) {
	server, _ := testFixture(t, &scriptedChain{nonce: big.NewInt(0)})
	key, wallet := playerWallet(t)
	message := "submit quiz-1"
	goodSig := personalSign(t, key, message)

	// Missing required fields.
	resp, _ := postJSON(t, server.URL+"/api/submit-quiz", map[string]any{"quizId": "quiz-1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing fields: status %d, want 400", resp.StatusCode)
	}

	// Garbage signature.
	resp, _ = postJSON(t, server.URL+"/api/submit-quiz",
		submitPayload(wallet, "0xdeadbeef", message, []int{0, 0, 0}, 3))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad signature: status %d, want 401", resp.StatusCode)
	}

	// Unknown quiz.
	payload := submitPayload(wallet, goodSig, message, []int{0, 0, 0}, 3)
	payload["quizId"] = "no-such-quiz"
	resp, _ = postJSON(t, server.URL+"/api/submit-quiz", payload)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown quiz: status %d, want 404", resp.StatusCode)
	}

	// Claimed score disagrees with the recomputed one.
	resp, _ = postJSON(t, server.URL+"/api/submit-quiz",
		submitPayload(wallet, goodSig, message, []int{0, 1, 1}, 3))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("score mismatch: status %d, want 403", resp.StatusCode)
	}

	// First valid attempt goes through, the immediate retry hits the window.
	resp, _ = postJSON(t, server.URL+"/api/submit-quiz",
		submitPayload(wallet, goodSig, message, []int{0, 1, 1}, 1))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid attempt: status %d, want 200", resp.StatusCode)
	}
	resp, _ = postJSON(t, server.URL+"/api/submit-quiz",
		submitPayload(wallet, goodSig, message, []int{0, 0, 1}, 2))
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("window retry: status %d, want 429", resp.StatusCode)
	}
}

func TestSignMintRequiresPerfectScore(t *testing.T) {
	server, attempts := testFixture(t, &scriptedChain{nonce: big.NewInt(9)})
	key, wallet := playerWallet(t)

	resp, _ := postJSON(t, server.URL+"/api/sign-mint",
		map[string]any{"walletAddress": wallet, "quizId": "quiz-1"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("ineligible wallet: status %d, want 403", resp.StatusCode)
	}

	message := "submit quiz-1"
	resp, _ = postJSON(t, server.URL+"/api/submit-quiz",
		submitPayload(wallet, personalSign(t, key, message), message, []int{0, 0, 0}, 3))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("perfect submit: status %d", resp.StatusCode)
	}

	resp, body := postJSON(t, server.URL+"/api/sign-mint",
		map[string]any{"walletAddress": wallet, "quizId": "quiz-1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("eligible wallet: status %d body %v", resp.StatusCode, body)
	}
	if body["signature"] == "" || body["nonce"] != "9" {
		t.Fatalf("authorization payload %v", body)
	}

	history, _ := attempts.ListAttempts(context.Background(), "quiz-1", wallet)
	if len(history) != 1 {
		t.Fatalf("sign-mint altered submission history: %+v", history)
	}
}

func TestRecordMintServesCredential(t *testing.T) {
	chain := &scriptedChain{nonce: big.NewInt(0), misses: 1, receipt: mintReceipt(42)}
	server, _ := testFixture(t, chain)
	_, wallet := playerWallet(t)

	resp, body := postJSON(t, server.URL+"/api/record-mint", map[string]any{
		"txHash":        "0xabc",
		"quizId":        "quiz-1",
		"walletAddress": wallet,
		"timestamp":     "1717243200",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("record mint: status %d body %v", resp.StatusCode, body)
	}
	if body["tokenId"] != "42" {
		t.Fatalf("token id %v, want 42", body["tokenId"])
	}

	metaResp, err := http.Get(server.URL + "/metadata/42")
	if err != nil {
		t.Fatalf("get metadata: %v", err)
	}
	defer metaResp.Body.Close()
	if metaResp.StatusCode != http.StatusOK {
		t.Fatalf("metadata status %d", metaResp.StatusCode)
	}
	var doc domain.Metadata
	if err := json.NewDecoder(metaResp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if doc.Image != "http://localhost:8080/metadata/img/42" {
		t.Fatalf("metadata image %s", doc.Image)
	}

	imgResp, err := http.Get(server.URL + "/metadata/img/42")
	if err != nil {
		t.Fatalf("get image: %v", err)
	}
	defer imgResp.Body.Close()
	if imgResp.StatusCode != http.StatusOK {
		t.Fatalf("image status %d", imgResp.StatusCode)
	}
	if ct := imgResp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("image content type %s", ct)
	}

	missing, err := http.Get(server.URL + "/metadata/43")
	if err != nil {
		t.Fatalf("get missing metadata: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing metadata status %d, want 404", missing.StatusCode)
	}
}

func TestRecordMintRevertedTransaction(t *testing.T) {
	chain := &scriptedChain{nonce: big.NewInt(0), receipt: &types.Receipt{Status: types.ReceiptStatusFailed}}
	server, _ := testFixture(t, chain)
	_, wallet := playerWallet(t)

	resp, _ := postJSON(t, server.URL+"/api/record-mint", map[string]any{
		"txHash":        "0xdead",
		"quizId":        "quiz-1",
		"walletAddress": wallet,
		"timestamp":     "0",
	})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("reverted tx: status %d, want 502", resp.StatusCode)
	}
}

func TestQuizLifecycleEndpoints(t *testing.T) {
	server, _ := testFixture(t, &scriptedChain{nonce: big.NewInt(0)})
	_, wallet := playerWallet(t)

	resp, body := postJSON(t, server.URL+"/api/save-quiz", map[string]any{
		"quiz": []map[string]any{
			{"question": "pick one", "choices": []string{"a", "b", "c", "d"}, "correctAnswer": 2},
		},
		"quizName":      "lifecycle",
		"walletAddress": wallet,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save quiz: status %d body %v", resp.StatusCode, body)
	}
	quizID, _ := body["quizId"].(string)
	if quizID == "" {
		t.Fatalf("no quiz id in %v", body)
	}

	getResp, err := http.Get(server.URL + "/api/get-quiz?id=" + quizID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("get quiz status %d", getResp.StatusCode)
	}

	resp, _ = postJSON(t, server.URL+"/api/archive-quiz", map[string]any{"quizId": quizID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("archive status %d", resp.StatusCode)
	}

	listResp, err := http.Get(server.URL + "/api/get-quizzes")
	if err != nil {
		t.Fatalf("list quizzes: %v", err)
	}
	defer listResp.Body.Close()
	var listBody struct {
		Quizzes []domain.Quiz `json:"quizzes"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&listBody); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	for _, quiz := range listBody.Quizzes {
		if quiz.ID == quizID {
			t.Fatalf("archived quiz %s still listed", quizID)
		}
	}
}

func TestCheckQuizStatus(t *testing.T) {
	server, _ := testFixture(t, &scriptedChain{nonce: big.NewInt(0)})
	key, wallet := playerWallet(t)

	message := "submit quiz-1"
	resp, _ := postJSON(t, server.URL+"/api/submit-quiz",
		submitPayload(wallet, personalSign(t, key, message), message, []int{0, 0, 0}, 3))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: status %d", resp.StatusCode)
	}

	statusResp, err := http.Get(server.URL + "/api/check-quiz-status?quizId=quiz-1&address=" + wallet)
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	defer statusResp.Body.Close()
	var body struct {
		Status domain.QuizStatus `json:"status"`
	}
	if err := json.NewDecoder(statusResp.Body).Decode(&body); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !body.Status.HasCompletedQuiz || !body.Status.HasAttemptedToday {
		t.Fatalf("status %+v after a perfect attempt", body.Status)
	}

	completersResp, err := http.Get(server.URL + "/api/get-completers?quizId=quiz-1")
	if err != nil {
		t.Fatalf("get completers: %v", err)
	}
	defer completersResp.Body.Close()
	var completersBody struct {
		Completers []string `json:"completers"`
	}
	if err := json.NewDecoder(completersResp.Body).Decode(&completersBody); err != nil {
		t.Fatalf("decode completers: %v", err)
	}
	if len(completersBody.Completers) != 1 || completersBody.Completers[0] != wallet {
		t.Fatalf("completers %v, want [%s]", completersBody.Completers, wallet)
	}
}
