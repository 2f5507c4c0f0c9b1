package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"quizmint-service/internal/artwork"
	"quizmint-service/internal/domain"
)

// QuizRepository loads and stores quiz content. The redis cache layer wraps
// the postgres implementation behind this same interface.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	SaveQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	ListQuizzes(ctx context.Context, includeArchived bool) ([]domain.Quiz, error)
	ArchiveQuiz(ctx context.Context, quizID string) error
}

// CredentialRepository stores generated credentials keyed by (token, kind).
// Save must be idempotent: re-saving an existing token is a no-op.
type CredentialRepository interface {
	Get(ctx context.Context, kind domain.CredentialKind, tokenID string) (domain.Credential, error)
	Save(ctx context.Context, credential domain.Credential) error
}

// NonceReader fetches a contract's per-address mint nonce (the replay guard
// the contract checks when verifying an authorization).
type NonceReader interface {
	MintNonce(ctx context.Context, contract, user common.Address) (*big.Int, error)
}

// ChainClient is the full chain surface the service needs.
type ChainClient interface {
	NonceReader
	ReceiptFetcher
}

// MintService orchestrates the submission-integrity and credential-issuance
// pipeline: gate -> score check -> persist, authorization signing, transaction
// confirmation, and artwork + metadata generation.
type MintService struct {
	quizzes     QuizRepository
	attempts    SubmissionRepository
	credentials CredentialRepository
	chain       ChainClient
	signer      *Signer
	gate        *SubmissionGate
	confirmer   *TransactionConfirmer
	generator   *artwork.Generator
	rarity      *RarityDrawer

	quizNFT     common.Address
	creatorNFT  common.Address
	metadataURL string
	now         func() time.Time
}

// MintServiceDeps collects the collaborators so the constructor stays flat.
type MintServiceDeps struct {
	Quizzes     QuizRepository
	Attempts    SubmissionRepository
	Credentials CredentialRepository
	Chain       ChainClient
	Signer      *Signer
	Gate        *SubmissionGate
	Confirmer   *TransactionConfirmer
	Generator   *artwork.Generator
	Rarity      *RarityDrawer
	QuizNFT     common.Address
	CreatorNFT  common.Address
	MetadataURL string
}

func NewMintService(deps MintServiceDeps) *MintService {
	return &MintService{
		quizzes:     deps.Quizzes,
		attempts:    deps.Attempts,
		credentials: deps.Credentials,
		chain:       deps.Chain,
		signer:      deps.Signer,
		gate:        deps.Gate,
		confirmer:   deps.Confirmer,
		generator:   deps.Generator,
		rarity:      deps.Rarity,
		quizNFT:     deps.QuizNFT,
		creatorNFT:  deps.CreatorNFT,
		metadataURL: deps.MetadataURL,
		now:         time.Now,
	}
}

// SubmitAttemptRequest is a client submission: the claimed score rides along
// only to be compared with the recomputed one.
type SubmitAttemptRequest struct {
	QuizID        string
	WalletAddress string
	Answers       []int
	Score         int
	Signature     string
	Message       string
}

// SubmitAttempt runs the admission policy, recomputes the score, and persists
// the attempt. Nothing is written on any rejection path; the insert re-checks
// window and perfect-score inside one transaction.
func (s *MintService) SubmitAttempt(ctx context.Context, req SubmitAttemptRequest) (domain.SubmissionAttempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return domain.SubmissionAttempt{}, err
	}

	if err := s.gate.Admit(ctx, quiz, req.WalletAddress, req.Message, req.Signature); err != nil {
		return domain.SubmissionAttempt{}, err
	}

	serverScore := CountCorrect(req.Answers, quiz.Questions)
	if serverScore != req.Score {
		log.Printf("score mismatch on quiz %s from %s: claimed %d, computed %d", req.QuizID, req.WalletAddress, req.Score, serverScore)
		return domain.SubmissionAttempt{}, domain.ErrScoreMismatch
	}

	attempt := domain.SubmissionAttempt{
		QuizID:        req.QuizID,
		WalletAddress: req.WalletAddress,
		Answers:       req.Answers,
		Signature:     req.Signature,
		Score:         serverScore,
		SubmittedAt:   s.now(),
	}
	if err := s.attempts.RecordAttempt(ctx, attempt, s.gate.WindowStart(), len(quiz.Questions)); err != nil {
		return domain.SubmissionAttempt{}, err
	}
	return attempt, nil
}

// AuthorizeMint issues a completion-mint authorization. Eligibility is
// enforced here, not in the UI: the wallet must hold a recorded perfect score
// on the quiz. The nonce is read from the contract so the signature matches
// the contract's replay counter.
func (s *MintService) AuthorizeMint(ctx context.Context, walletAddress, quizID string) (domain.MintAuthorization, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.MintAuthorization{}, err
	}

	history, err := s.attempts.ListAttempts(ctx, quizID, walletAddress)
	if err != nil {
		return domain.MintAuthorization{}, err
	}
	eligible := false
	for _, attempt := range history {
		if attempt.IsPerfect(len(quiz.Questions)) {
			eligible = true
			break
		}
	}
	if !eligible {
		return domain.MintAuthorization{}, domain.ErrNotEligible
	}

	if !common.IsHexAddress(walletAddress) {
		return domain.MintAuthorization{}, fmt.Errorf("invalid wallet address %q", walletAddress)
	}
	nonce, err := s.chain.MintNonce(ctx, s.quizNFT, common.HexToAddress(walletAddress))
	if err != nil {
		return domain.MintAuthorization{}, fmt.Errorf("fetch mint nonce: %w", err)
	}

	signature, err := s.signer.SignMintAuthorization(walletAddress, quizID, nonce, s.quizNFT.Hex())
	if err != nil {
		return domain.MintAuthorization{}, err
	}
	return domain.MintAuthorization{
		Recipient:       walletAddress,
		QuizID:          quizID,
		Nonce:           nonce.String(),
		ContractAddress: s.quizNFT.Hex(),
		Signature:       signature,
	}, nil
}

// AuthorizeQuizCreation issues a creator-mint authorization for the wallet
// that owns the quiz.
func (s *MintService) AuthorizeQuizCreation(ctx context.Context, walletAddress, quizID string) (domain.MintAuthorization, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.MintAuthorization{}, err
	}
	if !common.IsHexAddress(walletAddress) {
		return domain.MintAuthorization{}, fmt.Errorf("invalid wallet address %q", walletAddress)
	}
	if quiz.CreatorWallet != "" && common.HexToAddress(quiz.CreatorWallet) != common.HexToAddress(walletAddress) {
		return domain.MintAuthorization{}, domain.ErrNotEligible
	}

	nonce, err := s.chain.MintNonce(ctx, s.creatorNFT, common.HexToAddress(walletAddress))
	if err != nil {
		return domain.MintAuthorization{}, fmt.Errorf("fetch creation nonce: %w", err)
	}
	signature, err := s.signer.SignQuizCreation(walletAddress, quizID, nonce)
	if err != nil {
		return domain.MintAuthorization{}, err
	}
	return domain.MintAuthorization{
		Recipient:       walletAddress,
		QuizID:          quizID,
		Nonce:           nonce.String(),
		ContractAddress: s.creatorNFT.Hex(),
		Signature:       signature,
	}, nil
}

// RecordMintRequest carries the client-submitted transaction hash plus the
// identifying strings the artwork is derived from.
type RecordMintRequest struct {
	TxHash        string
	QuizID        string
	WalletAddress string
	Timestamp     string
}

// RecordMint confirms the completion-mint transaction, then generates and
// persists the credential. Re-recording an already-persisted token returns
// the stored credential unchanged, so retried requests are safe.
func (s *MintService) RecordMint(ctx context.Context, req RecordMintRequest, report func(ConfirmProgress)) (domain.Credential, error) {
	result, err := s.confirmer.Confirm(ctx, common.HexToHash(req.TxHash), TransferEvent, report)
	if err != nil {
		return domain.Credential{}, err
	}
	return s.issueCredential(ctx, domain.CredentialKindQuiz, result.TokenID.String(), req)
}

// RecordQuizCreation confirms the creator-mint transaction and persists the
// creator credential.
func (s *MintService) RecordQuizCreation(ctx context.Context, req RecordMintRequest, report func(ConfirmProgress)) (domain.Credential, error) {
	result, err := s.confirmer.Confirm(ctx, common.HexToHash(req.TxHash), QuizCreatedEvent, report)
	if err != nil {
		return domain.Credential{}, err
	}
	return s.issueCredential(ctx, domain.CredentialKindCreator, result.TokenID.String(), req)
}

func (s *MintService) issueCredential(ctx context.Context, kind domain.CredentialKind, tokenID string, req RecordMintRequest) (domain.Credential, error) {
	existing, err := s.credentials.Get(ctx, kind, tokenID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrMetadataNotFound) {
		return domain.Credential{}, err
	}

	rarity := s.rarity.Draw()
	image, err := s.generator.Generate(req.QuizID, req.WalletAddress, req.Timestamp, rarity)
	if err != nil {
		return domain.Credential{}, err
	}

	var doc domain.Metadata
	if kind == domain.CredentialKindCreator {
		doc = artwork.CreatorMetadata(s.metadataURL, tokenID, rarity)
	} else {
		doc = artwork.CompletionMetadata(s.metadataURL, tokenID, rarity)
	}

	credential := domain.Credential{
		TokenID:   tokenID,
		Kind:      kind,
		QuizID:    req.QuizID,
		Rarity:    rarity,
		Image:     image,
		Metadata:  doc,
		CreatedAt: s.now(),
	}
	if err := s.credentials.Save(ctx, credential); err != nil {
		return domain.Credential{}, err
	}
	log.Printf("issued %s credential for token %s (rarity %s)", kind, tokenID, rarity)
	return credential, nil
}

// Metadata returns the stored metadata document for a token.
func (s *MintService) Metadata(ctx context.Context, kind domain.CredentialKind, tokenID string) (domain.Metadata, error) {
	credential, err := s.credentials.Get(ctx, kind, tokenID)
	if err != nil {
		return domain.Metadata{}, err
	}
	return credential.Metadata, nil
}

// Image returns the stored PNG bytes for a token.
func (s *MintService) Image(ctx context.Context, kind domain.CredentialKind, tokenID string) ([]byte, error) {
	credential, err := s.credentials.Get(ctx, kind, tokenID)
	if err != nil {
		return nil, err
	}
	return credential.Image, nil
}

// Status reports a wallet's standing on a quiz: completed (perfect score on
// record), attempted within the rolling window, and the last attempt time.
func (s *MintService) Status(ctx context.Context, quizID, walletAddress string) (domain.QuizStatus, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizStatus{}, err
	}
	history, err := s.attempts.ListAttempts(ctx, quizID, walletAddress)
	if err != nil {
		return domain.QuizStatus{}, err
	}

	status := domain.QuizStatus{}
	windowStart := s.gate.WindowStart()
	for i := range history {
		attempt := history[i]
		if attempt.IsPerfect(len(quiz.Questions)) {
			status.HasCompletedQuiz = true
		}
		if !attempt.SubmittedAt.Before(windowStart) {
			status.HasAttemptedToday = true
		}
		if status.LastAttemptTime == nil || attempt.SubmittedAt.After(*status.LastAttemptTime) {
			t := attempt.SubmittedAt
			status.LastAttemptTime = &t
		}
	}
	return status, nil
}

// Completers lists wallets holding a perfect score on the quiz.
func (s *MintService) Completers(ctx context.Context, quizID string) ([]string, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return s.attempts.Completers(ctx, quizID, len(quiz.Questions))
}

// SaveQuiz validates and persists a new quiz definition.
func (s *MintService) SaveQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	if len(quiz.Questions) == 0 {
		return domain.Quiz{}, fmt.Errorf("quiz must contain at least one question")
	}
	for i, q := range quiz.Questions {
		if len(q.Choices) != 4 {
			return domain.Quiz{}, fmt.Errorf("question %d must have exactly 4 choices", i)
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Choices) {
			return domain.Quiz{}, fmt.Errorf("question %d correct answer out of range", i)
		}
	}
	quiz.CreatedAt = s.now()
	quiz.Archived = false
	return s.quizzes.SaveQuiz(ctx, quiz)
}

// GetQuiz fetches one quiz definition.
func (s *MintService) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

// ListQuizzes lists quizzes, optionally including archived ones.
func (s *MintService) ListQuizzes(ctx context.Context, includeArchived bool) ([]domain.Quiz, error) {
	return s.quizzes.ListQuizzes(ctx, includeArchived)
}

// ArchiveQuiz sets the set-once archived flag.
func (s *MintService) ArchiveQuiz(ctx context.Context, quizID string) error {
	return s.quizzes.ArchiveQuiz(ctx, quizID)
}
