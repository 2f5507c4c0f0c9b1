package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidSignature is returned when a wallet signature cannot be recovered at all.
	ErrInvalidSignature = errors.New("invalid wallet signature")
	// ErrWalletMismatch is returned when a signature recovers to a different address
	// than the one claimed by the request.
	ErrWalletMismatch = errors.New("signature does not match wallet address")
	// ErrScoreMismatch is returned when the server-computed score disagrees with
	// the client-claimed score. Integrity violation, never silently corrected.
	ErrScoreMismatch = errors.New("score tampering detected")
	// ErrAttemptWindow rejects a submission when the wallet already attempted the
	// quiz within the trailing 24-hour window.
	ErrAttemptWindow = errors.New("one attempt per day allowed")
	// ErrAlreadyPerfect rejects a submission when the wallet already holds a
	// perfect score on the quiz. A wallet wins a quiz at most once, ever.
	ErrAlreadyPerfect = errors.New("quiz already completed with a perfect score")
	// ErrTxReverted is terminal: the mint transaction failed on-chain and the
	// caller must resubmit.
	ErrTxReverted = errors.New("transaction reverted on-chain")
	// ErrReceiptTimeout means no receipt appeared within the polling budget. The
	// mint may still land later, so this is reported apart from ErrTxReverted.
	ErrReceiptTimeout = errors.New("transaction receipt not found after retries")
	// ErrEventNotFound means the receipt succeeded but the expected event was
	// missing from its logs after bounded retries.
	ErrEventNotFound = errors.New("expected event not found in transaction logs")
	// ErrNotEligible is returned when a wallet requests a mint authorization it
	// has not earned (no recorded perfect completion, or not the quiz creator).
	ErrNotEligible = errors.New("wallet not eligible for mint authorization")
	// ErrMetadataNotFound is returned when no credential exists for a token id.
	ErrMetadataNotFound = errors.New("metadata not found")
)
