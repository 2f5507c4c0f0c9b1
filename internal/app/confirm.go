package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"quizmint-service/internal/domain"
)

// ReceiptFetcher fetches transaction receipts. ethclient.Client satisfies it;
// tests substitute a scripted fake. A missing receipt must be reported as
// ethereum.NotFound.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ConfirmState labels a confirmation outcome or in-flight poll.
type ConfirmState string

const (
	ConfirmPending       ConfirmState = "pending"
	ConfirmConfirmed     ConfirmState = "confirmed"
	ConfirmFailed        ConfirmState = "failed"
	ConfirmTimeout       ConfirmState = "timeout"
	ConfirmEventNotFound ConfirmState = "event-not-found"
)

// ConfirmProgress is pushed to an optional observer once per poll so callers
// (e.g. the websocket transport) can surface live status.
type ConfirmProgress struct {
	Attempt int          `json:"attempt"`
	State   ConfirmState `json:"state"`
}

// ConfirmResult is the terminal outcome of watching a transaction.
type ConfirmResult struct {
	State    ConfirmState
	TokenID  *big.Int
	TxHash   common.Hash
	Attempts int
}

// LogEvent identifies the receipt log that carries the minted token id:
// topic 0 is the event signature hash, TokenIDTopic is the indexed topic
// position of the uint256 identifier.
type LogEvent struct {
	Name         string
	ID           common.Hash
	TokenIDTopic int
}

// TransferEvent is the ERC-721 Transfer(address,address,uint256) emitted by
// the completion-NFT mint; tokenId is the third indexed topic.
var TransferEvent = LogEvent{
	Name:         "Transfer",
	ID:           crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")),
	TokenIDTopic: 3,
}

// QuizCreatedEvent is QuizCreated(address indexed creator, uint256 indexed
// tokenId, string quizId) emitted by the creator-NFT mint.
var QuizCreatedEvent = LogEvent{
	Name:         "QuizCreated",
	ID:           crypto.Keccak256Hash([]byte("QuizCreated(address,uint256,string)")),
	TokenIDTopic: 2,
}

// TransactionConfirmer polls for a transaction receipt with a bounded attempt
// budget and extracts the token id from the expected event's topics.
type TransactionConfirmer struct {
	chain        ReceiptFetcher
	attempts     int
	interval     time.Duration
	eventRetries int
}

func NewTransactionConfirmer(chain ReceiptFetcher, attempts int, interval time.Duration) *TransactionConfirmer {
	if attempts <= 0 {
		attempts = 5
	}
	return &TransactionConfirmer{chain: chain, attempts: attempts, interval: interval, eventRetries: 3}
}

// Confirm drives the receipt state machine to a terminal state:
//
//	no receipt after the poll budget        -> Timeout, domain.ErrReceiptTimeout
//	receipt with revert status              -> Failed, domain.ErrTxReverted (no further polls)
//	success receipt, event never decodes    -> EventNotFound, domain.ErrEventNotFound
//	success receipt with the event          -> Confirmed, token id extracted
//
// report may be nil; when set it is called once per poll.
func (c *TransactionConfirmer) Confirm(ctx context.Context, txHash common.Hash, event LogEvent, report func(ConfirmProgress)) (ConfirmResult, error) {
	result := ConfirmResult{State: ConfirmPending, TxHash: txHash}
	eventMisses := 0

	for attempt := 1; attempt <= c.attempts; attempt++ {
		result.Attempts = attempt

		receipt, err := c.chain.TransactionReceipt(ctx, txHash)
		switch {
		case errors.Is(err, ethereum.NotFound):
			notify(report, ConfirmProgress{Attempt: attempt, State: ConfirmPending})
			if attempt < c.attempts {
				if err := sleepCtx(ctx, c.interval); err != nil {
					return result, err
				}
			}
			continue
		case err != nil:
			return result, fmt.Errorf("fetch receipt %s: %w", txHash.Hex(), err)
		}

		if receipt.Status != types.ReceiptStatusSuccessful {
			result.State = ConfirmFailed
			notify(report, ConfirmProgress{Attempt: attempt, State: ConfirmFailed})
			return result, fmt.Errorf("%w: %s", domain.ErrTxReverted, txHash.Hex())
		}

		tokenID, ok := extractTokenID(receipt, event)
		if !ok {
			eventMisses++
			log.Printf("receipt %s confirmed but %s event missing (miss %d/%d)", txHash.Hex(), event.Name, eventMisses, c.eventRetries)
			if eventMisses >= c.eventRetries || attempt == c.attempts {
				result.State = ConfirmEventNotFound
				notify(report, ConfirmProgress{Attempt: attempt, State: ConfirmEventNotFound})
				return result, fmt.Errorf("%w: %s in %s", domain.ErrEventNotFound, event.Name, txHash.Hex())
			}
			notify(report, ConfirmProgress{Attempt: attempt, State: ConfirmPending})
			if err := sleepCtx(ctx, c.interval); err != nil {
				return result, err
			}
			continue
		}

		result.State = ConfirmConfirmed
		result.TokenID = tokenID
		notify(report, ConfirmProgress{Attempt: attempt, State: ConfirmConfirmed})
		return result, nil
	}

	result.State = ConfirmTimeout
	notify(report, ConfirmProgress{Attempt: result.Attempts, State: ConfirmTimeout})
	return result, fmt.Errorf("%w: %s after %d attempts", domain.ErrReceiptTimeout, txHash.Hex(), c.attempts)
}

func extractTokenID(receipt *types.Receipt, event LogEvent) (*big.Int, bool) {
	for _, entry := range receipt.Logs {
		if entry == nil || len(entry.Topics) <= event.TokenIDTopic {
			continue
		}
		if entry.Topics[0] != event.ID {
			continue
		}
		return new(big.Int).SetBytes(entry.Topics[event.TokenIDTopic].Bytes()), true
	}
	return nil, false
}

func notify(report func(ConfirmProgress), progress ConfirmProgress) {
	if report != nil {
		report(progress)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
