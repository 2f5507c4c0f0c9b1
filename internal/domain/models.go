package domain

import "time"

// Question is a single multiple-choice question with exactly four choices.
// CorrectAnswer is the index of the right choice.
type Question struct {
	Prompt        string   `json:"question"`
	Choices       []string `json:"choices"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// Quiz is an ordered question set created by a wallet. Immutable once saved
// except for the archived flag, which is set once and never cleared.
type Quiz struct {
	ID            string     `json:"id"`
	Name          string     `json:"quizName"`
	Tags          []string   `json:"tags"`
	Questions     []Question `json:"quiz"`
	CreatorWallet string     `json:"walletAddress"`
	CreatedAt     time.Time  `json:"createdAt"`
	Archived      bool       `json:"archived"`
}

// SubmissionAttempt records one accepted quiz submission. Rows are append-only.
// Unanswered questions carry -1 in Answers.
type SubmissionAttempt struct {
	QuizID        string    `json:"quizId"`
	WalletAddress string    `json:"walletAddress"`
	Answers       []int     `json:"answers"`
	Signature     string    `json:"signature"`
	Score         int       `json:"score"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// IsPerfect reports whether the attempt answered every question of a quiz
// with the given question count correctly.
func (a SubmissionAttempt) IsPerfect(questionCount int) bool {
	return questionCount > 0 && a.Score == questionCount
}

// MintAuthorization is the off-chain approval a contract accepts as proof of
// mint eligibility. It is transient: issued per request and consumed by a
// single transaction (the contract burns the nonce).
type MintAuthorization struct {
	Recipient       string `json:"walletAddress"`
	QuizID          string `json:"quizId"`
	Nonce           string `json:"nonce"`
	ContractAddress string `json:"contractAddress"`
	Signature       string `json:"signature"`
}

// Rarity is the credential tier drawn at issuance time.
type Rarity string

const (
	RarityLegendary Rarity = "Legendary"
	RarityEpic      Rarity = "Epic"
	RarityRare      Rarity = "Rare"
	RarityUncommon  Rarity = "Uncommon"
	RarityCommon    Rarity = "Common"
)

// Rarities lists all tiers from rarest to most common.
var Rarities = []Rarity{RarityLegendary, RarityEpic, RarityRare, RarityUncommon, RarityCommon}

// Valid reports whether r is one of the five known tiers.
func (r Rarity) Valid() bool {
	for _, known := range Rarities {
		if r == known {
			return true
		}
	}
	return false
}

// MetadataAttribute is one trait entry in an NFT metadata document.
type MetadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Metadata is the JSON document served for a minted token.
type Metadata struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	Attributes  []MetadataAttribute `json:"attributes"`
}

// CredentialKind separates the two credential families served under
// different metadata routes.
type CredentialKind string

const (
	CredentialKindQuiz    CredentialKind = "quiz"
	CredentialKindCreator CredentialKind = "creator"
)

// Credential is the persisted record of a minted NFT: the on-chain token id,
// the drawn rarity, the generated artwork and its metadata document. Created
// exactly once per confirmed mint; immutable thereafter.
type Credential struct {
	TokenID   string         `json:"tokenId"`
	Kind      CredentialKind `json:"kind"`
	QuizID    string         `json:"quizId"`
	Rarity    Rarity         `json:"rarity"`
	Image     []byte         `json:"-"`
	Metadata  Metadata       `json:"metadata"`
	CreatedAt time.Time      `json:"createdAt"`
}

// QuizStatus summarizes a wallet's standing on a quiz.
type QuizStatus struct {
	HasCompletedQuiz  bool       `json:"hasCompletedQuiz"`
	HasAttemptedToday bool       `json:"hasAttemptedToday"`
	LastAttemptTime   *time.Time `json:"lastAttemptTime,omitempty"`
}
