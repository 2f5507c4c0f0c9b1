package artwork

import (
	"quizmint-service/internal/domain"
)

// CompletionMetadata builds the metadata document for a completion NFT. The
// image URL points back at this service's image route for the token.
func CompletionMetadata(baseURL, tokenID string, rarity domain.Rarity) domain.Metadata {
	return domain.Metadata{
		Name:        "Quiz Completion NFT",
		Description: "Awarded for completing a quiz with a perfect score.",
		Image:       baseURL + "/metadata/img/" + tokenID,
		Attributes: []domain.MetadataAttribute{
			{TraitType: "Rarity", Value: string(rarity)},
		},
	}
}

// CreatorMetadata builds the metadata document for a quiz-creator NFT.
func CreatorMetadata(baseURL, tokenID string, rarity domain.Rarity) domain.Metadata {
	return domain.Metadata{
		Name:        "Quiz Creator NFT",
		Description: "Awarded for publishing a quiz on-chain.",
		Image:       baseURL + "/quizcreatormetadata/img/" + tokenID,
		Attributes: []domain.MetadataAttribute{
			{TraitType: "Rarity", Value: string(rarity)},
		},
	}
}
