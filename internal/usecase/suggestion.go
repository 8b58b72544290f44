package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/tastevault/tastevault"
)

type SuggestionUsecase struct {
	aggregates AggregateRepository
	ledger     VersionLedger
	gateway    SuggestionGateway
}

func NewSuggestionUsecase(
	aggregates AggregateRepository,
	ledger VersionLedger,
	gateway SuggestionGateway,
) *SuggestionUsecase {
	return &SuggestionUsecase{
		aggregates: aggregates,
		ledger:     ledger,
		gateway:    gateway,
	}
}

// Suggest generates improvement suggestions from the current aggregate
// state. The latest version number keys the gateway's cache so a
// suggestion is regenerated only after the recipe changes.
func (uc *SuggestionUsecase) Suggest(ctx context.Context, recipeID uuid.UUID) (*tastevault.Suggestion, error) {
	agg, err := uc.aggregates.Capture(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	latest, err := uc.ledger.LatestNumber(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	return uc.gateway.Suggest(ctx, *agg, latest)
}
