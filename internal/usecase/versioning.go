package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tastevault/tastevault"
	"github.com/tastevault/tastevault/internal/domain"
	"github.com/tastevault/tastevault/internal/snapshot"
)

var tracer = otel.Tracer("versioning")

// VersionDetail is a ledger entry together with its decoded snapshot
// for the history detail view.
type VersionDetail struct {
	Version  domain.RecipeVersion `json:"version"`
	Snapshot domain.Aggregate     `json:"snapshot"`
}

type VersioningUsecase struct {
	ledger     VersionLedger
	versioning VersioningRepository
	events     EventPublisher
}

func NewVersioningUsecase(
	ledger VersionLedger,
	versioning VersioningRepository,
	events EventPublisher,
) *VersioningUsecase {
	return &VersioningUsecase{
		ledger:     ledger,
		versioning: versioning,
		events:     events,
	}
}

// List returns the recipe's history, newest first. Snapshot blobs are
// omitted from the listing payload.
func (uc *VersioningUsecase) List(ctx context.Context, recipeID uuid.UUID) ([]domain.RecipeVersion, error) {
	return uc.ledger.List(ctx, recipeID)
}

// Get loads one ledger entry and decodes its snapshot. A blob that no
// longer parses surfaces as CorruptSnapshot, not NotFound.
func (uc *VersioningUsecase) Get(ctx context.Context, recipeID, versionID uuid.UUID) (*VersionDetail, error) {
	ver, err := uc.ledger.Get(ctx, recipeID, versionID)
	if err != nil {
		return nil, err
	}

	agg, err := snapshot.Decode(ver.SnapshotData)
	if err != nil {
		return nil, err
	}

	return &VersionDetail{Version: *ver, Snapshot: *agg}, nil
}

// Restore rolls the live aggregate back to the target version and
// returns the number of the version recording the restore event.
func (uc *VersioningUsecase) Restore(ctx context.Context, recipeID, versionID uuid.UUID) (int, error) {
	ctx, span := tracer.Start(ctx, "Versioning.Usecase.Restore")
	defer span.End()
	span.SetAttributes(
		attribute.String("recipeId", recipeID.String()),
		attribute.String("versionId", versionID.String()),
	)

	n, err := uc.versioning.Restore(ctx, recipeID, versionID)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	if uc.events != nil {
		event := tastevault.Event{
			RecipeID:      recipeID.String(),
			Kind:          tastevault.EventKindRestored,
			VersionNumber: n,
			Timestamp:     time.Now().UTC(),
		}
		if err := uc.events.Publish(ctx, event); err != nil {
			slog.WarnContext(ctx, "Event publish failed",
				slog.String("error", err.Error()),
				slog.String("recipeId", event.RecipeID),
				slog.String("module", "usecase"),
			)
		}
	}

	return n, nil
}
