package repository

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tastevault/tastevault/internal/domain"
	"github.com/tastevault/tastevault/internal/infra/database/models"
	"github.com/tastevault/tastevault/internal/snapshot"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "tastevault.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	err = db.AutoMigrate(
		&models.Recipe{},
		&models.Ingredient{},
		&models.CookingStep{},
		&models.Category{},
		&models.RecipeCategory{},
		&models.RecipeVersion{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

type testRepos struct {
	recipes    *RecipeRepository
	versions   *VersionRepository
	versioning *VersioningRepository
	categories *CategoryRepository
}

func newTestRepos(t *testing.T) testRepos {
	t.Helper()
	db := newTestDB(t)
	return testRepos{
		recipes:    NewRecipeRepository(db),
		versions:   NewVersionRepository(db),
		versioning: NewVersioningRepository(db),
		categories: NewCategoryRepository(db, nil),
	}
}

// seedRecipe creates a recipe with one ingredient, one step and one
// category, the baseline for the history tests.
func seedRecipe(t *testing.T, r testRepos) *domain.Aggregate {
	t.Helper()
	ctx := context.Background()

	cat, err := r.categories.Ensure(ctx, "italian", "cuisine")
	if err != nil {
		t.Fatalf("ensure category: %v", err)
	}

	agg, err := r.recipes.Create(ctx, domain.Aggregate{
		Recipe: domain.Recipe{
			OwnerID:  "u1",
			Title:    "Carbonara",
			Servings: 2,
		},
		Ingredients: []domain.Ingredient{
			{Name: "spaghetti", Amount: 200, Unit: "g", Order: 1},
		},
		Steps: []domain.CookingStep{
			{StepNumber: 1, Instruction: "Boil the pasta."},
		},
		Categories: []domain.Category{*cat},
	})
	if err != nil {
		t.Fatalf("create recipe: %v", err)
	}
	return agg
}

func stripTimes(agg domain.Aggregate) domain.Aggregate {
	agg.Recipe.CreatedAt = time.Time{}
	agg.Recipe.UpdatedAt = time.Time{}
	return agg
}

func strptr(s string) *string { return &s }
func intptr(n int) *int       { return &n }

func TestMutationsNumberVersionsSequentially(t *testing.T) {
	r := newTestRepos(t)
	ctx := context.Background()
	agg := seedRecipe(t, r)
	recipeID := agg.Recipe.ID

	n, err := r.versioning.UpdateRecipeFields(ctx, recipeID,
		domain.RecipeUpdate{Title: strptr("Carbonara Classica")},
		domain.ChangeMeta{Description: "Updated recipe fields: title", ChangedFields: []string{"title"}})
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if n != 1 {
		t.Fatalf("first mutation must create version 1, got %d", n)
	}

	n, err = r.versioning.UpdateRecipeFields(ctx, recipeID,
		domain.RecipeUpdate{Servings: intptr(4)},
		domain.ChangeMeta{Description: "Updated recipe fields: servings", ChangedFields: []string{"servings"}})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected version 2, got %d", n)
	}

	n, err = r.versioning.PutIngredient(ctx, recipeID,
		domain.Ingredient{Name: "guanciale", Amount: 100, Unit: "g", Order: 2},
		domain.ChangeMeta{Description: `Added ingredient "guanciale"`})
	if err != nil {
		t.Fatalf("put ingredient: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected version 3, got %d", n)
	}

	versions, err := r.versions.List(ctx, recipeID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(versions))
	}
	for i, want := range []int{3, 2, 1} {
		if versions[i].VersionNumber != want {
			t.Fatalf("listing must be newest first, got %d at index %d", versions[i].VersionNumber, i)
		}
	}

	// Each version captures the state before its mutation.
	v1, err := snapshot.Decode(versions[2].SnapshotData)
	if err != nil {
		t.Fatalf("decode v1: %v", err)
	}
	if v1.Recipe.Title != "Carbonara" || v1.Recipe.Servings != 2 {
		t.Fatalf("v1 must hold the pre-edit state, got %+v", v1.Recipe)
	}
	v2, err := snapshot.Decode(versions[1].SnapshotData)
	if err != nil {
		t.Fatalf("decode v2: %v", err)
	}
	if v2.Recipe.Title != "Carbonara Classica" || v2.Recipe.Servings != 2 {
		t.Fatalf("v2 must hold the state after the first edit, got %+v", v2.Recipe)
	}
	v3, err := snapshot.Decode(versions[0].SnapshotData)
	if err != nil {
		t.Fatalf("decode v3: %v", err)
	}
	if v3.Recipe.Servings != 4 || len(v3.Ingredients) != 1 {
		t.Fatalf("v3 must hold the state before the ingredient was added, got %+v", v3)
	}

	latest, err := r.versions.LatestNumber(ctx, recipeID)
	if err != nil {
		t.Fatalf("latest number: %v", err)
	}
	if latest != 3 {
		t.Fatalf("expected latest 3, got %d", latest)
	}
}

func TestRestoreAppendsSafetyAndRestoreVersions(t *testing.T) {
	r := newTestRepos(t)
	ctx := context.Background()
	agg := seedRecipe(t, r)
	recipeID := agg.Recipe.ID

	mutations := []domain.RecipeUpdate{
		{Title: strptr("Carbonara Classica")},
		{Servings: intptr(4)},
		{Title: strptr("Carbonara Romana")},
	}
	for i, update := range mutations {
		if _, err := r.versioning.UpdateRecipeFields(ctx, recipeID, update,
			domain.ChangeMeta{Description: "edit", ChangedFields: update.ChangedFields()}); err != nil {
			t.Fatalf("update %d: %v", i+1, err)
		}
	}

	versions, err := r.versions.List(ctx, recipeID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	var target domain.RecipeVersion
	for _, v := range versions {
		if v.VersionNumber == 2 {
			target = v
		}
	}
	targetState, err := snapshot.Decode(target.SnapshotData)
	if err != nil {
		t.Fatalf("decode target: %v", err)
	}

	before, err := r.recipes.Capture(ctx, recipeID)
	if err != nil {
		t.Fatalf("capture pre-restore state: %v", err)
	}

	n, err := r.versioning.Restore(ctx, recipeID, target.ID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n != 5 {
		t.Fatalf("restore must return the restore-event version number 5, got %d", n)
	}

	// The live aggregate converged to the target snapshot.
	live, err := r.recipes.Capture(ctx, recipeID)
	if err != nil {
		t.Fatalf("capture restored state: %v", err)
	}
	if live.Recipe.Title != targetState.Recipe.Title || live.Recipe.Servings != targetState.Recipe.Servings {
		t.Fatalf("live state did not converge: got %+v want %+v", live.Recipe, targetState.Recipe)
	}
	if !reflect.DeepEqual(live.Ingredients, targetState.Ingredients) {
		t.Fatalf("ingredients did not converge: got %+v want %+v", live.Ingredients, targetState.Ingredients)
	}
	if len(live.Categories) != 1 || live.Categories[0].Name != "italian" {
		t.Fatalf("category link lost in restore: %+v", live.Categories)
	}

	versions, err = r.versions.List(ctx, recipeID)
	if err != nil {
		t.Fatalf("list after restore: %v", err)
	}
	if len(versions) != 5 {
		t.Fatalf("expected 5 versions after restore, got %d", len(versions))
	}

	// versions[1] is the safety snapshot (number 4): the complete state
	// that the restore overwrote.
	safety := versions[1]
	if safety.VersionNumber != 4 {
		t.Fatalf("expected safety snapshot at number 4, got %d", safety.VersionNumber)
	}
	if safety.ChangeDescription != "Safety snapshot before restoring version 2" {
		t.Fatalf("unexpected safety description %q", safety.ChangeDescription)
	}
	overwritten, err := snapshot.Decode(safety.SnapshotData)
	if err != nil {
		t.Fatalf("decode safety snapshot: %v", err)
	}
	if !reflect.DeepEqual(stripTimes(*overwritten), stripTimes(*before)) {
		t.Fatalf("safety snapshot incomplete:\n got %+v\nwant %+v", overwritten, before)
	}

	final := versions[0]
	if final.VersionNumber != 5 {
		t.Fatalf("expected restore event at number 5, got %d", final.VersionNumber)
	}
	if final.ChangeDescription != "Restored version 2" {
		t.Fatalf("unexpected restore description %q", final.ChangeDescription)
	}
	if !reflect.DeepEqual(final.ChangedFields, []string{"restored"}) {
		t.Fatalf("restore event must carry changedFields [restored], got %v", final.ChangedFields)
	}
}

func TestRestoreCorruptTargetLeavesEverythingUntouched(t *testing.T) {
	r := newTestRepos(t)
	ctx := context.Background()
	agg := seedRecipe(t, r)
	recipeID := agg.Recipe.ID

	if _, err := r.versioning.UpdateRecipeFields(ctx, recipeID,
		domain.RecipeUpdate{Title: strptr("Edited")},
		domain.ChangeMeta{Description: "edit", ChangedFields: []string{"title"}}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// A damaged blob, planted the way bit rot would: the row exists but
	// no longer parses.
	corrupt := models.RecipeVersion{
		ID:            uuid.New(),
		RecipeID:      recipeID,
		VersionNumber: 2,
		SnapshotData:  `{"schemaVersion":1,"recipe":`,
		ChangedFields: "[]",
	}
	if err := r.versioning.db.Create(&corrupt).Error; err != nil {
		t.Fatalf("plant corrupt version: %v", err)
	}

	_, err := r.versioning.Restore(ctx, recipeID, corrupt.ID)
	if !errors.Is(err, domain.ErrCorruptSnapshot) {
		t.Fatalf("expected CorruptSnapshot, got %v", err)
	}

	live, err := r.recipes.Capture(ctx, recipeID)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if live.Recipe.Title != "Edited" {
		t.Fatalf("aborted restore must not touch the live state, got %q", live.Recipe.Title)
	}

	versions, err := r.versions.List(ctx, recipeID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("aborted restore must not append versions, got %d", len(versions))
	}
}

func TestRestoreRollsBackCompletelyWhenApplyFails(t *testing.T) {
	r := newTestRepos(t)
	ctx := context.Background()
	agg := seedRecipe(t, r)
	recipeID := agg.Recipe.ID

	if _, err := r.versioning.UpdateRecipeFields(ctx, recipeID,
		domain.RecipeUpdate{Title: strptr("Edited")},
		domain.ChangeMeta{Description: "edit", ChangedFields: []string{"title"}}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// A snapshot that decodes cleanly but cannot be applied: two
	// ingredients sharing a display order trip the unique index halfway
	// through the child rewrite.
	poisoned := *agg
	poisoned.Ingredients = []domain.Ingredient{
		{ID: uuid.New(), Name: "salt", Order: 1},
		{ID: uuid.New(), Name: "pepper", Order: 1},
	}
	blob, err := snapshot.Encode(poisoned)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	row := models.RecipeVersion{
		ID:             uuid.New(),
		RecipeID:       recipeID,
		VersionNumber:  2,
		SnapshotData:   string(blob),
		SnapshotDigest: snapshot.Digest(blob),
		ChangedFields:  "[]",
	}
	if err := r.versioning.db.Create(&row).Error; err != nil {
		t.Fatalf("plant version: %v", err)
	}

	if _, err := r.versioning.Restore(ctx, recipeID, row.ID); err == nil {
		t.Fatalf("expected restore to fail on the duplicate display order")
	}

	// Atomicity: neither the safety snapshot nor any partial child
	// rewrite survived the rollback.
	versions, err := r.versions.List(ctx, recipeID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("failed restore must leave the ledger unchanged, got %d versions", len(versions))
	}
	live, err := r.recipes.Capture(ctx, recipeID)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if len(live.Ingredients) != 1 || live.Ingredients[0].Name != "spaghetti" {
		t.Fatalf("failed restore must leave the children unchanged, got %+v", live.Ingredients)
	}
	if live.Recipe.Title != "Edited" {
		t.Fatalf("failed restore must leave the root unchanged, got %q", live.Recipe.Title)
	}
}

func TestFailedMutationWritesNoVersion(t *testing.T) {
	r := newTestRepos(t)
	ctx := context.Background()
	agg := seedRecipe(t, r)
	recipeID := agg.Recipe.ID

	// Updating an ingredient that does not exist fails after the
	// pre-state snapshot was staged; the rollback must discard it.
	_, err := r.versioning.PutIngredient(ctx, recipeID,
		domain.Ingredient{ID: uuid.New(), Name: "ghost", Order: 9},
		domain.ChangeMeta{Description: `Updated ingredient "ghost"`})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}

	versions, err := r.versions.List(ctx, recipeID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(versions) != 0 {
		t.Fatalf("failed mutation must not persist a version, got %d", len(versions))
	}
}

func TestMutationOnMissingRecipeIsNotFound(t *testing.T) {
	r := newTestRepos(t)

	_, err := r.versioning.UpdateRecipeFields(context.Background(), uuid.New(),
		domain.RecipeUpdate{Title: strptr("x")},
		domain.ChangeMeta{Description: "edit", ChangedFields: []string{"title"}})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestGetVersionIsScopedToRecipe(t *testing.T) {
	r := newTestRepos(t)
	ctx := context.Background()
	agg := seedRecipe(t, r)
	other := seedRecipeTitled(t, r, "Cacio e Pepe")

	if _, err := r.versioning.UpdateRecipeFields(ctx, agg.Recipe.ID,
		domain.RecipeUpdate{Title: strptr("Edited")},
		domain.ChangeMeta{Description: "edit", ChangedFields: []string{"title"}}); err != nil {
		t.Fatalf("update: %v", err)
	}

	versions, err := r.versions.List(ctx, agg.Recipe.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if _, err := r.versions.Get(ctx, agg.Recipe.ID, versions[0].ID); err != nil {
		t.Fatalf("get through owning recipe: %v", err)
	}
	_, err = r.versions.Get(ctx, other.Recipe.ID, versions[0].ID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("a version must not resolve through another recipe, got %v", err)
	}
}

func seedRecipeTitled(t *testing.T, r testRepos, title string) *domain.Aggregate {
	t.Helper()
	agg, err := r.recipes.Create(context.Background(), domain.Aggregate{
		Recipe: domain.Recipe{OwnerID: "u1", Title: title, Servings: 2},
	})
	if err != nil {
		t.Fatalf("create recipe: %v", err)
	}
	return agg
}
