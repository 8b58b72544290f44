package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/tastevault/tastevault"
	"github.com/tastevault/tastevault/internal/domain"
	"github.com/tastevault/tastevault/internal/snapshot"
	"github.com/tastevault/tastevault/internal/usecase"
)

// --- mocks ---

type mockAggregateRepo struct{}

func (m *mockAggregateRepo) Create(ctx context.Context, agg domain.Aggregate) (*domain.Aggregate, error) {
	agg.Recipe.ID = uuid.New()
	return &agg, nil
}
func (m *mockAggregateRepo) Capture(ctx context.Context, recipeID uuid.UUID) (*domain.Aggregate, error) {
	return &domain.Aggregate{Recipe: domain.Recipe{ID: recipeID, Title: "Okonomiyaki", OwnerID: "u1"}}, nil
}
func (m *mockAggregateRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Recipe, error) {
	return []domain.Recipe{{ID: uuid.New(), OwnerID: ownerID, Title: "Okonomiyaki"}}, nil
}
func (m *mockAggregateRepo) Delete(ctx context.Context, recipeID uuid.UUID) error { return nil }

type mockVersioningRepo struct {
	nextVersion int
	err         error
}

func (m *mockVersioningRepo) UpdateRecipeFields(ctx context.Context, recipeID uuid.UUID, update domain.RecipeUpdate, meta domain.ChangeMeta) (int, error) {
	return m.nextVersion, m.err
}
func (m *mockVersioningRepo) PutIngredient(ctx context.Context, recipeID uuid.UUID, ing domain.Ingredient, meta domain.ChangeMeta) (int, error) {
	return m.nextVersion, m.err
}
func (m *mockVersioningRepo) DeleteIngredient(ctx context.Context, recipeID, ingredientID uuid.UUID, meta domain.ChangeMeta) (int, error) {
	return m.nextVersion, m.err
}
func (m *mockVersioningRepo) PutStep(ctx context.Context, recipeID uuid.UUID, st domain.CookingStep, meta domain.ChangeMeta) (int, error) {
	return m.nextVersion, m.err
}
func (m *mockVersioningRepo) DeleteStep(ctx context.Context, recipeID, stepID uuid.UUID, meta domain.ChangeMeta) (int, error) {
	return m.nextVersion, m.err
}
func (m *mockVersioningRepo) ReplaceCategories(ctx context.Context, recipeID uuid.UUID, categoryIDs []uuid.UUID, meta domain.ChangeMeta) (int, error) {
	return m.nextVersion, m.err
}
func (m *mockVersioningRepo) Restore(ctx context.Context, recipeID, versionID uuid.UUID) (int, error) {
	return m.nextVersion, m.err
}

type mockLedger struct {
	versions map[uuid.UUID]domain.RecipeVersion
}

func (m *mockLedger) List(ctx context.Context, recipeID uuid.UUID) ([]domain.RecipeVersion, error) {
	return nil, nil
}
func (m *mockLedger) Get(ctx context.Context, recipeID, versionID uuid.UUID) (*domain.RecipeVersion, error) {
	v, ok := m.versions[versionID]
	if !ok || v.RecipeID != recipeID {
		return nil, domain.NotFoundError{Resource: "version"}
	}
	return &v, nil
}
func (m *mockLedger) LatestNumber(ctx context.Context, recipeID uuid.UUID) (int, error) {
	return 1, nil
}

type mockCategoryRepo struct{}

func (m *mockCategoryRepo) List(ctx context.Context) ([]domain.Category, error) { return nil, nil }
func (m *mockCategoryRepo) Get(ctx context.Context, categoryID uuid.UUID) (*domain.Category, error) {
	return nil, domain.NotFoundError{Resource: "category"}
}
func (m *mockCategoryRepo) Ensure(ctx context.Context, name, categoryType string) (*domain.Category, error) {
	return &domain.Category{ID: uuid.New(), Name: name, Type: categoryType}, nil
}

type mockSuggestionGateway struct{}

func (m *mockSuggestionGateway) Suggest(ctx context.Context, agg domain.Aggregate, basedOnVersion int) (*tastevault.Suggestion, error) {
	return &tastevault.Suggestion{RecipeID: agg.Recipe.ID.String(), BasedOnVersion: basedOnVersion, Text: "More sauce."}, nil
}

// --- tests ---

func newTestServer(vr *mockVersioningRepo, ledger *mockLedger) *echo.Echo {
	if ledger == nil {
		ledger = &mockLedger{}
	}
	aggregates := &mockAggregateRepo{}
	recipeUC := usecase.NewRecipeUsecase(aggregates, vr, &mockCategoryRepo{}, nil)
	versioningUC := usecase.NewVersioningUsecase(ledger, vr, nil)
	suggestionUC := usecase.NewSuggestionUsecase(aggregates, ledger, &mockSuggestionGateway{})

	h := NewHandler(recipeUC, versioningUC, suggestionUC, nil)

	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func doJSON(e *echo.Echo, method, path string, payload any) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if payload != nil {
		json.NewEncoder(&body).Encode(payload)
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)
	return res
}

func TestUpdateRecipeReturnsVersionNumber(t *testing.T) {
	e := newTestServer(&mockVersioningRepo{nextVersion: 4}, nil)

	res := doJSON(e, http.MethodPatch, "/api/v1/recipes/"+uuid.NewString(), map[string]any{"title": "Better title"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}

	var out map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if out["versionNumber"] != float64(4) {
		t.Fatalf("expected versionNumber 4, got %v", out["versionNumber"])
	}
}

func TestUpdateRecipeMissingRecipeIs404(t *testing.T) {
	e := newTestServer(&mockVersioningRepo{err: domain.NotFoundError{Resource: "recipe"}}, nil)

	res := doJSON(e, http.MethodPatch, "/api/v1/recipes/"+uuid.NewString(), map[string]any{"title": "x"})
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", res.Code)
	}
}

func TestUpdateRecipeConflictIs409(t *testing.T) {
	e := newTestServer(&mockVersioningRepo{err: domain.ConflictError{Resource: "recipe version"}}, nil)

	res := doJSON(e, http.MethodPatch, "/api/v1/recipes/"+uuid.NewString(), map[string]any{"title": "x"})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", res.Code)
	}
}

func TestUpdateRecipeInvalidUUIDIs400(t *testing.T) {
	e := newTestServer(&mockVersioningRepo{}, nil)

	res := doJSON(e, http.MethodPatch, "/api/v1/recipes/not-a-uuid", map[string]any{"title": "x"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.Code)
	}
}

func TestEmptyUpdateIs400(t *testing.T) {
	e := newTestServer(&mockVersioningRepo{}, nil)

	res := doJSON(e, http.MethodPatch, "/api/v1/recipes/"+uuid.NewString(), map[string]any{})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.Code)
	}
}

func TestRestoreReturnsNewVersionNumber(t *testing.T) {
	e := newTestServer(&mockVersioningRepo{nextVersion: 9}, nil)

	path := "/api/v1/recipes/" + uuid.NewString() + "/versions/" + uuid.NewString() + "/restore"
	res := doJSON(e, http.MethodPost, path, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}

	var out map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if out["versionNumber"] != float64(9) {
		t.Fatalf("expected versionNumber 9, got %v", out["versionNumber"])
	}
}

func TestGetVersionDecodesSnapshot(t *testing.T) {
	recipeID := uuid.New()
	agg := domain.Aggregate{
		Recipe:      domain.Recipe{ID: recipeID, Title: "Pho"},
		Ingredients: []domain.Ingredient{},
		Steps:       []domain.CookingStep{},
		Categories:  []domain.Category{},
	}
	blob, err := snapshot.Encode(agg)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	versionID := uuid.New()
	ledger := &mockLedger{versions: map[uuid.UUID]domain.RecipeVersion{
		versionID: {ID: versionID, RecipeID: recipeID, VersionNumber: 2, SnapshotData: blob},
	}}
	e := newTestServer(&mockVersioningRepo{}, ledger)

	res := doJSON(e, http.MethodGet, "/api/v1/recipes/"+recipeID.String()+"/versions/"+versionID.String(), nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}

	var detail usecase.VersionDetail
	if err := json.Unmarshal(res.Body.Bytes(), &detail); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if detail.Snapshot.Recipe.Title != "Pho" {
		t.Fatalf("snapshot not decoded: %+v", detail.Snapshot)
	}
}

func TestGetVersionThroughWrongRecipeIs404(t *testing.T) {
	recipeID := uuid.New()
	versionID := uuid.New()
	blob, err := snapshot.Encode(domain.Aggregate{Recipe: domain.Recipe{ID: recipeID, Title: "Pho"}})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	ledger := &mockLedger{versions: map[uuid.UUID]domain.RecipeVersion{
		versionID: {ID: versionID, RecipeID: recipeID, VersionNumber: 1, SnapshotData: blob},
	}}
	e := newTestServer(&mockVersioningRepo{}, ledger)

	res := doJSON(e, http.MethodGet, "/api/v1/recipes/"+uuid.NewString()+"/versions/"+versionID.String(), nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("a version must only resolve under its own recipe, got %d", res.Code)
	}
}

func TestCreateCategoryEndpoint(t *testing.T) {
	e := newTestServer(&mockVersioningRepo{}, nil)

	res := doJSON(e, http.MethodPost, "/api/v1/categories", map[string]any{"name": "thai", "type": "cuisine"})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", res.Code, res.Body.String())
	}

	var cat domain.Category
	if err := json.Unmarshal(res.Body.Bytes(), &cat); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if cat.Name != "thai" || cat.Type != "cuisine" {
		t.Fatalf("unexpected category %+v", cat)
	}

	res = doJSON(e, http.MethodPost, "/api/v1/categories", map[string]any{"name": "", "type": "cuisine"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank name, got %d", res.Code)
	}
}

func TestGetUnknownCategoryIs404(t *testing.T) {
	e := newTestServer(&mockVersioningRepo{}, nil)

	res := doJSON(e, http.MethodGet, "/api/v1/categories/"+uuid.NewString(), nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", res.Code)
	}
}

func TestGetCorruptVersionIs500(t *testing.T) {
	recipeID := uuid.New()
	versionID := uuid.New()
	ledger := &mockLedger{versions: map[uuid.UUID]domain.RecipeVersion{
		versionID: {ID: versionID, RecipeID: recipeID, VersionNumber: 1, SnapshotData: []byte("not json")},
	}}
	e := newTestServer(&mockVersioningRepo{}, ledger)

	res := doJSON(e, http.MethodGet, "/api/v1/recipes/"+recipeID.String()+"/versions/"+versionID.String(), nil)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", res.Code)
	}
}

type realtimeSession struct {
	ctx    context.Context
	input  <-chan []string
	output chan<- tastevault.Event
}

type stubRealtimeService struct {
	sessions chan realtimeSession
}

func (s *stubRealtimeService) Realtime(ctx context.Context, input <-chan []string, output chan<- tastevault.Event) {
	s.sessions <- realtimeSession{ctx: ctx, input: input, output: output}
	<-ctx.Done()
}

func TestRealtimeSubscribeDeliverAndCleanup(t *testing.T) {
	stub := &stubRealtimeService{sessions: make(chan realtimeSession, 1)}

	aggregates := &mockAggregateRepo{}
	recipeUC := usecase.NewRecipeUsecase(aggregates, &mockVersioningRepo{}, &mockCategoryRepo{}, nil)
	versioningUC := usecase.NewVersioningUsecase(&mockLedger{}, &mockVersioningRepo{}, nil)
	suggestionUC := usecase.NewSuggestionUsecase(aggregates, &mockLedger{}, &mockSuggestionGateway{})
	h := NewHandler(recipeUC, versioningUC, suggestionUC, stub)

	e := echo.New()
	h.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/realtime", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	recipeID := uuid.NewString()
	if err := conn.WriteJSON(map[string]any{"type": "listen", "recipes": []string{recipeID}}); err != nil {
		t.Fatalf("listen message failed: %v", err)
	}

	var session realtimeSession
	select {
	case session = <-stub.sessions:
	case <-time.After(2 * time.Second):
		t.Fatalf("realtime service never started")
	}

	select {
	case subs := <-session.input:
		if len(subs) != 1 || subs[0] != recipeID {
			t.Fatalf("unexpected subscription %v", subs)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscription never reached the service")
	}

	session.output <- tastevault.Event{RecipeID: recipeID, Kind: tastevault.EventKindUpdated, VersionNumber: 3}

	var event tastevault.Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("event never reached the client: %v", err)
	}
	if event.RecipeID != recipeID || event.VersionNumber != 3 {
		t.Fatalf("unexpected event %+v", event)
	}

	conn.Close()

	select {
	case <-session.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("handler did not clean up after the client disconnected")
	}
}

func TestSuggestEndpoint(t *testing.T) {
	e := newTestServer(&mockVersioningRepo{}, nil)

	res := doJSON(e, http.MethodPost, "/api/v1/recipes/"+uuid.NewString()+"/suggestions", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}

	var suggestion tastevault.Suggestion
	if err := json.Unmarshal(res.Body.Bytes(), &suggestion); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if suggestion.Text == "" {
		t.Fatalf("expected suggestion text")
	}
}
