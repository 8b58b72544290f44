package repository

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tastevault/tastevault/internal/domain"
	"github.com/tastevault/tastevault/internal/infra/database/models"
)

const categoryCacheKey = "tv:categories"
const categoryCacheTTL = 300 // seconds

// CategoryRepository serves the read-mostly category vocabulary.
// Snapshot capture resolves names and types through it on every write,
// so the full list is cached in memcached.
type CategoryRepository struct {
	db *gorm.DB
	mc *memcache.Client
}

func NewCategoryRepository(db *gorm.DB, mc *memcache.Client) *CategoryRepository {
	return &CategoryRepository{db: db, mc: mc}
}

func (r *CategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	if r.mc != nil {
		if item, err := r.mc.Get(categoryCacheKey); err == nil {
			var cached []domain.Category
			if err := json.Unmarshal(item.Value, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var rows []models.Category
	err := r.db.WithContext(ctx).
		Order("type ASC, name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, domain.Category{ID: row.ID, Name: row.Name, Type: row.Type})
	}

	if r.mc != nil {
		if value, err := json.Marshal(categories); err == nil {
			err = r.mc.Set(&memcache.Item{
				Key:        categoryCacheKey,
				Value:      value,
				Expiration: categoryCacheTTL,
			})
			if err != nil {
				slog.Debug("category cache set failed",
					slog.String("error", err.Error()),
					slog.String("module", "repository"),
				)
			}
		}
	}

	return categories, nil
}

func (r *CategoryRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	var row models.Category
	err := r.db.WithContext(ctx).Take(&row, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NotFoundError{Resource: "category"}
	}
	if err != nil {
		return nil, err
	}
	return &domain.Category{ID: row.ID, Name: row.Name, Type: row.Type}, nil
}

// Ensure creates the vocabulary entry if it does not exist yet and
// returns it. Seeding helper for the taxonomy tables.
func (r *CategoryRepository) Ensure(ctx context.Context, name, categoryType string) (*domain.Category, error) {
	var row models.Category
	err := r.db.WithContext(ctx).
		Where("name = ? AND type = ?", name, categoryType).
		Take(&row).Error
	if err == nil {
		return &domain.Category{ID: row.ID, Name: row.Name, Type: row.Type}, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	row = models.Category{ID: uuid.New(), Name: name, Type: categoryType}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, translateDBError(err, "category")
	}

	if r.mc != nil {
		if err := r.mc.Delete(categoryCacheKey); err != nil && err != memcache.ErrCacheMiss {
			slog.Debug("category cache invalidation failed",
				slog.String("error", err.Error()),
				slog.String("module", "repository"),
			)
		}
	}

	return &domain.Category{ID: row.ID, Name: row.Name, Type: row.Type}, nil
}
