package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/academic-service/internal/cache"
	"github.com/SAP-F-2025/academic-service/internal/models"
	"github.com/SAP-F-2025/academic-service/internal/repositories"
)

// DisciplinePostgreSQL implements repositories.DisciplineRepository
type DisciplinePostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewDisciplinePostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.DisciplineRepository {
	return &DisciplinePostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (r *DisciplinePostgreSQL) Create(ctx context.Context, discipline *models.Discipline) error {
	if err := r.db.WithContext(ctx).Create(discipline).Error; err != nil {
		return handleDBError(err, "create discipline")
	}
	cache.InvalidateDisciplineCache(ctx, r.cacheManager, discipline.ID)
	return nil
}

func (r *DisciplinePostgreSQL) GetByID(ctx context.Context, id uint) (*models.Discipline, error) {
	var discipline models.Discipline
	err := r.cacheManager.Discipline.CacheOrExecute(ctx, fmt.Sprintf("id:%d", id), &discipline, cache.DisciplineCacheConfig.TTL, func() (interface{}, error) {
		var dbDiscipline models.Discipline
		if err := r.db.WithContext(ctx).Preload("Courses").First(&dbDiscipline, id).Error; err != nil {
			return nil, handleDBError(err, "get discipline by id")
		}
		return &dbDiscipline, nil
	})
	if err != nil {
		return nil, err
	}
	return &discipline, nil
}

func (r *DisciplinePostgreSQL) GetByIDs(ctx context.Context, ids []uint) ([]*models.Discipline, error) {
	if len(ids) == 0 {
		return []*models.Discipline{}, nil
	}
	var disciplines []*models.Discipline
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&disciplines).Error; err != nil {
		return nil, handleDBError(err, "get disciplines by ids")
	}
	return disciplines, nil
}

func (r *DisciplinePostgreSQL) List(ctx context.Context) ([]*models.Discipline, error) {
	var disciplines []*models.Discipline
	err := r.cacheManager.Discipline.CacheOrExecute(ctx, "list:all", &disciplines, cache.DisciplineCacheConfig.TTL, func() (interface{}, error) {
		var dbDisciplines []*models.Discipline
		if err := r.db.WithContext(ctx).Preload("Courses").Order("name ASC").Find(&dbDisciplines).Error; err != nil {
			return nil, handleDBError(err, "list disciplines")
		}
		return dbDisciplines, nil
	})
	if err != nil {
		return nil, err
	}
	return disciplines, nil
}

func (r *DisciplinePostgreSQL) Delete(ctx context.Context, id uint) error {
	discipline := &models.Discipline{ID: id}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(discipline).Association("Courses").Clear(); err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM professor_disciplines WHERE discipline_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(discipline)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return handleDBError(err, "delete discipline")
	}
	cache.InvalidateDisciplineCache(ctx, r.cacheManager, id)
	return nil
}

func (r *DisciplinePostgreSQL) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Discipline{}).
		Where("code = ?", code).
		Count(&count).Error
	if err != nil {
		return false, handleDBError(err, "check discipline existence")
	}
	return count > 0, nil
}
