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

// CoursePostgreSQL implements repositories.CourseRepository with a read-through
// redis cache.
type CoursePostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewCoursePostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.CourseRepository {
	return &CoursePostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (r *CoursePostgreSQL) Create(ctx context.Context, course *models.Course) error {
	if err := r.db.WithContext(ctx).Create(course).Error; err != nil {
		return handleDBError(err, "create course")
	}
	cache.InvalidateCourseCache(ctx, r.cacheManager, course.ID)
	return nil
}

func (r *CoursePostgreSQL) GetByID(ctx context.Context, id uint) (*models.Course, error) {
	var course models.Course
	err := r.cacheManager.Course.CacheOrExecute(ctx, fmt.Sprintf("id:%d", id), &course, cache.CourseCacheConfig.TTL, func() (interface{}, error) {
		var dbCourse models.Course
		if err := r.db.WithContext(ctx).First(&dbCourse, id).Error; err != nil {
			return nil, handleDBError(err, "get course by id")
		}
		return &dbCourse, nil
	})
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// First returns the course with the lowest id.
func (r *CoursePostgreSQL) First(ctx context.Context) (*models.Course, error) {
	var course models.Course
	err := r.cacheManager.Course.CacheOrExecute(ctx, "first", &course, cache.CourseCacheConfig.TTL, func() (interface{}, error) {
		var dbCourse models.Course
		if err := r.db.WithContext(ctx).Order("id ASC").First(&dbCourse).Error; err != nil {
			return nil, handleDBError(err, "get first course")
		}
		return &dbCourse, nil
	})
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *CoursePostgreSQL) List(ctx context.Context) ([]*models.Course, error) {
	var courses []*models.Course
	err := r.cacheManager.Course.CacheOrExecute(ctx, "list:all", &courses, cache.CourseCacheConfig.TTL, func() (interface{}, error) {
		var dbCourses []*models.Course
		if err := r.db.WithContext(ctx).Order("name ASC").Find(&dbCourses).Error; err != nil {
			return nil, handleDBError(err, "list courses")
		}
		return dbCourses, nil
	})
	if err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *CoursePostgreSQL) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Course{}, id)
	if result.Error != nil {
		return handleDBError(result.Error, "delete course")
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("delete course failed: %w", repositories.ErrNotFound)
	}
	cache.InvalidateCourseCache(ctx, r.cacheManager, id)
	return nil
}

func (r *CoursePostgreSQL) ExistsByNameOrCode(ctx context.Context, name, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Course{}).
		Where("name = ? OR code = ?", name, code).
		Count(&count).Error
	if err != nil {
		return false, handleDBError(err, "check course existence")
	}
	return count > 0, nil
}

// IsReferenced reports whether any student or coordinator profile owns the course.
func (r *CoursePostgreSQL) IsReferenced(ctx context.Context, id uint) (bool, error) {
	for _, model := range []interface{}{&models.StudentProfile{}, &models.CoordinatorProfile{}} {
		var count int64
		if err := r.db.WithContext(ctx).Model(model).Where("course_id = ?", id).Count(&count).Error; err != nil {
			return false, handleDBError(err, "check course references")
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}
