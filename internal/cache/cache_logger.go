package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateCourseCache drops a course and every list that may contain it
func InvalidateCourseCache(ctx context.Context, cm *CacheManager, courseID uint) {
	SafeDelete(ctx, cm.Course, fmt.Sprintf("id:%d", courseID), "first")
	SafeInvalidatePattern(ctx, cm.Course, "list:*")
}

// InvalidateDisciplineCache drops a discipline and every list that may contain it
func InvalidateDisciplineCache(ctx context.Context, cm *CacheManager, disciplineID uint) {
	SafeDelete(ctx, cm.Discipline, fmt.Sprintf("id:%d", disciplineID))
	SafeInvalidatePattern(ctx, cm.Discipline, "list:*")
}
