package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SAP-F-2025/academic-service/internal/models"
	"github.com/SAP-F-2025/academic-service/internal/repositories"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestHandleDBError(t *testing.T) {
	assert.NoError(t, handleDBError(nil, "noop"))

	err := handleDBError(gorm.ErrRecordNotFound, "find")
	assert.True(t, repositories.IsNotFoundError(err))
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	err = handleDBError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_student_profiles_registration_number" (SQLSTATE 23505)`), "save")
	assert.ErrorIs(t, err, repositories.ErrDuplicate)

	err = handleDBError(errors.New("connection reset"), "save")
	assert.EqualError(t, err, "save failed: connection reset")
}

func TestStudentProfile_FindByExternalIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentProfilePostgreSQL(db)

	mock.ExpectQuery(`SELECT \* FROM "student_profiles" WHERE external_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "external_id"}))

	_, err := repo.FindByExternalID(context.Background(), "ext-1")
	assert.True(t, repositories.IsNotFoundError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentProfile_FindByExternalID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentProfilePostgreSQL(db)

	mock.ExpectQuery(`SELECT \* FROM "student_profiles" WHERE external_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "external_id", "name", "registration_number", "course_id"}).
			AddRow(1, "ext-1", "Ana", "2024001", 7))
	mock.ExpectQuery(`SELECT \* FROM "courses" WHERE "courses"."id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "code"}).AddRow(7, "Physics", "PHY"))

	profile, err := repo.FindByExternalID(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "2024001", profile.RegistrationNumber)
	assert.Equal(t, uint(7), profile.CourseID)
	require.NotNil(t, profile.Course)
	assert.Equal(t, "Physics", profile.Course.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentProfile_SaveInserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentProfilePostgreSQL(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "student_profiles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectCommit()

	profile := &models.StudentProfile{ExternalID: "ext-1", Name: "Ana", RegistrationNumber: "2024001", CourseID: 7, Source: models.SourceProvisioned}
	require.NoError(t, repo.Save(context.Background(), profile))
	assert.Equal(t, uint(42), profile.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentProfile_SaveDuplicateRegistration(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentProfilePostgreSQL(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "student_profiles"`).
		WillReturnError(fmt.Errorf(`duplicate key value violates unique constraint (SQLSTATE 23505)`))
	mock.ExpectRollback()

	err := repo.Save(context.Background(), &models.StudentProfile{ExternalID: "ext-2", RegistrationNumber: "2024001", CourseID: 7})
	assert.ErrorIs(t, err, repositories.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoordinatorProfile_DeleteByExternalID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCoordinatorProfilePostgreSQL(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "coordinator_profiles" WHERE external_id = \$1`).
		WithArgs("ext-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteByExternalID(context.Background(), "ext-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourse_DeleteMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCoursePostgreSQL(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "courses" WHERE "courses"."id" = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), 99)
	assert.True(t, repositories.IsNotFoundError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourse_GetByIDWithoutCache(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCoursePostgreSQL(db, nil)

	mock.ExpectQuery(`SELECT \* FROM "courses" WHERE "courses"."id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "code"}).AddRow(7, "Physics", "PHY"))
	mock.ExpectQuery(`SELECT \* FROM "courses" WHERE "courses"."id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "code"}))

	course, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "PHY", course.Code)

	_, err = repo.GetByID(context.Background(), 999999)
	assert.True(t, repositories.IsNotFoundError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconciliation_ResolveByExternalID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReconciliationPostgreSQL(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "reconciliation_records" SET`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.ResolveByExternalID(context.Background(), "ext-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
