package db

import (
	"context"

	"rsschool/api/internal/model"
	"rsschool/api/internal/store"
)

const courseColumns = `id, name, alias, description, year, start_date, end_date, completed, created_at, updated_at`

func scanCourse(row interface{ Scan(...interface{}) error }) (model.Course, error) {
	var course model.Course
	err := row.Scan(
		&course.ID,
		&course.Name,
		&course.Alias,
		&course.Description,
		&course.Year,
		&course.StartDate,
		&course.EndDate,
		&course.Completed,
		&course.CreatedAt,
		&course.UpdatedAt,
	)
	if err != nil {
		return model.Course{}, normalize(err)
	}
	course.StartDate = utcPtr(course.StartDate)
	course.EndDate = utcPtr(course.EndDate)
	course.CreatedAt = course.CreatedAt.UTC()
	course.UpdatedAt = course.UpdatedAt.UTC()
	return course, nil
}

func (q *Queries) CreateCourse(ctx context.Context, course model.Course) (model.Course, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO courses (id, name, alias, description, year, start_date, end_date, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+courseColumns,
		course.ID, course.Name, course.Alias, course.Description, course.Year,
		course.StartDate, course.EndDate, course.Completed, course.CreatedAt, course.UpdatedAt,
	)
	return scanCourse(row)
}

func (q *Queries) GetCourse(ctx context.Context, id string) (model.Course, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+courseColumns+`
		FROM courses
		WHERE id = $1
	`, id)
	return scanCourse(row)
}

func (q *Queries) UpdateCourse(ctx context.Context, course model.Course) (model.Course, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE courses
		SET name = $2, alias = $3, description = $4, year = $5, start_date = $6, end_date = $7, completed = $8, updated_at = $9
		WHERE id = $1
		RETURNING `+courseColumns,
		course.ID, course.Name, course.Alias, course.Description, course.Year,
		course.StartDate, course.EndDate, course.Completed, course.UpdatedAt,
	)
	return scanCourse(row)
}

// DeleteCourse removes the course row. Enrollments go with it through the
// foreign key; events are removed by the caller.
func (q *Queries) DeleteCourse(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
