package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"breaksphere/internal/models"
	"breaksphere/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// EdgeRepository toggles and reads user relations stored as composite-key rows.
type EdgeRepository interface {
	// Toggle removes the edge if present, otherwise inserts it, in one
	// transaction. It reports whether the edge now exists. A concurrent
	// insert that wins the race yields models.ErrConcurrentMutation.
	Toggle(ctx context.Context, kind models.EdgeKind, subjectID, objectID string) (bool, error)
	Exists(ctx context.Context, kind models.EdgeKind, subjectID, objectID string) (bool, error)
}

type edgeTable struct {
	name    string
	subject string
	object  string
}

var edgeTables = map[models.EdgeKind]edgeTable{
	models.EdgeLike:   {name: "likes", subject: "user_id", object: "post_id"},
	models.EdgeFollow: {name: "follows", subject: "follower_id", object: "followee_id"},
}

func tableFor(kind models.EdgeKind) (edgeTable, error) {
	t, ok := edgeTables[kind]
	if !ok {
		return edgeTable{}, models.NewValidationError(fmt.Sprintf("unknown edge kind %q", kind))
	}
	return t, nil
}

type edgeRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewEdgeRepository creates a new edge repository.
func NewEdgeRepository(db *gorm.DB) EdgeRepository {
	return &edgeRepository{db: db, log: observability.NewRepoLogger("edges")}
}

func (r *edgeRepository) Toggle(ctx context.Context, kind models.EdgeKind, subjectID, objectID string) (bool, error) {
	t, err := tableFor(kind)
	if err != nil {
		return false, err
	}

	var added bool
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Exec(
			fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s = ?", t.name, t.subject, t.object),
			subjectID, objectID,
		)
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected > 0 {
			added = false
			return nil
		}

		ins := tx.Exec(
			fmt.Sprintf("INSERT INTO %s (%s, %s, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING", t.name, t.subject, t.object),
			subjectID, objectID, time.Now().UTC(),
		)
		if ins.Error != nil {
			if isUniqueViolation(ins.Error) {
				return models.ErrConcurrentMutation
			}
			return ins.Error
		}
		if ins.RowsAffected == 0 {
			return models.ErrConcurrentMutation
		}
		added = true
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrConcurrentMutation) {
			return false, err
		}
		r.log.LogError(ctx, err, "toggle_"+string(kind))
		return false, models.NewInternalError(err)
	}
	return added, nil
}

func (r *edgeRepository) Exists(ctx context.Context, kind models.EdgeKind, subjectID, objectID string) (bool, error) {
	t, err := tableFor(kind)
	if err != nil {
		return false, err
	}
	var count int64
	err = r.db.WithContext(ctx).Table(t.name).
		Where(fmt.Sprintf("%s = ? AND %s = ?", t.subject, t.object), subjectID, objectID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// isUniqueViolation reports whether err is a primary key or unique index
// violation from either supported driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return isUniqueConstraintError(err)
}
