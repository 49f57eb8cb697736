package repository

import (
	"context"
	"errors"
	"fmt"

	"adspace-booking/internal/data/entity"
	"adspace-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type SpaceRepository interface {
	Create(ctx context.Context, space *entity.Space) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Space, error)
}

type spaceRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewSpaceRepository(db database.PgxIface, log *zap.Logger) SpaceRepository {
	return &spaceRepository{
		db:  db,
		log: log.With(zap.String("repository", "space")),
	}
}

func (r *spaceRepository) Create(ctx context.Context, space *entity.Space) error {
	query := `
		INSERT INTO spaces (id, owner_id, name, city, price_per_day, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		space.ID,
		space.OwnerID,
		space.Name,
		space.City,
		space.PricePerDay,
		space.IsActive,
		space.CreatedAt,
		space.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create space", zap.Error(err), zap.String("name", space.Name))
		return fmt.Errorf("create space %s: %w", space.Name, err)
	}

	return nil
}

func (r *spaceRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Space, error) {
	query := `
		SELECT id, owner_id, name, city, price_per_day, is_active, created_at, updated_at, deleted_at
		FROM spaces
		WHERE id = $1 AND deleted_at IS NULL
	`

	var space entity.Space
	err := r.db.QueryRow(ctx, query, id).Scan(
		&space.ID,
		&space.OwnerID,
		&space.Name,
		&space.City,
		&space.PricePerDay,
		&space.IsActive,
		&space.CreatedAt,
		&space.UpdatedAt,
		&space.DeletedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find space by ID", zap.Error(err), zap.String("space_id", id.String()))
		return nil, fmt.Errorf("find space by ID %s: %w", id.String(), err)
	}

	return &space, nil
}
