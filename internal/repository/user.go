package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"sudooom.im.conversation/internal/model"
	apperrors "sudooom.im.conversation/pkg/errors"
)

// UserRepository 用户仓库
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// FindByIDs 批量查找用户
// 不存在的 ID 直接缺席于结果，不视为错误
func (r *UserRepository) FindByIDs(ctx context.Context, ids []int64) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, username, nickname, avatar, node_id, privacy, status, created_at, updated_at
		FROM users WHERE id = ANY($1)
	`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var user model.User
		if err := rows.Scan(
			&user.Id,
			&user.Username,
			&user.Nickname,
			&user.Avatar,
			&user.NodeId,
			&user.Privacy,
			&user.Status,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			continue
		}
		users = append(users, user)
	}

	return users, nil
}
