package service

import (
	"context"
	"errors"
	"modula_lms_backend/internal/config"
	"modula_lms_backend/internal/model"
	"modula_lms_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewAuthService(env.Users, &config.Config{})

	user, err := svc.Register(ctx, RegisterRequest{Name: " Lea ", Email: "Lea@Example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "lea@example.com", user.Email)
	assert.Equal(t, model.Learner, user.Role)

	_, err = svc.Register(ctx, RegisterRequest{Name: "Lea", Email: "lea@example.com", Password: "password123"})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)
}

func TestRegister_ConcurrentInsertConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewAuthService(env.Users, &config.Config{})

	// 查重之后、插入之前另一个请求抢先写入同一邮箱
	raced := false
	require.NoError(t, env.DB.Callback().Create().Before("gorm:create").Register("test:race_register", func(tx *gorm.DB) {
		if raced || tx.Statement.Table != "users" {
			return
		}
		raced = true
		now := time.Now()
		_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"INSERT INTO users (name, email, password, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			"Other", "race@example.com", "x", "learner", now, now)
		if err != nil {
			tx.AddError(err)
		}
	}))

	_, err := svc.Register(ctx, RegisterRequest{Name: "Race", Email: "race@example.com", Password: "password123"})
	require.Error(t, err)
	assert.True(t, util.IsKind(err, util.KindConflict))
	assert.Equal(t, 409, util.StatusFor(err))
}

func TestStoreError_DuplicateKeyIsConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.Users.Create(ctx, &model.User{Name: "A", Email: "dup@example.com", Password: "x", Role: model.Learner}))

	err := env.Users.Create(ctx, &model.User{Name: "B", Email: "dup@example.com", Password: "x", Role: model.Learner})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))
	assert.True(t, util.IsKind(storeError(err, util.ErrUserNotFound), util.KindConflict))
}
