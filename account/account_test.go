package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kochabx/authgate/store/db"
)

func directories(t *testing.T) map[string]Directory {
	t.Helper()
	client, err := db.New(db.SQLiteMemory())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	gormDir, err := NewGormDirectory(client.DB())
	require.NoError(t, err)

	return map[string]Directory{
		"memory": NewMemoryDirectory(),
		"gorm":   gormDir,
	}
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	for name, dir := range directories(t) {
		t.Run(name, func(t *testing.T) {
			u := &User{Username: "Alice", PasswordHash: "$2a$hash", MFAEnabled: true}
			require.NoError(t, dir.Create(ctx, u))
			assert.NotEmpty(t, u.ID)
			assert.Equal(t, RoleClient, u.Role)

			got, err := dir.FindByUsername(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, u.ID, got.ID)
			assert.True(t, got.MFAEnabled)

			got, err = dir.FindByID(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, "$2a$hash", got.PasswordHash)

			_, err = dir.FindByUsername(ctx, "nobody")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = dir.FindByID(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.ErrorIs(t, dir.Create(ctx, &User{Username: "ALICE", PasswordHash: "x"}), ErrExists)

			bob := &User{Username: "bob", PasswordHash: "x"}
			require.NoError(t, dir.Create(ctx, bob))
			require.NoError(t, dir.SetTOTP(ctx, bob.ID, "JBSWY3DPEHPK3PXP"))
			got, err = dir.FindByID(ctx, bob.ID)
			require.NoError(t, err)
			assert.True(t, got.MFAEnabled)
			assert.Equal(t, "JBSWY3DPEHPK3PXP", got.TOTPSecret)
			assert.ErrorIs(t, dir.SetTOTP(ctx, "missing", "x"), ErrNotFound)
		})
	}
}

func TestMemoryDirectoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()
	require.NoError(t, dir.Create(ctx, &User{ID: "u1", Username: "alice", Role: RoleAdmin}))

	got, err := dir.FindByID(ctx, "u1")
	require.NoError(t, err)
	got.Role = RoleClient

	again, err := dir.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, again.Role)
}

func TestHasherAuthenticate(t *testing.T) {
	ctx := context.Background()
	h := NewHasher(bcrypt.MinCost)
	dir := NewMemoryDirectory()

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	require.NoError(t, dir.Create(ctx, &User{Username: "alice", PasswordHash: hash}))

	u, err := h.Authenticate(ctx, dir, "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = h.Authenticate(ctx, dir, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = h.Authenticate(ctx, dir, "nobody", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestNewHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(99).cost)
	assert.Equal(t, bcrypt.MinCost, NewHasher(bcrypt.MinCost).cost)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()
	users := []SeedUser{
		{Username: "root", PasswordHash: "$2a$04$x", Role: RoleAdmin},
		{Username: "carol", PasswordHash: "$2a$04$y", MFAEnabled: true},
	}

	require.NoError(t, Seed(ctx, dir, users))
	// 重复执行不报错
	require.NoError(t, Seed(ctx, dir, users))

	root, err := dir.FindByUsername(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, root.Role)

	carol, err := dir.FindByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, RoleClient, carol.Role)
	assert.True(t, carol.MFAEnabled)
}
