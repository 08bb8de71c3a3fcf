package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/user"
	"github.com/tkceria/ceria/storage/database/sqlxrepos"
	"github.com/tkceria/ceria/testutil"
)

func Test_userRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewUserRepository(db)

	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	admin := testutil.CreateUser(t, repo, "Admin", "admin", "admin@ceria.sch.id", "", user.RoleAdmin, true, jan)
	sari := testutil.CreateUser(t, repo, "Bu Sari", "sari", "sari@ceria.sch.id", "", user.RoleTeacher, true, jan.AddDate(0, 1, 0))
	testutil.CreateUser(t, repo, "Pak Budi", "", "budi@example.com", "", user.RoleParent, false, jan.AddDate(0, 2, 0))
	// parents may have neither username nor email
	testutil.CreateUser(t, repo, "Ibu Rina", "", "", "", user.RoleParent, true, jan.AddDate(0, 3, 0))

	t.Run("uniqueness", func(t *testing.T) {
		assert.Equal(t, user.ErrUsernameExists, repo.CheckUsernameUniqueness(ctx, "sari", ""))
		assert.Equal(t, user.ErrEmailExists, repo.CheckUsernameUniqueness(ctx, "new", "admin@ceria.sch.id"))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "sari", "sari@ceria.sch.id", sari.ID))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "", ""))
	})

	t.Run("get", func(t *testing.T) {
		for _, f := range []user.GetFilter{
			{ID: admin.ID},
			{Username: "admin"},
			{Email: "admin@ceria.sch.id"},
			{UsernameOrEmail: "admin@ceria.sch.id"},
		} {
			got, err := repo.GetUser(ctx, f)
			require.NoError(t, err)
			assert.Equal(t, admin.ID, got.ID)
		}
		_, err := repo.GetUser(ctx, user.GetFilter{})
		assert.Equal(t, user.ErrNotFound, err)
		_, err = repo.GetUser(ctx, user.GetFilter{Username: "nope"})
		assert.Equal(t, user.ErrNotFound, err)
	})

	active := true
	tests := []struct {
		name      string
		filter    user.QueryFilter
		orderings []core.DBOrdering
		want      []string
	}{
		{name: "all by name", want: []string{"Admin", "Bu Sari", "Ibu Rina", "Pak Budi"}},
		{name: "search", filter: user.QueryFilter{Search: "EXAMPLE"}, want: []string{"Pak Budi"}},
		{name: "roles", filter: user.QueryFilter{Roles: []string{user.RoleAdmin, user.RoleTeacher}}, want: []string{"Admin", "Bu Sari"}},
		{name: "active parents", filter: user.QueryFilter{Roles: []string{user.RoleParent}, IsActive: &active}, want: []string{"Ibu Rina"}},
		{
			name:   "created range",
			filter: user.QueryFilter{CreatedFrom: jan.AddDate(0, 1, 0), CreatedTo: jan.AddDate(0, 2, 0)},
			want:   []string{"Bu Sari", "Pak Budi"},
		},
		{
			name:      "newest first",
			orderings: []core.DBOrdering{{Field: "created_at"}},
			want:      []string{"Ibu Rina", "Pak Budi", "Bu Sari", "Admin"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := repo.FilterUsers(ctx, tt.filter, tt.orderings)
			require.NoError(t, err)
			names := make([]string, 0, len(users))
			for _, u := range users {
				names = append(names, u.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	t.Run("update and delete", func(t *testing.T) {
		sari.Role = user.RoleAdmin
		sari.Email = ""
		_, err := repo.UpdateUser(ctx, sari)
		require.NoError(t, err)
		got, err := repo.GetUser(ctx, user.GetFilter{ID: sari.ID})
		require.NoError(t, err)
		assert.Equal(t, user.RoleAdmin, got.Role)
		assert.Equal(t, "", got.Email)

		require.NoError(t, repo.DeleteUsersByID(ctx, sari.ID, admin.ID))
		_, err = repo.GetUser(ctx, user.GetFilter{ID: sari.ID})
		assert.Equal(t, user.ErrNotFound, err)
		_, err = repo.UpdateUser(ctx, sari)
		assert.Equal(t, user.ErrNotFound, err)
	})
}
