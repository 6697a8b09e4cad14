//go:build integration

package repository

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/trial-gate/internal/changefeed"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/models"
)

func TestStorage(t *testing.T) {
	storage, dsn := setupTestDatabase(t)
	f := &testFactory{storage: storage}
	ctx := context.Background()

	require.NoError(t, CheckDatabaseReady(ctx, storage))

	t.Run("users and profiles", func(t *testing.T) {
		id := f.user(t, "ann@example.com", "Ann")

		u, err := storage.GetUserByEmail(ctx, "ann@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, u.ID)

		p, err := storage.GetProfile(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Ann", p.FullName)

		_, err = storage.CreateUser(ctx, models.User{Email: "ann@example.com", PasswordHash: "x"}, models.Profile{})
		assert.ErrorIs(t, err, ErrDuplicateEmail)

		_, err = storage.GetUser(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("roles", func(t *testing.T) {
		id := f.user(t, "admin@example.com", "Root")

		ok, err := storage.HasRole(ctx, id, models.RoleAdmin)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, storage.AssignRole(ctx, id, models.RoleAdmin))
		require.NoError(t, storage.AssignRole(ctx, id, models.RoleAdmin))

		ok, err = storage.HasRole(ctx, id, models.RoleAdmin)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = storage.HasRole(ctx, "garbage", models.RoleAdmin)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("registrations", func(t *testing.T) {
		first, err := storage.CreateRegistration(ctx, models.Registration{FullName: "Lead", Email: "lead@example.com"})
		require.NoError(t, err)
		assert.NotEmpty(t, first.ID)

		_, err = storage.CreateRegistration(ctx, models.Registration{FullName: "Lead", Email: "lead@example.com"})
		assert.ErrorIs(t, err, ErrDuplicateEmail)

		_, err = storage.CreateRegistration(ctx, models.Registration{FullName: "Other", Email: "other@example.com"})
		require.NoError(t, err)

		list, err := storage.ListRegistrations(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "other@example.com", list[0].Email)
	})

	t.Run("trials are provisioned once", func(t *testing.T) {
		id := f.user(t, "student@example.com", "Stu")
		start := time.Now().UTC().Truncate(time.Second)

		trial, created, err := storage.ProvisionTrial(ctx, id, start, 20*24*time.Hour)
		require.NoError(t, err)
		assert.True(t, created)
		assert.WithinDuration(t, start.Add(20*24*time.Hour), trial.EndsAt, time.Second)

		again, created, err := storage.ProvisionTrial(ctx, id, start.Add(time.Hour), time.Hour)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, trial.ID, again.ID)
		assert.True(t, again.EndsAt.Equal(trial.EndsAt))

		list, err := storage.ListTrialsWithProfiles(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, list)
		assert.Equal(t, "Stu", list[0].FullName)

		reminders, err := storage.FindTrialsEndingBetween(ctx, trial.EndsAt.Add(-time.Minute), trial.EndsAt.Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, reminders, 1)
		assert.Equal(t, "student@example.com", reminders[0].Email)

		_, err = storage.GetTrialByUser(ctx, f.user(t, "none@example.com", "None"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("comments are owned by author", func(t *testing.T) {
		author := f.user(t, "author@example.com", "Author")
		other := f.user(t, "other-user@example.com", "Other")

		c, err := storage.CreateComment(ctx, models.LessonComment{UserID: author, LessonID: 3, Comment: "hello"})
		require.NoError(t, err)

		_, err = storage.UpdateComment(ctx, c.ID, other, "hijack")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, storage.DeleteComment(ctx, c.ID, other), ErrNotFound)

		updated, err := storage.UpdateComment(ctx, c.ID, author, "edited")
		require.NoError(t, err)
		assert.Equal(t, "edited", updated.Comment)

		list, err := storage.ListCommentsByLesson(ctx, 3)
		require.NoError(t, err)
		require.Len(t, list, 1)

		all, err := storage.ListAllComments(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)

		require.NoError(t, storage.DeleteComment(ctx, c.ID, author))
		assert.ErrorIs(t, storage.DeleteComment(ctx, c.ID, author), ErrNotFound)
	})

	t.Run("trial changes reach the change channel", func(t *testing.T) {
		hub := changefeed.NewHub(sl.Discard(), 8)
		defer hub.Close()
		listener := changefeed.NewPgListener(dsn, hub, 100*time.Millisecond, sl.Discard().With(slog.String("test", t.Name())))

		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go listener.Run(lctx)

		id := f.user(t, "watched@example.com", "Watched")
		sub, err := hub.Subscribe(lctx, "trials", changefeed.Eq("user_id", id))
		require.NoError(t, err)
		defer sub.Close()

		// слушатель подключается асинхронно, поэтому запись повторяется до первого события
		deadline := time.After(20 * time.Second)
		tick := time.NewTicker(500 * time.Millisecond)
		defer tick.Stop()
		for {
			_, err := storage.DB.ExecContext(ctx,
				`INSERT INTO trials (user_id, started_at, ends_at) VALUES ($1, now(), now() + interval '1 day')
				 ON CONFLICT (user_id) DO UPDATE SET updated_at = now()`, id)
			require.NoError(t, err)
			select {
			case ev := <-sub.Events():
				assert.Equal(t, "trials", ev.Table)
				var row models.Trial
				require.NoError(t, ev.DecodeRow(&row))
				assert.Equal(t, id, row.UserID)
				return
			case <-tick.C:
			case <-deadline:
				t.Fatal("no change event received")
			}
		}
	})

	t.Run("role changes reach the change channel", func(t *testing.T) {
		hub := changefeed.NewHub(sl.Discard(), 8)
		defer hub.Close()
		listener := changefeed.NewPgListener(dsn, hub, 100*time.Millisecond, sl.Discard().With(slog.String("test", t.Name())))

		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go listener.Run(lctx)

		id := f.user(t, "promoted@example.com", "Promoted")
		sub, err := hub.Subscribe(lctx, "user_roles", changefeed.Eq("user_id", id))
		require.NoError(t, err)
		defer sub.Close()

		deadline := time.After(20 * time.Second)
		tick := time.NewTicker(500 * time.Millisecond)
		defer tick.Stop()
		for {
			_, err := storage.DB.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id)
			require.NoError(t, err)
			require.NoError(t, storage.AssignRole(ctx, id, models.RoleAdmin))
			select {
			case ev := <-sub.Events():
				var row struct {
					UserID string      `json:"user_id"`
					Role   models.Role `json:"role"`
				}
				require.NoError(t, ev.DecodeRow(&row))
				assert.Equal(t, id, row.UserID)
				assert.Equal(t, models.RoleAdmin, row.Role)
				return
			case <-tick.C:
			case <-deadline:
				t.Fatal("no role change event received")
			}
		}
	})
}
