package seed_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/d9705996/licenca/internal/model"
	"github.com/d9705996/licenca/internal/seed"
	"github.com/d9705996/licenca/internal/store"
	"github.com/d9705996/licenca/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newNullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func processTypes(t *testing.T, c store.Client, orgID string) []model.ProcessType {
	t.Helper()
	var out []model.ProcessType
	require.NoError(t, c.Select(context.Background(), model.TableProcessTypes, &out, store.Query{
		Filters: []store.Filter{store.Eq("organization_id", orgID)},
	}))
	return out
}

func TestCatalog_HasTwentyNineEntries(t *testing.T) {
	cat := seed.Catalog()
	require.Len(t, cat, 29)
	codes := map[string]bool{}
	for _, e := range cat {
		assert.NotEmpty(t, e.Name)
		assert.NotEmpty(t, e.Category)
		codes[e.Code] = true
	}
	assert.Len(t, codes, 29)
	assert.True(t, codes["LP"])
	assert.True(t, codes["LO"])
}

func TestCatalog_ReturnsCopy(t *testing.T) {
	cat := seed.Catalog()
	cat[0].Name = "changed"
	assert.NotEqual(t, "changed", seed.Catalog()[0].Name)
}

func TestEnsureDefaults_Idempotent(t *testing.T) {
	base, _ := storetest.Open(t)
	c := storetest.NewFaulty(base)
	s := seed.NewSeeder(c, newNullLogger())
	ctx := context.Background()

	require.NoError(t, s.EnsureDefaults(ctx, "org-x", "user-1"))
	require.NoError(t, s.EnsureDefaults(ctx, "org-x", "user-1"))

	inserts := c.Calls("insert")
	require.Len(t, inserts, 1)
	rows, ok := inserts[0].Rows.(*[]model.ProcessType)
	require.True(t, ok)
	assert.Len(t, *rows, 29)
	assert.Len(t, processTypes(t, base, "org-x"), 29)
}

func TestEnsureDefaults_StampsRows(t *testing.T) {
	c, _ := storetest.Open(t)
	s := seed.NewSeeder(c, newNullLogger())

	require.NoError(t, s.EnsureDefaults(context.Background(), "org-x", "user-1"))
	for _, pt := range processTypes(t, c, "org-x") {
		require.NotNil(t, pt.UserID)
		require.NotNil(t, pt.CreatedBy)
		assert.Equal(t, "user-1", *pt.UserID)
		assert.Equal(t, "user-1", *pt.CreatedBy)
		assert.True(t, pt.IsDefault)
		assert.True(t, pt.Active)
		assert.NotEmpty(t, pt.ID)
	}
}

func TestEnsureDefaults_NoUser(t *testing.T) {
	c, _ := storetest.Open(t)
	s := seed.NewSeeder(c, newNullLogger())

	require.NoError(t, s.EnsureDefaults(context.Background(), "org-x", ""))
	rows := processTypes(t, c, "org-x")
	require.Len(t, rows, 29)
	assert.Nil(t, rows[0].UserID)
	assert.Nil(t, rows[0].CreatedBy)
}

func TestEnsureDefaults_EmptyOrgIsNoop(t *testing.T) {
	base, _ := storetest.Open(t)
	c := storetest.NewFaulty(base)
	s := seed.NewSeeder(c, newNullLogger())

	require.NoError(t, s.EnsureDefaults(context.Background(), "", "user-1"))
	assert.Empty(t, c.Calls(""))
}

func TestEnsureDefaults_CustomizedCatalogUntouched(t *testing.T) {
	base, _ := storetest.Open(t)
	ctx := context.Background()
	custom := []model.ProcessType{{OrganizationID: "org-x", Name: "Vistoria", Active: true}}
	require.NoError(t, base.Insert(ctx, model.TableProcessTypes, &custom))

	c := storetest.NewFaulty(base)
	require.NoError(t, seed.NewSeeder(c, newNullLogger()).EnsureDefaults(ctx, "org-x", "user-1"))
	assert.Empty(t, c.Calls("insert"))
	assert.Len(t, processTypes(t, base, "org-x"), 1)
}

func TestEnsureDefaults_IsolatedPerOrganization(t *testing.T) {
	base, _ := storetest.Open(t)
	ctx := context.Background()
	other := []model.ProcessType{{OrganizationID: "org-y", Name: "Vistoria", Active: true}}
	require.NoError(t, base.Insert(ctx, model.TableProcessTypes, &other))

	c := storetest.NewFaulty(base)
	require.NoError(t, seed.NewSeeder(c, newNullLogger()).EnsureDefaults(ctx, "org-x", "user-1"))

	for _, call := range c.Calls("count") {
		assert.Equal(t, []store.Filter{store.Eq("organization_id", "org-x")}, call.Filters)
	}
	for _, call := range c.Calls("insert") {
		for _, row := range *call.Rows.(*[]model.ProcessType) {
			assert.Equal(t, "org-x", row.OrganizationID)
		}
	}
	assert.Empty(t, c.Calls("update"))
	assert.Empty(t, c.Calls("delete"))

	y := processTypes(t, base, "org-y")
	require.Len(t, y, 1)
	assert.Equal(t, "Vistoria", y[0].Name)
}

func TestEnsureDefaults_CountFailurePropagates(t *testing.T) {
	base, _ := storetest.Open(t)
	c := storetest.NewFaulty(base)
	boom := errors.New("store unavailable")
	c.Fail("count", model.TableProcessTypes, boom)

	err := seed.NewSeeder(c, newNullLogger()).EnsureDefaults(context.Background(), "org-x", "user-1")
	require.ErrorIs(t, err, boom)
	assert.Empty(t, c.Calls("insert"))
}

func TestEnsureDefaults_InsertFailurePropagates(t *testing.T) {
	base, _ := storetest.Open(t)
	c := storetest.NewFaulty(base)
	boom := errors.New("write rejected")
	c.Fail("insert", model.TableProcessTypes, boom)

	err := seed.NewSeeder(c, newNullLogger()).EnsureDefaults(context.Background(), "org-x", "user-1")
	require.ErrorIs(t, err, boom)
	assert.Empty(t, processTypes(t, base, "org-x"))

	// The next attempt seeds once the store recovers.
	c.Fail("insert", model.TableProcessTypes, nil)
	require.NoError(t, seed.NewSeeder(c, newNullLogger()).EnsureDefaults(context.Background(), "org-x", "user-1"))
	assert.Len(t, processTypes(t, base, "org-x"), 29)
}

func TestEnsureAdmin_CreatesOnce(t *testing.T) {
	c, _ := storetest.Open(t)
	ctx := context.Background()
	opts := seed.AdminOptions{Email: "custom@example.com", Password: "my-supplied-password"}

	require.NoError(t, seed.EnsureAdmin(ctx, c, opts, newNullLogger()))
	require.NoError(t, seed.EnsureAdmin(ctx, c, opts, newNullLogger()))

	var users []model.User
	require.NoError(t, c.Select(ctx, model.TableUsers, &users, store.Query{}))
	require.Len(t, users, 1)
	assert.Equal(t, "custom@example.com", users[0].Email)
	assert.Equal(t, model.StringSlice{"Admin"}, users[0].Roles)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].PasswordHash), []byte("my-supplied-password")))
}

func TestEnsureAdmin_CountFailure(t *testing.T) {
	base, _ := storetest.Open(t)
	c := storetest.NewFaulty(base)
	c.Fail("count", model.TableUsers, errors.New("down"))

	err := seed.EnsureAdmin(context.Background(), c, seed.AdminOptions{Email: "a@b.c", Password: "x"}, newNullLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count users")
}

type requestIDKey struct{}

// ctxRecorder keeps the request id found in the context of each error record.
type ctxRecorder struct {
	slog.Handler
	ids []string
}

func (h *ctxRecorder) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		id, _ := ctx.Value(requestIDKey{}).(string)
		h.ids = append(h.ids, id)
	}
	return nil
}

func TestEnsureDefaults_FailureLoggedWithContext(t *testing.T) {
	base, _ := storetest.Open(t)
	c := storetest.NewFaulty(base)
	c.Fail("count", model.TableProcessTypes, errors.New("store unavailable"))

	rec := &ctxRecorder{Handler: slog.NewTextHandler(&bytes.Buffer{}, nil)}
	ctx := context.WithValue(context.Background(), requestIDKey{}, "req-42")

	require.Error(t, seed.NewSeeder(c, slog.New(rec)).EnsureDefaults(ctx, "org-x", "user-1"))
	assert.Equal(t, []string{"req-42"}, rec.ids)
}
