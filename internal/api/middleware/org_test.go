package middleware_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/d9705996/licenca/internal/api/middleware"
	"github.com/d9705996/licenca/internal/model"
	"github.com/d9705996/licenca/internal/orgctx"
	"github.com/d9705996/licenca/internal/prefs"
	"github.com/d9705996/licenca/internal/seed"
	"github.com/d9705996/licenca/internal/store"
	"github.com/d9705996/licenca/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessions(t *testing.T) (*middleware.Sessions, *store.GormClient) {
	t.Helper()
	client, _ := storetest.Open(t)
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return &middleware.Sessions{
		Resolver: orgctx.NewResolver(client, seed.NewSeeder(client, log), log),
		Signer:   prefs.NewSigner(secret, false),
	}, client
}

func scopedChain(sessions *middleware.Sessions, next http.HandlerFunc) http.Handler {
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return middleware.RequireAuth(secret)(middleware.RequireActiveOrg(sessions, log)(next))
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var doc struct {
		Errors []struct {
			Code string `json:"code"`
		} `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&doc))
	require.NotEmpty(t, doc.Errors)
	return doc.Errors[0].Code
}

func TestRequireActiveOrg_NoOrganizations(t *testing.T) {
	sessions, _ := newSessions(t)
	chain := scopedChain(sessions, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without an organization")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/processes", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, []string{"Viewer"}))
	w := httptest.NewRecorder()
	chain.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "onboarding_required", errorCode(t, w))
}

func TestRequireActiveOrg_InjectsOrganization(t *testing.T) {
	sessions, client := newSessions(t)
	org := model.Organization{Name: "Acme", Slug: "acme", OwnerID: "user-1", CreatedAt: time.Now().UTC()}
	require.NoError(t, client.Insert(t.Context(), model.TableOrganizations, &org))

	var got model.Organization
	var sess *orgctx.Session
	chain := scopedChain(sessions, func(w http.ResponseWriter, r *http.Request) {
		got, _ = middleware.ActiveOrgFromContext(r.Context())
		sess = middleware.SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/processes", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, []string{"Viewer"}))
	w := httptest.NewRecorder()
	chain.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, org.ID, got.ID)
	require.NotNil(t, sess)
	assert.Equal(t, org.ID, sess.ActiveID())
	assert.NotEmpty(t, w.Result().Cookies(), "the active organization is remembered in the preference cookie")

	n, err := client.Count(t.Context(), model.TableProcessTypes, store.Eq("organization_id", org.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(len(seed.Catalog())), n)
}

func TestRequireActiveOrg_WithoutClaims(t *testing.T) {
	sessions, _ := newSessions(t)
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := middleware.RequireActiveOrg(sessions, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without claims")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/processes", http.NoBody))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestActiveOrgFromContext_Missing(t *testing.T) {
	_, ok := middleware.ActiveOrgFromContext(t.Context())
	assert.False(t, ok)
	assert.Nil(t, middleware.SessionFromContext(t.Context()))
}

func TestRequireActiveOrg_SeedsCatalogOnlyOnce(t *testing.T) {
	base, _ := storetest.Open(t)
	faulty := storetest.NewFaulty(base)
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	sessions := &middleware.Sessions{
		Resolver: orgctx.NewResolver(faulty, seed.NewSeeder(faulty, log), log),
		Signer:   prefs.NewSigner(secret, false),
	}
	org := model.Organization{Name: "Acme", Slug: "acme", OwnerID: "user-1", CreatedAt: time.Now().UTC()}
	require.NoError(t, base.Insert(t.Context(), model.TableOrganizations, &org))

	chain := scopedChain(sessions, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/processes", http.NoBody)
		req.Header.Set("Authorization", "Bearer "+issueToken(t, []string{"Viewer"}))
		w := httptest.NewRecorder()
		chain.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}

	var inserts int
	for _, c := range faulty.Calls("insert") {
		if c.Table == model.TableProcessTypes {
			inserts++
		}
	}
	assert.Equal(t, 1, inserts)
	n, err := base.Count(t.Context(), model.TableProcessTypes, store.Eq("organization_id", org.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(len(seed.Catalog())), n)
}
