package rest

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeev/usersvc/internal/common"
	"github.com/avdeev/usersvc/internal/dbx"
	"github.com/avdeev/usersvc/internal/logging"
	"github.com/avdeev/usersvc/internal/server/models"
	"github.com/avdeev/usersvc/internal/server/password"
	usersrepo "github.com/avdeev/usersvc/internal/server/repositories/users"
	"github.com/avdeev/usersvc/internal/server/services"
	"github.com/avdeev/usersvc/internal/server/token"
)

// fakeUsersRepo is an in-memory users.Repository keyed by email.
type fakeUsersRepo struct {
	byEmail map[string]*models.User
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byEmail: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if _, ok := f.byEmail[u.Email]; ok {
		return nil, common.ErrorAlreadyExists
	}
	cp := *u
	cp.CreatedAt = time.Now()
	f.byEmail[u.Email] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]*models.User, error) {
	result := []*models.User{}
	for _, u := range f.byEmail {
		cp := *u
		result = append(result, &cp)
	}
	return result, nil
}

func (f *fakeUsersRepo) Update(ctx context.Context, u *models.User) (*models.User, error) {
	for email, existing := range f.byEmail {
		if existing.ID == u.ID {
			if other, ok := f.byEmail[u.Email]; ok && other.ID != u.ID {
				return nil, common.ErrorAlreadyExists
			}
			existing.Email = u.Email
			existing.Name = u.Name
			delete(f.byEmail, email)
			f.byEmail[u.Email] = existing
			cp := *existing
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) Delete(ctx context.Context, id string) error {
	for email, u := range f.byEmail {
		if u.ID == id {
			delete(f.byEmail, email)
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeUsersRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	_, err := f.GetByID(ctx, id)
	if err != nil {
		return false, nil
	}
	return true, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.u }

func newTestServer(t *testing.T) (http.Handler, *fakeUsersRepo, *token.Manager) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// Handlers may open several transactions per test; accept them in any
	// order and do not assert completeness.
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 8; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	repo := newFakeUsersRepo()
	tokens := token.NewManager([]byte("test-secret"), time.Hour)
	hasher := password.NewBcryptHasher(4)
	us := services.NewUserService(db, &fakeRepoManager{u: repo}, hasher, tokens)

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := NewServer(":0", logger, us)

	return srv.Handler(), repo, tokens
}

func doJSON(t *testing.T, h http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func registerUser(t *testing.T, h http.Handler, email, name, pw string) AuthResponse {
	t.Helper()

	w := doJSON(t, h, http.MethodPost, "/api/auth/register",
		`{"email":"`+email+`","name":"`+name+`","password":"`+pw+`"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestRegister_ReturnsToken(t *testing.T) {
	h, repo, tokens := newTestServer(t)

	res := registerUser(t, h, "a@x.com", "A", "secret1")

	assert.Equal(t, "a@x.com", res.Email)
	assert.Equal(t, "A", res.Name)

	claims, err := tokens.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, repo.byEmail["a@x.com"].ID, claims.Subject)
}

func TestRegister_DuplicateEmail409(t *testing.T) {
	h, _, _ := newTestServer(t)

	registerUser(t, h, "a@x.com", "A", "secret1")

	w := doJSON(t, h, http.MethodPost, "/api/auth/register",
		`{"email":"a@x.com","name":"A","password":"secret1"}`, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegister_Validation400(t *testing.T) {
	h, _, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad email", `{"email":"not-an-email","name":"A","password":"secret1"}`},
		{"short password", `{"email":"a@x.com","name":"A","password":"abc"}`},
		{"missing name", `{"email":"a@x.com","password":"secret1"}`},
		{"not json", `email=a@x.com`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodPost, "/api/auth/register", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestLogin_SuccessAndFailure(t *testing.T) {
	h, _, _ := newTestServer(t)

	reg := registerUser(t, h, "a@x.com", "A", "secret1")

	w := doJSON(t, h, http.MethodPost, "/api/auth/login",
		`{"email":"a@x.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	var res AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, reg.Email, res.Email)
	assert.NotEmpty(t, res.Token)

	// Wrong password and unknown email must be indistinguishable.
	w1 := doJSON(t, h, http.MethodPost, "/api/auth/login",
		`{"email":"a@x.com","password":"wrong1"}`, "")
	w2 := doJSON(t, h, http.MethodPost, "/api/auth/login",
		`{"email":"nobody@x.com","password":"wrong1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w1.Code)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
	assert.JSONEq(t, w1.Body.String(), w2.Body.String())
}

func TestUsers_RequireAuth(t *testing.T) {
	h, _, _ := newTestServer(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/users"},
		{http.MethodPost, "/api/users"},
		{http.MethodGet, "/api/users/9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d"},
		{http.MethodDelete, "/api/users/9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d"},
	}

	for _, tt := range tests {
		w := doJSON(t, h, tt.method, tt.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tt.method, tt.path)
		assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
	}
}

func TestUsers_TamperedTokenRejectedUniformly(t *testing.T) {
	h, _, _ := newTestServer(t)

	reg := registerUser(t, h, "a@x.com", "A", "secret1")

	parts := strings.Split(reg.Token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + "AAAA" + parts[2][4:]

	w := doJSON(t, h, http.MethodGet, "/api/users", "", tampered)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
}

func TestUsers_CRUDFlow(t *testing.T) {
	h, repo, _ := newTestServer(t)

	reg := registerUser(t, h, "admin@x.com", "Admin", "secret1")
	bearer := reg.Token

	// Create.
	w := doJSON(t, h, http.MethodPost, "/api/users",
		`{"email":"b@x.com","name":"B","password":"secret2"}`, bearer)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "b@x.com", created.Email)
	assert.Equal(t, models.RoleUser, created.Role)

	// List contains both users, never the password hash.
	w = doJSON(t, h, http.MethodGet, "/api/users", "", bearer)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")

	var list []UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	// Get.
	w = doJSON(t, h, http.MethodGet, "/api/users/"+created.ID, "", bearer)
	require.Equal(t, http.StatusOK, w.Code)

	// Update.
	w = doJSON(t, h, http.MethodPut, "/api/users/"+created.ID,
		`{"email":"b2@x.com","name":"B2"}`, bearer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "b2@x.com", updated.Email)
	assert.Equal(t, "B2", updated.Name)

	// Delete.
	w = doJSON(t, h, http.MethodDelete, "/api/users/"+created.ID, "", bearer)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Nil(t, repo.byEmail["b2@x.com"])

	// Gone now.
	w = doJSON(t, h, http.MethodGet, "/api/users/"+created.ID, "", bearer)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUsers_BadIDParam(t *testing.T) {
	h, _, _ := newTestServer(t)

	reg := registerUser(t, h, "a@x.com", "A", "secret1")

	w := doJSON(t, h, http.MethodGet, "/api/users/not-a-uuid", "", reg.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPing(t *testing.T) {
	h, _, _ := newTestServer(t)

	w := doJSON(t, h, http.MethodGet, "/ping", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
