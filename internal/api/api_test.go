package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/formype/lax-qlpm/config"
	"github.com/formype/lax-qlpm/internal/db"
	"github.com/formype/lax-qlpm/internal/model"
	"github.com/formype/lax-qlpm/internal/session"
	"github.com/formype/lax-qlpm/internal/store"
)

var testLabs = []config.LabConfig{
	{ID: "lab-1", Name: "Lab 1", Count: 2},
	{ID: "lab-3", Name: "Lab 3", Count: 1},
}

type testEnv struct {
	router   *gin.Engine
	store    store.Store
	sessions *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:api_%s?mode=memory&cache=shared",
		strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))

	s := store.NewGormStore(gormDB, testLabs, zap.NewNop())
	sessions := session.NewManager(time.Minute)
	handler := NewHandler(s, sessions, nil, nil, zap.NewNop())
	handler.invalidateCache = func(string) {}

	r := gin.Default()
	api := r.Group("/api")
	{
		api.POST("/login", handler.Login)
		api.GET("/backend", handler.GetBackend)

		authed := api.Group("")
		authed.Use(handler.RequireSession)
		{
			authed.POST("/logout", handler.Logout)
			authed.GET("/me", handler.Me)
			authed.POST("/password", handler.ChangePassword)

			admin := authed.Group("")
			admin.Use(handler.RequireAdmin)
			{
				admin.GET("/users", handler.ListUsers)
				admin.POST("/users", handler.CreateUser)
				admin.PUT("/users/:username", handler.UpdateUser)
				admin.DELETE("/users/:username", handler.DeleteUser)
				admin.POST("/users/:username/password-reset", handler.ResetUserPassword)
			}
		}
	}

	return &testEnv{router: r, store: s, sessions: sessions}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// loginAdmin performs the bootstrap login and returns the session token.
func loginAdmin(t *testing.T, e *testEnv) string {
	t.Helper()
	w := e.do(http.MethodPost, "/api/login", "", gin.H{"username": "admin", "password": model.DefaultPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}
