package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	mw "github.com/takigawalab/indexapi/middleware"
)

var testKey = []byte("test-secret")

func signToken(t *testing.T, userID int64, isAdmin bool, expiresAt time.Time) string {
	t.Helper()
	claims := &mw.Claims{
		UserID:  userID,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func do(header string, middlewares ...echo.MiddlewareFunc) (*httptest.ResponseRecorder, int64, bool) {
	e := echo.New()
	var gotID int64
	var gotAdmin bool
	handler := func(c echo.Context) error {
		gotID = mw.UserID(c)
		gotAdmin, _ = c.Get(mw.CtxIsAdmin).(bool)
		return c.NoContent(http.StatusOK)
	}
	e.GET("/", handler, middlewares...)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, gotID, gotAdmin
}

func TestJWTRequired(t *testing.T) {
	token := signToken(t, 42, false, time.Now().Add(time.Hour))

	rec, id, _ := do(token, mw.JWT(testKey))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if id != 42 {
		t.Errorf("user id = %d, want 42", id)
	}

	rec, _, _ = do("", mw.JWT(testKey))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing header status = %d, want 401", rec.Code)
	}

	rec, _, _ = do("not-a-token", mw.JWT(testKey))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", rec.Code)
	}

	expired := signToken(t, 42, false, time.Now().Add(-time.Hour))
	rec, _, _ = do(expired, mw.JWT(testKey))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expired token status = %d, want 401", rec.Code)
	}
}

func TestOptionalJWT(t *testing.T) {
	rec, id, _ := do("", mw.OptionalJWT(testKey))
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous status = %d, want 200", rec.Code)
	}
	if id != 0 {
		t.Errorf("anonymous user id = %d, want 0", id)
	}

	token := signToken(t, 7, false, time.Now().Add(time.Hour))
	rec, id, _ = do(token, mw.OptionalJWT(testKey))
	if rec.Code != http.StatusOK || id != 7 {
		t.Errorf("status = %d, user id = %d; want 200, 7", rec.Code, id)
	}

	// A bad token downgrades to anonymous rather than failing.
	rec, id, _ = do("garbage", mw.OptionalJWT(testKey))
	if rec.Code != http.StatusOK || id != 0 {
		t.Errorf("bad token status = %d, user id = %d; want 200, 0", rec.Code, id)
	}
}

func TestAdminGate(t *testing.T) {
	admin := signToken(t, 1, true, time.Now().Add(time.Hour))
	rec, _, isAdmin := do(admin, mw.JWT(testKey), mw.Admin())
	if rec.Code != http.StatusOK || !isAdmin {
		t.Errorf("admin status = %d, isAdmin = %v; want 200, true", rec.Code, isAdmin)
	}

	user := signToken(t, 2, false, time.Now().Add(time.Hour))
	rec, _, _ = do(user, mw.JWT(testKey), mw.Admin())
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-admin status = %d, want 403", rec.Code)
	}
}
