package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"coyote/cmd/internal/session"

	"github.com/golang-jwt/jwt/v5"
)

// fakeBackend serves the subset of the API the CLI tests drive.
type fakeBackend struct {
	srv   *httptest.Server
	token string
	me    map[string]any

	mu    sync.Mutex
	calls map[string]int
}

func newFakeBackend(t *testing.T, token string, me map[string]any) *fakeBackend {
	t.Helper()

	fb := &fakeBackend{token: token, me: me, calls: make(map[string]int)}
	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			fb.mu.Lock()
			fb.calls[pattern]++
			fb.mu.Unlock()
			h(w, r)
		})
	}
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+fb.token {
				reply(w, http.StatusUnauthorized, map[string]string{"message": "Token inválido"})
				return
			}
			h(w, r)
		}
	}

	route("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			ControlNumber string `json:"controlNumber"`
			Password      string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Password != "pw" {
			reply(w, http.StatusBadRequest, map[string]string{"message": "Credenciales inválidas"})
			return
		}
		reply(w, http.StatusOK, map[string]string{"token": fb.token})
	})
	route("GET /api/users/me", authed(func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, fb.me)
	}))
	route("GET /api/admin/dropouts", authed(func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, map[string]any{"dropouts": []any{
			map[string]any{"id": 1, "user_id": 7, "control_number": "21940001", "dropout_type": "Temporal", "dropout_date": "2024-01-15"},
		}})
	}))
	route("DELETE /api/admin/users/delete/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]string{"message": "Usuario " + r.PathValue("id") + " eliminado"})
	}))

	fb.srv = httptest.NewServer(mux)
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) count(pattern string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[pattern]
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// cli runs Main against fb with a file token store under a temp dir.
type cli struct {
	t         *testing.T
	fb        *fakeBackend
	tokenFile string
}

func newCLI(t *testing.T, fb *fakeBackend) *cli {
	t.Helper()

	t.Chdir(t.TempDir())
	for _, k := range []string{
		"COYOTE_ENV_FILE", "COYOTE_PASSWORD", "COYOTE_METRICS_TEXTFILE", "COYOTE_API_TIMEOUT",
		"COYOTE_REQUIRE_TOKEN_FINGERPRINT_KEY", "COYOTE_LOG_FORMAT", "COYOTE_TOKEN_STORE",
	} {
		t.Setenv(k, "")
	}
	return &cli{t: t, fb: fb, tokenFile: filepath.Join(t.TempDir(), "session.json")}
}

func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()

	global := []string{"-api", c.fb.srv.URL + "/api", "-token-store", "file", "-token-file", c.tokenFile, "-log-level", "error"}
	var out, errOut bytes.Buffer
	err := Main(context.Background(), append(global, args...), strings.NewReader(stdin), &out, &errOut)
	return out.String(), err
}

func (c *cli) storedToken() (string, bool) {
	c.t.Helper()

	st, err := session.NewFileTokenStore(c.tokenFile)
	if err != nil {
		c.t.Fatalf("open token file: %v", err)
	}
	tok, ok, err := st.Load(context.Background())
	if err != nil {
		c.t.Fatalf("load token: %v", err)
	}
	return tok, ok
}

func decodeOutput(t *testing.T, out string) map[string]any {
	t.Helper()

	var m map[string]any
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, out)
	}
	return m
}

var adminMe = map[string]any{"id": 1, "controlNumber": "ADM1", "fullName": "Admin Uno", "role": "admin"}

func TestCLI_AdminFlow(t *testing.T) {
	fb := newFakeBackend(t, "tok-admin", adminMe)
	c := newCLI(t, fb)

	out, err := c.run("", "login", "-password", "pw", "adm1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	m := decodeOutput(t, out)
	if m["state"] != "authenticated" {
		t.Fatalf("login output: %v", m)
	}
	if tok, ok := c.storedToken(); !ok || tok != "tok-admin" {
		t.Fatalf("stored token=%q ok=%v", tok, ok)
	}

	out, err = c.run("", "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	user, _ := decodeOutput(t, out)["user"].(map[string]any)
	if user["role"] != "admin" || user["controlNumber"] != "ADM1" {
		t.Fatalf("whoami user: %v", user)
	}

	out, err = c.run("", "dropouts", "list")
	if err != nil {
		t.Fatalf("dropouts list: %v", err)
	}
	if ds, _ := decodeOutput(t, out)["dropouts"].([]any); len(ds) != 1 {
		t.Fatalf("dropouts list output: %q", out)
	}

	if _, err := c.run("", "users", "delete", "1"); !errors.Is(err, ErrSelfDelete) {
		t.Fatalf("expected ErrSelfDelete, got %v", err)
	}
	if fb.count("DELETE /api/admin/users/delete/{id}") != 0 {
		t.Fatalf("self delete must not reach the backend")
	}
	out, err = c.run("", "users", "delete", "9")
	if err != nil {
		t.Fatalf("users delete: %v", err)
	}
	if decodeOutput(t, out)["message"] != "Usuario 9 eliminado" {
		t.Fatalf("users delete output: %q", out)
	}

	out, err = c.run("", "logout")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if decodeOutput(t, out)["state"] != "unauthenticated" {
		t.Fatalf("logout output: %q", out)
	}
	if _, ok := c.storedToken(); ok {
		t.Fatalf("token must be gone after logout")
	}

	_, err = c.run("", "dropouts", "list")
	if !errors.Is(err, session.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if !strings.Contains(Describe(err), "not signed in") {
		t.Fatalf("Describe=%q", Describe(err))
	}
}

func TestCLI_StudentCannotRunAdminCommands(t *testing.T) {
	fb := newFakeBackend(t, "tok-student", map[string]any{"id": 7, "controlNumber": "21940001", "fullName": "Ana", "role": "student"})
	c := newCLI(t, fb)

	if _, err := c.run("pw\n", "login", "21940001"); err != nil {
		t.Fatalf("login with password on stdin: %v", err)
	}

	_, err := c.run("", "dropouts", "list")
	if !errors.Is(err, session.ErrForbiddenRole) {
		t.Fatalf("expected ErrForbiddenRole, got %v", err)
	}
	if fb.count("GET /api/admin/dropouts") != 0 {
		t.Fatalf("admin endpoint must not be called")
	}
	if ExitCode(err) != 1 {
		t.Fatalf("ExitCode=%d", ExitCode(err))
	}
}

func TestCLI_FailedLoginKeepsNoToken(t *testing.T) {
	fb := newFakeBackend(t, "tok", adminMe)
	c := newCLI(t, fb)

	_, err := c.run("", "login", "-password", "bad", "ADM1")
	if err == nil {
		t.Fatalf("expected login failure")
	}
	if Describe(err) != "Credenciales inválidas" {
		t.Fatalf("Describe=%q", Describe(err))
	}
	if _, ok := c.storedToken(); ok {
		t.Fatalf("no token may be stored after a failed login")
	}
}

func TestCLI_RevokedTokenIsDroppedOnStartup(t *testing.T) {
	fb := newFakeBackend(t, "tok-new", adminMe)
	c := newCLI(t, fb)

	st, err := session.NewFileTokenStore(c.tokenFile)
	if err != nil {
		t.Fatalf("NewFileTokenStore: %v", err)
	}
	if err := st.Save(context.Background(), "tok-old"); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	out, err := c.run("", "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	m := decodeOutput(t, out)
	if m["state"] != "unauthenticated" || m["user"] != nil {
		t.Fatalf("whoami output: %v", m)
	}
	if _, ok := c.storedToken(); ok {
		t.Fatalf("revoked token must be deleted")
	}
}

func TestCLI_StatusInspectsToken(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":   1,
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	fb := newFakeBackend(t, signed, adminMe)
	c := newCLI(t, fb)
	if _, err := c.run("", "login", "-password", "pw", "ADM1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	out, err := c.run("", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	m := decodeOutput(t, out)
	if m["token"] != true || m["state"] != "authenticated" {
		t.Fatalf("status output: %v", m)
	}
	if fp, _ := m["fingerprint"].(string); len(fp) != 12 || strings.Contains(signed, fp) {
		t.Fatalf("fingerprint=%q", fp)
	}
	claims, _ := m["claims"].(map[string]any)
	if claims["subject"] != "1" || claims["role"] != "admin" {
		t.Fatalf("claims=%v", claims)
	}
	if _, expired := m["expired"]; expired {
		t.Fatalf("fresh token reported expired: %v", m)
	}
}

func TestCLI_MetricsTextfile(t *testing.T) {
	fb := newFakeBackend(t, "tok", adminMe)
	c := newCLI(t, fb)
	path := filepath.Join(t.TempDir(), "coyote.prom")
	t.Setenv("COYOTE_METRICS_TEXTFILE", path)

	if _, err := c.run("", "login", "-password", "pw", "ADM1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	text := string(b)
	if !strings.Contains(text, `coyote_client_requests_total{class="2xx",op="auth.login"} 1`) {
		t.Fatalf("textfile missing login counter:\n%s", text)
	}
}

func TestCLI_Usage(t *testing.T) {
	fb := newFakeBackend(t, "tok", adminMe)
	c := newCLI(t, fb)

	cases := [][]string{
		{},
		{"frobnicate"},
		{"lookup"},
		{"lookup", "a", "b"},
		{"login", "-bogus"},
	}
	for _, args := range cases {
		_, err := c.run("", args...)
		if !errors.Is(err, ErrUsage) {
			t.Fatalf("%v: expected ErrUsage, got %v", args, err)
		}
		if ExitCode(err) != 2 {
			t.Fatalf("%v: ExitCode=%d", args, ExitCode(err))
		}
	}
	if !strings.Contains(Usage(), "dropouts register") {
		t.Fatalf("usage text incomplete:\n%s", Usage())
	}
}
