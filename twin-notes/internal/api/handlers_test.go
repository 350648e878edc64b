package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/pkg/admin"
	"github.com/bouvet-sqad/flowcheck/pkg/testutil"
	"github.com/bouvet-sqad/flowcheck/pkg/twincore"
	"github.com/bouvet-sqad/flowcheck/twin-notes/internal/api"
	"github.com/bouvet-sqad/flowcheck/twin-notes/internal/store"
)

const base = "/notes/api"

func setupNotes(t *testing.T) (*store.MemoryStore, *testutil.TwinClient) {
	t.Helper()
	memStore := store.New()
	twin := twincore.New(&twincore.Config{Name: "twin-notes-test"}, zap.NewNop())
	tokens, err := api.NewTokenManager(memStore.Clock.Now)
	if err != nil {
		t.Fatalf("failed to create token manager: %v", err)
	}
	api.NewHandler(memStore, twin.Middleware(), tokens, nil).Routes(twin.Router)
	admin.NewHandler(memStore, twin.Middleware(), memStore.Clock).Routes(twin.Router)

	srv := httptest.NewServer(twin.Router)
	t.Cleanup(srv.Close)
	return memStore, testutil.NewTwinClient(t, srv)
}

// registerAndLogin creates an account and returns a client carrying its token.
func registerAndLogin(t *testing.T, tc *testutil.TwinClient, email string) *testutil.TwinClient {
	t.Helper()
	tc.Post(base+"/users/register", map[string]string{
		"name": "Tom Testman", "email": email, "password": "validpassword",
	}).AssertStatus(http.StatusCreated)

	var login struct {
		Token string `json:"token"`
	}
	tc.Post(base+"/users/login", map[string]string{
		"email": email, "password": "validpassword",
	}).AssertStatus(http.StatusOK).Data(&login)
	if login.Token == "" {
		t.Fatal("expected token in login response")
	}
	return tc.WithToken(login.Token)
}

// --- Health ---

func TestHealthCheck(t *testing.T) {
	_, tc := setupNotes(t)
	env := tc.Get(base + "/health-check").AssertStatus(http.StatusOK).Envelope()
	if !env.Success || env.Status != 200 || env.Message != "Notes API is Running" {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

// --- Users ---

func TestRegister(t *testing.T) {
	_, tc := setupNotes(t)

	resp := tc.Post(base+"/users/register", map[string]string{
		"name": "Tom Testman", "email": "tom@example.com", "password": "validpassword",
	}).AssertStatus(http.StatusCreated).AssertMessage("User account created successfully")

	var user map[string]any
	resp.Data(&user)
	if user["email"] != "tom@example.com" || user["name"] != "Tom Testman" || user["id"] == "" {
		t.Errorf("unexpected user: %+v", user)
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Error("password hash must not be rendered")
	}

	tc.Post(base+"/users/register", map[string]string{
		"name": "Tom Again", "email": "TOM@example.com", "password": "validpassword",
	}).AssertStatus(http.StatusConflict).AssertSuccess(false)
}

func TestRegisterValidation(t *testing.T) {
	_, tc := setupNotes(t)

	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{"short name", map[string]string{"name": "Tom", "email": "a@b.io", "password": "secret1"}, "User name must be between 4 and 30 characters"},
		{"bad email", map[string]string{"name": "Tom Testman", "email": "nope", "password": "secret1"}, "A valid email address is required"},
		{"short password", map[string]string{"name": "Tom Testman", "email": "a@b.io", "password": "123"}, "Password must be between 6 and 30 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc.Post(base+"/users/register", tt.body).
				AssertStatus(http.StatusBadRequest).
				AssertMessage(tt.want)
		})
	}
}

func TestLoginInvalid(t *testing.T) {
	_, tc := setupNotes(t)

	env := tc.Post(base+"/users/login", map[string]string{
		"email": "invalid.user@example.com", "password": "invalidpassword",
	}).AssertStatus(http.StatusUnauthorized).Envelope()
	if env.Success || env.Status != 401 || env.Message != "Incorrect email address or password" {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestLoginAcceptsForm(t *testing.T) {
	_, tc := setupNotes(t)
	tc.PostForm(base+"/users/register", map[string]string{
		"name": "Form User", "email": "form@example.com", "password": "validpassword",
	}).AssertStatus(http.StatusCreated)

	tc.PostForm(base+"/users/login", map[string]string{
		"email": "form@example.com", "password": "validpassword",
	}).AssertStatus(http.StatusOK).AssertMessage("Login successful")
}

func TestUnauthorized(t *testing.T) {
	_, tc := setupNotes(t)

	tc.Get(base+"/users/profile").
		AssertStatus(http.StatusUnauthorized).
		AssertMessage("Access token is not valid or has expired, you will need to login")
	tc.WithToken("not-a-token").Get(base + "/users/profile").AssertStatus(http.StatusUnauthorized)
}

func TestProfileLifecycle(t *testing.T) {
	_, tc := setupNotes(t)
	authed := registerAndLogin(t, tc, "tom@example.com")

	var before map[string]any
	authed.Get(base+"/users/profile").AssertStatus(http.StatusOK).AssertMessage("Profile successful").Data(&before)
	if _, ok := before["phone"]; ok {
		t.Error("phone must be absent before it is set")
	}
	if _, ok := before["company"]; ok {
		t.Error("company must be absent before it is set")
	}

	var after map[string]any
	authed.PatchForm(base+"/users/profile", map[string]string{
		"name": "Tom Testman Updated", "phone": "0123456789", "company": "BOUVET ASA",
	}).AssertStatus(http.StatusOK).AssertMessage("Profile updated successful").Data(&after)
	if after["name"] != "Tom Testman Updated" || after["phone"] != "0123456789" || after["company"] != "BOUVET ASA" {
		t.Errorf("unexpected profile: %+v", after)
	}
	if after["id"] != before["id"] {
		t.Errorf("profile id changed from %v to %v", before["id"], after["id"])
	}

	authed.Patch(base+"/users/profile", map[string]string{"name": "Tom Testman", "phone": "12"}).
		AssertStatus(http.StatusBadRequest).
		AssertMessage("Phone number should be between 8 and 20 digits")
}

func TestLogoutRevokesToken(t *testing.T) {
	_, tc := setupNotes(t)
	authed := registerAndLogin(t, tc, "tom@example.com")

	authed.Delete(base + "/users/logout").AssertStatus(http.StatusOK)
	authed.Get(base + "/users/profile").AssertStatus(http.StatusUnauthorized)
}

func TestTokenExpiresWithClock(t *testing.T) {
	memStore, tc := setupNotes(t)
	authed := registerAndLogin(t, tc, "tom@example.com")

	authed.Get(base + "/users/profile").AssertStatus(http.StatusOK)
	memStore.Clock.Advance(api.TokenTTL + time.Minute)
	authed.Get(base + "/users/profile").AssertStatus(http.StatusUnauthorized)
}

func TestDeleteAccount(t *testing.T) {
	memStore, tc := setupNotes(t)
	authed := registerAndLogin(t, tc, "tom@example.com")
	authed.Post(base+"/notes", map[string]string{
		"title": "Groceries", "description": "Milk and bread", "category": "Home",
	}).AssertStatus(http.StatusOK)

	authed.Delete(base+"/users/delete-account").
		AssertStatus(http.StatusOK).
		AssertMessage("Account successfully deleted")

	if memStore.Users.Count() != 0 || memStore.Notes.Count() != 0 {
		t.Errorf("expected user and notes removed, got %d users %d notes", memStore.Users.Count(), memStore.Notes.Count())
	}
	authed.Get(base + "/users/profile").AssertStatus(http.StatusUnauthorized)
	tc.Post(base+"/users/login", map[string]string{
		"email": "tom@example.com", "password": "validpassword",
	}).AssertStatus(http.StatusUnauthorized)
}

// --- Notes ---

func TestNoteLifecycle(t *testing.T) {
	_, tc := setupNotes(t)
	authed := registerAndLogin(t, tc, "tom@example.com")

	var note struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Completed   bool   `json:"completed"`
	}
	authed.Post(base+"/notes", map[string]string{
		"title": "Quarterly report", "description": "Draft the numbers", "category": "Work",
	}).AssertStatus(http.StatusOK).AssertMessage("Note successfully created").Data(&note)
	if note.Title != "Quarterly report" || note.Category != "Work" || note.Completed {
		t.Errorf("unexpected note: %+v", note)
	}

	path := base + "/notes/" + note.ID
	authed.Get(path).AssertStatus(http.StatusOK).AssertMessage("Note successfully retrieved")

	authed.Patch(path, map[string]bool{"completed": true}).
		AssertStatus(http.StatusOK).
		AssertMessage("Note successfully Updated").
		Data(&note)
	if !note.Completed {
		t.Error("expected note completed")
	}

	authed.Patch(path, map[string]string{"completed": "maybe"}).
		AssertStatus(http.StatusBadRequest).
		AssertMessage("Note completed status must be boolean")

	var list []map[string]any
	authed.Get(base+"/notes").AssertStatus(http.StatusOK).Data(&list)
	if len(list) != 1 {
		t.Errorf("expected 1 note, got %d", len(list))
	}

	authed.Delete(path).AssertStatus(http.StatusOK).AssertMessage("Note successfully deleted")
	authed.Get(path).
		AssertStatus(http.StatusNotFound).
		AssertMessage("No note was found with the provided ID, Maybe it was deleted")
}

func TestReplaceNote(t *testing.T) {
	_, tc := setupNotes(t)
	authed := registerAndLogin(t, tc, "tom@example.com")

	var note map[string]any
	authed.Post(base+"/notes", map[string]string{
		"title": "Groceries", "description": "Milk and bread", "category": "Home",
	}).Data(&note)
	path := base + "/notes/" + note["id"].(string)

	authed.Put(path, map[string]any{
		"title": "Groceries v2", "description": "Milk only", "category": "Personal", "completed": true,
	}).AssertStatus(http.StatusOK).Data(&note)
	if note["title"] != "Groceries v2" || note["category"] != "Personal" || note["completed"] != true {
		t.Errorf("unexpected note: %+v", note)
	}

	authed.Put(path, map[string]any{"title": "Groceries v3", "description": "Milk only", "category": "Personal"}).
		AssertStatus(http.StatusBadRequest)
}

func TestNoteValidation(t *testing.T) {
	_, tc := setupNotes(t)
	authed := registerAndLogin(t, tc, "tom@example.com")

	authed.Post(base+"/notes", map[string]string{"title": "ok", "description": "long enough", "category": "Work"}).
		AssertStatus(http.StatusBadRequest).
		AssertMessage("Title must be between 4 and 100 characters")
	authed.Post(base+"/notes", map[string]string{"title": "Title", "description": "long enough", "category": "Errands"}).
		AssertStatus(http.StatusBadRequest).
		AssertMessage("Category must be one of the categories: Home, Work, Personal")
	authed.Get(base+"/notes/not-an-id").
		AssertStatus(http.StatusBadRequest).
		AssertMessage("Note ID must be a valid ID")
}

func TestNotesAreScopedToOwner(t *testing.T) {
	_, tc := setupNotes(t)
	alice := registerAndLogin(t, tc, "alice@example.com")
	bob := registerAndLogin(t, tc, "bob@example.com")

	var note map[string]any
	alice.Post(base+"/notes", map[string]string{
		"title": "Private", "description": "Alice only", "category": "Personal",
	}).Data(&note)
	path := base + "/notes/" + note["id"].(string)

	bob.Get(path).AssertStatus(http.StatusNotFound)
	bob.Patch(path, map[string]bool{"completed": true}).AssertStatus(http.StatusNotFound)
	bob.Delete(path).AssertStatus(http.StatusNotFound)

	var list []map[string]any
	bob.Get(base + "/notes").Data(&list)
	if len(list) != 0 {
		t.Errorf("expected bob to see no notes, got %d", len(list))
	}
}

// --- Admin ---

func TestAdminResetAndFaults(t *testing.T) {
	memStore, tc := setupNotes(t)
	registerAndLogin(t, tc, "tom@example.com")
	ac := testutil.NewAdminClient(tc)

	ac.InjectFault(base+"/users/login", twincore.FaultConfig{StatusCode: 503, Message: "maintenance"}).
		AssertStatus(http.StatusOK)
	tc.Post(base+"/users/login", map[string]string{"email": "tom@example.com", "password": "validpassword"}).
		AssertStatus(http.StatusServiceUnavailable).
		AssertMessage("maintenance")

	ac.Reset().AssertStatus(http.StatusOK)
	if memStore.Users.Count() != 0 {
		t.Error("expected users cleared by reset")
	}
	tc.Post(base+"/users/login", map[string]string{"email": "tom@example.com", "password": "validpassword"}).
		AssertStatus(http.StatusUnauthorized)
}

func TestAdminStateRoundTrip(t *testing.T) {
	memStore, tc := setupNotes(t)
	registerAndLogin(t, tc, "tom@example.com")
	ac := testutil.NewAdminClient(tc)

	state := ac.GetState().AssertStatus(http.StatusOK).Body
	ac.Reset()
	ac.LoadState(json.RawMessage(state)).AssertStatus(http.StatusOK)

	if _, ok := memStore.UserByEmail("tom@example.com"); !ok {
		t.Error("expected user restored from state")
	}
	tc.Post(base+"/users/login", map[string]string{"email": "tom@example.com", "password": "validpassword"}).
		AssertStatus(http.StatusOK)
}
