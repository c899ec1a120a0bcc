package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	appkafka "github.com/CoderLord25/ZenSocial/internal/broker"
	"github.com/CoderLord25/ZenSocial/internal/identity"
	config "github.com/CoderLord25/ZenSocial/internal/init"
	"github.com/CoderLord25/ZenSocial/internal/models"
	"github.com/CoderLord25/ZenSocial/internal/store"
)

//
// --- Helpers ---
//

var zenIDPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

type testEnv struct {
	store  *store.Store
	kafka  *appkafka.MockKafka
	server *httptest.Server
	cfg    *config.Config
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		ServerAddr:     "127.0.0.1:0",
		UploadDir:      filepath.Join(dir, "uploads"),
		StaticDir:      dir,
		JWTSecret:      "test-secret",
		SessionTTL:     time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		DBPath:         filepath.Join(dir, "zen.db"),
	}
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	cfg := testConfig(t)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)

	mockKafka := &appkafka.MockKafka{}
	s, err := New(st, mockKafka, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return &testEnv{store: st, kafka: mockKafka, server: ts, cfg: cfg}
}

// newClient returns a client with its own cookie jar that does not follow redirects.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func do(t *testing.T, c *http.Client, req *http.Request, expectedStatus int) (*http.Response, []byte) {
	t.Helper()
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		t.Fatalf("%s %s: expected %d, got %d: %s", req.Method, req.URL.Path, expectedStatus, resp.StatusCode, body)
	}
	return resp, body
}

func get(t *testing.T, c *http.Client, rawURL string, expectedStatus int) (*http.Response, []byte) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, rawURL, nil)
	return do(t, c, req, expectedStatus)
}

func postForm(t *testing.T, c *http.Client, rawURL string, form url.Values, expectedStatus int) (*http.Response, []byte) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(t, c, req, expectedStatus)
}

func postJSON(t *testing.T, c *http.Client, rawURL string, body any, expectedStatus int) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}
	req, _ := http.NewRequest(http.MethodPost, rawURL, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return do(t, c, req, expectedStatus)
}

type upload struct {
	field, name string
	data        []byte
}

func postMultipart(t *testing.T, c *http.Client, rawURL string, fields map[string]string, files []upload, expectedStatus int) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write(f.data)
	}
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, rawURL, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return do(t, c, req, expectedStatus)
}

// mint creates a fresh account for c and returns its user row.
func (e *testEnv) mint(t *testing.T, c *http.Client) *models.User {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, e.server.URL+"/mint", nil)
	req.Header.Set("Accept", "application/json")
	_, body := do(t, c, req, http.StatusCreated)

	var out struct {
		ZenID string `json:"zenid"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode mint response: %v", err)
	}
	user, err := e.store.ResolveAccount(context.Background(), identity.ZenID(out.ZenID))
	if err != nil {
		t.Fatalf("minted user not stored: %v", err)
	}
	return user
}

func (e *testEnv) createPost(t *testing.T, c *http.Client, content string) models.Post {
	t.Helper()
	_, body := postMultipart(t, c, e.server.URL+"/create_post", map[string]string{"content": content}, nil, http.StatusCreated)
	var p models.Post
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("decode post: %v", err)
	}
	return p
}

func decodeMap(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("decode body %q: %v", body, err)
	}
	return m
}

func postURL(e *testEnv, action string, id int64) string {
	return e.server.URL + "/" + action + "/" + strconv.FormatInt(id, 10)
}

//
// --- Identity ---
//

func TestMint_RedirectsHomeWithSession(t *testing.T) {
	e := setupTestServer(t)
	c := newClient(t)

	resp, _ := postForm(t, c, e.server.URL+"/mint", url.Values{}, http.StatusFound)
	if loc := resp.Header.Get("Location"); loc != "/" {
		t.Fatalf("expected redirect to /, got %q", loc)
	}

	_, body := get(t, c, e.server.URL+"/", http.StatusOK)
	if !strings.Contains(string(body), "ZenSocial") {
		t.Fatalf("home page not rendered: %s", body)
	}
}

func TestMint_JSONReturnsUsableToken(t *testing.T) {
	e := setupTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, e.server.URL+"/mint", nil)
	req.Header.Set("Accept", "application/json")
	_, body := do(t, http.DefaultClient, req, http.StatusCreated)

	out := decodeMap(t, body)
	zenID, _ := out["zenid"].(string)
	if !zenIDPattern.MatchString(zenID) {
		t.Fatalf("minted ZenID has wrong shape: %q", zenID)
	}
	token, _ := out["token"].(string)

	// Bearer tokens work without cookies.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("content", "from a token")
	mw.Close()
	req, _ = http.NewRequest(http.MethodPost, e.server.URL+"/create_post", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	do(t, http.DefaultClient, req, http.StatusCreated)
}

func TestLogin_UnknownZenIDCreatesNoAccount(t *testing.T) {
	e := setupTestServer(t)
	c := newClient(t)

	unknown := "0x" + strings.Repeat("ab", 20)
	_, body := postForm(t, c, e.server.URL+"/login", url.Values{"zenid": {unknown}}, http.StatusUnauthorized)
	if !strings.Contains(string(body), "ZenID not found") {
		t.Fatalf("expected user-visible error, got: %s", body)
	}

	_, err := e.store.ResolveAccount(context.Background(), identity.ZenID(unknown))
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("login must not provision accounts, got err=%v", err)
	}
	get(t, c, e.server.URL+"/", http.StatusFound)
}

func TestLogin_MalformedZenID(t *testing.T) {
	e := setupTestServer(t)
	postForm(t, newClient(t), e.server.URL+"/login", url.Values{"zenid": {"not-an-address"}}, http.StatusBadRequest)
}

func TestLogin_ExistingZenID(t *testing.T) {
	e := setupTestServer(t)
	user := e.mint(t, newClient(t))

	c := newClient(t)
	// Case and surrounding whitespace are normalised.
	resp, _ := postForm(t, c, e.server.URL+"/login", url.Values{"zenid": {"  " + strings.ToUpper(user.ZenID) + " "}}, http.StatusFound)
	if loc := resp.Header.Get("Location"); loc != "/" {
		t.Fatalf("expected redirect to /, got %q", loc)
	}
	get(t, c, e.server.URL+"/profile", http.StatusOK)
}

func TestRegisterZenID_IsIdempotent(t *testing.T) {
	e := setupTestServer(t)
	zenID := "0x" + strings.Repeat("cd", 20)

	for i := 0; i < 2; i++ {
		_, body := postJSON(t, newClient(t), e.server.URL+"/register_zenid", map[string]string{"zenid": zenID}, http.StatusOK)
		if decodeMap(t, body)["success"] != true {
			t.Fatalf("expected success, got %s", body)
		}
	}

	_, body := postJSON(t, newClient(t), e.server.URL+"/register_zenid", map[string]string{"zenid": "0x123"}, http.StatusBadRequest)
	if decodeMap(t, body)["success"] != false {
		t.Fatalf("expected failure, got %s", body)
	}
}

func TestWalletLogin_ProvisionsAccount(t *testing.T) {
	e := setupTestServer(t)
	c := newClient(t)
	wallet := "0x" + strings.Repeat("12", 20)

	_, body := postJSON(t, c, e.server.URL+"/wallet_login", map[string]string{"wallet": wallet}, http.StatusOK)
	if decodeMap(t, body)["success"] != true {
		t.Fatalf("expected success, got %s", body)
	}

	user, err := e.store.ResolveAccount(context.Background(), identity.Wallet(wallet))
	if err != nil {
		t.Fatalf("wallet account not provisioned: %v", err)
	}
	if user.Username != "user_121212" {
		t.Fatalf("unexpected placeholder name %q", user.Username)
	}
	get(t, c, e.server.URL+"/", http.StatusOK)

	// A second login reuses the account.
	postJSON(t, newClient(t), e.server.URL+"/wallet_login", map[string]string{"wallet": wallet}, http.StatusOK)
	again, _ := e.store.ResolveAccount(context.Background(), identity.Wallet(wallet))
	if again.ID != user.ID {
		t.Fatalf("expected same account, got %d and %d", user.ID, again.ID)
	}
}

func TestLogout_EndsSession(t *testing.T) {
	e := setupTestServer(t)
	c := newClient(t)
	e.mint(t, c)

	resp, _ := get(t, c, e.server.URL+"/logout", http.StatusFound)
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Fatalf("expected redirect to /login, got %q", loc)
	}
	get(t, c, e.server.URL+"/", http.StatusFound)
}

//
// --- Authentication requirements ---
//

func TestPages_RedirectWithoutSession(t *testing.T) {
	e := setupTestServer(t)
	c := newClient(t)

	for _, path := range []string{"/", "/profile", "/earn", "/messages", "/notifications", "/logout"} {
		resp, _ := get(t, c, e.server.URL+path, http.StatusFound)
		if loc := resp.Header.Get("Location"); loc != "/login" {
			t.Fatalf("%s: expected redirect to /login, got %q", path, loc)
		}
	}
}

func TestAPI_UnauthorizedWithoutSession(t *testing.T) {
	e := setupTestServer(t)
	c := newClient(t)

	for _, path := range []string{"/create_post", "/edit_profile", "/like_post/1", "/repost_post/1", "/comment_post/1"} {
		_, body := postJSON(t, c, e.server.URL+path, map[string]string{}, http.StatusUnauthorized)
		if decodeMap(t, body)["error"] != "unauthorized" {
			t.Fatalf("%s: unexpected body %s", path, body)
		}
	}
}

//
// --- Posts ---
//

func TestCreatePost_Validation(t *testing.T) {
	e := setupTestServer(t)
	c := newClient(t)
	e.mint(t, c)
	target := e.server.URL + "/create_post"

	postMultipart(t, c, target, map[string]string{"content": "   "}, nil, http.StatusBadRequest)
	postMultipart(t, c, target, map[string]string{"content": strings.Repeat("x", 1001)}, nil, http.StatusBadRequest)

	// Bad media alone leaves nothing to post.
	postMultipart(t, c, target, nil, []upload{{"media", "run.exe", []byte("MZ")}}, http.StatusBadRequest)

	// Bad media next to text is dropped silently.
	_, body := postMultipart(t, c, target, map[string]string{"content": "text survives"}, []upload{{"media", "run.exe", []byte("MZ")}}, http.StatusCreated)
	var p models.Post
	json.Unmarshal(body, &p)
	if p.Content != "text survives" || p.Media != "" {
		t.Fatalf("unexpected post %+v", p)
	}
}

func TestCreatePost_WithMedia(t *testing.T) {
	e := setupTestServer(t)
	c := newClient(t)
	user := e.mint(t, c)

	_, body := postMultipart(t, c, e.server.URL+"/create_post", nil, []upload{{"media", "cat.PNG", []byte("png-bytes")}}, http.StatusCreated)
	var p models.Post
	json.Unmarshal(body, &p)

	if !strings.HasPrefix(p.Media, "/static/uploads/"+user.ZenID+"_") || !strings.HasSuffix(p.Media, ".png") {
		t.Fatalf("unexpected media url %q", p.Media)
	}
	name := strings.TrimPrefix(p.Media, "/static/uploads/")
	if _, err := os.Stat(filepath.Join(e.cfg.UploadDir, name)); err != nil {
		t.Fatalf("uploaded file missing: %v", err)
	}

	_, served := get(t, c, e.server.URL+p.Media, http.StatusOK)
	if string(served) != "png-bytes" {
		t.Fatalf("unexpected served content %q", served)
	}
}

func TestFeed_NewestFirstWithComments(t *testing.T) {
	e := setupTestServer(t)
	c := newClient(t)
	e.mint(t, c)

	first := e.createPost(t, c, "first post")
	e.createPost(t, c, "second post")
	postJSON(t, c, postURL(e, "comment_post", first.ID), map[string]string{"content": "early"}, http.StatusCreated)
	postJSON(t, c, postURL(e, "comment_post", first.ID), map[string]string{"content": "late"}, http.StatusCreated)

	_, body := get(t, c, e.server.URL+"/", http.StatusOK)
	page := string(body)
	if strings.Index(page, "second post") > strings.Index(page, "first post") {
		t.Fatal("expected newest post first")
	}
	if strings.Index(page, "early") > strings.Index(page, "late") {
		t.Fatal("expected comments oldest first")
	}
}

//
// --- Interactions ---
//

func TestLike_TogglesAndPublishes(t *testing.T) {
	e := setupTestServer(t)
	owner := newClient(t)
	ownerUser := e.mint(t, owner)
	p := e.createPost(t, owner, "like me")

	fan := newClient(t)
	e.mint(t, fan)

	_, body := postJSON(t, fan, postURL(e, "like_post", p.ID), nil, http.StatusOK)
	if decodeMap(t, body)["status"] != "liked" {
		t.Fatalf("expected liked, got %s", body)
	}
	got, _ := e.store.GetPost(context.Background(), p.ID)
	if got.Likes != 1 {
		t.Fatalf("expected 1 like, got %d", got.Likes)
	}

	_, body = postJSON(t, fan, postURL(e, "like_post", p.ID), nil, http.StatusOK)
	if decodeMap(t, body)["status"] != "unliked" {
		t.Fatalf("expected unliked, got %s", body)
	}
	got, _ = e.store.GetPost(context.Background(), p.ID)
	if got.Likes != 0 {
		t.Fatalf("expected 0 likes, got %d", got.Likes)
	}

	// Only the "on" transition is published.
	written := e.kafka.Written()
	if len(written) != 1 {
		t.Fatalf("expected 1 event, got %d", len(written))
	}
	ev, err := appkafka.DecodeEvent(written[0])
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Type != appkafka.PostLiked || ev.PostID != p.ID || ev.PostOwnerID != ownerUser.ID {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestRepost_IndependentOfLike(t *testing.T) {
	e := setupTestServer(t)
	c := newClient(t)
	e.mint(t, c)
	p := e.createPost(t, c, "share me")

	postJSON(t, c, postURL(e, "like_post", p.ID), nil, http.StatusOK)
	_, body := postJSON(t, c, postURL(e, "repost_post", p.ID), nil, http.StatusOK)
	if decodeMap(t, body)["status"] != "reposted" {
		t.Fatalf("expected reposted, got %s", body)
	}
	_, body = postJSON(t, c, postURL(e, "repost_post", p.ID), nil, http.StatusOK)
	if decodeMap(t, body)["status"] != "unreposted" {
		t.Fatalf("expected unreposted, got %s", body)
	}

	got, _ := e.store.GetPost(context.Background(), p.ID)
	if got.Likes != 1 || got.Shares != 0 {
		t.Fatalf("unexpected counters likes=%d shares=%d", got.Likes, got.Shares)
	}
}

func TestInteractions_UnknownPost(t *testing.T) {
	e := setupTestServer(t)
	c := newClient(t)
	e.mint(t, c)

	postJSON(t, c, postURL(e, "like_post", 999), nil, http.StatusNotFound)
	postJSON(t, c, postURL(e, "repost_post", 999), nil, http.StatusNotFound)
	postJSON(t, c, postURL(e, "comment_post", 999), map[string]string{"content": "hi"}, http.StatusNotFound)
}

func TestComment_CreatesAndCounts(t *testing.T) {
	e := setupTestServer(t)
	c := newClient(t)
	user := e.mint(t, c)
	p := e.createPost(t, c, "discuss")

	postJSON(t, c, postURL(e, "comment_post", p.ID), map[string]string{"content": "  "}, http.StatusBadRequest)

	_, body := postJSON(t, c, postURL(e, "comment_post", p.ID), map[string]string{"content": "  well said "}, http.StatusCreated)
	out := decodeMap(t, body)
	if out["content"] != "well said" || out["username"] != user.DisplayName() {
		t.Fatalf("unexpected comment response %s", body)
	}

	got, _ := e.store.GetPost(context.Background(), p.ID)
	if got.Comments != 1 {
		t.Fatalf("expected 1 comment, got %d", got.Comments)
	}
}

//
// --- Profile ---
//

func TestEditProfile_UpdatesFields(t *testing.T) {
	e := setupTestServer(t)
	c := newClient(t)
	user := e.mint(t, c)

	postMultipart(t, c, e.server.URL+"/edit_profile",
		map[string]string{"username": "zen master", "bio": "hello"},
		[]upload{{"avatar", "me.jpg", []byte("jpg")}, {"cover", "clip.mp4", []byte("mp4")}},
		http.StatusNoContent)

	got, _ := e.store.ResolveAccount(context.Background(), identity.ZenID(user.ZenID))
	if got.Username != "zen master" || got.Bio != "hello" {
		t.Fatalf("profile not updated: %+v", got)
	}
	if !strings.HasSuffix(got.Avatar, ".jpg") {
		t.Fatalf("expected avatar url, got %q", got.Avatar)
	}
	if got.Cover != "" {
		t.Fatalf("video cover must be dropped, got %q", got.Cover)
	}

	// Empty fields keep stored values.
	postMultipart(t, c, e.server.URL+"/edit_profile", map[string]string{"bio": "changed"}, nil, http.StatusNoContent)
	got, _ = e.store.ResolveAccount(context.Background(), identity.ZenID(user.ZenID))
	if got.Username != "zen master" || got.Bio != "changed" {
		t.Fatalf("unexpected profile after partial update: %+v", got)
	}
}

func TestProfile_ViewOtherAndUnknown(t *testing.T) {
	e := setupTestServer(t)
	other := newClient(t)
	otherUser := e.mint(t, other)
	e.createPost(t, other, "visible on profile")

	c := newClient(t)
	e.mint(t, c)

	_, body := get(t, c, e.server.URL+"/profile?user="+otherUser.ZenID, http.StatusOK)
	if !strings.Contains(string(body), "visible on profile") {
		t.Fatal("expected the other user's posts")
	}

	resp, _ := get(t, c, e.server.URL+"/profile?user=0x"+strings.Repeat("ee", 20), http.StatusFound)
	if loc := resp.Header.Get("Location"); loc != "/" {
		t.Fatalf("expected redirect home, got %q", loc)
	}
}

//
// --- Earnings & notifications ---
//

func TestEarn_ShowsEstimateAndPersistsSnapshot(t *testing.T) {
	e := setupTestServer(t)
	owner := newClient(t)
	user := e.mint(t, owner)
	p := e.createPost(t, owner, "monetise")

	fan := newClient(t)
	e.mint(t, fan)
	postJSON(t, fan, postURL(e, "like_post", p.ID), nil, http.StatusOK)
	postJSON(t, fan, postURL(e, "comment_post", p.ID), map[string]string{"content": "a"}, http.StatusCreated)
	postJSON(t, owner, postURL(e, "comment_post", p.ID), map[string]string{"content": "b"}, http.StatusCreated)
	postJSON(t, fan, postURL(e, "repost_post", p.ID), nil, http.StatusOK)

	// 1*1 + 2*2 + 1*5 = 10 cents
	_, body := get(t, owner, e.server.URL+"/earn", http.StatusOK)
	if !strings.Contains(string(body), "0.10") {
		t.Fatalf("expected 0.10 on earnings page: %s", body)
	}

	var records []models.EarningsRecord
	if err := e.store.DB.Where("user_id = ?", user.ID).Find(&records).Error; err != nil {
		t.Fatalf("load earnings: %v", err)
	}
	if len(records) != 1 || records[0].AmountCents != 10 {
		t.Fatalf("unexpected snapshot %+v", records)
	}
}

func TestNotifications_ListAndMarkRead(t *testing.T) {
	e := setupTestServer(t)
	c := newClient(t)
	user := e.mint(t, c)

	err := e.store.AddNotification(context.Background(), models.Notification{
		UserID: user.ID, ActorID: "0x" + strings.Repeat("0f", 20), Kind: "like", PostID: 1, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("add notification: %v", err)
	}

	_, body := get(t, c, e.server.URL+"/notifications", http.StatusOK)
	if !strings.Contains(string(body), "liked") {
		t.Fatalf("expected notification in page: %s", body)
	}

	list, _ := e.store.ListNotifications(context.Background(), user.ID, 10)
	if len(list) != 1 || !list[0].Read {
		t.Fatalf("expected notification marked read: %+v", list)
	}
}

func TestMessages_Renders(t *testing.T) {
	e := setupTestServer(t)
	c := newClient(t)
	e.mint(t, c)
	get(t, c, e.server.URL+"/messages", http.StatusOK)
}

func TestMetrics_Exposed(t *testing.T) {
	e := setupTestServer(t)
	get(t, newClient(t), e.server.URL+"/login", http.StatusOK)

	_, body := get(t, newClient(t), e.server.URL+"/metrics", http.StatusOK)
	if !strings.Contains(string(body), "zensocial_http_requests_total") {
		t.Fatal("expected request counter in metrics output")
	}
}

//
// --- Failure paths ---
//

func TestStoreFailure_DoesNotLeakErrors(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(&store.MockStoreFail{}, &appkafka.MockKafkaFail{}, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	token, err := s.auth.IssueToken("0x"+strings.Repeat("aa", 20), time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/like_post/1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	_, body := do(t, http.DefaultClient, req, http.StatusInternalServerError)

	if decodeMap(t, body)["error"] != "internal error" {
		t.Fatalf("unexpected error body %s", body)
	}
	if strings.Contains(string(body), "mock store failure") {
		t.Fatal("raw store error leaked to client")
	}

	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/mint", nil)
	req.Header.Set("Accept", "application/json")
	do(t, http.DefaultClient, req, http.StatusInternalServerError)
}

func TestPublishFailure_DoesNotFailInteraction(t *testing.T) {
	cfg := testConfig(t)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	s, err := New(st, &appkafka.MockKafka{ShouldFail: true}, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	e := &testEnv{store: st, server: ts, cfg: cfg}
	c := newClient(t)
	e.mint(t, c)
	p := e.createPost(t, c, "still works")
	postJSON(t, c, postURL(e, "like_post", p.ID), nil, http.StatusOK)
}

func TestRateLimit_RejectsBursts(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1

	s, err := New(&store.MockStoreFail{}, nil, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	c := newClient(t)
	postForm(t, c, ts.URL+"/login", url.Values{"zenid": {"bad"}}, http.StatusBadRequest)
	postForm(t, c, ts.URL+"/login", url.Values{"zenid": {"bad"}}, http.StatusTooManyRequests)
}
