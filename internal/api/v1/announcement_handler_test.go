package v1

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mesquitadev/whatsticket-be/internal/model"
	"github.com/mesquitadev/whatsticket-be/internal/repository"
	"github.com/mesquitadev/whatsticket-be/internal/service"
	"github.com/mesquitadev/whatsticket-be/internal/sse"
	"github.com/mesquitadev/whatsticket-be/internal/storage"
	jwtutil "github.com/mesquitadev/whatsticket-be/pkg/jwt"
)

var (
	testAuthOnce sync.Once
	testSignKey  *rsa.PrivateKey
)

// initTestAuth generates a signing key pair and exposes the public half the
// way the auth middleware loads it. The middleware caches the key, so every
// test in the package shares this pair.
func initTestAuth(t *testing.T) {
	t.Helper()

	testAuthOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(fmt.Errorf("generate rsa key: %w", err))
		}
		testSignKey = key

		der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			panic(fmt.Errorf("marshal public key: %w", err))
		}
		pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
		if err := os.Setenv("WHATSTICKET_JWT_PUBLIC_KEY", string(pemBytes)); err != nil {
			panic(fmt.Errorf("set public key env: %w", err))
		}
	})
}

func mintToken(t *testing.T, userID, profile string, companyID int64) string {
	t.Helper()
	initTestAuth(t)

	token, err := jwtutil.GenerateAccessToken(
		jwtutil.NewClaims(userID, profile, companyID, time.Hour),
		testSignKey,
	)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

type memoryAnnouncementRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*model.Announcement
}

func newMemoryAnnouncementRepo() *memoryAnnouncementRepo {
	return &memoryAnnouncementRepo{items: make(map[int64]*model.Announcement)}
}

func (r *memoryAnnouncementRepo) Create(_ context.Context, item *model.Announcement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	item.ID = r.nextID
	item.CreatedAt = time.Now().UTC()
	item.UpdatedAt = item.CreatedAt
	clone := *item
	r.items[item.ID] = &clone
	return nil
}

func (r *memoryAnnouncementRepo) FindByID(_ context.Context, id int64) (*model.Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *item
	return &clone, nil
}

func (r *memoryAnnouncementRepo) List(
	_ context.Context,
	filter repository.AnnouncementListFilter,
) ([]*model.Announcement, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*model.Announcement
	for _, item := range r.items {
		if item.CompanyID != filter.CompanyID {
			continue
		}
		clone := *item
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	count := int64(len(matched))
	offset := (filter.Page - 1) * repository.AnnouncementPageSize
	if offset >= len(matched) {
		return nil, count, nil
	}
	end := offset + repository.AnnouncementPageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], count, nil
}

func (r *memoryAnnouncementRepo) FindAll(_ context.Context, companyID int64) ([]*model.Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*model.Announcement
	for _, item := range r.items {
		if item.CompanyID == companyID {
			clone := *item
			matched = append(matched, &clone)
		}
	}
	return matched, nil
}

func (r *memoryAnnouncementRepo) Update(
	_ context.Context,
	id int64,
	fields repository.AnnouncementUpdate,
) (*model.Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	item.Title = fields.Title
	item.Text = fields.Text
	item.Priority = fields.Priority
	item.Status = fields.Status
	item.UpdatedAt = time.Now().UTC()
	clone := *item
	return &clone, nil
}

func (r *memoryAnnouncementRepo) UpdateMedia(
	_ context.Context,
	id int64,
	mediaPath, mediaName *string,
) (*model.Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	item.MediaPath = mediaPath
	item.MediaName = mediaName
	item.UpdatedAt = time.Now().UTC()
	clone := *item
	return &clone, nil
}

func (r *memoryAnnouncementRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memoryAnnouncementRepo) ListMediaPaths(_ context.Context) ([]string, error) {
	return nil, nil
}

type memoryStore struct {
	mu  sync.Mutex
	seq int
}

func (s *memoryStore) Save(_ context.Context, r io.Reader, originalName string) (storage.StoredFile, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return storage.StoredFile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return storage.StoredFile{
		StoredName:   fmt.Sprintf("stored-%d.bin", s.seq),
		OriginalName: originalName,
	}, nil
}

func (s *memoryStore) Delete(_ context.Context, _ string) error { return nil }

func (s *memoryStore) Resolve(storedName string) (string, error) {
	return "/tmp/" + storedName, nil
}

func (s *memoryStore) List(_ context.Context, _ time.Duration) ([]string, error) {
	return nil, nil
}

func setupAnnouncementTestServer(t *testing.T) (*gin.Engine, *memoryAnnouncementRepo) {
	t.Helper()
	initTestAuth(t)
	gin.SetMode(gin.TestMode)

	repo := newMemoryAnnouncementRepo()
	store := &memoryStore{}
	hub := sse.NewHub(zap.NewNop())
	t.Cleanup(hub.Close)

	svc := service.NewAnnouncementService(repo, nil, store, hub, service.AnnouncementServiceConfig{}, zap.NewNop())

	router := gin.New()
	RegisterAnnouncementRoutes(router.Group(""), svc, store)
	return router, repo
}

func performRequest(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func seedAnnouncement(t *testing.T, repo *memoryAnnouncementRepo, companyID int64, title string) *model.Announcement {
	t.Helper()

	item := &model.Announcement{
		CompanyID: companyID,
		Title:     title,
		Priority:  model.PriorityMedium,
		Status:    model.StatusActive,
	}
	if err := repo.Create(context.Background(), item); err != nil {
		t.Fatalf("seed announcement: %v", err)
	}
	return item
}

func TestCreateAnnouncement_SuperProfile(t *testing.T) {
	router, _ := setupAnnouncementTestServer(t)
	token := mintToken(t, "u1", "super", 1)

	resp := performRequest(t, router, http.MethodPost, "/announcements", token, map[string]any{
		"title":    "maintenance",
		"text":     "window on friday",
		"priority": "high",
		"status":   "active",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var created model.Announcement
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == 0 || created.CompanyID != 1 {
		t.Fatalf("unexpected record: %+v", created)
	}
	if !strings.Contains(resp.Body.String(), `"companyId":1`) {
		t.Fatalf("expected camelCase companyId in payload: %s", resp.Body.String())
	}
}

func TestCreateAnnouncement_NonSuperForbidden(t *testing.T) {
	router, _ := setupAnnouncementTestServer(t)
	token := mintToken(t, "u1", "user", 1)

	resp := performRequest(t, router, http.MethodPost, "/announcements", token, map[string]any{
		"title":    "x",
		"priority": "low",
		"status":   "active",
	})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAnnouncements_RequireAuth(t *testing.T) {
	router, _ := setupAnnouncementTestServer(t)

	resp := performRequest(t, router, http.MethodGet, "/announcements", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestShowAnnouncement_ErrorMapping(t *testing.T) {
	router, _ := setupAnnouncementTestServer(t)
	token := mintToken(t, "u1", "user", 1)

	resp := performRequest(t, router, http.MethodGet, "/announcements/abc", token, nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric id, got %d", resp.Code)
	}

	resp = performRequest(t, router, http.MethodGet, "/announcements/999", token, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing id, got %d", resp.Code)
	}
}

func TestListAnnouncements_PageShape(t *testing.T) {
	router, repo := setupAnnouncementTestServer(t)
	token := mintToken(t, "u1", "user", 1)

	seedAnnouncement(t, repo, 1, "first")
	seedAnnouncement(t, repo, 2, "foreign tenant")

	resp := performRequest(t, router, http.MethodGet, "/announcements?pageNumber=1", token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var page struct {
		Records []model.Announcement `json:"records"`
		Count   int64                `json:"count"`
		HasMore bool                 `json:"hasMore"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Count != 1 || len(page.Records) != 1 || page.HasMore {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Records[0].Title != "first" {
		t.Fatalf("foreign tenant row leaked: %+v", page.Records)
	}
}

func TestDeleteAnnouncement_Message(t *testing.T) {
	router, repo := setupAnnouncementTestServer(t)
	token := mintToken(t, "u1", "super", 1)
	item := seedAnnouncement(t, repo, 1, "to delete")

	resp := performRequest(t, router, http.MethodDelete, fmt.Sprintf("/announcements/%d", item.ID), token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "Announcement deleted") {
		t.Fatalf("unexpected body: %s", resp.Body.String())
	}
}

func TestAttachMedia_MultipartFirstFileOnly(t *testing.T) {
	router, repo := setupAnnouncementTestServer(t)
	token := mintToken(t, "u1", "super", 1)
	item := seedAnnouncement(t, repo, 1, "upload target")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "photo.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("image-bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/announcements/%d/media-upload", item.ID), &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var updated model.Announcement
	if err := json.Unmarshal(resp.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if updated.MediaPath == nil || updated.MediaName == nil || *updated.MediaName != "photo.png" {
		t.Fatalf("expected media fields set, got %+v", updated)
	}
}

func TestDetachMedia_NoMediaIsOK(t *testing.T) {
	router, repo := setupAnnouncementTestServer(t)
	token := mintToken(t, "u1", "super", 1)
	item := seedAnnouncement(t, repo, 1, "bare")

	resp := performRequest(t, router, http.MethodDelete, fmt.Sprintf("/announcements/%d/media-upload", item.ID), token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
}
