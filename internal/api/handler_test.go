package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/goleak"

	"github.com/appminic/kamera/internal/mapscreen"
	"github.com/appminic/kamera/internal/models"
	"github.com/appminic/kamera/internal/repository"
	"github.com/appminic/kamera/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var uganda = models.Bounds{
	Southwest: models.Coordinates{Latitude: 1.0, Longitude: 29.0},
	Northeast: models.Coordinates{Latitude: 4.0, Longitude: 35.0},
}

type testServer struct {
	router   *gin.Engine
	db       *repository.SQLiteDB
	sessions *mapscreen.Sessions
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := repository.NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}

	client := store.NewClient(db, nil)
	sessions := mapscreen.NewSessions(client, uganda, 0, nil)
	t.Cleanup(func() {
		sessions.Stop()
		db.Close()
	})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(db, client, sessions, nil)
	handler.RegisterRoutes(router)

	return &testServer{router: router, db: db, sessions: sessions}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, path, nil)
	} else {
		req, _ = http.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) seed(t *testing.T, camType models.CameraType, lat, lng float64) string {
	t.Helper()
	r := models.NewCameraReport(camType, models.Coordinates{Latitude: lat, Longitude: lng}, "seed", "")
	if err := s.db.Create(context.Background(), &r); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return r.ID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to parse response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	srv := setupTestServer(t)

	w := srv.do("GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	resp := decode[map[string]string](t, w)
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}
}

func TestPlaceholderScreens(t *testing.T) {
	srv := setupTestServer(t)

	for path, want := range map[string]string{
		"/api/dashboard": "This is dashboard Fragment",
		"/api/report":    "This is report Fragment",
	} {
		w := srv.do("GET", path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", path, w.Code)
		}
		resp := decode[map[string]string](t, w)
		if resp["text"] != want {
			t.Errorf("%s: expected %q, got %q", path, want, resp["text"])
		}
	}
}

func TestCameraTypes(t *testing.T) {
	srv := setupTestServer(t)

	w := srv.do("GET", "/api/camera-types", "")
	types := decode[[]map[string]string](t, w)

	if len(types) != 3 {
		t.Fatalf("expected 3 camera types, got %d", len(types))
	}
	if types[1]["type"] != "RED_LIGHT" || types[1]["label"] != "Red light" || types[1]["icon"] != "ic_red_light_camera" {
		t.Errorf("unexpected red light entry: %v", types[1])
	}
}

func TestGetCameras_ReturnsGeoJSON(t *testing.T) {
	srv := setupTestServer(t)
	srv.seed(t, models.CameraTypeSpeed, 0.3136, 32.5811)

	w := srv.do("GET", "/api/cameras", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "application/geo+json" {
		t.Errorf("expected content-type application/geo+json, got %s", contentType)
	}

	fc := decode[FeatureCollection](t, w)
	if fc.Type != "FeatureCollection" {
		t.Errorf("expected type FeatureCollection, got %s", fc.Type)
	}
	if len(fc.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(fc.Features))
	}
	coords := fc.Features[0].Geometry.Coordinates
	if coords[0] != 32.5811 || coords[1] != 0.3136 {
		t.Errorf("expected [lng, lat] order, got %v", coords)
	}
}

func TestGetCameras_TypeFilter(t *testing.T) {
	srv := setupTestServer(t)
	srv.seed(t, models.CameraTypeSpeed, 0.31, 32.58)
	srv.seed(t, models.CameraTypePolice, 0.32, 32.59)
	srv.seed(t, models.CameraTypeSpeed, 0.33, 32.60)

	w := srv.do("GET", "/api/cameras?type=speed", "")
	fc := decode[FeatureCollection](t, w)
	if len(fc.Features) != 2 {
		t.Errorf("expected 2 speed cameras, got %d", len(fc.Features))
	}

	w = srv.do("GET", "/api/cameras?type=bogus", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for unknown type, got %d", w.Code)
	}
}

func TestGetCameras_LimitAndViewport(t *testing.T) {
	srv := setupTestServer(t)
	srv.seed(t, models.CameraTypeSpeed, 0.3136, 32.5811)
	srv.seed(t, models.CameraTypeSpeed, 0.3140, 32.5815)
	srv.seed(t, models.CameraTypeSpeed, 2.7724, 32.2881)

	w := srv.do("GET", "/api/cameras?limit=2", "")
	if fc := decode[FeatureCollection](t, w); len(fc.Features) != 2 {
		t.Errorf("expected 2 cameras, got %d", len(fc.Features))
	}

	w = srv.do("GET", "/api/cameras?lat=0.3136&lng=32.5811&zoom=15", "")
	if fc := decode[FeatureCollection](t, w); len(fc.Features) != 2 {
		t.Errorf("expected 2 cameras near Kampala, got %d", len(fc.Features))
	}
}

func TestCreateCamera(t *testing.T) {
	srv := setupTestServer(t)

	w := srv.do("POST", "/api/cameras", `{"type":"Red light","latitude":0.3136,"longitude":32.5811,"description":"junction"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decode[models.CameraReport](t, w)
	if created.ID == "" {
		t.Error("expected store assigned ID")
	}
	if created.Type != models.CameraTypeRedLight || created.ReportedBy != models.AnonymousReporter {
		t.Errorf("unexpected report: %+v", created)
	}

	w = srv.do("GET", "/api/cameras/"+created.ID, "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestCreateCamera_Rejects(t *testing.T) {
	srv := setupTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"missing coordinates", `{"type":"SPEED"}`},
		{"unknown type", `{"type":"TANK","latitude":1,"longitude":1}`},
		{"latitude out of range", `{"type":"SPEED","latitude":123,"longitude":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do("POST", "/api/cameras", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestVoteAndFlagCamera(t *testing.T) {
	srv := setupTestServer(t)
	id := srv.seed(t, models.CameraTypeSpeed, 0.3136, 32.5811)

	if w := srv.do("POST", "/api/cameras/"+id+"/votes", `{"direction":"up"}`); w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}
	if w := srv.do("POST", "/api/cameras/"+id+"/votes", `{"direction":"thumbs_down"}`); w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}
	if w := srv.do("POST", "/api/cameras/"+id+"/flags", ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}

	got, err := srv.db.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.ThumbsUp != 1 || got.ThumbsDown != 1 || got.Flags != 1 {
		t.Errorf("expected 1/1/1, got %d/%d/%d", got.ThumbsUp, got.ThumbsDown, got.Flags)
	}

	if w := srv.do("POST", "/api/cameras/missing/flags", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
	if w := srv.do("POST", "/api/cameras/"+id+"/votes", `{"direction":"sideways"}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func openSession(t *testing.T, srv *testServer, body string) sessionResponse {
	t.Helper()
	w := srv.do("POST", "/api/sessions", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	return decode[sessionResponse](t, w)
}

func TestSession_OpenDenied_ShowsDefaultRegion(t *testing.T) {
	srv := setupTestServer(t)

	resp := openSession(t, srv, `{"location_permission":"denied"}`)
	if resp.SessionID == "" {
		t.Fatal("expected session ID")
	}
	if resp.LocationEnabled {
		t.Error("expected location layer disabled")
	}
	if resp.Camera.Region == nil || *resp.Camera.Region != uganda {
		t.Errorf("expected default region, got %+v", resp.Camera)
	}
	if srv.sessions.Count() != 1 {
		t.Errorf("expected 1 open session, got %d", srv.sessions.Count())
	}
}

func TestSession_ReportFlow(t *testing.T) {
	srv := setupTestServer(t)
	base := "/api/sessions/" + openSession(t, srv, "").SessionID

	w := srv.do("PUT", base+"/camera", `{"latitude":0.3136,"longitude":32.5811,"zoom":15}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	if w := srv.do("POST", base+"/selection", `{"latitude":0.3136,"longitude":32.5811}`); w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}

	w = srv.do("POST", base+"/reports", `{"type":"Red light"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decode[map[string]any](t, w); resp["notice"] != mapscreen.NoticeReported {
		t.Errorf("expected success notice, got %v", resp["notice"])
	}

	w = srv.do("GET", base+"/markers", "")
	markers := decode[struct {
		Loading  bool                `json:"loading"`
		Overlays []mapscreen.Overlay `json:"overlays"`
	}](t, w)
	if len(markers.Overlays) != 1 {
		t.Fatalf("expected 1 overlay, got %d", len(markers.Overlays))
	}
	ov := markers.Overlays[0]
	if ov.Icon != "ic_red_light_camera" || ov.Title != "RED_LIGHT" || ov.Snippet != "Reported by: Anonymous" {
		t.Errorf("unexpected overlay: %+v", ov)
	}

	w = srv.do("GET", base+"/markers/"+ov.ID, "")
	details := decode[mapscreen.MarkerDetails](t, w)
	if details.Type != "Red light" || details.Description != "No description provided" {
		t.Errorf("unexpected details: %+v", details)
	}

	w = srv.do("POST", base+"/markers/"+ov.ID+"/votes", `{"direction":"up"}`)
	if details := decode[mapscreen.MarkerDetails](t, w); details.ThumbsUp != 1 {
		t.Errorf("expected 1 thumbs up, got %d", details.ThumbsUp)
	}
	w = srv.do("POST", base+"/markers/"+ov.ID+"/flags", "")
	if details := decode[mapscreen.MarkerDetails](t, w); details.Flags != 1 {
		t.Errorf("expected 1 flag, got %d", details.Flags)
	}

	// selection is cleared after a successful report
	w = srv.do("POST", base+"/reports", `{"type":"SPEED"}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected status 403 without selection or permission, got %d", w.Code)
	}
}

func TestSession_ReportErrors(t *testing.T) {
	srv := setupTestServer(t)
	base := "/api/sessions/" + openSession(t, srv, `{"location_permission":"granted"}`).SessionID

	tests := []struct {
		name   string
		body   string
		status int
		notice string
	}{
		{"no type", `{"type":""}`, http.StatusBadRequest, "Please select a camera type"},
		{"no location fix", `{"type":"SPEED"}`, http.StatusUnprocessableEntity, "Location not available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do("POST", base+"/reports", tt.body)
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			if resp := decode[map[string]string](t, w); resp["notice"] != tt.notice {
				t.Errorf("expected notice %q, got %q", tt.notice, resp["notice"])
			}
		})
	}

	srv.do("PUT", base+"/location", `{"latitude":0.3476,"longitude":32.5825}`)
	if w := srv.do("POST", base+"/reports", `{"type":"police"}`); w.Code != http.StatusCreated {
		t.Errorf("expected status 201 at device location, got %d", w.Code)
	}
}

func TestSession_CenterOnMyLocation(t *testing.T) {
	srv := setupTestServer(t)
	base := "/api/sessions/" + openSession(t, srv, "").SessionID

	if w := srv.do("POST", base+"/locate", ""); w.Code != http.StatusForbidden {
		t.Errorf("expected status 403 before permission, got %d", w.Code)
	}

	w := srv.do("POST", base+"/permission", `{"location_permission":"granted"}`)
	if resp := decode[map[string]any](t, w); resp["location_enabled"] != true {
		t.Errorf("expected location layer enabled, got %v", resp["location_enabled"])
	}

	if w := srv.do("POST", base+"/locate", ""); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422 without a fix, got %d", w.Code)
	}

	srv.do("PUT", base+"/location", `{"latitude":0.3476,"longitude":32.5825}`)
	w = srv.do("POST", base+"/locate", "")
	resp := decode[struct {
		Camera mapscreen.CameraMove `json:"camera"`
	}](t, w)
	if resp.Camera.Position == nil || resp.Camera.Position.Zoom != mapscreen.MyLocationZoom {
		t.Errorf("expected position at zoom %d, got %+v", mapscreen.MyLocationZoom, resp.Camera)
	}
}

func TestSession_NotFound(t *testing.T) {
	srv := setupTestServer(t)
	base := "/api/sessions/" + openSession(t, srv, "").SessionID

	if w := srv.do("GET", "/api/sessions/nope/markers", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for unknown session, got %d", w.Code)
	}
	if w := srv.do("GET", base+"/markers/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for unknown marker, got %d", w.Code)
	}
	if w := srv.do("POST", base+"/markers/nope/flags", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 flagging unknown marker, got %d", w.Code)
	}

	if w := srv.do("DELETE", base, ""); w.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", w.Code)
	}
	if w := srv.do("GET", base+"/markers", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 after close, got %d", w.Code)
	}
}

func TestSession_EventsSendsSnapshot(t *testing.T) {
	srv := setupTestServer(t)
	srv.seed(t, models.CameraTypeSpeed, 0.3136, 32.5811)
	id := openSession(t, srv, "").SessionID

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", "/api/sessions/"+id+"/events", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %s", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event:snapshot") {
		t.Errorf("expected snapshot event, got %q", body)
	}
	if !strings.Contains(body, `"SPEED"`) {
		t.Errorf("expected loaded marker in snapshot, got %q", body)
	}
}

func TestSession_EventsEndWhenScreenCloses(t *testing.T) {
	srv := setupTestServer(t)
	id := openSession(t, srv, "").SessionID

	sess, err := srv.sessions.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	sess.Screen.Close()

	w := srv.do("GET", "/api/sessions/"+id+"/events", "")
	if strings.Count(w.Body.String(), "event:snapshot") != 1 {
		t.Errorf("expected only the initial snapshot, got %q", w.Body.String())
	}
}

func TestSession_OpenChunkedBody(t *testing.T) {
	srv := setupTestServer(t)

	req, _ := http.NewRequest("POST", "/api/sessions",
		io.MultiReader(strings.NewReader(`{"location_permission":"granted",`),
			strings.NewReader(`"location":{"latitude":0.3476,"longitude":32.5825}}`)))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[sessionResponse](t, w)
	if !resp.LocationEnabled {
		t.Error("expected permission from chunked body to be applied")
	}

	w = srv.do("POST", "/api/sessions/"+resp.SessionID+"/locate", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected location from chunked body to be applied, got %d", w.Code)
	}
}

func TestSession_OpenEmptyAndBadBody(t *testing.T) {
	srv := setupTestServer(t)

	req, _ := http.NewRequest("POST", "/api/sessions", http.NoBody)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("expected status 201 for empty body, got %d", w.Code)
	}

	if w := srv.do("POST", "/api/sessions", `{"location_permission":`); w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for truncated JSON, got %d", w.Code)
	}
}
