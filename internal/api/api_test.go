package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erazemk/yearbook/internal/db"
	"github.com/erazemk/yearbook/internal/imaging"
	"github.com/erazemk/yearbook/internal/model"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	database := db.NewTestDB(t)
	router := Wrap(NewRouter(database, Options{SnapshotDensity: 1}), "*")
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func testDataURL(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		img.Set(x, 10, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		t.Fatalf("%s %s: expected %d, got %d (%v)",
			resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

func createSignature(t *testing.T, server *httptest.Server, name, category string) model.Item {
	t.Helper()
	resp := doJSON(t, "POST", server.URL+"/api/signatures", map[string]string{
		"name":      name,
		"type":      category,
		"imageData": testDataURL(t),
	})
	expectStatus(t, resp, http.StatusCreated)

	var out struct {
		Success   bool       `json:"success"`
		Signature model.Item `json:"signature"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if !out.Success || out.Signature.ID == "" {
		t.Fatalf("unexpected create response: %+v", out)
	}
	return out.Signature
}

func loadData(t *testing.T, server *httptest.Server) model.BoardData {
	t.Helper()
	resp := doJSON(t, "GET", server.URL+"/api/data", nil)
	expectStatus(t, resp, http.StatusOK)
	var data model.BoardData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	return data
}

func TestCreateApproveMoveFlow(t *testing.T) {
	server := setupTestServer(t)

	sig := createSignature(t, server, "  Ana  ", model.CategoryStudent)
	if sig.Name != "Ana" {
		t.Errorf("expected trimmed name, got %q", sig.Name)
	}
	if sig.Status != model.StatusPending || sig.Scale != 1 {
		t.Errorf("unexpected new signature: %+v", sig)
	}
	if sig.ImagePath != "signatures/"+sig.ID+".png" {
		t.Errorf("unexpected image path %q", sig.ImagePath)
	}

	data := loadData(t, server)
	if len(data.PendingSignatures) != 1 || len(data.Signatures) != 0 {
		t.Fatalf("expected 1 pending and 0 approved, got %d and %d",
			len(data.PendingSignatures), len(data.Signatures))
	}

	resp := doJSON(t, "POST", server.URL+"/api/signatures/"+sig.ID+"/approve", map[string]any{
		"position": map[string]float64{"x": 100, "y": 200},
	})
	expectStatus(t, resp, http.StatusOK)

	resp = doJSON(t, "PUT", server.URL+"/api/signatures/"+sig.ID+"/position", map[string]any{
		"position": map[string]float64{"x": 350, "y": 120},
	})
	expectStatus(t, resp, http.StatusOK)

	data = loadData(t, server)
	if len(data.PendingSignatures) != 0 || len(data.Signatures) != 1 {
		t.Fatalf("expected 0 pending and 1 approved, got %d and %d",
			len(data.PendingSignatures), len(data.Signatures))
	}
	got := data.Signatures[0]
	if got.Position != (model.Position{X: 350, Y: 120}) {
		t.Errorf("expected position (350,120), got %+v", got.Position)
	}
}

func TestApproveWithoutBodyKeepsPosition(t *testing.T) {
	server := setupTestServer(t)
	sig := createSignature(t, server, "Bor", model.CategoryTeacher)

	req, _ := http.NewRequest("POST", server.URL+"/api/signatures/"+sig.ID+"/approve", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	data := loadData(t, server)
	if len(data.Signatures) != 1 || data.Signatures[0].Position != sig.Position {
		t.Errorf("expected original position %+v, got %+v", sig.Position, data.Signatures)
	}
}

func TestScaleIsClamped(t *testing.T) {
	server := setupTestServer(t)
	sig := createSignature(t, server, "Cene", model.CategoryStudent)
	expectStatus(t, doJSON(t, "POST", server.URL+"/api/signatures/"+sig.ID+"/approve", nil), http.StatusOK)

	tests := []struct {
		scale float64
		want  float64
	}{
		{9, 5},
		{0.1, 0.3},
		{2.5, 2.5},
	}
	for _, tt := range tests {
		resp := doJSON(t, "PUT", server.URL+"/api/signatures/"+sig.ID+"/scale", map[string]float64{"scale": tt.scale})
		expectStatus(t, resp, http.StatusOK)

		data := loadData(t, server)
		if got := data.Signatures[0].Scale; got != tt.want {
			t.Errorf("scale %v: expected stored %v, got %v", tt.scale, tt.want, got)
		}
	}
}

func TestRejectIsIdempotent(t *testing.T) {
	server := setupTestServer(t)
	sig := createSignature(t, server, "Dana", model.CategoryStudent)

	expectStatus(t, doJSON(t, "POST", server.URL+"/api/signatures/"+sig.ID+"/reject", nil), http.StatusOK)
	expectStatus(t, doJSON(t, "POST", server.URL+"/api/signatures/"+sig.ID+"/reject", nil), http.StatusNotFound)

	data := loadData(t, server)
	if len(data.PendingSignatures) != 0 || len(data.Signatures) != 0 {
		t.Errorf("rejected signature still listed: %+v", data)
	}

	resp, err := http.Get(server.URL + "/signatures/" + sig.ID + ".png")
	if err != nil {
		t.Fatalf("fetching image: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected rejected image to be gone, got %d", resp.StatusCode)
	}

	resp = doJSON(t, "GET", server.URL+"/api/history?status=rejected", nil)
	expectStatus(t, resp, http.StatusOK)
	var history []model.HistoryEntry
	json.NewDecoder(resp.Body).Decode(&history)
	if len(history) != 1 || history[0].ID != sig.ID {
		t.Errorf("expected rejected entry in history, got %+v", history)
	}
}

func TestMemoryFlow(t *testing.T) {
	server := setupTestServer(t)

	resp := doJSON(t, "POST", server.URL+"/api/memories", map[string]string{
		"name":        "Class trip",
		"description": "Piran, May",
		"imageData":   testDataURL(t),
	})
	expectStatus(t, resp, http.StatusCreated)
	var out struct {
		Memory model.Item `json:"memory"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Memory.Kind != model.KindMemory || out.Memory.Category != "" {
		t.Fatalf("unexpected memory: %+v", out.Memory)
	}

	// Approving through the signature endpoint does not find it.
	expectStatus(t, doJSON(t, "POST", server.URL+"/api/signatures/"+out.Memory.ID+"/approve", nil), http.StatusNotFound)
	expectStatus(t, doJSON(t, "POST", server.URL+"/api/memories/"+out.Memory.ID+"/approve", nil), http.StatusOK)

	// Board edits address memories through the shared path.
	resp = doJSON(t, "PUT", server.URL+"/api/signatures/"+out.Memory.ID, map[string]string{"name": "Class trip 2024"})
	expectStatus(t, resp, http.StatusOK)

	data := loadData(t, server)
	if len(data.Signatures) != 1 || data.Signatures[0].Name != "Class trip 2024" {
		t.Fatalf("expected renamed memory on board, got %+v", data.Signatures)
	}
	if data.Signatures[0].Description != "Piran, May" {
		t.Errorf("expected description kept, got %q", data.Signatures[0].Description)
	}

	resp, err := http.Get(server.URL + "/memories/" + out.Memory.ID + ".png")
	if err != nil {
		t.Fatalf("fetching image: %v", err)
	}
	resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", ct)
	}
}

func TestCreateValidation(t *testing.T) {
	server := setupTestServer(t)
	img := testDataURL(t)

	tests := []struct {
		name string
		path string
		body map[string]string
		want int
	}{
		{"empty name", "/api/signatures", map[string]string{"name": "   ", "type": "student", "imageData": img}, http.StatusBadRequest},
		{"bad type", "/api/signatures", map[string]string{"name": "Eva", "type": "parent", "imageData": img}, http.StatusBadRequest},
		{"missing image", "/api/signatures", map[string]string{"name": "Eva", "type": "student"}, http.StatusBadRequest},
		{"not an image", "/api/memories", map[string]string{"name": "Eva", "imageData": "data:image/png;base64,aGVsbG8="}, http.StatusBadRequest},
		{"memory empty name", "/api/memories", map[string]string{"name": "", "imageData": img}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, "POST", server.URL+tt.path, tt.body)
			expectStatus(t, resp, tt.want)
		})
	}

	data := loadData(t, server)
	if len(data.PendingSignatures)+len(data.PendingMemories) != 0 {
		t.Errorf("invalid submissions were stored: %+v", data)
	}
}

func TestUpdateMetadata(t *testing.T) {
	server := setupTestServer(t)
	sig := createSignature(t, server, "Fran", model.CategoryStudent)

	// Pending items cannot be edited.
	resp := doJSON(t, "PUT", server.URL+"/api/signatures/"+sig.ID, map[string]string{"name": "Franc", "type": "teacher"})
	expectStatus(t, resp, http.StatusNotFound)

	expectStatus(t, doJSON(t, "POST", server.URL+"/api/signatures/"+sig.ID+"/approve", nil), http.StatusOK)

	resp = doJSON(t, "PUT", server.URL+"/api/signatures/"+sig.ID, map[string]string{"name": "Franc", "type": "janitor"})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = doJSON(t, "PUT", server.URL+"/api/signatures/"+sig.ID, map[string]string{"name": "Franc", "type": "teacher"})
	expectStatus(t, resp, http.StatusOK)
	var out struct {
		Signature model.Item `json:"signature"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Signature.Name != "Franc" || out.Signature.Category != model.CategoryTeacher {
		t.Errorf("unexpected updated signature: %+v", out.Signature)
	}
}

func TestDeleteApproved(t *testing.T) {
	server := setupTestServer(t)
	sig := createSignature(t, server, "Gal", model.CategoryStudent)

	// Delete applies to approved items only.
	expectStatus(t, doJSON(t, "DELETE", server.URL+"/api/signatures/"+sig.ID, nil), http.StatusNotFound)
	expectStatus(t, doJSON(t, "POST", server.URL+"/api/signatures/"+sig.ID+"/approve", nil), http.StatusOK)
	expectStatus(t, doJSON(t, "DELETE", server.URL+"/api/signatures/"+sig.ID, nil), http.StatusOK)
	expectStatus(t, doJSON(t, "DELETE", server.URL+"/api/signatures/"+sig.ID, nil), http.StatusNotFound)

	if data := loadData(t, server); len(data.Signatures) != 0 {
		t.Errorf("deleted signature still listed")
	}
}

func TestImageETag(t *testing.T) {
	server := setupTestServer(t)
	sig := createSignature(t, server, "Hana", model.CategoryStudent)

	resp, err := http.Get(server.URL + "/" + sig.ImagePath)
	if err != nil {
		t.Fatalf("fetching image: %v", err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}

	req, _ := http.NewRequest("GET", server.URL+"/"+sig.ImagePath, nil)
	req.Header.Set("If-None-Match", etag)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional fetch: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotModified {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

func TestSettings(t *testing.T) {
	server := setupTestServer(t)

	resp := doJSON(t, "PUT", server.URL+"/api/settings", map[string]string{"backgroundTheme": "neon"})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = doJSON(t, "PUT", server.URL+"/api/settings", map[string]string{"backgroundTheme": "bg-pattern-2"})
	expectStatus(t, resp, http.StatusOK)

	data := loadData(t, server)
	if data.Settings.BackgroundTheme != "bg-pattern-2" {
		t.Errorf("expected bg-pattern-2, got %q", data.Settings.BackgroundTheme)
	}
	if data.Settings.GridSize != model.DefaultSettings().GridSize {
		t.Errorf("expected grid size untouched, got %+v", data.Settings.GridSize)
	}
}

func TestSnapshot(t *testing.T) {
	server := setupTestServer(t)
	sig := createSignature(t, server, "Iza", model.CategoryStudent)
	expectStatus(t, doJSON(t, "POST", server.URL+"/api/signatures/"+sig.ID+"/approve", nil), http.StatusOK)

	resp, err := http.Get(server.URL + "/api/board/snapshot.png")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if img.Bounds().Dx() < model.CanvasWidth {
		t.Errorf("snapshot narrower than the canvas: %v", img.Bounds())
	}
}

func TestSnapshotWithTileFarOffCanvas(t *testing.T) {
	server := setupTestServer(t)
	sig := createSignature(t, server, "Drifter", model.CategoryStudent)
	expectStatus(t, doJSON(t, "POST", server.URL+"/api/signatures/"+sig.ID+"/approve", nil), http.StatusOK)
	expectStatus(t, doJSON(t, "PUT", server.URL+"/api/signatures/"+sig.ID+"/position",
		map[string]any{"position": map[string]float64{"x": 20000, "y": 20000}}), http.StatusOK)

	resp, err := http.Get(server.URL + "/api/board/snapshot.png")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if img.Bounds().Dx() > imaging.MaxViewportWidth || img.Bounds().Dy() > imaging.MaxViewportHeight {
		t.Errorf("snapshot %v larger than the maximum viewport at density 1", img.Bounds())
	}
}

func TestSnapshotViewport(t *testing.T) {
	server := setupTestServer(t)

	resp, err := http.Get(server.URL + "/api/board/snapshot.png?x=-100&y=50&w=300&h=200")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if img.Bounds().Dx() != 300 || img.Bounds().Dy() != 200 {
		t.Errorf("size = %v, want 300x200", img.Bounds())
	}

	for _, query := range []string{
		"?x=0&y=0&w=300",
		"?x=0&y=0&w=abc&h=10",
		"?x=0&y=0&w=0&h=10",
		"?x=0&y=0&w=100000&h=10",
	} {
		resp, err := http.Get(server.URL + "/api/board/snapshot.png" + query)
		if err != nil {
			t.Fatalf("snapshot %s: %v", query, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", query, resp.StatusCode)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	server := setupTestServer(t)

	req, _ := http.NewRequest("OPTIONS", server.URL+"/api/signatures", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected allow-origin *, got %q", got)
	}
}

func TestUnknownEndpoint(t *testing.T) {
	server := setupTestServer(t)
	expectStatus(t, doJSON(t, "GET", server.URL+"/api/nope", nil), http.StatusNotFound)
	expectStatus(t, doJSON(t, "GET", server.URL+"/api/health", nil), http.StatusOK)
}
