package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/descriptors"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/recognizer"
)

// fakeExtractor returns a canned descriptor or error.
type fakeExtractor struct {
	desc database.Descriptor
	err  error
}

func (f *fakeExtractor) Extract(ctx context.Context, imageData []byte) (database.Descriptor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.desc, nil
}

type fixture struct {
	students *mock.MockStudentStore
	ledger   *ledger.Ledger
	ext      *fakeExtractor
	router   *chi.Mux
}

// newFixture wires the handlers over mocks, with alice enrolled in C1
// holding descriptor {1,0,0,0}.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	students := mock.NewMockStudentStore()
	enrolls := mock.NewMockEnrollmentStore()
	records := mock.NewMockAttendanceStore()
	ext := &fakeExtractor{}

	cache := descriptors.NewCache(students)
	ldg := ledger.New(records, enrolls)
	svc := recognizer.New(students, cache, ldg, ext, config.RecognitionConfig{
		Dim:      4,
		Accept:   0.7,
		AutoMark: 0.85,
		TopN:     3,
	})

	students.AddStudent(database.StudentEntry{
		StudentID:    "alice",
		DisplayName:  "Alice",
		ExternalCode: "S001",
		Active:       true,
		Descriptors:  []database.Descriptor{{1, 0, 0, 0}},
	})
	if err := enrolls.Enroll(context.Background(), "C1", "alice"); err != nil {
		t.Fatalf("enroll alice: %v", err)
	}

	recognitionHandler := NewRecognitionHandler(svc)
	sessionsHandler := NewSessionsHandler(ldg, svc)
	studentsHandler := NewStudentsHandler(svc)

	r := chi.NewRouter()
	r.Get("/api/v1/health", HealthCheck)
	r.Post("/api/v1/recognize", recognitionHandler.Recognize)
	r.Post("/api/v1/descriptors/reload", recognitionHandler.ReloadDescriptors)
	r.Post("/api/v1/sessions", sessionsHandler.Start)
	r.Get("/api/v1/sessions/{id}", sessionsHandler.Get)
	r.Post("/api/v1/sessions/{id}/end", sessionsHandler.End)
	r.Post("/api/v1/sessions/{id}/attendance", sessionsHandler.Mark)
	r.Post("/api/v1/students", studentsHandler.Register)
	r.Post("/api/v1/students/{id}/descriptors", studentsHandler.EnrollDescriptor)

	return &fixture{students: students, ledger: ldg, ext: ext, router: r}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) startSession(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{
		"course_id":  "C1",
		"faculty_id": "prof-1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start session: status %d body %s", rec.Code, rec.Body.String())
	}
	var session ledger.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	return session.ID
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	id := f.startSession(t)

	rec := f.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get session: status %d", rec.Code)
	}
	var session ledger.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	if session.Status != ledger.SessionActive || session.Counts.Absent != 1 {
		t.Errorf("unexpected session: %+v", session)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/end", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("end session: status %d", rec.Code)
	}

	// Ending twice is an invalid state.
	rec = f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/end", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for double end, got %d", rec.Code)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/sessions/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStartSessionValidation(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"course_id": "C1"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestRecognizeWithDescriptor(t *testing.T) {
	f := newFixture(t)
	id := f.startSession(t)

	rec := f.do(t, http.MethodPost, "/api/v1/recognize", map[string]any{
		"session_id": id,
		"descriptor": []float32{1, 0, 0, 0},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("recognize: status %d body %s", rec.Code, rec.Body.String())
	}

	var result recognizer.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Matches) != 1 || result.Matches[0].StudentID != "alice" {
		t.Errorf("expected alice match, got %+v", result.Matches)
	}
	if len(result.AutoMarked) != 1 {
		t.Errorf("expected 1 auto-mark, got %d", len(result.AutoMarked))
	}
}

func TestRecognizeWithImage(t *testing.T) {
	f := newFixture(t)
	id := f.startSession(t)
	f.ext.desc = database.Descriptor{1, 0, 0, 0}

	image := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("image-bytes"))
	rec := f.do(t, http.MethodPost, "/api/v1/recognize", map[string]any{
		"session_id": id,
		"image":      image,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("recognize: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestRecognizeValidation(t *testing.T) {
	f := newFixture(t)
	id := f.startSession(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing session", map[string]any{"descriptor": []float32{1, 0, 0, 0}}},
		{"missing input", map[string]any{"session_id": id}},
		{"bad base64", map[string]any{"session_id": id, "image": "!!!not-base64!!!"}},
		{"wrong dimension", map[string]any{"session_id": id, "descriptor": []float32{1, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/recognize", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d body %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestManualMark(t *testing.T) {
	f := newFixture(t)
	id := f.startSession(t)

	rec := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/attendance", map[string]string{
		"student_id": "alice",
		"status":     "late",
		"marked_by":  "prof-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("mark: status %d body %s", rec.Code, rec.Body.String())
	}

	var record database.AttendanceRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if record.Status != database.StatusLate || record.Method != database.MethodManual {
		t.Errorf("unexpected record: %+v", record)
	}
}

func TestManualMarkInvalidStatus(t *testing.T) {
	f := newFixture(t)
	id := f.startSession(t)

	rec := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/attendance", map[string]string{
		"student_id": "alice",
		"status":     "tardy",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestManualMarkOffRoster(t *testing.T) {
	f := newFixture(t)
	id := f.startSession(t)

	rec := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/attendance", map[string]string{
		"student_id": "stranger",
		"status":     "present",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRegisterStudent(t *testing.T) {
	f := newFixture(t)
	f.ext.desc = database.Descriptor{0, 1, 0, 0}

	body := map[string]string{
		"external_code": "S100",
		"display_name":  "Carol",
		"image":         base64.StdEncoding.EncodeToString([]byte("image-bytes")),
	}
	rec := f.do(t, http.MethodPost, "/api/v1/students", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}

	var resp registerStudentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Created || resp.StudentID == "" {
		t.Errorf("unexpected response: %+v", resp)
	}

	// Same code again returns the existing student with 200.
	rec = f.do(t, http.MethodPost, "/api/v1/students", body)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 on reuse, got %d", rec.Code)
	}
}

func TestEnrollDescriptorFromImage(t *testing.T) {
	f := newFixture(t)
	f.ext.desc = database.Descriptor{0, 1, 0, 0}

	rec := f.do(t, http.MethodPost, "/api/v1/students/alice/descriptors", map[string]string{
		"image": base64.StdEncoding.EncodeToString([]byte("image-bytes")),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("enroll: status %d body %s", rec.Code, rec.Body.String())
	}

	entry, err := f.students.GetByID(context.Background(), "alice")
	if err != nil || entry == nil {
		t.Fatalf("get alice: entry=%v err=%v", entry, err)
	}
	if len(entry.Descriptors) != 2 {
		t.Errorf("expected 2 descriptors, got %d", len(entry.Descriptors))
	}
}

func TestEnrollRawDescriptor(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/students/alice/descriptors", map[string]any{
		"descriptor": []float32{0, 1, 0, 0},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("enroll: status %d body %s", rec.Code, rec.Body.String())
	}

	entry, _ := f.students.GetByID(context.Background(), "alice")
	if len(entry.Descriptors) != 2 {
		t.Errorf("expected 2 descriptors, got %d", len(entry.Descriptors))
	}
}

func TestEnrollDescriptorUnknownStudent(t *testing.T) {
	f := newFixture(t)
	f.ext.desc = database.Descriptor{0, 1, 0, 0}

	rec := f.do(t, http.MethodPost, "/api/v1/students/stranger/descriptors", map[string]string{
		"image": base64.StdEncoding.EncodeToString([]byte("image-bytes")),
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestEnrollDescriptorMissingInput(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/students/alice/descriptors", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestReloadDescriptors(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/descriptors/reload", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
