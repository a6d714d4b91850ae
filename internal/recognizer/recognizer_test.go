package recognizer

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/descriptors"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/ledger"
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

var _ extractor.Extractor = &fakeExtractor{}

type fixture struct {
	students *mock.MockStudentStore
	enrolls  *mock.MockEnrollmentStore
	records  *mock.MockAttendanceStore
	cache    *descriptors.Cache
	ledger   *ledger.Ledger
	ext      *fakeExtractor
	svc      *Service
}

// newFixture wires a service over mocks with alice and bob enrolled in C1.
// Alice's descriptor is {1,0,0,0}, bob's {0,1,0,0}.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		students: mock.NewMockStudentStore(),
		enrolls:  mock.NewMockEnrollmentStore(),
		records:  mock.NewMockAttendanceStore(),
		ext:      &fakeExtractor{},
	}
	f.cache = descriptors.NewCache(f.students)
	f.ledger = ledger.New(f.records, f.enrolls)
	f.svc = New(f.students, f.cache, f.ledger, f.ext, config.RecognitionConfig{
		Dim:      4,
		Accept:   0.7,
		AutoMark: 0.85,
		TopN:     3,
	})

	f.students.AddStudent(database.StudentEntry{
		StudentID:    "alice",
		DisplayName:  "Alice",
		ExternalCode: "S001",
		Active:       true,
		Descriptors:  []database.Descriptor{{1, 0, 0, 0}},
	})
	f.students.AddStudent(database.StudentEntry{
		StudentID:    "bob",
		DisplayName:  "Bob",
		ExternalCode: "S002",
		Active:       true,
		Descriptors:  []database.Descriptor{{0, 1, 0, 0}},
	})
	ctx := context.Background()
	for _, id := range []string{"alice", "bob"} {
		if err := f.enrolls.Enroll(ctx, "C1", id); err != nil {
			t.Fatalf("enroll %s: %v", id, err)
		}
	}
	return f
}

func (f *fixture) startSession(t *testing.T) *ledger.Session {
	t.Helper()
	session, err := f.ledger.StartSession(context.Background(), "C1", "prof-1")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	return session
}

func TestRecognizeAutoMark(t *testing.T) {
	f := newFixture(t)
	session := f.startSession(t)

	result, err := f.svc.Recognize(context.Background(), session.ID, database.Descriptor{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}

	if len(result.Matches) != 1 || result.Matches[0].StudentID != "alice" {
		t.Fatalf("expected alice as only match, got %+v", result.Matches)
	}
	if result.Matches[0].Score != 1.0 {
		t.Errorf("expected score 1.0, got %f", result.Matches[0].Score)
	}

	if len(result.AutoMarked) != 1 {
		t.Fatalf("expected 1 auto-marked record, got %d", len(result.AutoMarked))
	}
	rec := result.AutoMarked[0]
	if rec.StudentID != "alice" || rec.Status != database.StatusPresent {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Method != database.MethodAutomatic || rec.MarkedBy != AutoMarkedBy {
		t.Errorf("expected automatic mark by %s, got method=%s markedBy=%s", AutoMarkedBy, rec.Method, rec.MarkedBy)
	}
	if rec.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %f", rec.Confidence)
	}

	if f.records.Count() != 1 {
		t.Errorf("expected 1 durable record, got %d", f.records.Count())
	}
	updated, err := f.ledger.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if updated.Counts.Present != 1 || updated.Counts.Absent != 1 {
		t.Errorf("expected counts present=1 absent=1, got %+v", updated.Counts)
	}
}

func TestRecognizeSuggestionBand(t *testing.T) {
	f := newFixture(t)
	session := f.startSession(t)

	// Squared distance to alice is 0.5, so the score lands at 0.75:
	// qualified but below the auto-mark floor.
	input := database.Descriptor{0.29289322, 0, 0, 0}
	result, err := f.svc.Recognize(context.Background(), session.ID, input)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}

	if len(result.Matches) != 1 || result.Matches[0].StudentID != "alice" {
		t.Fatalf("expected alice as suggestion, got %+v", result.Matches)
	}
	if len(result.AutoMarked) != 0 {
		t.Errorf("expected no auto-marks, got %+v", result.AutoMarked)
	}
	if f.records.Count() != 0 {
		t.Errorf("suggestion must not create records, got %d", f.records.Count())
	}
}

func TestRecognizeNoQualifiedMatch(t *testing.T) {
	f := newFixture(t)
	session := f.startSession(t)

	result, err := f.svc.Recognize(context.Background(), session.ID, database.Descriptor{0, 0, 1, 0})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if len(result.Matches) != 0 {
		t.Errorf("expected no matches, got %+v", result.Matches)
	}
}

func TestRecognizeWrongDimension(t *testing.T) {
	f := newFixture(t)
	session := f.startSession(t)

	_, err := f.svc.Recognize(context.Background(), session.ID, database.Descriptor{1, 0})
	if !errors.Is(err, database.ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
}

func TestRecognizeUnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Recognize(context.Background(), "no-such-session", database.Descriptor{1, 0, 0, 0})
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecognizeEndedSession(t *testing.T) {
	f := newFixture(t)
	session := f.startSession(t)

	if _, err := f.ledger.EndSession(context.Background(), session.ID); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	_, err := f.svc.Recognize(context.Background(), session.ID, database.Descriptor{1, 0, 0, 0})
	if !errors.Is(err, database.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestRecognizeStaleSnapshot(t *testing.T) {
	f := newFixture(t)
	session := f.startSession(t)
	ctx := context.Background()

	// Warm the cache, then make reloads fail.
	if err := f.cache.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	f.cache.Invalidate()
	f.students.ListError = errors.New("database down")

	result, err := f.svc.Recognize(ctx, session.ID, database.Descriptor{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("expected stale recognition to succeed, got %v", err)
	}
	if !result.Stale {
		t.Error("expected result marked stale")
	}
	if len(result.Matches) != 1 || result.Matches[0].StudentID != "alice" {
		t.Errorf("expected alice from stale snapshot, got %+v", result.Matches)
	}
}

func TestRecognizeImage(t *testing.T) {
	f := newFixture(t)
	session := f.startSession(t)
	f.ext.desc = database.Descriptor{1, 0, 0, 0}

	result, err := f.svc.RecognizeImage(context.Background(), session.ID, []byte("image-bytes"))
	if err != nil {
		t.Fatalf("RecognizeImage failed: %v", err)
	}
	if len(result.AutoMarked) != 1 || result.AutoMarked[0].StudentID != "alice" {
		t.Errorf("expected alice auto-marked, got %+v", result.AutoMarked)
	}
}

func TestRecognizeImageExtractorError(t *testing.T) {
	f := newFixture(t)
	session := f.startSession(t)
	f.ext.err = extractor.ErrNoFaceDetected

	_, err := f.svc.RecognizeImage(context.Background(), session.ID, []byte("image-bytes"))
	if !errors.Is(err, extractor.ErrNoFaceDetected) {
		t.Errorf("expected ErrNoFaceDetected, got %v", err)
	}
}

func TestMarkManualOverridesAutomatic(t *testing.T) {
	f := newFixture(t)
	session := f.startSession(t)
	ctx := context.Background()

	if _, err := f.svc.Recognize(ctx, session.ID, database.Descriptor{1, 0, 0, 0}); err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}

	rec, err := f.svc.MarkManual(ctx, session.ID, "alice", database.StatusExcused, "prof-1", "doctor visit")
	if err != nil {
		t.Fatalf("MarkManual failed: %v", err)
	}
	if rec.Status != database.StatusExcused || rec.Method != database.MethodManual {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Notes != "doctor visit" {
		t.Errorf("expected notes preserved, got %q", rec.Notes)
	}

	if f.records.Count() != 1 {
		t.Errorf("manual override must reuse the record, got %d records", f.records.Count())
	}
	updated, err := f.ledger.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if updated.Counts.Present != 0 || updated.Counts.Excused != 1 {
		t.Errorf("expected counts present=0 excused=1, got %+v", updated.Counts)
	}
}

func TestMarkManualInvalidStatus(t *testing.T) {
	f := newFixture(t)
	session := f.startSession(t)

	_, err := f.svc.MarkManual(context.Background(), session.ID, "alice", "tardy", "prof-1", "")
	if !errors.Is(err, database.ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
}

func TestRegisterStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ext.desc = database.Descriptor{0, 0, 1, 0}

	id, created, err := f.svc.RegisterStudent(ctx, "S100", "Carol", []byte("image-bytes"))
	if err != nil {
		t.Fatalf("RegisterStudent failed: %v", err)
	}
	if !created {
		t.Error("expected a new student")
	}

	entry, err := f.students.GetByID(ctx, id)
	if err != nil || entry == nil {
		t.Fatalf("student not stored: entry=%v err=%v", entry, err)
	}
	if len(entry.Descriptors) != 1 {
		t.Errorf("expected 1 descriptor enrolled, got %d", len(entry.Descriptors))
	}

	// Same external code reuses the student and enrolls another face.
	again, created, err := f.svc.RegisterStudent(ctx, "S100", "Carol", []byte("image-bytes"))
	if err != nil {
		t.Fatalf("RegisterStudent failed on reuse: %v", err)
	}
	if created || again != id {
		t.Errorf("expected existing student %s, got %s created=%v", id, again, created)
	}
	entry, _ = f.students.GetByID(ctx, id)
	if len(entry.Descriptors) != 2 {
		t.Errorf("expected 2 descriptors after second enrollment, got %d", len(entry.Descriptors))
	}
}

func TestRegisterStudentMissingFields(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.RegisterStudent(context.Background(), "", "Carol", nil)
	if !errors.Is(err, database.ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
}

func TestEnrollFaceDimensionMismatch(t *testing.T) {
	f := newFixture(t)
	f.ext.desc = database.Descriptor{1, 0, 0}

	err := f.svc.EnrollFace(context.Background(), "alice", []byte("image-bytes"))
	if !errors.Is(err, database.ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
}

func TestReloadDescriptors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Carol is on the roster but had no descriptors when the cache warmed.
	f.students.AddStudent(database.StudentEntry{
		StudentID:    "carol",
		DisplayName:  "Carol",
		ExternalCode: "S003",
		Active:       true,
	})
	if err := f.enrolls.Enroll(ctx, "C1", "carol"); err != nil {
		t.Fatalf("enroll carol: %v", err)
	}
	session := f.startSession(t)
	if err := f.cache.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	f.students.AddStudent(database.StudentEntry{
		StudentID:    "carol",
		DisplayName:  "Carol",
		ExternalCode: "S003",
		Active:       true,
		Descriptors:  []database.Descriptor{{0, 0, 0, 1}},
	})

	result, err := f.svc.Recognize(ctx, session.ID, database.Descriptor{0, 0, 0, 1})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if len(result.Matches) != 0 {
		t.Fatalf("expected no matches before reload, got %+v", result.Matches)
	}

	if err := f.svc.ReloadDescriptors(ctx); err != nil {
		t.Fatalf("ReloadDescriptors failed: %v", err)
	}

	result, err = f.svc.Recognize(ctx, session.ID, database.Descriptor{0, 0, 0, 1})
	if err != nil {
		t.Fatalf("Recognize failed after reload: %v", err)
	}
	if len(result.Matches) != 1 || result.Matches[0].StudentID != "carol" {
		t.Errorf("expected carol after reload, got %+v", result.Matches)
	}
}
