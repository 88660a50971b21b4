package workers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/fluencycoach/internal/analysis"
	"github.com/nikhilbhutani/fluencycoach/internal/assessment"
	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
	"github.com/nikhilbhutani/fluencycoach/internal/models"
	"github.com/nikhilbhutani/fluencycoach/internal/queue"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeAnalyzer struct {
	got analysis.AudioRequest
	err error
}

func (f *fakeAnalyzer) AnalyzeAudio(_ context.Context, req analysis.AudioRequest) (*analysis.Result, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &analysis.Result{Report: &fluency.Report{ConfidenceScore: 77, OverallRating: fluency.RatingGood}}, nil
}

type fakeStore struct {
	a          *models.Assessment
	processing bool
	failed     string
}

func (f *fakeStore) Lookup(_ context.Context, id uuid.UUID) (*models.Assessment, error) {
	if f.a == nil || f.a.ID != id {
		return nil, assessment.ErrNotFound
	}
	return f.a, nil
}

func (f *fakeStore) MarkProcessing(context.Context, uuid.UUID) error {
	f.processing = true
	return nil
}

func (f *fakeStore) Fail(_ context.Context, _ uuid.UUID, reason string) error {
	f.failed = reason
	return nil
}

type fakeObjects struct{ data map[string][]byte }

func (f *fakeObjects) Upload(_ context.Context, _, path string, r io.Reader, _ string) error {
	b, err := io.ReadAll(r)
	f.data[path] = b
	return err
}

func (f *fakeObjects) Download(_ context.Context, _, path string) (io.ReadCloser, error) {
	b, ok := f.data[path]
	if !ok {
		return nil, errors.New("download failed (404)")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeObjects) Delete(_ context.Context, _, path string) error {
	delete(f.data, path)
	return nil
}

func setup(t *testing.T, analyzerErr error) (*AnalysisWorker, *fakeAnalyzer, *fakeStore, *asynq.Task) {
	t.Helper()
	id := uuid.New()
	store := &fakeStore{a: &models.Assessment{
		ID: id, Status: models.AssessmentPending, Title: "Your weekend",
		StoragePath: "anonymous/" + id.String() + ".wav", Filename: "take.wav",
	}}
	objects := &fakeObjects{data: map[string][]byte{store.a.StoragePath: []byte("RIFF")}}
	an := &fakeAnalyzer{err: analyzerErr}
	task, err := queue.NewTask(queue.TypeAnalysisRun, queue.AnalysisRunPayload{AssessmentID: id.String()})
	if err != nil {
		t.Fatal(err)
	}
	return NewAnalysisWorker(an, store, objects, "recordings", discard), an, store, task
}

func TestAnalysisWorker_Success(t *testing.T) {
	w, an, store, task := setup(t, nil)

	if err := w.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if !store.processing || store.failed != "" {
		t.Errorf("store = %+v", store)
	}
	if string(an.got.Audio) != "RIFF" || an.got.Challenge.Title != "Your weekend" {
		t.Errorf("analyzer request = %+v", an.got)
	}
	if an.got.AssessmentID == nil || *an.got.AssessmentID != store.a.ID {
		t.Errorf("AssessmentID = %v", an.got.AssessmentID)
	}
}

func TestAnalysisWorker_PermanentFailure(t *testing.T) {
	w, _, store, task := setup(t, analysis.ErrOffTopic)

	err := w.ProcessTask(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) || !errors.Is(err, analysis.ErrOffTopic) {
		t.Fatalf("err = %v, want off-topic with SkipRetry", err)
	}
	if store.failed == "" {
		t.Error("assessment not marked failed")
	}
}

func TestAnalysisWorker_TransientFailureOnLastAttempt(t *testing.T) {
	// Without asynq retry metadata the attempt counts as the last one.
	w, _, store, task := setup(t, errors.New("complete assessment: connection reset"))

	err := w.ProcessTask(context.Background(), task)
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err = %v, want retryable error", err)
	}
	if store.failed == "" {
		t.Error("assessment left in processing")
	}
}

func TestAnalysisWorker_BadPayload(t *testing.T) {
	w, _, _, _ := setup(t, nil)
	for _, payload := range []string{`not json`, `{"assessment_id":"nope"}`, `{"assessment_id":"` + uuid.NewString() + `"}`} {
		err := w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeAnalysisRun, []byte(payload)))
		if !errors.Is(err, asynq.SkipRetry) {
			t.Errorf("payload %s: err = %v, want SkipRetry", payload, err)
		}
	}
}

func TestAnalysisWorker_AlreadyCompleted(t *testing.T) {
	w, an, store, task := setup(t, nil)
	store.a.Status = models.AssessmentCompleted

	if err := w.ProcessTask(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	if store.processing || an.got.Audio != nil {
		t.Error("completed assessment was processed again")
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(errors.New("timeout")) {
		t.Error("generic error reported permanent")
	}
	if !Permanent(&fluency.MalformedTimelineError{}) {
		t.Error("malformed timeline not permanent")
	}
}
