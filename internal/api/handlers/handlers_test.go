package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/fluencycoach/internal/analysis"
	"github.com/nikhilbhutani/fluencycoach/internal/assessment"
	"github.com/nikhilbhutani/fluencycoach/internal/coach"
	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
	"github.com/nikhilbhutani/fluencycoach/internal/models"
	"github.com/nikhilbhutani/fluencycoach/internal/multimodal/tts"
	"github.com/nikhilbhutani/fluencycoach/internal/queue"
)

type fakeAnalyzer struct {
	audio analysis.AudioRequest
	err   error
}

func (f *fakeAnalyzer) AnalyzeAudio(_ context.Context, req analysis.AudioRequest) (*analysis.Result, error) {
	f.audio = req
	if f.err != nil {
		return nil, f.err
	}
	id := uuid.New()
	return &analysis.Result{
		Report:       &fluency.Report{Text: "hello", ConfidenceScore: 88, OverallRating: fluency.RatingExcellent},
		AssessmentID: &id,
	}, nil
}

func (f *fakeAnalyzer) AnalyzeTranscript(_ context.Context, req analysis.TranscriptRequest) (*fluency.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fluency.Report{Text: req.Text, WordCount: len(strings.Fields(req.Text))}, nil
}

func multipartBody(t *testing.T, filename, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()
	return body, mw.FormDataContentType()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

func TestTranscribe(t *testing.T) {
	an := &fakeAnalyzer{}
	h := NewTranscribeHandler(an, 1<<20, nil)

	body, ct := multipartBody(t, "answer.mp3", "audio/mpeg", []byte("ID3"), map[string]string{"title": " My hometown "})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.Transcribe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var report fluency.Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.OverallRating != fluency.RatingExcellent {
		t.Errorf("report = %+v", report)
	}
	if an.audio.Challenge.Title != "My hometown" || an.audio.Filename != "answer.mp3" || string(an.audio.Audio) != "ID3" {
		t.Errorf("analyzer request = %+v", an.audio)
	}
	if rec.Header().Get("X-Assessment-ID") == "" || rec.Header().Get("X-Report-Cache") != "miss" {
		t.Errorf("headers = %v", rec.Header())
	}
}

func TestTranscribe_Validation(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		data        []byte
		status      int
	}{
		{"video rejected", "clip.mp4", "video/mp4", []byte("x"), http.StatusBadRequest},
		{"unknown extension", "notes.txt", "", []byte("x"), http.StatusBadRequest},
		{"extension fallback", "take.m4a", "application/octet-stream", []byte("x"), http.StatusOK},
		{"empty file", "take.wav", "audio/wav", nil, http.StatusBadRequest},
		{"too large", "take.wav", "audio/wav", bytes.Repeat([]byte("a"), 2048), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTranscribeHandler(&fakeAnalyzer{}, 1024, nil)
			body, ct := multipartBody(t, tt.filename, tt.contentType, tt.data, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			h.Transcribe(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestTranscribe_MissingFile(t *testing.T) {
	h := NewTranscribeHandler(&fakeAnalyzer{}, 1024, nil)
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	mw.WriteField("title", "x")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Transcribe(rec, req)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec) != "file is required" {
		t.Errorf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestTranscribe_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{analysis.ErrOffTopic, http.StatusUnprocessableEntity, coach.OffTopicMessage},
		{fmt.Errorf("%w: detected \"de\"", analysis.ErrUnsupportedLanguage), http.StatusUnprocessableEntity, ""},
		{&fluency.MalformedTimelineError{Index: 2, Word: "x", Reason: "overlaps"}, http.StatusUnprocessableEntity, ""},
		{fmt.Errorf("transcribe: %w", errors.New("openai: 500")), http.StatusBadGateway, ""},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, ""},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := NewTranscribeHandler(&fakeAnalyzer{err: tt.err}, 1<<20, nil)
			body, ct := multipartBody(t, "a.wav", "audio/wav", []byte("RIFF"), nil)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			h.Transcribe(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if msg := decodeError(t, rec); tt.msg != "" && msg != tt.msg {
				t.Errorf("message = %q, want %q", msg, tt.msg)
			}
		})
	}
}

type fakeCreator struct {
	created *models.Assessment
	failed  bool
}

func (f *fakeCreator) Create(_ context.Context, a *models.Assessment) error {
	f.created = a
	return nil
}

func (f *fakeCreator) Fail(context.Context, uuid.UUID, string) error {
	f.failed = true
	return nil
}

type fakeObjects struct{ paths []string }

func (f *fakeObjects) Upload(_ context.Context, _, path string, _ io.Reader, _ string) error {
	f.paths = append(f.paths, path)
	return nil
}

func (f *fakeObjects) Download(context.Context, string, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeObjects) Delete(context.Context, string, string) error { return nil }

type fakeQueue struct {
	payloads []queue.AnalysisRunPayload
	err      error
}

func (f *fakeQueue) EnqueueAnalysisRun(_ context.Context, p queue.AnalysisRunPayload) error {
	f.payloads = append(f.payloads, p)
	return f.err
}

func TestTranscribeAsync(t *testing.T) {
	store, objects, q := &fakeCreator{}, &fakeObjects{}, &fakeQueue{}
	h := NewTranscribeHandler(&fakeAnalyzer{}, 1<<20, &AsyncDeps{Store: store, Objects: objects, Bucket: "recordings", Queue: q})

	body, ct := multipartBody(t, "take.wav", "audio/wav", []byte("RIFF"), map[string]string{"level": "B2"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe/async", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.TranscribeAsync(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	json.NewDecoder(rec.Body).Decode(&resp)
	if store.created == nil || resp["assessment_id"] != store.created.ID.String() || resp["status"] != models.AssessmentPending {
		t.Fatalf("resp = %v created = %+v", resp, store.created)
	}
	if len(objects.paths) != 1 || objects.paths[0] != store.created.StoragePath {
		t.Errorf("uploaded %v, want %s", objects.paths, store.created.StoragePath)
	}
	if len(q.payloads) != 1 || q.payloads[0].AssessmentID != resp["assessment_id"] {
		t.Errorf("enqueued %v", q.payloads)
	}
	if store.created.Level != "B2" {
		t.Errorf("Level = %q", store.created.Level)
	}
}

func TestTranscribeAsync_QueueFailure(t *testing.T) {
	store := &fakeCreator{}
	h := NewTranscribeHandler(&fakeAnalyzer{}, 1<<20, &AsyncDeps{
		Store: store, Objects: &fakeObjects{}, Queue: &fakeQueue{err: errors.New("redis down")},
	})
	body, ct := multipartBody(t, "take.wav", "audio/wav", []byte("RIFF"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe/async", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.TranscribeAsync(rec, req)

	if rec.Code != http.StatusServiceUnavailable || !store.failed {
		t.Errorf("status = %d failed = %v", rec.Code, store.failed)
	}
}

func TestTranscribeAsync_NotConfigured(t *testing.T) {
	h := NewTranscribeHandler(&fakeAnalyzer{}, 1<<20, nil)
	rec := httptest.NewRecorder()
	h.TranscribeAsync(rec, httptest.NewRequest(http.MethodPost, "/api/v1/transcribe/async", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAnalyze(t *testing.T) {
	h := NewTranscribeHandler(&fakeAnalyzer{}, 1<<20, nil)

	rec := httptest.NewRecorder()
	h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(`{"text":"so um hello"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var report fluency.Report
	json.NewDecoder(rec.Body).Decode(&report)
	if report.WordCount != 3 {
		t.Errorf("WordCount = %d", report.WordCount)
	}

	for _, body := range []string{`{`, `{"text":"  "}`} {
		rec := httptest.NewRecorder()
		h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d", body, rec.Code)
		}
	}
}

type fakeReader struct {
	items []models.Assessment
	limit int
}

func (f *fakeReader) Get(_ context.Context, id uuid.UUID, _ *uuid.UUID) (*models.Assessment, error) {
	for i := range f.items {
		if f.items[i].ID == id {
			return &f.items[i], nil
		}
	}
	return nil, assessment.ErrNotFound
}

func (f *fakeReader) List(_ context.Context, _ *uuid.UUID, limit, _ int) ([]models.Assessment, error) {
	f.limit = limit
	return f.items, nil
}

func TestAssessments(t *testing.T) {
	known := models.Assessment{ID: uuid.New(), Status: models.AssessmentCompleted}
	store := &fakeReader{items: []models.Assessment{known}}
	h := NewAssessmentHandler(store)

	r := chi.NewRouter()
	r.Get("/assessments", h.List)
	r.Get("/assessments/{id}", h.Get)

	tests := []struct {
		path   string
		status int
	}{
		{"/assessments?limit=500", http.StatusOK},
		{"/assessments/" + known.ID.String(), http.StatusOK},
		{"/assessments/" + uuid.NewString(), http.StatusNotFound},
		{"/assessments/not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.status {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.status)
		}
	}
	if store.limit != 20 {
		t.Errorf("out-of-range limit not clamped: %d", store.limit)
	}
}

type fakeImprover struct {
	got coach.Challenge
	err error
}

func (f *fakeImprover) Improve(_ context.Context, text string, ch coach.Challenge) (string, error) {
	f.got = ch
	return strings.ReplaceAll(text, "um ", ""), f.err
}

type fakeTTS struct{ err error }

func (fakeTTS) Name() string { return "fake-tts" }

func (f fakeTTS) Synthesize(_ context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	voice := req.Voice
	if voice == "" {
		voice = tts.DefaultVoice
	}
	return &tts.SynthesisResult{Audio: []byte("mp3"), ContentType: "audio/mpeg", Format: "mp3", Voice: voice}, nil
}

func TestImprove(t *testing.T) {
	imp := &fakeImprover{}
	h := NewCoachHandler(imp, fakeTTS{})

	body := `{"text":"um I like it","title":"Hobbies","level":"B1","speak":true,"voice":"nova"}`
	rec := httptest.NewRecorder()
	h.Improve(rec, httptest.NewRequest(http.MethodPost, "/api/v1/improve", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp improveResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.ImprovedText != "I like it" || resp.Text != "um I like it" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.TTSSpeech == nil || resp.TTSSpeech.AudioContent != "bXAz" || resp.TTSSpeech.Voice != "nova" || resp.TTSSpeech.AudioFormat != "mp3" {
		t.Errorf("speech = %+v", resp.TTSSpeech)
	}
	if imp.got.Title != "Hobbies" || imp.got.Level != "B1" {
		t.Errorf("challenge = %+v", imp.got)
	}
}

func TestImprove_SpeechIsBestEffort(t *testing.T) {
	h := NewCoachHandler(&fakeImprover{}, fakeTTS{err: errors.New("tts down")})
	rec := httptest.NewRecorder()
	h.Improve(rec, httptest.NewRequest(http.MethodPost, "/api/v1/improve", strings.NewReader(`{"text":"hi","speak":true}`)))

	var resp improveResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if rec.Code != http.StatusOK || resp.TTSSpeech != nil {
		t.Errorf("status = %d speech = %+v", rec.Code, resp.TTSSpeech)
	}
}

func TestImprove_ProviderError(t *testing.T) {
	h := NewCoachHandler(&fakeImprover{err: errors.New("llm down")}, nil)
	rec := httptest.NewRecorder()
	h.Improve(rec, httptest.NewRequest(http.MethodPost, "/api/v1/improve", strings.NewReader(`{"text":"hi"}`)))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestSpeak(t *testing.T) {
	h := NewCoachHandler(&fakeImprover{}, fakeTTS{})

	rec := httptest.NewRecorder()
	h.Speak(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tts", strings.NewReader(`{"input":"hello"}`)))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "audio/mpeg" || rec.Body.String() != "mp3" {
		t.Errorf("status = %d type = %q body = %q", rec.Code, rec.Header().Get("Content-Type"), rec.Body.String())
	}

	for _, body := range []string{`{"input":""}`, `{"input":"hi","speed":9}`} {
		rec := httptest.NewRecorder()
		h.Speak(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tts", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d", body, rec.Code)
		}
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadyz(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"database": pingFunc(func(context.Context) error { return nil }),
		"redis":    pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}

	h = NewHealthHandler(nil)
	rec = httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("no checks: status = %d", rec.Code)
	}
}
