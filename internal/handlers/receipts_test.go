package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/receipt-tracker/backend/internal/ai"
	"example.com/receipt-tracker/backend/internal/auth"
	"example.com/receipt-tracker/backend/internal/models"
	"example.com/receipt-tracker/backend/internal/receipts"
	"example.com/receipt-tracker/backend/internal/repository"
)

type fakeIngester struct {
	names    []string
	existing int
	result   receipts.BatchResult
}

func (f *fakeIngester) Ingest(_ context.Context, files []receipts.File, existing []models.Receipt) receipts.BatchResult {
	for _, file := range files {
		f.names = append(f.names, file.Name)
	}
	f.existing = len(existing)
	return f.result
}

type countingObserver struct {
	batches  int
	outcomes map[string]int
}

func (o *countingObserver) ObserveBatch(int, float64) {
	o.batches++
}

func (o *countingObserver) ObserveFile(outcome, _ string) {
	if o.outcomes == nil {
		o.outcomes = make(map[string]int)
	}
	o.outcomes[outcome]++
}

type recordingLogs struct {
	logs []repository.ExtractionLog
}

func (r *recordingLogs) LogBatch(_ context.Context, logs []repository.ExtractionLog) error {
	r.logs = append(r.logs, logs...)
	return nil
}

func multipartRequest(t *testing.T, names ...string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, name := range names {
		part, err := writer.CreateFormFile(uploadField, name)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		_, _ = part.Write([]byte("%PDF-1.4 " + name))
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/receipts/upload", &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func uploadResult() receipts.BatchResult {
	return receipts.BatchResult{
		Added:      []models.Receipt{testReceipt("new", "2024-02-01", 120, "Home")},
		Duplicates: []receipts.Duplicate{{FileName: "b.pdf", Data: testReceipt("dup", "2024-01-01", 80, "Home")}},
		Errors:     []receipts.FileError{{FileName: "c.pdf", Kind: receipts.ErrorKindRateLimit, Message: "Extraction quota exceeded, try again later"}},
	}
}

// TestUploadPersistsAdded проверяет сохранение новых чеков и ответ с итогами.
func TestUploadPersistsAdded(t *testing.T) {
	store := newMemoryStore(testReceipt("old", "2024-01-10", 50, "Home"))
	ingester := &fakeIngester{result: uploadResult()}
	observer := &countingObserver{}
	handler := NewReceiptHandler(singleResolver{store: store}, ingester, 10, observer, nil, "gemini", "gemini-2.0-flash", nil)

	e := newTestEcho()
	rec := httptest.NewRecorder()
	c := e.NewContext(multipartRequest(t, "a.pdf", "b.pdf", "c.pdf"), rec)

	if err := handler.Upload(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var response UploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("expected valid json, got %v", err)
	}
	if !response.Persisted || len(response.Added) != 1 || len(response.Errors) != 1 {
		t.Fatalf("unexpected response %+v", response)
	}
	if !strings.Contains(response.Summary, "c.pdf") {
		t.Fatalf("expected summary to name failed file, got %q", response.Summary)
	}

	if strings.Join(ingester.names, ",") != "a.pdf,b.pdf,c.pdf" || ingester.existing != 1 {
		t.Fatalf("unexpected ingest call %v (existing=%d)", ingester.names, ingester.existing)
	}

	stored, _ := store.List(context.Background())
	if len(stored) != 2 {
		t.Fatalf("expected added receipt to be stored, got %d", len(stored))
	}

	if observer.batches != 1 || observer.outcomes["added"] != 1 || observer.outcomes["duplicate"] != 1 || observer.outcomes["error"] != 1 {
		t.Fatalf("unexpected metrics %+v", observer)
	}
}

// TestUploadLogsExtractionsForUsers проверяет журнал извлечений только для пользователей.
func TestUploadLogsExtractionsForUsers(t *testing.T) {
	logs := &recordingLogs{}
	handler := NewReceiptHandler(singleResolver{store: newMemoryStore()}, &fakeIngester{result: uploadResult()}, 10, nil, logs, "gemini", "gemini-2.0-flash", nil)
	e := newTestEcho()

	guest := e.NewContext(multipartRequest(t, "a.pdf"), httptest.NewRecorder())
	if err := handler.Upload(guest); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(logs.logs) != 0 {
		t.Fatalf("expected no logs for guest, got %d", len(logs.logs))
	}

	userID := uuid.New()
	user := e.NewContext(multipartRequest(t, "a.pdf", "b.pdf", "c.pdf"), httptest.NewRecorder())
	user.Set(auth.ContextProfileIDKey, userID)
	if err := handler.Upload(user); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(logs.logs) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(logs.logs))
	}

	failed := 0
	for _, entry := range logs.logs {
		if entry.UserID != userID || entry.Provider != "gemini" {
			t.Fatalf("unexpected log entry %+v", entry)
		}
		if !entry.Success {
			failed++
			if entry.ErrorKind == nil || *entry.ErrorKind != string(receipts.ErrorKindRateLimit) || entry.FileName != "c.pdf" {
				t.Fatalf("unexpected failed entry %+v", entry)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("expected one failed entry, got %d", failed)
	}
}

type gatedExtractor struct {
	arrived chan struct{}
	release chan struct{}
}

func (g *gatedExtractor) ExtractReceipt(context.Context, ai.Document) (ai.Extraction, error) {
	g.arrived <- struct{}{}
	<-g.release
	return ai.Extraction{
		Date:            "2024-03-01",
		Time:            "08:30",
		Amount:          210,
		Currency:        "INR",
		PickupLocation:  "Home",
		DropoffLocation: "Airport",
	}, nil
}

// TestConcurrentUploadsStoreTripOnce проверяет, что параллельные загрузки одной поездки сохраняют ее один раз.
func TestConcurrentUploadsStoreTripOnce(t *testing.T) {
	store := newMemoryStore()
	extractor := &gatedExtractor{arrived: make(chan struct{}, 2), release: make(chan struct{})}
	pipeline := receipts.NewPipeline(extractor, receipts.NewTripClassifier([]string{"office"}), receipts.PipelineConfig{MaxFileBytes: 1024})
	handler := NewReceiptHandler(singleResolver{store: store}, pipeline, 10, nil, nil, "", "", nil)
	e := newTestEcho()

	requests := []*http.Request{multipartRequest(t, "trip.pdf"), multipartRequest(t, "trip-copy.pdf")}
	responses := make([]UploadResponse, len(requests))

	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			if err := handler.Upload(e.NewContext(req, rec)); err != nil {
				t.Errorf("expected no error, got %v", err)
				return
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &responses[i]); err != nil {
				t.Errorf("expected valid json, got %v", err)
			}
		}()
	}

	<-extractor.arrived
	<-extractor.arrived
	close(extractor.release)
	wg.Wait()

	stored, _ := store.List(context.Background())
	if len(stored) != 1 {
		t.Fatalf("expected trip stored once, got %d", len(stored))
	}

	added := len(responses[0].Added) + len(responses[1].Added)
	duplicates := len(responses[0].Duplicates) + len(responses[1].Duplicates)
	if added != 1 || duplicates != 1 {
		t.Fatalf("expected one added and one duplicate, got %d and %d", added, duplicates)
	}
	if !responses[0].Persisted || !responses[1].Persisted {
		t.Fatalf("expected both uploads to report persisted, got %+v", responses)
	}
}

// TestUploadPersistFailureStillResponds проверяет, что ошибка записи не ломает ответ.
func TestUploadPersistFailureStillResponds(t *testing.T) {
	store := newMemoryStore()
	store.upsertErr = errors.New("disk full")
	handler := NewReceiptHandler(singleResolver{store: store}, &fakeIngester{result: uploadResult()}, 10, nil, nil, "", "", nil)

	e := newTestEcho()
	rec := httptest.NewRecorder()
	if err := handler.Upload(e.NewContext(multipartRequest(t, "a.pdf"), rec)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var response UploadResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &response)
	if rec.Code != http.StatusOK || response.Persisted {
		t.Fatalf("expected unpersisted 200 response, got %d %+v", rec.Code, response)
	}
}

// TestUploadRejectsBadRequests проверяет пустую и слишком большую загрузку.
func TestUploadRejectsBadRequests(t *testing.T) {
	handler := NewReceiptHandler(singleResolver{store: newMemoryStore()}, &fakeIngester{}, 2, nil, nil, "", "", nil)
	e := newTestEcho()

	rec := httptest.NewRecorder()
	_ = handler.Upload(e.NewContext(multipartRequest(t), rec))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty upload, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	_ = handler.Upload(e.NewContext(multipartRequest(t, "a.pdf", "b.pdf", "c.pdf"), rec))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too many files, got %d", rec.Code)
	}
}

// TestListSortsReceipts проверяет сортировку истории.
func TestListSortsReceipts(t *testing.T) {
	store := newMemoryStore(
		testReceipt("mid", "2024-02-02", 200, "zebra"),
		testReceipt("low", "2024-02-01", 50, "Apple"),
		testReceipt("high", "2024-03-01", 900, "mango"),
	)
	handler := NewReceiptHandler(singleResolver{store: store}, &fakeIngester{}, 10, nil, nil, "", "", nil)
	e := newTestEcho()

	cases := []struct {
		query string
		want  string
	}{
		{query: "?sort=amount&direction=asc", want: "low,mid,high"},
		{query: "?sort=pickup_location&direction=asc", want: "low,high,mid"},
		{query: "", want: "high,mid,low"},
		{query: "?month=2024-02&sort=amount&direction=desc", want: "mid,low"},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/receipts"+tc.query, nil), rec)
		if err := handler.List(c); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var response ReceiptListResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
			t.Fatalf("expected valid json, got %v", err)
		}

		ids := make([]string, 0, len(response.Receipts))
		for _, receipt := range response.Receipts {
			ids = append(ids, receipt.ID)
		}
		if got := strings.Join(ids, ","); got != tc.want {
			t.Fatalf("query %q: expected %s, got %s", tc.query, tc.want, got)
		}
	}

	rec := httptest.NewRecorder()
	_ = handler.List(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/receipts?sort=currency", nil), rec))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort key, got %d", rec.Code)
	}
}

// TestDeleteReceipt проверяет удаление чека.
func TestDeleteReceipt(t *testing.T) {
	store := newMemoryStore(testReceipt("a", "2024-02-01", 10, "Home"))
	handler := NewReceiptHandler(singleResolver{store: store}, &fakeIngester{}, 10, nil, nil, "", "", nil)
	e := newTestEcho()

	for _, want := range []int{http.StatusNoContent, http.StatusNotFound} {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
		c.SetParamNames("id")
		c.SetParamValues("a")

		if err := handler.Delete(c); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if rec.Code != want {
			t.Fatalf("expected %d, got %d", want, rec.Code)
		}
	}
}

// TestExportCSV проверяет выгрузку истории в CSV.
func TestExportCSV(t *testing.T) {
	store := newMemoryStore(
		testReceipt("a", "2024-02-01", 120.5, "Home, Block A"),
		testReceipt("b", "2024-02-03", 80, "Home"),
	)
	handler := NewReceiptHandler(singleResolver{store: store}, &fakeIngester{}, 10, nil, nil, "", "", nil)
	e := newTestEcho()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/receipts/export.csv?sort=date&direction=asc", nil), rec)
	if err := handler.ExportCSV(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,date,time,amount") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], `a,2024-02-01,09:00,120.50,INR,"Home, Block A"`) {
		t.Fatalf("unexpected first row %q", lines[1])
	}
	if !strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), "text/csv") {
		t.Fatalf("unexpected content type %q", rec.Header().Get(echo.HeaderContentType))
	}
}
