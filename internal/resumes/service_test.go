package resumes

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"resume-feedback/internal/feedback"
)

func TestUploadSizeBoundary(t *testing.T) {
	svc, _, q := newTestService(t)
	ctx := context.Background()

	exact := pdfBytes(MaxUploadBytes)
	res, err := svc.Upload(ctx, "user-1", UploadFile{Name: "cv.pdf", Size: int64(len(exact)), Body: bytes.NewReader(exact)})
	if err != nil {
		t.Fatalf("exact 5 MiB upload: %v", err)
	}
	if res.SizeBytes != MaxUploadBytes || res.Status != StatusPending {
		t.Fatalf("got %+v", res)
	}

	over := pdfBytes(MaxUploadBytes + 1)
	if _, err := svc.Upload(ctx, "user-1", UploadFile{Name: "cv.pdf", Size: int64(len(over)), Body: bytes.NewReader(over)}); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("declared oversize: %v", err)
	}
	// The declared size can lie; the body is counted too.
	if _, err := svc.Upload(ctx, "user-1", UploadFile{Name: "cv.pdf", Size: 10, Body: bytes.NewReader(over)}); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("undeclared oversize: %v", err)
	}

	if got := q.messages(); len(got) != 1 || got[0].ResumeID != res.ID || got[0].Attempt != 0 {
		t.Fatalf("queued = %+v", got)
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	svc, repo, q := newTestService(t)
	for _, name := range []string{"cv.docx", "cv.pdf.exe", "cv", ""} {
		_, err := svc.Upload(context.Background(), "user-1", UploadFile{Name: name, Size: 4, Body: bytes.NewReader([]byte("data"))})
		if !errors.Is(err, ErrNotPDF) && !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%q: got %v", name, err)
		}
	}
	if _, err := svc.Upload(context.Background(), "user-1", UploadFile{Name: "CV.PDF", Size: 8, Body: bytes.NewReader([]byte("%PDF-1.4"))}); err != nil {
		t.Fatalf("upper-case extension: %v", err)
	}
	items, _ := repo.ListByUser(context.Background(), "user-1", 0, 0)
	if len(items) != 1 || len(q.messages()) != 1 {
		t.Fatalf("items=%d queued=%d", len(items), len(q.messages()))
	}
}

func TestUploadChecksContentNotLabel(t *testing.T) {
	svc, repo, q := newTestService(t)
	ctx := context.Background()

	text := []byte("plain notes, not a document")
	_, err := svc.Upload(ctx, "user-1", UploadFile{Name: "notes.txt", DisplayName: "cv.pdf", Size: int64(len(text)), Body: bytes.NewReader(text)})
	if !errors.Is(err, ErrNotPDF) {
		t.Fatalf("text file labelled cv.pdf: %v", err)
	}
	_, err = svc.Upload(ctx, "user-1", UploadFile{Name: "renamed.pdf", Size: int64(len(text)), Body: bytes.NewReader(text)})
	if !errors.Is(err, ErrNotPDF) {
		t.Fatalf("text file named .pdf: %v", err)
	}

	pdf := pdfBytes(64)
	res, err := svc.Upload(ctx, "user-1", UploadFile{Name: "cv.pdf", DisplayName: "My Resume", Size: int64(len(pdf)), Body: bytes.NewReader(pdf)})
	if err != nil {
		t.Fatalf("pdf with display label: %v", err)
	}
	if res.FileName != "My Resume" || res.MimeType != pdfMimeType || res.SizeBytes != 64 {
		t.Fatalf("got %+v", res)
	}
	items, _ := repo.ListByUser(ctx, "user-1", 0, 0)
	if len(items) != 1 || len(q.messages()) != 1 {
		t.Fatalf("items=%d queued=%d", len(items), len(q.messages()))
	}
}

func TestOwnerIsolation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	res, err := svc.Upload(ctx, "alice", UploadFile{Name: "alice.pdf", Size: 8, Body: bytes.NewReader([]byte("%PDF-1.4"))})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if _, err := svc.Get(ctx, "bob", res.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("bob get: %v", err)
	}
	if err := svc.Delete(ctx, "bob", res.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("bob delete: %v", err)
	}
	if _, err := svc.Reanalyze(ctx, "bob", res.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("bob reanalyze: %v", err)
	}
	list, err := svc.List(ctx, "bob", 0, 0)
	if err != nil || len(list) != 0 {
		t.Fatalf("bob list = %v, %v", list, err)
	}
	if got, err := svc.Get(ctx, "alice", res.ID); err != nil || got.ID != res.ID {
		t.Fatalf("alice get = %+v, %v", got, err)
	}
}

func TestListNewestFirstWithPaging(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		res, err := svc.Upload(ctx, "user-1", UploadFile{Name: "cv.pdf", Size: 8, Body: bytes.NewReader([]byte("%PDF-1.4"))})
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
		ids = append(ids, res.ID)
	}
	list, err := svc.List(ctx, "user-1", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].ID != ids[2] || list[2].ID != ids[0] {
		t.Fatalf("order = %v", list)
	}
	page, _ := svc.List(ctx, "user-1", 1, 1)
	if len(page) != 1 || page[0].ID != ids[1] {
		t.Fatalf("page = %v", page)
	}
	if ClampLimit(500) != MaxListLimit || ClampLimit(0) != DefaultListLimit || ClampLimit(7) != 7 {
		t.Fatal("ClampLimit")
	}
}

func TestDeleteToleratesFileErrors(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	res, err := svc.Upload(ctx, "user-1", UploadFile{Name: "cv.pdf", Size: 8, Body: bytes.NewReader([]byte("%PDF-1.4"))})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	svc.Store = failingDeleteStore{}
	if err := svc.Delete(ctx, "user-1", res.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, res.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("record still present: %v", err)
	}
}

func TestDeleteRemovesFile(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	res, err := svc.Upload(ctx, "user-1", UploadFile{Name: "cv.pdf", Size: 8, Body: bytes.NewReader([]byte("%PDF-1.4"))})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := svc.Delete(ctx, "user-1", res.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Store.Open(ctx, res.StorageKey); err == nil {
		t.Fatal("file still present")
	}
}

func TestReanalyzeOnlyFromTerminal(t *testing.T) {
	svc, repo, q := newTestService(t)
	ctx := context.Background()
	res, err := svc.Upload(ctx, "user-1", UploadFile{Name: "cv.pdf", Size: 8, Body: bytes.NewReader([]byte("%PDF-1.4"))})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := svc.Reanalyze(ctx, "user-1", res.ID); !errors.Is(err, ErrAnalysisInFlight) {
		t.Fatalf("pending reanalyze: %v", err)
	}

	rec := feedback.Record{OverallScore: 80, ATSScore: 70, Strengths: []string{"Go"}}
	if err := repo.SaveFeedback(ctx, res.ID, rec, time.Now()); err != nil {
		t.Fatalf("save feedback: %v", err)
	}
	again, err := svc.Reanalyze(ctx, "user-1", res.ID)
	if err != nil {
		t.Fatalf("reanalyze: %v", err)
	}
	if again.Status != StatusPending || again.OverallScore != nil || again.AnalyzedAt != nil || len(again.Strengths) != 0 {
		t.Fatalf("after reset = %+v", again)
	}
	if got := q.messages(); len(got) != 2 || got[1].ResumeID != res.ID {
		t.Fatalf("queued = %+v", got)
	}
}

func TestUploadEnqueueFailureMarksFailed(t *testing.T) {
	svc, _, q := newTestService(t)
	q.err = errors.New("queue down")
	res, err := svc.Upload(context.Background(), "user-1", UploadFile{Name: "cv.pdf", Size: 8, Body: bytes.NewReader([]byte("%PDF-1.4"))})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.Status != StatusFailed || res.AnalyzedAt == nil {
		t.Fatalf("got %+v", res)
	}
	if len(res.Weaknesses) != 1 || res.Weaknesses[0] != "Analysis failed: could not schedule analysis" {
		t.Fatalf("weaknesses = %v", res.Weaknesses)
	}
}
