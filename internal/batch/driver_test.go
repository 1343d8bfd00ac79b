package batch

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/critique/internal/corpus"
	"github.com/jackzampolin/critique/internal/document"
	"github.com/jackzampolin/critique/internal/prompts"
	"github.com/jackzampolin/critique/internal/providers"
)

// writeDocx writes a minimal .docx with one paragraph per string.
func writeDocx(t *testing.T, dir, name string, paragraphs ...string) {
	t.Helper()

	var body strings.Builder
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString("<w:p><w:r><w:t>" + p + "</w:t></w:r></w:p>")
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := w.Write([]byte(body.String())); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// stubPDF stands in for the PDF decoder.
type stubPDF struct {
	err   error
	panic bool
}

func (s *stubPDF) Name() string         { return "pdf" }
func (s *stubPDF) Extensions() []string { return []string{".pdf"} }
func (s *stubPDF) Decode(_ context.Context, path string) (string, error) {
	if s.panic {
		panic("decoder exploded")
	}
	if s.err != nil {
		return "", s.err
	}
	return "pdf text", nil
}

type testRig struct {
	in, out string
	gen     *providers.MockGenerator
	pacer   *Pacer
	sleeps  []time.Duration
	logs    *bytes.Buffer
	driver  *Driver
}

func newRig(t *testing.T, pdf *stubPDF, responses ...providers.MockResponse) *testRig {
	t.Helper()

	root := t.TempDir()
	rig := &testRig{
		in:   filepath.Join(root, "papers"),
		out:  filepath.Join(root, "feedback"),
		gen:  providers.NewMockGenerator(responses...),
		logs: &bytes.Buffer{},
	}
	if err := os.MkdirAll(rig.in, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(rig.logs, nil))

	rig.pacer = NewPacer(DefaultDelay, 0, logger)
	rig.pacer.sleep = func(_ context.Context, d time.Duration) error {
		rig.sleeps = append(rig.sleeps, d)
		return nil
	}

	tmpl, err := prompts.NewTemplate(prompts.DefaultAssignment())
	if err != nil {
		t.Fatalf("NewTemplate: %v", err)
	}

	if pdf == nil {
		pdf = &stubPDF{}
	}
	extractor := document.NewExtractor(logger, document.NewDocxDecoder(), pdf)

	rig.driver, err = New(Config{
		InputDir:  rig.in,
		OutputDir: rig.out,
		Template:  tmpl,
		Extractor: extractor,
		Generator: rig.gen,
		Pacer:     rig.pacer,
		Logger:    logger,
		Now:       func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return rig
}

func (r *testRig) outputs(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(r.out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func (r *testRig) readDiagnostic(t *testing.T, name string) Diagnostic {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(r.out, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	var d Diagnostic
	if err := yaml.Unmarshal(data, &d); err != nil {
		t.Fatalf("parse %s: %v\n%s", name, err, data)
	}
	return d
}

func assertCounts(t *testing.T, s *Summary, total, succeeded, errored, skipped int) {
	t.Helper()
	if s.Total != total || s.Succeeded != succeeded || s.Errored != errored || s.Skipped != skipped {
		t.Errorf("summary = total %d, succeeded %d, errored %d, skipped %d; want %d/%d/%d/%d",
			s.Total, s.Succeeded, s.Errored, s.Skipped, total, succeeded, errored, skipped)
	}
}

func TestRun_DocxAndUnsupported(t *testing.T) {
	rig := newRig(t, nil)
	writeDocx(t, rig.in, "jdoe_12345_67890_Essay.docx", "", "  ", "Dungy asks what counts as nature.", "My driving question.")
	writeFile(t, rig.in, "notes.txt", "not a paper")
	writeFile(t, rig.in, ".DS_Store", "hidden")

	summary, err := rig.driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	assertCounts(t, summary, 2, 1, 0, 1)
	if got := rig.outputs(t); len(got) != 1 || got[0] != "jdoe_feedback.txt" {
		t.Fatalf("outputs = %v, want [jdoe_feedback.txt]", got)
	}

	data, _ := os.ReadFile(filepath.Join(rig.out, "jdoe_feedback.txt"))
	if string(data) != "mock feedback" {
		t.Errorf("feedback = %q", data)
	}

	sent := rig.gen.Prompts()
	if len(sent) != 1 {
		t.Fatalf("expected one generation call, got %d", len(sent))
	}
	for _, want := range []string{"Dear jdoe,", "Dungy asks what counts as nature.\n\nMy driving question."} {
		if !strings.Contains(sent[0], want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	// The success came first, so one pause before the next file.
	if len(rig.sleeps) != 1 || rig.sleeps[0] != DefaultDelay {
		t.Errorf("sleeps = %v, want [%v]", rig.sleeps, DefaultDelay)
	}
}

func TestRun_EmptyResponse(t *testing.T) {
	rig := newRig(t, nil, providers.MockResponse{Result: &providers.Result{Outcome: providers.OutcomeEmpty}})
	writeDocx(t, rig.in, "asmith_essay.docx", "Text.")

	summary, err := rig.driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	assertCounts(t, summary, 1, 0, 1, 0)
	if got := rig.outputs(t); len(got) != 1 || got[0] != "asmith_ERROR_EmptyResponse.txt" {
		t.Fatalf("outputs = %v", got)
	}
	d := rig.readDiagnostic(t, "asmith_ERROR_EmptyResponse.txt")
	if d.Category != CategoryEmptyResponse || d.File != "asmith_essay.docx" || d.Student != "asmith" {
		t.Errorf("unexpected diagnostic: %+v", d)
	}
	if !strings.Contains(d.Message, "empty response") {
		t.Errorf("message = %q", d.Message)
	}
	if len(rig.sleeps) != 0 {
		t.Errorf("no pause expected after a failure, got %v", rig.sleeps)
	}
}

func TestRun_Blocked(t *testing.T) {
	rig := newRig(t, nil, providers.MockResponse{Result: &providers.Result{
		Outcome:     providers.OutcomeBlocked,
		BlockReason: "SAFETY",
		SafetyRatings: []providers.SafetyRating{
			{Category: "HARM_CATEGORY_HARASSMENT", Probability: "HIGH", Blocked: true},
		},
	}})
	writeDocx(t, rig.in, "kli_essay.docx", "Text.")

	summary, err := rig.driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	assertCounts(t, summary, 1, 0, 1, 0)
	d := rig.readDiagnostic(t, "kli_ERROR_FeedbackBlockedOrEmpty.txt")
	if d.BlockReason != "SAFETY" || len(d.SafetyRatings) != 1 || !d.SafetyRatings[0].Blocked {
		t.Errorf("unexpected diagnostic: %+v", d)
	}
	if !d.Time.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Time = %v", d.Time)
	}
}

func TestRun_APICallFailed(t *testing.T) {
	rig := newRig(t, nil, providers.MockResponse{Err: &providers.APIError{
		Provider:   "mock",
		StatusCode: 500,
		Message:    "internal",
	}})
	writeDocx(t, rig.in, "bo_essay.docx", "Text.")

	summary, err := rig.driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	assertCounts(t, summary, 1, 0, 1, 0)
	d := rig.readDiagnostic(t, "bo_ERROR_API_Call_Failed.txt")
	if d.StatusCode != 500 || !strings.Contains(d.Error, "internal") || d.RequestID == "" {
		t.Errorf("unexpected diagnostic: %+v", d)
	}
}

func TestRun_RateLimitDrainsLimiter(t *testing.T) {
	rig := newRig(t, nil, providers.MockResponse{Err: &providers.APIError{
		Provider:   "mock",
		StatusCode: 429,
		RetryAfter: time.Millisecond,
	}})
	rig.pacer.limiter = providers.NewRateLimiter(600)
	writeDocx(t, rig.in, "bo_essay.docx", "Text.")

	if _, err := rig.driver.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	status := rig.pacer.limiter.Status()
	if status.Last429Time.IsZero() {
		t.Error("limiter should have recorded the 429")
	}
	if status.TotalConsumed != 1 {
		t.Errorf("TotalConsumed = %d, want 1", status.TotalConsumed)
	}
}

func TestRun_ExtractionFailure(t *testing.T) {
	pdf := &stubPDF{err: &document.ExtractError{Path: "x.pdf", Kind: document.ErrPasswordProtected}}
	rig := newRig(t, pdf)
	writeFile(t, rig.in, "locked_essay.pdf", "%PDF")

	summary, err := rig.driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	assertCounts(t, summary, 1, 0, 1, 0)
	if rig.gen.RequestCount() != 0 {
		t.Error("generator must not be called when extraction fails")
	}
	d := rig.readDiagnostic(t, "locked_ERROR_File_Processing.txt")
	if d.Reason != "password_protected" {
		t.Errorf("Reason = %q", d.Reason)
	}
}

func TestRun_PanicIsContained(t *testing.T) {
	rig := newRig(t, &stubPDF{panic: true})
	writeFile(t, rig.in, "a_essay.pdf", "%PDF")
	writeDocx(t, rig.in, "b_essay.docx", "Text.")

	summary, err := rig.driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	assertCounts(t, summary, 2, 1, 1, 0)
	d := rig.readDiagnostic(t, "a_ERROR_File_Processing.txt")
	if d.Reason != "unexpected" || !strings.Contains(d.Error, "decoder exploded") {
		t.Errorf("unexpected diagnostic: %+v", d)
	}
	if _, err := os.Stat(filepath.Join(rig.out, "b_feedback.txt")); err != nil {
		t.Errorf("second file should still be processed: %v", err)
	}
}

func TestRun_PausesOnlyBetweenSuccesses(t *testing.T) {
	ok := providers.MockResponse{Result: &providers.Result{Outcome: providers.OutcomeGenerated, Text: "letter"}}
	empty := providers.MockResponse{Result: &providers.Result{Outcome: providers.OutcomeEmpty}}
	rig := newRig(t, nil, ok, empty, ok, ok)
	for _, name := range []string{"a_1.docx", "b_1.docx", "c_1.docx", "d_1.docx"} {
		writeDocx(t, rig.in, name, "Text.")
	}

	summary, err := rig.driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	assertCounts(t, summary, 4, 3, 1, 0)
	// After a (success), c (success); none after b (empty) or d (last file).
	if len(rig.sleeps) != 2 {
		t.Errorf("sleeps = %v, want 2 pauses", rig.sleeps)
	}
}

func TestRun_EmptyCorpus(t *testing.T) {
	rig := newRig(t, nil)

	summary, err := rig.driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	assertCounts(t, summary, 0, 0, 0, 0)
	if _, err := os.Stat(rig.out); err != nil {
		t.Errorf("output folder should be created: %v", err)
	}
}

func TestRun_MissingInput(t *testing.T) {
	rig := newRig(t, nil)
	if err := os.RemoveAll(rig.in); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := rig.driver.Run(context.Background()); !errors.Is(err, corpus.ErrInputDirMissing) {
		t.Fatalf("expected ErrInputDirMissing, got %v", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	rig := newRig(t, nil)
	writeDocx(t, rig.in, "a_1.docx", "Text.")
	writeDocx(t, rig.in, "b_1.docx", "Text.")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := rig.driver.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !summary.Interrupted || summary.Unprocessed != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if rig.gen.RequestCount() != 0 {
		t.Error("no calls expected after cancellation")
	}
}

func TestNew_Validates(t *testing.T) {
	if _, err := New(Config{InputDir: "in", OutputDir: "out"}); err == nil {
		t.Error("expected error without template and generator")
	}
}

func TestSummaryReport(t *testing.T) {
	var buf bytes.Buffer
	(&Summary{InputDir: "papers", OutputDir: "feedback", Total: 3, Succeeded: 1, Errored: 1, Skipped: 1}).Report(&buf)

	out := buf.String()
	for _, want := range []string{
		"Total files found in 'papers': 3",
		"Successfully generated feedback for: 1 files",
		"Files resulting in errors: 1",
		"Unsupported files skipped: 1",
		"saved in the 'feedback' folder",
		"REVIEW AND EDIT EACH feedback file",
		"student's actual name",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "interrupted") {
		t.Error("uninterrupted run should not mention interruption")
	}
}
