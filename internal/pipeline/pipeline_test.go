package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/citecheck/internal/cache"
	"github.com/dgallion1/citecheck/internal/extract"
	"github.com/dgallion1/citecheck/internal/pagetext"
	"github.com/dgallion1/citecheck/internal/pagetext/pdftest"
	"github.com/dgallion1/citecheck/internal/record"
	"github.com/dgallion1/citecheck/internal/verify"
)

var manualPages = []string{
	"Casino Management System Administrator Guide",
	"Chapter 1. Installation prerequisites are listed below.",
	"The system requires a minimum of 4GB RAM.",
	"To configure an Offer, open Marketing > Offers and press New.",
	"Blackout dates prevent offers from being redeemed on holidays.",
}

const ramQuote = "The system requires a minimum of 4GB RAM."

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func manual(t *testing.T) pagetext.PageMap {
	t.Helper()
	pm, err := pagetext.Build(pagetext.Texts(manualPages))
	if err != nil {
		t.Fatalf("build page map: %v", err)
	}
	return pm
}

func newTestPipeline(opts Options) *Pipeline {
	ix := pagetext.NewIndexer(nil, 0, false, quietLogger())
	v, err := verify.New(verify.Config{})
	if err != nil {
		panic(err)
	}
	return New(ix, v, opts, quietLogger())
}

func cand(page int, quote string) record.Candidate {
	return record.Candidate{
		Instruction: fmt.Sprintf("What does page %d say?", page),
		Output:      "It says something useful.",
		PageNumber:  page,
		SourceQuote: quote,
	}
}

// mixedBatch covers every outcome once, in a known order.
func mixedBatch() []record.Candidate {
	return []record.Candidate{
		cand(3, ramQuote),                                       // verified
		cand(3, "The system requires a minimum of 8GB RAM."),    // partial
		cand(5, ramQuote),                                       // page mismatch
		cand(1, "Completely unrelated sentence about bananas."), // not found
		cand(3, "4GB RAM"),                                      // too short
		cand(0, ramQuote),                                       // no page
	}
}

func TestProcessPages_StrictPolicy(t *testing.T) {
	p := newTestPipeline(Options{})
	res, err := p.ProcessPages(context.Background(), manual(t), mixedBatch())
	if err != nil {
		t.Fatalf("ProcessPages: %v", err)
	}

	want := record.Summary{Total: 6, Verified: 1, Partial: 1, Mismatched: 1, NotFound: 1, Rejected: 2, Filtered: 3, Kept: 1}
	if res.Summary != want {
		t.Fatalf("summary = %+v, want %+v", res.Summary, want)
	}
	if res.Summary.Accounted() != res.Summary.Total {
		t.Fatal("every candidate must be accounted for")
	}
	if len(res.Records) != 1 || res.Records[0].Status != record.StatusVerified || res.Records[0].PageNumber != 3 {
		t.Fatalf("unexpected kept records: %+v", res.Records)
	}
	if res.Pages != 5 {
		t.Errorf("expected 5 pages, got %d", res.Pages)
	}

	var indexes []int
	for _, r := range res.Rejections {
		indexes = append(indexes, r.Index)
	}
	if fmt.Sprint(indexes) != "[1 2 3 4 5]" {
		t.Fatalf("rejections out of order: %v", indexes)
	}
	if res.Rejections[1].Status != record.StatusPageMismatch {
		t.Errorf("filtered record should carry its status, got %q", res.Rejections[1].Status)
	}
	if res.Rejections[3].Status != "" || !strings.Contains(strings.Join(res.Rejections[3].Reasons, ";"), "shorter than 10") {
		t.Errorf("short quote should be rejected before verification: %+v", res.Rejections[3])
	}
}

func TestProcessPages_LenientPolicy(t *testing.T) {
	p := newTestPipeline(Options{Policy: record.PolicyLenient})
	res, err := p.ProcessPages(context.Background(), manual(t), mixedBatch())
	if err != nil {
		t.Fatalf("ProcessPages: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 kept records, got %d", len(res.Records))
	}
	if res.Records[0].Status != record.StatusVerified || res.Records[1].Status != record.StatusPartialMatch {
		t.Fatalf("unexpected statuses: %s, %s", res.Records[0].Status, res.Records[1].Status)
	}
	if res.Summary.Filtered != 2 || res.Summary.Kept != 2 {
		t.Fatalf("unexpected summary: %+v", res.Summary)
	}
}

func TestProcessPages_AuditKeepsEverythingVerified(t *testing.T) {
	p := newTestPipeline(Options{Policy: record.PolicyAudit})
	res, err := p.ProcessPages(context.Background(), manual(t), mixedBatch())
	if err != nil {
		t.Fatalf("ProcessPages: %v", err)
	}
	want := []record.Status{record.StatusVerified, record.StatusPartialMatch, record.StatusPageMismatch, record.StatusQuoteNotFound}
	if len(res.Records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(res.Records))
	}
	for i, s := range want {
		if res.Records[i].Status != s {
			t.Errorf("record %d: status %s, want %s", i, res.Records[i].Status, s)
		}
	}
	if res.Records[2].FoundOnPage != 3 {
		t.Errorf("expected mismatch to point at page 3, got %d", res.Records[2].FoundOnPage)
	}
	if res.Summary.Rejected != 2 || res.Summary.Filtered != 0 {
		t.Fatalf("unexpected summary: %+v", res.Summary)
	}
}

func TestProcessPages_PreservesInputOrder(t *testing.T) {
	var cands []record.Candidate
	for i := 0; i < 200; i++ {
		c := cand(3, ramQuote)
		c.Instruction = fmt.Sprintf("question %03d", i)
		cands = append(cands, c)
	}
	p := newTestPipeline(Options{Concurrency: 8})
	res, err := p.ProcessPages(context.Background(), manual(t), cands)
	if err != nil {
		t.Fatalf("ProcessPages: %v", err)
	}
	if len(res.Records) != len(cands) {
		t.Fatalf("expected %d records, got %d", len(cands), len(res.Records))
	}
	for i, r := range res.Records {
		if want := fmt.Sprintf("question %03d", i); r.Instruction != want {
			t.Fatalf("record %d: got %q, want %q", i, r.Instruction, want)
		}
	}
}

func TestProcessPages_RequireSection(t *testing.T) {
	p := newTestPipeline(Options{RequireSection: true})
	res, err := p.ProcessPages(context.Background(), manual(t), []record.Candidate{cand(3, ramQuote)})
	if err != nil {
		t.Fatalf("ProcessPages: %v", err)
	}
	if res.Summary.Rejected != 1 {
		t.Fatalf("expected missing section to be rejected, got %+v", res.Summary)
	}
}

func TestProcessPages_EmptyBatch(t *testing.T) {
	p := newTestPipeline(Options{})
	res, err := p.ProcessPages(context.Background(), manual(t), nil)
	if err != nil {
		t.Fatalf("ProcessPages: %v", err)
	}
	if res.Summary.Total != 0 || res.Records == nil || res.Rejections == nil {
		t.Fatalf("expected empty non-nil result, got %+v", res)
	}
}

func TestProcessDecoded_ProblemsAreRejected(t *testing.T) {
	p := newTestPipeline(Options{Policy: record.PolicyAudit})
	decoded := []extract.Decoded{
		{Candidate: cand(3, ramQuote), Problems: []string{"/page_number: expected integer"}},
		{Candidate: cand(3, ramQuote)},
	}
	res, err := p.ProcessDecoded(context.Background(), manual(t), decoded)
	if err != nil {
		t.Fatalf("ProcessDecoded: %v", err)
	}
	if res.Summary.Rejected != 1 || res.Summary.Verified != 1 {
		t.Fatalf("unexpected summary: %+v", res.Summary)
	}
	if res.Rejections[0].Reasons[0] != "/page_number: expected integer" {
		t.Fatalf("decode problem not carried: %+v", res.Rejections[0])
	}
}

func TestProcessPages_WarningsAreCapped(t *testing.T) {
	var cands []record.Candidate
	for i := 0; i < 8; i++ {
		cands = append(cands, cand(0, "short"))
	}
	res, err := newTestPipeline(Options{}).ProcessPages(context.Background(), manual(t), cands)
	if err != nil {
		t.Fatalf("ProcessPages: %v", err)
	}
	if len(res.Warnings) != maxWarnings+1 {
		t.Fatalf("expected %d warnings, got %d: %v", maxWarnings+1, len(res.Warnings), res.Warnings)
	}
	if !strings.HasPrefix(res.Warnings[0], "entry 0: ") || res.Warnings[maxWarnings] != "... and 3 more" {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
}

func TestProcessPages_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestPipeline(Options{}).ProcessPages(ctx, manual(t), []record.Candidate{cand(3, ramQuote)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestProcess_FromPDFBytes(t *testing.T) {
	p := newTestPipeline(Options{})
	res, err := p.Process(context.Background(), pdftest.Build(manualPages...), []record.Candidate{cand(3, ramQuote), cand(4, ramQuote)})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Summary.Verified != 1 || res.Summary.NotFound != 1 || res.Summary.Kept != 1 {
		t.Fatalf("unexpected summary: %+v", res.Summary)
	}
}

func TestProcess_Idempotent(t *testing.T) {
	ix := pagetext.NewIndexer(cache.New("", time.Hour), time.Hour, false, quietLogger())
	v, err := verify.New(verify.Config{})
	if err != nil {
		t.Fatalf("verify.New: %v", err)
	}
	p := New(ix, v, Options{Policy: record.PolicyAudit, Concurrency: 4}, quietLogger())
	pdf := pdftest.Build(manualPages...)

	// The second run reads the page map back from the cache.
	first, err := p.Process(context.Background(), pdf, mixedBatch())
	if err != nil {
		t.Fatalf("first Process: %v", err)
	}
	second, err := p.Process(context.Background(), pdf, mixedBatch())
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}

	if !reflect.DeepEqual(first.Records, second.Records) {
		t.Fatalf("records differ between runs:\n%+v\n%+v", first.Records, second.Records)
	}
	if !reflect.DeepEqual(first.Rejections, second.Rejections) {
		t.Fatalf("rejections differ between runs:\n%+v\n%+v", first.Rejections, second.Rejections)
	}
	if first.Summary != second.Summary {
		t.Fatalf("summary differs: %+v vs %+v", first.Summary, second.Summary)
	}
	if len(first.Records) != 4 {
		t.Fatalf("expected 4 classified records under audit, got %d", len(first.Records))
	}
}

func TestProcessPages_ProxyWordingIsVerified(t *testing.T) {
	pm, err := pagetext.Build(pagetext.Texts([]string{"The gateway can act as a reverse proxy for internal services."}))
	if err != nil {
		t.Fatalf("build page map: %v", err)
	}
	c := cand(1, "The gateway can act as a reverse proxy")
	c.Instruction = "What can the gateway act as?"
	c.Output = "It can act as a reverse proxy."

	res, err := newTestPipeline(Options{}).ProcessPages(context.Background(), pm, []record.Candidate{c})
	if err != nil {
		t.Fatalf("ProcessPages: %v", err)
	}
	if res.Summary.Verified != 1 || res.Summary.Rejected != 0 || res.Summary.Kept != 1 {
		t.Fatalf("expected ordinary wording to be verified, got %+v (rejections %+v)", res.Summary, res.Rejections)
	}

	res, err = newTestPipeline(Options{RejectInjection: true}).ProcessPages(context.Background(), pm, []record.Candidate{c})
	if err != nil {
		t.Fatalf("ProcessPages: %v", err)
	}
	if res.Summary.Rejected != 1 {
		t.Fatalf("expected opt-in check to reject, got %+v", res.Summary)
	}
}

func TestProcess_UnreadablePDF(t *testing.T) {
	p := newTestPipeline(Options{})
	_, err := p.Process(context.Background(), pdftest.Build("", ""), []record.Candidate{cand(1, ramQuote)})
	if !errors.Is(err, pagetext.ErrUnreadablePDF) {
		t.Fatalf("expected ErrUnreadablePDF, got %v", err)
	}
}

func TestWithPolicyDoesNotMutateOriginal(t *testing.T) {
	p := newTestPipeline(Options{})
	audit := p.WithPolicy(record.PolicyAudit)
	if p.Policy() != record.PolicyStrict || audit.Policy() != record.PolicyAudit {
		t.Fatalf("unexpected policies: %s, %s", p.Policy(), audit.Policy())
	}
}
