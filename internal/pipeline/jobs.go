package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/dgallion1/citecheck/internal/extract"
	"github.com/dgallion1/citecheck/internal/record"
)

// JobStatus represents the state of a verification job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusIndexing   JobStatus = "indexing"
	StatusGenerating JobStatus = "generating"
	StatusVerifying  JobStatus = "verifying"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
)

// Done reports whether the job has reached a final state.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPartial
}

// Job tracks one document through indexing, generation and verification.
type Job struct {
	mu sync.Mutex

	ID       string
	Filename string
	Title    string
	Policy   record.Policy

	Status   JobStatus
	Phase    string
	Progress Progress

	ContentHash string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	fileData   []byte
	candidates []extract.Decoded
	result     *Result
}

// NewJob creates a queued job for a PDF. candidates may be nil, in which
// case the job generates them.
func NewJob(id, filename string, data []byte, candidates []extract.Decoded, policy record.Policy) *Job {
	now := time.Now()
	return &Job{
		ID:          id,
		Filename:    filename,
		Title:       filename,
		Policy:      policy,
		Status:      StatusQueued,
		Phase:       "queued",
		ContentHash: ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    data,
		candidates:  candidates,
	}
}

// Progress tracks processing progress.
type Progress struct {
	Pages           int            `json:"pages"`
	TotalChunks     int            `json:"total_chunks"`
	ChunksProcessed int            `json:"chunks_processed"`
	Candidates      int            `json:"candidates"`
	Summary         record.Summary `json:"summary"`
	Warnings        []string       `json:"warnings"`
	Errors          []string       `json:"errors"`
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes jobs idle for longer than the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.lastUpdate()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) lastUpdate() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Errors = append(j.Progress.Errors, err)
	j.UpdatedAt = time.Now()
}

// SetPages records the document's page count.
func (j *Job) SetPages(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Pages = n
	j.UpdatedAt = time.Now()
}

// SetChunks records generation progress.
func (j *Job) SetChunks(done, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksProcessed = done
	j.Progress.TotalChunks = total
	j.UpdatedAt = time.Now()
}

// SetCandidateCount records how many candidates will be verified.
func (j *Job) SetCandidateCount(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Candidates = n
	j.UpdatedAt = time.Now()
}

// SetResult stores the verification result and releases the PDF bytes.
func (j *Job) SetResult(res *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
	j.Progress.Summary = res.Summary
	j.Progress.Warnings = append(j.Progress.Warnings, res.Warnings...)
	j.fileData = nil
	j.UpdatedAt = time.Now()
}

// Result returns the verification result, or nil before verification ends.
func (j *Job) Result() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// FileData returns the raw PDF bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// Candidates returns the candidates supplied with the job, or nil.
func (j *Job) Candidates() []extract.Decoded {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.candidates
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string        `json:"job_id"`
	Filename    string        `json:"filename"`
	Title       string        `json:"title"`
	Policy      record.Policy `json:"policy"`
	Status      JobStatus     `json:"status"`
	Phase       string        `json:"phase"`
	Progress    Progress      `json:"progress"`
	ContentHash string        `json:"content_hash"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = append([]string{}, j.Progress.Errors...)
	p.Warnings = append([]string{}, j.Progress.Warnings...)
	return JobSnapshot{
		ID:          j.ID,
		Filename:    j.Filename,
		Title:       j.Title,
		Policy:      j.Policy,
		Status:      j.Status,
		Phase:       j.Phase,
		Progress:    p,
		ContentHash: j.ContentHash,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
