package monitor

import (
	"sync"
	"time"

	"medavatar/pkg/model"
)

// issueTracker keeps the bounded issue log. Issues are deduplicated by type
// within a sliding window on report and pruned past the retention window on
// every tick; individual issues are never deleted early.
type issueTracker struct {
	mu        sync.Mutex
	issues    []*model.Issue // ordered oldest first
	dedupe    time.Duration
	retention time.Duration
	cap       int
}

func newIssueTracker(dedupe, retention time.Duration, attemptCap int) *issueTracker {
	return &issueTracker{dedupe: dedupe, retention: retention, cap: attemptCap}
}

// Report appends an issue unless an open issue of the same type was already
// reported within the dedupe window. It returns true when a new issue was
// recorded.
func (t *issueTracker) Report(issue model.Issue) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := issue.Timestamp.Add(-t.dedupe)
	for i := len(t.issues) - 1; i >= 0; i-- {
		existing := t.issues[i]
		if existing.Timestamp.Before(cutoff) {
			break
		}
		if existing.Type == issue.Type && !existing.AutoFixed {
			return false
		}
	}
	copied := issue
	t.issues = append(t.issues, &copied)
	return true
}

// Prune drops issues older than the retention window regardless of their
// fix status.
func (t *issueTracker) Prune(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := now.Add(-t.retention)
	keep := t.issues[:0]
	for _, is := range t.issues {
		if is.Timestamp.After(cutoff) {
			keep = append(keep, is)
		}
	}
	for i := len(keep); i < len(t.issues); i++ {
		t.issues[i] = nil
	}
	t.issues = keep
}

// Recent returns up to limit most recent issues, newest last.
func (t *issueTracker) Recent(limit int) []model.Issue {
	t.mu.Lock()
	defer t.mu.Unlock()
	if limit <= 0 || limit > len(t.issues) {
		limit = len(t.issues)
	}
	out := make([]model.Issue, 0, limit)
	for _, is := range t.issues[len(t.issues)-limit:] {
		out = append(out, *is)
	}
	return out
}

// Dispatchable returns the open issues eligible for a remediation attempt:
// not fixed, younger than retention, below the attempt cap and not a
// critical internal error (those are reported only).
func (t *issueTracker) Dispatchable(now time.Time) []*model.Issue {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := now.Add(-t.retention)
	var out []*model.Issue
	for _, is := range t.issues {
		if is.AutoFixed || is.Type == model.IssueInternal {
			continue
		}
		if !is.Timestamp.After(cutoff) || is.FixAttempts >= t.cap {
			continue
		}
		out = append(out, is)
	}
	return out
}

// BumpAttempts increments an issue's attempt counter under the tracker
// lock and returns the new count. The counter never exceeds the cap.
func (t *issueTracker) BumpAttempts(is *model.Issue) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if is.FixAttempts < t.cap {
		is.FixAttempts++
	}
	return is.FixAttempts
}

// MarkTypeFixed flags every open issue of a type as auto-fixed. Fixing the
// underlying resource fixes all queued issues of that type at once.
func (t *issueTracker) MarkTypeFixed(typ model.IssueType) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, is := range t.issues {
		if is.Type == typ && !is.AutoFixed {
			is.AutoFixed = true
			n++
		}
	}
	return n
}

// OpenCounts reports open (not auto-fixed) issues per type.
func (t *issueTracker) OpenCounts() map[model.IssueType]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := map[model.IssueType]int{}
	for _, is := range t.issues {
		if !is.AutoFixed {
			out[is.Type]++
		}
	}
	return out
}
