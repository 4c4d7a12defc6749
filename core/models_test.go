package core

import (
	"testing"
	"time"
)

func TestContentHash(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "same content produces same hash",
			content: "test content",
		},
		{
			name:    "empty input",
			content: "",
		},
		{
			name:    "long content",
			content: "This is a much longer piece of content that should still hash consistently",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h1 := ContentHash([]byte(tt.content))
			h2 := ContentHash([]byte(tt.content))

			if h1 != h2 {
				t.Errorf("ContentHash() produced different hashes for same content: %s vs %s", h1, h2)
			}
			if len(h1) != 64 {
				t.Errorf("ContentHash() length = %d, want 64 hex chars", len(h1))
			}
		})
	}
}

func TestContentHash_Different(t *testing.T) {
	h1 := ContentHash([]byte("content1"))
	h2 := ContentHash([]byte("content2"))

	if h1 == h2 {
		t.Errorf("ContentHash() produced same hash for different content")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from JobStatus
		to   JobStatus
		want bool
	}{
		{"queued to extracting", JobQueued, JobExtracting, true},
		{"extracting to chunking", JobExtracting, JobChunking, true},
		{"chunking to embedding", JobChunking, JobEmbedding, true},
		{"embedding to storing", JobEmbedding, JobStoring, true},
		{"storing to completed", JobStoring, JobCompleted, true},
		{"skip ahead is allowed", JobQueued, JobStoring, true},
		{"same state is allowed", JobChunking, JobChunking, true},
		{"backward is rejected", JobEmbedding, JobChunking, false},
		{"failed from queued", JobQueued, JobFailed, true},
		{"failed from storing", JobStoring, JobFailed, true},
		{"nothing leaves completed", JobCompleted, JobFailed, false},
		{"nothing leaves failed", JobFailed, JobQueued, false},
		{"completed cannot restart", JobCompleted, JobQueued, false},
		{"unknown source state", JobStatus("bogus"), JobChunking, false},
		{"unknown target state", JobQueued, JobStatus("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	for _, s := range []JobStatus{JobQueued, JobExtracting, JobChunking, JobEmbedding, JobStoring} {
		if s.Terminal() {
			t.Errorf("%q should not be terminal", s)
		}
	}
	for _, s := range []JobStatus{JobCompleted, JobFailed} {
		if !s.Terminal() {
			t.Errorf("%q should be terminal", s)
		}
	}
}

func TestTierByName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Tier
	}{
		{"free", "free", TierFree},
		{"starter", "starter", TierStarter},
		{"pro", "pro", TierPro},
		{"case insensitive", "PRO", TierPro},
		{"whitespace trimmed", "  starter ", TierStarter},
		{"unknown falls back to free", "enterprise", TierFree},
		{"empty falls back to free", "", TierFree},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TierByName(tt.in); got != tt.want {
				t.Errorf("TierByName(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTier_Limits(t *testing.T) {
	if TierFree.MaxConcurrentExtractions != 1 {
		t.Errorf("free tier concurrency = %d, want 1", TierFree.MaxConcurrentExtractions)
	}
	if TierStarter.MaxConcurrentExtractions != 2 {
		t.Errorf("starter tier concurrency = %d, want 2", TierStarter.MaxConcurrentExtractions)
	}
	if TierPro.MaxConcurrentExtractions != 5 {
		t.Errorf("pro tier concurrency = %d, want 5", TierPro.MaxConcurrentExtractions)
	}
	if TierFree.PDFMaxSizeBytes >= TierStarter.PDFMaxSizeBytes || TierStarter.PDFMaxSizeBytes >= TierPro.PDFMaxSizeBytes {
		t.Error("PDF size limits should grow with tier")
	}
}

func TestProject_Expired(t *testing.T) {
	now := time.Now()
	p := &Project{ID: "p1", OwnerID: "o1", ExpiresAt: now.Add(time.Hour)}

	if p.Expired(now) {
		t.Error("project with future expiry reported expired")
	}
	if !p.Expired(now.Add(2 * time.Hour)) {
		t.Error("project past expiry reported live")
	}
	if !p.Expired(p.ExpiresAt) {
		t.Error("expiry instant itself should count as expired")
	}
}
