// Copyright 2025 Quillstore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"time"
)

// ValidateJob validates a Job according to domain rules.
//
// Validation rules:
//   - ID, OwnerID, ProjectID, Collection must not be empty
//   - Type must be a known JobType
//   - Status must be a known JobStatus
//   - Progress must be within 0-100
//
// NOT validated (populated by stage handlers):
//   - Result counters
//   - Error message
//   - CompletedAt
func ValidateJob(job *Job) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", ErrInvalidJob)
	}
	if job.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrEmptyJobID)
	}
	if job.OwnerID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrEmptyOwner)
	}
	if job.ProjectID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrEmptyProjectID)
	}
	if job.Collection == "" {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrEmptyCollection)
	}
	if job.Type != JobTypePDF && job.Type != JobTypeText {
		return fmt.Errorf("%w: %w: %q", ErrInvalidJob, ErrInvalidJobType, job.Type)
	}
	if !job.Status.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidJob, ErrInvalidStatus, job.Status)
	}
	if job.Progress < 0 || job.Progress > 100 {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrInvalidProgress)
	}
	return nil
}

// ValidateProject validates a Project according to domain rules.
//
// Validation rules:
//   - ID and OwnerID must not be empty
//   - ExpiresAt must be set and in the future at creation time
func ValidateProject(project *Project, now time.Time) error {
	if project == nil {
		return fmt.Errorf("%w: project is nil", ErrInvalidProject)
	}
	if project.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidProject, ErrEmptyProjectID)
	}
	if project.OwnerID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidProject, ErrEmptyOwner)
	}
	if project.ExpiresAt.IsZero() || !project.ExpiresAt.After(now) {
		return fmt.Errorf("%w: %w", ErrInvalidProject, ErrInvalidExpiry)
	}
	return nil
}
