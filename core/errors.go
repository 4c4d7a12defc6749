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

import "errors"

// Domain validation errors
var (
	// ErrInvalidJob indicates a Job failed validation.
	ErrInvalidJob = errors.New("invalid job")

	// ErrInvalidProject indicates a Project failed validation.
	ErrInvalidProject = errors.New("invalid project")

	// ErrEmptyJobID indicates the job ID field is empty.
	ErrEmptyJobID = errors.New("job id cannot be empty")

	// ErrEmptyOwner indicates the owner field is empty.
	ErrEmptyOwner = errors.New("owner cannot be empty")

	// ErrEmptyProjectID indicates the project ID field is empty.
	ErrEmptyProjectID = errors.New("project id cannot be empty")

	// ErrEmptyCollection indicates the collection field is empty.
	ErrEmptyCollection = errors.New("collection cannot be empty")

	// ErrInvalidJobType indicates an unknown JobType value.
	ErrInvalidJobType = errors.New("invalid job type")

	// ErrInvalidStatus indicates an unknown JobStatus value.
	ErrInvalidStatus = errors.New("invalid job status")

	// ErrInvalidTransition indicates a backward or out-of-terminal status change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidProgress indicates a progress value outside 0-100.
	ErrInvalidProgress = errors.New("progress must be between 0 and 100")

	// ErrInvalidExpiry indicates an expiry timestamp in the past.
	ErrInvalidExpiry = errors.New("expiry must be in the future")
)
