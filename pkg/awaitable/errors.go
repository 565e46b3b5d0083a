// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package awaitable

import "fmt"

// JobError is the normalized error for a remote operation that finished in a
// failed state. Err is the provider's own error.
type JobError struct {
	Op      string
	JobID   string
	Message string
	Err     error
}

// Failed builds the JobError a Handle returns when the provider reports a
// terminal failure for jobID.
func Failed(jobID string, err error) *JobError {
	je := &JobError{JobID: jobID, Err: err}
	if err != nil {
		je.Message = err.Error()
	}
	return je
}

func (e *JobError) Error() string {
	switch {
	case e.Op != "" && e.JobID != "":
		return fmt.Sprintf("%s: job %s failed: %s", e.Op, e.JobID, e.Message)
	case e.Op != "":
		return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
	case e.JobID != "":
		return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
	default:
		return "remote operation failed: " + e.Message
	}
}

func (e *JobError) Unwrap() error {
	return e.Err
}
