// Package synapse implements client for the collaboration platform
// that hosts challenge projects, evaluation queues and submissions.
package synapse

import (
	"time"
)

// Status represents state of submission in evaluation queue.
type Status string

const (
	Received             Status = "RECEIVED"
	EvaluationInProgress Status = "EVALUATION_IN_PROGRESS"
	Validated            Status = "VALIDATED"
	Invalid              Status = "INVALID"
	Scored               Status = "SCORED"
	Rejected             Status = "REJECTED"
	Accepted             Status = "ACCEPTED"
	Open                 Status = "OPEN"
	Closed               Status = "CLOSED"
)

// Submission represents one attempt by a participant.
//
// Submissions are created by the platform and are read-only for
// the harness.
type Submission struct {
	ID            int64     `json:"id"`
	EvaluationID  int64     `json:"evaluationId"`
	EntityID      string    `json:"entityId"`
	VersionNumber int64     `json:"versionNumber,omitempty"`
	UserID        int64     `json:"userId"`
	TeamID        int64     `json:"teamId,omitempty"`
	Name          string    `json:"name,omitempty"`
	CreatedOn     time.Time `json:"createdOn,omitempty"`
	// Docker fields are set only for container submissions.
	DockerRepositoryName string `json:"dockerRepositoryName,omitempty"`
	DockerDigest         string `json:"dockerDigest,omitempty"`
	// FilePath contains local path of the downloaded submission file.
	//
	// Populated by GetSubmission with non-empty download directory,
	// never present on the wire.
	FilePath string `json:"-"`
}

// SubmissionStatus represents mutable companion of submission.
//
// Etag implements optimistic concurrency: the platform rejects
// a store with a stale etag.
type SubmissionStatus struct {
	ID          int64                 `json:"id"`
	Etag        string                `json:"etag,omitempty"`
	Status      Status                `json:"status"`
	Annotations SubmissionAnnotations `json:"submissionAnnotations,omitempty"`
}

// SubmissionBundle joins submission with its status.
//
// Bundles fetched from the queue omit submission file path: fetch
// the submission itself to download the file.
type SubmissionBundle struct {
	Submission Submission       `json:"submission"`
	Status     SubmissionStatus `json:"submissionStatus"`
}

// Evaluation represents evaluation queue bound to a challenge project.
type Evaluation struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	// ContentSource contains ID of the challenge project.
	ContentSource string `json:"contentSource"`
}

// Challenge binds a project to its participant team.
type Challenge struct {
	ID                int64  `json:"id"`
	ProjectID         string `json:"projectId"`
	ParticipantTeamID int64  `json:"participantTeamId"`
	Etag              string `json:"etag,omitempty"`
}

// UserProfile represents platform user.
type UserProfile struct {
	OwnerID   int64  `json:"ownerId"`
	UserName  string `json:"userName"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Team represents group of participants.
type Team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Project represents project entity.
type Project struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
	Etag     string `json:"etag,omitempty"`
}

// AccessControl represents permissions of one principal on an entity.
type AccessControl struct {
	PrincipalID int64    `json:"principalId"`
	AccessTypes []string `json:"accessType"`
}

// FullAccess contains access types of project administrator.
var FullAccess = []string{
	"READ", "DOWNLOAD", "UPDATE", "CREATE", "DELETE",
	"MODERATE", "CHANGE_PERMISSIONS", "CHANGE_SETTINGS",
}
