package engine

import "github.com/coffersTech/rplog/internal/model"

// Build assembles a record from classified content and the event's
// timestamp and severity. OwnerID is left empty.
func Build(message string, att *model.Attachment, e model.Event) model.SubmissionRecord {
	return model.SubmissionRecord{
		TimeMillis: e.TimeMillis,
		Level:      e.Level,
		Message:    message,
		Attachment: att,
	}
}
