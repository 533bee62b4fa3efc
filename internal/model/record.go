package model

// Attachment is the binary payload embedded in a submission record.
type Attachment struct {
	Name        string `json:"name" cbor:"1,keyasint"`
	ContentType string `json:"content_type" cbor:"2,keyasint"`
	Content     []byte `json:"content" cbor:"3,keyasint"`
}

// SubmissionRecord is the transport-ready view of a single log event.
// It is immutable once built; OwnerID is the only field filled in late,
// when the owning item is known.
type SubmissionRecord struct {
	OwnerID    string      `json:"owner_id" cbor:"1,keyasint"`
	TimeMillis int64       `json:"time" cbor:"2,keyasint"`
	Level      string      `json:"level" cbor:"3,keyasint"`
	Message    string      `json:"message" cbor:"4,keyasint"`
	Attachment *Attachment `json:"attachment,omitempty" cbor:"5,keyasint,omitempty"`
}
