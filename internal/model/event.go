package model

// Attr is a rendered key/value pair carried by an event for layouts.
type Attr struct {
	Key   string
	Value string
}

// Message is the message object of an event.
// Params is nil or empty when the event was logged without parameters.
type Message struct {
	Params    []any
	Formatted string
}

// Event is a frozen snapshot of a log event.
// A nil Message means the event carried no message object at all.
type Event struct {
	Logger     string
	TimeMillis int64
	Level      string
	Message    *Message
	Attrs      []Attr
}

// FirstParam returns the first message parameter, if any.
func (e Event) FirstParam() (any, bool) {
	if e.Message == nil || len(e.Message.Params) == 0 {
		return nil, false
	}
	return e.Message.Params[0], true
}
