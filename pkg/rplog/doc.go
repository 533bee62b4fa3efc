// Package rplog reports log records as submission records owned by the
// currently running item (a test, a step, a job).
//
// A Handler plugs into log/slog. Each record is classified on the logging
// goroutine into message text and an optional attachment, and the result
// is handed to a Dispatcher that knows which item owns it:
//
//	em := rplog.NewEmitter(rplog.EmitterOptions{Sink: sink})
//	h, err := rplog.NewHandler(rplog.Options{
//	    Name:       "reporter",
//	    Layout:     rplog.NewPatternLayout("%m"),
//	    Dispatcher: em,
//	})
//	logger := slog.New(h)
//
//	item := em.StartItem(ctx, "login test", nil, startOnServer)
//	logger.InfoContext(rplog.WithItem(ctx, item), "login page", rplog.AttachFile("shot.png"))
//
// # Attachments
//
// The first attribute under ParamKey decides the shape of a record:
// a RichMessage (Rich, AttachBytes) reports its own text and payload, a
// FileReference (AttachFile) reports "File reported" with the file
// content, anything else reports its text. Without a parameter, the
// message may encode an attachment in the RP_MESSAGE format; otherwise
// the record text is the Layout rendering of the record.
//
// Records logged by this module's own loggers (names under "rplog") are
// never reported, which keeps diagnostics from looping back.
package rplog
