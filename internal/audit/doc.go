// Package audit queues authentication outcomes and delivers them to a [Sink]
// on one background goroutine.
//
// The engine decides which events exist; this package only buffers and
// delivers them. A full queue either blocks the caller or drops the event
// depending on [Config.DropIfFull]. A sink that panics loses that one event
// and the worker carries on.
//
// Events carry the subject id, never the email, password or token.
package audit
