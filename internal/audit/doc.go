// Package audit moves flow audit events off the caller's goroutine.
//
// A [Dispatcher] owns one buffered queue and one delivery goroutine. Emit
// never waits on a sink: when the queue is full the event is either dropped
// and counted, or the caller waits for room, depending on [Config]. Close
// drains whatever is queued before returning.
//
// Which events exist and what they carry is decided by the root package;
// this package only buffers and delivers [Event] values to a [Sink].
package audit
