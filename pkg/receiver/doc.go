// Package receiver implements the agent side of the v0.3 trace endpoint.
//
// A Receiver decodes JSON or msgpack uploads into datadog.Traces and hands
// them to a Sink. It is used as a local stand-in for a Datadog agent by the
// "ddexport agent" command and by tests.
package receiver
