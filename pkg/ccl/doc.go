// Package ccl is a client for a host request facility that executes named
// CCL programs and returns their text output.
//
// The facility is the host-provided request object (XMLCclRequest in the
// embedded browser shell, or an HTTP web service outside of it). It is
// injected through the Facility interface; a nil Facility means the client is
// running outside any host and every fetch reports "unavailable" instead of
// failing.
//
// Three layers are provided:
//
//	Adapter.Fetch          raw program invocation, returns the body text
//	Client.Call            helper program call, unwraps REPLY.VALUE
//	Client.GetUser         USER lookup, returns the whole inner REPLY
//
// Transport failures surface as *StatusError. Application level failures
// (REPLY.STATUS other than "SUCCESS") are not errors and yield empty results.
package ccl
