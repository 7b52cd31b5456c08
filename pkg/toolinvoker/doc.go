// Package toolinvoker executes catalog tools and reports every attempt
// as a structured execution record.
//
// Arguments are validated against the tool's schema before any backend
// is reached. Local handlers run under a bounded timeout; remote calls
// go through the MCP link and are refused outright while the link is
// not healthy. Failures are classified so callers can tell a schema
// violation from a timeout from a tool that declined to do the work.
package toolinvoker
