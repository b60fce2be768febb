// Package filesystem defines the capability contract a plugin implements
// and the data model that crosses the boundary: file metadata, open and
// write flags, and the decoded plugin configuration.
//
// The contract is deliberately stateless; stateful file sessions are
// layered on top by the handle package.
package filesystem
