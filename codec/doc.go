// Package codec serializes the structured values that cross the plugin
// boundary: file metadata, directory listings, configuration parameter
// descriptors, and plugin configuration. The wire form is self-describing
// JSON with optional fields omitted when absent.
package codec
