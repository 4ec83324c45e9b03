// Package pipeline bundles an ordered list of asset links into one
// content-addressed, minified and optionally gzip-compressed artifact.
//
// The artifact name is derived from a hash of the link list plus a salt, so
// repeat calls with the same inputs are served from storage without fetching
// or minifying anything:
//
//	<root>/<subdir>/<pipeline dir>/<hash>.<ext>
//	<root>/<subdir>/<pipeline dir>/<hash>.<ext>.gz
//
// Fetching, minification and post-build notification are capabilities
// injected through Config and Request.
package pipeline
