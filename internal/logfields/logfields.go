package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyGroup      = "group"
	KeyAssetType  = "asset_type"
	KeyLink       = "link"
	KeyLinks      = "links"
	KeyHash       = "hash"
	KeyURL        = "url"
	KeyPath       = "path"
	KeyDir        = "dir"
	KeyBytes      = "bytes"
	KeyGzipped    = "gzipped"
	KeyCached     = "cached"
	KeyBuildID    = "build_id"
	KeyDurationMS = "duration_ms"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Group(g string) slog.Attr        { return slog.String(KeyGroup, g) }
func AssetType(t string) slog.Attr    { return slog.String(KeyAssetType, t) }
func Link(l string) slog.Attr         { return slog.String(KeyLink, l) }
func Links(n int) slog.Attr           { return slog.Int(KeyLinks, n) }
func Hash(h string) slog.Attr         { return slog.String(KeyHash, h) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Dir(d string) slog.Attr          { return slog.String(KeyDir, d) }
func Bytes(n int) slog.Attr           { return slog.Int(KeyBytes, n) }
func Gzipped(g bool) slog.Attr        { return slog.Bool(KeyGzipped, g) }
func Cached(c bool) slog.Attr         { return slog.Bool(KeyCached, c) }
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
