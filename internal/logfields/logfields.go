// Package logfields holds canonical log field names so attribute keys do not
// drift across packages.
package logfields

import "log/slog"

const (
	KeyProject    = "project"
	KeyCycleID    = "cycle_id"
	KeyStatus     = "status"
	KeyEntry      = "entry"
	KeyOutput     = "output"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Project(p string) slog.Attr      { return slog.String(KeyProject, p) }
func CycleID(id string) slog.Attr     { return slog.String(KeyCycleID, id) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func Entry(e string) slog.Attr        { return slog.String(KeyEntry, e) }
func Output(o string) slog.Attr       { return slog.String(KeyOutput, o) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
