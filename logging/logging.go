// Package logging contains the structured logger shared across netmon and
// helpers to log network snapshots consistently.
package logging

import (
	golog "log"
	"net/http"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/gorilla/handlers"

	"github.com/m-lab/netmon/model"
)

// Logger emits JSON logs on the standard error so that they can be
// collected by the container runtime and processed without parsing.
var Logger = log.Logger{
	Handler: json.New(os.Stderr),
	Level:   log.InfoLevel,
}

// SetLevel changes the level of Logger. Unknown names leave it unchanged
// and return the parse error.
func SetLevel(name string) error {
	lvl, err := log.ParseLevel(name)
	if err != nil {
		return err
	}
	Logger.Level = lvl
	return nil
}

// Fields renders a snapshot as log fields. Absent optional fields are
// omitted.
func Fields(info model.NetworkInfo) log.Fields {
	f := log.Fields{
		"online": info.Online,
		"type":   string(info.Type),
		"speed":  string(info.Speed),
	}
	if info.Downlink != nil {
		f["downlink"] = *info.Downlink
	}
	if info.RTT != nil {
		f["rtt"] = *info.RTT
	}
	if info.EffectiveType != nil {
		f["effective_type"] = *info.EffectiveType
	}
	if info.SaveData != nil {
		f["save_data"] = *info.SaveData
	}
	return f
}

// MakeAccessLogHandler wraps |handler| with another handler that writes
// Apache style access logs on the standard output.
func MakeAccessLogHandler(handler http.Handler) http.Handler {
	return handlers.LoggingHandler(golog.Writer(), handler)
}
