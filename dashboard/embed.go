// Package dashboard holds the RegionPulse single-page UI.
//
// assets/index.html is a text/template with {{.Title}} and
// {{.IntervalSeconds}}; the latter seeds the client's countdown to the next
// cycle. The page talks to the server over a WebSocket at "/ws":
//
//	server -> client  {"type":"statusUpdate","data":<status>}
//	client -> server  {"type":"forceCheck"}
//
// If the socket is closed it reconnects after two seconds, and "Sync Now"
// falls back to POST /api/check. The initial view comes from GET /api/status.
package dashboard

import "embed"

// Assets is the dashboard filesystem, rooted so that the page lives at
// "assets/index.html".
//
//go:embed assets/*
var Assets embed.FS
