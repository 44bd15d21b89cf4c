package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/sleepcheck/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"clock": func(secs int) string {
		return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
	},
	"severityClass": func(s string) string {
		switch s {
		case "URGENT":
			return "urgent"
		case "WARNING":
			return "warning"
		}
		return "normal"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Sleep Check{{if .Config.Facility}} · {{.Config.Facility}}{{end}}</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.normal { color: green; }
.warning { color: orange; font-weight: bold; }
.urgent { color: red; font-weight: bold; }
.idle { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Sleep Check{{if .Config.Facility}} · {{.Config.Facility}}{{end}}</h1>

<h2>Children</h2>
<table>
<tr><th>Child</th><th>Session</th><th>Next check</th><th>Slept today</th></tr>
{{range .Children}}<tr id="child-{{.ChildID}}">
<td>{{.Name}}</td>
{{if .Open}}<td>since {{.SessionStart.Format "15:04"}}</td>
<td class="{{severityClass (printf "%s" .Severity)}}">{{clock .SecondsRemaining}}</td>
{{else}}<td class="idle">awake</td><td class="idle">-</td>
{{end}}<td>{{.TotalSleepMinutes}} min</td>
</tr>
{{else}}<tr><td colspan="4" class="idle">No children configured</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Event log</th><td>{{.Config.StoreDriver}}</td></tr>
<tr><th>Notifications</th><td>{{if .Permission}}{{.Permission}}{{else}}default{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Timezone</th><td>{{.Config.Timezone}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
