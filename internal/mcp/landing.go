package mcp

import (
	"html/template"
	"net/http"
)

var landingTmpl = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Evidence RAG MCP Server</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #0f172a; color: #e2e8f0; display: flex; justify-content: center; padding: 3rem 1rem; }
  .card { max-width: 640px; width: 100%; background: #1e293b; border-radius: 12px; padding: 2rem; }
  h1 { margin-top: 0; }
  .subtitle { color: #94a3b8; }
  code, .endpoint { font-family: "SF Mono", Menlo, monospace; color: #a5b4fc; }
  a { color: #38bdf8; }
  li { margin-bottom: 0.4rem; }
</style>
</head>
<body>
<div class="card">
  <h1>Evidence RAG MCP Server</h1>
  <p class="subtitle">Query-driven evidence discovery over ingested case files via the Model Context Protocol.</p>
  <h3>Tools</h3>
  <ul>
  {{- range .Tools}}
    <li><code>{{.}}</code></li>
  {{- end}}
  </ul>
  <h3>Endpoints</h3>
  <p><a href="/mcp" class="endpoint">/mcp</a> &mdash; MCP Streamable HTTP</p>
  <p><a href="/health" class="endpoint">/health</a> &mdash; Health check</p>
</div>
</body>
</html>`))

// NewLandingHandler returns an HTTP handler that serves the landing page at /.
func NewLandingHandler(server *Server) http.HandlerFunc {
	tools := server.Tools()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		landingTmpl.Execute(w, struct{ Tools []string }{tools})
	}
}
