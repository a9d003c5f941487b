package admin

import (
	"html/template"
	"net/http"
)

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>8Spin promo admin</title>
<style>
body { font-family: sans-serif; margin: 2em; max-width: 720px; }
fieldset { margin-bottom: 2em; }
label { display: block; margin-top: .5em; }
input, textarea { width: 100%; box-sizing: border-box; }
pre { background: #f4f4f4; padding: 1em; overflow: auto; }
</style>
</head>
<body>
<h1>8Spin promo admin</h1>

<fieldset>
<legend>Broadcast</legend>
<label>Message (HTML) <textarea id="text" rows="5"></textarea></label>
<label>Image URL (https, optional) <input id="image"></label>
<label>Button 1 label <input id="b1label"></label>
<label>Button 1 URL <input id="b1url"></label>
<label>Button 2 label <input id="b2label"></label>
<label>Button 2 URL <input id="b2url"></label>
<button onclick="sendBroadcast()">Send</button>
</fieldset>

<fieldset>
<legend>Stats</legend>
<label>Lookback days <input id="days" value="7" size="4"></label>
<button onclick="loadStats()">Refresh stats</button>
<button onclick="loadHistory()">Broadcast history</button>
</fieldset>

<pre id="out">—</pre>

<script>
const key = new URLSearchParams(location.search).get("key");
const out = document.getElementById("out");

function show(data) { out.textContent = JSON.stringify(data, null, 2); }

function buttons() {
  const list = [];
  for (const n of ["b1", "b2"]) {
    const label = document.getElementById(n + "label").value.trim();
    const url = document.getElementById(n + "url").value.trim();
    if (label && url) list.push({ label: label, url: url });
  }
  return list;
}

async function sendBroadcast() {
  const body = {
    text: document.getElementById("text").value,
    image_url: document.getElementById("image").value.trim(),
    buttons: buttons(),
  };
  const resp = await fetch("broadcast?key=" + encodeURIComponent(key), {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify(body),
  });
  show(await resp.json());
}

async function loadStats() {
  const days = document.getElementById("days").value;
  const resp = await fetch("stats?daily=1&days=" + days + "&key=" + encodeURIComponent(key));
  show(await resp.json());
}

async function loadHistory() {
  const resp = await fetch("broadcasts?key=" + encodeURIComponent(key));
  show(await resp.json());
}
</script>
</body>
</html>`))

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, nil); err != nil {
		h.log.Error().Err(err).Msg("не удалось отрисовать дашборд")
	}
}
