package handlers

import (
	"html/template"
	"time"

	"github.com/vidinsight/client/internal/wallet"
)

var templateFuncs = template.FuncMap{
	"amount": wallet.FormatAmount,
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
}

const layoutHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
{{if .Refresh}}<meta http-equiv="refresh" content="{{.Refresh}}">{{end}}
<title>{{.Title}} · VidInsight</title>
</head>
<body>
<header>
<a href="/">VidInsight</a>
{{if .User}}<nav>
<a href="/dashboard">Dashboard</a>
<a href="/submissions">Submissions</a>
<a href="/wallet">Wallet</a>
<span>{{.User.Email}} · {{.User.Credits}} credits</span>
<a href="/auth/logout">Log out</a>
</nav>{{end}}
</header>
<main>
{{template "content" .}}
</main>
</body>
</html>
`

var layout = template.Must(template.New("layout").Funcs(templateFuncs).Parse(layoutHTML))

func page(content string) *template.Template {
	return template.Must(template.Must(layout.Clone()).Parse(`{{define "content"}}` + content + `{{end}}`))
}

var homeTemplate = page(`
<h1>Turn Any Video into Instant Insights</h1>
<p>Extract knowledge, summaries, and key takeaways from any video in minutes.</p>
{{if .Data.Error}}<p role="alert">{{.Data.Error}}</p>{{end}}
<p>
<a href="/auth/oauth/google">Continue with Google</a>
<a href="/auth/oauth/discord">Continue with Discord</a>
</p>
`)

var listTemplate = page(`
<h1>{{.Title}}</h1>
{{if not .Data.Videos}}<p>No submissions yet.</p>{{else}}
<table>
<thead><tr><th>Title</th><th>Status</th><th>Platform</th><th>Submitted</th></tr></thead>
<tbody>
{{range .Data.Videos}}<tr>
<td><a href="/submissions/{{.ID}}">{{.Title}}</a></td>
<td>{{.Status}}</td>
<td>{{.Platform}}</td>
<td>{{date .CreatedAt}}</td>
</tr>{{end}}
</tbody>
</table>{{end}}
`)

var detailTemplate = page(`
{{with .Data.Video}}
<h1>{{.Title}}</h1>
<p>Status: {{.Status}}{{if .Platform}} · {{.Platform}}{{end}}{{if .Duration}} · {{.Duration}}{{end}}</p>
{{if .ErrorMessage}}<p role="alert">{{.ErrorMessage}}</p>{{end}}
{{if .Summary.Text}}<section><h2>Summary</h2><p>{{.Summary.Text}}</p>
{{if .Summary.Metrics}}<dl>{{range .Summary.Metrics}}<dt>{{.Label}}</dt><dd>{{.Value}}</dd>{{end}}</dl>{{end}}
</section>{{end}}
{{if .Insights.Sections}}<section><h2>Insights</h2>
{{range .Insights.Sections}}<h3>{{.Title}}</h3><ul>{{range .Items}}<li>{{.Text}}</li>{{end}}</ul>{{end}}
</section>{{end}}
{{if .Transcript}}<section><h2>Transcript</h2>
{{range .Transcript}}<p><time>{{.Time}}</time> {{.Text}}</p>{{end}}
</section>{{else if .Transcription}}<section><h2>Transcript</h2><p>{{.Transcription}}</p></section>{{end}}
{{end}}
<p><a href="/submissions">Back to submissions</a></p>
`)

var walletTemplate = page(`
<h1>Wallet</h1>
{{with .Data.Summary}}
<p>{{.Credits}} credits</p>
{{if .LastTransactionAt}}<p>Last transaction: {{date .LastTransactionAt}}</p>{{end}}
<p>Estimated submissions left ~{{.EstimatedSubmissionsLeft}} videos</p>
<p>Total purchased: {{.TotalPurchased}} · Total used: {{.TotalUsed}}</p>
{{end}}
<form method="get" action="/wallet">
<select name="type">
{{range .Data.Types}}<option value="{{.}}"{{if eq . $.Data.Filter.Type}} selected{{end}}>{{.}}</option>{{end}}
</select>
<select name="period">
<option value="all"{{if eq "all" (printf "%s" $.Data.Filter.Period)}} selected{{end}}>All time</option>
<option value="30days"{{if eq "30days" (printf "%s" $.Data.Filter.Period)}} selected{{end}}>Last 30 days</option>
</select>
<button type="submit">Filter</button>
</form>
{{if not .Data.Transactions}}<p>No transactions found.</p>{{else}}
<ul>
{{range .Data.Transactions}}<li>{{.Description}} · {{amount .Amount}} credits · {{.Status}} · {{date .CreatedAt}}</li>{{end}}
</ul>
<p>Showing {{len .Data.Transactions}} of {{.Data.Total}} transactions</p>{{end}}
`)
