package echo

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"

	"go.pilab.hu/mockauth"
)

// ChallengeRenderer renders the credential challenge for a well-formed
// authorization request. Validation never depends on it; handlers invoke it
// only once the protocol-level checks have passed.
type ChallengeRenderer interface {
	RenderChallenge(c echo.Context, req *mockauth.AuthorizeRequest, errorMessage string) error
}

const challengeTemplate = `<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
<h1>Sign in</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/authorize">
  <input type="hidden" name="client_id" value="{{.Req.ClientID}}">
  <input type="hidden" name="redirect_uri" value="{{.Req.RedirectURI}}">
  <input type="hidden" name="scope" value="{{.Req.Scope}}">
  <input type="hidden" name="state" value="{{.Req.State}}">
  <input type="hidden" name="nonce" value="{{.Req.Nonce}}">
  <label>Username <input type="text" name="username" autofocus></label>
  <label>Password <input type="password" name="password"></label>
  <button type="submit">Sign in</button>
</form>
</body>
</html>`

type htmlChallengeRenderer struct {
	tmpl *template.Template
}

// NewHTMLChallengeRenderer returns the default html/template-based renderer.
func NewHTMLChallengeRenderer() ChallengeRenderer {
	return &htmlChallengeRenderer{
		tmpl: template.Must(template.New("challenge").Parse(challengeTemplate)),
	}
}

func (r *htmlChallengeRenderer) RenderChallenge(c echo.Context, req *mockauth.AuthorizeRequest, errorMessage string) error {
	var buf bytes.Buffer
	err := r.tmpl.Execute(&buf, struct {
		Req   *mockauth.AuthorizeRequest
		Error string
	}{Req: req, Error: errorMessage})
	if err != nil {
		return err
	}

	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
