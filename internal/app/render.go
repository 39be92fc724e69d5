package app

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"marketfront-go/internal/auth"
	"marketfront-go/internal/locale"

	"github.com/Masterminds/sprig/v3"
)

//go:embed templates/*.html
var templateFS embed.FS

func parseTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(sprig.FuncMap()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return tmpl, nil
}

type homeView struct {
	Locale          string
	StartURL        string
	TrustedOrigin   string
	IsAuthenticated bool
	SignIn          string
	SignOut         string
	PopupBlocked    string
}

// callbackView drives callback.html. The page script picks the popup exit
// when it has an opener and the direct exit otherwise.
type callbackView struct {
	Locale       string
	Phase        string
	Heading      string
	Detail       string
	Code         string
	Hint         string
	RedirectHint string
	HomeURL      string
	HomeLabel    string

	Message         *auth.Message
	TargetOrigin    string
	CloseAfterMS    int64
	RedirectTo      string
	RedirectAfterMS int64
}

func (a *Application) callbackView(loc string, result *auth.CallbackResult) callbackView {
	if result.Phase != auth.PhaseSuccess {
		err := result.Err
		if err == nil {
			err = auth.NewError(auth.ErrProviderError, "")
		}
		return a.errorView(loc, err, result.Exit(true).PostMessage)
	}

	popupExit := result.Exit(true)
	directExit := result.Exit(false)
	return callbackView{
		Locale:          loc,
		Phase:           string(auth.PhaseSuccess),
		Heading:         locale.T(loc, "Signed in successfully"),
		Hint:            locale.T(loc, "This window will close automatically."),
		RedirectHint:    locale.T(loc, "Redirecting..."),
		HomeURL:         "/" + loc + "/",
		HomeLabel:       locale.T(loc, "Back to home"),
		Message:         popupExit.PostMessage,
		TargetOrigin:    a.Config.PublicOrigin,
		CloseAfterMS:    popupExit.CloseAfter.Milliseconds(),
		RedirectTo:      directExit.RedirectTo,
		RedirectAfterMS: directExit.RedirectAfter.Milliseconds(),
	}
}

// errorView renders the error state. It posts msg to the opener, if any, and
// otherwise stays on the page.
func (a *Application) errorView(loc string, err *auth.Error, msg *auth.Message) callbackView {
	return callbackView{
		Locale:       loc,
		Phase:        string(auth.PhaseError),
		Heading:      locale.T(loc, "Sign in failed"),
		Detail:       locale.T(loc, err.Message),
		Code:         string(err.Code),
		HomeURL:      "/" + loc + "/",
		HomeLabel:    locale.T(loc, "Back to home"),
		Message:      msg,
		TargetOrigin: a.Config.PublicOrigin,
		CloseAfterMS: a.Config.Auth.CloseDelay.Milliseconds(),
	}
}

func (a *Application) render(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, name, data); err != nil {
		a.Logger.WithError(err).WithField("template", name).Error("failed to render template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
