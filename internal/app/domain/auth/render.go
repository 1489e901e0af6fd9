package auth

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

const pageShell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s · folioview</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
</head>
<body>
<main>%s</main>
</body>
</html>`

func renderPage(c *gin.Context, title, body string) {
	c.Data(c.Writer.Status(), "text/html; charset=utf-8", []byte(fmt.Sprintf(pageShell, title, body)))
}

func signInFormHTML(message string) string {
	return fmt.Sprintf(`<h1>Sign in</h1>
%s
<form hx-post="/signin" method="post">
<label>Identity <input type="text" name="identity" autocomplete="username"></label>
<label>Password <input type="password" name="secret" autocomplete="current-password"></label>
<button type="submit">Sign in</button>
</form>
<p><a href="/register">Create an account</a> · <a href="/forgot-password">Forgot password?</a></p>`, messageHTML(message))
}

func registerFormHTML(message string) string {
	return fmt.Sprintf(`<h1>Create account</h1>
%s
<form hx-post="/register" method="post">
<label>Identity <input type="text" name="identity" autocomplete="username"></label>
<label>Password <input type="password" name="secret" autocomplete="new-password"></label>
<button type="submit">Create account</button>
</form>`, messageHTML(message))
}

func forgotFormHTML(message string) string {
	return fmt.Sprintf(`<h1>Reset password</h1>
%s
<form hx-post="/forgot-password" method="post">
<label>Identity <input type="text" name="identity" autocomplete="username"></label>
<button type="submit">Send reset instructions</button>
</form>`, messageHTML(message))
}

func recoveryFormHTML(message string) string {
	return fmt.Sprintf(`<h1>Recovery setup</h1>
<p>Set a recovery question so you can regain access if you lose your password.</p>
%s
<form hx-post="/security/recovery" method="post">
<label>Question <input type="text" name="question"></label>
<label>Answer <input type="text" name="answer"></label>
<button type="submit">Save</button>
</form>`, messageHTML(message))
}

func messageHTML(message string) string {
	if message == "" {
		return ""
	}
	return fmt.Sprintf(`<p class="form-message">%s</p>`, message)
}
