package app

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/buildinfo"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/config"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/ctxutil"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/logger"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/outline"
)

// outlineCSP allows the page's inline stylesheet and nothing else.
const outlineCSP = "default-src 'none'; style-src 'unsafe-inline'"

var outlineTemplate = template.Must(template.New("outline").Parse(`<!DOCTYPE html>
<html lang="km">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>សំណួរ Offline</title>
<style>
body { font-family: "Noto Sans Khmer", sans-serif; max-width: 40rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.7; }
pre { white-space: pre-wrap; font-family: inherit; }
a { color: #06c755; text-decoration: none; }
</style>
</head>
<body>
{{if .Body}}<pre>{{.Body}}</pre>{{else}}<p>ℹ️ មិនទាន់មានបញ្ជីសំណួរ Offline ទេ។</p>{{end}}
{{if not .Linked}}<p>⚠️ LINE account is not configured; questions are not linked.</p>{{end}}
</body>
</html>
`))

// renderOutlinePage renders the outline once at startup. Without a basic id
// the questions are listed without deep links.
func renderOutlinePage(index *outline.Index, basicID string) ([]byte, error) {
	var body string
	if basicID != "" {
		body = index.RenderHTML(outline.LINEDeepLink(basicID))
	} else {
		body = template.HTMLEscapeString(index.Outline())
	}

	var buf bytes.Buffer
	err := outlineTemplate.Execute(&buf, struct {
		Body   template.HTML
		Linked bool
	}{
		Body:   template.HTML(body), //nolint:gosec // every line is escaped by RenderHTML
		Linked: basicID != "",
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *Application) outlineHandler(c *gin.Context) {
	c.Header("Content-Security-Policy", outlineCSP)
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "text/html; charset=utf-8", a.outlinePage)
}

func (a *Application) redirectToOutline(c *gin.Context) {
	c.Redirect(http.StatusTemporaryRedirect, "/outline")
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "alive",
		"release": buildinfo.Release(),
	})
}

func (a *Application) getFeatures() map[string]bool {
	return map[string]bool{
		"event_log":      a.db != nil,
		"online_answers": a.answerer != nil,
		"r2":             a.r2 != nil,
		"deep_links":     a.cfg != nil && a.cfg.LineBotBasicID != "",
	}
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheck)
	defer cancel()

	if a.kb == nil || a.matcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "knowledge base not loaded",
		})
		return
	}

	database := "disabled"
	if a.db != nil {
		if err := a.db.Ping(ctx); err != nil {
			a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": "database unavailable",
			})
			return
		}
		database = "connected"
	}

	questions := 0
	if a.index != nil {
		questions = len(a.index.Questions())
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": database,
		"knowledge": gin.H{
			"source":            a.kb.Source(),
			"entries":           a.kb.Len(),
			"outline_questions": questions,
		},
		"features": a.getFeatures(),
	})
}

// securityHeadersMiddleware adds security headers to responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Next()
	}
}

// requestIDHeaders are checked in order for an upstream request id.
var requestIDHeaders = []string{"X-Request-Id", "X-Correlation-Id"}

// loggingMiddleware tags each request with an id (generated when the caller
// sent none) and logs it at a level chosen by status:
// 5xx=Error, 4xx=Warn, 404 and below=Debug.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		var requestID string
		for _, h := range requestIDHeaders {
			if requestID = c.GetHeader(h); requestID != "" {
				break
			}
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), requestID))
		c.Header("X-Request-Id", requestID)

		c.Next()

		status := c.Writer.Status()
		entry := log.WithField("http_method", method).
			WithField("http_path", path).
			WithField("http_status", status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			WithField("client_ip", c.ClientIP()).
			WithRequestID(requestID)

		switch {
		case status >= 500:
			entry.Error("HTTP request failed")
		case status >= 400 && status != http.StatusNotFound:
			entry.Warn("HTTP request rejected")
		case status == http.StatusNotFound:
			entry.Debug("HTTP request not found")
		default:
			entry.Debug("HTTP request completed")
		}
	}
}
