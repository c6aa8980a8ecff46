package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	tmplVerification      = "verification.html"
	tmplPasswordReset     = "password-reset.html"
	tmplOrderConfirmation = "order-confirmation.html"
	tmplOrderStatusUpdate = "order-status-update.html"
	tmplLowStockAlert     = "low-stock-alert.html"
)

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
}).ParseFS(templateFS, "templates/*.html"))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("notify: failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}
