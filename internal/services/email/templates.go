// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

func htmlMessage(d messageData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		parts := []string{
			`<!DOCTYPE html><html><body style="font-family:sans-serif;line-height:1.5;color:#1f2937">`,
			`<p>`, templ.EscapeString(d.Greeting), `</p>`,
			`<p>`, templ.EscapeString(d.Body), `</p>`,
		}
		if d.Code != "" {
			parts = append(parts,
				`<p style="font-size:28px;font-weight:bold;letter-spacing:6px">`, templ.EscapeString(d.Code), `</p>`)
		}
		if d.Link != "" {
			parts = append(parts,
				`<p><a href="`, templ.EscapeString(string(templ.URL(d.Link))), `" style="display:inline-block;padding:10px 18px;background:#2563eb;color:#fff;border-radius:6px;text-decoration:none">`,
				templ.EscapeString(d.LinkAction), `</a></p>`,
				`<p style="font-size:12px;color:#6b7280">`, templ.EscapeString(d.Link), `</p>`)
		}
		parts = append(parts,
			`<p style="font-size:12px;color:#6b7280">`, templ.EscapeString(d.Footer), `</p>`,
			`<p>`, templ.EscapeString(d.Signature), `</p>`,
			`</body></html>`)

		for _, p := range parts {
			if _, err := io.WriteString(w, p); err != nil {
				return err
			}
		}
		return nil
	})
}
