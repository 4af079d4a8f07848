package preview

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// downloadName matches the file name the export endpoint serves.
const downloadName = "poster.png"

// Stage renders the layered preview of m. Pointer-down on an element
// carrying data-drag-subject starts a drag of that subject. Overlay and
// grid ignore the pointer.
func Stage(m Model) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		renderStage(&buf, m)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

func renderStage(buf *bytes.Buffer, m Model) {
	if m.Template == nil {
		buf.WriteString(`<div id="stage" class="stage stage-empty">Select a template</div>`)
		return
	}
	t := m.Template
	fmt.Fprintf(buf,
		`<div id="stage" class="stage" data-width="%d" data-height="%d" style="position:relative;overflow:hidden;width:%dpx;height:%dpx">`,
		t.Width, t.Height, t.Width, t.Height)
	for _, l := range Layers(m) {
		switch l.Kind {
		case KindBackground:
			fmt.Fprintf(buf,
				`<div class="layer layer-background" data-drag-subject="%s" style="%s"><img src="%s" alt="Background" draggable="false" style="max-width:none"></div>`,
				l.Subject, templ.EscapeString(l.Style), templ.EscapeString(l.Src))
		case KindOverlay:
			fmt.Fprintf(buf,
				`<img class="layer layer-overlay" src="%s" alt="Template" draggable="false" style="%s">`,
				templ.EscapeString(l.Src), templ.EscapeString(l.Style))
		case KindText:
			fmt.Fprintf(buf,
				`<div class="layer layer-text" data-drag-subject="%s" style="%s">%s</div>`,
				l.Subject, templ.EscapeString(l.Style), templ.EscapeString(l.Text))
		case KindGrid:
			fmt.Fprintf(buf, `<div class="layer layer-grid" style="%s"></div>`, templ.EscapeString(l.Style))
		}
	}
	buf.WriteString(`</div>`)
}

// Page renders the full editor page.
func Page(m Model) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		renderPage(&buf, m)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

func renderPage(buf *bytes.Buffer, m Model) {
	st := m.State
	fmt.Fprintf(buf, `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="csrf-token" content="%s">
<title>Poster editor</title>
<link rel="stylesheet" href="/public/editor.css">
</head>
<body>
<main class="editor">
<h1>Poster editor</h1>
`, templ.EscapeString(m.CSRFToken))

	buf.WriteString(`<section class="templates"><h2>Templates</h2><div class="template-list">`)
	for _, t := range m.Templates {
		class := "template"
		if m.Template != nil && m.Template.Name == t.Name {
			class += " selected"
		}
		fmt.Fprintf(buf,
			`<button type="button" class="%s" data-action="template" data-name="%s"><img src="%s" alt=""><span>%s</span></button>`,
			class, templ.EscapeString(t.Name), templ.EscapeString(t.Thumbnail), templ.EscapeString(t.Name))
	}
	buf.WriteString(`</div></section>`)

	hasImage := m.BackgroundURL != ""
	disabled := ""
	if !hasImage {
		disabled = " disabled"
	}
	fmt.Fprintf(buf, `<section class="controls">
<div class="panel">
<h3>Background image</h3>
<form data-action="upload" enctype="multipart/form-data"><input type="file" name="image" accept="image/*"><button type="submit">Upload image</button></form>
<form data-action="remove-background"><label>remove.bg API key <input type="text" name="api_key" autocomplete="off"></label><button type="submit"%s>Remove background</button></form>
<p class="error" role="alert">%s</p>
<div class="buttons">
<button type="button" data-action="scale" data-factor="1.1"%s>Zoom in</button>
<button type="button" data-action="scale" data-factor="0.9"%s>Zoom out</button>
<button type="button" data-action="center"%s>Center</button>
<button type="button" data-action="toggle" data-name="grid" aria-pressed="%t">Grid</button>
<button type="button" data-action="toggle" data-name="template" aria-pressed="%t">Template</button>
</div>
</div>
`, disabled, templ.EscapeString(m.Error), disabled, disabled, disabled, st.ShowGrid, st.ShowTemplate)

	fmt.Fprintf(buf, `<div class="panel">
<h3>Price</h3>
<form data-action="price">
<label>Text <input type="text" name="price" value="%s" placeholder="$99"></label>
<label>Color <input type="color" name="color" value="%s"></label>
<button type="submit">Apply</button>
</form>
<div class="buttons">
<button type="button" data-action="font-size" data-delta="-5">A-</button>
<span class="font-size">%dpx</span>
<button type="button" data-action="font-size" data-delta="5">A+</button>
<button type="button" data-action="price-area">Template position</button>
</div>
<a class="download%s" href="/export/%s" download="%s">Download poster</a>
</div>
</section>
`, templ.EscapeString(st.Price), templ.EscapeString(SafeColor(st.PriceColor)), st.PriceFontSize,
		disabled, downloadName, downloadName)

	buf.WriteString(`<section class="preview"><div id="stage-frame" class="stage-frame">`)
	renderStage(buf, m)
	buf.WriteString(`</div></section>`)

	buf.WriteString(`<section class="instructions"><h2>How to use</h2><ol>
<li>Pick a template.</li>
<li>Upload a background image and optionally remove its background.</li>
<li>Drag the image and the price to place them; zoom with the buttons.</li>
<li>Download the poster.</li>
</ol></section>
</main>
<script src="/public/editor.js" defer></script>
</body>
</html>
`)
}
