package server

import (
	"bytes"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ClientScriptPath is where the reload client script is served.
const ClientScriptPath = "/__specto/client.js"

// ClientScriptTag loads the reload client into a served document.
var ClientScriptTag = []byte(`<script src="` + ClientScriptPath + `"></script>`)

// InjectScript inserts tag right before the last </body> of doc, or appends
// it when the document has no closing body tag.
func InjectScript(doc, tag []byte) []byte {
	at := lastBodyClose(doc)
	if at < 0 {
		out := make([]byte, 0, len(doc)+len(tag))
		out = append(out, doc...)
		return append(out, tag...)
	}

	out := make([]byte, 0, len(doc)+len(tag))
	out = append(out, doc[:at]...)
	out = append(out, tag...)
	return append(out, doc[at:]...)
}

// lastBodyClose returns the byte offset of the last </body> end tag. The
// tokenizer skips look-alikes inside scripts, comments and attributes.
func lastBodyClose(doc []byte) int {
	z := html.NewTokenizer(bytes.NewReader(doc))
	offset, found := 0, -1

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF or a read error; either way the scan is over.
			return found
		}

		raw := len(z.Raw())
		if tt == html.EndTagToken {
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Body {
				found = offset
			}
		}
		offset += raw
	}
}
