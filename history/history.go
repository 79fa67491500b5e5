// Package history bounds transcript size before a conversation is resent to
// a model. Inlined media payloads (base64 data-URI images, video download
// links) dominate token budgets while carrying no information the model can
// use, so they are rewritten to short placeholders.
package history

import (
	"regexp"

	"github.com/canopyai/canopy/core"
)

const (
	// ImagePlaceholder replaces an inlined base64 image in compressed text.
	ImagePlaceholder = "[image generated previously]"

	// VideoPlaceholder replaces a video download link in compressed text.
	VideoPlaceholder = "[video generated previously]"
)

// dataImagePattern matches markdown images carrying a base64 data URI,
// e.g. ![alt](data:image/png;base64,AAAA...).
var dataImagePattern = regexp.MustCompile(`!\[[^\]]*\]\(data:image/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/=\s]*\)`)

// videoLinkPattern matches markdown video download links,
// e.g. [Download video](https://...) or [video](data:video/mp4;base64,...).
var videoLinkPattern = regexp.MustCompile(`\[[^\]]*[Vv]ideo[^\]]*\]\((?:data:video/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/=\s]*|[^)]*)\)`)

// Compress replaces inlined media payloads in a transcript with short
// placeholders. It is idempotent: compressing already-compressed text is a
// no-op, and the output never retains a data:image payload longer than the
// placeholder.
func Compress(text string) string {
	out := dataImagePattern.ReplaceAllString(text, ImagePlaceholder)
	out = videoLinkPattern.ReplaceAllString(out, VideoPlaceholder)
	return out
}

// CompressMessages returns a copy of the given messages with each content
// string compressed. The input slice is not modified; callers apply this to
// prior history only, never to content produced in the current turn.
func CompressMessages(messages []core.Message) []core.Message {
	if len(messages) == 0 {
		return messages
	}

	out := make([]core.Message, len(messages))
	for i, m := range messages {
		m.Content = Compress(m.Content)
		out[i] = m
	}
	return out
}
