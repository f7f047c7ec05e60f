package chat

import "github.com/scribeai/scribe/internal/extract"

// Request is a composed prompt ready for generation. It is either a
// TextRequest or a MultiModalRequest.
type Request interface {
	isRequest()
}

// TextRequest carries a prompt with no inline images.
type TextRequest struct {
	Prompt string
}

// MultiModalRequest carries a prompt plus at least one inline image.
type MultiModalRequest struct {
	Prompt string
	Images []extract.ImagePayload
}

func (TextRequest) isRequest()       {}
func (MultiModalRequest) isRequest() {}

// NewRequest picks the variant from the number of images.
func NewRequest(prompt string, images []extract.ImagePayload) Request {
	if len(images) == 0 {
		return TextRequest{Prompt: prompt}
	}
	copied := make([]extract.ImagePayload, len(images))
	copy(copied, images)
	return MultiModalRequest{Prompt: prompt, Images: copied}
}
