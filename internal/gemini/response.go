package gemini

import (
	"git.sr.ht/~adnano/go-gemini"
)

const (
	mediaGemtext = "text/gemini"
	mediaAtom    = "application/atom+xml"
)

// Response is the outcome of routing one request. Meta is the media type
// on success and the error message otherwise.
type Response struct {
	Status gemini.Status
	Meta   string
	Body   []byte
}

func success(mediaType string, body []byte) Response {
	return Response{Status: gemini.StatusSuccess, Meta: mediaType, Body: body}
}

func failure(status gemini.Status, meta string) Response {
	return Response{Status: status, Meta: meta}
}

// Send writes the response header and, on success, the body.
func (r Response) Send(w gemini.ResponseWriter) error {
	w.WriteHeader(r.Status, r.Meta)
	if r.Status != gemini.StatusSuccess || len(r.Body) == 0 {
		return nil
	}
	_, err := w.Write(r.Body)
	return err
}
