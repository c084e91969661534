package query

import (
	"encoding/json"
	"net/http"

	"github.com/turbolytics/cataloger/internal/catalog"
)

const TruncatedHeader = "X-Catalog-Truncated"

// ErrorResponse is the body rendered for failed queries.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Response is a rendered query result, independent of the transport that
// delivers it.
type Response struct {
	StatusCode int
	Truncated  bool
	Body       []byte
}

// StatusCode maps query errors onto HTTP status codes.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case catalog.ErrBadRequest.Has(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NewResponse renders a page, or the error that prevented it, as JSON.
// An empty page renders as [].
func NewResponse(page Page, err error) Response {
	if err != nil {
		code := StatusCode(err)
		msg := err.Error()
		if code == http.StatusInternalServerError {
			msg = "internal error"
		}
		bs, _ := json.Marshal(ErrorResponse{Error: msg})
		return Response{StatusCode: code, Body: bs}
	}

	records := page.Records
	if records == nil {
		records = []catalog.Record{}
	}

	bs, err := json.Marshal(records)
	if err != nil {
		return NewResponse(Page{}, catalog.ErrStoreRead.Wrap(err))
	}
	return Response{StatusCode: http.StatusOK, Truncated: page.Truncated, Body: bs}
}

func (r Response) Headers() map[string]string {
	h := map[string]string{
		"Content-Type": "application/json",
	}
	if r.Truncated {
		h[TruncatedHeader] = "true"
	}
	return h
}

func (r Response) Write(w http.ResponseWriter) {
	for k, v := range r.Headers() {
		w.Header().Set(k, v)
	}
	w.WriteHeader(r.StatusCode)
	w.Write(r.Body)
}
