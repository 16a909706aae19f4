package httpadapter

import (
	"net/http"
	"sync/atomic"
)

// onceResponder lets exactly one of several racing paths write the response.
// Callers that lose the race must not touch the ResponseWriter.
type onceResponder struct {
	w       http.ResponseWriter
	written atomic.Bool
}

func newOnceResponder(w http.ResponseWriter) *onceResponder {
	return &onceResponder{w: w}
}

func (o *onceResponder) writeJSON(status int, payload any) bool {
	if !o.written.CompareAndSwap(false, true) {
		return false
	}
	writeJSON(o.w, status, payload)
	return true
}
