package handlers

import (
	"net/http"

	"github.com/classbot-dev/classbot/pkg/relay"
	"github.com/classbot-dev/classbot/pkg/relay/mw"
)

type NotFoundHandler struct{}

func (h NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	writeErrorJSON(w, reqID, &relay.Error{
		Type:    relay.ErrNotFound,
		Message: "not found",
	}, http.StatusNotFound)
}
