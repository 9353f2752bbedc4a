package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"example.com/wordle-versus/internal/apperr"
	"example.com/wordle-versus/internal/dictionary"
)

type DictionaryHandler struct {
	Dict *dictionary.Provider
	Log  *slog.Logger
}

func lengthParam(r *http.Request) (int, error) {
	n, err := strconv.Atoi(mux.Vars(r)["length"])
	if err != nil {
		return 0, apperr.InvalidArgument("length must be a number")
	}
	return n, nil
}

func (h *DictionaryHandler) Lengths(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]int{"lengths": h.Dict.AvailableLengths()})
}

func (h *DictionaryHandler) Config(w http.ResponseWriter, r *http.Request) {
	n, err := lengthParam(r)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	cfg, err := h.Dict.Config(n)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *DictionaryHandler) Words(w http.ResponseWriter, r *http.Request) {
	n, err := lengthParam(r)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	words, err := h.Dict.Words(n, r.URL.Query().Get("rare") == "true")
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"words": words})
}
