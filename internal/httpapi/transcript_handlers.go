package httpapi

import "net/http"

type transcriptResponse struct {
	SessionID  string `json:"session_id"`
	Transcript string `json:"transcript"`
}

type partialResponse struct {
	SessionID string `json:"session_id"`
	Partial   string `json:"partial"`
}

// handleGetTranscript returns the accumulated transcript for a live
// session. The periodic summarizer polls this on its own cadence.
func (r *Router) handleGetTranscript(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	text, ok := r.store.Transcript(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, transcriptResponse{SessionID: id, Transcript: text})
}

// handleGetPartial returns the current in-progress text for the UI live
// preview.
func (r *Router) handleGetPartial(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	text, ok := r.store.Partial(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, partialResponse{SessionID: id, Partial: text})
}
