package httpserver

import (
	"encoding/json"
	"mime"
	"net/http"
)

// maxBodyBytes bounds request bodies; credentials are tiny.
const maxBodyBytes = 1 << 16

// readFields returns the request's string fields from a JSON object body or
// from form values, depending on Content-Type.
func readFields(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	}

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		fields := map[string]string{}
		if r.Body == nil || r.ContentLength == 0 {
			return fields, nil
		}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			return nil, err
		}
		return fields, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(r.Form))
	for k := range r.Form {
		fields[k] = r.Form.Get(k)
	}
	return fields, nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondMessage(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"message": msg})
}
