// hello.go - Greeting and collection endpoints.
//
// Six GET routes: a greeting, two mutations (append to the log, increment
// in the frequency table) and three read-back views.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultGreetingName = "world"

	greetingFormat = "Hello %s"
	appendedFormat = "Строка %s добавлена в список"
	countedFormat  = "Строка %s добавлена в словарь"
	summaryFormat  = "Словарь содержит %d элементов, список содержит %d элементов"

	valueParam = "string"
)

func (s *Server) registerHelloRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /hello", s.handleHello)
	mux.HandleFunc("GET /updateArrayList", s.handleUpdateArrayList)
	mux.HandleFunc("GET /updateHashMap", s.handleUpdateHashMap)
	mux.HandleFunc("GET /showHashMap", s.handleShowHashMap)
	mux.HandleFunc("GET /showArrayList", s.handleShowArrayList)
	mux.HandleFunc("GET /showAllLength", s.handleShowAllLength)
}

// handleHello greets the caller. An absent or empty name falls back to "world".
func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	name := joinedParam(r.URL.Query(), "name")
	if name == "" {
		name = defaultGreetingName
	}
	s.metrics.RecordGreeting()
	writeText(w, http.StatusOK, fmt.Sprintf(greetingFormat, name))
}

func (s *Server) handleUpdateArrayList(w http.ResponseWriter, r *http.Request) {
	value, ok := requiredParam(w, r, valueParam)
	if !ok {
		return
	}

	s.store.Append(value)
	s.metrics.RecordLogAppend()
	s.recordAudit(r, AuditActionLogAppend, value)

	writeText(w, http.StatusOK, fmt.Sprintf(appendedFormat, value))
}

func (s *Server) handleUpdateHashMap(w http.ResponseWriter, r *http.Request) {
	value, ok := requiredParam(w, r, valueParam)
	if !ok {
		return
	}

	count := s.store.Increment(value)
	s.metrics.RecordFrequencyIncrement()
	s.recordAudit(r, AuditActionFrequencyIncrement, value)

	Debug("frequency incremented", map[string]any{
		"value": value,
		"count": count,
	})

	writeText(w, http.StatusOK, fmt.Sprintf(countedFormat, value))
}

func (s *Server) handleShowHashMap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Frequencies())
}

func (s *Server) handleShowArrayList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Log())
}

func (s *Server) handleShowAllLength(w http.ResponseWriter, r *http.Request) {
	frequencyKeys, logEntries := s.store.Sizes()
	writeText(w, http.StatusOK, fmt.Sprintf(summaryFormat, frequencyKeys, logEntries))
}

// requiredParam returns the named query parameter, or writes a 400 and
// reports false when it is absent. An empty value is still a value.
func requiredParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	q := r.URL.Query()
	if !q.Has(name) {
		writeText(w, http.StatusBadRequest,
			fmt.Sprintf("Required request parameter '%s' is not present", name))
		return "", false
	}
	return joinedParam(q, name), true
}

// joinedParam binds a repeated parameter as its values joined by commas,
// so ?string=a&string=b reads as "a,b".
func joinedParam(q url.Values, name string) string {
	return strings.Join(q[name], ",")
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain;charset=UTF-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// writeJSON writes v without the trailing newline json.Encoder would add,
// so an empty table is exactly "{}".
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		Error("response encoding failed", nil, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeJSONError is used by the operational routes.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
