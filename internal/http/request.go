package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	HeaderHelpUser = "X-Help-User"
	CookieHelpUser = "help_user"
	AnonymousUser  = "anonymous"

	maxUserLen   = 64
	maxBodyBytes = 64 << 10
)

var errEmptyBody = errors.New("empty request body")

// userFromRequest identifies the help-state owner from the header, then the
// cookie. Values outside [A-Za-z0-9._@-] or too long fall back to anonymous.
func userFromRequest(r *http.Request) string {
	if u := cleanUser(r.Header.Get(HeaderHelpUser)); u != "" {
		return u
	}
	if c, err := r.Cookie(CookieHelpUser); err == nil {
		if u := cleanUser(c.Value); u != "" {
			return u
		}
	}
	return AnonymousUser
}

func cleanUser(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxUserLen {
		return ""
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.' || c == '_' || c == '@' || c == '-':
		default:
			return ""
		}
	}
	return s
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("body exceeds %d bytes", maxBodyBytes)
	}
	return body, nil
}

func decodeJSON(r *http.Request, v any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errEmptyBody
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// gatingEvent is a POST /api/events payload: {"event": name, "data": any}.
type gatingEvent struct {
	Name string
	Data any
}

func parseGatingEvent(r *http.Request) (gatingEvent, error) {
	if !isJSON(r) {
		name := strings.TrimSpace(r.FormValue("event"))
		if name == "" {
			return gatingEvent{}, errors.New("missing event name")
		}
		return gatingEvent{Name: name}, nil
	}

	body, err := readBody(r)
	if err != nil {
		return gatingEvent{}, err
	}
	if !gjson.ValidBytes(body) {
		return gatingEvent{}, errors.New("invalid json")
	}
	name := strings.TrimSpace(gjson.GetBytes(body, "event").String())
	if name == "" {
		return gatingEvent{}, errors.New("missing event name")
	}
	ev := gatingEvent{Name: name}
	if data := gjson.GetBytes(body, "data"); data.Exists() {
		ev.Data = data.Value()
	}
	return ev, nil
}

// stringParam reads key from a JSON body or from form and query values.
func stringParam(r *http.Request, key string) (string, error) {
	if !isJSON(r) {
		return strings.TrimSpace(r.FormValue(key)), nil
	}
	body, err := readBody(r)
	if err != nil {
		return "", err
	}
	if v := r.URL.Query().Get(key); v != "" {
		return strings.TrimSpace(v), nil
	}
	return strings.TrimSpace(gjson.GetBytes(body, key).String()), nil
}

func boolQuery(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

func floatQuery(r *http.Request, key string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(r.URL.Query().Get(key)), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
