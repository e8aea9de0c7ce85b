// Package handlers implements the HTTP handlers of the REST API. Handlers
// decode requests, call a service and write the response envelope.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/deckvault/internal/api/response"
	"github.com/ramonehamilton/deckvault/internal/storage/models"
	"github.com/ramonehamilton/deckvault/internal/storage/repository"
)

// maxBodyBytes limits request bodies; bulk lists are the largest payloads.
const maxBodyBytes = 2 << 20

type userKey struct{}

// WithUser stores the authenticated user in the context.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey{}).(*models.User)
	return user
}

// currentUserID writes a 401 and returns false when the request is anonymous.
func currentUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	user := UserFromContext(r.Context())
	if user == nil {
		response.Unauthorized(w, errors.New("authentication required"))
		return 0, false
	}
	return user.ID, true
}

// pathID parses a positive integer URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, fmt.Errorf("invalid %s %q", name, raw))
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v, writing a 400 on failure. An
// empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, errors.New("invalid request body"))
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

// queryFloat parses an optional float query parameter.
func queryFloat(r *http.Request, name string) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return &v, nil
}

// queryBool is true for "1", "true" and "yes".
func queryBool(r *http.Request, name string) bool {
	switch strings.ToLower(r.URL.Query().Get(name)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// queryList splits a comma separated parameter, also accepting repeats.
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// queryPage reads page and page_size.
func queryPage(r *http.Request) (repository.Page, error) {
	page, err := queryInt(r, "page")
	if err != nil {
		return repository.Page{}, err
	}
	size, err := queryInt(r, "page_size")
	if err != nil {
		return repository.Page{}, err
	}
	return repository.Page{Page: page, PageSize: size}, nil
}

// sortParams reads sort and order ("asc" or "desc").
func sortParams(r *http.Request) (string, bool) {
	return strings.ToLower(r.URL.Query().Get("sort")), strings.EqualFold(r.URL.Query().Get("order"), "desc")
}

func tokenParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "token"))
}
