package nomadtest

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// AddToken seeds an ACL token. Missing accessor and secret IDs are
// generated; the stored token is returned.
func (s *Server) AddToken(token map[string]any) map[string]any {
	t := clone(token)
	if t == nil {
		t = object{}
	}
	if stringField(t, "AccessorID") == "" {
		t["AccessorID"] = uuid.New().String()
	}
	if stringField(t, "SecretID") == "" {
		t["SecretID"] = uuid.New().String()
	}
	if stringField(t, "Type") == "" {
		t["Type"] = "client"
	}
	idx := s.nextIndex()
	t["CreateTime"] = time.Now().UTC().Format(time.RFC3339Nano)
	t["CreateIndex"] = idx
	t["ModifyIndex"] = idx
	s.tokens.Put(stringField(t, "AccessorID"), t)
	return clone(t)
}

func (s *Server) tokenBySecret(secret string) object {
	for _, t := range s.tokens.List(nil) {
		if stringField(t, "SecretID") == secret {
			return t
		}
	}
	return nil
}

func (s *Server) bootstrapACL(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	done := s.bootstrapped
	s.bootstrapped = true
	s.mu.Unlock()
	if done {
		writeError(w, http.StatusBadRequest, "ACL bootstrap already done")
		return
	}
	token := s.AddToken(map[string]any{
		"Name":   "Bootstrap Token",
		"Type":   "management",
		"Global": true,
	})
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	tokens := s.tokens.List(nil)
	for _, t := range tokens {
		delete(t, "SecretID")
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) createToken(w http.ResponseWriter, r *http.Request) {
	var req object
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req == nil {
		req = object{}
	}
	if stringField(req, "AccessorID") != "" {
		writeError(w, http.StatusBadRequest, "AccessorID must not be set when creating a token")
		return
	}
	if t := stringField(req, "Type"); t != "" && t != "client" && t != "management" {
		writeError(w, http.StatusBadRequest, "token type must be client or management")
		return
	}
	writeJSON(w, http.StatusOK, s.AddToken(req))
}

func (s *Server) selfToken(w http.ResponseWriter, r *http.Request) {
	token := s.tokenBySecret(r.Header.Get("X-Nomad-Token"))
	if token == nil {
		writeError(w, http.StatusForbidden, "ACL token not found")
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) getToken(w http.ResponseWriter, r *http.Request) {
	token := s.tokens.Get(urlParam(r, "id"))
	if token == nil {
		writeError(w, http.StatusNotFound, "ACL token not found")
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) updateToken(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	var req object
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if aid := stringField(req, "AccessorID"); aid != "" && aid != id {
		writeError(w, http.StatusBadRequest, "Token Accessor ID does not match URL")
		return
	}
	idx := s.nextIndex()
	if !s.tokens.Update(id, func(t object) {
		for _, f := range []string{"Name", "Type", "Policies", "Global"} {
			if v, ok := req[f]; ok {
				t[f] = v
			}
		}
		t["ModifyIndex"] = idx
	}) {
		writeError(w, http.StatusNotFound, "ACL token not found")
		return
	}
	writeJSON(w, http.StatusOK, s.tokens.Get(id))
}

func (s *Server) deleteToken(w http.ResponseWriter, r *http.Request) {
	if !s.tokens.Delete(urlParam(r, "id")) {
		writeError(w, http.StatusNotFound, "ACL token not found")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// policyHandlers serves ACL and Sentinel policies, which share a shape.
type policyHandlers struct {
	s     *Server
	store *store
}

func (s *Server) policyHandlers(st *store) policyHandlers {
	return policyHandlers{s: s, store: st}
}

func (h policyHandlers) list(w http.ResponseWriter, r *http.Request) {
	policies := h.store.List(nil)
	stubs := make([]object, 0, len(policies))
	for _, p := range policies {
		stub := object{
			"Name":        p["Name"],
			"Description": p["Description"],
			"CreateIndex": p["CreateIndex"],
			"ModifyIndex": p["ModifyIndex"],
		}
		if scope, ok := p["Scope"]; ok {
			stub["Scope"] = scope
			stub["EnforcementLevel"] = p["EnforcementLevel"]
		}
		stubs = append(stubs, stub)
	}
	writeJSON(w, http.StatusOK, stubs)
}

func (h policyHandlers) get(w http.ResponseWriter, r *http.Request) {
	p := h.store.Get(urlParam(r, "id"))
	if p == nil {
		writeError(w, http.StatusNotFound, "policy not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// put upserts a policy. Nomad answers policy writes with an empty body.
func (h policyHandlers) put(w http.ResponseWriter, r *http.Request) {
	name := urlParam(r, "id")
	var req object
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req == nil {
		writeError(w, http.StatusBadRequest, "Missing policy")
		return
	}
	if n := stringField(req, "Name"); n != "" && n != name {
		writeError(w, http.StatusBadRequest, "Policy name does not match request path")
		return
	}
	req["Name"] = name

	idx := h.s.nextIndex()
	req["ModifyIndex"] = idx
	req["CreateIndex"] = idx
	if prev := h.store.Get(name); prev != nil {
		req["CreateIndex"] = prev["CreateIndex"]
	}
	h.store.Put(name, req)
	w.WriteHeader(http.StatusOK)
}

func (h policyHandlers) delete(w http.ResponseWriter, r *http.Request) {
	if !h.store.Delete(urlParam(r, "id")) {
		writeError(w, http.StatusNotFound, "policy not found")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) garbageCollect(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.gcRuns++
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) reconcileSummaries(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.reconciles++
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}
