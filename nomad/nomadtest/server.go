// Package nomadtest provides an in-memory stand-in for the Nomad HTTP API,
// for tests that exercise a real client over real HTTP.
//
// The fake keeps jobs, nodes, allocations, evaluations, ACL and Sentinel
// objects in memory and answers the same status codes a Nomad agent would
// for the paths the client uses. It is not a scheduler: registering a job
// creates no allocations unless a test seeds them.
package nomadtest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Request is a request as received by the fake server.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Server is a running fake Nomad agent.
type Server struct {
	*httptest.Server

	jobs        *store
	versions    *store // job ID -> {"Versions": []any}
	nodes       *store
	allocs      *store
	evals       *store
	deployments *store
	tokens      *store
	policies    *store
	sentinel    *store

	mu           sync.Mutex
	index        uint64
	requests     []Request
	canned       map[string]cannedResponse
	token        string
	bootstrapped bool
	gcRuns       int
	reconciles   int
}

type cannedResponse struct {
	status int
	body   string
}

// Option configures a Server.
type Option func(*Server)

// WithToken makes the server reject requests whose X-Nomad-Token is neither
// token nor the secret of a known ACL token.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// NewServer starts a fake agent. Call Close when done.
func NewServer(opts ...Option) *Server {
	s := &Server{
		jobs:        newStore(),
		versions:    newStore(),
		nodes:       newStore(),
		allocs:      newStore(),
		evals:       newStore(),
		deployments: newStore(),
		tokens:      newStore(),
		policies:    newStore(),
		sentinel:    newStore(),
		canned:      make(map[string]cannedResponse),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)
	r.Use(s.cannedResponses)
	r.Use(s.authenticate)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/jobs", s.listJobs)
		r.Route("/job/{id}", func(r chi.Router) {
			r.Get("/", s.getJob)
			r.Post("/", s.registerJob)
			r.Delete("/", s.deregisterJob)
			r.Get("/versions", s.jobVersions)
			r.Get("/allocations", s.jobAllocations)
			r.Get("/evaluations", s.jobEvaluations)
			r.Get("/deployments", s.jobDeployments)
			r.Get("/deployment", s.jobDeployment)
			r.Get("/summary", s.jobSummary)
			r.Post("/evaluate", s.evaluateJob)
			r.Post("/plan", s.planJob)
			r.Post("/periodic/force", s.forcePeriodic)
			r.Post("/dispatch", s.dispatchJob)
			r.Post("/revert", s.revertJob)
			r.Post("/stable", s.stableJob)
		})

		r.Get("/nodes", s.listNodes)
		r.Route("/node/{id}", func(r chi.Router) {
			r.Get("/", s.getNode)
			r.Get("/allocations", s.nodeAllocations)
			r.Post("/evaluate", s.evaluateNode)
			r.Post("/drain", s.drainNode)
			r.Post("/eligibility", s.nodeEligibility)
			r.Post("/purge", s.purgeNode)
		})

		r.Get("/allocations", s.listAllocations)
		r.Get("/allocation/{id}", s.getAllocation)
		r.Post("/allocation/{id}/stop", s.stopAllocation)

		r.Route("/acl", func(r chi.Router) {
			r.Post("/bootstrap", s.bootstrapACL)
			r.Get("/tokens", s.listTokens)
			r.Post("/token", s.createToken)
			r.Get("/token/self", s.selfToken)
			r.Get("/token/{id}", s.getToken)
			r.Post("/token/{id}", s.updateToken)
			r.Delete("/token/{id}", s.deleteToken)
			r.Get("/policies", s.policyHandlers(s.policies).list)
			r.Get("/policy/{id}", s.policyHandlers(s.policies).get)
			r.Post("/policy/{id}", s.policyHandlers(s.policies).put)
			r.Delete("/policy/{id}", s.policyHandlers(s.policies).delete)
		})

		r.Route("/sentinel", func(r chi.Router) {
			r.Get("/policies", s.policyHandlers(s.sentinel).list)
			r.Get("/policy/{id}", s.policyHandlers(s.sentinel).get)
			r.Post("/policy/{id}", s.policyHandlers(s.sentinel).put)
			r.Delete("/policy/{id}", s.policyHandlers(s.sentinel).delete)
		})

		r.Put("/system/gc", s.garbageCollect)
		r.Put("/system/reconcile/summaries", s.reconcileSummaries)
	})
	return r
}

// Requests returns every request received so far, oldest first.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request, or nil if none arrived.
func (s *Server) LastRequest() *Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	r := s.requests[len(s.requests)-1]
	return &r
}

// Respond makes the server answer method+path with a fixed status and body
// instead of the normal handler.
func (s *Server) Respond(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canned[method+" "+path] = cannedResponse{status: status, body: body}
}

// GCRuns returns how many garbage collections were requested.
func (s *Server) GCRuns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gcRuns
}

// Reconciles returns how many summary reconciliations were requested.
func (s *Server) Reconciles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconciles
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) cannedResponses(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		c, ok := s.canned[r.Method+" "+r.URL.Path]
		s.mu.Unlock()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		w.WriteHeader(c.status)
		w.Write([]byte(c.body))
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" || r.URL.Path == "/v1/acl/bootstrap" {
			next.ServeHTTP(w, r)
			return
		}
		secret := r.Header.Get("X-Nomad-Token")
		if secret == s.token || (secret != "" && s.tokenBySecret(secret) != nil) {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusForbidden, "Permission denied")
	})
}

// nextIndex returns a new Raft-like modify index.
func (s *Server) nextIndex() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index++
	return s.index
}

// newEval records an evaluation and returns it.
func (s *Server) newEval(triggeredBy, jobID, nodeID string) object {
	idx := s.nextIndex()
	eval := object{
		"ID":          uuid.New().String(),
		"TriggeredBy": triggeredBy,
		"JobID":       jobID,
		"NodeID":      nodeID,
		"Status":      "pending",
		"CreateIndex": idx,
		"ModifyIndex": idx,
	}
	s.evals.Put(eval["ID"].(string), eval)
	return eval
}

func readJSON(r *http.Request, dest any) error {
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError answers in plain text, as the Nomad agent does.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(msg))
}

func listOrEmpty(items []object) []object {
	if items == nil {
		return []object{}
	}
	return items
}
