package nomadtest

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// AddNode seeds a client node. A missing ID is generated; the ID is returned.
func (s *Server) AddNode(node map[string]any) string {
	n := clone(node)
	if n == nil {
		n = object{}
	}
	if stringField(n, "ID") == "" {
		n["ID"] = uuid.New().String()
	}
	if stringField(n, "Status") == "" {
		n["Status"] = "ready"
	}
	if stringField(n, "SchedulingEligibility") == "" {
		n["SchedulingEligibility"] = "eligible"
	}
	if _, ok := n["Drain"]; !ok {
		n["Drain"] = false
	}
	idx := s.nextIndex()
	n["CreateIndex"] = idx
	n["ModifyIndex"] = idx
	id := stringField(n, "ID")
	s.nodes.Put(id, n)
	return id
}

// Node returns the stored node, or nil.
func (s *Server) Node(id string) map[string]any {
	return s.nodes.Get(id)
}

// AddAllocation seeds an allocation. A missing ID is generated.
func (s *Server) AddAllocation(alloc map[string]any) string {
	a := clone(alloc)
	if a == nil {
		a = object{}
	}
	if stringField(a, "ID") == "" {
		a["ID"] = uuid.New().String()
	}
	if stringField(a, "Namespace") == "" {
		a["Namespace"] = "default"
	}
	if stringField(a, "DesiredStatus") == "" {
		a["DesiredStatus"] = "run"
	}
	if stringField(a, "ClientStatus") == "" {
		a["ClientStatus"] = "running"
	}
	idx := s.nextIndex()
	a["CreateIndex"] = idx
	a["ModifyIndex"] = idx
	id := stringField(a, "ID")
	s.allocs.Put(id, a)
	return id
}

// Allocation returns the stored allocation, or nil.
func (s *Server) Allocation(id string) map[string]any {
	return s.allocs.Get(id)
}

func (s *Server) nodeOr404(w http.ResponseWriter, r *http.Request) (string, object) {
	id := urlParam(r, "id")
	node := s.nodes.Get(id)
	if node == nil {
		writeError(w, http.StatusNotFound, "node not found")
		return id, nil
	}
	return id, node
}

func (s *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	withResources := r.URL.Query().Get("resources") == "true"
	nodes := s.nodes.List(func(n object) bool {
		return strings.HasPrefix(stringField(n, "ID"), prefix)
	})
	stubs := make([]object, 0, len(nodes))
	for _, n := range nodes {
		stub := object{
			"ID":                    n["ID"],
			"Name":                  n["Name"],
			"Datacenter":            n["Datacenter"],
			"NodeClass":             n["NodeClass"],
			"Status":                n["Status"],
			"Drain":                 n["Drain"],
			"SchedulingEligibility": n["SchedulingEligibility"],
			"CreateIndex":           n["CreateIndex"],
			"ModifyIndex":           n["ModifyIndex"],
		}
		if withResources {
			stub["NodeResources"] = n["NodeResources"]
		}
		stubs = append(stubs, stub)
	}
	writeJSON(w, http.StatusOK, stubs)
}

func (s *Server) getNode(w http.ResponseWriter, r *http.Request) {
	_, node := s.nodeOr404(w, r)
	if node == nil {
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) nodeAllocations(w http.ResponseWriter, r *http.Request) {
	id, node := s.nodeOr404(w, r)
	if node == nil {
		return
	}
	writeJSON(w, http.StatusOK, listOrEmpty(s.allocs.List(func(a object) bool {
		return stringField(a, "NodeID") == id
	})))
}

// nodeUpdateResponse is the body returned by every node write.
func (s *Server) nodeUpdateResponse(w http.ResponseWriter, id, trigger string) {
	eval := s.newEval(trigger, "", id)
	writeJSON(w, http.StatusOK, object{
		"EvalIDs":         []any{eval["ID"]},
		"EvalCreateIndex": eval["CreateIndex"],
		"NodeModifyIndex": eval["ModifyIndex"],
		"Index":           eval["ModifyIndex"],
	})
}

func (s *Server) evaluateNode(w http.ResponseWriter, r *http.Request) {
	id, node := s.nodeOr404(w, r)
	if node == nil {
		return
	}
	s.nodeUpdateResponse(w, id, "node-update")
}

// drainNode accepts both the legacy ?enable= form and a DrainSpec body.
func (s *Server) drainNode(w http.ResponseWriter, r *http.Request) {
	id, node := s.nodeOr404(w, r)
	if node == nil {
		return
	}

	var enable bool
	var markEligible *bool
	var spec object
	if raw := r.URL.Query().Get("enable"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid enable value")
			return
		}
		enable = b
	} else {
		var req struct {
			NodeID       string
			DrainSpec    object
			MarkEligible *bool
		}
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.NodeID != "" && req.NodeID != id {
			writeError(w, http.StatusBadRequest, "NodeID does not match")
			return
		}
		enable = req.DrainSpec != nil
		spec = req.DrainSpec
		markEligible = req.MarkEligible
	}

	idx := s.nextIndex()
	s.nodes.Update(id, func(n object) {
		n["Drain"] = enable
		n["ModifyIndex"] = idx
		if enable {
			n["SchedulingEligibility"] = "ineligible"
			n["DrainStrategy"] = object{"DrainSpec": spec}
			return
		}
		n["DrainStrategy"] = nil
		if markEligible != nil && *markEligible {
			n["SchedulingEligibility"] = "eligible"
		}
	})
	s.nodeUpdateResponse(w, id, "node-drain")
}

func (s *Server) nodeEligibility(w http.ResponseWriter, r *http.Request) {
	id, node := s.nodeOr404(w, r)
	if node == nil {
		return
	}
	var req struct {
		NodeID      string
		Eligibility string
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Eligibility != "eligible" && req.Eligibility != "ineligible" {
		writeError(w, http.StatusBadRequest, "invalid scheduling eligibility")
		return
	}
	if boolField(node, "Drain") && req.Eligibility == "eligible" {
		writeError(w, http.StatusBadRequest, "can not set node's scheduling eligibility to eligible while it is draining")
		return
	}
	idx := s.nextIndex()
	s.nodes.Update(id, func(n object) {
		n["SchedulingEligibility"] = req.Eligibility
		n["ModifyIndex"] = idx
	})
	s.nodeUpdateResponse(w, id, "node-update")
}

func (s *Server) purgeNode(w http.ResponseWriter, r *http.Request) {
	id, node := s.nodeOr404(w, r)
	if node == nil {
		return
	}
	s.nodes.Delete(id)
	s.nodeUpdateResponse(w, id, "node-deregister")
}

func (s *Server) listAllocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prefix := q.Get("prefix")
	ns := q.Get("namespace")
	taskStates := q.Get("task_states") != "false"
	allocs := s.allocs.List(func(a object) bool {
		return strings.HasPrefix(stringField(a, "ID"), prefix) && namespaceMatches(a, ns)
	})
	for _, a := range allocs {
		if !taskStates {
			delete(a, "TaskStates")
		}
	}
	writeJSON(w, http.StatusOK, allocs)
}

func (s *Server) getAllocation(w http.ResponseWriter, r *http.Request) {
	alloc := s.allocs.Get(urlParam(r, "id"))
	if alloc == nil {
		writeError(w, http.StatusNotFound, "alloc not found")
		return
	}
	writeJSON(w, http.StatusOK, alloc)
}

func (s *Server) stopAllocation(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	idx := s.nextIndex()
	var jobID string
	if !s.allocs.Update(id, func(a object) {
		a["DesiredStatus"] = "stop"
		a["ModifyIndex"] = idx
		jobID = stringField(a, "JobID")
	}) {
		writeError(w, http.StatusNotFound, "alloc not found")
		return
	}
	eval := s.newEval("alloc-stop", jobID, "")
	writeJSON(w, http.StatusOK, object{"EvalID": eval["ID"], "Index": idx})
}
