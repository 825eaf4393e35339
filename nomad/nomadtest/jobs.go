package nomadtest

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// serverManaged are job fields the agent owns; submitted values are ignored.
var serverManaged = []string{
	"Status", "StatusDescription", "Version", "Stable", "SubmitTime",
	"CreateIndex", "ModifyIndex", "JobModifyIndex",
}

// AddJob seeds a job as if it had been registered. job must have an ID.
func (s *Server) AddJob(job map[string]any) {
	s.storeJob(clone(job))
}

// Job returns the stored job, or nil.
func (s *Server) Job(id string) map[string]any {
	return s.jobs.Get(id)
}

// storeJob writes a new version of job, returning it as stored.
func (s *Server) storeJob(job object) object {
	id := stringField(job, "ID")
	if stringField(job, "Name") == "" {
		job["Name"] = id
	}
	if stringField(job, "Namespace") == "" {
		job["Namespace"] = "default"
	}
	if stringField(job, "Type") == "" {
		job["Type"] = "service"
	}

	idx := s.nextIndex()
	version := 0
	createIndex := idx
	if prev := s.jobs.Get(id); prev != nil {
		version = intField(prev, "Version") + 1
		createIndex = uint64(intFromAny(prev["CreateIndex"]))
	}
	for _, f := range serverManaged {
		delete(job, f)
	}
	job["Status"] = "pending"
	job["Stop"] = boolField(job, "Stop")
	job["Version"] = version
	job["Stable"] = false
	job["SubmitTime"] = time.Now().UnixNano()
	job["CreateIndex"] = createIndex
	job["ModifyIndex"] = idx
	job["JobModifyIndex"] = idx
	s.jobs.Put(id, job)

	if !s.versions.Update(id, func(v object) {
		v["Versions"] = append([]any{clone(job)}, v["Versions"].([]any)...)
	}) {
		s.versions.Put(id, object{"Versions": []any{clone(job)}})
	}
	return job
}

func intFromAny(v any) int {
	return intField(object{"v": v}, "v")
}

// urlParam returns a decoded route parameter. Job IDs may contain an
// escaped slash.
func urlParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

func namespaceMatches(obj object, ns string) bool {
	if ns == "" {
		ns = "default"
	}
	return ns == "*" || stringField(obj, "Namespace") == ns
}

func (s *Server) jobOr404(w http.ResponseWriter, r *http.Request) (string, object) {
	id := urlParam(r, "id")
	job := s.jobs.Get(id)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return id, nil
	}
	return id, job
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	ns := r.URL.Query().Get("namespace")
	jobs := s.jobs.List(func(job object) bool {
		return strings.HasPrefix(stringField(job, "ID"), prefix) && namespaceMatches(job, ns)
	})
	stubs := make([]object, 0, len(jobs))
	for _, job := range jobs {
		stubs = append(stubs, object{
			"ID":             job["ID"],
			"Name":           job["Name"],
			"Namespace":      job["Namespace"],
			"Type":           job["Type"],
			"Status":         job["Status"],
			"Stop":           job["Stop"],
			"Version":        job["Version"],
			"CreateIndex":    job["CreateIndex"],
			"ModifyIndex":    job["ModifyIndex"],
			"JobModifyIndex": job["JobModifyIndex"],
		})
	}
	writeJSON(w, http.StatusOK, stubs)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	_, job := s.jobOr404(w, r)
	if job == nil {
		return
	}
	if ns := r.URL.Query().Get("namespace"); ns != "" && !namespaceMatches(job, ns) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) registerJob(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	var req struct {
		Job object
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Job == nil {
		writeError(w, http.StatusBadRequest, "Job must be specified")
		return
	}
	if stringField(req.Job, "ID") == "" {
		req.Job["ID"] = id
	}
	if stringField(req.Job, "ID") != id {
		writeError(w, http.StatusBadRequest, "Job ID does not match name")
		return
	}
	job := s.storeJob(req.Job)
	eval := s.newEval("job-register", id, "")
	writeJSON(w, http.StatusOK, object{
		"EvalID":          eval["ID"],
		"EvalCreateIndex": eval["CreateIndex"],
		"JobModifyIndex":  job["JobModifyIndex"],
		"Warnings":        "",
		"Index":           job["ModifyIndex"],
	})
}

func (s *Server) deregisterJob(w http.ResponseWriter, r *http.Request) {
	id, job := s.jobOr404(w, r)
	if job == nil {
		return
	}
	purge := false
	if raw := r.URL.Query().Get("purge"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse value of %q (%v) as a bool: %v", "purge", raw, err))
			return
		}
		purge = b
	}

	idx := s.nextIndex()
	if purge {
		s.jobs.Delete(id)
		s.versions.Delete(id)
	} else {
		s.jobs.Update(id, func(j object) {
			j["Stop"] = true
			j["Status"] = "dead"
			j["ModifyIndex"] = idx
			j["JobModifyIndex"] = idx
		})
	}
	eval := s.newEval("job-deregister", id, "")
	writeJSON(w, http.StatusOK, object{
		"EvalID":          eval["ID"],
		"EvalCreateIndex": eval["CreateIndex"],
		"JobModifyIndex":  idx,
	})
}

func (s *Server) jobVersions(w http.ResponseWriter, r *http.Request) {
	id, job := s.jobOr404(w, r)
	if job == nil {
		return
	}
	v := s.versions.Get(id)
	writeJSON(w, http.StatusOK, object{"Versions": v["Versions"], "Diffs": nil})
}

func (s *Server) jobAllocations(w http.ResponseWriter, r *http.Request) {
	id, job := s.jobOr404(w, r)
	if job == nil {
		return
	}
	writeJSON(w, http.StatusOK, listOrEmpty(s.allocs.List(func(a object) bool {
		return stringField(a, "JobID") == id
	})))
}

func (s *Server) jobEvaluations(w http.ResponseWriter, r *http.Request) {
	id, job := s.jobOr404(w, r)
	if job == nil {
		return
	}
	writeJSON(w, http.StatusOK, listOrEmpty(s.evals.List(func(e object) bool {
		return stringField(e, "JobID") == id
	})))
}

func (s *Server) jobDeployments(w http.ResponseWriter, r *http.Request) {
	id, job := s.jobOr404(w, r)
	if job == nil {
		return
	}
	writeJSON(w, http.StatusOK, listOrEmpty(s.deployments.List(func(d object) bool {
		return stringField(d, "JobID") == id
	})))
}

// jobDeployment answers null when the job never had a deployment.
func (s *Server) jobDeployment(w http.ResponseWriter, r *http.Request) {
	id, job := s.jobOr404(w, r)
	if job == nil {
		return
	}
	var latest object
	for _, d := range s.deployments.List(func(d object) bool { return stringField(d, "JobID") == id }) {
		if latest == nil || intField(d, "CreateIndex") > intField(latest, "CreateIndex") {
			latest = d
		}
	}
	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) jobSummary(w http.ResponseWriter, r *http.Request) {
	id, job := s.jobOr404(w, r)
	if job == nil {
		return
	}
	summary := object{}
	if groups, ok := job["TaskGroups"].([]any); ok {
		for _, g := range groups {
			name := stringField(asObject(g), "Name")
			if name == "" {
				continue
			}
			summary[name] = object{"Queued": 0, "Complete": 0, "Failed": 0, "Running": 0, "Starting": 0, "Lost": 0}
		}
	}
	for _, a := range s.allocs.List(func(a object) bool { return stringField(a, "JobID") == id }) {
		tg, ok := summary[stringField(a, "TaskGroup")].(object)
		if !ok {
			continue
		}
		switch stringField(a, "ClientStatus") {
		case "running":
			tg["Running"] = intField(tg, "Running") + 1
		case "complete":
			tg["Complete"] = intField(tg, "Complete") + 1
		case "failed":
			tg["Failed"] = intField(tg, "Failed") + 1
		case "lost":
			tg["Lost"] = intField(tg, "Lost") + 1
		default:
			tg["Starting"] = intField(tg, "Starting") + 1
		}
	}
	writeJSON(w, http.StatusOK, object{
		"JobID":       id,
		"Namespace":   job["Namespace"],
		"Summary":     summary,
		"Children":    object{"Pending": 0, "Running": 0, "Dead": 0},
		"CreateIndex": job["CreateIndex"],
		"ModifyIndex": job["ModifyIndex"],
	})
}

func asObject(v any) object {
	if obj, ok := v.(map[string]any); ok {
		return obj
	}
	return nil
}

func (s *Server) evaluateJob(w http.ResponseWriter, r *http.Request) {
	id, job := s.jobOr404(w, r)
	if job == nil {
		return
	}
	eval := s.newEval("job-register", id, "")
	writeJSON(w, http.StatusOK, object{
		"EvalID":          eval["ID"],
		"EvalCreateIndex": eval["CreateIndex"],
		"JobModifyIndex":  job["JobModifyIndex"],
	})
}

func (s *Server) planJob(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	var req struct {
		Job            object
		Diff           bool
		PolicyOverride bool
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Job == nil {
		writeError(w, http.StatusBadRequest, "Job must be specified")
		return
	}
	if jid := stringField(req.Job, "ID"); jid != "" && jid != id {
		writeError(w, http.StatusBadRequest, "Job ID does not match")
		return
	}

	resp := object{
		"JobModifyIndex": 0,
		"FailedTGAllocs": nil,
		"Warnings":       "",
		"Annotations":    object{"DesiredTGUpdates": object{}},
	}
	if existing := s.jobs.Get(id); existing != nil {
		resp["JobModifyIndex"] = existing["JobModifyIndex"]
	}
	if req.Diff {
		diffType := "Added"
		if s.jobs.Get(id) != nil {
			diffType = "Edited"
		}
		resp["Diff"] = object{"ID": id, "Type": diffType}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) forcePeriodic(w http.ResponseWriter, r *http.Request) {
	id, job := s.jobOr404(w, r)
	if job == nil {
		return
	}
	if job["Periodic"] == nil {
		writeError(w, http.StatusBadRequest, "can't force launch non-periodic job")
		return
	}
	eval := s.newEval("periodic-job", id, "")
	writeJSON(w, http.StatusOK, object{
		"EvalID":          eval["ID"],
		"EvalCreateIndex": eval["CreateIndex"],
		"Index":           eval["ModifyIndex"],
	})
}

func (s *Server) dispatchJob(w http.ResponseWriter, r *http.Request) {
	id, job := s.jobOr404(w, r)
	if job == nil {
		return
	}
	if job["ParameterizedJob"] == nil {
		writeError(w, http.StatusBadRequest, "Specified job is not a parameterized job")
		return
	}
	var req struct {
		Meta    map[string]string
		Payload *string
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	childID := fmt.Sprintf("%s/dispatch-%d-%s", id, time.Now().Unix(), uuid.New().String()[:8])
	child := clone(job)
	child["ID"] = childID
	child["Name"] = childID
	child["ParentID"] = id
	child["Dispatched"] = true
	delete(child, "ParameterizedJob")
	if len(req.Meta) > 0 {
		meta := object{}
		for k, v := range req.Meta {
			meta[k] = v
		}
		child["Meta"] = meta
	}
	if req.Payload != nil {
		child["Payload"] = *req.Payload
	}
	stored := s.storeJob(child)
	eval := s.newEval("job-register", childID, "")
	writeJSON(w, http.StatusOK, object{
		"DispatchedJobID": childID,
		"EvalID":          eval["ID"],
		"EvalCreateIndex": eval["CreateIndex"],
		"JobCreateIndex":  stored["CreateIndex"],
		"Index":           stored["ModifyIndex"],
	})
}

func (s *Server) revertJob(w http.ResponseWriter, r *http.Request) {
	id, job := s.jobOr404(w, r)
	if job == nil {
		return
	}
	var req struct {
		JobID               string
		JobVersion          int
		EnforcePriorVersion *int
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	current := intField(job, "Version")
	if req.EnforcePriorVersion != nil && *req.EnforcePriorVersion != current {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("enforcing version %d: current version is %d", *req.EnforcePriorVersion, current))
		return
	}
	if req.JobVersion == current {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("can't revert to current version %d", current))
		return
	}
	target := s.jobVersion(id, req.JobVersion)
	if target == nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("job %q at version %d not found", id, req.JobVersion))
		return
	}
	stored := s.storeJob(target)
	eval := s.newEval("job-register", id, "")
	writeJSON(w, http.StatusOK, object{
		"EvalID":          eval["ID"],
		"EvalCreateIndex": eval["CreateIndex"],
		"JobModifyIndex":  stored["JobModifyIndex"],
		"Index":           stored["ModifyIndex"],
	})
}

func (s *Server) jobVersion(id string, version int) object {
	v := s.versions.Get(id)
	if v == nil {
		return nil
	}
	for _, j := range v["Versions"].([]any) {
		if obj := asObject(j); obj != nil && intField(obj, "Version") == version {
			return obj
		}
	}
	return nil
}

func (s *Server) stableJob(w http.ResponseWriter, r *http.Request) {
	id, job := s.jobOr404(w, r)
	if job == nil {
		return
	}
	var req struct {
		JobID      string
		JobVersion int
		Stable     bool
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	found := false
	s.versions.Update(id, func(v object) {
		for _, j := range v["Versions"].([]any) {
			if obj := asObject(j); obj != nil && intField(obj, "Version") == req.JobVersion {
				obj["Stable"] = req.Stable
				found = true
			}
		}
	})
	if !found {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("job %q at version %d not found", id, req.JobVersion))
		return
	}
	idx := s.nextIndex()
	if intField(job, "Version") == req.JobVersion {
		s.jobs.Update(id, func(j object) { j["Stable"] = req.Stable })
	}
	writeJSON(w, http.StatusOK, object{"JobModifyIndex": idx, "Index": idx})
}
