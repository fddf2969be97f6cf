package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/tiwaz/internal/gate"
	"github.com/starford/tiwaz/internal/practice"
)

// IngestCaselaw handles POST /api/caselaw/ingest.
//
//	@Summary		Fetch court opinions and store them as caselaw notes
//	@Tags			caselaw
//	@Accept			json
//	@Produce		json
//	@Param			body	body		IngestRequest	false	"Fetch parameters, defaults apply"
//	@Success		200		{object}	IngestResponse
//	@Failure		403		{object}	GateResponse
//	@Failure		409		{object}	GateResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/caselaw/ingest [post]
func (h *Handler) IngestCaselaw(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}

	result, out := h.svc.IngestCaselaw(r.Context(), actorName(r), req.decider(), practice.IngestRequest{
		Jurisdiction: req.Jurisdiction,
		PageSize:     req.PageSize,
		MaxPages:     req.MaxPages,
	})
	switch {
	case out.Status == gate.StatusBlocked || out.Status == gate.StatusCancelled:
		writeOutcome(w, out)
	case out.Err != nil:
		// A fetch failure is the upstream's fault, not ours.
		writeJSON(w, http.StatusBadGateway, errorBody(out.Err.Error()))
	default:
		writeJSON(w, http.StatusOK, IngestResponse{IngestResult: result, Status: string(out.Status)})
	}
}

// ListExamples handles GET /api/training/examples.
//
//	@Summary		List collected training examples
//	@Tags			training
//	@Produce		json
//	@Success		200	{object}	ExampleListResponse
//	@Security		BearerAuth
//	@Router			/training/examples [get]
func (h *Handler) ListExamples(w http.ResponseWriter, r *http.Request) {
	examples := h.svc.TrainingExamples()
	writeJSON(w, http.StatusOK, ExampleListResponse{
		Examples: nonNil(examples),
		Total:    len(examples),
	})
}

// CollectExample handles POST /api/training/examples.
//
//	@Summary		Collect a training example and mirror it as feedback
//	@Tags			training
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CollectExampleRequest	true	"Example to collect"
//	@Success		201		{object}	CollectExampleResponse
//	@Failure		400		{object}	ValidationResponse
//	@Failure		403		{object}	GateResponse
//	@Failure		409		{object}	GateResponse
//	@Security		BearerAuth
//	@Router			/training/examples [post]
func (h *Handler) CollectExample(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CollectExampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.DataType == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("data_type is required"))
		return
	}

	example, out := h.svc.CollectExample(r.Context(), actorName(r), req.decider(), req.DataType, req.Data, req.Label)
	if writeOutcome(w, out) {
		return
	}
	writeJSON(w, http.StatusCreated, CollectExampleResponse{Example: example, Status: string(out.Status)})
}

// TrainModel handles POST /api/training/train.
//
//	@Summary		Record a new model version over the collected examples
//	@Tags			training
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TrainRequest	true	"Model type and parameters"
//	@Success		201		{object}	training.ModelInfo
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/training/train [post]
func (h *Handler) TrainModel(w http.ResponseWriter, r *http.Request) {
	var req TrainRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.ModelType == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("model_type is required"))
		return
	}
	writeJSON(w, http.StatusCreated, h.svc.TrainModel(req.ModelType, req.Params))
}

// EvaluateModel handles POST /api/training/evaluate.
//
//	@Summary		Report bookkeeping metrics for a trained model
//	@Tags			training
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EvaluateRequest	true	"Model type and test data"
//	@Success		200		{object}	training.Evaluation
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/training/evaluate [post]
func (h *Handler) EvaluateModel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.ModelType == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("model_type is required"))
		return
	}

	eval, err := h.svc.EvaluateModel(req.ModelType, req.TestData)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}

// ListModels handles GET /api/training/models.
//
//	@Summary		List model types with recorded versions
//	@Tags			training
//	@Produce		json
//	@Success		200	{object}	ModelListResponse
//	@Security		BearerAuth
//	@Router			/training/models [get]
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModelListResponse{Models: nonNil(h.svc.TrainedModels())})
}

// ModelVersions handles GET /api/training/models/{type}.
//
//	@Summary		List every recorded version of one model type
//	@Tags			training
//	@Produce		json
//	@Param			type	path		string	true	"Model type"
//	@Success		200		{object}	ModelVersionsResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/training/models/{type} [get]
func (h *Handler) ModelVersions(w http.ResponseWriter, r *http.Request) {
	modelType := chi.URLParam(r, "type")
	versions := h.svc.ModelVersions(modelType)
	if len(versions) == 0 {
		writeJSON(w, http.StatusNotFound, errorBody("model not found"))
		return
	}
	writeJSON(w, http.StatusOK, ModelVersionsResponse{ModelType: modelType, Versions: versions})
}

// ExportTraining handles POST /api/training/export.
//
//	@Summary		Write collected examples to a JSON file
//	@Tags			training
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TrainingFileRequest	true	"Destination path"
//	@Success		200		{object}	map[string]string
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/training/export [post]
func (h *Handler) ExportTraining(w http.ResponseWriter, r *http.Request) {
	path, ok := h.trainingPath(w, r)
	if !ok {
		return
	}
	if err := h.svc.ExportTraining(path); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path, "status": "exported"})
}

// ImportTraining handles POST /api/training/import.
//
//	@Summary		Replace collected examples from a JSON file
//	@Tags			training
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TrainingFileRequest	true	"Source path"
//	@Success		200		{object}	map[string]string
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/training/import [post]
func (h *Handler) ImportTraining(w http.ResponseWriter, r *http.Request) {
	path, ok := h.trainingPath(w, r)
	if !ok {
		return
	}
	if err := h.svc.ImportTraining(path); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path, "status": "imported"})
}

func (h *Handler) trainingPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req TrainingFileRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return "", false
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return "", false
	}
	return req.Path, true
}
