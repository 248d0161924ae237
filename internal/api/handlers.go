package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/specialistvlad/tensorgrid/internal/compiler"
	"github.com/specialistvlad/tensorgrid/internal/model"
	"github.com/specialistvlad/tensorgrid/internal/store"
	"github.com/specialistvlad/tensorgrid/internal/training"
)

// ModelCode is the model and dataset setup sent with a validate request.
type ModelCode struct {
	DLModel struct {
		ModelName string `json:"model_name"`
		Optimizer string `json:"optimizer"`
		Metric    string `json:"metric"`
		Epochs    int    `json:"epochs"`
	} `json:"dl_model"`
	Dataset struct {
		FileID        string  `json:"file_id"`
		TargetField   string  `json:"target_field"`
		TrainingSplit float64 `json:"training_split"`
		BatchSize     int     `json:"batch_size"`
	} `json:"dataset"`
	ProblemType model.ProblemType `json:"problem_type_id"`
}

// ValidateRequest is the body of POST /model/validate.
type ValidateRequest struct {
	Model model.ModelGraph `json:"model"`
	Code  ModelCode        `json:"code"`
}

// SaveRequest is the body of POST /model/save.
type SaveRequest struct {
	ModelName string           `json:"model_name"`
	Model     model.ModelGraph `json:"model"`
}

// TrainingConfigRequest is the body of PATCH /model/training-config.
type TrainingConfigRequest struct {
	ModelName     string            `json:"model_name"`
	FileID        string            `json:"file_id"`
	ProblemType   model.ProblemType `json:"problem_type_id"`
	TargetField   string            `json:"target_field"`
	TrainingSplit float64           `json:"training_split"`
	Optimizer     string            `json:"optimizer"`
	Metric        string            `json:"metric"`
	Epochs        int               `json:"epochs"`
	BatchSize     int               `json:"batch_size"`
}

// RunRequest is the body of POST /model/run. With Async set the response
// carries the run id as soon as the run is queued.
type RunRequest struct {
	ModelName string `json:"model_name"`
	Async     bool   `json:"async,omitempty"`
}

// SummaryData is returned by validate and save.
type SummaryData struct {
	Summary *compiler.Summary `json:"summary"`
}

// validateModel compiles a graph and saves it with its training configuration.
//
//	@Summary	Validate and save a model
//	@Tags		model
//	@Accept		json
//	@Produce	json
//	@Param		request	body		ValidateRequest	true	"Canvas graph and training setup"
//	@Success	200		{object}	Envelope{data=SummaryData}
//	@Failure	400		{object}	Envelope{data=compiler.ValidationError}
//	@Router		/model/validate [post]
func (s *Server) validateModel(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cfg := store.TrainingConfig{
		FileID:        req.Code.Dataset.FileID,
		ProblemType:   req.Code.ProblemType,
		TargetField:   req.Code.Dataset.TargetField,
		TrainingSplit: req.Code.Dataset.TrainingSplit,
		Optimizer:     req.Code.DLModel.Optimizer,
		Metric:        req.Code.DLModel.Metric,
		Epochs:        req.Code.DLModel.Epochs,
		BatchSize:     req.Code.Dataset.BatchSize,
	}
	summary, err := s.svc.ValidateModel(r.Context(), req.Code.DLModel.ModelName, req.Model, cfg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Model Validation and saving successful", SummaryData{Summary: summary})
}

// saveModel compiles a graph and saves the architecture only.
//
//	@Summary	Save a model architecture
//	@Tags		model
//	@Accept		json
//	@Produce	json
//	@Param		request	body		SaveRequest	true	"Model name and canvas graph"
//	@Success	200		{object}	Envelope{data=SummaryData}
//	@Failure	400		{object}	Envelope{data=compiler.ValidationError}
//	@Failure	409		{object}	Envelope
//	@Router		/model/save [post]
func (s *Server) saveModel(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.svc.SaveModel(r.Context(), req.ModelName, req.Model)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Model validated and saved successfully", SummaryData{Summary: summary})
}

// updateTrainingConfig sets the training configuration of a saved model.
//
//	@Summary	Set training configuration
//	@Tags		model
//	@Accept		json
//	@Produce	json
//	@Param		request	body		TrainingConfigRequest	true	"Training configuration"
//	@Success	200		{object}	Envelope
//	@Failure	400		{object}	Envelope
//	@Failure	404		{object}	Envelope
//	@Router		/model/training-config [patch]
func (s *Server) updateTrainingConfig(w http.ResponseWriter, r *http.Request) {
	var req TrainingConfigRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	err := s.svc.UpdateTrainingConfig(r.Context(), req.ModelName, store.TrainingConfig{
		FileID:        req.FileID,
		ProblemType:   req.ProblemType,
		TargetField:   req.TargetField,
		TrainingSplit: req.TrainingSplit,
		Optimizer:     req.Optimizer,
		Metric:        req.Metric,
		Epochs:        req.Epochs,
		BatchSize:     req.BatchSize,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Training configuration saved successfully", nil)
}

// runModel trains a saved model. Progress is streamed on the socket.io
// namespace; the response waits for the outcome unless async is set.
//
//	@Summary	Train a model
//	@Tags		model
//	@Accept		json
//	@Produce	json
//	@Param		request	body		RunRequest	true	"Model to train"
//	@Success	200		{object}	Envelope{data=training.Outcome}
//	@Success	202		{object}	Envelope{data=map[string]string}
//	@Failure	400		{object}	Envelope
//	@Failure	409		{object}	Envelope
//	@Router		/model/run [post]
func (s *Server) runModel(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	run, err := s.svc.RunModel(r.Context(), req.ModelName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Async {
		writeOK(w, http.StatusAccepted, "Model training started.", map[string]string{"run_id": run.ID})
		return
	}

	var res training.Result
	select {
	case res = <-run.Result:
	case <-r.Context().Done():
		// The run carries on without a listener for its outcome.
		return
	}
	if res.Err != nil {
		writeJSON(w, statusFor(res.Err), Envelope{Message: res.Err.Error(), Data: res.Outcome})
		return
	}
	writeOK(w, http.StatusOK, "Model executed successfully.", res.Outcome)
}

// GraphData is returned by GET /model/{name}/graph.
type GraphData struct {
	ModelName string           `json:"model_name"`
	Graph     model.ModelGraph `json:"graph"`
}

// modelGraph returns the canvas graph of a saved model.
//
//	@Summary	Get a model graph
//	@Tags		model
//	@Produce	json
//	@Param		name	path		string	true	"Model name"
//	@Success	200		{object}	Envelope{data=GraphData}
//	@Failure	404		{object}	Envelope
//	@Router		/model/{name}/graph [get]
func (s *Server) modelGraph(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	g, err := s.svc.ModelGraph(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Model graph retrieved successfully", GraphData{ModelName: name, Graph: g})
}

// listModels returns a page of saved models, newest first.
//
//	@Summary	List models
//	@Tags		model
//	@Produce	json
//	@Param		offset	query		int	false	"Offset"	default(0)
//	@Param		limit	query		int	false	"Limit"		default(50)
//	@Success	200		{object}	Envelope{data=[]service.ModelInfo}
//	@Failure	400		{object}	Envelope
//	@Router		/model/model-list [get]
func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	infos, page, err := s.svc.ListModels(r.Context(), offset, limit)
	if err != nil {
		writeError(w, r, badRequest("%v", err))
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		Success:    true,
		Message:    "Model list generated successfully.",
		Data:       infos,
		Pagination: &page,
	})
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be an integer, got '%s'", key, raw)
	}
	return v, nil
}

// deleteModel removes a model and its artifact.
//
//	@Summary	Delete a model
//	@Tags		model
//	@Produce	json
//	@Param		id	path		int	true	"Model id"
//	@Success	200	{object}	Envelope
//	@Failure	404	{object}	Envelope
//	@Failure	409	{object}	Envelope
//	@Router		/model/{id} [delete]
func (s *Server) deleteModel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, badRequest("model id must be an integer"))
		return
	}
	name, err := s.svc.DeleteModel(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, fmt.Sprintf("Model '%s' deleted successfully", name), nil)
}

// layers returns the layer catalog for the canvas palette.
//
//	@Summary	List layers
//	@Tags		layers
//	@Produce	json
//	@Success	200	{object}	Envelope{data=[]registry.CatalogEntry}
//	@Router		/layers [get]
func (s *Server) layers(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, "Layer catalog loaded successfully", s.svc.Layers())
}

// registerDataFile records a file that already exists in the data directory.
//
//	@Summary	Register a data file
//	@Tags		data
//	@Accept		json
//	@Produce	json
//	@Param		request	body		store.DataFile	true	"File name, type and image properties"
//	@Success	201		{object}	Envelope{data=store.DataFile}
//	@Failure	400		{object}	Envelope
//	@Router		/data/files [post]
func (s *Server) registerDataFile(w http.ResponseWriter, r *http.Request) {
	var f store.DataFile
	if err := decode(w, r, &f); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.RegisterDataFile(r.Context(), &f); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "File registered successfully", f)
}
