package server

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/mcncl/jsonflat/internal/cache"
	"github.com/mcncl/jsonflat/internal/converter"
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/models"
	"github.com/mcncl/jsonflat/internal/quota"
	"github.com/mcncl/jsonflat/internal/schema"
)

type convertRequest struct {
	JSONData string         `json:"jsonData"`
	Format   models.Format  `json:"format"`
	Options  models.Options `json:"options"`
}

type countRequest struct {
	JSONData string `json:"jsonData"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

type limitResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	RowsProcessed int    `json:"rowsProcessed"`
	Limit         int    `json:"limit"`
}

type userResponse struct {
	Username   string `json:"username,omitempty"`
	IsPremium  bool   `json:"isPremium"`
	TrialLimit int    `json:"trialLimit"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readValidBody(w, r, schema.ConvertRequest)
	if !ok {
		return
	}

	var req convertRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request", Details: []string{err.Error()}})
		return
	}
	opts := req.Options
	opts.Format = req.Format

	premium, err := s.isPremium(r)
	if err != nil {
		s.logger.Error("premium lookup failed", "error", err)
		writeInternalError(w)
		return
	}

	result, err := s.convert(r, req.JSONData, opts)
	if err != nil {
		s.writeConversionError(w, err)
		return
	}

	if err := s.policy.Check(result.Statistics.RowsProcessed, premium); err != nil {
		var limitErr *quota.LimitError
		if stderrors.As(err, &limitErr) {
			writeJSON(w, http.StatusForbidden, limitResponse{
				Error:         "Trial limit exceeded",
				Message:       limitErr.Error(),
				RowsProcessed: limitErr.RowsProcessed,
				Limit:         limitErr.Limit,
			})
			return
		}
		writeInternalError(w)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// convert serves a cached result when one exists. Cache failures are
// logged and otherwise ignored.
func (s *Server) convert(r *http.Request, input string, opts models.Options) (*models.ConversionResult, error) {
	key := cache.Key(input, opts)
	if cached, ok, err := s.cache.Get(r.Context(), key); err != nil {
		s.logger.Warn("cache read failed", "error", err)
	} else if ok {
		return cached, nil
	}

	result, err := s.conv.Convert(r.Context(), input, opts)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Put(r.Context(), key, result); err != nil {
		s.logger.Warn("cache write failed", "error", err)
	}
	return result, nil
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readValidBody(w, r, schema.CountRequest)
	if !ok {
		return
	}

	var req countRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request", Details: []string{err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"records": converter.CountRecords(req.JSONData)})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	premium, err := s.isPremium(r)
	if err != nil {
		s.logger.Error("premium lookup failed", "error", err)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		Username:   r.Header.Get(UserHeader),
		IsPremium:  premium,
		TrialLimit: s.policy.Limit,
	})
}

func (s *Server) isPremium(r *http.Request) (bool, error) {
	username := r.Header.Get(UserHeader)
	if s.accounts == nil || username == "" {
		return false, nil
	}
	return s.accounts.IsPremium(r.Context(), username)
}

// readValidBody reads the request body and validates it against the named
// schema, writing a 400 response when either step fails.
func (s *Server) readValidBody(w http.ResponseWriter, r *http.Request, schemaName string) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request too large", Message: err.Error()})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request", Details: []string{err.Error()}})
		return nil, false
	}

	if details := s.validator.Validate(schemaName, body); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request", Details: details})
		return nil, false
	}
	return body, true
}

func (s *Server) writeConversionError(w http.ResponseWriter, err error) {
	if stderrors.Is(err, errors.ErrInvalidJSON) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "Invalid JSON",
			Message: "The provided data is not valid JSON",
		})
		return
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.Type != errors.ErrorTypeStorage {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Conversion failed", Message: appErr.Message})
		return
	}

	s.logger.Error("conversion error", "error", err)
	writeInternalError(w)
}

func writeInternalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:   "Internal server error",
		Message: "An unexpected error occurred",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
