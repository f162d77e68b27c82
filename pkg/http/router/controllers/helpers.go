package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/lintang-b-s/accessx/pkg/util"
	"go.uber.org/zap"
)

type envelope map[string]interface{}

func errorEnvelope(status int, message string) envelope {
	return envelope{"error": map[string]string{
		"code":    http.StatusText(status),
		"message": message,
	}}
}

// translateError turns validator failures into english field messages.
func translateError(err error, trans ut.Translator) []error {
	if err == nil {
		return nil
	}
	var out []error
	var validatorErrs validator.ValidationErrors
	if errors.As(err, &validatorErrs) {
		for _, e := range validatorErrs {
			out = append(out, errors.New(e.Translate(trans)))
		}
		return out
	}
	return []error{err}
}

func (api *scoringAPI) writeJSON(w http.ResponseWriter, status int, data envelope,
	headers http.Header) error {

	js, err := json.Marshal(data)
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(js)
	return nil
}

func (api *scoringAPI) errorResponse(w http.ResponseWriter, r *http.Request,
	status int, message string) {

	if err := api.writeJSON(w, status, errorEnvelope(status, message), nil); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (api *scoringAPI) BadRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	api.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (api *scoringAPI) NotFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	api.errorResponse(w, r, http.StatusNotFound, err.Error())
}

func (api *scoringAPI) ServerErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	api.log.Error("server error", zap.Error(err), zap.String("path", r.URL.Path))
	api.errorResponse(w, r, http.StatusInternalServerError, util.MessageInternalServerError)
}

// getStatusCode maps the error taxonomy onto http statuses and writes the
// error envelope.
func (api *scoringAPI) getStatusCode(w http.ResponseWriter, r *http.Request, err error) {
	var uerr *util.Error
	if !errors.As(err, &uerr) {
		api.ServerErrorResponse(w, r, err)
		return
	}

	switch uerr.Code() {
	case util.ErrNotFound:
		api.NotFoundResponse(w, r, err)
	case util.ErrConflict:
		api.errorResponse(w, r, http.StatusConflict, err.Error())
	case util.ErrConfiguration, util.ErrBadParamInput:
		api.BadRequestResponse(w, r, err)
	case util.ErrSchema, util.ErrDataIntegrity:
		api.errorResponse(w, r, http.StatusUnprocessableEntity, err.Error())
	default:
		api.ServerErrorResponse(w, r, err)
	}
}
