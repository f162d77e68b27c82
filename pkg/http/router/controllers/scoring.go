package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/julienschmidt/httprouter"
	helper "github.com/lintang-b-s/accessx/pkg/http/router/routerhelper"
	"go.uber.org/zap"
)

type scoringAPI struct {
	scoringService ScoringService
	log            *zap.Logger
}

func New(scoringService ScoringService, log *zap.Logger) *scoringAPI {
	return &scoringAPI{
		scoringService: scoringService,
		log:            log,
	}
}

func (api *scoringAPI) Routes(group *helper.RouteGroup) {
	group.POST("/score", api.score)
	group.GET("/score/:name", api.persistedScore)
	group.GET("/scores", api.listScores)
	group.DELETE("/score/:name", api.deleteScore)
	group.GET("/methods", api.methods)
	group.GET("/datasets", api.datasets)
	group.POST("/euclidean", api.buildEuclidean)
}

func (api *scoringAPI) score(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var (
		request scoreRequest
		err     error
	)
	err = json.NewDecoder(r.Body).Decode(&request)
	if err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := r.Body.Close(); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}

	validate := validator.New()

	if err := validate.Struct(request); err != nil {
		english := en.New()
		uni := ut.New(english, english)
		trans, _ := uni.GetTranslator("en")
		_ = enTranslations.RegisterDefaultTranslations(validate, trans)
		vv := translateError(err, trans)
		vvString := []string{}
		for _, v := range vv {
			vvString = append(vvString, v.Error())
		}
		api.BadRequestResponse(w, r, fmt.Errorf("validation error: %v", vvString))
		return
	}

	computed, ids, err := api.scoringService.Compute(r.Context(), request.ToAccessRequest(),
		request.Persist)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	headers := make(http.Header)

	if err := api.writeJSON(w, http.StatusOK,
		envelope{"data": NewScoreResponse(ids, computed)}, headers); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}

func (api *scoringAPI) persistedScore(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	name := p.ByName("name")
	if name == "" {
		api.BadRequestResponse(w, r, errors.New("run name is required"))
		return
	}

	run, err := api.scoringService.Persisted(name)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	if err := api.writeJSON(w, http.StatusOK,
		envelope{"data": NewPersistedScoreResponse(run)}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}

func (api *scoringAPI) listScores(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	summaries, err := api.scoringService.Runs()
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	if err := api.writeJSON(w, http.StatusOK,
		envelope{"data": NewRunsResponse(summaries)}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}

func (api *scoringAPI) deleteScore(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	name := p.ByName("name")
	if name == "" {
		api.BadRequestResponse(w, r, errors.New("run name is required"))
		return
	}

	if err := api.scoringService.DeleteRun(name); err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	if err := api.writeJSON(w, http.StatusOK,
		envelope{"data": map[string]string{"deleted": name}}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}

func (api *scoringAPI) methods(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	methods, providers, costs, defaultCost := api.scoringService.Methods()

	if err := api.writeJSON(w, http.StatusOK,
		envelope{"data": NewMethodsResponse(methods, providers, costs, defaultCost)}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}

func (api *scoringAPI) datasets(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if err := api.writeJSON(w, http.StatusOK,
		envelope{"data": NewDatasetsResponse(api.scoringService.Datasets())}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}

func (api *scoringAPI) buildEuclidean(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var (
		request euclideanRequest
		err     error
	)
	err = json.NewDecoder(r.Body).Decode(&request)
	if err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := r.Body.Close(); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}

	validate := validator.New()

	if err := validate.Struct(request); err != nil {
		english := en.New()
		uni := ut.New(english, english)
		trans, _ := uni.GetTranslator("en")
		_ = enTranslations.RegisterDefaultTranslations(validate, trans)
		vv := translateError(err, trans)
		vvString := []string{}
		for _, v := range vv {
			vvString = append(vvString, v.Error())
		}
		api.BadRequestResponse(w, r, fmt.Errorf("validation error: %v", vvString))
		return
	}

	edges, err := api.scoringService.BuildEuclidean(request.Name,
		request.OriginLatColumn, request.OriginLonColumn,
		request.DestLatColumn, request.DestLonColumn,
		request.MaxCost, request.Metric, request.BoundingBoxRadius)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	if err := api.writeJSON(w, http.StatusOK,
		envelope{"data": NewEuclideanResponse(request.Name, edges)}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}
