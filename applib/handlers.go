package applib

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomyedwab/opecstate/applib/httputils"
	"github.com/tomyedwab/opecstate/database"
	"github.com/tomyedwab/opecstate/state"
	"github.com/tomyedwab/opecstate/users"
)

type ModelStatus struct {
	Table   string `json:"table"`
	Ensured bool   `json:"ensured"`
}

type StatusInfo struct {
	Target string        `json:"target"`
	Models []ModelStatus `json:"models"`
}

type StateRequest struct {
	Value *string `json:"value"`
}

type UserRequest struct {
	Name string `json:"name"`
}

type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

func (app *Application) handleStatus(w http.ResponseWriter, r *http.Request) {
	info := StatusInfo{
		Target: app.db.RawTarget(),
		Models: []ModelStatus{},
	}
	if registry := app.db.Registry(); registry != nil {
		for _, m := range registry.Models() {
			info.Models = append(info.Models, ModelStatus{Table: m.Table, Ensured: app.db.Ensured(m.Table)})
		}
	}
	httputils.HandleAPIResponse(w, r, info, nil, http.StatusOK)
}

// -- Helpers --

func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ID %q", raw)
	}
	return id, nil
}

// session returns the request's scoped session, writing an error response
// when there is none.
func (app *Application) session(w http.ResponseWriter, r *http.Request) (*database.Session, bool) {
	sess, err := app.db.Scoped().Get(r.Context())
	if err != nil {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusInternalServerError)
		return nil, false
	}
	return sess, true
}

func decodeState(r *http.Request) (string, error) {
	var req StateRequest
	if err := httputils.DecodeJSON(r, &req); err != nil {
		return "", err
	}
	if req.Value == nil {
		return "", errors.New("missing value")
	}
	return *req.Value, nil
}

// -- State --

func (app *Application) handleCreateState(w http.ResponseWriter, r *http.Request) {
	value, err := decodeState(r)
	if err != nil {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusBadRequest)
		return
	}
	sess, ok := app.session(w, r)
	if !ok {
		return
	}
	st, err := state.Create(r.Context(), sess, value)
	if err != nil {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusInternalServerError)
		return
	}
	httputils.HandleAPIResponse(w, r, st, nil, http.StatusCreated)
}

func (app *Application) handleListStates(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.session(w, r)
	if !ok {
		return
	}
	states, err := state.List(r.Context(), sess)
	if err != nil {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusInternalServerError)
		return
	}
	httputils.HandleAPIResponse(w, r, states, nil, http.StatusOK)
}

func (app *Application) handleGetState(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusBadRequest)
		return
	}
	sess, ok := app.session(w, r)
	if !ok {
		return
	}
	st, err := state.Get(r.Context(), sess, id)
	if errors.Is(err, state.ErrNotFound) {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusNotFound)
		return
	}
	if err != nil {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusInternalServerError)
		return
	}
	httputils.HandleAPIResponse(w, r, st, nil, http.StatusOK)
}

func (app *Application) handlePutState(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusBadRequest)
		return
	}
	value, err := decodeState(r)
	if err != nil {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusBadRequest)
		return
	}
	sess, ok := app.session(w, r)
	if !ok {
		return
	}
	st := state.State{ID: id, Value: value}
	if err := state.Put(r.Context(), sess, st); err != nil {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusInternalServerError)
		return
	}
	httputils.HandleAPIResponse(w, r, st, nil, http.StatusOK)
}

func (app *Application) handleDeleteState(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusBadRequest)
		return
	}
	sess, ok := app.session(w, r)
	if !ok {
		return
	}
	deleted, err := state.Delete(r.Context(), sess, id)
	if err != nil {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusInternalServerError)
		return
	}
	if !deleted {
		httputils.HandleAPIResponse(w, r, nil, state.ErrNotFound, http.StatusNotFound)
		return
	}
	httputils.HandleAPIResponse(w, r, DeleteResponse{Deleted: true}, nil, http.StatusOK)
}

// -- Users --

func (app *Application) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := httputils.DecodeJSON(r, &req); err != nil {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		httputils.HandleAPIResponse(w, r, nil, errors.New("missing name"), http.StatusBadRequest)
		return
	}
	sess, ok := app.session(w, r)
	if !ok {
		return
	}
	if _, err := users.GetByName(r.Context(), sess, req.Name); err == nil {
		httputils.HandleAPIResponse(w, r, nil, fmt.Errorf("user %s already exists", req.Name), http.StatusConflict)
		return
	} else if !errors.Is(err, users.ErrNotFound) {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusInternalServerError)
		return
	}
	user, err := users.Create(r.Context(), sess, req.Name)
	if err != nil {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusInternalServerError)
		return
	}
	httputils.HandleAPIResponse(w, r, user, nil, http.StatusCreated)
}

func (app *Application) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusBadRequest)
		return
	}
	sess, ok := app.session(w, r)
	if !ok {
		return
	}
	user, err := users.Get(r.Context(), sess, id)
	if errors.Is(err, users.ErrNotFound) {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusNotFound)
		return
	}
	if err != nil {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusInternalServerError)
		return
	}
	httputils.HandleAPIResponse(w, r, user, nil, http.StatusOK)
}
