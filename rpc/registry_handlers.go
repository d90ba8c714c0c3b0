package rpc

import (
	"errors"
	"net/http"

	"fanvault/native/registry"
)

type creatorRegisterParams struct {
	Caller string `json:"caller"`
	Name   string `json:"name"`
}

type creatorProfileParams struct {
	Creator string `json:"creator"`
}

type creatorListParams struct {
	Offset uint64 `json:"offset,omitempty"`
	Limit  uint64 `json:"limit,omitempty"`
}

type creatorPublishParams struct {
	Caller string `json:"caller"`
	URI    string `json:"uri"`
}

type creatorContentParams struct {
	Caller  string `json:"caller"`
	Creator string `json:"creator"`
}

type creatorProfileResult struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	ContentURI   string `json:"contentUri,omitempty"`
	TotalEarned  string `json:"totalEarned"`
	RegisteredAt int64  `json:"registeredAt"`
}

type creatorListResult struct {
	Creators []creatorProfileResult `json:"creators"`
	Total    uint64                 `json:"total"`
}

type creatorContentResult struct {
	Creator    string `json:"creator"`
	ContentURI string `json:"contentUri"`
}

func formatProfile(profile *registry.Profile) creatorProfileResult {
	return creatorProfileResult{
		Address:      formatAddr(profile.Addr),
		Name:         profile.Name,
		ContentURI:   profile.ContentURI,
		TotalEarned:  bigString(profile.TotalEarned),
		RegisteredAt: profile.RegisteredAt,
	}
}

func (s *Server) handleCreatorRegister(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params creatorRegisterParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	profile, err := s.node.CreatorRegister(caller, params.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "failed to register creator", err.Error())
		return
	}
	writeResult(w, req.ID, formatProfile(profile))
}

func (s *Server) handleCreatorProfile(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params creatorProfileParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	creator, err := decodeAddr(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid creator address", err.Error())
		return
	}
	profile, err := s.node.CreatorProfile(creator)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "creator not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load profile", err.Error())
		return
	}
	writeResult(w, req.ID, formatProfile(profile))
}

func (s *Server) handleCreatorList(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	params := creatorListParams{}
	if len(req.Params) > 0 {
		if err := singleParams(req, &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
	}
	profiles, err := s.node.CreatorList(params.Offset, params.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to list creators", err.Error())
		return
	}
	total, err := s.node.CreatorCount()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to count creators", err.Error())
		return
	}
	result := creatorListResult{Creators: make([]creatorProfileResult, 0, len(profiles)), Total: total}
	for _, profile := range profiles {
		result.Creators = append(result.Creators, formatProfile(profile))
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleCreatorCount(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	count, err := s.node.CreatorCount()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to count creators", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]uint64{"count": count})
}

func (s *Server) handleCreatorPublish(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params creatorPublishParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	profile, err := s.node.CreatorPublish(caller, params.URI)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "creator not found", nil)
			return
		}
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "failed to publish content", err.Error())
		return
	}
	writeResult(w, req.ID, formatProfile(profile))
}

func (s *Server) handleCreatorContent(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params creatorContentParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	creator, err := decodeAddr(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid creator address", err.Error())
		return
	}
	uri, err := s.node.CreatorContent(creator, caller)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrNotFound):
			writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "creator not found or no content published", nil)
		case errors.Is(err, registry.ErrSubscriptionRequired):
			writeError(w, http.StatusForbidden, req.ID, codeUnauthorized, "active subscription required", nil)
		default:
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to resolve content", err.Error())
		}
		return
	}
	writeResult(w, req.ID, creatorContentResult{Creator: params.Creator, ContentURI: uri})
}
