// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kindred

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/Kindred/services/kindred/discovery"
	"github.com/AleutianAI/Kindred/services/kindred/mutate"
	"github.com/AleutianAI/Kindred/services/kindred/person"
	"github.com/AleutianAI/Kindred/services/kindred/store"
	"github.com/AleutianAI/Kindred/services/kindred/traverse"
)

// callerKey is the gin context key the identity middleware sets.
const callerKey = "kindred_caller_id"

// identityHeader carries the caller identity in this deployment. Auth
// internals are the front proxy's job; the service only consumes the
// verified identity it injects.
const identityHeader = "X-Kindred-User"

// Handlers contains the HTTP handlers for Kindred.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// CallerIdentity extracts the injected caller identity into the request
// context. Requests without one are rejected before any handler runs,
// except for the health endpoints which are registered outside this
// middleware.
func CallerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		callerID := c.GetHeader(identityHeader)
		if callerID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "caller is not authenticated",
				Code:  "UNAUTHENTICATED",
			})
			return
		}
		c.Set(callerKey, callerID)
		c.Next()
	}
}

// caller returns the authenticated caller id set by CallerIdentity.
func caller(c *gin.Context) string {
	return c.GetString(callerKey)
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// respondError maps domain errors onto HTTP status codes and the standard
// error envelope. Internal failures reference the caller id so support can
// correlate without the response leaking internals.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var missing *discovery.MissingFieldsError

	switch {
	case errors.Is(err, discovery.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Code: "UNAUTHENTICATED"})
	case errors.As(err, &missing):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:         err.Error(),
			Code:          "MISSING_PROFILE_FIELDS",
			MissingFields: missing.Fields,
		})
	case errors.Is(err, discovery.ErrScanTimeout):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: err.Error(), Code: "SCAN_TIMEOUT"})
	case errors.Is(err, discovery.ErrFilterNotSelected),
		errors.Is(err, discovery.ErrUnknownFilter):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_FILTER"})
	case errors.Is(err, mutate.ErrAnchorNotFound),
		errors.Is(err, mutate.ErrPersonNotFound),
		errors.Is(err, traverse.ErrPersonNotFound),
		errors.Is(err, traverse.ErrRootNotFound),
		errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NOT_FOUND"})
	case errors.Is(err, mutate.ErrParentExists),
		errors.Is(err, mutate.ErrCoParentRequired),
		errors.Is(err, mutate.ErrUnknownRelationship),
		errors.Is(err, mutate.ErrNotSpouse),
		errors.Is(err, ErrSelfExists),
		errors.Is(err, ErrNoSelf):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
	case errors.Is(err, store.ErrNoPendingRequest):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "NO_PENDING_REQUEST"})
	case errors.Is(err, ErrDescriberDisabled):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "DESCRIBER_DISABLED"})
	default:
		logger.Error("Internal error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal error; reference caller id " + caller(c) + " when reporting",
			Code:  "INTERNAL",
		})
	}
}

// HandleScan handles POST /v1/kindred/discovery/scan.
//
// Response:
//
//	200 OK: ScanResponse
//	401 Unauthorized: No caller identity or unknown account
//	422 Unprocessable Entity: Profile missing fields the filter needs
//	504 Gateway Timeout: Scan deadline exceeded
func (h *Handlers) HandleScan(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleScan")

	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	matches, err := h.svc.Scan(c.Request.Context(), caller(c), store.FilterOption(req.FilterOption))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ScanResponse{Matches: matches})
}

// HandleTree handles GET /v1/kindred/tree.
func (h *Handlers) HandleTree(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleTree")

	persons, err := h.svc.Tree(c.Request.Context(), caller(c))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, TreeResponse{Persons: persons})
}

// HandleGenerations handles GET /v1/kindred/tree/generations?root=.
func (h *Handlers) HandleGenerations(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGenerations")

	rootID := c.Query("root")
	generations, err := h.svc.Generations(c.Request.Context(), caller(c), rootID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, GenerationsResponse{RootID: rootID, Generations: generations})
}

// HandlePath handles GET /v1/kindred/tree/path?from=&to=.
func (h *Handlers) HandlePath(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandlePath")

	toID := c.Query("to")
	if toID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query parameter 'to' is required", Code: "INVALID_REQUEST"})
		return
	}
	result, err := h.svc.Path(c.Request.Context(), caller(c), c.Query("from"), toID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleDescribePath handles POST /v1/kindred/tree/path/describe.
func (h *Handlers) HandleDescribePath(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDescribePath")

	var req DescribePathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	path, desc, err := h.svc.DescribePath(c.Request.Context(), caller(c), req.FromID, req.ToID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, DescribePathResponse{Path: path, Description: desc})
}

// HandleLayout handles GET /v1/kindred/tree/layout?root=.
func (h *Handlers) HandleLayout(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleLayout")

	layout, err := h.svc.Layout(c.Request.Context(), caller(c), c.Query("root"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, layout)
}

// HandleAddPerson handles POST /v1/kindred/persons.
//
// Description:
//
//	With an empty relationship, creates the caller's self record (first
//	contact also creates the account record). Otherwise links a new
//	relative to the anchor.
//
// Response:
//
//	201 Created: PersonResponse
//	400 Bad Request: Validation error, unknown relationship, missing
//	  co-parent
//	404 Not Found: Anchor does not exist
func (h *Handlers) HandleAddPerson(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAddPerson")

	var req AddPersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	in := mutate.NewPersonInput{
		Name:            req.Name,
		AliasName:       req.AliasName,
		Gender:          person.Gender(req.Gender),
		DOB:             req.DOB,
		IsDeceased:      req.IsDeceased,
		DeceasedDate:    req.DeceasedDate,
		NativePlace:     req.NativePlace,
		CurrentPlace:    req.CurrentPlace,
		Religion:        req.Religion,
		Caste:           req.Caste,
		AnniversaryDate: req.AnniversaryDate,
		CoParentID:      req.CoParentID,
	}

	ctx := c.Request.Context()
	callerID := caller(c)
	var p *person.Person
	var err error
	if req.Relationship == "" {
		if _, err = h.svc.EnsureUser(ctx, callerID, req.Name); err == nil {
			p, err = h.svc.CreateSelf(ctx, callerID, in)
		}
	} else {
		p, err = h.svc.AddRelative(ctx, callerID, req.AnchorID, mutate.Relationship(req.Relationship), in)
	}
	if err != nil {
		respondError(c, logger, err)
		return
	}

	logger.Info("Person added", "person_id", p.ID, "relationship", req.Relationship)
	c.JSON(http.StatusCreated, PersonResponse{Person: p})
}

// HandleUpdatePerson handles PATCH /v1/kindred/persons/:id.
func (h *Handlers) HandleUpdatePerson(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleUpdatePerson")

	var req UpdatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	upd := mutate.FieldUpdates{
		Name:              req.Name,
		AliasName:         req.AliasName,
		DOB:               req.DOB,
		IsDeceased:        req.IsDeceased,
		DeceasedDate:      req.DeceasedDate,
		NativePlace:       req.NativePlace,
		CurrentPlace:      req.CurrentPlace,
		Religion:          req.Religion,
		Caste:             req.Caste,
		Relationship:      req.Relationship,
		SiblingOrderIndex: req.SiblingOrderIndex,
		AnniversaryDates:  req.AnniversaryDates,
	}
	if req.Gender != nil {
		g := person.Gender(*req.Gender)
		upd.Gender = &g
	}

	p, err := h.svc.UpdatePerson(c.Request.Context(), caller(c), c.Param("id"), upd, req.DivorceToggles)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, PersonResponse{Person: p})
}

// HandleDeletePerson handles DELETE /v1/kindred/persons/:id.
func (h *Handlers) HandleDeletePerson(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDeletePerson")

	if err := h.svc.DeletePerson(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		respondError(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleDeleteAccount handles DELETE /v1/kindred/account.
func (h *Handlers) HandleDeleteAccount(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDeleteAccount")

	if err := h.svc.DeleteAccount(c.Request.Context(), caller(c)); err != nil {
		respondError(c, logger, err)
		return
	}
	logger.Info("Account deleted", "caller_id", caller(c))
	c.Status(http.StatusNoContent)
}

// HandleKonnections handles GET /v1/kindred/konnections.
func (h *Handlers) HandleKonnections(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleKonnections")

	accepted, pending, err := h.svc.Konnections(c.Request.Context(), caller(c))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	if accepted == nil {
		accepted = []string{}
	}
	if pending == nil {
		pending = []string{}
	}
	c.JSON(http.StatusOK, KonnectionsResponse{Konnected: accepted, Pending: pending})
}

// HandleRequestKonnection handles POST /v1/kindred/konnections/:userID/request.
func (h *Handlers) HandleRequestKonnection(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRequestKonnection")

	if err := h.svc.RequestKonnection(c.Request.Context(), caller(c), c.Param("userID")); err != nil {
		respondError(c, logger, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// HandleAcceptKonnection handles POST /v1/kindred/konnections/:userID/accept.
func (h *Handlers) HandleAcceptKonnection(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAcceptKonnection")

	if err := h.svc.AcceptKonnection(c.Request.Context(), caller(c), c.Param("userID")); err != nil {
		respondError(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleHealth handles GET /v1/kindred/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: ServiceVersion})
}

// HandleReady handles GET /v1/kindred/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	ok := h.svc.Ready(c.Request.Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, ReadyResponse{Ready: ok, StoreOK: ok})
}
