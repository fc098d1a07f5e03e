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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all Kindred routes with the router.
//
// Description:
//
//	Registers all /v1/kindred/* endpoints with the given Gin router
//	group. Health endpoints are open; everything else requires the
//	injected caller identity.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/kindred/discovery/scan - Cross-user tree similarity scan
//
//	GET  /v1/kindred/tree - Caller's full person set
//	GET  /v1/kindred/tree/generations - Generation map from a root
//	GET  /v1/kindred/tree/path - Relationship path between two persons
//	POST /v1/kindred/tree/path/describe - Name a relationship path
//	GET  /v1/kindred/tree/layout - Renderable three-row layout
//
//	POST   /v1/kindred/persons - Create self or add a relative
//	PATCH  /v1/kindred/persons/:id - Edit fields and divorce state
//	DELETE /v1/kindred/persons/:id - Delete a person (cascades)
//	DELETE /v1/kindred/account - Delete the caller's whole footprint
//
//	GET  /v1/kindred/konnections - Accepted and pending konnections
//	POST /v1/kindred/konnections/:userID/request - Request a konnection
//	POST /v1/kindred/konnections/:userID/accept - Accept a request
//
//	GET  /v1/kindred/health - Health check
//	GET  /v1/kindred/ready - Readiness check
//
// Example:
//
//	service := kindred.NewService(kindred.ServiceConfig{Store: st})
//	handlers := kindred.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	kindred.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	kg := rg.Group("/kindred")
	{
		// Health checks, no identity required
		kg.GET("/health", handlers.HandleHealth)
		kg.GET("/ready", handlers.HandleReady)

		authed := kg.Group("")
		authed.Use(CallerIdentity())
		{
			// Discovery
			authed.POST("/discovery/scan", handlers.HandleScan)

			// Tree queries
			authed.GET("/tree", handlers.HandleTree)
			authed.GET("/tree/generations", handlers.HandleGenerations)
			authed.GET("/tree/path", handlers.HandlePath)
			authed.POST("/tree/path/describe", handlers.HandleDescribePath)
			authed.GET("/tree/layout", handlers.HandleLayout)

			// Graph mutations
			authed.POST("/persons", handlers.HandleAddPerson)
			authed.PATCH("/persons/:id", handlers.HandleUpdatePerson)
			authed.DELETE("/persons/:id", handlers.HandleDeletePerson)
			authed.DELETE("/account", handlers.HandleDeleteAccount)

			// Konnections
			authed.GET("/konnections", handlers.HandleKonnections)
			authed.POST("/konnections/:userID/request", handlers.HandleRequestKonnection)
			authed.POST("/konnections/:userID/accept", handlers.HandleAcceptKonnection)
		}
	}
}
