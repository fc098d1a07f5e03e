// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package describe turns a raw relationship path into a kinship-term
// description ("maternal great-aunt") using a language model. The path
// itself always comes from the deterministic traversal engine; the model
// only names it.
package describe

import (
	"context"

	"github.com/AleutianAI/Kindred/services/kindred/traverse"
)

// PathPerson is one step of the path as sent to the describer.
type PathPerson struct {
	PersonName                 string `json:"personName"`
	ConnectionToPreviousPerson string `json:"connectionToPreviousPerson"`
	Gender                     string `json:"gender"`
}

// Request is the describer input: the two endpoints and the full path
// between them.
type Request struct {
	Person1Name   string       `json:"person1Name"`
	Person2Name   string       `json:"person2Name"`
	Person2Gender string       `json:"person2Gender"`
	Path          []PathPerson `json:"path"`
}

// Description is the describer output.
type Description struct {
	// RelationshipName is the kinship term for person2 relative to
	// person1, e.g. "maternal great-aunt".
	RelationshipName string `json:"relationshipName"`

	// Explanation is a one-sentence walk of the path.
	Explanation string `json:"explanation"`
}

// Describer names the relationship a path represents.
type Describer interface {
	Describe(ctx context.Context, req Request) (*Description, error)
}

// BuildRequest converts a traversal path result into a describer request.
// The caller must have checked result.Found.
func BuildRequest(result *traverse.PathResult) Request {
	req := Request{}
	if len(result.Steps) == 0 {
		return req
	}
	first := result.Steps[0]
	last := result.Steps[len(result.Steps)-1]
	req.Person1Name = first.PersonName
	req.Person2Name = last.PersonName
	req.Person2Gender = string(last.Gender)
	for _, step := range result.Steps {
		req.Path = append(req.Path, PathPerson{
			PersonName:                 step.PersonName,
			ConnectionToPreviousPerson: step.Relation,
			Gender:                     string(step.Gender),
		})
	}
	return req
}
