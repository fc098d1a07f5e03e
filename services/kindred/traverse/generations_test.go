// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package traverse

import (
	"errors"
	"testing"

	"github.com/AleutianAI/Kindred/services/kindred/person"
)

// lineageSet builds a four-generation family around "me":
//
//	great-grandfather -> grandfather -> father+mother -> me/spouse/ex/sister -> son
func lineageSet() map[string]*person.Person {
	return map[string]*person.Person{
		"ggf": {ID: "ggf", Name: "Great Grandfather", Gender: person.Male, ChildIDs: []string{"gf"}},
		"gf":  {ID: "gf", Name: "Grandfather", Gender: person.Male, FatherID: "ggf", ChildIDs: []string{"father"}},
		"father": {ID: "father", Name: "Father", Gender: person.Male, FatherID: "gf",
			SpouseIDs: []string{"mother"}, ChildIDs: []string{"me", "sister"}},
		"mother": {ID: "mother", Name: "Mother", Gender: person.Female,
			SpouseIDs: []string{"father"}, ChildIDs: []string{"me", "sister"}},
		"me": {ID: "me", Name: "Me", Gender: person.Male, FatherID: "father", MotherID: "mother",
			SpouseIDs: []string{"wife"}, DivorcedSpouseIDs: []string{"ex"},
			SiblingIDs: []string{"sister"}, ChildIDs: []string{"son"}},
		"wife":   {ID: "wife", Name: "Wife", Gender: person.Female, SpouseIDs: []string{"me"}},
		"ex":     {ID: "ex", Name: "Ex", Gender: person.Female, DivorcedSpouseIDs: []string{"me"}},
		"sister": {ID: "sister", Name: "Sister", Gender: person.Female, FatherID: "father", MotherID: "mother", SiblingIDs: []string{"me"}},
		"son":    {ID: "son", Name: "Son", Gender: person.Male, FatherID: "me", MotherID: "wife"},
	}
}

func TestAssignGenerationsLineage(t *testing.T) {
	generations, err := AssignGenerations("me", lineageSet())
	if err != nil {
		t.Fatalf("AssignGenerations failed: %v", err)
	}

	want := map[string]int{
		"ggf":    -3,
		"gf":     -2,
		"father": -1,
		"mother": -1,
		"me":     0,
		"wife":   0,
		"ex":     0, // divorced spouses traverse like current ones
		"sister": 0,
		"son":    1,
	}
	for id, gen := range want {
		got, ok := generations[id]
		if !ok {
			t.Errorf("%s unreachable, want generation %d", id, gen)
			continue
		}
		if got != gen {
			t.Errorf("generation[%s] = %d, want %d", id, got, gen)
		}
	}
	if len(generations) != len(want) {
		t.Errorf("assigned %d persons, want %d", len(generations), len(want))
	}
}

func TestAssignGenerationsRootNotFound(t *testing.T) {
	_, err := AssignGenerations("ghost", lineageSet())
	if !errors.Is(err, ErrRootNotFound) {
		t.Errorf("err = %v, want ErrRootNotFound", err)
	}
}

func TestAssignGenerationsUnreachable(t *testing.T) {
	set := lineageSet()
	set["island"] = &person.Person{ID: "island", Name: "Disconnected"}

	generations, err := AssignGenerations("me", set)
	if err != nil {
		t.Fatalf("AssignGenerations failed: %v", err)
	}
	if _, ok := generations["island"]; ok {
		t.Error("disconnected person must be absent from the map")
	}
}

func TestAssignGenerationsSkipsAlternates(t *testing.T) {
	set := lineageSet()
	set["son"].IsAlternateProfile = true

	generations, err := AssignGenerations("me", set)
	if err != nil {
		t.Fatalf("AssignGenerations failed: %v", err)
	}
	if _, ok := generations["son"]; ok {
		t.Error("alternate profiles must not be assigned a generation")
	}
}

// TestAssignGenerationsFirstAssignmentWins builds an irregular graph where
// an uncle-marriage gives one person two candidate generations; the BFS
// order decides and the result stays stable.
func TestAssignGenerationsFirstAssignmentWins(t *testing.T) {
	// aunt is both sibling of father (-1 via father) and spouse of me's
	// sibling (0 via sister). Father is dequeued before sister.
	set := map[string]*person.Person{
		"me":     {ID: "me", FatherID: "father", SiblingIDs: []string{"sister"}},
		"father": {ID: "father", ChildIDs: []string{"me"}, SiblingIDs: []string{"aunt"}},
		"sister": {ID: "sister", SiblingIDs: []string{"me"}, SpouseIDs: []string{"aunt"}},
		"aunt":   {ID: "aunt", SiblingIDs: []string{"father"}, SpouseIDs: []string{"sister"}},
	}

	first, err := AssignGenerations("me", set)
	if err != nil {
		t.Fatalf("AssignGenerations failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := AssignGenerations("me", set)
		if err != nil {
			t.Fatalf("AssignGenerations failed: %v", err)
		}
		if again["aunt"] != first["aunt"] {
			t.Fatalf("generation[aunt] unstable: %d vs %d", again["aunt"], first["aunt"])
		}
	}
	// Father (enqueued before sister) settles aunt at -1.
	if first["aunt"] != -1 {
		t.Errorf("generation[aunt] = %d, want -1 (father's BFS turn comes first)", first["aunt"])
	}
}
