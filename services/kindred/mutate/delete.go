// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mutate

import (
	"context"
	"fmt"

	"github.com/AleutianAI/Kindred/services/kindred/store"
)

// DeletePerson removes one person and cascades every surviving reference,
// atomically.
//
// Description:
//
//	The deleted record's parents lose it from ChildIDs; every current
//	spouse loses it from SpouseIDs; every child's parent slot pointing at
//	it is cleared (the child stays in the tree, only that one edge goes);
//	every sibling loses it from SiblingIDs. The record itself is deleted
//	last, in the same batch.
//
//	Surviving ex-spouses' DivorcedSpouseIDs are deliberately NOT stripped.
//	The historical cascade had this asymmetry and downstream data depends
//	on it; account-level deletion (DeleteUserData) does strip everything.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	ownerID - The tree owner.
//	personID - The record to delete.
//
// Outputs:
//
//	error - ErrPersonNotFound or a store failure. Nothing is written on
//	  error.
func (m *Mutator) DeletePerson(ctx context.Context, ownerID, personID string) error {
	w, err := m.loadWorkspace(ctx, ownerID)
	if err != nil {
		return err
	}
	d := w.get(personID)
	if d == nil {
		return fmt.Errorf("delete %s: %w", personID, ErrPersonNotFound)
	}

	for _, parentID := range []string{d.FatherID, d.MotherID} {
		if parent := w.get(parentID); parent != nil {
			parent.ChildIDs = removeID(parent.ChildIDs, d.ID)
			w.touch(parent.ID)
		}
	}

	for _, spouseID := range d.SpouseIDs {
		if spouse := w.get(spouseID); spouse != nil {
			spouse.SpouseIDs = removeID(spouse.SpouseIDs, d.ID)
			w.touch(spouse.ID)
		}
	}

	for _, childID := range d.ChildIDs {
		child := w.get(childID)
		if child == nil {
			continue
		}
		if child.FatherID == d.ID {
			child.FatherID = ""
			w.touch(child.ID)
		}
		if child.MotherID == d.ID {
			child.MotherID = ""
			w.touch(child.ID)
		}
	}

	for _, sibID := range d.SiblingIDs {
		if sib := w.get(sibID); sib != nil {
			sib.SiblingIDs = removeID(sib.SiblingIDs, d.ID)
			w.touch(sib.ID)
		}
	}

	w.remove(d.ID)

	if err := m.store.ApplyBatch(ctx, w.batch()); err != nil {
		return fmt.Errorf("delete %s: %w", personID, err)
	}
	m.logger.Info("person deleted", "owner_id", ownerID, "person_id", personID)
	return nil
}

// DeleteUserData removes a user's entire person set and strips every
// dangling reference to it from every other user's records.
//
// Description:
//
//	Uses the store's cross-owner reference query to find foreign records
//	pointing into the deleted set, clears those references (parent slots
//	to empty; spouse, divorced-spouse, child, and sibling arrays have the
//	ids removed — unlike the single-person cascade, divorced-spouse
//	references ARE stripped here), and stages the foreign fixes plus all
//	own-record deletions into one atomic batch. The account record itself
//	is removed after the graph batch commits.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	userID - The account being deleted.
//
// Outputs:
//
//	error - A store failure; the graph batch is all-or-nothing.
func (m *Mutator) DeleteUserData(ctx context.Context, userID string) error {
	people, err := m.store.ListPersons(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete user %s: load person set: %w", userID, err)
	}

	ids := make([]string, 0, len(people))
	idSet := make(map[string]bool, len(people))
	for _, p := range people {
		ids = append(ids, p.ID)
		idSet[p.ID] = true
	}

	referencing, err := m.store.FindReferencing(ctx, ids)
	if err != nil {
		return fmt.Errorf("delete user %s: find references: %w", userID, err)
	}

	var batch store.Batch
	for _, ref := range referencing {
		if ref.OwnerID == userID {
			continue // own records are deleted wholesale below
		}
		p := ref.Person.Clone()
		if idSet[p.FatherID] {
			p.FatherID = ""
		}
		if idSet[p.MotherID] {
			p.MotherID = ""
		}
		p.SpouseIDs = removeAll(p.SpouseIDs, idSet)
		p.DivorcedSpouseIDs = removeAll(p.DivorcedSpouseIDs, idSet)
		p.ChildIDs = removeAll(p.ChildIDs, idSet)
		p.SiblingIDs = removeAll(p.SiblingIDs, idSet)
		batch.Put(ref.OwnerID, p)
	}
	for _, id := range ids {
		batch.Delete(userID, id)
	}

	if err := m.store.ApplyBatch(ctx, &batch); err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	if err := m.store.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user %s: account record: %w", userID, err)
	}
	m.logger.Info("user data deleted",
		"user_id", userID, "persons", len(ids), "foreign_records_fixed", len(referencing))
	return nil
}

func removeAll(ids []string, drop map[string]bool) []string {
	out := ids[:0]
	for _, id := range ids {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}
