package access

import (
	"testing"

	"github.com/google/uuid"

	"github.com/Romulad/orgs-task-api/pkg/orgtask/models"
)

func TestHasAccessSelf(t *testing.T) {
	id := uuid.New()
	s := Subject{ID: id}
	if !HasAccess(s, id) {
		t.Error("Expected a subject to have access to itself")
	}
	if HasAccess(s, uuid.New()) {
		t.Error("Expected a stranger to have no access")
	}
}

func TestHasAccessOwnerCreatorAndList(t *testing.T) {
	owner := uuid.New()
	creator := uuid.New()
	listed := uuid.New()
	s := Subject{
		ID:         uuid.New(),
		Owner:      &owner,
		CreatedBy:  &creator,
		AccessList: []uuid.UUID{listed},
	}

	for _, id := range []uuid.UUID{owner, creator, listed} {
		if !HasAccess(s, id) {
			t.Errorf("Expected %s to have access", id)
		}
	}
	if HasAccess(s, uuid.New()) {
		t.Error("Expected a stranger to have no access")
	}
}

func TestHasCreatorAccess(t *testing.T) {
	owner := uuid.New()
	creator := uuid.New()
	listed := uuid.New()
	s := Subject{
		ID:         uuid.New(),
		Owner:      &owner,
		CreatedBy:  &creator,
		AccessList: []uuid.UUID{listed},
	}

	if !HasCreatorAccess(s, creator) {
		t.Error("Expected the creator to pass")
	}
	if !HasCreatorAccess(s, s.ID) {
		t.Error("Expected the subject itself to pass")
	}
	if HasCreatorAccess(s, owner) {
		t.Error("Owner must not pass the creator predicate")
	}
	if HasCreatorAccess(s, listed) {
		t.Error("Access-list entry must not pass the creator predicate")
	}
}

func TestHasAccessNilAttributes(t *testing.T) {
	// A subject with no delegation attributes only grants to itself.
	s := Subject{ID: uuid.New()}
	if HasAccess(s, uuid.New()) {
		t.Error("Nil attributes must contribute false")
	}
}

func TestHasAccessAll(t *testing.T) {
	actor := uuid.New()
	granted := Subject{ID: uuid.New(), CreatedBy: &actor}
	denied := Subject{ID: uuid.New()}

	if !HasAccessAll([]Subject{granted, granted}, actor) {
		t.Error("Expected full access over all subjects")
	}
	if HasAccessAll([]Subject{granted, denied}, actor) {
		t.Error("One denied subject must fail the conjunction")
	}
	if !HasAccessAll(nil, actor) {
		t.Error("Empty list must pass vacuously")
	}
}

func TestCompositeGates(t *testing.T) {
	actor := uuid.New()
	obj := Subject{ID: uuid.New()}
	org := Subject{ID: uuid.New(), CreatedBy: &actor}
	departWith := Subject{ID: uuid.New(), AccessList: []uuid.UUID{actor}}
	departWithout := Subject{ID: uuid.New()}

	if !CanAccessOrgOrObj(obj, org, actor) {
		t.Error("Org access must open the object gate")
	}
	if CanAccessOrgOrObj(obj, Subject{ID: uuid.New()}, actor) {
		t.Error("No channel anywhere must close the gate")
	}

	if !CanAccessOrgDepartOrObj(obj, Subject{ID: uuid.New()}, &departWith, actor) {
		t.Error("Department access must open the gate")
	}
	if CanAccessOrgDepartOrObj(obj, Subject{ID: uuid.New()}, &departWithout, actor) {
		t.Error("Department without access must not open the gate")
	}
	if CanAccessOrgDepartOrObj(obj, Subject{ID: uuid.New()}, nil, actor) {
		t.Error("Nil department must contribute false")
	}

	if !IsObjectOrgOrDepartCreator(obj, &org, nil, actor) {
		t.Error("Org creator must pass the creator gate")
	}
	if IsObjectOrgOrDepartCreator(obj, nil, &departWith, actor) {
		t.Error("Access list must not pass the creator gate")
	}
}

func TestForOrgSubject(t *testing.T) {
	ownerID := uuid.New()
	creatorID := uuid.New()
	accessor := models.User{ID: uuid.New()}
	org := models.Organization{
		ID:              uuid.New(),
		OwnerID:         &ownerID,
		CreatedByID:     &creatorID,
		CanBeAccessedBy: []models.User{accessor},
	}

	s := ForOrg(&org)
	if !HasAccess(s, ownerID) || !HasAccess(s, creatorID) || !HasAccess(s, accessor.ID) {
		t.Error("Expected owner, creator and accessor to pass")
	}
	if HasAccess(s, uuid.New()) {
		t.Error("Expected a stranger to fail")
	}
}

func TestIsMember(t *testing.T) {
	member := uuid.New()
	if !IsMember([]uuid.UUID{uuid.New(), member}, member) {
		t.Error("Expected membership to be found")
	}
	if IsMember(nil, member) {
		t.Error("Empty set has no members")
	}
}
