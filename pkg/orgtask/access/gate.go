package access

import "github.com/google/uuid"

// Composite predicates shared by the per-resource gates. Visibility is always
// evaluated before the mutating right so callers can answer 404 instead of
// 403 when the actor has no channel to the resource at all.

// CanAccessOrgOrObj passes when the user has access to the object itself or
// to its parent organization.
func CanAccessOrgOrObj(obj, org Subject, userID uuid.UUID) bool {
	return HasAccess(obj, userID) || HasAccess(org, userID)
}

// CanAccessOrgDepartOrObj passes when the user has access to the object, its
// organization, or its department when one is attached.
func CanAccessOrgDepartOrObj(obj, org Subject, depart *Subject, userID uuid.UUID) bool {
	if HasAccess(obj, userID) || HasAccess(org, userID) {
		return true
	}
	return depart != nil && HasAccess(*depart, userID)
}

// IsObjectOrgOrDepartCreator passes when the user is the object itself, the
// object's creator, or the creator of its organization or department.
func IsObjectOrgOrDepartCreator(obj Subject, org, depart *Subject, userID uuid.UUID) bool {
	if HasCreatorAccess(obj, userID) {
		return true
	}
	if org != nil && HasCreatorAccess(*org, userID) {
		return true
	}
	return depart != nil && HasCreatorAccess(*depart, userID)
}

// IsMember reports membership of the user in a loaded member set.
func IsMember(memberIDs []uuid.UUID, userID uuid.UUID) bool {
	for _, id := range memberIDs {
		if id == userID {
			return true
		}
	}
	return false
}
