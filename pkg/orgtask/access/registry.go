package access

import (
	"sort"
	"strings"
)

// Permission labels. The registry is closed: labels outside it never grant
// anything, whatever is stored in the database.
const (
	CanCreateDepart = "can_create_depart"
	CanCreateTask   = "can_create_task"
	CanCreateTag    = "can_create_tag"

	// Creator-only tier: grantable solely by the organization's creator.
	CanChangeRessourcesOwners = "can_change_ressources_owners"
)

// PermMeta describes a registry entry.
type PermMeta struct {
	Name        string
	HelpText    string
	CreatorOnly bool
}

// Registry is the process-wide permission registry, immutable after init.
var Registry = map[string]PermMeta{
	CanCreateDepart: {
		Name:     "Can create depart",
		HelpText: "Any user with this permission can create departments in the given organization",
	},
	CanCreateTask: {
		Name:     "Can create task",
		HelpText: "Any user with this permission can create tasks in the given organization",
	},
	CanCreateTag: {
		Name:     "Can create tag",
		HelpText: "Any user with this permission can create tags in the given organization",
	},
	CanChangeRessourcesOwners: {
		Name:        "Can change ressources owners",
		HelpText:    "Any user with this permission can change any ressource owners in the given organization",
		CreatorOnly: true,
	},
}

// PermissionsExist partitions labels into found / not-found against the
// registry. Labels are matched case-insensitively and returned lowercase.
func PermissionsExist(perms []string) (found, notFound []string) {
	for _, p := range perms {
		label := strings.ToLower(p)
		if _, ok := Registry[label]; ok {
			found = append(found, label)
		} else {
			notFound = append(notFound, label)
		}
	}
	return found, notFound
}

// IsCreatorOnly reports whether the label belongs to the creator-only tier.
// Unknown labels are not creator-only; they simply never grant.
func IsCreatorOnly(label string) bool {
	return Registry[strings.ToLower(label)].CreatorOnly
}

// PermInfo is the public shape of a registry entry for the /perms/ listing.
type PermInfo struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	HelpText string `json:"help_text"`
}

// PermData returns registry metadata for the given labels, silently skipping
// unknown or removed labels.
func PermData(labels []string) []PermInfo {
	var data []PermInfo
	for _, label := range labels {
		meta, ok := Registry[label]
		if !ok {
			continue
		}
		data = append(data, PermInfo{Name: meta.Name, Label: label, HelpText: meta.HelpText})
	}
	return data
}

// AllPerms returns every registered label, sorted for stable output.
func AllPerms() []string {
	labels := make([]string, 0, len(Registry))
	for label := range Registry {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// DefaultPerms returns the labels of the default tier.
func DefaultPerms() []string {
	var labels []string
	for _, label := range AllPerms() {
		if !Registry[label].CreatorOnly {
			labels = append(labels, label)
		}
	}
	return labels
}

// CreatorOnlyPerms returns the labels of the creator-only tier.
func CreatorOnlyPerms() []string {
	var labels []string
	for _, label := range AllPerms() {
		if Registry[label].CreatorOnly {
			labels = append(labels, label)
		}
	}
	return labels
}
