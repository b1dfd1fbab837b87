// Package softdelete implements the cascading logical-deletion engine.
//
// Deletion is two-phase: a collector walks the reverse references from the
// roots and classifies every edge as cascade (child owned by parent),
// set-null (delegation link) or m2m-unbind (membership), then all resulting
// flag flips, scalar updates and unbinds are applied inside one transaction.
// The phases are never intermixed; correctness depends on collecting the full
// set before any mutation.
package softdelete

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Romulad/orgs-task-api/pkg/orgtask/models"
)

// Engine soft-deletes scope rows and their dependents. All read queries run
// against the live surface, so deleting an already-deleted row is a no-op and
// the whole operation is idempotent.
type Engine struct {
	db *gorm.DB
}

// NewEngine creates an engine bound to the given database handle.
func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

type idSet map[uuid.UUID]bool

func (s idSet) add(id uuid.UUID) bool {
	if s[id] {
		return false
	}
	s[id] = true
	return true
}

func (s idSet) list() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}

// collector accumulates the transitive closure of rows to delete.
type collector struct {
	db *gorm.DB

	users   idSet
	orgs    idSet
	departs idSet
	tags    idSet
	tasks   idSet
	roles   idSet
	grants  idSet
}

func newCollector(db *gorm.DB) *collector {
	return &collector{
		db:      db,
		users:   idSet{},
		orgs:    idSet{},
		departs: idSet{},
		tags:    idSet{},
		tasks:   idSet{},
		roles:   idSet{},
		grants:  idSet{},
	}
}

// collectUser schedules a principal and everything it transitively owns.
// Organizations created by the principal cascade; every other created_by
// reference is a delegation link and is nulled instead.
func (c *collector) collectUser(id uuid.UUID) error {
	if !c.users.add(id) {
		return nil
	}
	var orgIDs []uuid.UUID
	if err := c.db.Model(&models.Organization{}).Where("created_by_id = ?", id).
		Pluck("id", &orgIDs).Error; err != nil {
		return err
	}
	for _, orgID := range orgIDs {
		if err := c.collectOrg(orgID); err != nil {
			return err
		}
	}
	var grantIDs []uuid.UUID
	if err := c.db.Model(&models.UserPermission{}).Where("user_id = ?", id).
		Pluck("id", &grantIDs).Error; err != nil {
		return err
	}
	for _, grantID := range grantIDs {
		c.grants.add(grantID)
	}
	return nil
}

// collectOrg schedules an organization and every row whose FK points at it.
func (c *collector) collectOrg(id uuid.UUID) error {
	if !c.orgs.add(id) {
		return nil
	}
	var departIDs []uuid.UUID
	if err := c.db.Model(&models.Department{}).Where("org_id = ?", id).
		Pluck("id", &departIDs).Error; err != nil {
		return err
	}
	for _, departID := range departIDs {
		if err := c.collectDepartment(departID); err != nil {
			return err
		}
	}
	var taskIDs []uuid.UUID
	if err := c.db.Model(&models.Task{}).Where("org_id = ?", id).
		Pluck("id", &taskIDs).Error; err != nil {
		return err
	}
	for _, taskID := range taskIDs {
		if err := c.collectTask(taskID); err != nil {
			return err
		}
	}
	var tagIDs []uuid.UUID
	if err := c.db.Model(&models.Tag{}).Where("org_id = ?", id).
		Pluck("id", &tagIDs).Error; err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		c.tags.add(tagID)
	}
	var roleIDs []uuid.UUID
	if err := c.db.Model(&models.Role{}).Where("org_id = ?", id).
		Pluck("id", &roleIDs).Error; err != nil {
		return err
	}
	for _, roleID := range roleIDs {
		c.roles.add(roleID)
	}
	var grantIDs []uuid.UUID
	if err := c.db.Model(&models.UserPermission{}).Where("org_id = ?", id).
		Pluck("id", &grantIDs).Error; err != nil {
		return err
	}
	for _, grantID := range grantIDs {
		c.grants.add(grantID)
	}
	return nil
}

// collectDepartment schedules a department. Tasks referencing it through the
// delegation FK survive with the reference nulled in the apply phase.
func (c *collector) collectDepartment(id uuid.UUID) error {
	c.departs.add(id)
	return nil
}

// collectTask schedules a task and its subtasks.
func (c *collector) collectTask(id uuid.UUID) error {
	if !c.tasks.add(id) {
		return nil
	}
	var subIDs []uuid.UUID
	if err := c.db.Model(&models.Task{}).Where("parent_task_id = ?", id).
		Pluck("id", &subIDs).Error; err != nil {
		return err
	}
	for _, subID := range subIDs {
		if err := c.collectTask(subID); err != nil {
			return err
		}
	}
	return nil
}

// apply performs every collected mutation inside one transaction:
// m2m unbinds first, then batched set-null updates, then the flag flips
// through the soft-deleting default manager.
func (c *collector) apply() error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		if len(c.users) > 0 {
			userIDs := c.users.list()
			// A deleted principal must disappear from every membership and
			// access-list set, not merely be hidden behind the live filter.
			unbinds := []string{
				"DELETE FROM organization_members WHERE user_id IN ?",
				"DELETE FROM department_members WHERE user_id IN ?",
				"DELETE FROM task_assignees WHERE user_id IN ?",
				"DELETE FROM role_users WHERE user_id IN ?",
				"DELETE FROM organization_access WHERE user_id IN ?",
				"DELETE FROM department_access WHERE user_id IN ?",
				"DELETE FROM tag_access WHERE user_id IN ?",
				"DELETE FROM task_access WHERE user_id IN ?",
				"DELETE FROM role_access WHERE user_id IN ?",
				"DELETE FROM user_permission_access WHERE user_id IN ?",
				"DELETE FROM user_access WHERE user_id IN ? OR accessor_id IN ?",
			}
			for _, stmt := range unbinds[:len(unbinds)-1] {
				if err := tx.Exec(stmt, userIDs).Error; err != nil {
					return err
				}
			}
			if err := tx.Exec(unbinds[len(unbinds)-1], userIDs, userIDs).Error; err != nil {
				return err
			}

			// Delegation links never dangle on live rows.
			if err := tx.Model(&models.Organization{}).Where("owner_id IN ?", userIDs).
				Update("owner_id", nil).Error; err != nil {
				return err
			}
			for _, m := range []interface{}{
				&models.User{}, &models.Department{}, &models.Tag{},
				&models.Task{}, &models.Role{}, &models.UserPermission{},
			} {
				if err := tx.Model(m).Where("created_by_id IN ?", userIDs).
					Update("created_by_id", nil).Error; err != nil {
					return err
				}
			}
		}

		if len(c.departs) > 0 {
			if err := tx.Model(&models.Task{}).Where("depart_id IN ?", c.departs.list()).
				Update("depart_id", nil).Error; err != nil {
				return err
			}
		}

		// Cascaded rows keep their association rows; the live filter hides
		// them from every read through the default surface.
		flips := []struct {
			set   idSet
			model interface{}
		}{
			{c.grants, &models.UserPermission{}},
			{c.roles, &models.Role{}},
			{c.tasks, &models.Task{}},
			{c.tags, &models.Tag{}},
			{c.departs, &models.Department{}},
			{c.orgs, &models.Organization{}},
			{c.users, &models.User{}},
		}
		for _, f := range flips {
			if len(f.set) == 0 {
				continue
			}
			if err := tx.Where("id IN ?", f.set.list()).Delete(f.model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteUsers soft-deletes the given principals and everything they created
// that cascades, unbinding them from every membership set. Unknown or
// already-deleted ids are skipped; an empty list is a successful no-op.
func (e *Engine) DeleteUsers(ids []uuid.UUID) error {
	live, err := e.liveIDs(&models.User{}, ids)
	if err != nil || len(live) == 0 {
		return err
	}
	c := newCollector(e.db)
	for _, id := range live {
		if err := c.collectUser(id); err != nil {
			return err
		}
	}
	return c.apply()
}

// DeleteOrgs soft-deletes organizations with their departments, tasks, tags,
// roles and permission grants.
func (e *Engine) DeleteOrgs(ids []uuid.UUID) error {
	live, err := e.liveIDs(&models.Organization{}, ids)
	if err != nil || len(live) == 0 {
		return err
	}
	c := newCollector(e.db)
	for _, id := range live {
		if err := c.collectOrg(id); err != nil {
			return err
		}
	}
	return c.apply()
}

// DeleteDepartments soft-deletes departments; tasks attached to them survive
// with the department reference nulled.
func (e *Engine) DeleteDepartments(ids []uuid.UUID) error {
	live, err := e.liveIDs(&models.Department{}, ids)
	if err != nil || len(live) == 0 {
		return err
	}
	c := newCollector(e.db)
	for _, id := range live {
		if err := c.collectDepartment(id); err != nil {
			return err
		}
	}
	return c.apply()
}

// DeleteTasks soft-deletes tasks and their subtasks.
func (e *Engine) DeleteTasks(ids []uuid.UUID) error {
	live, err := e.liveIDs(&models.Task{}, ids)
	if err != nil || len(live) == 0 {
		return err
	}
	c := newCollector(e.db)
	for _, id := range live {
		if err := c.collectTask(id); err != nil {
			return err
		}
	}
	return c.apply()
}

// DeleteTags soft-deletes tags. Task associations stay in the join table;
// the live filter keeps deleted tags out of task reads.
func (e *Engine) DeleteTags(ids []uuid.UUID) error {
	return e.flipOnly(&models.Tag{}, ids)
}

// DeleteRoles soft-deletes roles.
func (e *Engine) DeleteRoles(ids []uuid.UUID) error {
	return e.flipOnly(&models.Role{}, ids)
}

// DeleteUserPermissions soft-deletes direct permission grant rows.
func (e *Engine) DeleteUserPermissions(ids []uuid.UUID) error {
	return e.flipOnly(&models.UserPermission{}, ids)
}

func (e *Engine) flipOnly(model interface{}, ids []uuid.UUID) error {
	live, err := e.liveIDs(model, ids)
	if err != nil || len(live) == 0 {
		return err
	}
	return e.db.Where("id IN ?", live).Delete(model).Error
}

// liveIDs filters the requested ids down to rows present on the live surface.
func (e *Engine) liveIDs(model interface{}, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var live []uuid.UUID
	err := e.db.Model(model).Where("id IN ?", ids).Pluck("id", &live).Error
	return live, err
}
