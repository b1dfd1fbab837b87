package tasks

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Romulad/orgs-task-api/pkg/orgtask/access"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/auth"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/httputil"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/mailer"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/models"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/orgs"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/softdelete"
)

// Handler handles task requests
type Handler struct {
	db      *gorm.DB
	engine  *softdelete.Engine
	checker *access.Checker
	mail    mailer.Mailer
}

// NewHandler creates a new tasks handler
func NewHandler(db *gorm.DB, mail mailer.Mailer) *Handler {
	return &Handler{
		db:      db,
		engine:  softdelete.NewEngine(db),
		checker: access.NewChecker(db),
		mail:    mail,
	}
}

// TagBrief is the compact tag shape embedded in task responses.
type TagBrief struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TaskResponse represents a task in API responses
type TaskResponse struct {
	ID                    string           `json:"id"`
	Name                  string           `json:"name"`
	Description           string           `json:"description"`
	Org                   string           `json:"org"`
	Depart                *string          `json:"depart"`
	ParentTask            *string          `json:"parent_task"`
	DueDate               *time.Time       `json:"due_date"`
	Priority              string           `json:"priority"`
	Status                string           `json:"status"`
	EstimatedDuration     *int64           `json:"estimated_duration"`
	ActualDuration        *int64           `json:"actual_duration"`
	AllowAutoStatusUpdate bool             `json:"allow_auto_status_update"`
	CreatedBy             *orgs.UserBrief  `json:"created_by"`
	AssignedTo            []orgs.UserBrief `json:"assigned_to"`
	Tags                  []TagBrief       `json:"tags"`
	CanBeAccessedBy       []orgs.UserBrief `json:"can_be_accessed_by"`
	CreatedAt             string           `json:"created_at"`
}

func brief(u *models.User) orgs.UserBrief {
	return orgs.UserBrief{ID: u.ID.String(), Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

func briefList(users []models.User) []orgs.UserBrief {
	out := make([]orgs.UserBrief, len(users))
	for i := range users {
		out[i] = brief(&users[i])
	}
	return out
}

func taskResponse(t *models.Task) TaskResponse {
	resp := TaskResponse{
		ID:                    t.ID.String(),
		Name:                  t.Name,
		Description:           t.Description,
		Org:                   t.OrgID.String(),
		DueDate:               t.DueDate,
		Priority:              string(t.Priority),
		Status:                string(t.Status),
		EstimatedDuration:     t.EstimatedDuration,
		ActualDuration:        t.ActualDuration,
		AllowAutoStatusUpdate: t.AllowAutoStatusUpdate,
		AssignedTo:            briefList(t.AssignedTo),
		CanBeAccessedBy:       briefList(t.CanBeAccessedBy),
		CreatedAt:             t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if t.DepartID != nil {
		s := t.DepartID.String()
		resp.Depart = &s
	}
	if t.ParentTaskID != nil {
		s := t.ParentTaskID.String()
		resp.ParentTask = &s
	}
	if t.CreatedBy != nil {
		b := brief(t.CreatedBy)
		resp.CreatedBy = &b
	}
	resp.Tags = make([]TagBrief, len(t.Tags))
	for i, tag := range t.Tags {
		resp.Tags[i] = TagBrief{ID: tag.ID.String(), Name: tag.Name}
	}
	return resp
}

// CreateTaskRequest represents the request to create a task
type CreateTaskRequest struct {
	Name                  string     `json:"name" binding:"required"`
	Description           string     `json:"description"`
	Org                   string     `json:"org" binding:"required"`
	Depart                string     `json:"depart"`
	ParentTask            string     `json:"parent_task"`
	DueDate               *time.Time `json:"due_date"`
	Priority              string     `json:"priority"`
	Status                string     `json:"status"`
	EstimatedDuration     *int64     `json:"estimated_duration"`
	ActualDuration        *int64     `json:"actual_duration"`
	AllowAutoStatusUpdate *bool      `json:"allow_auto_status_update"`
	AssignedTo            []string   `json:"assigned_to"`
	Tags                  []string   `json:"tags"`
}

// UpdateTaskRequest represents the request to update a task. A present org
// field moves the task to another organization, which re-runs every
// cross-scope check against the destination.
type UpdateTaskRequest struct {
	Name                  *string    `json:"name"`
	Description           *string    `json:"description"`
	Org                   *string    `json:"org"`
	Depart                *string    `json:"depart"`
	ParentTask            *string    `json:"parent_task"`
	DueDate               *time.Time `json:"due_date"`
	Priority              *string    `json:"priority"`
	Status                *string    `json:"status"`
	EstimatedDuration     *int64     `json:"estimated_duration"`
	ActualDuration        *int64     `json:"actual_duration"`
	AllowAutoStatusUpdate *bool      `json:"allow_auto_status_update"`
	AssignedTo            *[]string  `json:"assigned_to"`
	Tags                  *[]string  `json:"tags"`
}

func memberIDs(users []models.User) []uuid.UUID {
	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

// taskGraph bundles a task with its loaded parent scopes.
type taskGraph struct {
	task   *models.Task
	org    *models.Organization
	depart *models.Department
}

func (h *Handler) loadGraph(id string) (*taskGraph, error) {
	var task models.Task
	err := h.db.Preload("CreatedBy").Preload("AssignedTo").
		Preload("Tags").Preload("CanBeAccessedBy").
		First(&task, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	g := &taskGraph{task: &task}

	var org models.Organization
	err = h.db.Preload("Owner").Preload("CreatedBy").
		Preload("Members").Preload("CanBeAccessedBy").
		First(&org, "id = ?", task.OrgID).Error
	if err != nil {
		return nil, err
	}
	g.org = &org

	if task.DepartID != nil {
		var depart models.Department
		err = h.db.Preload("CreatedBy").Preload("Members").Preload("CanBeAccessedBy").
			First(&depart, "id = ?", *task.DepartID).Error
		if err == nil {
			g.depart = &depart
		}
	}
	return g, nil
}

func (g *taskGraph) departSubject() *access.Subject {
	if g.depart == nil {
		return nil
	}
	s := access.ForDepartment(g.depart)
	return &s
}

func (g *taskGraph) isAssignee(userID uuid.UUID) bool {
	return access.IsMember(memberIDs(g.task.AssignedTo), userID)
}

// visible is the task read predicate: any channel through the organization,
// the department, the task itself or an assignment.
func (g *taskGraph) visible(userID uuid.UUID) bool {
	if access.CanAccessOrgDepartOrObj(access.ForTask(g.task), access.ForOrg(g.org), g.departSubject(), userID) {
		return true
	}
	if access.IsMember(memberIDs(g.org.Members), userID) {
		return true
	}
	if g.depart != nil && access.IsMember(memberIDs(g.depart.Members), userID) {
		return true
	}
	return g.isAssignee(userID)
}

// canMutate is the task write predicate. Assignment and plain membership
// read but never write.
func (g *taskGraph) canMutate(userID uuid.UUID) bool {
	return access.CanAccessOrgDepartOrObj(access.ForTask(g.task), access.ForOrg(g.org), g.departSubject(), userID)
}

func nameTaken(db *gorm.DB, name string, orgID, excludeID uuid.UUID) bool {
	q := db.Model(&models.Task{}).Where("name = ? AND org_id = ?", name, orgID)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	q.Count(&count)
	return count > 0
}

// resolveOrg loads an organization referenced from a request body; any
// failure collapses into one field error so existence is not disclosed.
func (h *Handler) resolveOrg(id string, errs httputil.FieldErrors) *models.Organization {
	var org models.Organization
	err := h.db.Preload("Owner").Preload("CreatedBy").
		Preload("Members").Preload("CanBeAccessedBy").
		First(&org, "id = ?", id).Error
	if err != nil {
		errs.Add("org", "Organization can't be found or you don't have access to it")
		return nil
	}
	return &org
}

// resolveDepart checks the department exists and belongs to the organization.
func (h *Handler) resolveDepart(id string, org *models.Organization, errs httputil.FieldErrors) *models.Department {
	var depart models.Department
	if err := h.db.First(&depart, "id = ?", id).Error; err != nil {
		errs.Add("depart", "Department can't be found")
		return nil
	}
	if depart.OrgID != org.ID {
		errs.Add("depart", "The department does not belong to the task organization")
		return nil
	}
	return &depart
}

// resolveParent checks the parent task exists in the same organization.
func (h *Handler) resolveParent(id string, org *models.Organization, selfID uuid.UUID, errs httputil.FieldErrors) *models.Task {
	var parent models.Task
	if err := h.db.First(&parent, "id = ?", id).Error; err != nil {
		errs.Add("parent_task", "Parent task can't be found")
		return nil
	}
	if parent.OrgID != org.ID {
		errs.Add("parent_task", "The parent task does not belong to the task organization")
		return nil
	}
	if selfID != uuid.Nil && parent.ID == selfID {
		errs.Add("parent_task", "A task can't be its own parent")
		return nil
	}
	return &parent
}

// resolveTags checks every tag exists and belongs to the organization.
func (h *Handler) resolveTags(ids []string, org *models.Organization, errs httputil.FieldErrors) []models.Tag {
	if len(ids) == 0 {
		return nil
	}
	var tagList []models.Tag
	if err := h.db.Where("id IN ?", ids).Find(&tagList).Error; err != nil || len(tagList) != len(ids) {
		errs.Add("tags", "Some tags could not be found")
		return nil
	}
	for _, tag := range tagList {
		if tag.OrgID != org.ID {
			errs.Add("tags", "All tags must belong to the task organization")
			return nil
		}
	}
	return tagList
}

// resolveAssignees resolves the assigned users and enforces the cross-scope
// rule: the organization side must hold full access over every assignee.
func (h *Handler) resolveAssignees(ids []string, org *models.Organization, errs httputil.FieldErrors) []models.User {
	if len(ids) == 0 {
		return nil
	}
	var users []models.User
	if err := h.db.Preload("CanBeAccessedBy").Where("id IN ?", ids).Find(&users).Error; err != nil || len(users) != len(ids) {
		errs.Add("assigned_to", "Some users could not be found")
		return nil
	}
	ownerID := org.CreatedByID
	if org.OwnerID != nil {
		ownerID = org.OwnerID
	}
	if ownerID != nil && !access.HasAccessAll(access.ForUsers(users), *ownerID) {
		errs.Add("assigned_to", "The org owner need to have a full access over users")
	}
	return users
}

// syncOrgMembers attaches assignees missing from the organization member set
// and returns the newly attached users.
func syncOrgMembers(tx *gorm.DB, org *models.Organization, users []models.User) ([]models.User, error) {
	missing := org.MissingMembers(users)
	if len(missing) == 0 {
		return nil, nil
	}
	if err := tx.Model(org).Association("Members").Append(missing); err != nil {
		return nil, err
	}
	return missing, nil
}

func (h *Handler) notifyInvited(org *models.Organization, invited []models.User) {
	for _, u := range invited {
		u := u
		mailer.Dispatch(func() error {
			return h.mail.SendInvitation(u.Email, u.FullName(), org.Name)
		})
	}
}

// List returns the tasks the actor may see across organizations
// @Summary List tasks
// @Tags tasks
// @Produce json
// @Success 200 {array} TaskResponse
// @Security BearerAuth
// @Router /tasks [get]
func (h *Handler) List(c *gin.Context) {
	user, _ := auth.GetUser(c)

	var orgIDs []uuid.UUID
	h.db.Model(&models.Organization{}).
		Joins("LEFT JOIN organization_access oa ON oa.organization_id = organizations.id AND oa.user_id = ?", user.ID).
		Joins("LEFT JOIN organization_members om ON om.organization_id = organizations.id AND om.user_id = ?", user.ID).
		Where("organizations.owner_id = ? OR organizations.created_by_id = ? OR oa.user_id IS NOT NULL OR om.user_id IS NOT NULL",
			user.ID, user.ID).
		Distinct().Pluck("organizations.id", &orgIDs)

	var departIDs []uuid.UUID
	h.db.Model(&models.Department{}).
		Joins("LEFT JOIN department_access da ON da.department_id = departments.id AND da.user_id = ?", user.ID).
		Joins("LEFT JOIN department_members dm ON dm.department_id = departments.id AND dm.user_id = ?", user.ID).
		Where("departments.created_by_id = ? OR da.user_id IS NOT NULL OR dm.user_id IS NOT NULL", user.ID).
		Distinct().Pluck("departments.id", &departIDs)

	q := h.db.Preload("CreatedBy").Preload("AssignedTo").
		Preload("Tags").Preload("CanBeAccessedBy").
		Joins("LEFT JOIN task_access tac ON tac.task_id = tasks.id AND tac.user_id = ?", user.ID).
		Joins("LEFT JOIN task_assignees tas ON tas.task_id = tasks.id AND tas.user_id = ?", user.ID)

	cond := "tasks.created_by_id = ? OR tac.user_id IS NOT NULL OR tas.user_id IS NOT NULL"
	args := []interface{}{user.ID}
	if len(orgIDs) > 0 {
		cond += " OR tasks.org_id IN ?"
		args = append(args, orgIDs)
	}
	if len(departIDs) > 0 {
		cond += " OR tasks.depart_id IN ?"
		args = append(args, departIDs)
	}

	var taskList []models.Task
	q.Where(cond, args...).Distinct("tasks.*").Order("tasks.created_at").Find(&taskList)

	resp := make([]TaskResponse, len(taskList))
	for i := range taskList {
		resp[i] = taskResponse(&taskList[i])
	}
	c.JSON(http.StatusOK, resp)
}

// Create creates a task in the named organization
// @Summary Create a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body CreateTaskRequest true "Task details"
// @Success 201 {object} TaskResponse
// @Failure 400 {object} map[string][]string "Validation error"
// @Security BearerAuth
// @Router /tasks [post]
func (h *Handler) Create(c *gin.Context) {
	user, _ := auth.GetUser(c)

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	errs := httputil.FieldErrors{}
	org := h.resolveOrg(req.Org, errs)
	if org == nil {
		httputil.Invalid(c, errs)
		return
	}
	if !access.HasAccess(access.ForOrg(org), user.ID) &&
		!h.checker.HasPermission(user, org, access.CanCreateTask) {
		errs.Add("org", "Organization can't be found or you don't have access to it")
		httputil.Invalid(c, errs)
		return
	}

	var depart *models.Department
	if req.Depart != "" {
		depart = h.resolveDepart(req.Depart, org, errs)
	}
	if req.ParentTask != "" {
		h.resolveParent(req.ParentTask, org, uuid.Nil, errs)
	}
	tagList := h.resolveTags(req.Tags, org, errs)
	assignees := h.resolveAssignees(req.AssignedTo, org, errs)

	priority := models.PriorityMedium
	if req.Priority != "" {
		priority = models.TaskPriority(req.Priority)
		if !models.ValidPriority(priority) {
			errs.Add("priority", "Invalid priority")
		}
	}
	status := models.StatusPending
	if req.Status != "" {
		status = models.TaskStatus(req.Status)
		if !models.ValidStatus(status) {
			errs.Add("status", "Invalid status")
		}
	}
	if errs.Empty() && nameTaken(h.db, req.Name, org.ID, uuid.Nil) {
		errs.Add("name", "A task with that name already exists in this organization")
	}
	if !errs.Empty() {
		httputil.Invalid(c, errs)
		return
	}

	task := models.Task{
		Name:              req.Name,
		Description:       req.Description,
		OrgID:             org.ID,
		DueDate:           req.DueDate,
		Priority:          priority,
		Status:            status,
		EstimatedDuration: req.EstimatedDuration,
		ActualDuration:    req.ActualDuration,
		CreatedByID:       &user.ID,
	}
	if depart != nil {
		task.DepartID = &depart.ID
	}
	if req.ParentTask != "" {
		parentID, err := uuid.Parse(req.ParentTask)
		if err == nil {
			task.ParentTaskID = &parentID
		}
	}
	if req.AllowAutoStatusUpdate != nil {
		task.AllowAutoStatusUpdate = *req.AllowAutoStatusUpdate
	}

	var invited []models.User
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		if len(assignees) > 0 {
			if err := tx.Model(&task).Association("AssignedTo").Append(assignees); err != nil {
				return err
			}
			var err error
			if invited, err = syncOrgMembers(tx, org, assignees); err != nil {
				return err
			}
		}
		if len(tagList) > 0 {
			return tx.Model(&task).Association("Tags").Append(tagList)
		}
		return nil
	})
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to create task")
		return
	}

	h.notifyInvited(org, invited)

	g, err := h.loadGraph(task.ID.String())
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to load task")
		return
	}
	c.JSON(http.StatusCreated, taskResponse(g.task))
}

// Get returns a task visible to the actor
// @Summary Get a task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} TaskResponse
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /tasks/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	user, _ := auth.GetUser(c)

	g, err := h.loadGraph(c.Param("id"))
	if err != nil || !g.visible(user.ID) {
		httputil.NotFound(c, "Task can't be found")
		return
	}
	c.JSON(http.StatusOK, taskResponse(g.task))
}

// Update updates a task; assignment alone does not grant the right
// @Summary Update a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body UpdateTaskRequest true "Updated fields"
// @Success 200 {object} TaskResponse
// @Failure 400 {object} map[string][]string "Validation error"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /tasks/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
	user, _ := auth.GetUser(c)

	g, err := h.loadGraph(c.Param("id"))
	if err != nil || !g.visible(user.ID) {
		httputil.NotFound(c, "Task can't be found")
		return
	}
	if !g.canMutate(user.ID) {
		httputil.Forbidden(c)
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	errs := httputil.FieldErrors{}
	task := g.task

	// Destination scope. Moving the task re-runs every cross-scope check
	// against the new organization.
	destOrg := g.org
	if req.Org != nil && *req.Org != task.OrgID.String() {
		destOrg = h.resolveOrg(*req.Org, errs)
		if destOrg != nil && !access.HasAccess(access.ForOrg(destOrg), user.ID) &&
			!h.checker.HasPermission(user, destOrg, access.CanCreateTask) {
			errs.Add("org", "Organization can't be found or you don't have access to it")
		}
	}
	if destOrg == nil {
		httputil.Invalid(c, errs)
		return
	}
	moving := destOrg.ID != task.OrgID

	var destDepart *models.Department
	clearDepart := false
	switch {
	case req.Depart != nil && *req.Depart == "":
		clearDepart = true
	case req.Depart != nil:
		destDepart = h.resolveDepart(*req.Depart, destOrg, errs)
	case moving && task.DepartID != nil:
		errs.Add("depart", "The department does not belong to the task organization")
	}

	clearParent := false
	switch {
	case req.ParentTask != nil && *req.ParentTask == "":
		clearParent = true
	case req.ParentTask != nil:
		h.resolveParent(*req.ParentTask, destOrg, task.ID, errs)
	case moving && task.ParentTaskID != nil:
		errs.Add("parent_task", "The parent task does not belong to the task organization")
	}

	var newTags []models.Tag
	if req.Tags != nil {
		newTags = h.resolveTags(*req.Tags, destOrg, errs)
	} else if moving && len(task.Tags) > 0 {
		errs.Add("tags", "All tags must belong to the task organization")
	}

	// Retained assignees are revalidated against the destination owner.
	var newAssignees []models.User
	assigneesChanged := req.AssignedTo != nil
	if assigneesChanged {
		newAssignees = h.resolveAssignees(*req.AssignedTo, destOrg, errs)
	} else if moving && len(task.AssignedTo) > 0 {
		ids := make([]string, len(task.AssignedTo))
		for i, u := range task.AssignedTo {
			ids[i] = u.ID.String()
		}
		newAssignees = h.resolveAssignees(ids, destOrg, errs)
		assigneesChanged = true
	}

	if req.Priority != nil && !models.ValidPriority(models.TaskPriority(*req.Priority)) {
		errs.Add("priority", "Invalid priority")
	}
	if req.Status != nil && !models.ValidStatus(models.TaskStatus(*req.Status)) {
		errs.Add("status", "Invalid status")
	}

	newName := task.Name
	if req.Name != nil {
		newName = *req.Name
	}
	if errs.Empty() && (newName != task.Name || moving) &&
		nameTaken(h.db, newName, destOrg.ID, task.ID) {
		errs.Add("name", "A task with that name already exists in this organization")
	}
	if !errs.Empty() {
		httputil.Invalid(c, errs)
		return
	}

	var invited []models.User
	err = h.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{}
		if req.Name != nil {
			updates["name"] = *req.Name
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if moving {
			updates["org_id"] = destOrg.ID
		}
		if clearDepart {
			updates["depart_id"] = nil
		} else if destDepart != nil {
			updates["depart_id"] = destDepart.ID
		}
		if clearParent {
			updates["parent_task_id"] = nil
		} else if req.ParentTask != nil && *req.ParentTask != "" {
			parentID, err := uuid.Parse(*req.ParentTask)
			if err != nil {
				return err
			}
			updates["parent_task_id"] = parentID
		}
		if req.DueDate != nil {
			updates["due_date"] = *req.DueDate
		}
		if req.Priority != nil {
			updates["priority"] = *req.Priority
		}
		if req.Status != nil {
			updates["status"] = *req.Status
		}
		if req.EstimatedDuration != nil {
			updates["estimated_duration"] = *req.EstimatedDuration
		}
		if req.ActualDuration != nil {
			updates["actual_duration"] = *req.ActualDuration
		}
		if req.AllowAutoStatusUpdate != nil {
			updates["allow_auto_status_update"] = *req.AllowAutoStatusUpdate
		}
		if len(updates) > 0 {
			if err := tx.Model(task).Updates(updates).Error; err != nil {
				return err
			}
		}
		if assigneesChanged {
			if err := tx.Model(task).Association("AssignedTo").Replace(newAssignees); err != nil {
				return err
			}
			var err error
			if invited, err = syncOrgMembers(tx, destOrg, newAssignees); err != nil {
				return err
			}
		}
		if req.Tags != nil {
			return tx.Model(task).Association("Tags").Replace(newTags)
		}
		return nil
	})
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to update task")
		return
	}

	h.notifyInvited(destOrg, invited)

	g, err = h.loadGraph(task.ID.String())
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to load task")
		return
	}
	c.JSON(http.StatusOK, taskResponse(g.task))
}

// Delete soft-deletes a task and its whole subtask tree
// @Summary Delete a task
// @Tags tasks
// @Param id path string true "Task ID"
// @Success 204
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /tasks/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	user, _ := auth.GetUser(c)

	g, err := h.loadGraph(c.Param("id"))
	if err != nil || !g.visible(user.ID) {
		httputil.NotFound(c, "Task can't be found")
		return
	}
	if !g.canMutate(user.ID) {
		httputil.Forbidden(c)
		return
	}

	if err := h.engine.DeleteTasks([]uuid.UUID{g.task.ID}); err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to delete task")
		return
	}
	c.Status(http.StatusNoContent)
}
