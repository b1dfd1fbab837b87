// Package httputil holds the shared response shapes: detail bodies for
// 401/403/404, aggregated field-error maps for 400 and the bulk-delete diff.
package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NonFieldErrors is the key validation errors not tied to a field go under.
const NonFieldErrors = "non_field_errors"

// FieldErrors aggregates per-field validation messages so a request reports
// every problem at once.
type FieldErrors map[string][]string

// Add appends a message under the field.
func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

// AddNonField appends a message not tied to a particular field.
func (f FieldErrors) AddNonField(message string) {
	f.Add(NonFieldErrors, message)
}

// Empty reports whether no error was collected.
func (f FieldErrors) Empty() bool {
	return len(f) == 0
}

// Detail writes a {"detail": ...} body with the given status.
func Detail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"detail": message})
}

// NotFound answers 404. It is also the deliberate answer when the actor has
// no visibility channel to the resource; probing must not disclose existence.
func NotFound(c *gin.Context, message string) {
	Detail(c, http.StatusNotFound, message)
}

// Forbidden answers 403 for an actor that can see the resource but lacks the
// mutating right.
func Forbidden(c *gin.Context) {
	Detail(c, http.StatusForbidden, "You don't have enough permission to perform this action")
}

// Invalid writes the aggregated validation errors as a 400.
func Invalid(c *gin.Context, errs FieldErrors) {
	c.JSON(http.StatusBadRequest, errs)
}

// BindError reports a request-body binding failure as a non-field error.
func BindError(c *gin.Context, err error) {
	errs := FieldErrors{}
	errs.AddNonField(err.Error())
	Invalid(c, errs)
}

// BulkDeleted writes the partial bulk-delete success body.
func BulkDeleted(c *gin.Context, deleted, notFound []string) {
	if deleted == nil {
		deleted = []string{}
	}
	if notFound == nil {
		notFound = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "not_found": notFound})
}
