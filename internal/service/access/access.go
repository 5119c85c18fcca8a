// Package access holds the role and ownership checks shared by the services.
package access

import (
	"fmt"

	"stagepay/internal/apperr"
	"stagepay/internal/model"
	"stagepay/pkg/rbac"
)

// Require checks the role-level permission of actor.
func Require(actor model.Actor, permission string) error {
	if err := rbac.CheckPermission(actor.UserID, string(actor.Role), permission); err != nil {
		return apperr.Forbidden(actor.UserID, permission)
	}
	return nil
}

// ViewProject admits admins and the project's participants. A paused project is admin-only.
func ViewProject(actor model.Actor, p *model.Project) error {
	if actor.IsAdmin() {
		return nil
	}
	if p.Status == model.ProjectPaused {
		return apperr.Forbidden(actor.UserID, fmt.Sprintf("access paused project %d", p.ID))
	}
	if !p.IsParticipant(actor.UserID) {
		return apperr.Forbidden(actor.UserID, fmt.Sprintf("access project %d", p.ID))
	}
	return nil
}

// ManageProject admits admins and the assigned contractor.
func ManageProject(actor model.Actor, p *model.Project, action string) error {
	if actor.IsAdmin() {
		return nil
	}
	if p.Status == model.ProjectPaused {
		return apperr.Forbidden(actor.UserID, fmt.Sprintf("access paused project %d", p.ID))
	}
	if !p.IsContractor(actor.UserID) {
		return apperr.Forbidden(actor.UserID, action)
	}
	return nil
}
