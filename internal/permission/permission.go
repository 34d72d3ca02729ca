// Package permission decides what an actor may do. Every predicate is pure
// and returns false for a nil actor.
package permission

import "github.com/eventhub/eventhub/internal/model"

// CanManageEvent reports whether actor may edit or delete event: admins may
// manage any event, everyone else only the events they created.
func CanManageEvent(actor *model.Actor, event *model.Event) bool {
	if actor == nil || event == nil {
		return false
	}
	if actor.HasRole(model.RoleAdmin) {
		return true
	}
	return actor.ID != "" && actor.ID == event.CreatorID
}

// CanCreateEvent reports whether actor may publish new events.
func CanCreateEvent(actor *model.Actor) bool {
	return actor.HasAnyRole(model.RoleOrganizer, model.RoleAdmin)
}

// CanRegisterForEvents reports whether actor may register itself. Guests
// cannot.
func CanRegisterForEvents(actor *model.Actor) bool {
	return actor.HasAnyRole(model.RoleUser, model.RoleOrganizer, model.RoleAdmin)
}

// CanManageParticipants reports whether actor may add or remove other users
// on event.
func CanManageParticipants(actor *model.Actor, event *model.Event) bool {
	return CanManageEvent(actor, event)
}

// CanAdminister reports whether actor may change other users' roles.
func CanAdminister(actor *model.Actor) bool {
	return actor.HasRole(model.RoleAdmin)
}
