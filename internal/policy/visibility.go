// Package policy holds the read/write rules shared by every resource type: who may see a row,
// who may mutate it, and how soft-deletable rows move between Active and Deleted.
package policy

import "fmt"

// Actor is the identity a request acts as. The zero value is anonymous.
type Actor struct {
	id    int64
	known bool
}

// Anonymous returns the actor of a request without a principal.
func Anonymous() Actor { return Actor{} }

// UserActor returns the actor for an authenticated user.
func UserActor(id int64) Actor { return Actor{id: id, known: true} }

// ID returns the user id and whether the actor is authenticated.
func (a Actor) ID() (int64, bool) { return a.id, a.known }

// IsAnonymous reports whether no user is attached.
func (a Actor) IsAnonymous() bool { return !a.known }

func (a Actor) String() string {
	if !a.known {
		return "anonymous"
	}
	return fmt.Sprintf("user:%d", a.id)
}

// Accessible reports whether actor may read a resource owned by ownerID.
func Accessible(actor Actor, ownerID int64, isPublic bool) bool {
	if isPublic {
		return true
	}
	return CanMutate(actor, ownerID)
}

// CanMutate reports whether actor owns the resource. Visibility is irrelevant for mutation.
func CanMutate(actor Actor, ownerID int64) bool {
	id, ok := actor.ID()
	return ok && id == ownerID
}

// VisibleClause renders Accessible as a SQL predicate over the given columns, using '?' bind
// variables (callers Rebind for their driver). Every listing query must include it.
func VisibleClause(ownerCol, publicCol string, actor Actor) (string, []any) {
	id, ok := actor.ID()
	if !ok {
		return fmt.Sprintf("%s = true", publicCol), nil
	}
	return fmt.Sprintf("(%s = true OR %s = ?)", publicCol, ownerCol), []any{id}
}
