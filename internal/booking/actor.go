package booking

import "github.com/iliyamo/field-booking/internal/model"

// ActorKind is the capability level a caller acts with.
type ActorKind int

const (
	ActorAnonymous ActorKind = iota
	ActorCustomer
	ActorElevated
)

func (k ActorKind) String() string {
	switch k {
	case ActorCustomer:
		return "customer"
	case ActorElevated:
		return "elevated"
	}
	return "anonymous"
}

// Actor is who is calling. Anonymous callers come through the public API,
// customers may act on their own bookings only, elevated actors on any.
type Actor struct {
	Kind   ActorKind
	UserID uint64
}

func Anonymous() Actor { return Actor{Kind: ActorAnonymous} }
func Customer(userID uint64) Actor { return Actor{Kind: ActorCustomer, UserID: userID} }
func Elevated(userID uint64) Actor { return Actor{Kind: ActorElevated, UserID: userID} }

// ActorFor maps an authenticated user's role to an actor.
func ActorFor(userID uint64, role model.Role) Actor {
	if role.IsElevated() {
		return Elevated(userID)
	}
	return Customer(userID)
}

func (a Actor) IsElevated() bool { return a.Kind == ActorElevated }

// owns reports whether a may act on a booking held by userID.
func (a Actor) owns(userID uint64) bool {
	return a.Kind == ActorElevated || (a.Kind == ActorCustomer && a.UserID == userID)
}
