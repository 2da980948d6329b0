package booking

import (
	"fmt"
	"strings"
)

type ActorType string

const (
	ActorCouple ActorType = "couple"
	ActorVendor ActorType = "vendor"
	ActorAdmin  ActorType = "admin"
	ActorSystem ActorType = "system"
)

// Actor is the authenticated party behind an operation. ID is zero for system.
type Actor struct {
	Type ActorType `json:"type"`
	ID   int64     `json:"id"`
}

func Couple(id int64) Actor { return Actor{Type: ActorCouple, ID: id} }
func Vendor(id int64) Actor { return Actor{Type: ActorVendor, ID: id} }
func Admin(id int64) Actor  { return Actor{Type: ActorAdmin, ID: id} }

// System is the actor for verified payment events and derived transitions.
func System() Actor { return Actor{Type: ActorSystem} }

// ActorFromRole maps a token role onto an actor type. Coordinators act as admins.
func ActorFromRole(role string, userID int64) (Actor, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "couple", "client":
		return Couple(userID), nil
	case "vendor":
		return Vendor(userID), nil
	case "admin", "coordinator":
		return Admin(userID), nil
	default:
		return Actor{}, fmt.Errorf("%w: unknown role %q", ErrUnauthorizedActor, role)
	}
}

func (a Actor) valid() bool {
	switch a.Type {
	case ActorCouple, ActorVendor, ActorAdmin:
		return a.ID > 0
	case ActorSystem:
		return true
	default:
		return false
	}
}

// owns reports whether a may act on b as the party its type claims.
func (a Actor) owns(b *Booking) bool {
	switch a.Type {
	case ActorCouple:
		return b.CoupleID == a.ID
	case ActorVendor:
		return b.VendorID == a.ID
	case ActorAdmin, ActorSystem:
		return true
	default:
		return false
	}
}

func (a Actor) String() string {
	if a.Type == ActorSystem {
		return string(a.Type)
	}
	return fmt.Sprintf("%s:%d", a.Type, a.ID)
}
