package auth

import (
	"fmt"

	"train-station/internal/apperr"
)

type Resource string

const (
	ResourceTrainType Resource = "train-types"
	ResourceTrain     Resource = "trains"
	ResourceCrew      Resource = "crews"
	ResourceStation   Resource = "stations"
	ResourceRoute     Resource = "routes"
	ResourceTrip      Resource = "trips"
	ResourceOrder     Resource = "orders"
	ResourceReport    Resource = "reports"
	ResourceProfile   Resource = "profile"
)

type Action int

const (
	ActionRead Action = iota
	ActionWrite
)

type level int

const (
	anyone level = iota
	authenticated
	admin
	nobody
)

type rule struct {
	read, write level
}

var policy = map[Resource]rule{
	ResourceTrainType: {read: authenticated, write: admin},
	ResourceTrain:     {read: authenticated, write: admin},
	ResourceCrew:      {read: authenticated, write: admin},
	ResourceStation:   {read: anyone, write: admin},
	ResourceRoute:     {read: anyone, write: admin},
	ResourceTrip:      {read: anyone, write: admin},
	ResourceOrder:     {read: authenticated, write: authenticated},
	ResourceProfile:   {read: authenticated, write: authenticated},
	ResourceReport:    {read: admin, write: nobody},
}

// Authorize checks the resource policy for p. Order ownership is enforced
// separately by scoping every order query to p.UserID.
func Authorize(p Principal, resource Resource, action Action) error {
	r, ok := policy[resource]
	if !ok {
		return fmt.Errorf("no access rule for %s: %w", resource, apperr.ErrPermissionDenied)
	}
	need := r.read
	if action == ActionWrite {
		need = r.write
	}

	switch need {
	case anyone:
		return nil
	case authenticated:
		if !p.Authenticated() {
			return apperr.ErrUnauthenticated
		}
		return nil
	case admin:
		if !p.Authenticated() {
			return apperr.ErrUnauthenticated
		}
		if !p.IsAdmin() {
			return fmt.Errorf("%s requires an admin account: %w", resource, apperr.ErrPermissionDenied)
		}
		return nil
	default:
		return fmt.Errorf("%s is read-only: %w", resource, apperr.ErrPermissionDenied)
	}
}
