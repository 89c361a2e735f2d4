package domain

// User roles.
const (
	RoleCustomer = "customer"
	RoleFarmer   = "farmer"
	RoleAdmin    = "admin"
)

const (
	cartKeyPrefix = "cart:"
	guestCartKey  = cartKeyPrefix + "guest"
)

// Identity is the caller on whose behalf an operation runs.
// A zero UserID means a guest.
type Identity struct {
	UserID string
	Role   string
}

// Guest is the anonymous identity.
var Guest = Identity{}

// IsAuthenticated reports whether the identity names a user.
func (i Identity) IsAuthenticated() bool {
	return i.UserID != ""
}

// StorageKey is the cart key for this identity. All guests share one key.
func (i Identity) StorageKey() string {
	if !i.IsAuthenticated() {
		return guestCartKey
	}
	return cartKeyPrefix + i.UserID
}

// HasRole reports whether the identity carries one of roles.
func (i Identity) HasRole(roles ...string) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}
