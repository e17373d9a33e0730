package domain

// Room is the externally visible view of a chat room. Rooms have no
// stored state record of their own: a room "exists" exactly as long as
// its Redis keys (name, owner, occupancy, history) are alive.
type Room struct {
	ID   string `json:"roomId"`
	Name string `json:"roomName"`
}

// Possible roles returned by an ownership claim.
const (
	RoleOwner = "OWNER"
	RoleGuest = "GUEST"
)

// ClaimResult reports the outcome of an ownership claim. Token is only
// set when Role is RoleOwner; it is transmitted to the claimant once and
// never readable again through the API.
type ClaimResult struct {
	Role  string `json:"role"`
	Token string `json:"token,omitempty"`
}
