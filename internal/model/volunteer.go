package model

// Volunteer roles as stored in the volunteers collection and carried in
// the JWT "role" claim.
const (
	RoleVolunteer = "volunteer"
	RoleAdmin     = "admin"
)

// Volunteer is a scanning operator. Volunteers are created and edited only
// through the admin back office; the scanner treats them as read-only.
//
// Fields:
//  ID                – volunteer document id, also the login identifier.
//  SynapseID         – the volunteer's own attendee id, used to reject
//                      self-scans.
//  Name              – display name.
//  Role              – volunteer or admin.
//  PINHash           – bcrypt hash of the device PIN used to log in.
//  Active            – inactive volunteers cannot log in or scan.
//  AssignedEvents    – event ids this volunteer may scan for; empty means
//                      all events.
//  AllowedEventTypes – registration types this volunteer may admit; empty
//                      means all types.
type Volunteer struct {
	ID                string   `json:"id"`
	SynapseID         string   `json:"synapseId,omitempty"`
	Name              string   `json:"name"`
	Role              string   `json:"role"`
	PINHash           string   `json:"pinHash,omitempty"`
	Active            bool     `json:"active"`
	AssignedEvents    []string `json:"assignedEvents,omitempty"`
	AllowedEventTypes []string `json:"allowedEventTypes,omitempty"`
}
