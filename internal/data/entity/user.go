package entity

type UserRole string

const (
	RoleBrand      UserRole = "brand"
	RoleVenueOwner UserRole = "venue_owner"
	RoleAdmin      UserRole = "admin"
)

type User struct {
	Base
	Username     string   `db:"username"`
	Email        string   `db:"email"`
	PasswordHash string   `db:"password"`
	Role         UserRole `db:"role"`
	IsActive     bool     `db:"is_active"`
}
