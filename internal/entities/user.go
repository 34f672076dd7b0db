package entities

// User is the operator account that may change bot settings
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}

const RoleAdmin = "admin"
