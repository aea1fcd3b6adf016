package models

import "time"

// Rollen, die ein User-Datensatz tragen kann. Die Rolle ist das einzige
// Autorisierungssignal für administrative Operationen.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User repräsentiert eine Identität, die sich über einen externen
// Provider angemeldet hat. Wird beim ersten Sign-in angelegt und danach
// nur noch ergänzt (Name/Avatar) oder extern befördert (Rolle).
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email string `json:"email" gorm:"uniqueIndex;not null"`
	Name  string `json:"name" gorm:"not null"`
	Role  string `json:"role" gorm:"not null;default:user"`
	Image string `json:"image,omitempty"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (User) TableName() string {
	return "users"
}

// IsAdmin meldet, ob der Datensatz administrative Rechte trägt.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
