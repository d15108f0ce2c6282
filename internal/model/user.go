package model

type UserRole string

const (
	Learner    UserRole = "learner"
	Instructor UserRole = "instructor"
	Admin      UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case Learner, Instructor, Admin:
		return true
	}
	return false
}

// swagger:model User
type User struct {
	BaseModel
	Name            string   `gorm:"size:100;not null" json:"name"`
	Email           string   `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password        string   `gorm:"size:100;not null" json:"-"`
	Role            UserRole `gorm:"size:20;default:'learner'" json:"role"`
	ProfileImageURL string   `gorm:"size:255" json:"profileImageUrl"`
	PushToken       string   `gorm:"size:255" json:"-"`
}

func (User) TableName() string {
	return "users"
}
