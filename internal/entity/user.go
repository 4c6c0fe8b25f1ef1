package entity

// User represents a user in the system
type User struct {
	Id        string `json:"id" gorm:"column:id;primaryKey"`
	Name      string `json:"name" gorm:"column:name"`
	Email     string `json:"email" gorm:"column:email;uniqueIndex"`
	Password  string `json:"-" gorm:"column:password"`
	Avatar    string `json:"avatar" gorm:"column:avatar"`
	Title     string `json:"title" gorm:"column:title"`
	IsActive  bool   `json:"is_active" gorm:"column:is_active;default:true"`
	CreatedAt int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}

// UserInfo represents public user info (without password)
type UserInfo struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	Title     string `json:"title,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// ToUserInfo converts User to UserInfo
func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{
		Id:        u.Id,
		Name:      u.Name,
		Avatar:    u.Avatar,
		Title:     u.Title,
		CreatedAt: u.CreatedAt,
	}
}
