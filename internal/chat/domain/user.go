package domain

// User definition chat identity, owned by the external profile service
type User struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Username    string `json:"username" gorm:"uniqueIndex;size:150"`
	DisplayName string `json:"display_name" gorm:"size:100"`
	IsBot       bool   `json:"is_bot"`
}

// TableName gorm table name
func (User) TableName() string {
	return "core_user"
}
