package domain

// Member represents a connected user. The room a member is in is tracked
// by the session registry.
type Member struct {
	User *User
}

func NewMember(user *User) *Member {
	return &Member{User: user}
}
