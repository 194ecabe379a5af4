package model

import (
	"slices"
	"strings"
	"time"
)

// CookieDelimiter separates the qualifier from the digest in cookies
const CookieDelimiter = ":"

// User is a registered account
type User struct {
	Username  string   // unique key (immutable)
	Password  string   // stored credential (bcrypt hash)
	Email     string
	Online    bool
	Friends   []string
	Wins      int
	Losses    int
	Draws     int
	Rank      int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of the user
func (u *User) Clone() *User {
	c := *u
	c.Friends = slices.Clone(u.Friends)
	return &c
}

// HasFriend returns true if the given username is in the friend list
func (u *User) HasFriend(username string) bool {
	return slices.Contains(u.Friends, username)
}

// ValidUsername reports whether a username can be used as a cookie qualifier
func ValidUsername(username string) bool {
	return strings.TrimSpace(username) != "" && !strings.Contains(username, CookieDelimiter)
}

// UserInfo is the public view of a user (no credential)
type UserInfo struct {
	Username string
	Email    string
	Online   bool
	Friends  []string
	Wins     int
	Losses   int
	Draws    int
	Rank     int
}

// Info strips the credential from a user
func (u *User) Info() UserInfo {
	return UserInfo{
		Username: u.Username,
		Email:    u.Email,
		Online:   u.Online,
		Friends:  slices.Clone(u.Friends),
		Wins:     u.Wins,
		Losses:   u.Losses,
		Draws:    u.Draws,
		Rank:     u.Rank,
	}
}
