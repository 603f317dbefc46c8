package models

import (
	"slices"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Decoy is a synthetic honeytrap identity. The username is the record key.
type Decoy struct {
	ID             surrealmodels.RecordID `json:"id"`
	Username       string                 `json:"username"`
	Email          string                 `json:"email"`
	Purpose        string                 `json:"purpose"`
	Friends        []string               `json:"friends"`
	FriendRequests []string               `json:"friend_requests"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Account is a record in the generic account store. Decoys have one too, so
// friend operations must keep both representations in step.
type Account struct {
	ID             surrealmodels.RecordID `json:"id"`
	Username       string                 `json:"username"`
	Email          string                 `json:"email"`
	IsDecoy        bool                   `json:"is_decoy"`
	Friends        []string               `json:"friends"`
	FriendRequests []string               `json:"friend_requests"`
	CreatedAt      time.Time              `json:"created_at"`
}

// DecoyInput is the input structure for creating a decoy.
type DecoyInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Purpose  string `json:"purpose"`
}

// HasFriend reports whether name is in the decoy's friend set.
func (d *Decoy) HasFriend(name string) bool {
	return slices.Contains(d.Friends, name)
}

// HasFriendRequest reports whether name has a pending request to the decoy.
func (d *Decoy) HasFriendRequest(name string) bool {
	return slices.Contains(d.FriendRequests, name)
}

// HasFriend reports whether name is in the account's friend set.
func (a *Account) HasFriend(name string) bool {
	return slices.Contains(a.Friends, name)
}

// HasFriendRequest reports whether name has a pending request to the account.
func (a *Account) HasFriendRequest(name string) bool {
	return slices.Contains(a.FriendRequests, name)
}
