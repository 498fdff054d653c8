package domain

import "errors"

// ErrNoSession is returned by session lookups when nobody is signed in.
var ErrNoSession = errors.New("no active session")

// Session identifies the signed-in user. CustomerID is zero for administrators without a customer record.
type Session struct {
	UserID     string `json:"user_id"`
	CustomerID int64  `json:"customer_id"`
	Email      string `json:"email"`
	IsAdmin    bool   `json:"is_admin"`
}
