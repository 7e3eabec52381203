package cache

import "time"

// UserTTL is the expiry applied to every user cache entry.
const UserTTL = 3600 * time.Second

// UserIDKey indexes the public projection of a user.
func UserIDKey(id string) string {
	return "user:id:" + id
}

// UserEmailKey indexes a user by email.
func UserEmailKey(email string) string {
	return "user:email:" + email
}
