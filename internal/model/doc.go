// Package model defines the persistent domain types shared across the
// application: users, classification jobs and their lifecycle enums.
package model
