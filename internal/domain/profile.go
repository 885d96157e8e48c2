package domain

import "time"

type Profile struct {
	ID        string
	Email     string
	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// ProfileUpdate is a partial update; nil fields are left untouched.
type ProfileUpdate struct {
	Email     *string
	UpdatedAt *time.Time
}

func (u ProfileUpdate) Empty() bool {
	return u.Email == nil && u.UpdatedAt == nil
}

// Apply merges u into a copy of p.
func (u ProfileUpdate) Apply(p Profile) Profile {
	if u.Email != nil {
		p.Email = *u.Email
	}
	if u.UpdatedAt != nil {
		t := *u.UpdatedAt
		p.UpdatedAt = &t
	}
	return p
}

// Backup mirrors a row of the backups table. No screen reads or writes it yet.
type Backup struct {
	ID              string
	UserID          string
	Name            string
	SourcePath      string
	DestinationPath string
	SizeBytes       int64
	Status          string
	LastBackup      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
