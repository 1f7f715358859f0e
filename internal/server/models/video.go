package models

import "time"

// Video is the metadata record for one uploaded recording. The row is written
// only after every chunk of the payload is durably stored; its presence is the
// sole signal that the payload is complete and visible.
//
// (OwnerEmail, Title, ClassCode) is unique among live videos.
type Video struct {
	ID            string
	Filename      string
	ContentLength int64
	ChunkSize     int
	Title         string
	Subject       string
	OwnerID       string
	OwnerEmail    string
	ClassCode     string
	AccountType   AccountType
	SchoolName    string
	ContentType   string
	Viewed        bool
	UploadedAt    time.Time
}
