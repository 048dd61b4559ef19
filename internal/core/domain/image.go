package domain

import (
	"io"
	"time"
)

// An ImageUpload is an image file received from the admin panel.
type ImageUpload struct {
	Folder      string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type BackupSummary struct {
	Timestamp time.Time
	Counts    map[Collection]int
}
