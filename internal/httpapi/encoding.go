package httpapi

import (
	"time"

	"lockbox/internal/lockbox"
)

// timeLayout matches the timestamps of the document store.
const timeLayout = "2006-01-02 15:04:05"

type grantJSON struct {
	User string `json:"user"`
	Mode string `json:"mode"`
}

type fileJSON struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Owner       string      `json:"owner"`
	Size        int64       `json:"size"`
	Uploaded    string      `json:"uploaded"`
	Modified    string      `json:"modified"`
	Permissions []grantJSON `json:"permissions"`
}

type eventJSON struct {
	Event  string `json:"event"`
	Detail string `json:"detail"`
	Time   string `json:"time"`
	User   string `json:"user"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func toFileJSON(r *lockbox.FileRecord) fileJSON {
	grants := make([]grantJSON, 0, len(r.Permissions))
	for _, g := range r.Permissions {
		grants = append(grants, grantJSON{User: g.User, Mode: string(g.Mode)})
	}
	return fileJSON{
		ID:          r.ID,
		Name:        r.Name,
		Owner:       r.Owner,
		Size:        r.Size,
		Uploaded:    formatTime(r.Uploaded),
		Modified:    formatTime(r.Modified),
		Permissions: grants,
	}
}

func toFileList(records []*lockbox.FileRecord) []fileJSON {
	out := make([]fileJSON, 0, len(records))
	for _, r := range records {
		out = append(out, toFileJSON(r))
	}
	return out
}

func toEventList(events []*lockbox.AuditEvent) []eventJSON {
	out := make([]eventJSON, 0, len(events))
	for _, e := range events {
		out = append(out, eventJSON{
			Event:  string(e.Kind),
			Detail: e.Detail,
			Time:   formatTime(e.Time),
			User:   e.User,
		})
	}
	return out
}
