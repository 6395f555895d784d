package lockbox

// PermissionLevel is the effective access a user has to a file.
type PermissionLevel int

const (
	PermissionNone PermissionLevel = iota
	PermissionRead
	PermissionWrite
)

func (p PermissionLevel) String() string {
	switch p {
	case PermissionRead:
		return "read"
	case PermissionWrite:
		return "write"
	default:
		return "none"
	}
}

// CanRead reports whether the level allows reading content.
func (p PermissionLevel) CanRead() bool {
	return p == PermissionRead || p == PermissionWrite
}

// CanWrite reports whether the level allows replacing content.
func (p PermissionLevel) CanWrite() bool {
	return p == PermissionWrite
}

// Resolve computes the effective permission of username on record.
// The owner always has write access. Otherwise the first grant naming the
// user wins; later grants for the same user are never consulted.
func Resolve(record *FileRecord, username string) PermissionLevel {
	if username == "" {
		return PermissionNone
	}
	if username == record.Owner {
		return PermissionWrite
	}
	for _, g := range record.Permissions {
		if g.User != username {
			continue
		}
		switch g.Mode {
		case ModeWrite:
			return PermissionWrite
		case ModeRead:
			return PermissionRead
		default:
			return PermissionNone
		}
	}
	return PermissionNone
}

// VisibleTo reports whether the record should appear in username's listing.
func VisibleTo(record *FileRecord, username string) bool {
	if record.Owner == username {
		return true
	}
	for _, g := range record.Permissions {
		if g.User == username {
			return true
		}
	}
	return false
}
