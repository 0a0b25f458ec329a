package domain

// Comment is one externally authored comment attached to a page.
// Threading is not preserved: every comment is top-level.
type Comment struct {
	ID        string // opaque feed identifier, never empty
	Author    string // display name, may be empty
	CreatedAt string // "YYYY-MM-DD HH:MM:SS", UTC, no zone suffix
	Body      string // raw text or HTML, passed through verbatim
}
