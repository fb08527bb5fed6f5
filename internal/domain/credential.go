package domain

// KeySource tags which provider quota a call consumed.
type KeySource string

const (
	KeySourceUser   KeySource = "user"
	KeySourceShared KeySource = "shared"
)

// Credential is a resolved provider API key with the tier it came from.
type Credential struct {
	Source KeySource
	Key    string
}

// String never prints the key itself.
func (c Credential) String() string { return "credential(" + string(c.Source) + ")" }
