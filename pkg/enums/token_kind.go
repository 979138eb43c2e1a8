package enums

// TokenKind separates short-lived access tokens from revocable refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

func (k TokenKind) IsValid() bool {
	return k == TokenKindAccess || k == TokenKindRefresh
}
