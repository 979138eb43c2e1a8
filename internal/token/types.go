package token

// Pair is the credential pair returned on login and refresh. ExpiresIn is the
// access token lifetime in seconds.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
