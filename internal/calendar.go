package internal

// Account holds the decrypted credential used to reach a calendar platform.
// Auth is the credential JSON: an oauth2 token for google, url/username/password
// for caldav.
type Account struct {
	Platform string
	Name     string
	Auth     string
}

func (a Account) ID() string {
	return a.Platform + "/" + a.Name
}

type Calendar struct {
	ProviderID string
	Account    Account
}

func (c Calendar) String() string {
	return c.Account.ID() + "/" + c.ProviderID
}
